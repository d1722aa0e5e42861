package checker

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/shelfcheck/internal/browser"
	"github.com/xkilldash9x/shelfcheck/internal/results"
)

// ImageChecker classifies every image on a page as loaded, failed or broken.
type ImageChecker struct {
	driver   browser.Driver
	settings Settings
	logger   *zap.Logger
}

// NewImageChecker creates an image checker.
func NewImageChecker(driver browser.Driver, settings Settings, logger *zap.Logger) *ImageChecker {
	return &ImageChecker{driver: driver, settings: settings, logger: logger.Named("image_checker")}
}

// imageResponse is a captured response for an image request.
type imageResponse struct {
	status     int
	statusText string
}

func imageResponses(responses []browser.Response) map[string]imageResponse {
	out := make(map[string]imageResponse)
	for _, r := range responses {
		if !strings.EqualFold(r.ResourceType, "image") {
			continue
		}
		out[r.URL] = imageResponse{status: r.Status, statusText: r.StatusText}
	}
	return out
}

func statusError(status int, text string) string {
	if text == "" {
		text = http.StatusText(status)
	}
	return fmt.Sprintf("HTTP %d %s", status, text)
}

// classify applies the rules in order: missing source, DOM-complete,
// captured response, then an in-page HEAD probe.
func (c *ImageChecker) classify(ctx context.Context, page browser.Page, img browser.Image, captured map[string]imageResponse) results.ImageDetail {
	src := img.EffectiveSrc()
	detail := results.ImageDetail{Src: src, Alt: img.Alt, Width: img.Width, Height: img.Height}

	if strings.TrimSpace(src) == "" {
		detail.Status = results.ImageBroken
		detail.Error = "No source URL"
		return detail
	}

	if img.Complete && img.NaturalWidth > 0 && img.NaturalHeight > 0 {
		detail.Status = results.ImageLoaded
		detail.Width, detail.Height = img.NaturalWidth, img.NaturalHeight
		return detail
	}

	if resp, ok := captured[src]; ok {
		switch {
		case resp.status >= 200 && resp.status < 300:
			detail.Status = results.ImageLoaded
		case resp.status == http.StatusNotFound:
			detail.Status = results.ImageBroken
			detail.Error = "Image not found"
		case resp.status >= 400:
			detail.Status = results.ImageFailed
			detail.Error = statusError(resp.status, resp.statusText)
		default:
			// Redirects and other non-final statuses fall through to a probe.
			return c.probe(ctx, page, detail)
		}
		return detail
	}

	return c.probe(ctx, page, detail)
}

// probe decides an image without a captured response. A probe that throws
// counts as failed, not broken.
func (c *ImageChecker) probe(ctx context.Context, page browser.Page, detail results.ImageDetail) results.ImageDetail {
	status, err := page.ProbeResource(ctx, detail.Src)
	switch {
	case err != nil:
		detail.Status = results.ImageFailed
		detail.Error = err.Error()
	case status >= 200 && status < 300:
		detail.Status = results.ImageLoaded
	default:
		detail.Status = results.ImageBroken
		detail.Error = statusError(status, "")
	}
	return detail
}

// Check visits url and classifies its images after the settle period.
func (c *ImageChecker) Check(ctx context.Context, url string) (results.ImageResult, error) {
	result := results.ImageResult{URL: url}
	page, release, err := openPage(ctx, c.driver, c.logger)
	if err != nil {
		return result, err
	}
	defer release()

	collector := NewCollector()
	if err := collector.Start(page); err != nil {
		return result, err
	}
	defer collector.Stop()

	if err := page.Navigate(ctx, url); err != nil {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		result.Errors = append(result.Errors, fmt.Sprintf("Navigation failed: %v", err))
		result.Finalize()
		return result, nil
	}

	if err := sleep(ctx, c.settings.ImageSettle); err != nil {
		return result, err
	}

	images, err := page.Images(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		result.Errors = append(result.Errors, fmt.Sprintf("Image enumeration failed: %v", err))
		result.Finalize()
		return result, nil
	}

	captured := imageResponses(collector.Stop().Responses)
	missingAlt := 0
	for _, img := range images {
		detail := c.classify(ctx, page, img, captured)
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		result.Images.Details = append(result.Images.Details, detail)
		if strings.TrimSpace(img.Alt) == "" {
			missingAlt++
		}
	}
	if missingAlt > 0 {
		result.Errors = append(result.Errors, fmt.Sprintf("%d image(s) missing alt text", missingAlt))
	}

	result.Finalize()
	c.logger.Debug("Images checked.",
		zap.String("url", url),
		zap.Bool("success", result.Success),
		zap.Int("total", result.Images.Total),
		zap.Int("loaded", result.Images.Loaded),
		zap.Int("failed", result.Images.Failed),
		zap.Int("broken", result.Images.Broken),
	)
	return result, nil
}
