// internal/checker/product.go
package checker

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/shelfcheck/internal/browser"
	"github.com/xkilldash9x/shelfcheck/internal/observability"
	"github.com/xkilldash9x/shelfcheck/internal/results"
)

// pricePattern is an optional currency symbol followed by a number with
// optional grouping or decimal separators.
var pricePattern = regexp.MustCompile(`[$€£¥₹]?\s*\d+(?:[.,]\d+)*`)

// heuristic pairs a selector with the predicate its first match must meet.
type heuristic struct {
	selector string
	accept   func(*browser.Element) bool
}

func hasText(el *browser.Element) bool {
	return strings.TrimSpace(el.Text) != ""
}

func looksLikePrice(el *browser.Element) bool {
	return pricePattern.MatchString(strings.TrimSpace(el.Text)) ||
		pricePattern.MatchString(strings.TrimSpace(el.Attr("content")))
}

func isDescriptive(el *browser.Element) bool {
	return len([]rune(strings.TrimSpace(el.Text))) > 10
}

func isClickable(el *browser.Element) bool {
	return el.Visible && el.Enabled
}

func isVisible(el *browser.Element) bool {
	return el.Visible
}

func each(accept func(*browser.Element) bool, selectors ...string) []heuristic {
	out := make([]heuristic, len(selectors))
	for i, s := range selectors {
		out[i] = heuristic{selector: s, accept: accept}
	}
	return out
}

var (
	titleHeuristics = each(hasText,
		`h1.product-title`,
		`h1.product_title`,
		`.product-title`,
		`.product-name`,
		`[data-testid="product-title"]`,
		`[itemprop="name"]`,
		`.product-info h1`,
		`h1`,
	)
	priceHeuristics = each(looksLikePrice,
		`.price`,
		`.product-price`,
		`[data-testid="price"]`,
		`[data-testid="product-price"]`,
		`[itemprop="price"]`,
		`.price-current`,
		`.current-price`,
		`.sale-price`,
		`.woocommerce-Price-amount`,
		`span.money`,
	)
	descriptionHeuristics = each(isDescriptive,
		`.product-description`,
		`#product-description`,
		`[data-testid="product-description"]`,
		`[itemprop="description"]`,
		`.product-details`,
		`.product__description`,
		`.description`,
	)
	addToCartHeuristics = each(isClickable,
		`button[name="add"]`,
		`#add-to-cart`,
		`button.add-to-cart`,
		`.add-to-cart-button`,
		`[data-testid="add-to-cart"]`,
		`.single_add_to_cart_button`,
		`button[name="add-to-cart"]`,
		`form[action*="cart"] button[type="submit"]`,
	)
	variantSelectors = []string{
		`select[name*="variant"]`,
		`select[name*="option"]`,
		`.variant-selector`,
		`.product-variants`,
		`.product-options select`,
		`[data-testid="variant-selector"]`,
		`.swatch`,
		`input[type="radio"][name*="option"]`,
	}
	outOfStockHeuristics = each(isVisible,
		`.out-of-stock`,
		`.sold-out`,
		`.soldout`,
		`[data-testid="out-of-stock"]`,
		`.stock.out-of-stock`,
		`.product-unavailable`,
	)
)

const metaDescriptionSelector = `meta[name="description"]`

// firstMatch walks heuristics in order and reports whether one matched. A
// selector that errors is skipped; its error is returned only if nothing
// matched.
func firstMatch(ctx context.Context, page browser.Page, heuristics []heuristic) (bool, error) {
	var firstErr error
	for _, h := range heuristics {
		el, err := page.QueryOne(ctx, h.selector)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if el != nil && h.accept(el) {
			return true, nil
		}
	}
	return false, firstErr
}

// ProductPageChecker verifies that a product page shows the elements a
// shopper needs.
type ProductPageChecker struct {
	driver browser.Driver
	logger *zap.Logger
}

// NewProductPageChecker creates a checker opening pages through driver.
func NewProductPageChecker(driver browser.Driver, logger *zap.Logger) *ProductPageChecker {
	return &ProductPageChecker{driver: driver, logger: logger.Named("product_checker")}
}

type featureProbe struct {
	name string
	run  func(ctx context.Context, page browser.Page) (bool, error)
	set  func(e *results.Elements, present bool)
}

var featureProbes = []featureProbe{
	{
		name: results.FeatureTitle,
		run:  func(ctx context.Context, p browser.Page) (bool, error) { return firstMatch(ctx, p, titleHeuristics) },
		set:  func(e *results.Elements, v bool) { e.Title = v },
	},
	{
		name: results.FeaturePrice,
		run:  func(ctx context.Context, p browser.Page) (bool, error) { return firstMatch(ctx, p, priceHeuristics) },
		set:  func(e *results.Elements, v bool) { e.Price = v },
	},
	{
		name: results.FeatureDescription,
		run:  func(ctx context.Context, p browser.Page) (bool, error) { return firstMatch(ctx, p, descriptionHeuristics) },
		set:  func(e *results.Elements, v bool) { e.Description = v },
	},
	{
		name: results.FeatureAddToCartButton,
		run:  func(ctx context.Context, p browser.Page) (bool, error) { return firstMatch(ctx, p, addToCartHeuristics) },
		set:  func(e *results.Elements, v bool) { e.AddToCartButton = v },
	},
	{
		name: results.FeatureVariants,
		run:  probeVariants,
		set:  func(e *results.Elements, v bool) { e.Variants = v },
	},
	{
		name: results.FeatureAvailability,
		run:  probeAvailability,
		set:  func(e *results.Elements, v bool) { e.Availability = v },
	},
	{
		name: results.FeatureMetaInfo,
		run:  probeMetaInfo,
		set:  func(e *results.Elements, v bool) { e.MetaInfo = v },
	},
}

// probeVariants treats a page without any variant picker as a single
// variant product, which is fine.
func probeVariants(ctx context.Context, page browser.Page) (bool, error) {
	for _, selector := range variantSelectors {
		n, err := page.Count(ctx, selector)
		if err != nil {
			return false, err
		}
		if n > 0 {
			return true, nil
		}
	}
	return true, nil
}

// probeAvailability is true unless a visible out-of-stock marker exists.
func probeAvailability(ctx context.Context, page browser.Page) (bool, error) {
	soldOut, err := firstMatch(ctx, page, outOfStockHeuristics)
	if err != nil {
		return false, err
	}
	return !soldOut, nil
}

func probeMetaInfo(ctx context.Context, page browser.Page) (bool, error) {
	title, err := page.Title(ctx)
	if err != nil {
		return false, err
	}
	meta, err := page.QueryOne(ctx, metaDescriptionSelector)
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(title) != "" && strings.TrimSpace(meta.Attr("content")) != "", nil
}

// Check visits url and evaluates every feature probe. Probe failures are
// recorded in the result; only failing to open a page or a canceled ctx
// is returned as an error.
func (c *ProductPageChecker) Check(ctx context.Context, url string) (results.ProductPageResult, error) {
	result := results.ProductPageResult{URL: url}
	page, release, err := openPage(ctx, c.driver, c.logger)
	if err != nil {
		return result, err
	}
	defer release()

	start := time.Now()
	navErr := page.Navigate(ctx, url)
	loadTime := time.Since(start)
	result.LoadTime = loadTime.Milliseconds()
	if ctx.Err() != nil {
		return result, ctx.Err()
	}
	if navErr != nil {
		c.logger.Debug("Navigation failed.", zap.String("url", url), zap.Error(navErr))
		result.Errors = append(result.Errors, fmt.Sprintf("Navigation failed: %v", navErr))
		result.Finalize()
		return result, nil
	}
	observability.RecordPageLoad(loadTime)

	for _, probe := range featureProbes {
		present, err := probe.run(ctx, page)
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s check failed: %v", probe.name, err))
			present = false
		}
		probe.set(&result.Elements, present)
	}

	result.Finalize()
	c.logger.Debug("Product page checked.",
		zap.String("url", url),
		zap.Bool("success", result.Success),
		zap.Int64("load_time_ms", result.LoadTime),
		zap.Strings("missing", result.MissingElements),
	)
	return result, nil
}
