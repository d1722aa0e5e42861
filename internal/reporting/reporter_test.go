// internal/reporting/reporter_test.go
package reporting_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/shelfcheck/internal/reporting"
	"github.com/xkilldash9x/shelfcheck/internal/results"
)

const (
	widgetURL = "https://shop.test/products/widget"
	gadgetURL = "https://shop.test/products/gadget"
)

// sampleReport has one healthy page and one page failing every check.
func sampleReport() *results.RunReport {
	line := 12
	res := results.Results{
		ProductPages: []results.ProductPageResult{
			{URL: widgetURL, LoadTime: 850, Elements: results.Elements{
				Title: true, Price: true, Description: true, AddToCartButton: true,
				Variants: true, Availability: true, MetaInfo: true,
			}},
			{URL: gadgetURL, LoadTime: 1400, Elements: results.Elements{
				Title: true, Description: true, Variants: true, Availability: true, MetaInfo: true,
			}},
		},
		Images: []results.ImageResult{
			{URL: widgetURL, Images: results.ImageStats{Details: []results.ImageDetail{
				{Src: "https://cdn.shop.test/w.jpg", Alt: "widget", Status: results.ImageLoaded},
			}}},
			{URL: gadgetURL, Images: results.ImageStats{Details: []results.ImageDetail{
				{Src: "https://cdn.shop.test/g.jpg", Alt: "gadget", Status: results.ImageBroken, Error: "Image not found"},
			}}},
		},
		Errors: []results.ErrorResult{
			{URL: widgetURL},
			{URL: gadgetURL, ConsoleErrors: []results.ConsoleError{
				{Level: results.LevelError, Message: "<script>alert(1)</script>", Source: "https://shop.test/app.js", Line: &line},
			}},
		},
	}
	for i := range res.ProductPages {
		res.ProductPages[i].Finalize()
	}
	for i := range res.Images {
		res.Images[i].Finalize()
	}
	for i := range res.Errors {
		res.Errors[i].Finalize()
	}

	return &results.RunReport{
		Timestamp:   time.Date(2024, 3, 5, 14, 7, 9, 123_000_000, time.UTC),
		BaseURL:     "https://shop.test",
		TotalTests:  6,
		PassedTests: 3,
		FailedTests: 3,
		Duration:    9876,
		Results:     res,
		Summary:     results.Summarize(res),
	}
}

func TestNew(t *testing.T) {
	for _, format := range []string{"json", "html", "text", "JSON"} {
		r, err := reporting.New(format)
		require.NoError(t, err, format)
		assert.NotNil(t, r)
	}

	r, err := reporting.New("sarif")
	assert.Nil(t, r)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported output format: sarif")
}

func TestBaseName(t *testing.T) {
	ts := time.Date(2024, 3, 5, 14, 7, 9, 123_000_000, time.UTC)
	assert.Equal(t, "ecommerce-test-report-2024-03-05T14-07-09-123Z", reporting.BaseName(ts))

	// Local times are converted to UTC first.
	plusTwo := time.FixedZone("UTC+2", 2*60*60)
	assert.Equal(t, "ecommerce-test-report-2024-03-05T14-07-09-123Z", reporting.BaseName(ts.In(plusTwo)))

	name := reporting.BaseName(time.Now())
	assert.NotContains(t, name, ":")
	assert.NotContains(t, name, ".")
}

func TestJSONRenderer(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, reporting.JSONRenderer{}.Render(&buf, sampleReport()))

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "https://shop.test", doc["baseUrl"])
	assert.EqualValues(t, 6, doc["totalTests"])
	assert.EqualValues(t, 9876, doc["duration"])
	assert.Equal(t, "2024-03-05T14:07:09.123Z", doc["timestamp"])

	res := doc["results"].(map[string]interface{})
	assert.Len(t, res["productPages"], 2)
	assert.Len(t, res["images"], 2)
	assert.Len(t, res["errors"], 2)

	// The document decodes back into the report it came from.
	var back results.RunReport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &back))
	assert.Equal(t, []string{results.FeaturePrice, results.FeatureAddToCartButton}, back.Results.ProductPages[1].MissingElements)
	assert.Equal(t, sampleReport().Summary, back.Summary)
}

func TestHTMLRenderer(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, reporting.HTMLRenderer{}.Render(&buf, sampleReport()))
	assert.NotContains(t, buf.String(), "<script>alert(1)</script>", "page content must be escaped")

	doc, err := goquery.NewDocumentFromReader(&buf)
	require.NoError(t, err)

	assert.True(t, doc.Find("#verdict").HasClass("failed"))
	assert.Equal(t, "FAILED", doc.Find("#verdict").Text())

	stat := func(name string) string {
		return strings.TrimSpace(doc.Find(`#summary [data-stat="` + name + `"] .value`).Text())
	}
	assert.Equal(t, "6", stat("total"))
	assert.Equal(t, "3", stat("passed"))
	assert.Equal(t, "3", stat("failed"))
	assert.Equal(t, "50.0%", stat("success-rate"))

	rows := doc.Find("#product-pages tbody tr")
	require.Equal(t, 2, rows.Length())
	assert.True(t, rows.Eq(0).HasClass("passed"))
	assert.True(t, rows.Eq(1).HasClass("failed"))
	assert.Equal(t, gadgetURL, rows.Eq(1).AttrOr("data-url", ""))
	assert.Equal(t, "price, addToCartButton", strings.TrimSpace(rows.Eq(1).Find("td.missing").Text()))

	img := doc.Find(`#images tbody tr[data-url="` + gadgetURL + `"]`)
	assert.Equal(t, "1", img.Find("td.broken").Text())

	consoleCell := doc.Find(`#errors tbody tr[data-url="` + gadgetURL + `"] td.console li`)
	assert.Equal(t, "[error] <script>alert(1)</script>", consoleCell.Text())

	recs := doc.Find("#recommendations li")
	assert.Equal(t, len(sampleReport().Summary.Recommendations), recs.Length())
	assert.Contains(t, recs.Text(), results.RecommendPrice)
}

func TestHTMLRendererPassingRun(t *testing.T) {
	report := sampleReport()
	report.Results.ProductPages = report.Results.ProductPages[:1]
	report.Results.Images = report.Results.Images[:1]
	report.Results.Errors = report.Results.Errors[:1]
	report.TotalTests, report.PassedTests, report.FailedTests = 3, 3, 0
	report.Summary = results.Summarize(report.Results)

	var buf bytes.Buffer
	require.NoError(t, reporting.HTMLRenderer{}.Render(&buf, report))
	doc, err := goquery.NewDocumentFromReader(&buf)
	require.NoError(t, err)

	assert.True(t, doc.Find("#verdict").HasClass("passed"))
	assert.True(t, doc.Find("#recommendations").HasClass("empty"))
	assert.Equal(t, 0, doc.Find("#recommendations li").Length())
}

func TestConsoleRenderer(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, reporting.ConsoleRenderer{}.Render(&buf, sampleReport()))
	out := buf.String()

	assert.NotContains(t, out, "\x1b[", "no escape codes when not writing to a terminal")
	assert.Contains(t, out, "PASS "+widgetURL)
	assert.Contains(t, out, "FAIL "+gadgetURL)
	assert.Contains(t, out, "missing: price, addToCartButton")
	assert.Contains(t, out, "0/1 loaded, 0 failed, 1 broken")
	assert.Contains(t, out, "Success rate:    50.0%")
	assert.Contains(t, out, "- "+results.RecommendAddToCart)
	assert.Contains(t, out, "Run failed (threshold 80.0%).")
}

func TestWriteFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "reports")
	report := sampleReport()

	paths, err := reporting.WriteFiles(dir, report)
	require.NoError(t, err)

	base := filepath.Join(dir, "ecommerce-test-report-2024-03-05T14-07-09-123Z")
	assert.Equal(t, base+".json", paths.JSON)
	assert.Equal(t, base+".html", paths.HTML)

	raw, err := os.ReadFile(paths.JSON)
	require.NoError(t, err)
	var back results.RunReport
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, report.PassedTests, back.PassedTests)

	html, err := os.ReadFile(paths.HTML)
	require.NoError(t, err)
	assert.Contains(t, string(html), "<!DOCTYPE html>")
}

func TestWriteFilesUnwritableDirectory(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	_, err := reporting.WriteFiles(filepath.Join(blocker, "reports"), sampleReport())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create output directory")
}
