package results

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func allPresent() Elements {
	return Elements{
		Title: true, Price: true, Description: true, AddToCartButton: true,
		Variants: true, Availability: true, MetaInfo: true,
	}
}

func intPtr(i int) *int { return &i }

// -- ProductPageResult --

func TestProductPageResultFinalize(t *testing.T) {
	t.Run("all features present and no errors", func(t *testing.T) {
		r := ProductPageResult{URL: "https://shop.test/p/1", Elements: allPresent()}
		r.Finalize()

		assert.True(t, r.Success)
		assert.Empty(t, r.MissingElements)
		assert.NotNil(t, r.Errors)
	})

	t.Run("missing features listed in report order", func(t *testing.T) {
		e := allPresent()
		e.AddToCartButton = false
		e.Price = false
		r := ProductPageResult{Elements: e}
		r.Finalize()

		assert.False(t, r.Success)
		assert.Equal(t, []string{FeaturePrice, FeatureAddToCartButton}, r.MissingElements)
		assert.True(t, r.HasMissing(FeaturePrice))
		assert.False(t, r.HasMissing(FeatureTitle))
	})

	t.Run("errors alone fail the result", func(t *testing.T) {
		r := ProductPageResult{Elements: allPresent(), Errors: []string{"title probe: context canceled"}}
		r.Finalize()

		assert.False(t, r.Success)
		assert.Empty(t, r.MissingElements)
	})

	t.Run("navigation failure reports every feature missing", func(t *testing.T) {
		r := ProductPageResult{Errors: []string{"navigation failed"}}
		r.Finalize()

		assert.False(t, r.Success)
		assert.Len(t, r.MissingElements, 7)
	})
}

// -- ImageResult --

func details(statuses ...ImageStatus) []ImageDetail {
	out := make([]ImageDetail, len(statuses))
	for i, s := range statuses {
		out[i] = ImageDetail{Src: "https://cdn.test/img.png", Status: s}
	}
	return out
}

func repeat(s ImageStatus, n int) []ImageStatus {
	out := make([]ImageStatus, n)
	for i := range out {
		out[i] = s
	}
	return out
}

func TestImageResultFinalize(t *testing.T) {
	cases := []struct {
		name     string
		statuses []ImageStatus
		success  bool
	}{
		{"no images", nil, true},
		{"all loaded", repeat(ImageLoaded, 5), true},
		{"nine of ten loaded one failed", append(repeat(ImageLoaded, 9), ImageFailed), true},
		{"nine of ten loaded one broken", append(repeat(ImageLoaded, 9), ImageBroken), false},
		{"below ninety percent", append(repeat(ImageLoaded, 8), ImageFailed, ImageFailed), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := ImageResult{Images: ImageStats{Total: 99, Loaded: 42, Details: details(tc.statuses...)}}
			r.Finalize()

			assert.Equal(t, tc.success, r.Success)
			assert.Equal(t, len(tc.statuses), r.Images.Total)
			assert.Equal(t, r.Images.Total, r.Images.Loaded+r.Images.Failed+r.Images.Broken)
		})
	}
}

// -- ErrorResult --

func TestErrorResultFinalize(t *testing.T) {
	t.Run("warnings and client errors do not fail", func(t *testing.T) {
		r := ErrorResult{
			ConsoleErrors:  []ConsoleError{{Level: LevelWarning, Message: "deprecated API"}},
			NetworkErrors:  []NetworkError{{URL: "https://shop.test/x", Status: 404}},
			ResourceErrors: []ResourceError{{URL: "https://cdn.test/a.css", Type: ResourceCSS, Error: "net::ERR_FAILED"}},
		}
		r.Finalize()

		assert.True(t, r.Success)
		assert.Equal(t, 3, r.TotalErrors)
	})

	t.Run("console error fails", func(t *testing.T) {
		r := ErrorResult{ConsoleErrors: []ConsoleError{{Level: LevelError, Message: "boom", Line: intPtr(3)}}}
		r.Finalize()
		assert.False(t, r.Success)
		assert.Equal(t, 1, r.TotalErrors)
	})

	t.Run("server error fails", func(t *testing.T) {
		r := ErrorResult{NetworkErrors: []NetworkError{{Status: 503, StatusText: "Service Unavailable"}}}
		r.Finalize()
		assert.False(t, r.Success)
	})

	t.Run("empty lists serialize as arrays", func(t *testing.T) {
		r := ErrorResult{URL: "https://shop.test/p/1"}
		r.Finalize()
		raw, err := json.Marshal(r)
		require.NoError(t, err)
		assert.Contains(t, string(raw), `"consoleErrors":[]`)
		assert.NotContains(t, string(raw), `"line"`)
	})
}

func TestResourceKindFor(t *testing.T) {
	assert.Equal(t, ResourceCSS, ResourceKindFor("Stylesheet"))
	assert.Equal(t, ResourceJS, ResourceKindFor("Script"))
	assert.Equal(t, ResourceImage, ResourceKindFor("Image"))
	assert.Equal(t, ResourceFont, ResourceKindFor("Font"))
	assert.Equal(t, ResourceOther, ResourceKindFor("XHR"))
}

// -- Summary --

func TestSummarize(t *testing.T) {
	t.Run("clean run", func(t *testing.T) {
		s := Summarize(Results{
			ProductPages: []ProductPageResult{{Success: true}},
			Images:       []ImageResult{{Success: true}},
			Errors:       []ErrorResult{{Success: true}},
		})
		assert.Zero(t, s.CriticalIssues)
		assert.Zero(t, s.Warnings)
		assert.Empty(t, s.Recommendations)
	})

	t.Run("product page failures", func(t *testing.T) {
		e := allPresent()
		e.Price, e.AddToCartButton = false, false
		page := ProductPageResult{Elements: e}
		page.Finalize()

		s := Summarize(Results{ProductPages: []ProductPageResult{page}})
		assert.Equal(t, 1, s.CriticalIssues)
		assert.Equal(t, []string{RecommendAddToCart, RecommendPrice}, s.Recommendations)
	})

	t.Run("image and error findings", func(t *testing.T) {
		img := ImageResult{Images: ImageStats{Details: append(details(repeat(ImageLoaded, 9)...), details(ImageBroken)...)}}
		img.Finalize()
		errs := ErrorResult{
			ConsoleErrors: []ConsoleError{{Level: LevelError}},
			NetworkErrors: []NetworkError{{Status: 503}},
		}
		errs.Finalize()

		s := Summarize(Results{Images: []ImageResult{img}, Errors: []ErrorResult{errs}})
		assert.Equal(t, 1, s.CriticalIssues)
		assert.Equal(t, 2, s.Warnings)
		assert.Equal(t, []string{RecommendImages(1), RecommendConsole, RecommendNetwork}, s.Recommendations)
	})

	t.Run("recommendations are deduplicated", func(t *testing.T) {
		bad := ProductPageResult{Elements: Elements{}}
		bad.Finalize()
		netErr := ErrorResult{NetworkErrors: []NetworkError{{Status: 500}}}
		netErr.Finalize()

		s := Summarize(Results{
			ProductPages: []ProductPageResult{bad, bad, bad},
			Errors:       []ErrorResult{netErr, netErr},
		})
		assert.Equal(t, 5, s.CriticalIssues)
		seen := map[string]bool{}
		for _, r := range s.Recommendations {
			assert.False(t, seen[r], "duplicate recommendation %q", r)
			seen[r] = true
		}
		assert.Len(t, s.Recommendations, 3)
	})
}

func TestRecommendImages(t *testing.T) {
	assert.Equal(t, "Fix 1 broken or failing image", RecommendImages(1))
	assert.Equal(t, "Fix 3 broken or failing images", RecommendImages(3))
}

// -- RunReport --

func TestRunReportPassed(t *testing.T) {
	assert.True(t, (&RunReport{TotalTests: 6, PassedTests: 5}).Passed(), "five of six passes")
	assert.False(t, (&RunReport{TotalTests: 6, PassedTests: 4}).Passed(), "four of six fails")
	assert.True(t, (&RunReport{TotalTests: 5, PassedTests: 4}).Passed(), "exactly the threshold passes")
	assert.False(t, (&RunReport{}).Passed())
	assert.InDelta(t, 0.5, (&RunReport{TotalTests: 6, PassedTests: 3}).SuccessRate(), 1e-9)
}
