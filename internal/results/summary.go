package results

import "fmt"

// Fixed recommendation texts.
const (
	RecommendAddToCart = "Ensure the add-to-cart button is present, visible and enabled on every product page"
	RecommendPrice     = "Display product prices in a recognizable currency format"
	RecommendConsole   = "Resolve JavaScript console errors and warnings raised on product pages"
	RecommendNetwork   = "Investigate failed network requests returning HTTP error statuses"
)

// RecommendImages is the recommendation for a page with n bad images.
func RecommendImages(n int) string {
	if n == 1 {
		return "Fix 1 broken or failing image"
	}
	return fmt.Sprintf("Fix %d broken or failing images", n)
}

// Summarize scans the three result lists and derives the run summary.
// Recommendations are deduplicated keeping first-occurrence order.
func Summarize(r Results) RunSummary {
	summary := RunSummary{Recommendations: []string{}}
	seen := make(map[string]struct{})
	recommend := func(text string) {
		if _, ok := seen[text]; ok {
			return
		}
		seen[text] = struct{}{}
		summary.Recommendations = append(summary.Recommendations, text)
	}

	for _, p := range r.ProductPages {
		if p.Success {
			continue
		}
		summary.CriticalIssues++
		if p.HasMissing(FeatureAddToCartButton) {
			recommend(RecommendAddToCart)
		}
		if p.HasMissing(FeaturePrice) {
			recommend(RecommendPrice)
		}
	}

	for _, img := range r.Images {
		if bad := img.Images.Failed + img.Images.Broken; bad > 0 {
			summary.Warnings++
			recommend(RecommendImages(bad))
		}
	}

	for _, e := range r.Errors {
		if len(e.ConsoleErrors) > 0 {
			summary.Warnings++
			recommend(RecommendConsole)
		}
		if len(e.NetworkErrors) > 0 {
			summary.CriticalIssues++
			recommend(RecommendNetwork)
		}
	}

	return summary
}
