// File: internal/results/types.go
package results

import (
	"strings"
	"time"
)

// PassThreshold is the share of individual checks that must pass for a run
// to be considered successful. It is looser than the per-check criteria.
const PassThreshold = 0.8

// Names of the seven product page features, in report order.
const (
	FeatureTitle           = "title"
	FeaturePrice           = "price"
	FeatureDescription     = "description"
	FeatureAddToCartButton = "addToCartButton"
	FeatureVariants        = "variants"
	FeatureAvailability    = "availability"
	FeatureMetaInfo        = "metaInfo"
)

// Elements records which product page features were found.
type Elements struct {
	Title           bool `json:"title"`
	Price           bool `json:"price"`
	Description     bool `json:"description"`
	AddToCartButton bool `json:"addToCartButton"`
	Variants        bool `json:"variants"`
	Availability    bool `json:"availability"`
	MetaInfo        bool `json:"metaInfo"`
}

func (e Elements) flags() []struct {
	name    string
	present bool
} {
	return []struct {
		name    string
		present bool
	}{
		{FeatureTitle, e.Title},
		{FeaturePrice, e.Price},
		{FeatureDescription, e.Description},
		{FeatureAddToCartButton, e.AddToCartButton},
		{FeatureVariants, e.Variants},
		{FeatureAvailability, e.Availability},
		{FeatureMetaInfo, e.MetaInfo},
	}
}

// Missing lists the names of absent features in report order.
func (e Elements) Missing() []string {
	missing := []string{}
	for _, f := range e.flags() {
		if !f.present {
			missing = append(missing, f.name)
		}
	}
	return missing
}

// ProductPageResult is the outcome of the element presence check for one URL.
type ProductPageResult struct {
	URL             string   `json:"url"`
	Success         bool     `json:"success"`
	LoadTime        int64    `json:"loadTime"`
	Elements        Elements `json:"elements"`
	MissingElements []string `json:"missingElements"`
	Errors          []string `json:"errors"`
}

// Finalize derives Success and MissingElements from the feature flags and
// the error list. Checkers call it once, after every probe has run.
func (r *ProductPageResult) Finalize() {
	if r.Errors == nil {
		r.Errors = []string{}
	}
	missing := r.Elements.Missing()
	r.Success = len(missing) == 0 && len(r.Errors) == 0
	if r.Success {
		r.MissingElements = []string{}
		return
	}
	r.MissingElements = missing
}

// HasMissing reports whether a feature is listed as missing.
func (r ProductPageResult) HasMissing(feature string) bool {
	for _, m := range r.MissingElements {
		if m == feature {
			return true
		}
	}
	return false
}

// ImageStatus classifies a single image.
type ImageStatus string

const (
	ImageLoaded ImageStatus = "loaded"
	ImageFailed ImageStatus = "failed"
	ImageBroken ImageStatus = "broken"
)

// ImageDetail describes one <img> element found on the page.
type ImageDetail struct {
	Src    string      `json:"src"`
	Alt    string      `json:"alt"`
	Width  int         `json:"width"`
	Height int         `json:"height"`
	Status ImageStatus `json:"status"`
	Error  string      `json:"error,omitempty"`
}

// ImageStats aggregates the per-image classifications.
type ImageStats struct {
	Total   int           `json:"total"`
	Loaded  int           `json:"loaded"`
	Failed  int           `json:"failed"`
	Broken  int           `json:"broken"`
	Details []ImageDetail `json:"details"`
}

// ImageResult is the outcome of the image integrity check for one URL.
type ImageResult struct {
	URL     string     `json:"url"`
	Success bool       `json:"success"`
	Images  ImageStats `json:"images"`
	Errors  []string   `json:"errors"`
}

// Finalize recomputes the counts from the details and derives Success.
func (r *ImageResult) Finalize() {
	if r.Errors == nil {
		r.Errors = []string{}
	}
	if r.Images.Details == nil {
		r.Images.Details = []ImageDetail{}
	}
	stats := &r.Images
	stats.Loaded, stats.Failed, stats.Broken = 0, 0, 0
	for _, d := range stats.Details {
		switch d.Status {
		case ImageLoaded:
			stats.Loaded++
		case ImageBroken:
			stats.Broken++
		default:
			stats.Failed++
		}
	}
	stats.Total = stats.Loaded + stats.Failed + stats.Broken

	if stats.Total == 0 {
		r.Success = true
		return
	}
	r.Success = float64(stats.Loaded)/float64(stats.Total) >= 0.9 && stats.Broken == 0
}

// ConsoleLevel is the severity of a captured console entry.
type ConsoleLevel string

const (
	LevelError   ConsoleLevel = "error"
	LevelWarning ConsoleLevel = "warning"
	LevelInfo    ConsoleLevel = "info"
)

// ConsoleError is a console message or uncaught script error.
type ConsoleError struct {
	Level   ConsoleLevel `json:"level"`
	Message string       `json:"message"`
	Source  string       `json:"source"`
	Line    *int         `json:"line,omitempty"`
	Column  *int         `json:"column,omitempty"`
	Stack   string       `json:"stack,omitempty"`
}

// NetworkError is an HTTP response with status 400 or above.
type NetworkError struct {
	URL          string `json:"url"`
	Status       int    `json:"status"`
	StatusText   string `json:"statusText"`
	Method       string `json:"method"`
	ResourceType string `json:"resourceType"`
}

// ResourceKind is the coarse category of a failed subresource.
type ResourceKind string

const (
	ResourceCSS   ResourceKind = "css"
	ResourceJS    ResourceKind = "js"
	ResourceImage ResourceKind = "image"
	ResourceFont  ResourceKind = "font"
	ResourceOther ResourceKind = "other"
)

// ResourceKindFor maps a browser resource type name onto a ResourceKind.
func ResourceKindFor(resourceType string) ResourceKind {
	switch strings.ToLower(resourceType) {
	case "stylesheet":
		return ResourceCSS
	case "script":
		return ResourceJS
	case "image":
		return ResourceImage
	case "font":
		return ResourceFont
	default:
		return ResourceOther
	}
}

// ResourceError is a request that failed without a response.
type ResourceError struct {
	URL   string       `json:"url"`
	Type  ResourceKind `json:"type"`
	Error string       `json:"error"`
}

// ErrorResult is the outcome of the error observer for one URL.
type ErrorResult struct {
	URL            string          `json:"url"`
	Success        bool            `json:"success"`
	ConsoleErrors  []ConsoleError  `json:"consoleErrors"`
	NetworkErrors  []NetworkError  `json:"networkErrors"`
	ResourceErrors []ResourceError `json:"resourceErrors"`
	TotalErrors    int             `json:"totalErrors"`
}

// Finalize derives TotalErrors and Success from the collected lists.
func (r *ErrorResult) Finalize() {
	if r.ConsoleErrors == nil {
		r.ConsoleErrors = []ConsoleError{}
	}
	if r.NetworkErrors == nil {
		r.NetworkErrors = []NetworkError{}
	}
	if r.ResourceErrors == nil {
		r.ResourceErrors = []ResourceError{}
	}
	r.TotalErrors = len(r.ConsoleErrors) + len(r.NetworkErrors) + len(r.ResourceErrors)

	r.Success = true
	for _, c := range r.ConsoleErrors {
		if c.Level == LevelError {
			r.Success = false
			return
		}
	}
	for _, n := range r.NetworkErrors {
		if n.Status >= 500 {
			r.Success = false
			return
		}
	}
}

// RunSummary is derived from the three result lists by Summarize.
type RunSummary struct {
	CriticalIssues  int      `json:"criticalIssues"`
	Warnings        int      `json:"warnings"`
	Recommendations []string `json:"recommendations"`
}

// Results holds the per-URL outcomes, one entry per URL in each list.
type Results struct {
	ProductPages []ProductPageResult `json:"productPages"`
	Images       []ImageResult       `json:"images"`
	Errors       []ErrorResult       `json:"errors"`
}

// RunReport is the complete output of one run.
type RunReport struct {
	Timestamp   time.Time  `json:"timestamp"`
	BaseURL     string     `json:"baseUrl"`
	TotalTests  int        `json:"totalTests"`
	PassedTests int        `json:"passedTests"`
	FailedTests int        `json:"failedTests"`
	Duration    int64      `json:"duration"`
	Results     Results    `json:"results"`
	Summary     RunSummary `json:"summary"`
}

// SuccessRate is the share of passed checks, between 0 and 1.
func (r *RunReport) SuccessRate() float64 {
	if r.TotalTests == 0 {
		return 0
	}
	return float64(r.PassedTests) / float64(r.TotalTests)
}

// Passed reports whether the run meets PassThreshold.
func (r *RunReport) Passed() bool {
	return r.TotalTests > 0 && r.SuccessRate() >= PassThreshold
}
