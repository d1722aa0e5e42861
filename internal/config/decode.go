package config

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/viper"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var durationType = reflect.TypeOf(time.Duration(0))

// millisecondsHook lets bare numbers stand for milliseconds wherever a
// duration is expected, so `timeout: 30000`, `--timeout 30000` and
// SHELFCHECK_RUN_TIMEOUT=30000 all mean 30s.
func millisecondsHook(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if to != durationType {
		return data, nil
	}
	switch from.Kind() {
	case reflect.String:
		raw := strings.TrimSpace(reflect.ValueOf(data).String())
		if !isDigits(raw) {
			return data, nil
		}
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("duration %q: %w", raw, err)
		}
		return time.Duration(ms) * time.Millisecond, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return time.Duration(reflect.ValueOf(data).Int()) * time.Millisecond, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return time.Duration(reflect.ValueOf(data).Uint()) * time.Millisecond, nil
	case reflect.Float32, reflect.Float64:
		return time.Duration(reflect.ValueOf(data).Float() * float64(time.Millisecond)), nil
	}
	return data, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// DecodeHook is the viper decode option used for every Unmarshal in the app.
func DecodeHook() viper.DecoderConfigOption {
	return viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		millisecondsHook,
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
}

// testConfigurationWire is the JSON shape accepted over HTTP. Durations are
// integers in milliseconds.
type testConfigurationWire struct {
	BaseURL        string            `json:"baseUrl"`
	ProductURLs    []string          `json:"productUrls"`
	Timeout        int64             `json:"timeout"`
	Retries        int               `json:"retries"`
	Viewport       Viewport          `json:"viewport"`
	Headless       *bool             `json:"headless"`
	Headers        map[string]string `json:"headers"`
	Cookies        []Cookie          `json:"cookies"`
	OutputDir      string            `json:"outputDir"`
	GenerateReport *bool             `json:"generateReport"`
	Verbose        bool              `json:"verbose"`
}

// UnmarshalJSON decodes the HTTP payload form. Omitted booleans default to
// headless browsing with report generation.
func (c *TestConfiguration) UnmarshalJSON(data []byte) error {
	var w testConfigurationWire
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	*c = TestConfiguration{
		BaseURL:        w.BaseURL,
		ProductURLs:    w.ProductURLs,
		Timeout:        time.Duration(w.Timeout) * time.Millisecond,
		Retries:        w.Retries,
		Viewport:       w.Viewport,
		Headless:       w.Headless == nil || *w.Headless,
		Headers:        w.Headers,
		Cookies:        w.Cookies,
		OutputDir:      w.OutputDir,
		GenerateReport: w.GenerateReport == nil || *w.GenerateReport,
		Verbose:        w.Verbose,
	}
	return nil
}
