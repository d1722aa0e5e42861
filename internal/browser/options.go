package browser

import (
	"fmt"
	"net/url"
	"runtime"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/xkilldash9x/shelfcheck/internal/config"
)

// DefaultUserAgent is the fixed desktop user agent presented to every site.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"

const (
	defaultNavigationTimeout = 30 * time.Second
	defaultIdleQuietPeriod   = 500 * time.Millisecond
)

// Options configures the browser process and its browsing context.
type Options struct {
	// BaseURL scopes cookies that carry no domain of their own.
	BaseURL         string
	Headless        bool
	Viewport        config.Viewport
	UserAgent       string
	Headers         map[string]string
	Cookies         []config.Cookie
	IgnoreTLSErrors bool
	// NavigationTimeout bounds Navigate including the idle wait.
	NavigationTimeout time.Duration
	// IdleQuietPeriod is how long the network must be silent to count as idle.
	IdleQuietPeriod time.Duration
	// ExecPath overrides the Chrome binary lookup.
	ExecPath string
}

// OptionsFromRun derives driver options from a run configuration.
func OptionsFromRun(run config.TestConfiguration) Options {
	return Options{
		BaseURL:           run.BaseURL,
		Headless:          run.Headless,
		Viewport:          run.Viewport,
		UserAgent:         DefaultUserAgent,
		Headers:           run.Headers,
		Cookies:           run.Cookies,
		IgnoreTLSErrors:   true,
		NavigationTimeout: run.Timeout,
		IdleQuietPeriod:   defaultIdleQuietPeriod,
		ExecPath:          run.ChromePath,
	}
}

func (o Options) withDefaults() Options {
	if o.UserAgent == "" {
		o.UserAgent = DefaultUserAgent
	}
	if o.NavigationTimeout <= 0 {
		o.NavigationTimeout = defaultNavigationTimeout
	}
	if o.IdleQuietPeriod <= 0 {
		o.IdleQuietPeriod = defaultIdleQuietPeriod
	}
	if o.Viewport.Width <= 0 || o.Viewport.Height <= 0 {
		o.Viewport = config.Viewport{Width: 1920, Height: 1080}
	}
	return o
}

// allocatorFlags lists the command line switches passed to Chrome.
func allocatorFlags(o Options) map[string]interface{} {
	flags := map[string]interface{}{
		"headless":                  o.Headless,
		"ignore-certificate-errors": o.IgnoreTLSErrors,
		"enable-automation":         false,
		"disable-blink-features":    "AutomationControlled",
		"disable-extensions":        true,
		"disable-gpu":               o.Headless,
		"hide-scrollbars":           true,
		"mute-audio":                true,
	}
	// Containers usually lack the kernel features the sandbox needs.
	if runtime.GOOS == "linux" {
		flags["no-sandbox"] = true
		flags["disable-dev-shm-usage"] = true
		flags["disable-setuid-sandbox"] = true
	}
	return flags
}

// allocatorOptions assembles the exec allocator configuration.
func allocatorOptions(o Options) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	for name, value := range allocatorFlags(o) {
		opts = append(opts, chromedp.Flag(name, value))
	}
	opts = append(opts,
		chromedp.UserAgent(o.UserAgent),
		chromedp.WindowSize(o.Viewport.Width, o.Viewport.Height),
	)
	if o.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(o.ExecPath))
	}
	return opts
}

// cookieParams converts configured cookies for Network.setCookies. Cookies
// without a domain are bound to the base URL.
func cookieParams(o Options) ([]*network.CookieParam, error) {
	params := make([]*network.CookieParam, 0, len(o.Cookies))
	for _, c := range o.Cookies {
		p := &network.CookieParam{Name: c.Name, Value: c.Value, Path: c.Path}
		if p.Path == "" {
			p.Path = "/"
		}
		if c.Domain != "" {
			p.Domain = c.Domain
		} else {
			u, err := url.Parse(o.BaseURL)
			if err != nil || u.Host == "" {
				return nil, fmt.Errorf("cookie %q has no domain and base URL %q is unusable", c.Name, o.BaseURL)
			}
			p.URL = u.Scheme + "://" + u.Host
		}
		params = append(params, p)
	}
	return params, nil
}

func headerMap(headers map[string]string) network.Headers {
	h := make(network.Headers, len(headers))
	for k, v := range headers {
		h[k] = v
	}
	return h
}
