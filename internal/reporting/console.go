package reporting

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/xkilldash9x/shelfcheck/internal/results"
)

// ConsoleRenderer prints the human readable run transcript. Colors are only
// emitted when w is a terminal that supports them.
type ConsoleRenderer struct{}

type consoleStyles struct {
	header  lipgloss.Style
	pass    lipgloss.Style
	fail    lipgloss.Style
	warn    lipgloss.Style
	dim     lipgloss.Style
	section lipgloss.Style
}

func newConsoleStyles(w io.Writer) consoleStyles {
	r := lipgloss.NewRenderer(w)
	return consoleStyles{
		header: r.NewStyle().Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#0066CC", Dark: "#5599FF"}),
		pass: r.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#008000", Dark: "#55FF55"}),
		fail: r.NewStyle().Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#D00000", Dark: "#FF5555"}),
		warn: r.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#B8860B", Dark: "#FFAA00"}),
		dim: r.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#666666", Dark: "#888888"}),
		section: r.NewStyle().Bold(true).Underline(true),
	}
}

func (s consoleStyles) verdict(ok bool) string {
	if ok {
		return s.pass.Render("PASS")
	}
	return s.fail.Render("FAIL")
}

func (ConsoleRenderer) Render(w io.Writer, report *results.RunReport) error {
	s := newConsoleStyles(w)
	var b strings.Builder

	fmt.Fprintln(&b, s.header.Render("Ecommerce QA Report"))
	fmt.Fprintf(&b, "%s %s\n", s.dim.Render("Site:"), report.BaseURL)
	fmt.Fprintf(&b, "%s %d ms\n\n", s.dim.Render("Duration:"), report.Duration)

	fmt.Fprintln(&b, s.section.Render("Product pages"))
	for _, r := range report.Results.ProductPages {
		fmt.Fprintf(&b, "  %s %s %s\n", s.verdict(r.Success), r.URL, s.dim.Render(fmt.Sprintf("(%d ms)", r.LoadTime)))
		if len(r.MissingElements) > 0 {
			fmt.Fprintf(&b, "       missing: %s\n", s.warn.Render(strings.Join(r.MissingElements, ", ")))
		}
		for _, e := range r.Errors {
			fmt.Fprintf(&b, "       %s\n", s.fail.Render(e))
		}
	}

	fmt.Fprintln(&b)
	fmt.Fprintln(&b, s.section.Render("Images"))
	for _, r := range report.Results.Images {
		fmt.Fprintf(&b, "  %s %s %d/%d loaded, %d failed, %d broken\n",
			s.verdict(r.Success), r.URL, r.Images.Loaded, r.Images.Total, r.Images.Failed, r.Images.Broken)
		for _, e := range r.Errors {
			fmt.Fprintf(&b, "       %s\n", s.warn.Render(e))
		}
	}

	fmt.Fprintln(&b)
	fmt.Fprintln(&b, s.section.Render("Errors"))
	for _, r := range report.Results.Errors {
		fmt.Fprintf(&b, "  %s %s %d console, %d network, %d resource\n",
			s.verdict(r.Success), r.URL, len(r.ConsoleErrors), len(r.NetworkErrors), len(r.ResourceErrors))
	}

	fmt.Fprintln(&b)
	fmt.Fprintln(&b, s.section.Render("Summary"))
	fmt.Fprintf(&b, "  Total checks:    %d\n", report.TotalTests)
	fmt.Fprintf(&b, "  Passed:          %s\n", s.pass.Render(fmt.Sprint(report.PassedTests)))
	fmt.Fprintf(&b, "  Failed:          %s\n", s.fail.Render(fmt.Sprint(report.FailedTests)))
	fmt.Fprintf(&b, "  Success rate:    %s\n", percent(report.SuccessRate()))
	fmt.Fprintf(&b, "  Critical issues: %d\n", report.Summary.CriticalIssues)
	fmt.Fprintf(&b, "  Warnings:        %d\n", report.Summary.Warnings)

	if len(report.Summary.Recommendations) > 0 {
		fmt.Fprintln(&b)
		fmt.Fprintln(&b, s.section.Render("Recommendations"))
		for _, rec := range report.Summary.Recommendations {
			fmt.Fprintf(&b, "  - %s\n", rec)
		}
	}

	fmt.Fprintln(&b)
	if report.Passed() {
		fmt.Fprintln(&b, s.pass.Render(fmt.Sprintf("Run passed (threshold %s).", percent(results.PassThreshold))))
	} else {
		fmt.Fprintln(&b, s.fail.Render(fmt.Sprintf("Run failed (threshold %s).", percent(results.PassThreshold))))
	}

	_, err := io.WriteString(w, b.String())
	return err
}
