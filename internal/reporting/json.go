package reporting

import (
	"io"

	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/shelfcheck/internal/results"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// JSONRenderer writes the full report as indented JSON.
type JSONRenderer struct{}

func (JSONRenderer) Render(w io.Writer, report *results.RunReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
