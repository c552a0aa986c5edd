package formats

import (
	"encoding/json"
	"fmt"

	"mwcheck/internal/core/report"
)

// JSONRenderer emits the report verbatim for downstream tooling. The schema
// is the report package's wire shape, indented for diffability.
type JSONRenderer struct{}

func NewJSONRenderer() *JSONRenderer {
	return &JSONRenderer{}
}

func (j *JSONRenderer) Render(rep report.Report) ([]byte, error) {
	out, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}
	return append(out, '\n'), nil
}
