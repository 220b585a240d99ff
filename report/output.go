package report

import (
	"encoding/json"
	"io"

	"github.com/pkg/errors"
)

// Output writes a report to w.
type Output interface {
	Output(rep Report, w io.Writer) error
}

// TextOutput renders the fixed-width table followed by the fork profiles.
type TextOutput struct{}

func (t *TextOutput) Output(rep Report, w io.Writer) error {
	_, err := io.WriteString(w, Render(rep.Rows, rep.Summary)+RenderProfiles(rep.Forks))
	return err
}

// JSONOutput writes the report, including every raw fork result.
type JSONOutput struct{}

func (p *JSONOutput) Output(rep Report, w io.Writer) error {
	data, err := json.MarshalIndent(rep, "", "    ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

// NewOutput returns the output for "text" or "json".
func NewOutput(format string) (Output, error) {
	switch format {
	case "", "text":
		return &TextOutput{}, nil
	case "json":
		return &JSONOutput{}, nil
	default:
		return nil, errors.Errorf("unsupported output format: %s", format)
	}
}
