package cmd

import (
	"encoding/json"
	"io"

	"github.com/connesc/pbosign/internal/batch"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
)

var (
	outputFlags pflag.FlagSet
	compact     = outputFlags.BoolP("compact", "c", false, "disable pretty-printing of JSON output")
)

func newEncoder(w io.Writer) *json.Encoder {
	encoder := json.NewEncoder(w)
	if !*compact {
		encoder.SetIndent("", "  ")
	}
	encoder.SetEscapeHTML(false)
	return encoder
}

// printSummary writes the summary as JSON. A batch with failed items yields an exitError with
// code exitFailures.
func printSummary(w io.Writer, summary *batch.Summary) error {
	if err := newEncoder(w).Encode(summary); err != nil {
		return err
	}
	if summary.Failed > 0 {
		return &exitError{
			code: exitFailures,
			err:  errors.Errorf("%d of %d items failed", summary.Failed, len(summary.Results)),
		}
	}
	return nil
}
