package commands

import (
	"os"
	"strings"
	"time"

	"github.com/declara-dev/declara/internal/diaglog"
	"github.com/declara-dev/declara/internal/failure"
	"github.com/declara-dev/declara/internal/pipeline"
)

const inputUsage = "FORMAT=PATH..."

// readInputs loads the FORMAT=PATH arguments.
func readInputs(args []string) ([]pipeline.Input, error) {
	inputs := make([]pipeline.Input, 0, len(args))
	for _, a := range args {
		format, path, ok := strings.Cut(a, "=")
		if !ok || format == "" || path == "" {
			return nil, failure.Input(a, 0, "", "want FORMAT=PATH, e.g. degiro=informe_2023.txt")
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, failure.Input(path, 0, "", "%v", err)
		}
		inputs = append(inputs, pipeline.Input{Name: path, Format: format, Data: data})
	}
	return inputs, nil
}

func diagEntries(diags []pipeline.Diagnostic, now time.Time) []diaglog.Entry {
	entries := make([]diaglog.Entry, len(diags))
	for i, d := range diags {
		entries[i] = diaglog.Entry{
			Timestamp: now,
			Input:     d.Input,
			Format:    d.Format,
			Line:      d.Line,
			Field:     d.Field,
			Reason:    d.Reason,
		}
	}
	return entries
}
