package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/declara-dev/declara/internal/failure"
	"github.com/declara-dev/declara/internal/importer"
	"github.com/declara-dev/declara/internal/model"
	"github.com/declara-dev/declara/internal/pipeline"
	"github.com/declara-dev/declara/internal/review"
)

func newLinesCommand(g *globalOptions) *cobra.Command {
	var (
		form   string
		output string
		check  string
	)

	cmd := &cobra.Command{
		Use:   "lines " + inputUsage,
		Short: "Export the declaration lines of a form as CSV for review",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := g.load(cmd)
			if err != nil {
				return err
			}
			if _, ok := cfg.Form(model.FormID(form)); !ok {
				return failure.Config("form", "unknown form %q (aeat720 or d6)", form)
			}
			inputs, err := readInputs(args)
			if err != nil {
				return err
			}
			svc, err := cfg.BrokerService()
			if err != nil {
				return err
			}
			src, err := cfg.RateSource()
			if err != nil {
				return err
			}

			stmts, diags, err := pipeline.ParseAll(inputs, importer.DefaultRegistry(), svc, importer.Options{})
			if err != nil {
				return err
			}
			if len(diags) > 0 {
				logger.Warn("rows skipped", "count", len(diags))
			}
			lines, err := pipeline.Lines(model.FormID(form), stmts, cfg, src)
			if err != nil {
				return err
			}

			if check != "" {
				return checkLines(cmd.OutOrStdout(), check, lines)
			}

			var w io.Writer = cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("creating %s: %w", output, err)
				}
				defer f.Close()
				w = f
			}
			if err := review.WriteLines(w, lines); err != nil {
				return err
			}
			logger.Info("lines exported", "form", form, "lines", len(lines))
			return nil
		},
	}

	cmd.Flags().StringVar(&form, "form", string(model.FormForeignAssets), "form to export (aeat720 or d6)")
	cmd.Flags().StringVarP(&output, "output", "o", "-", "CSV file, - for stdout")
	cmd.Flags().StringVar(&check, "check", "", "compare a reviewed CSV with the lines the inputs produce instead of exporting")
	return cmd
}

// checkLines reports every difference between the reviewed export at path
// and lines. Any difference is an input failure.
func checkLines(w io.Writer, path string, lines []model.DeclarationLine) error {
	f, err := os.Open(path)
	if err != nil {
		return failure.Input(path, 0, "", "%v", err)
	}
	defer f.Close()
	reviewed, err := review.ReadLines(f)
	if err != nil {
		return failure.Input(path, 0, "", "%v", err)
	}

	diffs := review.Compare(reviewed, lines)
	if len(diffs) == 0 {
		fmt.Fprintf(w, "%d lines match %s\n", len(lines), path)
		return nil
	}
	for _, d := range diffs {
		fmt.Fprintln(w, d)
	}
	first := diffs[0]
	// CSV line numbers count the header.
	return failure.Input(path, first.Line+1, first.Field, "%d differences from the reviewed lines", len(diffs))
}
