package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/declara-dev/declara/internal/diaglog"
	"github.com/declara-dev/declara/internal/failure"
	"github.com/declara-dev/declara/internal/gitops"
	"github.com/declara-dev/declara/internal/pipeline"
	"github.com/declara-dev/declara/internal/taxrules"
)

func newGenerateCommand(g *globalOptions) *cobra.Command {
	var (
		outDir string
		strict bool
		commit bool
	)

	cmd := &cobra.Command{
		Use:   "generate " + inputUsage,
		Short: "Build the fixed-width files of every enabled form",
		Long: "Runs the whole pipeline and writes <out>/<form>.txt for each form that has to be filed.\n" +
			"Skipped rows are appended to <out>/logs/diagnostics.csv.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := g.load(cmd)
			if err != nil {
				return err
			}
			inputs, err := readInputs(args)
			if err != nil {
				return err
			}

			res, err := pipeline.Run(inputs, cfg, pipeline.Options{Strict: strict})
			if err != nil {
				return err
			}

			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return fmt.Errorf("creating output dir: %w", err)
			}
			if len(res.Diagnostics) > 0 {
				logger.Warn("rows skipped", "count", len(res.Diagnostics), "log", diaglog.Path(outDir))
				if err := diaglog.Append(outDir, diagEntries(res.Diagnostics, time.Now().UTC())); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			var written []string
			for _, f := range res.Forms {
				switch {
				case f.Err != nil:
					logger.Error("form failed", "form", f.Form, "err", f.Err)
					fmt.Fprintf(out, "%s: failed: %v\n", f.Form, f.Err)
				case !f.Required():
					logger.Info("form not required", "form", f.Form)
					fmt.Fprintf(out, "%s: not required\n", f.Form)
				default:
					path := filepath.Join(outDir, string(f.Form)+".txt")
					if err := os.WriteFile(path, f.Output, 0o644); err != nil {
						return fmt.Errorf("writing %s: %w", path, err)
					}
					written = append(written, path)
					logger.Info("form written", "form", f.Form, "path", path, "size", humanize.Bytes(uint64(len(f.Output))))
					p, _ := cfg.Form(f.Form)
					fmt.Fprintf(out, "%s: %s, %s %s -> %s\n", f.Form,
						plural(len(f.Document.Lines), "line"),
						money(taxrules.Total(f.Document.Lines, taxrules.FieldValue)), p.Currency, path)
				}
			}
			if commit && len(written) > 0 {
				if err := commitForms(out, written, cfg.FiscalYear); err != nil {
					return err
				}
			}
			return res.Err()
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", "out", "output directory")
	cmd.Flags().BoolVar(&strict, "strict", false, "fail on the first unreadable row")
	cmd.Flags().BoolVar(&commit, "commit", false, "commit the written forms to the enclosing git repository")
	return cmd
}

// commitForms records the generated files in the git repository that
// contains them.
func commitForms(w io.Writer, paths []string, year int) error {
	repo, ok := gitops.Open(filepath.Dir(paths[0]))
	if !ok {
		return failure.Config("--commit", "%s is not inside a git repository", filepath.Dir(paths[0]))
	}
	rel := make([]string, len(paths))
	names := make([]string, len(paths))
	for i, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return fmt.Errorf("resolving %s: %w", p, err)
		}
		if rel[i], err = filepath.Rel(repo.Dir, abs); err != nil {
			return fmt.Errorf("resolving %s: %w", p, err)
		}
		names[i] = strings.TrimSuffix(filepath.Base(p), ".txt")
	}

	hash, err := repo.Commit(fmt.Sprintf("generate: %s for %d", strings.Join(names, ", "), year), rel...)
	if errors.Is(err, gitops.ErrNothingToCommit) {
		fmt.Fprintln(w, "forms unchanged since the last commit")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "committed %s\n", hash)
	return nil
}
