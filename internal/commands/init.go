package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/declara-dev/declara/internal/config"
	"github.com/declara-dev/declara/internal/failure"
	"github.com/declara-dev/declara/internal/gitops"
	"github.com/declara-dev/declara/internal/layout"
	"github.com/declara-dev/declara/internal/model"
)

func newInitCommand() *cobra.Command {
	var (
		year    int
		force   bool
		git     bool
		schemas []string
		payer   config.Taxpayer
	)

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Create a declara project with a default configuration",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			layouts, err := runInit(absDir, year, payer, schemas, force)
			if err != nil {
				return err
			}
			if !git {
				fmt.Fprintf(cmd.OutOrStdout(), "Initialized declara project for %d at %s\n", year, absDir)
				return nil
			}

			repo, err := gitops.Init(absDir)
			if err != nil {
				return err
			}
			paths := append([]string{config.DefaultFile, ".gitignore"}, layouts...)
			hash, err := repo.Commit(fmt.Sprintf("init: declara project for %d", year), paths...)
			if err != nil && !errors.Is(err, gitops.ErrNothingToCommit) {
				return fmt.Errorf("initial commit: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Initialized declara project for %d at %s (%s)\n", year, absDir, hash)
			return nil
		},
	}

	cmd.Flags().IntVar(&year, "year", time.Now().Year()-1, "fiscal year")
	cmd.Flags().StringVar(&payer.NIF, "nif", "", "taxpayer NIF")
	cmd.Flags().StringVar(&payer.Name, "name", "", "taxpayer first name")
	cmd.Flags().StringVar(&payer.Surname, "surname", "", "taxpayer surnames")
	cmd.Flags().StringVar(&payer.Phone, "phone", "", "contact phone")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing "+config.DefaultFile)
	cmd.Flags().BoolVar(&git, "git", false, "initialize a git repository and commit the config")
	cmd.Flags().StringSliceVar(&schemas, "schema", nil, "copy the built-in layout of a form (aeat720, d6) into layouts/ for editing")

	return cmd
}

// runInit lays out the project and returns the layout files it wrote,
// relative to dir.
func runInit(dir string, year int, payer config.Taxpayer, schemas []string, force bool) ([]string, error) {
	for _, d := range []string{"exports", "out"} {
		if err := os.MkdirAll(filepath.Join(dir, d), 0o755); err != nil {
			return nil, fmt.Errorf("creating directory %s: %w", d, err)
		}
	}

	path := filepath.Join(dir, config.DefaultFile)
	if _, err := os.Stat(path); err == nil && !force {
		return nil, failure.Config(path, "already exists (use --force to overwrite)")
	}

	cfg := config.Default(year)
	cfg.Taxpayer.NIF = payer.NIF
	cfg.Taxpayer.Name = payer.Name
	cfg.Taxpayer.Surname = payer.Surname
	cfg.Taxpayer.Phone = payer.Phone

	var layouts []string
	for _, name := range schemas {
		rel, err := writeLayout(dir, cfg, model.FormID(name))
		if err != nil {
			return nil, err
		}
		layouts = append(layouts, rel)
	}

	if err := config.Save(path, cfg); err != nil {
		return nil, fmt.Errorf("writing config: %w", err)
	}

	gitignore := "exports/\n.env\nout/logs/\n"
	if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte(gitignore), 0o644); err != nil {
		return nil, fmt.Errorf("writing .gitignore: %w", err)
	}
	return layouts, nil
}

// writeLayout copies the latest built-in layout of form into dir/layouts
// and points the form's config at the copy. Paths in the config resolve
// against the directory declara runs in, so the copy is recorded relative
// to the project.
func writeLayout(dir string, cfg *config.Config, form model.FormID) (string, error) {
	fc, ok := cfg.Form(form)
	if !ok {
		return "", failure.Config("--schema", "unknown form %q (aeat720 or d6)", form)
	}
	version := layout.Latest(form)
	schema, err := layout.Builtin(form, version)
	if err != nil {
		return "", err
	}
	data, err := schema.Marshal()
	if err != nil {
		return "", fmt.Errorf("rendering %s layout: %w", form, err)
	}

	rel := filepath.Join("layouts", fmt.Sprintf("%s-%s.yaml", form, version))
	if err := os.MkdirAll(filepath.Join(dir, "layouts"), 0o755); err != nil {
		return "", fmt.Errorf("creating directory layouts: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, rel), data, 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", rel, err)
	}
	fc.Schema = rel
	return rel, nil
}
