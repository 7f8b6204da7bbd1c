package commands

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/declara-dev/declara/internal/buildinfo"
	"github.com/declara-dev/declara/internal/config"
	"github.com/declara-dev/declara/internal/failure"
	"github.com/declara-dev/declara/internal/logging"
)

// Exit codes by failure category.
const (
	ExitOK       = 0
	ExitUnknown  = 1
	ExitInput    = 2
	ExitConfig   = 3
	ExitLayout   = 4
	ExitInternal = 70
)

type globalOptions struct {
	configPath string
	envPath    string
	logLevel   string
	logFormat  string
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}
	rootCmd := &cobra.Command{
		Use:     "declara",
		Short:   "Modelo 720 and D6 declarations from broker exports",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", buildinfo.Version, buildinfo.Commit, buildinfo.Date),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "config file (default $"+config.EnvConfig+" or "+config.DefaultFile+")")
	pf.StringVar(&opts.envPath, "env-file", ".env", "dotenv file with taxpayer overrides")
	pf.StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error (overrides config)")
	pf.StringVar(&opts.logFormat, "log-format", "", "text or json (overrides config)")

	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(newParseCommand(opts))
	rootCmd.AddCommand(newGenerateCommand(opts))
	rootCmd.AddCommand(newLinesCommand(opts))

	return rootCmd
}

// Execute runs the CLI with args and returns the process exit code.
func Execute(args []string, stdout, stderr io.Writer) int {
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	err := cmd.Execute()
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
	}
	return ExitCode(err)
}

// ExitCode maps an error to the process exit code.
func ExitCode(err error) int {
	switch failure.Category(err) {
	case "":
		return ExitOK
	case failure.KindInput:
		return ExitInput
	case failure.KindConfig:
		return ExitConfig
	case failure.KindLayout:
		return ExitLayout
	case failure.KindInternal:
		return ExitInternal
	}
	return ExitUnknown
}

// load reads the environment and config file and builds the logger.
func (o *globalOptions) load(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	if err := config.LoadEnv(o.envPath); err != nil {
		return nil, nil, &failure.ConfigError{Key: o.envPath, Reason: err.Error()}
	}

	path := o.configPath
	if path == "" {
		path = config.PathFromEnv(config.DefaultFile)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, &failure.ConfigError{Key: path, Reason: err.Error() + " (run declara init)"}
	}
	config.ApplyEnv(cfg)

	level, format := cfg.Log.Level, cfg.Log.Format
	if o.logLevel != "" {
		level = o.logLevel
	}
	if o.logFormat != "" {
		format = o.logFormat
	}
	logger, err := logging.New(level, format, cmd.ErrOrStderr())
	if err != nil {
		return nil, nil, failure.Config("log", "%v", err)
	}
	logger.Debug("config loaded", "path", path, "fiscal_year", cfg.FiscalYear, "forms", cfg.EnabledForms())
	return cfg, logger, nil
}
