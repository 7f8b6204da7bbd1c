package commands

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/declara-dev/declara/internal/diaglog"
	"github.com/declara-dev/declara/internal/importer"
	"github.com/declara-dev/declara/internal/model"
	"github.com/declara-dev/declara/internal/pipeline"
)

func newParseCommand(g *globalOptions) *cobra.Command {
	var (
		strict  bool
		diagDir string
	)

	cmd := &cobra.Command{
		Use:   "parse " + inputUsage,
		Short: "Read broker exports and summarize what was understood",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := g.load(cmd)
			if err != nil {
				return err
			}
			inputs, err := readInputs(args)
			if err != nil {
				return err
			}
			svc, err := cfg.BrokerService()
			if err != nil {
				return err
			}

			stmts, diags, err := pipeline.ParseAll(inputs, importer.DefaultRegistry(), svc, importer.Options{Strict: strict})
			if err != nil {
				return err
			}
			logger.Info("parsed", "inputs", len(inputs), "skipped_rows", len(diags))

			out := cmd.OutOrStdout()
			for i, st := range stmts {
				printStatement(out, inputs[i].Name, st)
			}
			printDiagnostics(out, diags)

			if diagDir != "" {
				if err := diaglog.Append(diagDir, diagEntries(diags, time.Now().UTC())); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "fail on the first unreadable row")
	cmd.Flags().StringVar(&diagDir, "diag-log", "", "append skipped rows to <dir>/logs/diagnostics.csv")
	return cmd
}

func printStatement(w io.Writer, name string, st *model.Statement) {
	fmt.Fprintf(w, "%s: %s account %s (custody %s), generated %s\n",
		name, st.Account.Broker, st.Account.AccountID, st.Account.Country, st.AsOf.Format("2006-01-02 15:04"))
	fmt.Fprintf(w, "  %s securities, %s positions, %s transactions\n",
		humanize.Comma(int64(len(st.Securities))), humanize.Comma(int64(len(st.Positions))), humanize.Comma(int64(len(st.Transactions))))

	byCurrency := make(map[string]decimal.Decimal)
	for _, p := range st.Positions {
		byCurrency[p.Currency] = byCurrency[p.Currency].Add(p.Value)
	}
	currencies := make([]string, 0, len(byCurrency))
	for c := range byCurrency {
		currencies = append(currencies, c)
	}
	sort.Strings(currencies)
	for _, c := range currencies {
		fmt.Fprintf(w, "  positions worth %s %s\n", money(byCurrency[c]), c)
	}
}

func printDiagnostics(w io.Writer, diags []pipeline.Diagnostic) {
	if len(diags) == 0 {
		return
	}
	fmt.Fprintf(w, "%s skipped:\n", plural(len(diags), "row"))
	for _, d := range diags {
		fmt.Fprintf(w, "  %s\n", d)
	}
}

func money(d decimal.Decimal) string {
	return humanize.FormatFloat("#,###.##", d.Round(2).InexactFloat64())
}

func plural(n int, word string) string {
	if n == 1 {
		return "1 " + word
	}
	return humanize.Comma(int64(n)) + " " + word + "s"
}
