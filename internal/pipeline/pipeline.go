// Package pipeline runs the whole chain for one taxpayer: broker exports
// in, one fixed-width document per enabled form out.
//
// Every run recomputes everything from the inputs it is given, so
// replacing a broker's export and running again replaces that broker's
// data. Identical inputs and collaborators give identical bytes.
package pipeline

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/declara-dev/declara/internal/brokers"
	"github.com/declara-dev/declara/internal/config"
	"github.com/declara-dev/declara/internal/consolidate"
	"github.com/declara-dev/declara/internal/failure"
	"github.com/declara-dev/declara/internal/importer"
	"github.com/declara-dev/declara/internal/layout"
	"github.com/declara-dev/declara/internal/model"
	"github.com/declara-dev/declara/internal/normalize"
	"github.com/declara-dev/declara/internal/rates"
	"github.com/declara-dev/declara/internal/taxrules"
)

// Input is one broker export.
type Input struct {
	Name   string // shown in errors and diagnostics, usually the file path
	Format string // reader format tag
	Data   []byte
}

// Diagnostic is a skipped row of a named input.
type Diagnostic struct {
	Input  string
	Format string
	importer.Diagnostic
}

func (d Diagnostic) String() string {
	return d.Input + ": " + d.Diagnostic.String()
}

// Options supplies the collaborators of a run. Nil members are built from
// the config.
type Options struct {
	Registry *importer.Registry
	Brokers  *brokers.Service
	Rates    rates.Source
	Strict   bool
}

// FormResult is the outcome of one form. A form whose rules select no
// line is not required and has no output.
type FormResult struct {
	Form     model.FormID
	Document *model.FormDocument
	Output   []byte
	Err      error
}

// Required reports whether the form has to be filed.
func (f FormResult) Required() bool { return f.Err == nil && len(f.Output) > 0 }

// Result is the outcome of a run.
type Result struct {
	Statements  []*model.Statement
	Diagnostics []Diagnostic
	Forms       []FormResult
}

// Outputs returns the generated bytes of every required form.
func (r *Result) Outputs() map[model.FormID][]byte {
	out := make(map[model.FormID][]byte)
	for _, f := range r.Forms {
		if f.Required() {
			out[f.Form] = f.Output
		}
	}
	return out
}

// Err joins the errors of the forms that failed.
func (r *Result) Err() error {
	var errs []error
	for _, f := range r.Forms {
		if f.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", f.Form, f.Err))
		}
	}
	return errors.Join(errs...)
}

type parsed struct {
	stmt  *model.Statement
	diags []Diagnostic
	err   error
}

// ParseAll reads and normalizes every input, one goroutine per input.
// Statements come back in input order with Seq set to the input index.
// The error of the lowest-indexed failing input is returned.
func ParseAll(inputs []Input, reg *importer.Registry, table *brokers.Service, opts importer.Options) ([]*model.Statement, []Diagnostic, error) {
	results := make([]parsed, len(inputs))

	var wg sync.WaitGroup
	for i, in := range inputs {
		wg.Add(1)
		go func(i int, in Input) {
			defer wg.Done()
			results[i] = parseOne(i, in, reg, table, opts)
		}(i, in)
	}
	wg.Wait()

	stmts := make([]*model.Statement, 0, len(inputs))
	var diags []Diagnostic
	for _, r := range results {
		if r.err != nil {
			return nil, nil, r.err
		}
		stmts = append(stmts, r.stmt)
		diags = append(diags, r.diags...)
	}
	return stmts, diags, nil
}

func parseOne(seq int, in Input, reg *importer.Registry, table *brokers.Service, opts importer.Options) parsed {
	if len(in.Data) == 0 {
		return parsed{err: failure.Input(in.Name, 0, "", "empty input")}
	}
	rep, err := reg.Read(in.Format, in.Data, opts)
	if err != nil {
		return parsed{err: nameInput(err, in.Name)}
	}
	stmt, err := normalize.Statement(rep, seq, table)
	if err != nil {
		return parsed{err: nameInput(err, in.Name)}
	}
	diags := make([]Diagnostic, len(rep.Diagnostics))
	for i, d := range rep.Diagnostics {
		diags[i] = Diagnostic{Input: in.Name, Format: rep.Format, Diagnostic: d}
	}
	return parsed{stmt: stmt, diags: diags}
}

// nameInput puts the input name in front of a reader's format tag.
func nameInput(err error, name string) error {
	var ie *failure.InputError
	if errors.As(err, &ie) && name != "" && !strings.HasPrefix(ie.Source, name) {
		cp := *ie
		cp.Source = name + " (" + ie.Source + ")"
		return &cp
	}
	return err
}

// Run parses inputs and builds every enabled form. Parse failures abort
// the run. Form failures are recorded per form: one form's error does not
// prevent the other.
func Run(inputs []Input, cfg *config.Config, opts Options) (*Result, error) {
	if opts.Registry == nil {
		opts.Registry = importer.DefaultRegistry()
	}
	if opts.Brokers == nil {
		svc, err := cfg.BrokerService()
		if err != nil {
			return nil, err
		}
		opts.Brokers = svc
	}
	if opts.Rates == nil {
		src, err := cfg.RateSource()
		if err != nil {
			return nil, err
		}
		opts.Rates = src
	}

	stmts, diags, err := ParseAll(inputs, opts.Registry, opts.Brokers, importer.Options{Strict: opts.Strict})
	if err != nil {
		return nil, err
	}

	res := &Result{Statements: stmts, Diagnostics: diags}
	for _, form := range cfg.EnabledForms() {
		doc, out, err := Build(form, stmts, cfg, opts.Rates)
		res.Forms = append(res.Forms, FormResult{Form: form, Document: doc, Output: out, Err: err})
	}
	return res, nil
}

// Lines consolidates the statements and applies the rules of form.
func Lines(form model.FormID, stmts []*model.Statement, cfg *config.Config, src rates.Source) ([]model.DeclarationLine, error) {
	fp, err := cfg.Params(form)
	if err != nil {
		return nil, err
	}
	portfolio, err := consolidate.Consolidate(stmts, src, fp.Portfolio)
	if err != nil {
		return nil, err
	}

	var lines []model.DeclarationLine
	switch form {
	case model.FormForeignAssets:
		lines, err = taxrules.ForeignAssets(portfolio, fp.Rules)
	case model.FormForeignInvestment:
		lines, err = taxrules.ForeignInvestment(portfolio, fp.Rules)
	default:
		return nil, failure.Config("forms."+string(form), "unknown form")
	}
	if err != nil {
		return nil, err
	}
	if violations := taxrules.Validate(lines, fp.Rules); len(violations) > 0 {
		return nil, failure.Internal("taxrules", "%d invalid %s lines, first: %v", len(violations), form, violations[0])
	}
	return lines, nil
}

// Build produces the document and bytes of one form. A form without lines
// returns a nil document and no error.
func Build(form model.FormID, stmts []*model.Statement, cfg *config.Config, src rates.Source) (*model.FormDocument, []byte, error) {
	lines, err := Lines(form, stmts, cfg, src)
	if err != nil || len(lines) == 0 {
		return nil, nil, err
	}

	if strings.TrimSpace(cfg.Taxpayer.NIF) == "" {
		return nil, nil, failure.Config("taxpayer.nif", "not set")
	}
	schema, err := cfg.Schema(form)
	if err != nil {
		return nil, nil, err
	}
	declID, err := cfg.DeclarationID(form)
	if err != nil {
		return nil, nil, err
	}

	doc := &model.FormDocument{
		Form: form,
		Header: model.Header{
			FiscalYear:    cfg.FiscalYear,
			FormVersion:   schema.Version,
			DeclarationID: declID,
			Fields:        headerFields(form, cfg, lines),
		},
		Lines: lines,
	}
	out, err := layout.Generate(schema, doc)
	if err != nil {
		return nil, nil, err
	}
	return doc, out, nil
}

func headerFields(form model.FormID, cfg *config.Config, lines []model.DeclarationLine) model.Fields {
	var f model.Fields
	f.Set("nif", model.Text(strings.ToUpper(strings.TrimSpace(cfg.Taxpayer.NIF))))
	f.Set("filer_name", model.Text(cfg.FilerName()))
	f.Set("contact", model.Text(cfg.FilerName()))
	f.Set("phone", model.Text(cfg.Taxpayer.Phone))
	if form == model.FormForeignAssets {
		f.Set("total_value", model.Number(taxrules.Total(lines, taxrules.FieldValue)))
	}
	return f
}
