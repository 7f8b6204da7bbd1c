// Package importer reads broker export files into provisional rows.
//
// Each supported broker has a Reader selected by an explicit format tag.
// Readers never guess the format: an unknown tag fails immediately.
package importer

import (
	"sort"
	"strings"

	"github.com/declara-dev/declara/internal/failure"
)

// Options controls row-level error handling.
type Options struct {
	// Strict fails the whole parse on the first bad row instead of
	// collecting it as a diagnostic.
	Strict bool
}

// Reader converts the bytes of one broker export into a Report.
type Reader interface {
	Read(data []byte, opts Options) (*Report, error)
	Format() string
}

// Registry holds the readers keyed by format tag.
type Registry struct {
	readers map[string]Reader
}

// NewRegistry creates an empty reader registry.
func NewRegistry() *Registry {
	return &Registry{readers: make(map[string]Reader)}
}

// Register adds a reader. Panics on duplicate format.
func (r *Registry) Register(rd Reader) {
	key := strings.ToLower(rd.Format())
	if _, ok := r.readers[key]; ok {
		panic("duplicate reader format: " + key)
	}
	r.readers[key] = rd
}

// Get returns the reader for format, or nil.
func (r *Registry) Get(format string) Reader {
	return r.readers[strings.ToLower(format)]
}

// Formats lists the registered format tags in sorted order.
func (r *Registry) Formats() []string {
	out := make([]string, 0, len(r.readers))
	for k := range r.readers {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Read dispatches data to the reader registered for format.
func (r *Registry) Read(format string, data []byte, opts Options) (*Report, error) {
	rd := r.Get(format)
	if rd == nil {
		return nil, failure.Input(format, 0, "", "unknown broker format %q (supported: %s)", format, strings.Join(r.Formats(), ", "))
	}
	return rd.Read(data, opts)
}

// DefaultRegistry returns a registry with all built-in readers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&DegiroReader{})
	r.Register(&IBKRReader{})
	return r
}
