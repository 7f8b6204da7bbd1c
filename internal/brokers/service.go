// Package brokers holds reference data about the brokers whose reports can
// be read: display name and the country where securities are held in
// custody.
package brokers

import (
	"sort"
	"strings"

	"github.com/declara-dev/declara/internal/failure"
)

// Broker describes the custodian behind a report format.
type Broker struct {
	Format  string // report format tag
	Name    string // entity name written on declarations
	Country string // custody country, ISO 3166-1 alpha-2
}

// Service provides lookup over the broker table.
type Service struct {
	byFormat map[string]Broker
}

// NewService creates a Service from a broker table.
func NewService(brokers []Broker) *Service {
	byFormat := make(map[string]Broker, len(brokers))
	for _, b := range brokers {
		byFormat[strings.ToLower(b.Format)] = b
	}
	return &Service{byFormat: byFormat}
}

// All returns every broker ordered by format tag.
func (s *Service) All() []Broker {
	out := make([]Broker, 0, len(s.byFormat))
	for _, b := range s.byFormat {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Format < out[j].Format })
	return out
}

// Get returns the broker for a report format.
func (s *Service) Get(format string) (Broker, bool) {
	b, ok := s.byFormat[strings.ToLower(format)]
	return b, ok
}

// Override replaces the name and/or custody country of a known broker.
// Empty values keep the current ones.
func (s *Service) Override(format, name, country string) error {
	key := strings.ToLower(format)
	b, ok := s.byFormat[key]
	if !ok {
		return failure.Config("brokers."+format, "unknown broker format")
	}
	if name != "" {
		b.Name = name
	}
	if country != "" {
		country = strings.ToUpper(strings.TrimSpace(country))
		if len(country) != 2 {
			return failure.Config("brokers."+format+".country", "%q is not an ISO 3166 alpha-2 code", country)
		}
		b.Country = country
	}
	s.byFormat[key] = b
	return nil
}
