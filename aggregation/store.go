// Package aggregation keeps the filter and incident state behind the charts
// and derives the monthly shortage/tension series from it.
package aggregation

import (
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/dispomed/dispomed-api/entities"
)

// DefaultMonthsToShow is the initial period of the charts.
const DefaultMonthsToShow = 12

// DisplayState tells the page which of its layouts to show.
type DisplayState string

const (
	DisplayInitial   DisplayState = "initial"
	DisplayFiltered  DisplayState = "filtered"
	DisplayNoResults DisplayState = "no_results"
)

// Store holds the state shared by the charts of one session or request.
// It is not safe for concurrent use.
type Store struct {
	reportDate entities.Date
	startDate  entities.Date
	endDate    entities.Date

	products         []string
	accentedProducts []string
	incidents        []entities.Incident

	filters          entities.FilterState
	atcClasses       []entities.ATCClass
	moleculeClassMap []entities.Molecule
	displayState     DisplayState

	cache AggregateCache
	key   KeyFunc
}

// Option configures a Store.
type Option func(*Store)

// WithCache replaces the single-slot aggregate cache.
func WithCache(c AggregateCache) Option {
	return func(s *Store) { s.cache = c }
}

// WithKeyFunc replaces the length-based memo key.
func WithKeyFunc(k KeyFunc) Option {
	return func(s *Store) { s.key = k }
}

// NewStore creates an empty store with a 12 month period.
func NewStore(opts ...Option) *Store {
	s := &Store{
		filters:      entities.FilterState{MonthsToShow: DefaultMonthsToShow},
		displayState: DisplayInitial,
		cache:        NewLastValueCache(),
		key:          LengthKey,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) ReportDate() entities.Date { return s.reportDate }
func (s *Store) SetReportDate(d entities.Date) { s.reportDate = d }
func (s *Store) StartDate() entities.Date { return s.startDate }
func (s *Store) EndDate() entities.Date { return s.endDate }
func (s *Store) Products() []string { return s.products }
func (s *Store) AccentedProducts() []string { return s.accentedProducts }
func (s *Store) Incidents() []entities.Incident { return s.incidents }
func (s *Store) Filters() entities.FilterState { return s.filters }
func (s *Store) ATCClasses() []entities.ATCClass { return s.atcClasses }
func (s *Store) MoleculeClassMap() []entities.Molecule { return s.moleculeClassMap }
func (s *Store) DisplayState() DisplayState { return s.displayState }
func (s *Store) SetDisplayState(st DisplayState) { s.displayState = st }

// SetFilters replaces the filters. A non-positive period falls back to the default.
func (s *Store) SetFilters(f entities.FilterState) {
	if f.MonthsToShow <= 0 {
		f.MonthsToShow = DefaultMonthsToShow
	}
	s.filters = f
}

// SetMonthsToShow changes the period, ignoring non-positive values.
func (s *Store) SetMonthsToShow(months int) {
	if months > 0 {
		s.filters.MonthsToShow = months
	}
}

// SetDateRange sets the chart window directly.
func (s *Store) SetDateRange(start, end entities.Date) {
	s.startDate = start
	s.endDate = end
}

// SetProducts keeps the distinct product names in first-seen order.
func (s *Store) SetProducts(rows []entities.Incident) {
	s.products = distinct(rows, func(i entities.Incident) string { return i.Product })
}

// SetAccentedProducts keeps the distinct display names in first-seen order.
func (s *Store) SetAccentedProducts(rows []entities.Incident) {
	s.accentedProducts = distinct(rows, func(i entities.Incident) string { return i.AccentedProduct })
}

// SetATCClasses derives the sorted first-level ATC classes from "X - Label" values.
func (s *Store) SetATCClasses(rows []entities.Incident) {
	labels := distinct(rows, func(i entities.Incident) string { return i.ClasseATC })
	sort.Strings(labels)

	classes := make([]entities.ATCClass, 0, len(labels))
	for _, label := range labels {
		if label == "" {
			continue
		}
		code, name, found := strings.Cut(label, " - ")
		if !found {
			first, _ := utf8.DecodeRuneInString(label)
			code, name = string(first), ""
		}
		classes = append(classes, entities.ATCClass{Code: code, Name: name})
	}
	s.atcClasses = classes
}

// SetMoleculeClassMap builds the sorted (molecule, ATC code) pairs seen in rows.
// A molecule keeps the ATC code of its last occurrence.
func (s *Store) SetMoleculeClassMap(rows []entities.Incident) {
	index := make(map[string]int)
	var molecules []entities.Molecule

	for _, row := range rows {
		key := row.MoleculeID + " - " + row.Molecule
		if pos, ok := index[key]; ok {
			molecules[pos].ATCClass = row.ATCCode
			continue
		}
		id, _ := strconv.Atoi(strings.TrimSpace(row.MoleculeID))
		index[key] = len(molecules)
		molecules = append(molecules, entities.Molecule{ID: id, Name: row.Molecule, ATCClass: row.ATCCode})
	}

	sort.SliceStable(molecules, func(i, j int) bool {
		return strings.ToLower(molecules[i].Name) < strings.ToLower(molecules[j].Name)
	})
	s.moleculeClassMap = molecules
}

// Apply installs a freshly fetched incident list: the report date only moves
// forward, the chart window follows it and the molecule map is built once.
func (s *Store) Apply(rows []entities.Incident) {
	s.reportDate = entities.MaxDate(s.reportDate, entities.MaxCalculatedEndDate(rows))
	s.startDate, s.endDate = GetDateRange(s.reportDate, s.filters.MonthsToShow)
	s.incidents = rows
	s.SetProducts(rows)
	s.SetAccentedProducts(rows)

	if len(s.moleculeClassMap) == 0 {
		s.SetMoleculeClassMap(rows)
		s.SetATCClasses(rows)
	}

	switch {
	case len(rows) == 0:
		s.displayState = DisplayNoResults
	case s.filters.SearchTerm != "" || s.filters.ATCClass != "" || s.filters.MoleculeID != "" || s.filters.VaccinesOnly:
		s.displayState = DisplayFiltered
	default:
		s.displayState = DisplayInitial
	}
}

// ComputeMonthlyAggregate returns the memoized monthly series for the inputs.
// A hit returns the same slice as the call that filled the cache.
func (s *Store) ComputeMonthlyAggregate(incidents []entities.Incident, start, end entities.Date) []entities.MonthlyAggregate {
	key := s.key(incidents, start, end)
	if cached, ok := s.cache.Get(key); ok {
		return cached
	}
	result := ComputeMonthlyAggregate(incidents, start, end)
	s.cache.Put(key, result)
	return result
}

// MonthlyAggregate computes the series over the store's own window.
func (s *Store) MonthlyAggregate(incidents []entities.Incident) []entities.MonthlyAggregate {
	return s.ComputeMonthlyAggregate(incidents, s.startDate, s.endDate)
}

func distinct(rows []entities.Incident, field func(entities.Incident) string) []string {
	seen := make(map[string]struct{}, len(rows))
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		v := field(row)
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
