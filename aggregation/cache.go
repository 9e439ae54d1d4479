package aggregation

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/dispomed/dispomed-api/entities"
)

// KeyFunc derives the memo key of a monthly aggregate computation.
type KeyFunc func(incidents []entities.Incident, start, end entities.Date) string

// LengthKey keys on (start, end, number of incidents). Two different incident
// slices of the same length collide; this matches the chart's historical behavior.
func LengthKey(incidents []entities.Incident, start, end entities.Date) string {
	return fmt.Sprintf("%s-%s-%d", start, end, len(incidents))
}

// ContentKey hashes every field that feeds the aggregate. Use it through
// WithKeyFunc when collisions between same-length inputs are not acceptable.
func ContentKey(incidents []entities.Incident, start, end entities.Date) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%d\n", start, end, len(incidents))
	for _, inc := range incidents {
		codes := append([]string(nil), inc.CISCodes...)
		sort.Strings(codes)
		fmt.Fprintf(h, "%s|%s|%s|%s\n", inc.Status, inc.StartDate, inc.CalculatedEndDate, strings.Join(codes, ","))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// AggregateCache memoizes monthly aggregates by key.
type AggregateCache interface {
	Get(key string) ([]entities.MonthlyAggregate, bool)
	Put(key string, value []entities.MonthlyAggregate)
}

// lastValueCache remembers only the most recent computation.
type lastValueCache struct {
	key   string
	value []entities.MonthlyAggregate
	set   bool
}

// NewLastValueCache returns the single-slot cache used by default.
func NewLastValueCache() AggregateCache {
	return &lastValueCache{}
}

func (c *lastValueCache) Get(key string) ([]entities.MonthlyAggregate, bool) {
	if !c.set || c.key != key {
		return nil, false
	}
	return c.value, true
}

func (c *lastValueCache) Put(key string, value []entities.MonthlyAggregate) {
	c.key = key
	c.value = value
	c.set = true
}
