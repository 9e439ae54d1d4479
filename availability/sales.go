package availability

import (
	"github.com/dispomed/dispomed-api/entities"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// PresentationSales is the yearly box count of one CIP13 presentation.
type PresentationSales struct {
	CIP13  string        `json:"cip13"`
	Label  string        `json:"label"`
	ByYear map[int]int64 `json:"by_year"`
	Total  int64         `json:"total"`
}

// CISSales groups the presentations sold under one CIS code.
type CISSales struct {
	CIS           string              `json:"cis"`
	Presentations []PresentationSales `json:"presentations"`
	TotalByYear   map[int]int64       `json:"total_by_year"`
}

// GroupSales groups sale rows by CIS then CIP13, both in first-seen order.
// A repeated (CIP13, year) row replaces the presentation's figure but still
// adds to the CIS yearly total.
func GroupSales(sales []entities.Sale) []CISSales {
	groups := make([]CISSales, 0)
	cisIndex := make(map[string]int)
	cipIndex := make(map[string]map[string]int)

	for _, sale := range sales {
		ci, ok := cisIndex[sale.CodeCIS]
		if !ok {
			ci = len(groups)
			cisIndex[sale.CodeCIS] = ci
			cipIndex[sale.CodeCIS] = make(map[string]int)
			groups = append(groups, CISSales{CIS: sale.CodeCIS, TotalByYear: make(map[int]int64)})
		}
		group := &groups[ci]

		pi, ok := cipIndex[sale.CodeCIS][sale.CIP13]
		if !ok {
			pi = len(group.Presentations)
			cipIndex[sale.CodeCIS][sale.CIP13] = pi
			group.Presentations = append(group.Presentations, PresentationSales{
				CIP13:  sale.CIP13,
				Label:  sale.ProductLabel,
				ByYear: make(map[int]int64),
			})
		}

		group.Presentations[pi].ByYear[sale.Year] = sale.TotalBoxes
		group.TotalByYear[sale.Year] += sale.TotalBoxes
	}

	for gi := range groups {
		for pi := range groups[gi].Presentations {
			p := &groups[gi].Presentations[pi]
			p.Total = 0
			for _, n := range p.ByYear {
				p.Total += n
			}
		}
	}
	return groups
}

// DisplayLabel is the product label, or the CIP13 when none is known.
func (p PresentationSales) DisplayLabel() string {
	if p.Label != "" {
		return p.Label
	}
	return p.CIP13
}

var frenchPrinter = message.NewPrinter(language.French)

// FormatCount renders a count with French digit grouping, or "-" for zero.
func FormatCount(n int64) string {
	if n == 0 {
		return "-"
	}
	return frenchPrinter.Sprintf("%d", n)
}
