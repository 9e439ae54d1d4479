// Package entities holds the data shapes exchanged between the database,
// the HTTP API and the chart computations.
package entities

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Status is the supply status recorded on an incident.
type Status string

const (
	StatusRupture    Status = "Rupture"
	StatusTension    Status = "Tension"
	StatusArret      Status = "Arret"
	StatusDisponible Status = "Disponible"
)

// CISCodes is a list of drug-package identifiers. It decodes from JSON arrays
// of strings or numbers.
type CISCodes []string

func (c *CISCodes) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("cis_codes: %w", err)
	}
	if raw == nil {
		*c = nil
		return nil
	}

	codes := make(CISCodes, 0, len(raw))
	for _, item := range raw {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			codes = append(codes, s)
			continue
		}
		var n json.Number
		if err := json.Unmarshal(item, &n); err != nil {
			return fmt.Errorf("cis_codes: unsupported element %s", item)
		}
		codes = append(codes, n.String())
	}
	*c = codes
	return nil
}

// Incident is one period during which a product had a supply status.
// cis_names is the only field attached after the row is fetched.
type Incident struct {
	ID                int               `json:"id"`
	ProductID         int               `json:"product_id"`
	Product           string            `json:"product"`
	AccentedProduct   string            `json:"accented_product"`
	Status            Status            `json:"status"`
	StartDate         Date              `json:"start_date"`
	EndDate           Date              `json:"end_date"`
	CalculatedEndDate Date              `json:"calculated_end_date"`
	UpdatedDate       Date              `json:"mise_a_jour_date"`
	LastReportDate    Date              `json:"date_dernier_rapport"`
	CISCodes          CISCodes          `json:"cis_codes"`
	CISNames          map[string]string `json:"cis_names,omitempty"`
	Molecule          string            `json:"molecule"`
	MoleculeID        string            `json:"molecule_id"`
	ATCCode           string            `json:"atc_code"`
	ClasseATC         string            `json:"classe_atc"`
}

// PackageCount is the number of CIS codes, or 1 when none are listed.
func (i Incident) PackageCount() int {
	if len(i.CISCodes) > 0 {
		return len(i.CISCodes)
	}
	return 1
}

// IsOngoingDiscontinuation reports an Arret incident without an explicit end.
func (i Incident) IsOngoingDiscontinuation() bool {
	return i.Status == StatusArret && i.EndDate.IsNull()
}

// MoleculeIDs splits the comma-joined molecule_id column.
func (i Incident) MoleculeIDs() []int {
	var ids []int
	for _, part := range strings.Split(i.MoleculeID, ",") {
		if id, err := strconv.Atoi(strings.TrimSpace(part)); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

// MaxCalculatedEndDate returns the latest calculated_end_date across incidents.
func MaxCalculatedEndDate(incidents []Incident) Date {
	var latest Date
	for _, inc := range incidents {
		latest = MaxDate(latest, inc.CalculatedEndDate)
	}
	return latest
}

// Product is a named drug entity. Incidents is filled by the product lookup.
type Product struct {
	ID           int        `json:"id"`
	Name         string     `json:"name"`
	AccentedName string     `json:"accented_name"`
	ATCCode      string     `json:"atc_code"`
	ClasseATCID  *int       `json:"classe_atc_id,omitempty"`
	CISCodes     CISCodes   `json:"cis_codes"`
	Incidents    []Incident `json:"incidents"`
}

// FilterState is the set of user filters that drive an incident fetch.
type FilterState struct {
	SearchTerm   string `json:"searchTerm"`
	ATCClass     string `json:"atcClass"`
	MoleculeID   string `json:"molecule"`
	MonthsToShow int    `json:"monthsToShow"`
	VaccinesOnly bool   `json:"vaccinesOnly"`
}

// MonthlyAggregate is the package count in shortage and tension for one month.
type MonthlyAggregate struct {
	Date    Date `json:"date"`
	Rupture int  `json:"rupture"`
	Tension int  `json:"tension"`
}

// YearlyStat is the per-year day tally of a product's incidents.
type YearlyStat struct {
	Year          int `json:"year"`
	RuptureDays   int `json:"rupture_days"`
	TensionDays   int `json:"tension_days"`
	ArretDays     int `json:"arret_days"`
	TotalDays     int `json:"total_days"`
	AvailableDays int `json:"available_days"`
}
