package timeline

import (
	"fmt"

	"github.com/dispomed/dispomed-api/entities"
	"github.com/dispomed/dispomed-api/shortage"
)

// CISEntry is one package listed in a row tooltip.
type CISEntry struct {
	Code string `json:"code"`
	Name string `json:"name,omitempty"`
}

// RowTooltip is the text shown when hovering a product label.
type RowTooltip struct {
	Title  string     `json:"title"`
	DCI    string     `json:"dci"`
	Status string     `json:"status,omitempty"`
	Class  string     `json:"class"`
	CIS    []CISEntry `json:"cis,omitempty"`
}

// NewRowTooltip describes a product's current status. Shortage and tension
// only get a status line while the main incident covers the report date.
func NewRowTooltip(label string, main entities.Incident, status shortage.StatusInfo, reportDate entities.Date) RowTooltip {
	tip := RowTooltip{
		Title: label,
		DCI:   fmt.Sprintf("DCI: %s / ATC: %s", main.Molecule, main.ATCCode),
		Class: status.Class,
	}

	switch status.Kind {
	case shortage.KindRupture, shortage.KindTension:
		if !main.StartDate.After(reportDate) && !main.CalculatedEndDate.Before(reportDate) {
			days := shortage.DaysBetween(main.StartDate, reportDate)
			tip.Status = status.Text + " " + shortage.FormatDurationSince(days)
		}
	default:
		tip.Status = status.Text
	}

	for _, code := range main.CISCodes {
		tip.CIS = append(tip.CIS, CISEntry{Code: code, Name: main.CISNames[code]})
	}
	return tip
}

// BarTooltip is the text shown when hovering an incident bar.
type BarTooltip struct {
	Title    string `json:"title"`
	DCI      string `json:"dci"`
	Heading  string `json:"heading"`
	Period   string `json:"period,omitempty"`
	Duration string `json:"duration,omitempty"`
	Ongoing  bool   `json:"ongoing"`
	Class    string `json:"class"`
}

// NewBarTooltip describes one incident. An incident without end_date, or whose
// calculated end reaches the report date, is ongoing and measured up to it.
func NewBarTooltip(inc entities.Incident, reportDate entities.Date) BarTooltip {
	title := inc.AccentedProduct
	if title == "" {
		title = inc.Product
	}
	tip := BarTooltip{
		Title: title,
		DCI:   "DCI: " + inc.Molecule,
		Class: "tooltip-" + string(shortage.InfoFor(inc.Status).Kind),
	}

	ongoing := inc.EndDate.IsNull() || (!inc.CalculatedEndDate.IsNull() && !inc.CalculatedEndDate.Before(reportDate))
	end := reportDate
	if !ongoing {
		end = inc.EndDate
	}
	tip.Ongoing = ongoing

	state := "Terminé"
	if ongoing {
		state = "En cours"
	}

	switch inc.Status {
	case entities.StatusArret:
		tip.Heading = "Arrêt de commercialisation / " + state
	case entities.StatusRupture, entities.StatusTension:
		tip.Heading = string(inc.Status) + " / " + state
	case entities.StatusDisponible:
		tip.Heading = "Disponible"
		return tip
	default:
		tip.Heading = string(inc.Status)
		return tip
	}

	if ongoing {
		tip.Period = "Depuis le " + shortage.FormatDate(inc.StartDate)
	} else {
		tip.Period = fmt.Sprintf("Du %s au %s", shortage.FormatDate(inc.StartDate), shortage.FormatDate(end))
	}
	tip.Duration = shortage.DaysToYearsMonths(shortage.DaysBetween(inc.StartDate, end))
	return tip
}
