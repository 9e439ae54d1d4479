// Package shortage classifies incidents into display statuses and formats the
// durations shown next to them.
package shortage

import (
	"github.com/dispomed/dispomed-api/entities"
)

// Kind is the classified display status of a product.
type Kind string

const (
	KindArret      Kind = "arret"
	KindRupture    Kind = "rupture"
	KindTension    Kind = "tension"
	KindDisponible Kind = "disponible"
	KindInconnu    Kind = "inconnu"
)

// StatusInfo carries everything a renderer needs to show a status.
type StatusInfo struct {
	Kind      Kind   `json:"shorthand"`
	Text      string `json:"text"`
	Class     string `json:"class"`
	Color     string `json:"color"`
	Icon      string `json:"icon"`
	Available bool   `json:"-"`
}

var (
	arretInfo = StatusInfo{
		Kind:  KindArret,
		Text:  "Arrêt de commercialisation",
		Class: "tooltip-arret",
		Color: "var(--arret-bg)",
		Icon:  "fa-solid fa-square-xmark",
	}
	ruptureInfo = StatusInfo{
		Kind:  KindRupture,
		Text:  "Rupture de stock",
		Class: "tooltip-rupture",
		Color: "var(--rupture)",
		Icon:  "fa-solid fa-square-xmark",
	}
	tensionInfo = StatusInfo{
		Kind:  KindTension,
		Text:  "Tension d'approvisionnement",
		Class: "tooltip-tension",
		Color: "var(--tension)",
		Icon:  "fa-solid fa-square-minus",
	}
	disponibleInfo = StatusInfo{
		Kind:      KindDisponible,
		Text:      "Disponible",
		Class:     "tooltip-disponible",
		Color:     "var(--disponible)",
		Icon:      "fa-solid fa-square-check",
		Available: true,
	}
	inconnuInfo = StatusInfo{
		Kind:  KindInconnu,
		Text:  "Statut inconnu",
		Color: "var(--grisleger)",
		Icon:  "fa-solid fa-square-question",
	}
)

// Classify derives the status of an incident as of ref. Rules apply in order:
// discontinuation, an open incident covering ref, then resolution. An incident
// with an explicit end_date is available even if calculated_end_date >= ref.
func Classify(inc entities.Incident, ref entities.Date) StatusInfo {
	if inc.Status == entities.StatusArret {
		return arretInfo
	}

	// A missing start date counts as open-ended in the past.
	if !inc.StartDate.After(ref) && !inc.CalculatedEndDate.IsNull() &&
		!ref.After(inc.CalculatedEndDate) && inc.EndDate.IsNull() {
		switch inc.Status {
		case entities.StatusRupture:
			return ruptureInfo
		case entities.StatusTension:
			return tensionInfo
		}
	}

	if inc.CalculatedEndDate.IsNull() || inc.CalculatedEndDate.Before(ref) || !inc.EndDate.IsNull() {
		return disponibleInfo
	}

	return inconnuInfo
}

// InfoFor returns the static display info for a raw incident status.
func InfoFor(status entities.Status) StatusInfo {
	switch status {
	case entities.StatusArret:
		return arretInfo
	case entities.StatusRupture:
		return ruptureInfo
	case entities.StatusTension:
		return tensionInfo
	case entities.StatusDisponible:
		return disponibleInfo
	}
	return inconnuInfo
}
