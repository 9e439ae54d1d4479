// Package timeline lays out the incident table chart: which products changed
// recently, in what order rows appear and where every bar and marker goes.
// Drawing itself goes through the Canvas port.
package timeline

import (
	"github.com/dispomed/dispomed-api/entities"
)

// RecentDays is the look-back window for recently changed products.
const RecentDays = 7

// ChangeType is the kind of recent status change.
type ChangeType string

const (
	ChangeStarted ChangeType = "started"
	ChangeEnded   ChangeType = "ended"
)

// Change is the most recent status change of one product.
type Change struct {
	Type     ChangeType        `json:"type"`
	Status   entities.Status   `json:"status"`
	Date     entities.Date     `json:"date"`
	Incident entities.Incident `json:"-"`
}

// RecentChanges maps each product to its latest status change within
// [reportDate - days, reportDate]. An incident started in the window, or ended
// in it with an explicit end_date. An ended change replaces a product's
// existing entry only when its date is strictly later.
func RecentChanges(incidents []entities.Incident, reportDate entities.Date, days int) map[string]Change {
	changes := make(map[string]Change)
	if reportDate.IsNull() {
		return changes
	}
	from := reportDate.AddDays(-days)

	within := func(date entities.Date) bool {
		return !date.IsNull() && !date.Before(from) && !date.After(reportDate)
	}

	for _, inc := range incidents {
		if within(inc.StartDate) {
			changes[inc.Product] = Change{Type: ChangeStarted, Status: inc.Status, Date: inc.StartDate, Incident: inc}
		}
	}

	for _, inc := range incidents {
		if inc.EndDate.IsNull() || !within(inc.CalculatedEndDate) {
			continue
		}
		existing, ok := changes[inc.Product]
		if ok && !existing.Date.Before(inc.CalculatedEndDate) {
			continue
		}
		changes[inc.Product] = Change{Type: ChangeEnded, Status: inc.Status, Date: inc.CalculatedEndDate, Incident: inc}
	}

	return changes
}
