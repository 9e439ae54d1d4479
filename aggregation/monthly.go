package aggregation

import (
	"time"

	"github.com/dispomed/dispomed-api/entities"
)

// AllTimeEpoch is the first month covered by the "all time" period.
var AllTimeEpoch = entities.NewDate(2021, time.May, 1)

// MonthRange lists the first day of every month m with start <= m < end.
func MonthRange(start, end entities.Date) []entities.Date {
	if start.IsNull() || end.IsNull() {
		return nil
	}

	m := start.FirstOfMonth()
	if m.Before(start) {
		m = m.AddMonths(1)
	}

	var months []entities.Date
	for m.Before(end) {
		months = append(months, m)
		m = m.AddMonths(1)
	}
	return months
}

// activeAt reports whether inc covers the given month start. A missing
// start date is treated as open-ended.
func activeAt(inc entities.Incident, m entities.Date) bool {
	if inc.StartDate.After(m) {
		return false
	}
	return !inc.CalculatedEndDate.IsNull() && !inc.CalculatedEndDate.Before(m)
}

// ComputeMonthlyAggregate sums package counts of shortage and tension
// incidents active at the first day of every month in [start, end).
func ComputeMonthlyAggregate(incidents []entities.Incident, start, end entities.Date) []entities.MonthlyAggregate {
	months := MonthRange(start, end)
	result := make([]entities.MonthlyAggregate, len(months))

	for idx, m := range months {
		agg := entities.MonthlyAggregate{Date: m}
		for _, inc := range incidents {
			if !activeAt(inc, m) {
				continue
			}
			switch inc.Status {
			case entities.StatusRupture:
				agg.Rupture += inc.PackageCount()
			case entities.StatusTension:
				agg.Tension += inc.PackageCount()
			}
		}
		result[idx] = agg
	}
	return result
}

// GetDateRange returns [start, end) for a report date: end is the first day of
// the month after the report month and start is monthsToShow months earlier.
// Bucket generation treats end as exclusive, time scales use it as inclusive.
func GetDateRange(lastReportDate entities.Date, monthsToShow int) (start, end entities.Date) {
	if lastReportDate.IsNull() {
		return entities.Date{}, entities.Date{}
	}
	end = lastReportDate.FirstOfMonth().AddMonths(1)
	start = end.AddMonths(-monthsToShow)
	return start, end
}

// AllTimeMonths is the monthsToShow value covering AllTimeEpoch through the report month.
func AllTimeMonths(reportDate entities.Date) int {
	years := reportDate.Year() - AllTimeEpoch.Year()
	months := int(reportDate.Month()) - int(AllTimeEpoch.Month())
	return years*12 + months + 1
}
