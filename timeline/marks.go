package timeline

import (
	"github.com/dispomed/dispomed-api/entities"
	"github.com/dispomed/dispomed-api/shortage"
)

// ShouldShowMarkForMonth decides whether the summary chart puts a point on
// month. The report month always gets one; periods of 24 months or more
// only mark January, April, July and October.
func ShouldShowMarkForMonth(month, reportDate entities.Date, monthsToShow int) bool {
	if !reportDate.IsNull() && month.Equal(reportDate.FirstOfMonth()) {
		return true
	}
	if monthsToShow >= 24 {
		return (int(month.Month())-1)%3 == 0
	}
	return true
}

// SeriesPoint is one marked point of the summary chart.
type SeriesPoint struct {
	Date   entities.Date `json:"date"`
	Label  string        `json:"label"`
	Value  int           `json:"value"`
	Marked bool          `json:"marked"`
	Kind   string        `json:"kind"`
}

// SummarySeries splits the monthly aggregate into shortage and tension
// series. Zero values are never marked.
func SummarySeries(aggregates []entities.MonthlyAggregate, reportDate entities.Date, monthsToShow int) (rupture, tension []SeriesPoint) {
	rupture = make([]SeriesPoint, 0, len(aggregates))
	tension = make([]SeriesPoint, 0, len(aggregates))
	for _, agg := range aggregates {
		show := ShouldShowMarkForMonth(agg.Date, reportDate, monthsToShow)
		label := shortage.FormatMonthYear(agg.Date)
		rupture = append(rupture, SeriesPoint{Date: agg.Date, Label: label, Value: agg.Rupture, Marked: show && agg.Rupture > 0, Kind: "rupture"})
		tension = append(tension, SeriesPoint{Date: agg.Date, Label: label, Value: agg.Tension, Marked: show && agg.Tension > 0, Kind: "tension"})
	}
	return rupture, tension
}
