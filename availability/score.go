// Package availability tallies how long a single product spent in each supply
// status since the start of monitoring and turns it into a score.
package availability

import (
	"math"
	"time"

	"github.com/dispomed/dispomed-api/entities"
)

const day = 24 * time.Hour

// WindowStart is the first day of the product observation window.
var WindowStart = entities.NewDate(2021, time.April, 1)

// Penalty per day spent in a status. Available days cost nothing.
var penalties = map[entities.Status]float64{
	entities.StatusRupture: 1,
	entities.StatusTension: 0.5,
	entities.StatusArret:   1,
}

// Report is the availability summary of one product.
type Report struct {
	Start         entities.Date         `json:"start"`
	End           entities.Date         `json:"end"`
	Years         []entities.YearlyStat `json:"years"`
	RuptureDays   int                   `json:"rupture_days"`
	TensionDays   int                   `json:"tension_days"`
	ArretDays     int                   `json:"arret_days"`
	AvailableDays int                   `json:"available_days"`
	TotalDays     int                   `json:"total_days"`
	Score         float64               `json:"score"`
}

// EffectiveEnd is the report date for an ongoing discontinuation, then the
// first known of calculated_end_date, end_date and the report date.
func EffectiveEnd(inc entities.Incident, reportDate entities.Date) entities.Date {
	if inc.IsOngoingDiscontinuation() {
		return reportDate
	}
	if !inc.CalculatedEndDate.IsNull() {
		return inc.CalculatedEndDate
	}
	if !inc.EndDate.IsNull() {
		return inc.EndDate
	}
	return reportDate
}

// ReportDateFor falls back to the latest calculated end among the product's
// incidents when no global report date is known.
func ReportDateFor(incidents []entities.Incident, reportDate entities.Date) entities.Date {
	if !reportDate.IsNull() {
		return reportDate
	}
	return entities.MaxCalculatedEndDate(incidents)
}

// Years lists every calendar year from start to end.
func Years(start, end entities.Date) []int {
	if start.IsNull() || end.IsNull() || end.Before(start) {
		return nil
	}
	years := make([]int, 0, end.Year()-start.Year()+1)
	for y := start.Year(); y <= end.Year(); y++ {
		years = append(years, y)
	}
	return years
}

// Compute tallies incidents over [WindowStart, reportDate]. Overlapping
// incidents of one product are counted once each.
func Compute(incidents []entities.Incident, reportDate entities.Date) Report {
	end := ReportDateFor(incidents, reportDate)
	report := Report{Start: WindowStart, End: end, Score: 100}
	if end.IsNull() || end.Before(WindowStart) {
		return report
	}

	windowStart := WindowStart.Time()
	windowEnd := end.Time()

	years := Years(WindowStart, end)
	stats := make(map[int]*entities.YearlyStat, len(years))
	for _, y := range years {
		stat := &entities.YearlyStat{Year: y}
		yearStart := maxTime(yearBegin(y), windowStart)
		yearEnd := minTime(time.Date(y, time.December, 31, 0, 0, 0, 0, time.UTC), windowEnd)
		if yearEnd.After(yearStart) {
			stat.TotalDays = wholeDays(yearEnd.Sub(yearStart)) + 1
		}
		stats[y] = stat
	}

	penalty := 0.0
	for _, inc := range incidents {
		incStart := maxTime(inc.StartDate.Time(), windowStart)
		incEnd := EffectiveEnd(inc, end).Time()

		for _, y := range years {
			overlapStart := maxTime(incStart, yearBegin(y))
			overlapEnd := minTime(minTime(incEnd, yearFinish(y)), windowEnd)
			if overlapEnd.After(overlapStart) {
				addDays(stats[y], inc.Status, roundedDays(overlapEnd.Sub(overlapStart)))
			}
		}

		clippedEnd := minTime(incEnd, windowEnd)
		if !clippedEnd.After(incStart) {
			continue
		}
		days := wholeDays(clippedEnd.Sub(incStart)) + 1
		switch inc.Status {
		case entities.StatusRupture:
			report.RuptureDays += days
		case entities.StatusTension:
			report.TensionDays += days
		case entities.StatusArret:
			report.ArretDays += days
		}
		penalty += float64(days) * penalties[inc.Status]
	}

	report.TotalDays = wholeDays(windowEnd.Sub(windowStart)) + 1
	report.AvailableDays = report.TotalDays - report.RuptureDays - report.TensionDays - report.ArretDays
	report.Score = roundTenth((float64(report.TotalDays) - penalty) / float64(report.TotalDays) * 100)

	report.Years = make([]entities.YearlyStat, 0, len(years))
	for _, y := range years {
		stat := stats[y]
		stat.AvailableDays = stat.TotalDays - stat.RuptureDays - stat.TensionDays - stat.ArretDays
		report.Years = append(report.Years, *stat)
	}
	return report
}

func addDays(stat *entities.YearlyStat, status entities.Status, days int) {
	switch status {
	case entities.StatusRupture:
		stat.RuptureDays += days
	case entities.StatusTension:
		stat.TensionDays += days
	case entities.StatusArret:
		stat.ArretDays += days
	}
}

func yearBegin(y int) time.Time {
	return time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC)
}

// yearFinish is the last instant of December 31st.
func yearFinish(y int) time.Time {
	return time.Date(y, time.December, 31, 23, 59, 59, 999_000_000, time.UTC)
}

func wholeDays(d time.Duration) int {
	return int(math.Floor(float64(d) / float64(day)))
}

func roundedDays(d time.Duration) int {
	return int(math.Round(float64(d) / float64(day)))
}

func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
