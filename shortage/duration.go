package shortage

import (
	"fmt"
	"math"
	"strings"
	"time"
	"unicode"

	"github.com/dispomed/dispomed-api/entities"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const day = 24 * time.Hour

// DaysBetween is the whole number of days from start to end, floored.
func DaysBetween(start, end entities.Date) int {
	return int(math.Floor(float64(end.Time().Sub(start.Time())) / float64(day)))
}

// FormatDurationSince renders a day count as "depuis N jour(s)/semaine(s)/mois/an(s)".
func FormatDurationSince(days int) string {
	switch {
	case days < 7:
		return fmt.Sprintf("depuis %d jour%s", days, plural(days))
	case days < 30:
		weeks := roundHalfUp(float64(days) / 7)
		return fmt.Sprintf("depuis %d semaine%s", weeks, plural(weeks))
	case days < 365:
		return fmt.Sprintf("depuis %d mois", roundHalfUp(float64(days)/30))
	default:
		years := roundHalfUp(float64(days) / 365)
		return fmt.Sprintf("depuis %d an%s", years, plural(years))
	}
}

// DaysToYearsMonths splits a day count into 365-day years and 30-day months,
// e.g. "1 an, 2 mois et 3 jours".
func DaysToYearsMonths(days int) string {
	if days <= 0 {
		return "0 jour"
	}
	years := days / 365
	rest := days - years*365
	months := rest / 30
	rest -= months * 30

	var parts []string
	if years > 0 {
		parts = append(parts, pluralize(years, "an", "ans"))
	}
	if months > 0 {
		parts = append(parts, pluralize(months, "mois", "mois"))
	}
	if rest > 0 {
		parts = append(parts, pluralize(rest, "jour", "jours"))
	}

	if len(parts) == 1 {
		return parts[0]
	}
	return strings.Join(parts[:len(parts)-1], ", ") + " et " + parts[len(parts)-1]
}

// FormatDate renders a date as DD/MM/YYYY.
func FormatDate(d entities.Date) string {
	if d.IsNull() {
		return ""
	}
	return d.Time().Format("02/01/2006")
}

// FormatMonthYear renders a date as MM/YY.
func FormatMonthYear(d entities.Date) string {
	if d.IsNull() {
		return ""
	}
	return d.Time().Format("01/06")
}

// RemoveAccents folds accented letters to their base letter.
func RemoveAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// NormalizeSearch lowercases and folds accents for name matching.
func NormalizeSearch(s string) string {
	return strings.ToLower(RemoveAccents(strings.TrimSpace(s)))
}

func plural(n int) string {
	if n > 1 {
		return "s"
	}
	return ""
}

func pluralize(n int, singular, plural string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, singular)
	}
	return fmt.Sprintf("%d %s", n, plural)
}

// roundHalfUp matches the rounding used for displayed week/month/year counts.
func roundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}
