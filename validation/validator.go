// Package validation checks and normalizes the query and path parameters of
// the dispomed API before they reach SQL.
package validation

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/dispomed/dispomed-api/entities"
)

const (
	MinSearchLength     = 2
	MaxSearchLength     = 50
	MaxSearchWords      = 6
	MaxCISCodes         = 100
	DefaultMonthsToShow = 12
	MaxMonthsToShow     = 1200
	MaxProductNameLen   = 200
)

// ErrMissingCISCodes is returned when cis_codes is absent or empty
var ErrMissingCISCodes = errors.New("cis_codes query param required")

var (
	// letters in any script, digits, spaces and the punctuation drug names use
	searchRegex = regexp.MustCompile(`^[\p{L}\p{N}\s\-\.\+'’/]+$`)
	atcRegex    = regexp.MustCompile(`^[A-Z][0-9A-Z]{0,6}$`)

	dangerousPatterns = []string{
		"<script", "</script>", "javascript:", "vbscript:", "onload=", "onerror=",
		"' or ", "\" or ", "union select", "drop table", "delete from", "insert into",
		"--", "/*", "*/", "exec(", "$(", "${", "../", "..\\", "%2e%2e",
	}
)

// SearchTerm trims term and reports whether it is long enough to query.
// Terms under two characters are not an error: the caller answers [].
func SearchTerm(term string) (string, bool, error) {
	term = strings.TrimSpace(term)
	if utf8.RuneCountInString(term) < MinSearchLength {
		return term, false, nil
	}
	if utf8.RuneCountInString(term) > MaxSearchLength {
		return "", false, fmt.Errorf("search term too long: maximum %d characters", MaxSearchLength)
	}
	if len(strings.Fields(term)) > MaxSearchWords {
		return "", false, fmt.Errorf("search term too complex: maximum %d words allowed", MaxSearchWords)
	}
	if err := rejectDangerous(term); err != nil {
		return "", false, err
	}
	if !searchRegex.MatchString(term) {
		return "", false, fmt.Errorf("search term contains invalid characters")
	}
	return term, true, nil
}

// CISCodes splits a comma-separated cis_codes parameter
func CISCodes(raw string) ([]string, error) {
	var codes []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if err := validateCode(part); err != nil {
			return nil, err
		}
		codes = append(codes, part)
	}
	if len(codes) == 0 {
		return nil, ErrMissingCISCodes
	}
	if len(codes) > MaxCISCodes {
		return nil, fmt.Errorf("too many cis_codes: maximum %d", MaxCISCodes)
	}
	return codes, nil
}

// CIS validates a single CIS code path parameter
func CIS(code string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", fmt.Errorf("cis code cannot be empty")
	}
	if err := validateCode(code); err != nil {
		return "", err
	}
	return code, nil
}

func validateCode(code string) error {
	if len(code) > 13 {
		return fmt.Errorf("invalid CIS code %q: at most 13 digits", code)
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return fmt.Errorf("invalid CIS code %q: only digits are allowed", code)
		}
	}
	return nil
}

// ProductID parses a positive product id path parameter
func ProductID(raw string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid product id %q: must be a positive integer", raw)
	}
	return id, nil
}

// ProductName checks a product name path parameter
func ProductName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", fmt.Errorf("product name cannot be empty")
	}
	if utf8.RuneCountInString(name) > MaxProductNameLen {
		return "", fmt.Errorf("product name too long: maximum %d characters", MaxProductNameLen)
	}
	if err := rejectDangerous(name); err != nil {
		return "", err
	}
	return name, nil
}

// MonthsToShow parses monthsToShow, defaulting to 12 when absent
func MonthsToShow(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultMonthsToShow, nil
	}
	months, err := strconv.Atoi(raw)
	if err != nil || months < 1 || months > MaxMonthsToShow {
		return 0, fmt.Errorf("invalid monthsToShow %q: must be between 1 and %d", raw, MaxMonthsToShow)
	}
	return months, nil
}

// MoleculeIDs validates a molecule filter made of one or more comma-separated ids
func MoleculeIDs(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	parts := strings.Split(raw, ",")
	for i, part := range parts {
		part = strings.TrimSpace(part)
		if id, err := strconv.Atoi(part); err != nil || id <= 0 {
			return "", fmt.Errorf("invalid molecule id %q", part)
		}
		parts[i] = part
	}
	return strings.Join(parts, ","), nil
}

// ATCClass validates an ATC code filter such as "N" or "J07"
func ATCClass(raw string) (string, error) {
	raw = strings.ToUpper(strings.TrimSpace(raw))
	if raw == "" {
		return "", nil
	}
	if !atcRegex.MatchString(raw) {
		return "", fmt.Errorf("invalid atcClass %q", raw)
	}
	return raw, nil
}

// Filter builds the incident filter of a request from its query string
func Filter(q url.Values) (entities.FilterState, error) {
	var (
		f   entities.FilterState
		err error
	)

	if f.MonthsToShow, err = MonthsToShow(q.Get("monthsToShow")); err != nil {
		return f, err
	}

	if product := strings.TrimSpace(q.Get("product")); product != "" {
		if utf8.RuneCountInString(product) > MaxSearchLength {
			return f, fmt.Errorf("product filter too long: maximum %d characters", MaxSearchLength)
		}
		if err := rejectDangerous(product); err != nil {
			return f, err
		}
		f.SearchTerm = product
	}

	if f.ATCClass, err = ATCClass(q.Get("atcClass")); err != nil {
		return f, err
	}
	if f.MoleculeID, err = MoleculeIDs(q.Get("molecule")); err != nil {
		return f, err
	}
	f.VaccinesOnly = q.Get("vaccinesOnly") == "true"
	return f, nil
}

func rejectDangerous(s string) error {
	lower := strings.ToLower(s)
	for _, pattern := range dangerousPatterns {
		if strings.Contains(lower, pattern) {
			return fmt.Errorf("input contains potentially dangerous content")
		}
	}
	if strings.ContainsRune(s, 0) {
		return fmt.Errorf("input contains invalid characters")
	}
	return nil
}
