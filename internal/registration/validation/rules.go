package validation

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var (
	ssnPattern   = regexp.MustCompile(`^(\d{3})-?(\d{2})-?(\d{4})$`)
	zipPattern   = regexp.MustCompile(`^\d{5}(-\d{4})?$`)
	phoneCleaner = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "")
)

// stateCodes is the closed set of accepted region codes: the 50 states, DC and
// the inhabited territories.
var stateCodes = map[string]struct{}{
	"AL": {}, "AK": {}, "AZ": {}, "AR": {}, "CA": {}, "CO": {}, "CT": {}, "DE": {},
	"FL": {}, "GA": {}, "HI": {}, "ID": {}, "IL": {}, "IN": {}, "IA": {}, "KS": {},
	"KY": {}, "LA": {}, "ME": {}, "MD": {}, "MA": {}, "MI": {}, "MN": {}, "MS": {},
	"MO": {}, "MT": {}, "NE": {}, "NV": {}, "NH": {}, "NJ": {}, "NM": {}, "NY": {},
	"NC": {}, "ND": {}, "OH": {}, "OK": {}, "OR": {}, "PA": {}, "RI": {}, "SC": {},
	"SD": {}, "TN": {}, "TX": {}, "UT": {}, "VT": {}, "VA": {}, "WA": {}, "WV": {},
	"WI": {}, "WY": {}, "DC": {}, "PR": {}, "GU": {}, "VI": {}, "AS": {}, "MP": {},
}

var dobLayouts = []string{"2006-01-02", "01/02/2006", time.RFC3339}

// earliestDOB bounds obviously wrong years typed into the date field.
var earliestDOB = time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)

func isValidSSN(fl validator.FieldLevel) bool {
	_, ok := normalizeSSN(fl.Field().String())
	return ok
}

// normalizeSSN checks the structural SSN rules and returns the dashed form.
// Area 000, 666 and 9xx, group 00 and serial 0000 are never issued.
func normalizeSSN(raw string) (string, bool) {
	m := ssnPattern.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return "", false
	}
	area, group, serial := m[1], m[2], m[3]
	if area == "000" || area == "666" || area[0] == '9' {
		return "", false
	}
	if group == "00" || serial == "0000" {
		return "", false
	}
	return area + "-" + group + "-" + serial, true
}

func isValidState(fl validator.FieldLevel) bool {
	_, ok := stateCodes[strings.ToUpper(fl.Field().String())]
	return ok
}

func isValidZip(fl validator.FieldLevel) bool {
	return zipPattern.MatchString(fl.Field().String())
}

func isValidPhone(fl validator.FieldLevel) bool {
	_, ok := normalizePhone(fl.Field().String())
	return ok
}

// normalizePhone strips formatting and an optional leading '+'. Numbers keep
// 10 to 15 digits.
func normalizePhone(raw string) (string, bool) {
	digits := strings.TrimPrefix(phoneCleaner.Replace(strings.TrimSpace(raw)), "+")
	if len(digits) < 10 || len(digits) > 15 {
		return "", false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return "", false
		}
	}
	return digits, true
}

// parseDOB coerces the accepted date representations to a UTC date.
func parseDOB(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil {
		t := time.Unix(secs, 0).UTC()
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
	}
	for _, layout := range dobLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}
