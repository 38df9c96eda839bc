package conversation

import (
	"strings"
	"time"

	"github.com/insurelab/termlife-ai-platform/internal/decision"
	"github.com/insurelab/termlife-ai-platform/internal/session"
)

// Accepted date-of-birth layouts, tried in order. Day-first layouts come
// before ambiguous ones so "02-01-1990" reads as 2 January.
var dobLayouts = []string{
	"2006-01-02",
	"02-01-2006",
	"02/01/2006",
	"2 Jan 2006",
	"2 January 2006",
}

// parseDOB parses a date of birth in any accepted layout. Returns false for
// unparseable or future dates.
func parseDOB(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range dobLayouts {
		t, err := time.Parse(layout, raw)
		if err != nil {
			continue
		}
		if t.After(time.Now()) {
			return time.Time{}, false
		}
		return t, true
	}
	return time.Time{}, false
}

// ageFromDOB computes completed years as of now, accounting for whether the
// birthday has passed this year.
func ageFromDOB(dob time.Time, now time.Time) int {
	age := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		age--
	}
	if age < 0 {
		return 0
	}
	return age
}

// normalizeExtracted converts a model extraction into a customer-data delta
// ready to merge. Scalars are trimmed and lowercased where the downstream
// lookups expect canonical values; a date of birth additionally derives age
// when the model did not supply one.
func normalizeExtracted(e decision.Extracted) session.CustomerData {
	var out session.CustomerData

	if e.FullName != nil {
		if v := strings.TrimSpace(*e.FullName); v != "" {
			out.FullName = &v
		}
	}
	if e.DateOfBirth != nil {
		if dob, ok := parseDOB(*e.DateOfBirth); ok {
			iso := dob.Format("2006-01-02")
			out.DateOfBirth = &iso
			if e.Age == nil {
				age := ageFromDOB(dob, time.Now())
				out.Age = &age
			}
		}
	}
	if e.Age != nil && *e.Age > 0 && *e.Age < 120 {
		age := *e.Age
		out.Age = &age
	}
	if e.Gender != nil {
		if v := normalizeGenderWord(*e.Gender); v != "" {
			out.Gender = &v
		}
	}
	if e.Occupation != nil {
		if v := strings.ToLower(strings.TrimSpace(*e.Occupation)); v != "" {
			out.Occupation = &v
		}
	}
	if e.Smoker != nil {
		v := *e.Smoker
		out.Smoker = &v
	}
	if e.MobileNumber != nil {
		if v := normalizeMobile(*e.MobileNumber); v != "" {
			out.MobileNumber = &v
		}
	}
	if e.Email != nil {
		if v := strings.ToLower(strings.TrimSpace(*e.Email)); strings.Contains(v, "@") {
			out.Email = &v
		}
	}
	if e.PinCode != nil {
		if v := strings.TrimSpace(*e.PinCode); len(v) == 6 && allDigits(v) {
			out.PinCode = &v
		}
	}
	if e.CoverageAmount != nil && *e.CoverageAmount > 0 {
		v := *e.CoverageAmount
		out.CoverageAmount = &v
	}
	if e.PolicyTerm != nil && *e.PolicyTerm > 0 {
		v := *e.PolicyTerm
		out.PolicyTerm = &v
	}
	if e.PremiumFrequency != nil {
		if v := normalizeFrequency(*e.PremiumFrequency); v != "" {
			out.PremiumFrequency = &v
		}
	}
	if len(e.RidersInterest) > 0 {
		riders := make([]string, 0, len(e.RidersInterest))
		for _, r := range e.RidersInterest {
			if r = strings.ToLower(strings.TrimSpace(r)); r != "" {
				riders = append(riders, r)
			}
		}
		if len(riders) > 0 {
			out.RidersInterest = riders
		}
	}
	return out
}

func normalizeGenderWord(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "m", "male", "man":
		return "male"
	case "f", "female", "woman":
		return "female"
	case "other", "non-binary", "nonbinary":
		return "other"
	}
	return ""
}

// normalizeMobile strips separators and a leading country code, keeping the
// ten-digit national number.
func normalizeMobile(raw string) string {
	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	n := digits.String()
	if len(n) == 12 && strings.HasPrefix(n, "91") {
		n = n[2:]
	}
	if len(n) == 11 && strings.HasPrefix(n, "0") {
		n = n[1:]
	}
	if len(n) != 10 {
		return ""
	}
	return n
}

func normalizeFrequency(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "yearly", "annual", "annually":
		return "yearly"
	case "half_yearly", "half-yearly", "semi-annual", "semiannual":
		return "half_yearly"
	case "quarterly":
		return "quarterly"
	case "monthly":
		return "monthly"
	}
	return ""
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
