package source

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultDurationMinutes is used when a free-text duration cannot be parsed.
const DefaultDurationMinutes = 120

var (
	hoursMinutesRe = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(?:hrs?|hours?)\b(?:\s*(\d+)\s*(?:mins?|minutes?)\b)?`)
	minutesOnlyRe  = regexp.MustCompile(`(?i)^(\d+)\s*(?:m|mins?|minutes?)$`)
	clockRe        = regexp.MustCompile(`^(?:(\d+):)?(\d{1,3}):(\d{2})$`)
	sixty          = decimal.NewFromInt(60)
)

// ParseDuration reads free-text durations such as "2 Hrs 30 Min", "1.5 hours",
// "90 minutes" or "02:30" and returns whole minutes.
func ParseDuration(text string) (int, bool) {
	s := strings.TrimSpace(text)
	if s == "" {
		return 0, false
	}
	if m := clockRe.FindStringSubmatch(s); m != nil {
		days := 0
		if m[1] != "" {
			days, _ = strconv.Atoi(m[1])
		}
		h, _ := strconv.Atoi(m[2])
		mm, _ := strconv.Atoi(m[3])
		total := days*24*60 + h*60 + mm
		return total, total > 0
	}
	if m := hoursMinutesRe.FindStringSubmatch(s); m != nil {
		hours, err := decimal.NewFromString(m[1])
		if err != nil {
			return 0, false
		}
		total := hours.Mul(sixty)
		if m[2] != "" {
			mins, _ := strconv.Atoi(m[2])
			total = total.Add(decimal.NewFromInt(int64(mins)))
		}
		n := int(total.Round(0).IntPart())
		return n, n > 0
	}
	if m := minutesOnlyRe.FindStringSubmatch(s); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n, n > 0
	}
	return 0, false
}

// DurationOrDefault parses text and falls back to DefaultDurationMinutes, reporting
// whether the value is an estimate.
func DurationOrDefault(text string) (minutes int, estimated bool) {
	if n, ok := ParseDuration(text); ok {
		return n, false
	}
	return DefaultDurationMinutes, true
}
