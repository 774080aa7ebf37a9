package source

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"contesttracker/internal/models"
)

const (
	sectionUpcoming = "Upcoming Contests"
	sectionPast     = "Past Contests"
	codeChefBaseURL = "https://www.codechef.com/"
)

// IST is the fixed offset CodeChef publishes its schedule in.
var IST = time.FixedZone("IST", 5*3600+30*60)

var (
	entryCodeRe  = regexp.MustCompile(`^(START|COOK|LTIME)\d+`)
	calendarRe   = regexp.MustCompile(`^(\d{1,2})\s+([A-Za-z]{3})[A-Za-z]*\s+(\d{4})$`)
	clockTimeRe  = regexp.MustCompile(`\b(\d{1,2}):(\d{2})\b`)
	chefDurRe    = regexp.MustCompile(`(?i)\d+\s*(?:hrs?|hours?|mins?)\b`)
	errNoEntries = fmt.Errorf("%w: no contest sections", ErrNoStrategyMatched)
)

// ClipboardParser reads the text of the CodeChef contests page (copied from a
// browser or flattened from HTML) into candidates.
type ClipboardParser struct {
	Logger *zap.Logger
}

// Parse scans both contest sections. A malformed entry is logged and the cursor
// moves to the next entry marker, so the rest of the section survives.
func (p *ClipboardParser) Parse(lines []string) ([]Candidate, error) {
	upIdx, pastIdx := -1, -1
	for i, line := range lines {
		switch strings.TrimSpace(line) {
		case sectionUpcoming:
			if upIdx < 0 {
				upIdx = i
			}
		case sectionPast:
			if pastIdx < 0 {
				pastIdx = i
			}
		}
	}
	if upIdx < 0 && pastIdx < 0 {
		return nil, errNoEntries
	}

	var out []Candidate
	if upIdx >= 0 {
		end := len(lines)
		if pastIdx > upIdx {
			end = pastIdx
		}
		out = append(out, p.parseSection(lines, upIdx+1, end)...)
	}
	if pastIdx >= 0 {
		end := len(lines)
		if upIdx > pastIdx {
			end = upIdx
		}
		out = append(out, p.parseSection(lines, pastIdx+1, end)...)
	}
	return out, nil
}

func (p *ClipboardParser) parseSection(lines []string, lo, hi int) []Candidate {
	var out []Candidate
	i := nextMarker(lines, lo, hi)
	for i < hi {
		next := nextMarker(lines, i+1, hi)
		c, err := parseEntry(strings.TrimSpace(lines[i]), lines[i+1:next])
		if err != nil {
			p.logWarn("codechef entry skipped", err, zap.Int("line", i), zap.String("code", lines[i]))
		} else {
			out = append(out, c)
		}
		i = next
	}
	return out
}

func nextMarker(lines []string, from, hi int) int {
	for i := from; i < hi; i++ {
		if entryCodeRe.MatchString(strings.TrimSpace(lines[i])) {
			return i
		}
	}
	return hi
}

// parseEntry reads: name, calendar date, optional "Wed 20:00", duration text.
func parseEntry(code string, fields []string) (Candidate, error) {
	var clean []string
	for _, f := range fields {
		if s := strings.TrimSpace(f); s != "" {
			clean = append(clean, s)
		}
	}
	if len(clean) < 2 {
		return Candidate{}, fmt.Errorf("entry %s: too few fields (%d)", code, len(clean))
	}
	name := clean[0]
	date, err := parseCalendarDate(clean[1])
	if err != nil {
		return Candidate{}, fmt.Errorf("entry %s: %w", code, err)
	}

	rest := clean[2:]
	start := date
	placeholder := true
	if len(rest) > 0 {
		if m := clockTimeRe.FindStringSubmatch(rest[0]); m != nil && !chefDurRe.MatchString(rest[0]) {
			h, _ := strconv.Atoi(m[1])
			mm, _ := strconv.Atoi(m[2])
			if h > 23 || mm > 59 {
				return Candidate{}, fmt.Errorf("entry %s: bad time %q", code, rest[0])
			}
			start = time.Date(date.Year(), date.Month(), date.Day(), h, mm, 0, 0, IST)
			placeholder = false
			rest = rest[1:]
		}
	}
	if placeholder {
		// bare calendar dates come through one day early
		start = start.AddDate(0, 0, 1)
	}

	durText := ""
	for _, f := range rest {
		if chefDurRe.MatchString(f) {
			durText = f
			break
		}
	}
	minutes, estimated := DurationOrDefault(durText)
	return Candidate{
		Name:                name,
		Platform:            models.PlatformCodeChef,
		StartTime:           start,
		URL:                 codeChefBaseURL + code,
		DurationMinutes:     minutes,
		IsDurationEstimated: estimated,
		IsPlaceholderTiming: placeholder,
	}, nil
}

func parseCalendarDate(s string) (time.Time, error) {
	m := calendarRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return time.Time{}, fmt.Errorf("bad date %q", s)
	}
	mon := strings.ToUpper(m[2][:1]) + strings.ToLower(m[2][1:3])
	return time.ParseInLocation("2 Jan 2006", m[1]+" "+mon+" "+m[3], IST)
}

func (p *ClipboardParser) logWarn(msg string, err error, fields ...zap.Field) {
	if p == nil || p.Logger == nil {
		return
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	p.Logger.Warn(msg, fields...)
}
