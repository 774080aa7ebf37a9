package source

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"contesttracker/internal/models"
)

const (
	CodeChefAPIURL  = "https://www.codechef.com/api/list/contests/all"
	CodeChefPageURL = "https://www.codechef.com/contests"

	// CodeChefDefaultDuration applies to API entries with neither a duration nor an end.
	CodeChefDefaultDuration = 180
)

type CodeChef struct {
	base
	APIURL  string
	PageURL string
	Parser  *ClipboardParser
}

func NewCodeChef(fetcher *Fetcher, retry RetryPolicy, logger *zap.Logger) *CodeChef {
	return &CodeChef{
		base:    base{Fetcher: fetcher, Retry: retry, Logger: logger},
		APIURL:  CodeChefAPIURL,
		PageURL: CodeChefPageURL,
		Parser:  &ClipboardParser{Logger: logger},
	}
}

func (a *CodeChef) Name() string              { return "codechef" }
func (a *CodeChef) Platform() models.Platform { return models.PlatformCodeChef }

func (a *CodeChef) Fetch(ctx context.Context) ([]Candidate, error) {
	return a.primaryThenFallback(ctx, a.Name(), a.fetchAPI, a.fetchPage)
}

// flexInt accepts both 120 and "120".
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		*f = 0
		return nil
	}
	*f = flexInt(n)
	return nil
}

type codeChefContest struct {
	Code     string  `json:"contest_code"`
	Name     string  `json:"contest_name"`
	StartISO string  `json:"contest_start_date_iso"`
	EndISO   string  `json:"contest_end_date_iso"`
	Duration flexInt `json:"contest_duration"`
}

type codeChefResponse struct {
	Status  string            `json:"status"`
	Message string            `json:"message"`
	Future  []codeChefContest `json:"future_contests"`
	Present []codeChefContest `json:"present_contests"`
	Past    []codeChefContest `json:"past_contests"`
}

func (a *CodeChef) fetchAPI(ctx context.Context) ([]Candidate, error) {
	var resp codeChefResponse
	if err := a.Fetcher.GetJSON(ctx, a.APIURL, "https://www.codechef.com", &resp); err != nil {
		return nil, err
	}
	if resp.Status != "success" {
		return nil, fmt.Errorf("%w: codechef status %q: %s", ErrNonSuccessPayload, resp.Status, resp.Message)
	}
	var out []Candidate
	for _, group := range [][]codeChefContest{resp.Present, resp.Future, resp.Past} {
		for _, c := range group {
			cand, err := codeChefCandidate(c)
			if err != nil {
				a.logWarn("codechef contest skipped", err, zap.String("code", c.Code))
				continue
			}
			out = append(out, cand)
		}
	}
	return out, nil
}

func codeChefCandidate(c codeChefContest) (Candidate, error) {
	start, err := time.Parse(time.RFC3339, strings.TrimSpace(c.StartISO))
	if err != nil {
		return Candidate{}, fmt.Errorf("start: %w", err)
	}
	cand := Candidate{
		Name:            c.Name,
		Platform:        models.PlatformCodeChef,
		StartTime:       start,
		URL:             codeChefBaseURL + strings.TrimSpace(c.Code),
		DurationMinutes: int(c.Duration),
	}
	if strings.TrimSpace(c.EndISO) != "" {
		end, err := time.Parse(time.RFC3339, strings.TrimSpace(c.EndISO))
		if err != nil {
			return Candidate{}, fmt.Errorf("end: %w", err)
		}
		cand.EndTime = end
	}
	if cand.DurationMinutes <= 0 && cand.EndTime.IsZero() {
		cand.DurationMinutes = CodeChefDefaultDuration
		cand.IsDurationEstimated = true
	}
	return cand, nil
}

func (a *CodeChef) fetchPage(ctx context.Context) ([]Candidate, error) {
	raw, err := a.Fetcher.GetPage(ctx, a.PageURL, "https://www.codechef.com")
	if err != nil {
		return nil, err
	}
	lines, err := PageLines(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	out, err := a.Parser.Parse(lines)
	if err != nil {
		a.logWarn("codechef page layout not recognised", err)
		return nil, nil
	}
	return out, nil
}

// ParseClipboardText parses text pasted from the contests page.
func (a *CodeChef) ParseClipboardText(text string) ([]Candidate, error) {
	out, err := a.Parser.Parse(SplitLines(text))
	if err != nil {
		return nil, err
	}
	return Validate(out, a.now(), a.Logger), nil
}
