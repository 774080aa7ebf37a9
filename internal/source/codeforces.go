package source

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"contesttracker/internal/models"
)

const (
	CodeforcesAPIURL  = "https://codeforces.com/api/contest.list"
	CodeforcesPageURL = "https://codeforces.com/contests"
	codeforcesBase    = "https://codeforces.com"
)

// codeforcesZone is the fixed UTC+3 the contests page renders times in.
var codeforcesZone = time.FixedZone("MSK", 3*3600)

type Codeforces struct {
	base
	APIURL  string
	PageURL string
}

func NewCodeforces(fetcher *Fetcher, retry RetryPolicy, logger *zap.Logger) *Codeforces {
	return &Codeforces{
		base:    base{Fetcher: fetcher, Retry: retry, Logger: logger},
		APIURL:  CodeforcesAPIURL,
		PageURL: CodeforcesPageURL,
	}
}

func (a *Codeforces) Name() string              { return "codeforces" }
func (a *Codeforces) Platform() models.Platform { return models.PlatformCodeforces }

func (a *Codeforces) Fetch(ctx context.Context) ([]Candidate, error) {
	return a.primaryThenFallback(ctx, a.Name(), a.fetchAPI, a.fetchPage)
}

type codeforcesResponse struct {
	Status  string `json:"status"`
	Comment string `json:"comment"`
	Result  []struct {
		ID               int64  `json:"id"`
		Name             string `json:"name"`
		Phase            string `json:"phase"`
		DurationSeconds  int64  `json:"durationSeconds"`
		StartTimeSeconds int64  `json:"startTimeSeconds"`
	} `json:"result"`
}

func (a *Codeforces) fetchAPI(ctx context.Context) ([]Candidate, error) {
	var resp codeforcesResponse
	if err := a.Fetcher.GetJSON(ctx, a.APIURL, codeforcesBase, &resp); err != nil {
		return nil, err
	}
	if resp.Status != "OK" {
		return nil, fmt.Errorf("%w: codeforces status %q: %s", ErrNonSuccessPayload, resp.Status, resp.Comment)
	}
	out := make([]Candidate, 0, len(resp.Result))
	for _, c := range resp.Result {
		if c.StartTimeSeconds == 0 {
			continue
		}
		start := time.Unix(c.StartTimeSeconds, 0).UTC()
		out = append(out, Candidate{
			Name:            c.Name,
			Platform:        models.PlatformCodeforces,
			StartTime:       start,
			EndTime:         start.Add(time.Duration(c.DurationSeconds) * time.Second),
			URL:             fmt.Sprintf("%s/contest/%d", codeforcesBase, c.ID),
			DurationMinutes: int((c.DurationSeconds + 30) / 60),
		})
	}
	return out, nil
}

func (a *Codeforces) fetchPage(ctx context.Context) ([]Candidate, error) {
	doc, err := a.Fetcher.GetDocument(ctx, a.PageURL, codeforcesBase)
	if err != nil {
		return nil, err
	}
	out, strategy, err := ParseFirst(doc, a.now(), CodeforcesStrategies(a.Logger))
	if err != nil {
		a.logWarn("codeforces page layout not recognised", err)
		return nil, nil
	}
	a.logInfo("codeforces page parsed", zap.String("strategy", strategy), zap.Int("count", len(out)))
	return out, nil
}

// CodeforcesStrategies lists the known layouts of the contests page, newest first.
func CodeforcesStrategies(logger *zap.Logger) []Strategy {
	return []Strategy{
		codeforcesTableStrategy("datatable", "div.contestList div.datatable table tr", logger),
		codeforcesTableStrategy("any-datatable", "div.datatable table tr", logger),
	}
}

func codeforcesTableStrategy(name, rowSelector string, logger *zap.Logger) Strategy {
	return NewStrategy(name, func(doc *goquery.Document, now time.Time) ([]Candidate, bool) {
		rows := doc.Find(rowSelector)
		if rows.Length() == 0 {
			return nil, false
		}
		var out []Candidate
		rows.Each(func(_ int, row *goquery.Selection) {
			c, ok := parseCodeforcesRow(row)
			if !ok {
				return
			}
			out = append(out, c)
		})
		if logger != nil && len(out) == 0 {
			logger.Warn("codeforces rows matched but none parsed", zap.String("selector", rowSelector), zap.Int("rows", rows.Length()))
		}
		return out, true
	})
}

func parseCodeforcesRow(row *goquery.Selection) (Candidate, bool) {
	cols := row.Find("td")
	if cols.Length() < 6 {
		return Candidate{}, false
	}
	nameCol := cols.Eq(0)
	name := strings.Join(strings.Fields(nameCol.Text()), " ")
	startText := strings.TrimSpace(cols.Eq(2).Text())
	durText := strings.TrimSpace(cols.Eq(3).Text())
	if name == "" || startText == "" || durText == "" {
		return Candidate{}, false
	}
	start, err := parseCodeforcesTime(startText)
	if err != nil {
		return Candidate{}, false
	}
	minutes, estimated := DurationOrDefault(durText)

	url := CodeforcesPageURL
	if href, ok := nameCol.Find("a").First().Attr("href"); ok {
		parts := strings.Split(strings.TrimRight(href, "/"), "/")
		if id := parts[len(parts)-1]; id != "" {
			url = codeforcesBase + "/contest/" + id
		}
	} else if id, ok := row.Attr("data-contestid"); ok && id != "" {
		url = codeforcesBase + "/contest/" + id
	}
	return Candidate{
		Name:                name,
		Platform:            models.PlatformCodeforces,
		StartTime:           start,
		URL:                 url,
		DurationMinutes:     minutes,
		IsDurationEstimated: estimated,
	}, true
}

// the cell text runs the zone suffix into the clock, e.g. "Sep/01/2024 17:35UTC+3"
var codeforcesTimeRe = regexp.MustCompile(`[A-Z][a-z]{2}/\d{2}/\d{4}\s+\d{2}:\d{2}`)

func parseCodeforcesTime(s string) (time.Time, error) {
	m := codeforcesTimeRe.FindString(s)
	if m == "" {
		return time.Time{}, fmt.Errorf("bad start time %q", s)
	}
	return time.ParseInLocation("Jan/02/2006 15:04", strings.Join(strings.Fields(m), " "), codeforcesZone)
}
