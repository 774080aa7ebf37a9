package source

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"contesttracker/internal/models"
)

const (
	LeetcodeGraphQLURL = "https://leetcode.com/graphql"
	LeetcodePageURL    = "https://leetcode.com/contest/"
	leetcodeBase       = "https://leetcode.com"

	leetcodeContestQuery = `query getContestList { allContests { title titleSlug startTime duration } }`

	// leetcodeScrapeDuration applies when a scraped card has no readable duration.
	leetcodeScrapeDuration = 90
)

var (
	leetcodeContainerSelectors = []string{
		".contest-table .contest-table__row",
		".swiper-slide",
		"[data-contest]",
		".card[data-contest-id]",
	}
	leetcodeTitleSelectors    = []string{".contest-title", ".title", "h4", "h3"}
	leetcodeTimeSelectors     = []string{".contest-start-time", ".time", "[data-time]", ".date"}
	leetcodeDurationSelectors = []string{".contest-duration", ".duration", "[data-duration]"}

	leetcodeHoursRe = regexp.MustCompile(`(?i)(\d+\.?\d*)\s*hour`)
	unixSecondsRe   = regexp.MustCompile(`^\d+$`)
)

type Leetcode struct {
	base
	GraphQLURL string
	PageURL    string
}

func NewLeetcode(fetcher *Fetcher, retry RetryPolicy, logger *zap.Logger) *Leetcode {
	return &Leetcode{
		base:       base{Fetcher: fetcher, Retry: retry, Logger: logger},
		GraphQLURL: LeetcodeGraphQLURL,
		PageURL:    LeetcodePageURL,
	}
}

func (a *Leetcode) Name() string              { return "leetcode" }
func (a *Leetcode) Platform() models.Platform { return models.PlatformLeetcode }

func (a *Leetcode) Fetch(ctx context.Context) ([]Candidate, error) {
	return a.primaryThenFallback(ctx, a.Name(), a.fetchGraphQL, a.fetchPage)
}

type leetcodeResponse struct {
	Data *struct {
		AllContests []struct {
			Title     string  `json:"title"`
			TitleSlug string  `json:"titleSlug"`
			StartTime flexInt `json:"startTime"`
			Duration  flexInt `json:"duration"`
		} `json:"allContests"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func (a *Leetcode) fetchGraphQL(ctx context.Context) ([]Candidate, error) {
	var resp leetcodeResponse
	body := map[string]any{"query": leetcodeContestQuery}
	if err := a.Fetcher.PostJSON(ctx, a.GraphQLURL, leetcodeBase, body, &resp); err != nil {
		return nil, err
	}
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("%w: leetcode graphql: %s", ErrNonSuccessPayload, resp.Errors[0].Message)
	}
	if resp.Data == nil || resp.Data.AllContests == nil {
		return nil, fmt.Errorf("%w: leetcode graphql: missing allContests", ErrNonSuccessPayload)
	}
	out := make([]Candidate, 0, len(resp.Data.AllContests))
	for _, c := range resp.Data.AllContests {
		if c.StartTime <= 0 || c.Duration <= 0 {
			continue
		}
		start := time.Unix(int64(c.StartTime), 0).UTC()
		minutes := int((int64(c.Duration) + 30) / 60)
		out = append(out, Candidate{
			Name:            c.Title,
			Platform:        models.PlatformLeetcode,
			StartTime:       start,
			EndTime:         start.Add(time.Duration(minutes) * time.Minute),
			URL:             leetcodeBase + "/contest/" + c.TitleSlug,
			DurationMinutes: minutes,
		})
	}
	return out, nil
}

func (a *Leetcode) fetchPage(ctx context.Context) ([]Candidate, error) {
	doc, err := a.Fetcher.GetDocument(ctx, a.PageURL, leetcodeBase)
	if err != nil {
		return nil, err
	}
	out, strategy, err := ParseFirst(doc, a.now(), LeetcodeStrategies(a.Logger))
	if err != nil {
		a.logWarn("leetcode page layout not recognised", err)
		return nil, nil
	}
	a.logInfo("leetcode page parsed", zap.String("strategy", strategy), zap.Int("count", len(out)))
	return out, nil
}

// LeetcodeStrategies tries the known contest-card containers in priority order.
func LeetcodeStrategies(logger *zap.Logger) []Strategy {
	out := make([]Strategy, 0, len(leetcodeContainerSelectors))
	for _, sel := range leetcodeContainerSelectors {
		sel := sel
		out = append(out, NewStrategy(sel, func(doc *goquery.Document, now time.Time) ([]Candidate, bool) {
			cards, _ := firstMatch(doc.Selection, []string{sel})
			if cards == nil {
				return nil, false
			}
			var items []Candidate
			cards.Each(func(_ int, card *goquery.Selection) {
				c, err := parseLeetcodeCard(card)
				if err != nil {
					if logger != nil {
						logger.Debug("leetcode card skipped", zap.Error(err))
					}
					return
				}
				items = append(items, c)
			})
			return items, true
		}))
	}
	return out
}

func parseLeetcodeCard(card *goquery.Selection) (Candidate, error) {
	name := firstText(card, leetcodeTitleSelectors)
	timeText := firstText(card, leetcodeTimeSelectors, "data-time")
	if name == "" || timeText == "" {
		return Candidate{}, fmt.Errorf("missing title or time")
	}
	start, placeholder, err := parseLeetcodeTime(timeText)
	if err != nil {
		return Candidate{}, err
	}

	minutes, estimated := leetcodeScrapeDuration, true
	if durText := firstText(card, leetcodeDurationSelectors, "data-duration"); durText != "" {
		if m := leetcodeHoursRe.FindStringSubmatch(durText); m != nil {
			if hours, err := decimal.NewFromString(m[1]); err == nil {
				minutes = int(hours.Mul(sixty).Round(0).IntPart())
				estimated = false
			}
		} else if n, ok := ParseDuration(durText); ok {
			minutes, estimated = n, false
		}
	}

	url := LeetcodePageURL
	for _, sel := range leetcodeTitleSelectors {
		if href, ok := card.Find(sel).Find("a").First().Attr("href"); ok && href != "" {
			if strings.HasPrefix(href, "/") {
				href = leetcodeBase + href
			}
			url = href
			break
		}
	}
	return Candidate{
		Name:                name,
		Platform:            models.PlatformLeetcode,
		StartTime:           start,
		URL:                 url,
		DurationMinutes:     minutes,
		IsDurationEstimated: estimated,
		IsPlaceholderTiming: placeholder,
	}, nil
}

var leetcodeTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"Jan 2, 2006 3:04 PM",
	"Jan 2, 2006 15:04",
	"Mon, Jan 2, 2006 3:04 PM",
}

var leetcodeDateLayouts = []string{
	"2006-01-02",
	"Jan 2, 2006",
	"January 2, 2006",
}

// parseLeetcodeTime reads unix seconds or a rendered date; a bare date yields a
// placeholder start at midnight UTC.
func parseLeetcodeTime(s string) (time.Time, bool, error) {
	s = strings.TrimSpace(s)
	if unixSecondsRe.MatchString(s) {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return time.Time{}, false, err
		}
		return time.Unix(n, 0).UTC(), false, nil
	}
	for _, layout := range leetcodeTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), false, nil
		}
	}
	for _, layout := range leetcodeDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true, nil
		}
	}
	return time.Time{}, false, fmt.Errorf("unrecognised start time %q", s)
}
