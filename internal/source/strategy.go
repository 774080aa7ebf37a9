package source

import (
	"errors"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// ErrNoStrategyMatched means the page layout matched none of the known parsers.
var ErrNoStrategyMatched = errors.New("source: no parsing strategy matched")

// Strategy is one way of reading candidates out of a page. TryParse reports
// false when the page does not have the shape the strategy expects.
type Strategy interface {
	Name() string
	TryParse(doc *goquery.Document, now time.Time) ([]Candidate, bool)
}

type strategyFunc struct {
	name string
	fn   func(doc *goquery.Document, now time.Time) ([]Candidate, bool)
}

func (s strategyFunc) Name() string { return s.name }

func (s strategyFunc) TryParse(doc *goquery.Document, now time.Time) ([]Candidate, bool) {
	return s.fn(doc, now)
}

// NewStrategy adapts a function to Strategy.
func NewStrategy(name string, fn func(doc *goquery.Document, now time.Time) ([]Candidate, bool)) Strategy {
	return strategyFunc{name: name, fn: fn}
}

// ParseFirst commits to the first strategy that recognises the document.
func ParseFirst(doc *goquery.Document, now time.Time, strategies []Strategy) ([]Candidate, string, error) {
	if doc == nil {
		return nil, "", ErrNoStrategyMatched
	}
	for _, st := range strategies {
		if st == nil {
			continue
		}
		out, ok := st.TryParse(doc, now)
		if ok {
			return out, st.Name(), nil
		}
	}
	return nil, "", ErrNoStrategyMatched
}

// firstMatch returns the elements of the first selector with at least one hit.
func firstMatch(sel *goquery.Selection, selectors []string) (*goquery.Selection, string) {
	for _, s := range selectors {
		found := sel.Find(s)
		if found.Length() > 0 {
			return found, s
		}
	}
	return nil, ""
}

// firstText returns the trimmed text (or attribute fallback) of the first selector
// that yields something non-empty inside sel.
func firstText(sel *goquery.Selection, selectors []string, attrs ...string) string {
	for _, s := range selectors {
		found := sel.Find(s).First()
		if found.Length() == 0 {
			continue
		}
		if txt := strings.TrimSpace(found.Text()); txt != "" {
			return txt
		}
		for _, a := range attrs {
			if v, ok := found.Attr(a); ok && strings.TrimSpace(v) != "" {
				return strings.TrimSpace(v)
			}
		}
	}
	return ""
}
