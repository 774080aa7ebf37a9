package service

import (
	"context"
	"time"

	"contesttracker/internal/models"
	"contesttracker/internal/source"
)

type stubAdapter struct {
	name   string
	items  []source.Candidate
	err    error
	panics bool
	calls  int
}

func (s *stubAdapter) Name() string              { return s.name }
func (s *stubAdapter) Platform() models.Platform { return models.PlatformCodeforces }

func (s *stubAdapter) Fetch(ctx context.Context) ([]source.Candidate, error) {
	s.calls++
	if s.panics {
		panic("parser blew up")
	}
	return s.items, s.err
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func candidate(name string, platform models.Platform, start time.Time, minutes int) source.Candidate {
	return source.Candidate{
		Name:            name,
		Platform:        platform,
		StartTime:       start,
		EndTime:         start.Add(time.Duration(minutes) * time.Minute),
		URL:             "https://example.com/" + name,
		DurationMinutes: minutes,
	}
}
