package app

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"flag-challenge-service/internal/domain"
)

// Selector implements no-repeat cycling selection over a rotation track.
// Each track walks its eligible set exactly once per cycle; when the set is
// exhausted the shown records are cleared in bulk and the cycle counter
// advances. Uniqueness of (track, code) in storage is the arbiter under
// concurrency: a selector losing that insert race redraws rather than
// double-counting.
type Selector struct {
	catalog CatalogRepository
	tracks  RotationRepository
	loc     *time.Location
	now     func() time.Time

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewSelector(catalog CatalogRepository, tracks RotationRepository, loc *time.Location) *Selector {
	return &Selector{
		catalog: catalog,
		tracks:  tracks,
		loc:     loc,
		now:     time.Now,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// WithClock is a test hook for deterministic dates.
func (s *Selector) WithClock(now func() time.Time) *Selector {
	s.now = now
	return s
}

// SelectNext picks the track's next country. Every country in the eligible
// set is returned exactly once before any repeats; an empty eligible set is
// an error, never a reset loop.
func (s *Selector) SelectNext(ctx context.Context, track domain.Track) (domain.Country, error) {
	eligible, err := s.eligibleCountries(ctx, track.Tier)
	if err != nil {
		return domain.Country{}, err
	}
	if len(eligible) == 0 {
		return domain.Country{}, domain.ErrNoEligibleCountries
	}

	today := domain.DateOf(s.now(), s.loc)
	state, err := s.tracks.GetOrCreateTrack(ctx, track, today)
	if err != nil {
		return domain.Country{}, fmt.Errorf("get track: %w", err)
	}

	// Two passes: if every draw in the first pass loses its insert race the
	// cycle was exhausted concurrently, and the second pass starts fresh
	// after a reset.
	for pass := 0; pass < 2; pass++ {
		shown, err := s.tracks.ListShown(ctx, track)
		if err != nil {
			return domain.Country{}, fmt.Errorf("list shown: %w", err)
		}

		available := subtractShown(eligible, shown)
		if len(available) == 0 {
			state.CycleNumber++
			state.CycleStartDate = today
			if err := s.tracks.ResetCycle(ctx, track, state.CycleNumber, today); err != nil {
				return domain.Country{}, fmt.Errorf("reset cycle: %w", err)
			}
			available = append([]domain.Country(nil), eligible...)
		}

		for len(available) > 0 {
			idx := s.draw(len(available))
			picked := available[idx]

			err := s.tracks.MarkShown(ctx, track, picked.Code)
			if errors.Is(err, domain.ErrAlreadyShown) {
				// Lost the race for this slot; drop it and redraw.
				available = append(available[:idx], available[idx+1:]...)
				continue
			}
			if err != nil {
				return domain.Country{}, fmt.Errorf("mark shown: %w", err)
			}

			state.LastSelectionDate = today
			if err := s.tracks.SaveTrack(ctx, state); err != nil {
				return domain.Country{}, fmt.Errorf("save track: %w", err)
			}
			return picked, nil
		}
	}
	return domain.Country{}, fmt.Errorf("select next for track %s: %w", track.Key(), domain.ErrAlreadyShown)
}

// eligibleCountries is the single tier dispatch point. Default and
// user-custom tracks rotate over the full catalog (a custom track is a
// personal rotation, not a filter); named tiers filter by difficulty label.
func (s *Selector) eligibleCountries(ctx context.Context, tier domain.Tier) ([]domain.Country, error) {
	switch tier.Kind() {
	case domain.TierNamed:
		return s.catalog.ListByTier(ctx, tier.Label())
	default:
		return s.catalog.ListAll(ctx)
	}
}

func (s *Selector) draw(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rnd.Intn(n)
}

func subtractShown(eligible []domain.Country, shown []string) []domain.Country {
	if len(shown) == 0 {
		return append([]domain.Country(nil), eligible...)
	}
	exclude := make(map[string]struct{}, len(shown))
	for _, code := range shown {
		exclude[code] = struct{}{}
	}
	available := make([]domain.Country, 0, len(eligible))
	for _, c := range eligible {
		if _, ok := exclude[c.Code]; !ok {
			available = append(available, c)
		}
	}
	return available
}
