package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"flag-challenge-service/internal/app"
	"flag-challenge-service/internal/domain"
	"flag-challenge-service/internal/infra/memory"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func testCatalog() []domain.Country {
	return []domain.Country{
		{Code: "ALB", Name: "Albania", DifficultyTier: "easy"},
		{Code: "BEL", Name: "Belgium", DifficultyTier: "easy"},
	}
}

func TestSelectNextNoRepeatWithinCycle(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	store.SeedCountries(testCatalog())
	selector := app.NewSelector(store, store, time.UTC).
		WithClock(fixedClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)))
	track := domain.GlobalTrack(domain.DefaultTier())

	first, err := selector.SelectNext(ctx, track)
	if err != nil {
		t.Fatalf("first select: %v", err)
	}
	second, err := selector.SelectNext(ctx, track)
	if err != nil {
		t.Fatalf("second select: %v", err)
	}
	if first.Code == second.Code {
		t.Fatalf("catalog of two must not repeat within a cycle, got %s twice", first.Code)
	}

	state, ok := store.TrackState(track)
	if !ok {
		t.Fatalf("track state missing")
	}
	if state.CycleNumber != 1 {
		t.Fatalf("expected cycle 1 before exhaustion, got %d", state.CycleNumber)
	}

	// Both countries are consumed; the third selection starts cycle 2.
	third, err := selector.SelectNext(ctx, track)
	if err != nil {
		t.Fatalf("third select: %v", err)
	}
	if third.Code != "ALB" && third.Code != "BEL" {
		t.Fatalf("unexpected country %s", third.Code)
	}
	state, _ = store.TrackState(track)
	if state.CycleNumber != 2 {
		t.Fatalf("exhaustion should advance the cycle, got %d", state.CycleNumber)
	}
}

func TestSelectNextCoversEligibleSetEachCycle(t *testing.T) {
	ctx := context.Background()
	catalog := []domain.Country{
		{Code: "ARG", Name: "Argentina"},
		{Code: "CAN", Name: "Canada"},
		{Code: "EGY", Name: "Egypt"},
		{Code: "IND", Name: "India"},
		{Code: "KEN", Name: "Kenya"},
		{Code: "NOR", Name: "Norway"},
		{Code: "PER", Name: "Peru"},
		{Code: "THA", Name: "Thailand"},
	}
	store := memory.NewStore()
	store.SeedCountries(catalog)
	selector := app.NewSelector(store, store, time.UTC).
		WithClock(fixedClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)))
	track := domain.GlobalTrack(domain.DefaultTier())

	for cycle := 0; cycle < 2; cycle++ {
		seen := make(map[string]bool)
		for i := 0; i < len(catalog); i++ {
			country, err := selector.SelectNext(ctx, track)
			if err != nil {
				t.Fatalf("cycle %d select %d: %v", cycle, i, err)
			}
			if seen[country.Code] {
				t.Fatalf("cycle %d repeated %s before exhaustion", cycle, country.Code)
			}
			seen[country.Code] = true
		}
		if len(seen) != len(catalog) {
			t.Fatalf("cycle %d covered %d of %d countries", cycle, len(seen), len(catalog))
		}
	}
}

func TestSelectNextEmptyEligibleSet(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	store.SeedCountries(testCatalog())
	selector := app.NewSelector(store, store, time.UTC)

	_, err := selector.SelectNext(ctx, domain.GlobalTrack(domain.NamedTier("expert")))
	if !errors.Is(err, domain.ErrNoEligibleCountries) {
		t.Fatalf("expected ErrNoEligibleCountries, got %v", err)
	}
}

func TestSelectNextNamedTierFilters(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	store.SeedCountries([]domain.Country{
		{Code: "FRA", Name: "France", DifficultyTier: "easy"},
		{Code: "DEU", Name: "Germany", DifficultyTier: "easy"},
		{Code: "KIR", Name: "Kiribati", DifficultyTier: "hard"},
	})
	selector := app.NewSelector(store, store, time.UTC)
	track := domain.GlobalTrack(domain.NamedTier("easy"))

	for i := 0; i < 4; i++ {
		country, err := selector.SelectNext(ctx, track)
		if err != nil {
			t.Fatalf("select %d: %v", i, err)
		}
		if country.DifficultyTier != "easy" {
			t.Fatalf("named tier leaked %s (%s)", country.Code, country.DifficultyTier)
		}
	}
}
