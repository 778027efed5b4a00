package domain_test

import (
	"reflect"
	"testing"
	"time"

	"flag-challenge-service/internal/domain"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestStreakExtendsOnConsecutiveDays(t *testing.T) {
	var s domain.StreakState

	s.ApplyOutcome(true, "FRA", day("2026-03-01"))
	if s.CurrentStreak != 1 || s.TotalCorrect != 1 {
		t.Fatalf("first correct day: streak=%d total=%d", s.CurrentStreak, s.TotalCorrect)
	}

	s.ApplyOutcome(true, "DEU", day("2026-03-02"))
	if s.CurrentStreak != 2 || s.LongestStreak != 2 {
		t.Fatalf("consecutive day should extend: streak=%d longest=%d", s.CurrentStreak, s.LongestStreak)
	}
}

func TestStreakRestartsAfterGap(t *testing.T) {
	var s domain.StreakState
	s.ApplyOutcome(true, "FRA", day("2026-03-01"))
	s.ApplyOutcome(true, "DEU", day("2026-03-02"))

	s.ApplyOutcome(true, "JPN", day("2026-03-05"))
	if s.CurrentStreak != 1 {
		t.Fatalf("gap should restart streak at 1, got %d", s.CurrentStreak)
	}
	if s.LongestStreak != 2 {
		t.Fatalf("longest streak must survive the restart, got %d", s.LongestStreak)
	}
	if s.TotalCorrect != 3 {
		t.Fatalf("total correct should be 3, got %d", s.TotalCorrect)
	}
}

func TestStreakFailureZeroesAndRecordsMiss(t *testing.T) {
	var s domain.StreakState
	s.ApplyOutcome(true, "FRA", day("2026-03-01"))

	s.ApplyOutcome(false, "BRA", day("2026-03-02"))
	if s.CurrentStreak != 0 {
		t.Fatalf("failure should zero the streak, got %d", s.CurrentStreak)
	}
	if !reflect.DeepEqual(s.MissedCountryCodes, []string{"BRA"}) {
		t.Fatalf("missed codes: %v", s.MissedCountryCodes)
	}
	if !s.LastCorrectDate.Equal(day("2026-03-01")) {
		t.Fatalf("failure must not move the last correct date")
	}
	if !s.LastGuessDate.Equal(day("2026-03-02")) {
		t.Fatalf("failure should still move the last guess date")
	}

	// Missing the same country again is a no-op on the set.
	s.ApplyOutcome(false, "BRA", day("2026-03-03"))
	if !reflect.DeepEqual(s.MissedCountryCodes, []string{"BRA"}) {
		t.Fatalf("missed codes must stay a set: %v", s.MissedCountryCodes)
	}
}

func TestDateOfNormalizesAcrossZones(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}

	// 03:00 UTC on March 2 is still March 1 in New York.
	instant := time.Date(2026, 3, 2, 3, 0, 0, 0, time.UTC)
	got := domain.DateOf(instant, ny)
	want := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if domain.DateKey(got) != "2026-03-01" {
		t.Fatalf("unexpected date key %q", domain.DateKey(got))
	}
}
