package app

import (
	"context"
	"time"

	"flag-challenge-service/internal/domain"
)

// CatalogRepository is the read-only view of the country catalog. The engine
// never writes through it.
type CatalogRepository interface {
	ListAll(ctx context.Context) ([]domain.Country, error)
	ListByTier(ctx context.Context, tier string) ([]domain.Country, error)
	GetByCode(ctx context.Context, code string) (domain.Country, error)
}

// RotationRepository persists per-track cycle state. Rows are owned by the
// selector; nothing else reads or writes them.
type RotationRepository interface {
	// GetOrCreateTrack returns the track's state, creating cycle 1 starting
	// today on first use.
	GetOrCreateTrack(ctx context.Context, track domain.Track, today time.Time) (domain.RotationState, error)
	// ListShown returns the codes already shown in the track's current cycle.
	ListShown(ctx context.Context, track domain.Track) ([]string, error)
	// MarkShown records a code into the current cycle. A concurrent duplicate
	// surfaces as domain.ErrAlreadyShown; the caller redraws.
	MarkShown(ctx context.Context, track domain.Track, code string) error
	// ResetCycle clears the track's shown set and advances its cycle counter
	// in one step.
	ResetCycle(ctx context.Context, track domain.Track, newCycle int, cycleStart time.Time) error
	// SaveTrack persists selection bookkeeping (lastSelectionDate).
	SaveTrack(ctx context.Context, state domain.RotationState) error
}

// ChallengeRepository persists daily challenges and their derived questions.
type ChallengeRepository interface {
	// GetByDate returns the challenge for a date, or domain.ErrChallengeNotFound.
	GetByDate(ctx context.Context, date time.Time) (domain.Challenge, error)
	// Create inserts a challenge and its question as one step. A concurrent
	// create for the same date surfaces as domain.ErrChallengeExists with
	// nothing written.
	Create(ctx context.Context, ch domain.Challenge, q domain.Question) (domain.Challenge, domain.Question, error)
	// GetQuestion returns the question derived from a challenge.
	GetQuestion(ctx context.Context, challengeID int64) (domain.Question, error)
	// ListBefore returns up to limit challenges strictly before date, newest
	// first.
	ListBefore(ctx context.Context, date time.Time, limit int) ([]domain.Challenge, error)
}

// AttemptRepository persists submissions.
type AttemptRepository interface {
	// ListByUserQuestion returns the user's attempts for a question ordered
	// by attempt number ascending.
	ListByUserQuestion(ctx context.Context, userID string, questionID int64) ([]domain.Attempt, error)
	// Insert records an attempt. A duplicate (user, question, number)
	// surfaces as domain.ErrDuplicateAttempt with nothing written.
	Insert(ctx context.Context, attempt domain.Attempt) error
}

// StatsRepository persists per-user streak state.
type StatsRepository interface {
	// GetStreak returns the user's state, or a fresh zero state for new users.
	GetStreak(ctx context.Context, userID string) (domain.StreakState, error)
	// SaveStreak upserts the state.
	SaveStreak(ctx context.Context, state domain.StreakState) error
}
