package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"flag-challenge-service/internal/domain"

	"github.com/google/uuid"
)

// MaxAttempts is the daily attempt cap per user.
const MaxAttempts = 3

// algorithmVersion is stamped on each challenge so selection changes can be
// told apart in historical data.
const algorithmVersion = "v2_cycle"

const questionCategory = "flag"

const defaultHistoryLimit = 20

// ChallengeService implements the daily challenge use cases: once-per-day
// materialization, bounded-attempt submission, history and streaks.
type ChallengeService struct {
	catalog    CatalogRepository
	challenges ChallengeRepository
	attempts   AttemptRepository
	stats      StatsRepository
	selector   *Selector
	feed       *CompletionFeed
	tier       domain.Tier
	loc        *time.Location
	overrides  map[string][]string
	now        func() time.Time
}

// ChallengeServiceConfig carries the wiring knobs that are not repositories.
type ChallengeServiceConfig struct {
	// Timezone is the canonical zone for "today"; every caller shares it.
	Timezone *time.Location
	// Tier selects the rotation track for daily challenges.
	Tier domain.Tier
	// AlternateOverrides supplies manual accepted spellings per country code,
	// merged into question answer keys on top of catalog alternates.
	AlternateOverrides map[string][]string
	// Feed, when set, receives completion tallies for live subscribers.
	Feed *CompletionFeed
}

func NewChallengeService(catalog CatalogRepository, challenges ChallengeRepository, attempts AttemptRepository, stats StatsRepository, selector *Selector, cfg ChallengeServiceConfig) *ChallengeService {
	loc := cfg.Timezone
	if loc == nil {
		loc = time.UTC
	}
	return &ChallengeService{
		catalog:    catalog,
		challenges: challenges,
		attempts:   attempts,
		stats:      stats,
		selector:   selector,
		feed:       cfg.Feed,
		tier:       cfg.Tier,
		loc:        loc,
		overrides:  cfg.AlternateOverrides,
		now:        time.Now,
	}
}

// WithClock is a test hook for deterministic dates.
func (s *ChallengeService) WithClock(now func() time.Time) *ChallengeService {
	s.now = now
	if s.selector != nil {
		s.selector.WithClock(now)
	}
	return s
}

// GetOrCreateToday returns today's challenge and question, materializing
// them on first call for the date. Creation is idempotent under races: a
// concurrent winner's row is re-read and returned, and the country this
// caller drew stays consumed from the rotation track.
func (s *ChallengeService) GetOrCreateToday(ctx context.Context) (domain.Challenge, domain.Question, bool, error) {
	today := domain.DateOf(s.now(), s.loc)

	ch, err := s.challenges.GetByDate(ctx, today)
	if err == nil {
		q, qerr := s.challenges.GetQuestion(ctx, ch.ID)
		if qerr != nil {
			return domain.Challenge{}, domain.Question{}, false, fmt.Errorf("question for %s: %w", domain.DateKey(today), qerr)
		}
		return ch, q, false, nil
	}
	if !errors.Is(err, domain.ErrChallengeNotFound) {
		return domain.Challenge{}, domain.Question{}, false, fmt.Errorf("lookup challenge: %w", err)
	}

	country, err := s.selector.SelectNext(ctx, domain.GlobalTrack(s.tier))
	if err != nil {
		return domain.Challenge{}, domain.Question{}, false, err
	}

	ch = domain.Challenge{
		Date:             today,
		CountryCode:      country.Code,
		Tier:             s.tier.Key(),
		AlgorithmVersion: algorithmVersion,
		CreatedAt:        s.now(),
	}
	q := domain.Question{
		Category:  questionCategory,
		Format:    domain.FormatTextInput,
		Text:      "Which country does this flag belong to?",
		Key:       domain.NewTextKey(country.Name, country.AlternateNames, s.overrides[country.Code]),
		CreatedAt: s.now(),
	}

	created, createdQ, err := s.challenges.Create(ctx, ch, q)
	if errors.Is(err, domain.ErrChallengeExists) {
		// Another caller won the date. Their row is the challenge.
		existing, rerr := s.challenges.GetByDate(ctx, today)
		if rerr != nil {
			return domain.Challenge{}, domain.Question{}, false, fmt.Errorf("reread challenge: %w", rerr)
		}
		existingQ, qerr := s.challenges.GetQuestion(ctx, existing.ID)
		if qerr != nil {
			return domain.Challenge{}, domain.Question{}, false, fmt.Errorf("reread question: %w", qerr)
		}
		return existing, existingQ, false, nil
	}
	if err != nil {
		return domain.Challenge{}, domain.Question{}, false, fmt.Errorf("create challenge: %w", err)
	}
	return created, createdQ, true, nil
}

// UserChallengeStatus is a user's progress on one challenge. IsCorrect is
// nil while the challenge is still in progress.
type UserChallengeStatus struct {
	HasCompleted      bool       `json:"hasCompleted"`
	AttemptsUsed      int        `json:"attemptsUsed"`
	AttemptsRemaining int        `json:"attemptsRemaining"`
	IsCorrect         *bool      `json:"isCorrect"`
	LastAttemptAt     *time.Time `json:"lastAttemptAt"`
}

// QuestionView is the client-safe projection of a question: no answer key.
type QuestionView struct {
	ID       int64               `json:"id"`
	Category string              `json:"category"`
	Format   domain.AnswerFormat `json:"format"`
	Text     string              `json:"questionText"`
}

// TodayView is the public shape of today's challenge. The country is
// presentation assets only; its name is the answer and stays out.
type TodayView struct {
	ChallengeID int64               `json:"id"`
	Date        string              `json:"date"`
	Question    QuestionView        `json:"question"`
	Country     domain.FlagAssets   `json:"country"`
	UserStatus  UserChallengeStatus `json:"userStatus"`
}

// Today materializes today's challenge if needed and returns it with the
// caller's attempt status.
func (s *ChallengeService) Today(ctx context.Context, userID string) (TodayView, error) {
	ch, q, _, err := s.GetOrCreateToday(ctx)
	if err != nil {
		return TodayView{}, err
	}

	country, err := s.catalog.GetByCode(ctx, ch.CountryCode)
	if err != nil {
		return TodayView{}, fmt.Errorf("challenge country %s: %w", ch.CountryCode, err)
	}

	prior, err := s.attempts.ListByUserQuestion(ctx, userID, q.ID)
	if err != nil {
		return TodayView{}, fmt.Errorf("list attempts: %w", err)
	}

	return TodayView{
		ChallengeID: ch.ID,
		Date:        domain.DateKey(ch.Date),
		Question: QuestionView{
			ID:       q.ID,
			Category: q.Category,
			Format:   q.Format,
			Text:     q.Text,
		},
		Country:    country.Assets(),
		UserStatus: statusFromAttempts(prior),
	}, nil
}

// RevealedAnswer is sent only once a user's challenge is completed.
type RevealedAnswer struct {
	Answer   string   `json:"answer"`
	Accepted []string `json:"accepted"`
}

// AttemptResult is the outcome of one submission. CorrectAnswer is present
// iff the submission completed the challenge.
type AttemptResult struct {
	AttemptID         string          `json:"attemptId"`
	AttemptNumber     int             `json:"attemptNumber"`
	IsCorrect         bool            `json:"isCorrect"`
	Explanation       string          `json:"explanation"`
	AttemptsRemaining int             `json:"attemptsRemaining"`
	HasCompleted      bool            `json:"hasCompleted"`
	CorrectAnswer     *RevealedAnswer `json:"correctAnswer,omitempty"`
}

// Submit judges one answer against today's challenge. Rejections
// (AlreadyAnsweredCorrectly, AttemptsExhausted, MalformedAnswer) happen
// before any state is written. Attempt numbering is gapless per
// (user, question); a lost numbering race is retried once.
func (s *ChallengeService) Submit(ctx context.Context, userID string, sub domain.AnswerSubmission, timeTakenSeconds *int) (AttemptResult, error) {
	ch, q, _, err := s.GetOrCreateToday(ctx)
	if err != nil {
		return AttemptResult{}, err
	}

	if err := domain.ValidateSubmission(q.Format, sub); err != nil {
		return AttemptResult{}, err
	}

	var attempt domain.Attempt
	for try := 0; ; try++ {
		prior, err := s.attempts.ListByUserQuestion(ctx, userID, q.ID)
		if err != nil {
			return AttemptResult{}, fmt.Errorf("list attempts: %w", err)
		}
		for _, a := range prior {
			if a.IsCorrect {
				return AttemptResult{}, domain.ErrAlreadyAnsweredCorrectly
			}
		}
		if len(prior) >= MaxAttempts {
			return AttemptResult{}, domain.ErrAttemptsExhausted
		}

		correct, explanation := domain.Judge(q.Key, sub)
		attempt = domain.Attempt{
			ID:               uuid.NewString(),
			UserID:           userID,
			QuestionID:       q.ID,
			Number:           len(prior) + 1,
			Answer:           sub,
			IsCorrect:        correct,
			Explanation:      explanation,
			TimeTakenSeconds: timeTakenSeconds,
			SubmittedAt:      s.now(),
		}

		err = s.attempts.Insert(ctx, attempt)
		if err == nil {
			break
		}
		if errors.Is(err, domain.ErrDuplicateAttempt) && try == 0 {
			continue
		}
		return AttemptResult{}, fmt.Errorf("record attempt: %w", err)
	}

	attemptsRemaining := MaxAttempts - attempt.Number
	completed := attempt.IsCorrect || attemptsRemaining == 0

	result := AttemptResult{
		AttemptID:         attempt.ID,
		AttemptNumber:     attempt.Number,
		IsCorrect:         attempt.IsCorrect,
		Explanation:       attempt.Explanation,
		AttemptsRemaining: attemptsRemaining,
		HasCompleted:      completed,
	}
	if !completed {
		return result, nil
	}

	if err := s.recordOutcome(ctx, userID, ch, attempt.IsCorrect); err != nil {
		return AttemptResult{}, err
	}
	if s.feed != nil {
		s.feed.Publish(ch.Date, attempt.IsCorrect)
	}

	country, err := s.catalog.GetByCode(ctx, ch.CountryCode)
	if err != nil {
		return AttemptResult{}, fmt.Errorf("reveal country %s: %w", ch.CountryCode, err)
	}
	result.CorrectAnswer = &RevealedAnswer{
		Answer:   country.Name,
		Accepted: q.Key.Accepted(),
	}
	return result, nil
}

// recordOutcome folds a completed challenge into the user's streak state.
// The submit guards make this path unreachable twice for one
// (user, challenge) pair.
func (s *ChallengeService) recordOutcome(ctx context.Context, userID string, ch domain.Challenge, correct bool) error {
	state, err := s.stats.GetStreak(ctx, userID)
	if err != nil {
		return fmt.Errorf("load stats: %w", err)
	}
	state.UserID = userID
	state.ApplyOutcome(correct, ch.CountryCode, ch.Date)
	state.UpdatedAt = s.now()
	if err := s.stats.SaveStreak(ctx, state); err != nil {
		return fmt.Errorf("save stats: %w", err)
	}
	return nil
}

// CountrySummary is the post-reveal country projection used in history.
type CountrySummary struct {
	Code       string `json:"code"`
	Name       string `json:"name"`
	FlagEmoji  string `json:"flagEmoji"`
	FlagPNGURL string `json:"flagPngUrl"`
}

// HistoryItem is one past challenge. The name is included: past answers are
// no longer secret.
type HistoryItem struct {
	ChallengeID int64               `json:"id"`
	Date        string              `json:"date"`
	Country     CountrySummary      `json:"country"`
	UserStatus  UserChallengeStatus `json:"userStatus"`
}

// History returns the caller's past challenges strictly before the given
// date (today when zero), newest first.
func (s *ChallengeService) History(ctx context.Context, userID string, before time.Time, limit int) ([]HistoryItem, error) {
	if before.IsZero() {
		before = domain.DateOf(s.now(), s.loc)
	}
	if limit <= 0 || limit > 100 {
		limit = defaultHistoryLimit
	}

	past, err := s.challenges.ListBefore(ctx, before, limit)
	if err != nil {
		return nil, fmt.Errorf("list challenges: %w", err)
	}

	items := make([]HistoryItem, 0, len(past))
	for _, ch := range past {
		country, err := s.catalog.GetByCode(ctx, ch.CountryCode)
		if err != nil {
			return nil, fmt.Errorf("history country %s: %w", ch.CountryCode, err)
		}
		q, err := s.challenges.GetQuestion(ctx, ch.ID)
		if err != nil {
			return nil, fmt.Errorf("history question: %w", err)
		}
		prior, err := s.attempts.ListByUserQuestion(ctx, userID, q.ID)
		if err != nil {
			return nil, fmt.Errorf("history attempts: %w", err)
		}
		items = append(items, HistoryItem{
			ChallengeID: ch.ID,
			Date:        domain.DateKey(ch.Date),
			Country: CountrySummary{
				Code:       country.Code,
				Name:       country.Name,
				FlagEmoji:  country.FlagEmoji,
				FlagPNGURL: country.FlagPNGURL,
			},
			UserStatus: statusFromAttempts(prior),
		})
	}
	return items, nil
}

// StatsView is the caller-facing streak state.
type StatsView struct {
	TotalCorrect       int      `json:"totalCorrect"`
	CurrentStreak      int      `json:"currentStreak"`
	LongestStreak      int      `json:"longestStreak"`
	LastCorrectDate    string   `json:"lastCorrectDate,omitempty"`
	LastGuessDate      string   `json:"lastGuessDate,omitempty"`
	MissedCountryCodes []string `json:"missedCountryCodes"`
}

// Stats returns the caller's streak state.
func (s *ChallengeService) Stats(ctx context.Context, userID string) (StatsView, error) {
	state, err := s.stats.GetStreak(ctx, userID)
	if err != nil {
		return StatsView{}, fmt.Errorf("load stats: %w", err)
	}
	view := StatsView{
		TotalCorrect:       state.TotalCorrect,
		CurrentStreak:      state.CurrentStreak,
		LongestStreak:      state.LongestStreak,
		MissedCountryCodes: state.MissedCountryCodes,
	}
	if view.MissedCountryCodes == nil {
		view.MissedCountryCodes = []string{}
	}
	if !state.LastCorrectDate.IsZero() {
		view.LastCorrectDate = domain.DateKey(state.LastCorrectDate)
	}
	if !state.LastGuessDate.IsZero() {
		view.LastGuessDate = domain.DateKey(state.LastGuessDate)
	}
	return view, nil
}

func statusFromAttempts(prior []domain.Attempt) UserChallengeStatus {
	status := UserChallengeStatus{
		AttemptsUsed:      len(prior),
		AttemptsRemaining: MaxAttempts - len(prior),
	}
	if status.AttemptsRemaining < 0 {
		status.AttemptsRemaining = 0
	}

	solved := false
	for _, a := range prior {
		if a.IsCorrect {
			solved = true
		}
		if status.LastAttemptAt == nil || a.SubmittedAt.After(*status.LastAttemptAt) {
			t := a.SubmittedAt
			status.LastAttemptAt = &t
		}
	}

	switch {
	case solved:
		status.HasCompleted = true
		yes := true
		status.IsCorrect = &yes
	case len(prior) >= MaxAttempts:
		status.HasCompleted = true
		no := false
		status.IsCorrect = &no
	}
	return status
}
