package memory

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"flag-challenge-service/internal/domain"
)

// Store is an in-memory implementation of every engine repository. It backs
// unit tests and the no-postgres dev mode, with the same uniqueness
// semantics the postgres schema enforces: duplicate shown-in-cycle inserts,
// duplicate challenge dates and duplicate attempt numbers all surface as
// the corresponding sentinel errors.
type Store struct {
	mu sync.Mutex

	countries map[string]domain.Country

	tracks map[string]*trackRecord

	challengesByDate map[string]domain.Challenge
	challengesByID   map[int64]domain.Challenge
	questions        map[int64]domain.Question // keyed by challenge ID
	nextChallengeID  int64
	nextQuestionID   int64

	attempts map[string][]domain.Attempt // keyed by userID+"|"+questionID

	stats map[string]domain.StreakState
}

type trackRecord struct {
	state domain.RotationState
	shown map[string]struct{}
}

func NewStore() *Store {
	return &Store{
		countries:        make(map[string]domain.Country),
		tracks:           make(map[string]*trackRecord),
		challengesByDate: make(map[string]domain.Challenge),
		challengesByID:   make(map[int64]domain.Challenge),
		questions:        make(map[int64]domain.Question),
		attempts:         make(map[string][]domain.Attempt),
		stats:            make(map[string]domain.StreakState),
	}
}

// SeedCountries loads catalog entries, replacing any with the same code.
func (s *Store) SeedCountries(countries []domain.Country) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range countries {
		s.countries[c.Code] = c
	}
}

// --- CatalogRepository ---

func (s *Store) ListAll(_ context.Context) ([]domain.Country, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedCountriesLocked(func(domain.Country) bool { return true }), nil
}

func (s *Store) ListByTier(_ context.Context, tier string) ([]domain.Country, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedCountriesLocked(func(c domain.Country) bool { return c.DifficultyTier == tier }), nil
}

func (s *Store) GetByCode(_ context.Context, code string) (domain.Country, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.countries[code]
	if !ok {
		return domain.Country{}, domain.ErrCountryNotFound
	}
	return c, nil
}

func (s *Store) sortedCountriesLocked(keep func(domain.Country) bool) []domain.Country {
	out := make([]domain.Country, 0, len(s.countries))
	for _, c := range s.countries {
		if keep(c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// --- RotationRepository ---

func (s *Store) GetOrCreateTrack(_ context.Context, track domain.Track, today time.Time) (domain.RotationState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.tracks[track.Key()]
	if !ok {
		rec = &trackRecord{
			state: domain.RotationState{
				Track:          track,
				CycleNumber:    1,
				CycleStartDate: today,
			},
			shown: make(map[string]struct{}),
		}
		s.tracks[track.Key()] = rec
	}
	return rec.state, nil
}

func (s *Store) ListShown(_ context.Context, track domain.Track) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.tracks[track.Key()]
	if !ok {
		return nil, nil
	}
	codes := make([]string, 0, len(rec.shown))
	for code := range rec.shown {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes, nil
}

func (s *Store) MarkShown(_ context.Context, track domain.Track, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.tracks[track.Key()]
	if !ok {
		return domain.ErrTrackNotFound
	}
	if _, dup := rec.shown[code]; dup {
		return domain.ErrAlreadyShown
	}
	rec.shown[code] = struct{}{}
	return nil
}

func (s *Store) ResetCycle(_ context.Context, track domain.Track, newCycle int, cycleStart time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.tracks[track.Key()]
	if !ok {
		return domain.ErrTrackNotFound
	}
	rec.shown = make(map[string]struct{})
	rec.state.CycleNumber = newCycle
	rec.state.CycleStartDate = cycleStart
	return nil
}

func (s *Store) SaveTrack(_ context.Context, state domain.RotationState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.tracks[state.Track.Key()]
	if !ok {
		return domain.ErrTrackNotFound
	}
	rec.state.LastSelectionDate = state.LastSelectionDate
	return nil
}

// TrackState exposes cycle bookkeeping for tests.
func (s *Store) TrackState(track domain.Track) (domain.RotationState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.tracks[track.Key()]
	if !ok {
		return domain.RotationState{}, false
	}
	return rec.state, true
}

// --- ChallengeRepository ---

func (s *Store) GetByDate(_ context.Context, date time.Time) (domain.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.challengesByDate[domain.DateKey(date)]
	if !ok {
		return domain.Challenge{}, domain.ErrChallengeNotFound
	}
	return ch, nil
}

func (s *Store) Create(_ context.Context, ch domain.Challenge, q domain.Question) (domain.Challenge, domain.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := domain.DateKey(ch.Date)
	if _, dup := s.challengesByDate[key]; dup {
		return domain.Challenge{}, domain.Question{}, domain.ErrChallengeExists
	}
	s.nextChallengeID++
	s.nextQuestionID++
	ch.ID = s.nextChallengeID
	q.ID = s.nextQuestionID
	q.ChallengeID = ch.ID
	s.challengesByDate[key] = ch
	s.challengesByID[ch.ID] = ch
	s.questions[ch.ID] = q
	return ch, q, nil
}

func (s *Store) GetQuestion(_ context.Context, challengeID int64) (domain.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.questions[challengeID]
	if !ok {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	return q, nil
}

func (s *Store) ListBefore(_ context.Context, date time.Time, limit int) ([]domain.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Challenge, 0)
	for _, ch := range s.challengesByDate {
		if ch.Date.Before(date) {
			out = append(out, ch)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// --- AttemptRepository ---

func (s *Store) ListByUserQuestion(_ context.Context, userID string, questionID int64) ([]domain.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prior := s.attempts[attemptKey(userID, questionID)]
	out := make([]domain.Attempt, len(prior))
	copy(out, prior)
	return out, nil
}

func (s *Store) Insert(_ context.Context, attempt domain.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := attemptKey(attempt.UserID, attempt.QuestionID)
	for _, existing := range s.attempts[key] {
		if existing.Number == attempt.Number {
			return domain.ErrDuplicateAttempt
		}
	}
	s.attempts[key] = append(s.attempts[key], attempt)
	return nil
}

// --- StatsRepository ---

func (s *Store) GetStreak(_ context.Context, userID string) (domain.StreakState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state, ok := s.stats[userID]; ok {
		state.MissedCountryCodes = append([]string(nil), state.MissedCountryCodes...)
		return state, nil
	}
	return domain.StreakState{UserID: userID}, nil
}

func (s *Store) SaveStreak(_ context.Context, state domain.StreakState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats[state.UserID] = state
	return nil
}

func attemptKey(userID string, questionID int64) string {
	return userID + "|" + strconv.FormatInt(questionID, 10)
}
