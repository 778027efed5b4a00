package domain

import "time"

// Country is a catalog entry. The engine only reads these; the catalog is
// owned and refreshed independently via the load-countries command.
type Country struct {
	Code           string   `json:"code"` // ISO 3166-1 alpha-3
	Name           string   `json:"name"`
	FlagSVGURL     string   `json:"flagSvgUrl"`
	FlagPNGURL     string   `json:"flagPngUrl"`
	FlagAltText    string   `json:"flagAltText"`
	FlagEmoji      string   `json:"flagEmoji"`
	Capital        string   `json:"capital"`
	Region         string   `json:"region"`
	Population     int64    `json:"population"`
	AlternateNames []string `json:"alternateNames"`
	DifficultyTier string   `json:"difficultyTier,omitempty"`
}

// FlagAssets is the pre-reveal view of a country: presentation data only,
// never the name. The name is the answer.
type FlagAssets struct {
	FlagEmoji   string `json:"flagEmoji"`
	FlagSVGURL  string `json:"flagSvgUrl"`
	FlagPNGURL  string `json:"flagPngUrl"`
	FlagAltText string `json:"flagAltText"`
}

// Assets projects the presentation fields of a country.
func (c Country) Assets() FlagAssets {
	return FlagAssets{
		FlagEmoji:   c.FlagEmoji,
		FlagSVGURL:  c.FlagSVGURL,
		FlagPNGURL:  c.FlagPNGURL,
		FlagAltText: c.FlagAltText,
	}
}

// RotationState is the cycle bookkeeping for one track. Mutated only through
// the selector.
type RotationState struct {
	Track             Track
	CycleNumber       int
	CycleStartDate    time.Time
	LastSelectionDate time.Time
}

// Challenge binds a calendar date to the country selected for it. Exactly one
// exists per date; rows are never mutated after creation.
type Challenge struct {
	ID               int64
	Date             time.Time
	CountryCode      string
	Tier             string
	AlgorithmVersion string
	CreatedAt        time.Time
}

// Question is derived 1:1 from a challenge at creation time and holds the
// accepted-answer key. It must never reach clients with the key attached
// before the challenge is completed.
type Question struct {
	ID          int64
	ChallengeID int64
	Category    string
	Format      AnswerFormat
	Text        string
	Key         AnswerKey
	CreatedAt   time.Time
}

// Attempt records a single submission. Immutable once created; for a given
// (user, question) the numbers form a gapless sequence starting at 1.
type Attempt struct {
	ID               string
	UserID           string
	QuestionID       int64
	Number           int
	Answer           AnswerSubmission
	IsCorrect        bool
	Explanation      string
	TimeTakenSeconds *int
	SubmittedAt      time.Time
}

// StreakState tracks per-user daily-challenge performance across days.
// LastGuessDate and LastCorrectDate are deliberately separate: the streak
// gap check keys off the latter, the former is pure bookkeeping.
type StreakState struct {
	UserID             string
	TotalCorrect       int
	CurrentStreak      int
	LongestStreak      int
	LastCorrectDate    time.Time
	LastGuessDate      time.Time
	MissedCountryCodes []string
	UpdatedAt          time.Time
}

// ApplyOutcome folds one completed challenge result into the streak state.
// A correct guess on the day after the last correct one extends the streak;
// any gap restarts it at 1. An exhausted challenge zeroes the streak and
// records the missed country. Called at most once per (user, challenge).
func (s *StreakState) ApplyOutcome(correct bool, countryCode string, day time.Time) {
	if correct {
		if !s.LastCorrectDate.IsZero() && SameDate(s.LastCorrectDate.AddDate(0, 0, 1), day) {
			s.CurrentStreak++
		} else {
			s.CurrentStreak = 1
		}
		if s.CurrentStreak > s.LongestStreak {
			s.LongestStreak = s.CurrentStreak
		}
		s.TotalCorrect++
		s.LastCorrectDate = day
	} else {
		s.CurrentStreak = 0
		s.addMissed(countryCode)
	}
	s.LastGuessDate = day
}

// addMissed keeps MissedCountryCodes a set; re-adding a code is a no-op.
func (s *StreakState) addMissed(code string) {
	for _, existing := range s.MissedCountryCodes {
		if existing == code {
			return
		}
	}
	s.MissedCountryCodes = append(s.MissedCountryCodes, code)
}

// DateOf truncates an instant to its calendar date in loc, normalized to
// midnight UTC so dates compare with Equal regardless of source zone.
func DateOf(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DateKey renders a normalized date as its canonical YYYY-MM-DD form.
func DateKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// SameDate compares two instants by calendar date only.
func SameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
