package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"flag-challenge-service/internal/domain"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

const uniqueViolation = "23505"

// Store is the postgres implementation of every engine repository. Unique
// constraints are the concurrency arbiter: duplicate challenge dates,
// shown-in-cycle pairs and attempt numbers come back as the matching
// sentinel errors for the service layer to recover from.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// --- catalog ---

const countryColumns = `code, name, flag_svg_url, flag_png_url, flag_alt_text, flag_emoji,
	capital, region, population, alternate_names, difficulty_tier`

func (s *Store) ListAll(ctx context.Context) ([]domain.Country, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+countryColumns+` FROM countries ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list countries: %w", err)
	}
	defer rows.Close()
	return scanCountries(rows)
}

func (s *Store) ListByTier(ctx context.Context, tier string) ([]domain.Country, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+countryColumns+` FROM countries WHERE difficulty_tier=$1 ORDER BY name`, tier)
	if err != nil {
		return nil, fmt.Errorf("list countries by tier: %w", err)
	}
	defer rows.Close()
	return scanCountries(rows)
}

func (s *Store) GetByCode(ctx context.Context, code string) (domain.Country, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+countryColumns+` FROM countries WHERE code=$1`, code)
	country, err := scanCountry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Country{}, domain.ErrCountryNotFound
	}
	if err != nil {
		return domain.Country{}, fmt.Errorf("get country %s: %w", code, err)
	}
	return country, nil
}

// UpsertCountries writes catalog entries, replacing existing rows by code.
// Used by the load-countries command only; the engine never writes here.
func (s *Store) UpsertCountries(ctx context.Context, countries []domain.Country) error {
	for _, c := range countries {
		alternates, err := json.Marshal(c.AlternateNames)
		if err != nil {
			return fmt.Errorf("marshal alternates for %s: %w", c.Code, err)
		}
		var tier interface{}
		if c.DifficultyTier != "" {
			tier = c.DifficultyTier
		}
		_, err = s.pool.Exec(ctx, `
			INSERT INTO countries (`+countryColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
			ON CONFLICT (code) DO UPDATE SET
				name=EXCLUDED.name, flag_svg_url=EXCLUDED.flag_svg_url,
				flag_png_url=EXCLUDED.flag_png_url, flag_alt_text=EXCLUDED.flag_alt_text,
				flag_emoji=EXCLUDED.flag_emoji, capital=EXCLUDED.capital,
				region=EXCLUDED.region, population=EXCLUDED.population,
				alternate_names=EXCLUDED.alternate_names, difficulty_tier=EXCLUDED.difficulty_tier`,
			c.Code, c.Name, c.FlagSVGURL, c.FlagPNGURL, c.FlagAltText, c.FlagEmoji,
			c.Capital, c.Region, c.Population, alternates, tier)
		if err != nil {
			return fmt.Errorf("upsert country %s: %w", c.Code, err)
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCountry(row rowScanner) (domain.Country, error) {
	var (
		c          domain.Country
		alternates []byte
		tier       sql.NullString
	)
	if err := row.Scan(&c.Code, &c.Name, &c.FlagSVGURL, &c.FlagPNGURL, &c.FlagAltText,
		&c.FlagEmoji, &c.Capital, &c.Region, &c.Population, &alternates, &tier); err != nil {
		return domain.Country{}, err
	}
	if len(alternates) > 0 {
		if err := json.Unmarshal(alternates, &c.AlternateNames); err != nil {
			return domain.Country{}, fmt.Errorf("unmarshal alternates: %w", err)
		}
	}
	c.DifficultyTier = tier.String
	return c, nil
}

func scanCountries(rows pgx.Rows) ([]domain.Country, error) {
	var out []domain.Country
	for rows.Next() {
		c, err := scanCountry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// --- rotation ---

func (s *Store) GetOrCreateTrack(ctx context.Context, track domain.Track, today time.Time) (domain.RotationState, error) {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO rotation_tracks (tier, owner_id, cycle_start_date)
		VALUES ($1, $2, $3)
		ON CONFLICT (tier, owner_id) DO NOTHING`,
		track.Tier.Key(), track.OwnerID, today)
	if err != nil {
		return domain.RotationState{}, fmt.Errorf("create track: %w", err)
	}

	state := domain.RotationState{Track: track}
	var lastSelection sql.NullTime
	err = s.pool.QueryRow(ctx, `
		SELECT cycle_number, cycle_start_date, last_selection_date
		FROM rotation_tracks WHERE tier=$1 AND owner_id=$2`,
		track.Tier.Key(), track.OwnerID).
		Scan(&state.CycleNumber, &state.CycleStartDate, &lastSelection)
	if err != nil {
		return domain.RotationState{}, fmt.Errorf("load track: %w", err)
	}
	state.LastSelectionDate = lastSelection.Time
	return state, nil
}

func (s *Store) ListShown(ctx context.Context, track domain.Track) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT sc.country_code
		FROM shown_in_cycle sc
		JOIN rotation_tracks rt ON rt.id = sc.track_id
		WHERE rt.tier=$1 AND rt.owner_id=$2
		ORDER BY sc.country_code`,
		track.Tier.Key(), track.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("list shown: %w", err)
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}

func (s *Store) MarkShown(ctx context.Context, track domain.Track, code string) error {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO shown_in_cycle (track_id, country_code)
		SELECT id, $3 FROM rotation_tracks WHERE tier=$1 AND owner_id=$2`,
		track.Tier.Key(), track.OwnerID, code)
	if isUniqueViolation(err) {
		return domain.ErrAlreadyShown
	}
	if err != nil {
		return fmt.Errorf("mark shown: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTrackNotFound
	}
	return nil
}

func (s *Store) ResetCycle(ctx context.Context, track domain.Track, newCycle int, cycleStart time.Time) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin reset: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		DELETE FROM shown_in_cycle
		WHERE track_id = (SELECT id FROM rotation_tracks WHERE tier=$1 AND owner_id=$2)`,
		track.Tier.Key(), track.OwnerID)
	if err != nil {
		return fmt.Errorf("clear shown: %w", err)
	}
	_, err = tx.Exec(ctx, `
		UPDATE rotation_tracks SET cycle_number=$3, cycle_start_date=$4
		WHERE tier=$1 AND owner_id=$2`,
		track.Tier.Key(), track.OwnerID, newCycle, cycleStart)
	if err != nil {
		return fmt.Errorf("advance cycle: %w", err)
	}
	return tx.Commit(ctx)
}

func (s *Store) SaveTrack(ctx context.Context, state domain.RotationState) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE rotation_tracks SET last_selection_date=$3
		WHERE tier=$1 AND owner_id=$2`,
		state.Track.Tier.Key(), state.Track.OwnerID, state.LastSelectionDate)
	if err != nil {
		return fmt.Errorf("save track: %w", err)
	}
	return nil
}

// --- challenges ---

func (s *Store) GetByDate(ctx context.Context, date time.Time) (domain.Challenge, error) {
	var ch domain.Challenge
	err := s.pool.QueryRow(ctx, `
		SELECT id, date, country_code, tier, algorithm_version, created_at
		FROM daily_challenges WHERE date=$1`, date).
		Scan(&ch.ID, &ch.Date, &ch.CountryCode, &ch.Tier, &ch.AlgorithmVersion, &ch.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Challenge{}, domain.ErrChallengeNotFound
	}
	if err != nil {
		return domain.Challenge{}, fmt.Errorf("get challenge: %w", err)
	}
	return ch, nil
}

func (s *Store) Create(ctx context.Context, ch domain.Challenge, q domain.Question) (domain.Challenge, domain.Question, error) {
	key, err := json.Marshal(q.Key)
	if err != nil {
		return domain.Challenge{}, domain.Question{}, fmt.Errorf("marshal answer key: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.Challenge{}, domain.Question{}, fmt.Errorf("begin create: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO daily_challenges (date, country_code, tier, algorithm_version)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		ch.Date, ch.CountryCode, ch.Tier, ch.AlgorithmVersion).
		Scan(&ch.ID, &ch.CreatedAt)
	if isUniqueViolation(err) {
		return domain.Challenge{}, domain.Question{}, domain.ErrChallengeExists
	}
	if err != nil {
		return domain.Challenge{}, domain.Question{}, fmt.Errorf("insert challenge: %w", err)
	}

	q.ChallengeID = ch.ID
	err = tx.QueryRow(ctx, `
		INSERT INTO questions (challenge_id, category, format, question_text, answer_key)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		q.ChallengeID, q.Category, string(q.Format), q.Text, key).
		Scan(&q.ID, &q.CreatedAt)
	if err != nil {
		return domain.Challenge{}, domain.Question{}, fmt.Errorf("insert question: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Challenge{}, domain.Question{}, fmt.Errorf("commit create: %w", err)
	}
	return ch, q, nil
}

func (s *Store) GetQuestion(ctx context.Context, challengeID int64) (domain.Question, error) {
	var (
		q      domain.Question
		format string
		key    []byte
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, challenge_id, category, format, question_text, answer_key, created_at
		FROM questions WHERE challenge_id=$1`, challengeID).
		Scan(&q.ID, &q.ChallengeID, &q.Category, &format, &q.Text, &key, &q.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	if err != nil {
		return domain.Question{}, fmt.Errorf("get question: %w", err)
	}
	q.Format = domain.AnswerFormat(format)
	if err := json.Unmarshal(key, &q.Key); err != nil {
		return domain.Question{}, fmt.Errorf("unmarshal answer key: %w", err)
	}
	return q, nil
}

func (s *Store) ListBefore(ctx context.Context, date time.Time, limit int) ([]domain.Challenge, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, date, country_code, tier, algorithm_version, created_at
		FROM daily_challenges WHERE date < $1
		ORDER BY date DESC LIMIT $2`, date, limit)
	if err != nil {
		return nil, fmt.Errorf("list challenges: %w", err)
	}
	defer rows.Close()

	var out []domain.Challenge
	for rows.Next() {
		var ch domain.Challenge
		if err := rows.Scan(&ch.ID, &ch.Date, &ch.CountryCode, &ch.Tier, &ch.AlgorithmVersion, &ch.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, ch)
	}
	return out, rows.Err()
}

// --- attempts ---

func (s *Store) ListByUserQuestion(ctx context.Context, userID string, questionID int64) ([]domain.Attempt, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, question_id, attempt_number, answer, is_correct,
			explanation, time_taken_seconds, submitted_at
		FROM attempts WHERE user_id=$1 AND question_id=$2
		ORDER BY attempt_number`, userID, questionID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()

	var out []domain.Attempt
	for rows.Next() {
		var (
			a         domain.Attempt
			answer    []byte
			timeTaken sql.NullInt32
		)
		if err := rows.Scan(&a.ID, &a.UserID, &a.QuestionID, &a.Number, &answer,
			&a.IsCorrect, &a.Explanation, &timeTaken, &a.SubmittedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(answer, &a.Answer); err != nil {
			return nil, fmt.Errorf("unmarshal answer: %w", err)
		}
		if timeTaken.Valid {
			seconds := int(timeTaken.Int32)
			a.TimeTakenSeconds = &seconds
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) Insert(ctx context.Context, attempt domain.Attempt) error {
	answer, err := json.Marshal(attempt.Answer)
	if err != nil {
		return fmt.Errorf("marshal answer: %w", err)
	}
	var timeTaken interface{}
	if attempt.TimeTakenSeconds != nil {
		timeTaken = *attempt.TimeTakenSeconds
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO attempts (id, user_id, question_id, attempt_number, answer,
			is_correct, explanation, time_taken_seconds, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		attempt.ID, attempt.UserID, attempt.QuestionID, attempt.Number, answer,
		attempt.IsCorrect, attempt.Explanation, timeTaken, attempt.SubmittedAt)
	if isUniqueViolation(err) {
		return domain.ErrDuplicateAttempt
	}
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

// --- stats ---

func (s *Store) GetStreak(ctx context.Context, userID string) (domain.StreakState, error) {
	state := domain.StreakState{UserID: userID}
	var (
		lastCorrect sql.NullTime
		lastGuess   sql.NullTime
		missed      []byte
	)
	err := s.pool.QueryRow(ctx, `
		SELECT total_correct, current_streak, longest_streak,
			last_correct_date, last_guess_date, missed_country_codes, updated_at
		FROM user_stats WHERE user_id=$1`, userID).
		Scan(&state.TotalCorrect, &state.CurrentStreak, &state.LongestStreak,
			&lastCorrect, &lastGuess, &missed, &state.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return state, nil
	}
	if err != nil {
		return domain.StreakState{}, fmt.Errorf("get stats: %w", err)
	}
	state.LastCorrectDate = lastCorrect.Time
	state.LastGuessDate = lastGuess.Time
	if len(missed) > 0 {
		if err := json.Unmarshal(missed, &state.MissedCountryCodes); err != nil {
			return domain.StreakState{}, fmt.Errorf("unmarshal missed codes: %w", err)
		}
	}
	return state, nil
}

func (s *Store) SaveStreak(ctx context.Context, state domain.StreakState) error {
	missed, err := json.Marshal(state.MissedCountryCodes)
	if err != nil {
		return fmt.Errorf("marshal missed codes: %w", err)
	}
	if state.MissedCountryCodes == nil {
		missed = []byte("[]")
	}
	var lastCorrect, lastGuess interface{}
	if !state.LastCorrectDate.IsZero() {
		lastCorrect = state.LastCorrectDate
	}
	if !state.LastGuessDate.IsZero() {
		lastGuess = state.LastGuessDate
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO user_stats (user_id, total_correct, current_streak, longest_streak,
			last_correct_date, last_guess_date, missed_country_codes, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id) DO UPDATE SET
			total_correct=EXCLUDED.total_correct,
			current_streak=EXCLUDED.current_streak,
			longest_streak=EXCLUDED.longest_streak,
			last_correct_date=EXCLUDED.last_correct_date,
			last_guess_date=EXCLUDED.last_guess_date,
			missed_country_codes=EXCLUDED.missed_country_codes,
			updated_at=EXCLUDED.updated_at`,
		state.UserID, state.TotalCorrect, state.CurrentStreak, state.LongestStreak,
		lastCorrect, lastGuess, missed, state.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save stats: %w", err)
	}
	return nil
}
