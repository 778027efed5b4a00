package domain

import "errors"

var (
	// ErrNoEligibleCountries is returned when a track's tier filter yields an
	// empty eligible set. Fatal to the call, never retried.
	ErrNoEligibleCountries = errors.New("no eligible countries for track")
	// ErrAlreadyAnsweredCorrectly rejects submissions after a correct attempt.
	ErrAlreadyAnsweredCorrectly = errors.New("challenge already answered correctly")
	// ErrAttemptsExhausted rejects submissions once the attempt cap is reached.
	ErrAttemptsExhausted = errors.New("no attempts remaining")
	// ErrChallengeExists signals a lost creation race on a date's challenge.
	// Recovered internally by re-reading the existing row.
	ErrChallengeExists = errors.New("challenge already exists for date")
	// ErrAlreadyShown signals a lost race recording a country into a track's
	// current cycle. The losing selector redraws.
	ErrAlreadyShown = errors.New("country already shown in current cycle")
	// ErrDuplicateAttempt signals a lost race on the attempt-number sequence.
	ErrDuplicateAttempt = errors.New("attempt number already taken")
	// ErrMalformedAnswer rejects a submission payload that does not match the
	// question's answer format. Surfaced before any state mutation.
	ErrMalformedAnswer = errors.New("malformed answer payload")
	// ErrCountryNotFound indicates an unknown country code.
	ErrCountryNotFound = errors.New("country not found")
	// ErrChallengeNotFound indicates no challenge exists for the requested date.
	ErrChallengeNotFound = errors.New("challenge not found")
	// ErrQuestionNotFound indicates a challenge without a derived question.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrTrackNotFound indicates rotation bookkeeping for an uninitialized track.
	ErrTrackNotFound = errors.New("rotation track not found")
)
