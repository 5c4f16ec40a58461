package polls

import "errors"

var (
	ErrPollInvalid          = errors.New("polls: poll invalid")
	ErrPollNotFound         = errors.New("polls: poll not found")
	ErrPollAlreadyExists    = errors.New("polls: poll already exists")
	ErrPollAlreadyFinished  = errors.New("polls: poll not active")
	ErrPollNotStarted       = errors.New("polls: poll not started")
	ErrPollAlreadyStarted   = errors.New("polls: poll already started")
	ErrInvalidPollDetails   = errors.New("polls: invalid poll details")
	ErrInvalidPollPeriod    = errors.New("polls: invalid poll period")
	ErrInvalidPollCurrency  = errors.New("polls: invalid poll currency")
	ErrInvalidPollOptions   = errors.New("polls: invalid poll options")
	ErrInvalidPollVote      = errors.New("polls: invalid vote option")
	ErrInsufficientFunds    = errors.New("polls: insufficient funds to vote")
	ErrNotPollCreator       = errors.New("polls: caller is not the poll creator")
	ErrAlreadyVoted         = errors.New("polls: already voted")
	ErrSchedulerUnavailable = errors.New("polls: scheduler unavailable")

	errStateNotConfigured = errors.New("polls: state not configured")
)
