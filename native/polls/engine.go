package polls

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"math/big"

	"pollchain/core/events"
	"pollchain/core/types"
	"pollchain/native/common"
)

type snapshotState interface {
	Snapshot() int
	RevertToSnapshot(id int)
}

// Engine owns the poll lifecycle: admission, pre-start edits, weighted voting,
// scheduled closure and emergency cancellation.
type Engine struct {
	state     StoreState
	store     *Store
	votes     *VoteLedger
	emitter   events.Emitter
	nowFn     func() uint64
	scheduler Scheduler
	oracle    BalanceOracle
	policy    Policy
	pauses    common.PauseView
}

// NewEngine constructs a poll engine with default no-op dependencies.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		policy:  DefaultPolicy(),
	}
}

// SetState wires the engine to the key-value state backend.
func (e *Engine) SetState(state StoreState) {
	e.state = state
	e.store = NewStore(state)
	e.votes = NewVoteLedger(state)
}

// SetEmitter configures the event emitter. Nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc configures the block height source.
func (e *Engine) SetNowFunc(now func() uint64) { e.nowFn = now }

// SetScheduler injects the closure scheduler.
func (e *Engine) SetScheduler(s Scheduler) { e.scheduler = s }

// SetOracle injects the balance oracle used for weights and asset checks.
func (e *Engine) SetOracle(o BalanceOracle) { e.oracle = o }

// SetPauses configures the pause view consulted before user operations.
func (e *Engine) SetPauses(p common.PauseView) { e.pauses = p }

// SetPolicy updates the admission limits. A non-positive content bound falls
// back to the default.
func (e *Engine) SetPolicy(policy Policy) {
	if policy.MaxContentRefBytes <= 0 {
		policy.MaxContentRefBytes = DefaultMaxContentRefBytes
	}
	e.policy = policy
}

func (e *Engine) now() uint64 {
	if e == nil || e.nowFn == nil {
		return 0
	}
	return e.nowFn()
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(pollEvent{evt: event})
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil || e.store == nil {
		return errStateNotConfigured
	}
	return nil
}

// atomic runs fn and reverts every state write it made when it fails.
func (e *Engine) atomic(fn func() error) error {
	snap, ok := e.state.(snapshotState)
	if !ok {
		return fn()
	}
	id := snap.Snapshot()
	if err := fn(); err != nil {
		snap.RevertToSnapshot(id)
		return err
	}
	return nil
}

func (e *Engine) validateContent(ref []byte) error {
	if len(ref) == 0 {
		return fmt.Errorf("%w: content reference required", ErrInvalidPollDetails)
	}
	if len(ref) > e.policy.MaxContentRefBytes {
		return fmt.Errorf("%w: content reference exceeds %d bytes", ErrInvalidPollDetails, e.policy.MaxContentRefBytes)
	}
	return nil
}

func (e *Engine) validateWindow(now, start, end uint64) error {
	if start < now || end <= now || end <= start {
		return fmt.Errorf("%w: window [%d,%d] at height %d", ErrInvalidPollPeriod, start, end, now)
	}
	if e.policy.MaxVotingPeriod > 0 && end-start > e.policy.MaxVotingPeriod {
		return fmt.Errorf("%w: voting period %d exceeds %d blocks", ErrInvalidPollPeriod, end-start, e.policy.MaxVotingPeriod)
	}
	return nil
}

func validateMinBalance(threshold *big.Int) error {
	if threshold != nil && threshold.Sign() < 0 {
		return fmt.Errorf("%w: minimum balance must not be negative", ErrInvalidPollDetails)
	}
	return nil
}

func (e *Engine) validateCurrency(c Currency) error {
	switch cur := c.(type) {
	case Native:
		return nil
	case Asset:
		if e.oracle == nil {
			return fmt.Errorf("polls: balance oracle not configured")
		}
		exists, err := e.oracle.AssetExists(cur.ID)
		if err != nil {
			return fmt.Errorf("polls: resolve asset %d: %w", cur.ID, err)
		}
		if !exists {
			return fmt.Errorf("%w: asset %d has no issuance", ErrInvalidPollCurrency, cur.ID)
		}
		return nil
	default:
		return ErrInvalidPollCurrency
	}
}

// CreatePoll admits a new poll in the currency partition and books its
// closure at end. The closure is booked before anything is written; when
// booking fails no poll exists and the partition counter is unchanged.
func (e *Engine) CreatePoll(creator [20]byte, contentRef []byte, optionCount uint8, currency Currency, start, end uint64, minBalance *big.Int) (PollID, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	if err := common.Guard(e.pauses, ModuleName); err != nil {
		return 0, err
	}
	if optionCount < 2 {
		return 0, fmt.Errorf("%w: need at least 2 options, got %d", ErrInvalidPollOptions, optionCount)
	}
	if err := e.validateContent(contentRef); err != nil {
		return 0, err
	}
	if err := validateMinBalance(minBalance); err != nil {
		return 0, err
	}
	now := e.now()
	if err := e.validateWindow(now, start, end); err != nil {
		return 0, err
	}
	if err := e.validateCurrency(currency); err != nil {
		return 0, err
	}

	var poll *Poll
	err := e.atomic(func() error {
		count, err := e.store.PollCount(currency)
		if err != nil {
			return err
		}
		if count == math.MaxUint64 {
			return fmt.Errorf("%w: id space exhausted for %s", ErrInvalidPollDetails, currency)
		}
		id := PollID(count + 1)
		exists, err := e.store.Exists(currency, id)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: %s/%d", ErrPollAlreadyExists, currency, id)
		}
		if err := e.bookClosure(currency, id, end); err != nil {
			return err
		}
		threshold := big.NewInt(0)
		if minBalance != nil {
			threshold = new(big.Int).Set(minBalance)
		}
		poll = &Poll{
			ID:          id,
			Creator:     creator,
			ContentRef:  append([]byte(nil), contentRef...),
			OptionCount: optionCount,
			Tally:       NewTally(optionCount),
			Currency:    currency,
			Status:      Ongoing(start, end),
			MinBalance:  threshold,
			CreatedAt:   now,
		}
		if err := e.store.SetPollCount(currency, uint64(id)); err != nil {
			return e.unbook(currency, id, err)
		}
		if err := e.store.Put(poll); err != nil {
			return e.unbook(currency, id, err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	e.emit(newCreatedEvent(poll))
	return poll.ID, nil
}

func (e *Engine) unbook(c Currency, id PollID, cause error) error {
	if err := e.revokeClosure(c, id); err != nil {
		return errors.Join(cause, err)
	}
	return cause
}

// UpdatePoll lets the creator edit a poll that has not started yet. The option
// count is fixed at creation; supplying a different one is rejected. Moving
// the end re-books the closure.
func (e *Engine) UpdatePoll(who [20]byte, currency Currency, id PollID, update PollUpdate) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := common.Guard(e.pauses, ModuleName); err != nil {
		return err
	}
	poll, ok, err := e.store.Get(currency, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s/%d", ErrPollNotFound, currency, id)
	}
	if !bytes.Equal(who[:], poll.Creator[:]) {
		return ErrNotPollCreator
	}
	if !poll.Status.IsOngoing() {
		return ErrPollAlreadyFinished
	}
	now := e.now()
	if now >= poll.Status.Start {
		return ErrPollAlreadyStarted
	}
	if update.OptionCount != nil && *update.OptionCount != poll.OptionCount {
		return fmt.Errorf("%w: option count is fixed at %d", ErrInvalidPollOptions, poll.OptionCount)
	}
	if update.ContentRef != nil {
		if err := e.validateContent(update.ContentRef); err != nil {
			return err
		}
	}
	if err := validateMinBalance(update.MinBalance); err != nil {
		return err
	}
	start, end := poll.Status.Start, poll.Status.End
	if update.Start != nil {
		start = *update.Start
	}
	if update.End != nil {
		end = *update.End
	}
	if err := e.validateWindow(now, start, end); err != nil {
		return err
	}

	oldEnd := poll.Status.End
	if update.ContentRef != nil {
		poll.ContentRef = append([]byte(nil), update.ContentRef...)
	}
	if update.MinBalance != nil {
		poll.MinBalance = new(big.Int).Set(update.MinBalance)
	}
	poll.Status = Ongoing(start, end)

	err = e.atomic(func() error {
		if end != oldEnd {
			if err := e.rebook(currency, id, oldEnd, end); err != nil {
				return err
			}
		}
		return e.store.Put(poll)
	})
	if err != nil {
		return err
	}
	e.emit(newUpdatedEvent(poll))
	return nil
}

func (e *Engine) rebook(c Currency, id PollID, oldEnd, newEnd uint64) error {
	if err := e.revokeClosure(c, id); err != nil {
		return err
	}
	if err := e.bookClosure(c, id, newEnd); err != nil {
		if restoreErr := e.bookClosure(c, id, oldEnd); restoreErr != nil {
			return errors.Join(err, restoreErr)
		}
		return err
	}
	return nil
}

// Vote credits the voter's spot balance in the poll currency to option.
func (e *Engine) Vote(voter [20]byte, currency Currency, id PollID, option uint8) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := common.Guard(e.pauses, ModuleName); err != nil {
		return err
	}
	poll, ok, err := e.store.Get(currency, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s/%d", ErrPollInvalid, currency, id)
	}
	if !poll.Status.IsOngoing() {
		return ErrPollAlreadyFinished
	}
	if option >= poll.OptionCount {
		return fmt.Errorf("%w: option %d of %d", ErrInvalidPollVote, option, poll.OptionCount)
	}
	now := e.now()
	if now < poll.Status.Start {
		return ErrPollNotStarted
	}
	// The closure for end is pending within this block.
	if now >= poll.Status.End {
		return ErrPollAlreadyFinished
	}
	if e.oracle == nil {
		return fmt.Errorf("polls: balance oracle not configured")
	}
	weight, err := e.oracle.BalanceOf(voter, currency)
	if err != nil {
		return fmt.Errorf("polls: resolve weight: %w", err)
	}
	if weight == nil {
		weight = big.NewInt(0)
	}
	if poll.MinBalance != nil && weight.Cmp(poll.MinBalance) < 0 {
		return ErrInsufficientFunds
	}
	voted, err := e.votes.HasVoted(voter, currency, id)
	if err != nil {
		return err
	}
	if voted {
		return ErrAlreadyVoted
	}

	poll.Tally.Add(option, weight)
	err = e.atomic(func() error {
		if err := e.votes.Record(voter, currency, id, option, now); err != nil {
			return err
		}
		return e.store.Put(poll)
	})
	if err != nil {
		return err
	}
	e.emit(newVotedEvent(voter, currency, id, option))
	return nil
}

// Enact finalises an ongoing poll with the winner of its tally. Only the
// scheduled closure calls it.
func (e *Engine) Enact(currency Currency, id PollID) error {
	if err := e.ready(); err != nil {
		return err
	}
	poll, ok, err := e.store.Get(currency, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s/%d", ErrPollNotFound, currency, id)
	}
	if !poll.Status.IsOngoing() {
		return fmt.Errorf("%w: %s/%d is %s", ErrPollAlreadyFinished, currency, id, poll.Status.Kind)
	}
	winner, hasWinner := poll.Tally.WinningOption()
	poll.Status = Finished(winner, hasWinner, poll.Status.End)
	if err := e.store.Put(poll); err != nil {
		return err
	}
	e.emit(newFinishedEvent(poll))
	return nil
}

// HandleScheduled decodes a closure payload booked by this engine and enacts
// the poll it names.
func (e *Engine) HandleScheduled(payload []byte) error {
	currency, id, err := decodeClosure(payload)
	if err != nil {
		return err
	}
	return e.Enact(currency, id)
}

// EmergencyCancel lets the creator stop an ongoing poll. The pending closure
// is revoked first; if that fails the poll stays ongoing.
func (e *Engine) EmergencyCancel(who [20]byte, currency Currency, id PollID) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := common.Guard(e.pauses, ModuleName); err != nil {
		return err
	}
	poll, ok, err := e.store.Get(currency, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s/%d", ErrPollNotFound, currency, id)
	}
	if !bytes.Equal(who[:], poll.Creator[:]) {
		return ErrNotPollCreator
	}
	if !poll.Status.IsOngoing() {
		return ErrPollAlreadyFinished
	}
	poll.Status = Cancelled(e.now())
	err = e.atomic(func() error {
		if err := e.revokeClosure(currency, id); err != nil {
			return err
		}
		return e.store.Put(poll)
	})
	if err != nil {
		return err
	}
	e.emit(newCancelledEvent(poll))
	return nil
}

// Poll returns the poll stored under (currency, id).
func (e *Engine) Poll(currency Currency, id PollID) (*Poll, bool, error) {
	if err := e.ready(); err != nil {
		return nil, false, err
	}
	return e.store.Get(currency, id)
}

// WinningOption evaluates the current tally of the poll.
func (e *Engine) WinningOption(currency Currency, id PollID) (uint8, bool, error) {
	poll, ok, err := e.Poll(currency, id)
	if err != nil {
		return 0, false, err
	}
	if !ok {
		return 0, false, fmt.Errorf("%w: %s/%d", ErrPollNotFound, currency, id)
	}
	winner, hasWinner := poll.Tally.WinningOption()
	return winner, hasWinner, nil
}

// VoteOf returns the ballot voter cast on the poll.
func (e *Engine) VoteOf(voter [20]byte, currency Currency, id PollID) (*VoteRecord, bool, error) {
	if err := e.ready(); err != nil {
		return nil, false, err
	}
	return e.votes.Lookup(voter, currency, id)
}

// Voters lists the accounts that voted on the poll.
func (e *Engine) Voters(currency Currency, id PollID) ([][20]byte, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	return e.votes.Voters(currency, id)
}

// ListPolls pages through a currency partition, newest first. The returned
// cursor is zero once the partition is exhausted.
func (e *Engine) ListPolls(currency Currency, cursor PollID, limit int) ([]*Poll, PollID, error) {
	if err := e.ready(); err != nil {
		return nil, 0, err
	}
	return e.store.List(currency, cursor, limit)
}

// PollCount returns the number of ids allocated in the currency partition.
func (e *Engine) PollCount(currency Currency) (uint64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	return e.store.PollCount(currency)
}
