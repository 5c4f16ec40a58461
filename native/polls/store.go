package polls

import (
	"fmt"
	"math/big"
)

// StoreState is the key-value surface the poll store persists through.
type StoreState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVAppend(key []byte, value []byte) error
	KVGetList(key []byte, out interface{}) error
	KVDelete(key []byte) error
}

type storedPoll struct {
	ID           uint64
	Creator      [20]byte
	ContentRef   []byte
	OptionCount  uint8
	Tally        []*big.Int
	CurrencyKind uint8
	AssetID      uint32
	StatusKind   uint8
	Start        uint64
	End          uint64
	At           uint64
	Winner       uint8
	HasWinner    bool
	MinBalance   *big.Int
	CreatedAt    uint64
}

func newStoredPoll(p *Poll) (*storedPoll, error) {
	kind, assetID, err := encodeCurrency(p.Currency)
	if err != nil {
		return nil, err
	}
	minBalance := big.NewInt(0)
	if p.MinBalance != nil {
		minBalance = new(big.Int).Set(p.MinBalance)
	}
	return &storedPoll{
		ID:           uint64(p.ID),
		Creator:      p.Creator,
		ContentRef:   append([]byte(nil), p.ContentRef...),
		OptionCount:  p.OptionCount,
		Tally:        p.Tally.Weights(),
		CurrencyKind: kind,
		AssetID:      assetID,
		StatusKind:   uint8(p.Status.Kind),
		Start:        p.Status.Start,
		End:          p.Status.End,
		At:           p.Status.At,
		Winner:       p.Status.Winner,
		HasWinner:    p.Status.HasWinner,
		MinBalance:   minBalance,
		CreatedAt:    p.CreatedAt,
	}, nil
}

func (s *storedPoll) toPoll() (*Poll, error) {
	currency, err := decodeCurrency(s.CurrencyKind, s.AssetID)
	if err != nil {
		return nil, err
	}
	if len(s.Tally) != int(s.OptionCount) {
		return nil, fmt.Errorf("polls: corrupt tally for poll %d: %d entries, %d options", s.ID, len(s.Tally), s.OptionCount)
	}
	minBalance := big.NewInt(0)
	if s.MinBalance != nil {
		minBalance = new(big.Int).Set(s.MinBalance)
	}
	return &Poll{
		ID:          PollID(s.ID),
		Creator:     s.Creator,
		ContentRef:  append([]byte(nil), s.ContentRef...),
		OptionCount: s.OptionCount,
		Tally:       tallyFromWeights(s.Tally),
		Currency:    currency,
		Status: Status{
			Kind:      StatusKind(s.StatusKind),
			Start:     s.Start,
			End:       s.End,
			At:        s.At,
			Winner:    s.Winner,
			HasWinner: s.HasWinner,
		},
		MinBalance: minBalance,
		CreatedAt:  s.CreatedAt,
	}, nil
}

// Store persists polls and per-partition counters.
type Store struct {
	state StoreState
}

// NewStore constructs a poll store over the provided state.
func NewStore(state StoreState) *Store {
	return &Store{state: state}
}

func (s *Store) withState() (StoreState, error) {
	if s == nil || s.state == nil {
		return nil, errStateNotConfigured
	}
	return s.state, nil
}

// PollCount returns the number of ids allocated in the currency partition.
func (s *Store) PollCount(c Currency) (uint64, error) {
	state, err := s.withState()
	if err != nil {
		return 0, err
	}
	var count uint64
	if _, err := state.KVGet(counterKey(c), &count); err != nil {
		return 0, fmt.Errorf("polls: load counter: %w", err)
	}
	return count, nil
}

// SetPollCount records the last id allocated in the currency partition.
func (s *Store) SetPollCount(c Currency, count uint64) error {
	state, err := s.withState()
	if err != nil {
		return err
	}
	if err := state.KVPut(counterKey(c), count); err != nil {
		return fmt.Errorf("polls: persist counter: %w", err)
	}
	return nil
}

// Get loads the poll stored under (c, id).
func (s *Store) Get(c Currency, id PollID) (*Poll, bool, error) {
	state, err := s.withState()
	if err != nil {
		return nil, false, err
	}
	var stored storedPoll
	ok, err := state.KVGet(pollKey(c, id), &stored)
	if err != nil {
		return nil, false, fmt.Errorf("polls: load poll: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	poll, err := stored.toPoll()
	if err != nil {
		return nil, false, err
	}
	return poll, true, nil
}

// Exists reports whether a poll is stored under (c, id).
func (s *Store) Exists(c Currency, id PollID) (bool, error) {
	state, err := s.withState()
	if err != nil {
		return false, err
	}
	ok, err := state.KVGet(pollKey(c, id), nil)
	if err != nil {
		return false, fmt.Errorf("polls: load poll: %w", err)
	}
	return ok, nil
}

// Put writes the poll under its key.
func (s *Store) Put(p *Poll) error {
	state, err := s.withState()
	if err != nil {
		return err
	}
	if p == nil {
		return fmt.Errorf("polls: poll required")
	}
	stored, err := newStoredPoll(p)
	if err != nil {
		return err
	}
	if err := state.KVPut(pollKey(p.Currency, p.ID), stored); err != nil {
		return fmt.Errorf("polls: persist poll: %w", err)
	}
	return nil
}

// List returns up to limit polls of the partition in descending id order,
// starting below cursor. A zero cursor starts at the newest poll.
func (s *Store) List(c Currency, cursor PollID, limit int) ([]*Poll, PollID, error) {
	count, err := s.PollCount(c)
	if err != nil {
		return nil, 0, err
	}
	if limit <= 0 {
		limit = 50
	}
	next := PollID(count)
	if cursor != 0 && cursor-1 < next {
		next = cursor - 1
	}
	out := make([]*Poll, 0, limit)
	for ; next > 0 && len(out) < limit; next-- {
		poll, ok, err := s.Get(c, next)
		if err != nil {
			return nil, 0, err
		}
		if ok {
			out = append(out, poll)
		}
	}
	if next == 0 {
		return out, 0, nil
	}
	// Resume strictly below the last poll returned.
	return out, next + 1, nil
}
