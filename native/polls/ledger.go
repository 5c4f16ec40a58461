package polls

import "fmt"

type voteRecord struct {
	Option uint8
	Height uint64
}

// VoteRecord is the ballot cast by one voter on one poll.
type VoteRecord struct {
	Voter  [20]byte
	Key    Key
	Option uint8
	Height uint64
}

// VoteLedger remembers which option each voter chose. Records are written
// once and never modified.
type VoteLedger struct {
	state StoreState
}

// NewVoteLedger constructs a vote ledger over the provided state.
func NewVoteLedger(state StoreState) *VoteLedger {
	return &VoteLedger{state: state}
}

func (l *VoteLedger) withState() (StoreState, error) {
	if l == nil || l.state == nil {
		return nil, errStateNotConfigured
	}
	return l.state, nil
}

// HasVoted reports whether voter already cast a ballot on the poll.
func (l *VoteLedger) HasVoted(voter [20]byte, c Currency, id PollID) (bool, error) {
	state, err := l.withState()
	if err != nil {
		return false, err
	}
	ok, err := state.KVGet(voteKey(voter, c, id), nil)
	if err != nil {
		return false, fmt.Errorf("polls: load vote: %w", err)
	}
	return ok, nil
}

// Lookup returns the ballot voter cast on the poll.
func (l *VoteLedger) Lookup(voter [20]byte, c Currency, id PollID) (*VoteRecord, bool, error) {
	state, err := l.withState()
	if err != nil {
		return nil, false, err
	}
	var stored voteRecord
	ok, err := state.KVGet(voteKey(voter, c, id), &stored)
	if err != nil {
		return nil, false, fmt.Errorf("polls: load vote: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	return &VoteRecord{
		Voter:  voter,
		Key:    Key{Currency: c, ID: id},
		Option: stored.Option,
		Height: stored.Height,
	}, true, nil
}

// Record stores the ballot. It refuses to overwrite an existing one.
func (l *VoteLedger) Record(voter [20]byte, c Currency, id PollID, option uint8, height uint64) error {
	state, err := l.withState()
	if err != nil {
		return err
	}
	voted, err := l.HasVoted(voter, c, id)
	if err != nil {
		return err
	}
	if voted {
		return ErrAlreadyVoted
	}
	if err := state.KVPut(voteKey(voter, c, id), voteRecord{Option: option, Height: height}); err != nil {
		return fmt.Errorf("polls: persist vote: %w", err)
	}
	if err := state.KVAppend(voterIndexKey(c, id), voter[:]); err != nil {
		return fmt.Errorf("polls: update voter index: %w", err)
	}
	return nil
}

// Voters lists the accounts that voted on the poll in voting order.
func (l *VoteLedger) Voters(c Currency, id PollID) ([][20]byte, error) {
	state, err := l.withState()
	if err != nil {
		return nil, err
	}
	var raw [][]byte
	if err := state.KVGetList(voterIndexKey(c, id), &raw); err != nil {
		return nil, fmt.Errorf("polls: load voter index: %w", err)
	}
	out := make([][20]byte, 0, len(raw))
	for _, entry := range raw {
		if len(entry) != 20 {
			continue
		}
		var addr [20]byte
		copy(addr[:], entry)
		out = append(out, addr)
	}
	return out, nil
}
