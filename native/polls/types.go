package polls

import (
	"encoding/json"
	"fmt"
	"math/big"
)

// PollID is unique within a currency partition.
type PollID uint64

// StatusKind enumerates the lifecycle states of a poll.
type StatusKind uint8

const (
	StatusOngoing StatusKind = iota
	StatusFinished
	StatusCancelled
	// StatusFailed is reserved; no transition produces it.
	StatusFailed
)

func (k StatusKind) String() string {
	switch k {
	case StatusOngoing:
		return "ongoing"
	case StatusFinished:
		return "finished"
	case StatusCancelled:
		return "cancelled"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// Status is the lifecycle state of a poll. Start and End are set while
// Ongoing, End and the optional Winner once Finished, At once Cancelled or
// Failed.
type Status struct {
	Kind      StatusKind
	Start     uint64
	End       uint64
	At        uint64
	Winner    uint8
	HasWinner bool
}

func Ongoing(start, end uint64) Status {
	return Status{Kind: StatusOngoing, Start: start, End: end}
}

func Finished(winner uint8, hasWinner bool, end uint64) Status {
	return Status{Kind: StatusFinished, End: end, Winner: winner, HasWinner: hasWinner}
}

func Cancelled(at uint64) Status {
	return Status{Kind: StatusCancelled, At: at}
}

// IsOngoing reports whether the poll still accepts votes.
func (s Status) IsOngoing() bool { return s.Kind == StatusOngoing }

type statusJSON struct {
	Kind          string  `json:"kind"`
	Start         *uint64 `json:"start,omitempty"`
	End           *uint64 `json:"end,omitempty"`
	At            *uint64 `json:"at,omitempty"`
	WinningOption *uint8  `json:"winningOption"`
}

// MarshalJSON renders only the fields relevant to the status kind.
func (s Status) MarshalJSON() ([]byte, error) {
	out := statusJSON{Kind: s.Kind.String()}
	switch s.Kind {
	case StatusOngoing:
		start, end := s.Start, s.End
		out.Start, out.End = &start, &end
	case StatusFinished:
		end := s.End
		out.End = &end
		if s.HasWinner {
			winner := s.Winner
			out.WinningOption = &winner
		}
	case StatusCancelled, StatusFailed:
		at := s.At
		out.At = &at
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts the form produced by MarshalJSON.
func (s *Status) UnmarshalJSON(data []byte) error {
	var in statusJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	var kind StatusKind
	switch in.Kind {
	case "ongoing":
		kind = StatusOngoing
	case "finished":
		kind = StatusFinished
	case "cancelled":
		kind = StatusCancelled
	case "failed":
		kind = StatusFailed
	default:
		return fmt.Errorf("polls: unknown status kind %q", in.Kind)
	}
	out := Status{Kind: kind}
	if in.Start != nil {
		out.Start = *in.Start
	}
	if in.End != nil {
		out.End = *in.End
	}
	if in.At != nil {
		out.At = *in.At
	}
	if in.WinningOption != nil {
		out.Winner, out.HasWinner = *in.WinningOption, true
	}
	*s = out
	return nil
}

// Poll is a stake-weighted multi-option vote.
type Poll struct {
	ID          PollID
	Creator     [20]byte
	ContentRef  []byte
	OptionCount uint8
	Tally       Tally
	Currency    Currency
	Status      Status
	MinBalance  *big.Int
	CreatedAt   uint64
}

// PollUpdate carries the mutable fields of a poll. Nil fields are left
// untouched.
type PollUpdate struct {
	ContentRef  []byte
	OptionCount *uint8
	Start       *uint64
	End         *uint64
	MinBalance  *big.Int
}

// Policy captures the runtime limits applied to poll admission.
type Policy struct {
	MaxContentRefBytes int
	// MaxVotingPeriod bounds end-start in blocks. Zero disables the bound.
	MaxVotingPeriod uint64
}

// DefaultMaxContentRefBytes bounds the content reference when no policy is set.
const DefaultMaxContentRefBytes = 256

// DefaultPolicy returns the admission limits used when none are configured.
func DefaultPolicy() Policy {
	return Policy{MaxContentRefBytes: DefaultMaxContentRefBytes}
}
