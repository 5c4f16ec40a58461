package polls

import (
	"encoding/hex"
	"strconv"

	"pollchain/core/types"
	"pollchain/crypto"
)

const (
	// EventTypePollCreated is emitted when a poll is admitted.
	EventTypePollCreated = "polls.created"
	// EventTypePollUpdated is emitted when the creator edits a pending poll.
	EventTypePollUpdated = "polls.updated"
	// EventTypeVoted is emitted for each accepted ballot. The weight is omitted.
	EventTypeVoted = "polls.voted"
	// EventTypePollFinished is emitted when the scheduled closure finalises a poll.
	EventTypePollFinished = "polls.finished"
	// EventTypePollCancelled is emitted on emergency cancellation.
	EventTypePollCancelled = "polls.cancelled"
)

type pollEvent struct {
	evt *types.Event
}

func (p pollEvent) EventType() string {
	if p.evt == nil {
		return ""
	}
	return p.evt.Type
}

func (p pollEvent) Event() *types.Event { return p.evt }

func baseAttributes(c Currency, id PollID) map[string]string {
	attrs := map[string]string{"id": strconv.FormatUint(uint64(id), 10)}
	if c != nil {
		attrs["currency"] = c.String()
	}
	return attrs
}

func newCreatedEvent(p *Poll) *types.Event {
	attrs := baseAttributes(p.Currency, p.ID)
	attrs["creator"] = crypto.AccountAddress(p.Creator).String()
	attrs["contentRef"] = hex.EncodeToString(p.ContentRef)
	attrs["options"] = strconv.FormatUint(uint64(p.OptionCount), 10)
	attrs["start"] = strconv.FormatUint(p.Status.Start, 10)
	attrs["end"] = strconv.FormatUint(p.Status.End, 10)
	return &types.Event{Type: EventTypePollCreated, Attributes: attrs}
}

func newUpdatedEvent(p *Poll) *types.Event {
	attrs := baseAttributes(p.Currency, p.ID)
	attrs["creator"] = crypto.AccountAddress(p.Creator).String()
	attrs["contentRef"] = hex.EncodeToString(p.ContentRef)
	return &types.Event{Type: EventTypePollUpdated, Attributes: attrs}
}

func newVotedEvent(voter [20]byte, c Currency, id PollID, option uint8) *types.Event {
	attrs := baseAttributes(c, id)
	attrs["voter"] = crypto.AccountAddress(voter).String()
	attrs["option"] = strconv.FormatUint(uint64(option), 10)
	return &types.Event{Type: EventTypeVoted, Attributes: attrs}
}

func newFinishedEvent(p *Poll) *types.Event {
	attrs := baseAttributes(p.Currency, p.ID)
	if p.Status.HasWinner {
		attrs["winningOption"] = strconv.FormatUint(uint64(p.Status.Winner), 10)
	} else {
		attrs["winningOption"] = "tie"
	}
	attrs["end"] = strconv.FormatUint(p.Status.End, 10)
	return &types.Event{Type: EventTypePollFinished, Attributes: attrs}
}

func newCancelledEvent(p *Poll) *types.Event {
	attrs := baseAttributes(p.Currency, p.ID)
	attrs["at"] = strconv.FormatUint(p.Status.At, 10)
	return &types.Event{Type: EventTypePollCancelled, Attributes: attrs}
}
