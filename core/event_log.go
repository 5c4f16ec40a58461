package core

import "pollchain/core/types"

// eventLog keeps the most recent committed events in a fixed-size ring.
type eventLog struct {
	entries []*types.Event
	next    int
	full    bool
}

func newEventLog(size int) *eventLog {
	return &eventLog{entries: make([]*types.Event, size)}
}

func (l *eventLog) append(evt *types.Event) {
	l.entries[l.next] = evt
	l.next = (l.next + 1) % len(l.entries)
	if l.next == 0 {
		l.full = true
	}
}

func (l *eventLog) len() int {
	if l.full {
		return len(l.entries)
	}
	return l.next
}

func (l *eventLog) last(limit int) []*types.Event {
	count := l.len()
	if limit <= 0 || limit > count {
		limit = count
	}
	out := make([]*types.Event, 0, limit)
	start := l.next - limit
	if start < 0 {
		start += len(l.entries)
	}
	for i := 0; i < limit; i++ {
		out = append(out, l.entries[(start+i)%len(l.entries)].Clone())
	}
	return out
}
