package polls

import (
	"fmt"
	"strings"
)

const pollsPrefix = "polls"

func currencySegment(c Currency) string {
	if c == nil {
		return "?"
	}
	return strings.ReplaceAll(c.String(), ":", "-")
}

func counterKey(c Currency) []byte {
	return []byte(fmt.Sprintf("%s/counter/%s", pollsPrefix, currencySegment(c)))
}

func pollKey(c Currency, id PollID) []byte {
	return []byte(fmt.Sprintf("%s/poll/%s/%d", pollsPrefix, currencySegment(c), id))
}

func voteKey(voter [20]byte, c Currency, id PollID) []byte {
	return []byte(fmt.Sprintf("%s/vote/%s/%d/%x", pollsPrefix, currencySegment(c), id, voter))
}

func voterIndexKey(c Currency, id PollID) []byte {
	return []byte(fmt.Sprintf("%s/voters/%s/%d", pollsPrefix, currencySegment(c), id))
}

// closureKey names the scheduled closure of a poll. One key exists per poll.
func closureKey(c Currency, id PollID) []byte {
	return []byte(fmt.Sprintf("%s/close/%s/%d", pollsPrefix, currencySegment(c), id))
}

// ClosureKey exposes the scheduler key of the poll's closure for lookups.
func ClosureKey(c Currency, id PollID) []byte {
	return closureKey(c, id)
}
