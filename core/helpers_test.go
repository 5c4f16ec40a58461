package core

import (
	"strconv"

	"pollchain/core/types"
	"pollchain/crypto"
)

func accountString(raw [20]byte) string {
	return crypto.AccountAddress(raw).String()
}

func typesEvent(i int) *types.Event {
	return &types.Event{Type: "test", Attributes: map[string]string{"i": strconv.Itoa(i)}}
}
