package polls

import (
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
)

// ModuleName identifies poll closures on the node scheduler.
const ModuleName = "polls"

// Scheduler books and revokes one-shot deferred calls. The node scheduler
// dispatches a booked payload back to Engine.HandleScheduled at height at.
type Scheduler interface {
	ScheduleOnce(key []byte, at uint64, module string, payload []byte) error
	Cancel(key []byte) error
}

type closurePayload struct {
	CurrencyKind uint8
	AssetID      uint32
	ID           uint64
}

func encodeClosure(c Currency, id PollID) ([]byte, error) {
	kind, assetID, err := encodeCurrency(c)
	if err != nil {
		return nil, err
	}
	return rlp.EncodeToBytes(closurePayload{CurrencyKind: kind, AssetID: assetID, ID: uint64(id)})
}

func decodeClosure(payload []byte) (Currency, PollID, error) {
	var decoded closurePayload
	if err := rlp.DecodeBytes(payload, &decoded); err != nil {
		return nil, 0, fmt.Errorf("polls: decode closure: %w", err)
	}
	currency, err := decodeCurrency(decoded.CurrencyKind, decoded.AssetID)
	if err != nil {
		return nil, 0, err
	}
	return currency, PollID(decoded.ID), nil
}

func (e *Engine) bookClosure(c Currency, id PollID, end uint64) error {
	if e.scheduler == nil {
		return fmt.Errorf("%w: not configured", ErrSchedulerUnavailable)
	}
	payload, err := encodeClosure(c, id)
	if err != nil {
		return err
	}
	if err := e.scheduler.ScheduleOnce(closureKey(c, id), end, ModuleName, payload); err != nil {
		return fmt.Errorf("%w: book closure for %s/%d: %w", ErrSchedulerUnavailable, c, id, err)
	}
	return nil
}

func (e *Engine) revokeClosure(c Currency, id PollID) error {
	if e.scheduler == nil {
		return fmt.Errorf("%w: not configured", ErrSchedulerUnavailable)
	}
	if err := e.scheduler.Cancel(closureKey(c, id)); err != nil {
		return fmt.Errorf("%w: revoke closure for %s/%d: %w", ErrSchedulerUnavailable, c, id, err)
	}
	return nil
}
