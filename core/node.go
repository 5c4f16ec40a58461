package core

import (
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	"pollchain/core/events"
	"pollchain/core/genesis"
	"pollchain/core/scheduler"
	"pollchain/core/state"
	"pollchain/core/types"
	"pollchain/native/common"
	"pollchain/native/polls"
	"pollchain/observability/metrics"
	"pollchain/storage"
)

var (
	heightKey  = []byte("chain/height")
	genesisKey = []byte("chain/genesis")
)

// DefaultEventLogSize bounds the in-memory event history served over RPC.
const DefaultEventLogSize = 1024

// Options configures the modules owned by the node.
type Options struct {
	Policy              polls.Policy
	Pauses              common.PauseView
	MaxClosuresPerBlock int
	EventLogSize        int
}

// Node is the central controller, wiring all components together. Every
// mutating call runs under stateMu against the journaled state overlay and is
// either committed in full or reverted.
type Node struct {
	db        storage.Database
	state     *state.Manager
	scheduler *scheduler.Scheduler
	polls     *polls.Engine
	pending   *events.Buffer
	history   *eventLog
	height    uint64
	stateMu   sync.Mutex
	logger    *slog.Logger
	metrics   *metrics.PollMetrics
}

func NewNode(db storage.Database, opts Options) (*Node, error) {
	if db == nil {
		return nil, fmt.Errorf("node: database required")
	}
	manager := state.NewManager(db)
	var height uint64
	if _, err := manager.KVGet(heightKey, &height); err != nil {
		return nil, fmt.Errorf("node: load height: %w", err)
	}
	size := opts.EventLogSize
	if size <= 0 {
		size = DefaultEventLogSize
	}
	n := &Node{
		db:      db,
		state:   manager,
		pending: &events.Buffer{},
		history: newEventLog(size),
		height:  height,
		logger:  slog.Default(),
	}

	n.scheduler = scheduler.New()
	n.scheduler.SetState(manager)
	n.scheduler.SetHeightFunc(n.currentHeight)
	n.scheduler.SetMaxPerBlock(opts.MaxClosuresPerBlock)

	n.polls = polls.NewEngine()
	n.polls.SetState(manager)
	n.polls.SetEmitter(n.pending)
	n.polls.SetNowFunc(n.currentHeight)
	n.polls.SetScheduler(n.scheduler)
	n.polls.SetOracle(polls.NewLedgerOracle(manager))
	n.polls.SetPolicy(opts.Policy)
	n.polls.SetPauses(opts.Pauses)

	n.scheduler.Register(polls.ModuleName, n.polls)
	return n, nil
}

// SetLogger replaces the logger used for block processing. Nil restores the
// slog default.
func (n *Node) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	n.logger = logger
}

// SetMetrics enables metric collection.
func (n *Node) SetMetrics(m *metrics.PollMetrics) {
	n.metrics = m
	m.SetHeight(n.Height())
}

func (n *Node) currentHeight() uint64 { return n.height }

// Height returns the current block height.
func (n *Node) Height() uint64 {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.height
}

// apply runs fn as one all-or-nothing state transition. Callers hold stateMu.
func (n *Node) apply(fn func() error) error {
	snap := n.state.Snapshot()
	if err := fn(); err != nil {
		n.state.RevertToSnapshot(snap)
		n.pending.Reset()
		return err
	}
	if err := n.state.Commit(); err != nil {
		n.state.Discard()
		n.pending.Reset()
		return err
	}
	for _, evt := range n.pending.Drain() {
		evt.Height = n.height
		n.history.append(evt)
		if n.metrics != nil {
			n.metrics.ObserveEvent(evt.Type, evt.Attributes)
		}
	}
	return nil
}

// ApplyGenesis seeds the ledger once. It reports false when the store was
// already initialised.
func (n *Node) ApplyGenesis(spec *genesis.GenesisSpec) (bool, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	applied, err := n.state.KVGet(genesisKey, nil)
	if err != nil {
		return false, err
	}
	if applied {
		return false, nil
	}
	err = n.apply(func() error {
		if err := genesis.Apply(spec, n.state, n.pending); err != nil {
			return err
		}
		return n.state.KVPut(genesisKey, spec.NetworkName)
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// AdvanceBlock moves to the next height and dispatches every closure booked
// for it before any user call observes the new height. Closure failures are
// logged and counted; they never stop the block.
func (n *Node) AdvanceBlock() (uint64, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	prev := n.height
	next := prev + 1
	err := n.apply(func() error {
		n.height = next
		results, err := n.scheduler.RunDue(next)
		if err != nil {
			return fmt.Errorf("node: run agenda at %d: %w", next, err)
		}
		for _, res := range results {
			if n.metrics != nil {
				n.metrics.ObserveClosure(res.Task.Module, res.Err)
			}
			if res.Err != nil {
				n.logger.Error("scheduled closure failed",
					slog.Uint64("height", next),
					slog.String("module", res.Task.Module),
					slog.String("key", string(res.Task.Key)),
					slog.Any("error", res.Err))
			}
		}
		return n.state.KVPut(heightKey, next)
	})
	if err != nil {
		n.height = prev
		return prev, err
	}
	if n.metrics != nil {
		n.metrics.SetHeight(next)
	}
	return next, nil
}

func (n *Node) CreatePoll(creator [20]byte, contentRef []byte, optionCount uint8, currency polls.Currency, start, end uint64, minBalance *big.Int) (polls.PollID, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	var id polls.PollID
	err := n.apply(func() error {
		var err error
		id, err = n.polls.CreatePoll(creator, contentRef, optionCount, currency, start, end, minBalance)
		return err
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (n *Node) UpdatePoll(who [20]byte, currency polls.Currency, id polls.PollID, update polls.PollUpdate) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	return n.apply(func() error {
		return n.polls.UpdatePoll(who, currency, id, update)
	})
}

func (n *Node) Vote(voter [20]byte, currency polls.Currency, id polls.PollID, option uint8) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	return n.apply(func() error {
		return n.polls.Vote(voter, currency, id, option)
	})
}

func (n *Node) EmergencyCancel(who [20]byte, currency polls.Currency, id polls.PollID) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	return n.apply(func() error {
		return n.polls.EmergencyCancel(who, currency, id)
	})
}

func (n *Node) Poll(currency polls.Currency, id polls.PollID) (*polls.Poll, bool, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.polls.Poll(currency, id)
}

func (n *Node) VoteOf(voter [20]byte, currency polls.Currency, id polls.PollID) (*polls.VoteRecord, bool, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.polls.VoteOf(voter, currency, id)
}

// Voters lists the accounts that voted on the poll in ballot order.
func (n *Node) Voters(currency polls.Currency, id polls.PollID) ([][20]byte, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.polls.Voters(currency, id)
}

// WinningOption evaluates the poll's current tally. Finished polls report
// the same result their status records.
func (n *Node) WinningOption(currency polls.Currency, id polls.PollID) (uint8, bool, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.polls.WinningOption(currency, id)
}

func (n *Node) ListPolls(currency polls.Currency, cursor polls.PollID, limit int) ([]*polls.Poll, polls.PollID, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.polls.ListPolls(currency, cursor, limit)
}

func (n *Node) PollCount(currency polls.Currency) (uint64, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.polls.PollCount(currency)
}

// ClosureAt reports the height the poll's closure is booked for.
func (n *Node) ClosureAt(currency polls.Currency, id polls.PollID) (uint64, bool, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	task, ok, err := n.scheduler.Lookup(polls.ClosureKey(currency, id))
	if err != nil || !ok {
		return 0, ok, err
	}
	return task.At, true, nil
}

// Balance returns the account balance in the currency.
func (n *Node) Balance(addr [20]byte, currency polls.Currency) (*big.Int, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return polls.NewLedgerOracle(n.state).BalanceOf(addr, currency)
}

var errSelfTransfer = errors.New("node: sender and recipient must differ")

// Transfer moves balance between accounts so voter weights can change.
func (n *Node) Transfer(from, to [20]byte, currency polls.Currency, amount *big.Int) error {
	if from == to {
		return errSelfTransfer
	}
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	return n.apply(func() error {
		switch cur := currency.(type) {
		case polls.Native:
			if err := n.state.TransferNative(from, to, amount); err != nil {
				return err
			}
		case polls.Asset:
			if err := n.state.TransferAsset(uint32(cur.ID), from, to, amount); err != nil {
				return err
			}
		default:
			return polls.ErrInvalidPollCurrency
		}
		n.pending.Emit(events.Transfer{Currency: currency.String(), From: from, To: to, Amount: amount})
		return nil
	})
}

// Events returns up to limit of the most recent committed events, oldest
// first.
func (n *Node) Events(limit int) []*types.Event {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.history.last(limit)
}

// Close releases the database.
func (n *Node) Close() {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	n.db.Close()
}
