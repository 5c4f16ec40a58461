// Package scheduler keeps the block agenda of deferred module calls. Tasks are
// named by an opaque key, booked for a single height, and dispatched to the
// handler registered for their module when the node reaches that height.
package scheduler

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDuplicateTask is returned when a task with the same key is already booked.
	ErrDuplicateTask = errors.New("scheduler: task already scheduled")
	// ErrTaskNotFound is returned when cancelling a key with no booked task.
	ErrTaskNotFound = errors.New("scheduler: task not found")
	// ErrTargetInPast is returned when a task targets the current or an earlier height.
	ErrTargetInPast = errors.New("scheduler: target height already reached")
	// ErrAgendaFull is returned when the target height has no free slots.
	ErrAgendaFull = errors.New("scheduler: agenda full")
	// ErrUnknownModule is returned when a task names a module without a handler.
	ErrUnknownModule = errors.New("scheduler: no handler for module")

	errStateNotConfigured = errors.New("scheduler: state not configured")
)

// DefaultMaxPerBlock bounds the number of tasks booked at one height.
const DefaultMaxPerBlock = 100

type agendaState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVAppend(key []byte, value []byte) error
	KVGetList(key []byte, out interface{}) error
	KVDelete(key []byte) error
}

type snapshotter interface {
	Snapshot() int
	RevertToSnapshot(id int)
}

// Handler executes tasks booked for a module.
type Handler interface {
	HandleScheduled(payload []byte) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(payload []byte) error

// HandleScheduled implements Handler.
func (f HandlerFunc) HandleScheduled(payload []byte) error { return f(payload) }

// Task is a deferred module call.
type Task struct {
	Key     []byte
	At      uint64
	Module  string
	Payload []byte
}

// Result reports the outcome of one dispatched task.
type Result struct {
	Task Task
	Err  error
}

// Scheduler books and dispatches tasks against the node state.
type Scheduler struct {
	state       agendaState
	heightFn    func() uint64
	handlers    map[string]Handler
	maxPerBlock int
}

// New constructs a scheduler with no handlers registered.
func New() *Scheduler {
	return &Scheduler{
		handlers:    make(map[string]Handler),
		maxPerBlock: DefaultMaxPerBlock,
	}
}

// SetState wires the scheduler to the state backend.
func (s *Scheduler) SetState(state agendaState) { s.state = state }

// SetHeightFunc configures the source of the current block height.
func (s *Scheduler) SetHeightFunc(fn func() uint64) { s.heightFn = fn }

// SetMaxPerBlock bounds the agenda size per height. Zero restores the default.
func (s *Scheduler) SetMaxPerBlock(n int) {
	if n <= 0 {
		n = DefaultMaxPerBlock
	}
	s.maxPerBlock = n
}

// Register installs the handler for tasks booked by module.
func (s *Scheduler) Register(module string, handler Handler) {
	if s.handlers == nil {
		s.handlers = make(map[string]Handler)
	}
	s.handlers[normaliseModule(module)] = handler
}

func normaliseModule(module string) string {
	return strings.ToLower(strings.TrimSpace(module))
}

func (s *Scheduler) withState() (agendaState, error) {
	if s == nil || s.state == nil {
		return nil, errStateNotConfigured
	}
	return s.state, nil
}

func (s *Scheduler) height() uint64 {
	if s == nil || s.heightFn == nil {
		return 0
	}
	return s.heightFn()
}

// ScheduleOnce books the payload for dispatch to module at height at.
func (s *Scheduler) ScheduleOnce(key []byte, at uint64, module string, payload []byte) error {
	state, err := s.withState()
	if err != nil {
		return err
	}
	if len(key) == 0 {
		return fmt.Errorf("scheduler: key required")
	}
	module = normaliseModule(module)
	if module == "" {
		return fmt.Errorf("scheduler: module required")
	}
	if at <= s.height() {
		return fmt.Errorf("%w: target %d, height %d", ErrTargetInPast, at, s.height())
	}
	exists, err := state.KVGet(taskKey(key), nil)
	if err != nil {
		return fmt.Errorf("scheduler: load task: %w", err)
	}
	if exists {
		return ErrDuplicateTask
	}
	booked, err := s.Agenda(at)
	if err != nil {
		return err
	}
	if len(booked) >= s.maxPerBlock {
		return fmt.Errorf("%w: height %d", ErrAgendaFull, at)
	}
	task := Task{
		Key:     append([]byte(nil), key...),
		At:      at,
		Module:  module,
		Payload: append([]byte(nil), payload...),
	}
	if err := state.KVPut(taskKey(key), task); err != nil {
		return fmt.Errorf("scheduler: persist task: %w", err)
	}
	if err := state.KVAppend(agendaKey(at), task.Key); err != nil {
		return fmt.Errorf("scheduler: update agenda: %w", err)
	}
	return nil
}

// Cancel revokes the task booked under key.
func (s *Scheduler) Cancel(key []byte) error {
	state, err := s.withState()
	if err != nil {
		return err
	}
	exists, err := state.KVGet(taskKey(key), nil)
	if err != nil {
		return fmt.Errorf("scheduler: load task: %w", err)
	}
	if !exists {
		return ErrTaskNotFound
	}
	if err := state.KVDelete(taskKey(key)); err != nil {
		return fmt.Errorf("scheduler: delete task: %w", err)
	}
	return nil
}

// Lookup returns the task booked under key.
func (s *Scheduler) Lookup(key []byte) (*Task, bool, error) {
	state, err := s.withState()
	if err != nil {
		return nil, false, err
	}
	var task Task
	ok, err := state.KVGet(taskKey(key), &task)
	if err != nil {
		return nil, false, fmt.Errorf("scheduler: load task: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	return &task, true, nil
}

// Agenda lists the tasks still booked at height in booking order.
func (s *Scheduler) Agenda(height uint64) ([]Task, error) {
	state, err := s.withState()
	if err != nil {
		return nil, err
	}
	var keys [][]byte
	if err := state.KVGetList(agendaKey(height), &keys); err != nil {
		return nil, fmt.Errorf("scheduler: load agenda: %w", err)
	}
	tasks := make([]Task, 0, len(keys))
	for _, key := range keys {
		var task Task
		ok, err := state.KVGet(taskKey(key), &task)
		if err != nil {
			return nil, fmt.Errorf("scheduler: load task: %w", err)
		}
		// Cancelled or re-booked elsewhere.
		if !ok || task.At != height {
			continue
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

// RunDue dispatches every task booked at height. Each task is removed from the
// agenda before its handler runs; a failing handler has its writes reverted
// when the state supports snapshots. Handler failures are reported in the
// results and never abort the remaining tasks.
func (s *Scheduler) RunDue(height uint64) ([]Result, error) {
	state, err := s.withState()
	if err != nil {
		return nil, err
	}
	tasks, err := s.Agenda(height)
	if err != nil {
		return nil, err
	}
	results := make([]Result, 0, len(tasks))
	for _, task := range tasks {
		if err := state.KVDelete(taskKey(task.Key)); err != nil {
			return results, fmt.Errorf("scheduler: delete task: %w", err)
		}
		results = append(results, Result{Task: task, Err: s.dispatch(state, task)})
	}
	if err := state.KVDelete(agendaKey(height)); err != nil {
		return results, fmt.Errorf("scheduler: prune agenda: %w", err)
	}
	return results, nil
}

func (s *Scheduler) dispatch(state agendaState, task Task) error {
	handler, ok := s.handlers[task.Module]
	if !ok || handler == nil {
		return fmt.Errorf("%w %q", ErrUnknownModule, task.Module)
	}
	snap, canRevert := state.(snapshotter)
	var id int
	if canRevert {
		id = snap.Snapshot()
	}
	if err := handler.HandleScheduled(task.Payload); err != nil {
		if canRevert {
			snap.RevertToSnapshot(id)
		}
		return err
	}
	return nil
}
