package timelock

import (
	"encoding/binary"
	"errors"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

var (
	errNilState         = errors.New("timelock: state not configured")
	errEmptyTarget      = errors.New("timelock: target must not be empty")
	errDelayNotPositive = errors.New("timelock: delay must be positive")
	errUnknownOperation = errors.New("timelock: unknown operation")
	errNotReady         = errors.New("timelock: operation delay not yet elapsed")
)

// Operation is a queued delayed call. The ID is the keccak hash of the
// target, payload, and a monotonically increasing nonce, so identical
// payloads queued twice still get distinct operations.
type Operation struct {
	ID       [32]byte
	Target   string
	Payload  []byte
	QueuedAt int64
	Eta      int64
}

type schedulerState interface {
	TimelockNextNonce() (uint64, error)
	TimelockGet(id [32]byte) (*Operation, bool, error)
	TimelockPut(*Operation) error
	TimelockDelete(id [32]byte) error
}

// Scheduler queues operations behind a fixed wait and releases each one
// exactly once. It holds no policy of its own; callers pass the delay.
type Scheduler struct {
	state schedulerState
}

// NewScheduler constructs a scheduler over the given state.
func NewScheduler() *Scheduler { return &Scheduler{} }

// SetState wires the scheduler to the persistence layer.
func (s *Scheduler) SetState(state schedulerState) { s.state = state }

// Queue records a delayed operation and returns its ID.
func (s *Scheduler) Queue(target string, payload []byte, delay int64, now int64) ([32]byte, error) {
	var id [32]byte
	if s == nil || s.state == nil {
		return id, errNilState
	}
	if target == "" {
		return id, errEmptyTarget
	}
	if delay <= 0 {
		return id, errDelayNotPositive
	}
	nonce, err := s.state.TimelockNextNonce()
	if err != nil {
		return id, err
	}
	id = operationID(target, payload, nonce)
	op := &Operation{
		ID:       id,
		Target:   target,
		Payload:  append([]byte(nil), payload...),
		QueuedAt: now,
		Eta:      now + delay,
	}
	if err := s.state.TimelockPut(op); err != nil {
		return [32]byte{}, err
	}
	return id, nil
}

// Execute releases a queued operation once its wait has elapsed. The
// operation is removed before the target and payload are returned, so a
// second call fails with an unknown-operation error.
func (s *Scheduler) Execute(id [32]byte, now int64) (string, []byte, error) {
	if s == nil || s.state == nil {
		return "", nil, errNilState
	}
	op, ok, err := s.state.TimelockGet(id)
	if err != nil {
		return "", nil, err
	}
	if !ok || op == nil {
		return "", nil, errUnknownOperation
	}
	if now < op.Eta {
		return "", nil, errNotReady
	}
	if err := s.state.TimelockDelete(id); err != nil {
		return "", nil, err
	}
	return op.Target, op.Payload, nil
}

// Cancel removes a queued operation before execution.
func (s *Scheduler) Cancel(id [32]byte) error {
	if s == nil || s.state == nil {
		return errNilState
	}
	_, ok, err := s.state.TimelockGet(id)
	if err != nil {
		return err
	}
	if !ok {
		return errUnknownOperation
	}
	return s.state.TimelockDelete(id)
}

// Pending reports whether an operation is still queued and its eta.
func (s *Scheduler) Pending(id [32]byte) (*Operation, bool, error) {
	if s == nil || s.state == nil {
		return nil, false, errNilState
	}
	return s.state.TimelockGet(id)
}

func operationID(target string, payload []byte, nonce uint64) [32]byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], nonce)
	return [32]byte(ethcrypto.Keccak256Hash([]byte(target), payload, buf[:]))
}
