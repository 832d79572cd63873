package timelock

import (
	"bytes"
	"errors"
	"testing"
)

type mockState struct {
	ops   map[[32]byte]*Operation
	nonce uint64
}

func newMockState() *mockState {
	return &mockState{ops: make(map[[32]byte]*Operation)}
}

func (m *mockState) TimelockNextNonce() (uint64, error) {
	nonce := m.nonce
	m.nonce++
	return nonce, nil
}

func (m *mockState) TimelockGet(id [32]byte) (*Operation, bool, error) {
	op, ok := m.ops[id]
	return op, ok, nil
}

func (m *mockState) TimelockPut(op *Operation) error {
	m.ops[op.ID] = op
	return nil
}

func (m *mockState) TimelockDelete(id [32]byte) error {
	delete(m.ops, id)
	return nil
}

func newTestScheduler() (*Scheduler, *mockState) {
	state := newMockState()
	scheduler := NewScheduler()
	scheduler.SetState(state)
	return scheduler, state
}

func TestQueueRejectsBadInputs(t *testing.T) {
	scheduler, _ := newTestScheduler()
	if _, err := scheduler.Queue("", []byte("x"), 100, 1_000); !errors.Is(err, errEmptyTarget) {
		t.Fatalf("empty target err = %v, want %v", err, errEmptyTarget)
	}
	if _, err := scheduler.Queue("op", []byte("x"), 0, 1_000); !errors.Is(err, errDelayNotPositive) {
		t.Fatalf("zero delay err = %v, want %v", err, errDelayNotPositive)
	}
}

func TestExecuteWaitsForEta(t *testing.T) {
	scheduler, _ := newTestScheduler()
	id, err := scheduler.Queue("loans.approve_borrower", []byte(`{"a":1}`), 2*86_400, 1_000)
	if err != nil {
		t.Fatalf("queue: %v", err)
	}

	if _, _, err := scheduler.Execute(id, 1_000+2*86_400-1); !errors.Is(err, errNotReady) {
		t.Fatalf("early exec err = %v, want %v", err, errNotReady)
	}
	target, payload, err := scheduler.Execute(id, 1_000+2*86_400)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if target != "loans.approve_borrower" {
		t.Fatalf("target = %q", target)
	}
	if !bytes.Equal(payload, []byte(`{"a":1}`)) {
		t.Fatalf("payload = %q", payload)
	}
}

func TestExecuteReleasesExactlyOnce(t *testing.T) {
	scheduler, state := newTestScheduler()
	id, err := scheduler.Queue("op", []byte("x"), 10, 0)
	if err != nil {
		t.Fatalf("queue: %v", err)
	}
	if _, _, err := scheduler.Execute(id, 10); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if _, _, err := scheduler.Execute(id, 10); !errors.Is(err, errUnknownOperation) {
		t.Fatalf("second exec err = %v, want %v", err, errUnknownOperation)
	}
	if len(state.ops) != 0 {
		t.Fatalf("operations left behind: %d", len(state.ops))
	}
}

func TestIdenticalPayloadsGetDistinctIDs(t *testing.T) {
	scheduler, _ := newTestScheduler()
	first, err := scheduler.Queue("op", []byte("x"), 10, 0)
	if err != nil {
		t.Fatalf("queue: %v", err)
	}
	second, err := scheduler.Queue("op", []byte("x"), 10, 0)
	if err != nil {
		t.Fatalf("queue: %v", err)
	}
	if first == second {
		t.Fatal("duplicate queues produced the same operation ID")
	}
}

func TestCancelRemovesPending(t *testing.T) {
	scheduler, _ := newTestScheduler()
	id, err := scheduler.Queue("op", []byte("x"), 10, 0)
	if err != nil {
		t.Fatalf("queue: %v", err)
	}
	if _, ok, _ := scheduler.Pending(id); !ok {
		t.Fatal("operation not pending after queue")
	}
	if err := scheduler.Cancel(id); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, ok, _ := scheduler.Pending(id); ok {
		t.Fatal("operation still pending after cancel")
	}
	if err := scheduler.Cancel(id); !errors.Is(err, errUnknownOperation) {
		t.Fatalf("second cancel err = %v, want %v", err, errUnknownOperation)
	}
}

func TestQueuedOperationCapturesPayloadCopy(t *testing.T) {
	scheduler, state := newTestScheduler()
	payload := []byte("abc")
	id, err := scheduler.Queue("op", payload, 10, 0)
	if err != nil {
		t.Fatalf("queue: %v", err)
	}
	payload[0] = 'z'
	if got := state.ops[id].Payload; !bytes.Equal(got, []byte("abc")) {
		t.Fatalf("payload mutated through caller slice: %q", got)
	}
}
