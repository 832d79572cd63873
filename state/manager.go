package state

import (
	"encoding/json"
	"errors"
	"fmt"

	"creditvault/storage"
)

// Manager provides transactional access to the vault's persistent state.
// All reads and writes go through a Txn; Begin returns a fresh overlay over
// the backing store.
type Manager struct {
	db storage.Database
}

// NewManager creates a state manager over the given database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

// Begin opens a transaction. Writes and deletes are staged in memory and
// only reach the database on Commit.
func (m *Manager) Begin() *Txn {
	return &Txn{
		mgr:     m,
		writes:  make(map[string][]byte),
		deletes: make(map[string]bool),
	}
}

// View runs fn against a read-only transaction that is always discarded.
func (m *Manager) View(fn func(*Txn) error) error {
	txn := m.Begin()
	defer txn.Discard()
	return fn(txn)
}

// Update runs fn against a transaction and commits it if fn succeeds.
func (m *Manager) Update(fn func(*Txn) error) error {
	txn := m.Begin()
	if err := fn(txn); err != nil {
		txn.Discard()
		return err
	}
	return txn.Commit()
}

// Txn is an in-memory overlay over the backing store. It is not safe for
// concurrent use; callers serialize access.
type Txn struct {
	mgr     *Manager
	writes  map[string][]byte
	deletes map[string]bool
	done    bool
}

var errTxnClosed = errors.New("state: transaction already committed or discarded")

// Commit flushes staged writes and deletes to the backing store in a single
// atomic batch. On error nothing has been persisted.
func (t *Txn) Commit() error {
	if t.done {
		return errTxnClosed
	}
	t.done = true
	batch := storage.NewBatch()
	for key, value := range t.writes {
		batch.Put([]byte(key), value)
	}
	for key := range t.deletes {
		batch.Delete([]byte(key))
	}
	if batch.Len() == 0 {
		return nil
	}
	if err := t.mgr.db.Write(batch); err != nil {
		return fmt.Errorf("state: commit: %w", err)
	}
	return nil
}

// Discard drops all staged changes.
func (t *Txn) Discard() {
	t.done = true
	t.writes = nil
	t.deletes = nil
}

func (t *Txn) get(key string) ([]byte, bool, error) {
	if t.done {
		return nil, false, errTxnClosed
	}
	if value, ok := t.writes[key]; ok {
		return value, true, nil
	}
	if t.deletes[key] {
		return nil, false, nil
	}
	value, err := t.mgr.db.Get([]byte(key))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (t *Txn) put(key string, value []byte) error {
	if t.done {
		return errTxnClosed
	}
	delete(t.deletes, key)
	t.writes[key] = value
	return nil
}

func (t *Txn) del(key string) error {
	if t.done {
		return errTxnClosed
	}
	delete(t.writes, key)
	t.deletes[key] = true
	return nil
}

func (t *Txn) getJSON(key string, out any) (bool, error) {
	raw, ok, err := t.get(key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("state: decode %q: %w", key, err)
	}
	return true, nil
}

func (t *Txn) putJSON(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("state: encode %q: %w", key, err)
	}
	return t.put(key, raw)
}

// nextCounter reads the counter at key, returns its current value, and
// stages the incremented value.
func (t *Txn) nextCounter(key string, start uint64) (uint64, error) {
	var current uint64
	ok, err := t.getJSON(key, &current)
	if err != nil {
		return 0, err
	}
	if !ok {
		current = start
	}
	if err := t.putJSON(key, current+1); err != nil {
		return 0, err
	}
	return current, nil
}
