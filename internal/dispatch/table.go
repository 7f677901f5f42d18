// Package dispatch implements the pending-request table and the inbound
// message loop that correlates responses to outstanding requests and
// delivers cancellation to the handler task (spec §4.5).
package dispatch

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
)

// Kind distinguishes the two request shapes the parent can respond to.
type Kind int

const (
	KindUpdate Kind = iota
	KindResolveSecret
)

// Result is what a waiter receives when its request completes.
type Result struct {
	OK    bool
	Run   json.RawMessage // update-response
	Value json.RawMessage // resolve-secret-response
	Err   string
}

type entry struct {
	kind Kind
	done chan Result
}

// Table is the pending-request table (spec §3): a mapping from request-id
// to a one-shot waiter. The mutex guards only lookup/insert/remove and is
// never held across a channel send/receive (spec §9 Design Notes).
type Table struct {
	mu sync.Mutex
	m  map[string]*entry
}

// NewTable returns an empty pending-request table.
func NewTable() *Table {
	return &Table{m: make(map[string]*entry)}
}

// Register allocates a fresh unique request-id and returns it along with a
// channel that receives exactly one Result.
func (t *Table) Register(kind Kind) (string, <-chan Result) {
	id := uuid.NewString()
	e := &entry{kind: kind, done: make(chan Result, 1)}

	t.mu.Lock()
	t.m[id] = e
	t.mu.Unlock()

	return id, e.done
}

// Complete resolves the waiter for id, if still pending. Idempotent: a
// duplicate completion for an already-removed id is a no-op and reports
// false (spec §4.5, §8).
func (t *Table) Complete(id string, res Result) bool {
	t.mu.Lock()
	e, ok := t.m[id]
	if ok {
		delete(t.m, id)
	}
	t.mu.Unlock()

	if !ok {
		return false
	}
	e.done <- res
	return true
}

// DrainWithFailure fails every still-pending waiter with message, removing
// them all from the table (spec §4.6: drained on handler termination).
func (t *Table) DrainWithFailure(message string) {
	t.mu.Lock()
	pending := t.m
	t.m = make(map[string]*entry)
	t.mu.Unlock()

	for _, e := range pending {
		e.done <- Result{OK: false, Err: message}
	}
}
