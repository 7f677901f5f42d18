package dispatch

import (
	"context"
	"sync"

	"github.com/benediktbwimmer/sandboxrunner/internal/wire"
)

// Dispatcher consumes inbound messages after the start handshake, correlates
// responses to pending requests by request-id, and delivers cancellation to
// the handler task (spec §4.5).
type Dispatcher struct {
	inbound <-chan wire.Inbound
	table   *Table
	cancel  context.CancelFunc

	mu     sync.Mutex
	reason string

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// New builds a Dispatcher. cancel is invoked for every "cancel" message that
// arrives (a context.CancelFunc does nothing after its first call); it should
// cancel the handler task's context.
func New(inbound <-chan wire.Inbound, table *Table, cancel context.CancelFunc) *Dispatcher {
	return &Dispatcher{
		inbound: inbound,
		table:   table,
		cancel:  cancel,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Run consumes inbound messages until Stop is called or the inbound source
// is exhausted. It is meant to run on its own goroutine; call Done() to join
// it.
func (d *Dispatcher) Run() {
	defer close(d.done)

	for {
		select {
		case <-d.stop:
			return
		case msg, ok := <-d.inbound:
			if !ok {
				return
			}
			d.handle(msg)
		}
	}
}

func (d *Dispatcher) handle(msg wire.Inbound) {
	switch msg.Type {
	case "update-response":
		d.table.Complete(msg.RequestID, resultFrom(msg, "Request failed"))
	case "resolve-secret-response":
		d.table.Complete(msg.RequestID, resultFrom(msg, "Secret resolution failed"))
	case "cancel":
		d.triggerCancel(msg.Reason)
	default:
		// eof sentinels and any other unrecognized type are ignored here,
		// per spec §4.5's dispatch table ("other -> Ignore").
	}
}

func resultFrom(msg wire.Inbound, defaultErr string) Result {
	if msg.OK {
		return Result{OK: true, Run: msg.Run, Value: msg.Value}
	}
	errMsg := msg.Error
	if errMsg == "" {
		errMsg = defaultErr
	}
	return Result{OK: false, Err: errMsg}
}

func (d *Dispatcher) triggerCancel(reason string) {
	d.mu.Lock()
	if d.reason == "" {
		d.reason = reason
	}
	d.mu.Unlock()
	d.cancel()
}

// CancelReason returns the first non-empty reason supplied by a cancel
// message, or "" if none has arrived.
func (d *Dispatcher) CancelReason() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reason
}

// Stop requests the Run loop to exit. Safe to call multiple times and from
// any goroutine.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() { close(d.stop) })
}

// Done reports when Run has returned, for joining (spec §4.6's "join it
// before exiting").
func (d *Dispatcher) Done() <-chan struct{} {
	return d.done
}
