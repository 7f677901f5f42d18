package dispatch

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/benediktbwimmer/sandboxrunner/internal/wire"
)

func TestDispatcherCompletesUpdateResponse(t *testing.T) {
	table := NewTable()
	id, waiter := table.Register(KindUpdate)

	inbound := make(chan wire.Inbound, 1)
	_, cancel := context.WithCancel(context.Background())
	d := New(inbound, table, cancel)
	go d.Run()
	defer d.Stop()

	inbound <- wire.Inbound{Type: "update-response", RequestID: id, OK: true, Run: json.RawMessage(`{"x":1}`)}

	select {
	case res := <-waiter:
		require.True(t, res.OK)
		require.JSONEq(t, `{"x":1}`, string(res.Run))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for completion")
	}
}

func TestDispatcherDefaultErrorMessages(t *testing.T) {
	table := NewTable()
	id, waiter := table.Register(KindResolveSecret)

	inbound := make(chan wire.Inbound, 1)
	_, cancel := context.WithCancel(context.Background())
	d := New(inbound, table, cancel)
	go d.Run()
	defer d.Stop()

	inbound <- wire.Inbound{Type: "resolve-secret-response", RequestID: id, OK: false}

	res := <-waiter
	require.False(t, res.OK)
	require.Equal(t, "Secret resolution failed", res.Err)
}

func TestDispatcherUnknownRequestIDIsNoOp(t *testing.T) {
	table := NewTable()
	inbound := make(chan wire.Inbound, 1)
	_, cancel := context.WithCancel(context.Background())
	d := New(inbound, table, cancel)
	go d.Run()
	defer d.Stop()

	inbound <- wire.Inbound{Type: "update-response", RequestID: "nonexistent", OK: true}
	time.Sleep(50 * time.Millisecond) // give the loop a chance to process; no observable effect expected
}

func TestDispatcherCancelTriggersContext(t *testing.T) {
	table := NewTable()
	inbound := make(chan wire.Inbound, 1)
	ctx, cancel := context.WithCancel(context.Background())
	d := New(inbound, table, cancel)
	go d.Run()
	defer d.Stop()

	inbound <- wire.Inbound{Type: "cancel", Reason: "stop requested"}

	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("expected context to be cancelled")
	}
	require.Equal(t, "stop requested", d.CancelReason())
}

func TestTableCompleteIsIdempotent(t *testing.T) {
	table := NewTable()
	id, _ := table.Register(KindUpdate)

	require.True(t, table.Complete(id, Result{OK: true}))
	require.False(t, table.Complete(id, Result{OK: true}))
}

func TestTableDrainWithFailure(t *testing.T) {
	table := NewTable()
	_, w1 := table.Register(KindUpdate)
	_, w2 := table.Register(KindResolveSecret)

	table.DrainWithFailure("Handler failed")

	for _, w := range []<-chan Result{w1, w2} {
		res := <-w
		require.False(t, res.OK)
		require.Equal(t, "Handler failed", res.Err)
	}
}
