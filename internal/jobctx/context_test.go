package jobctx

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/benediktbwimmer/sandboxrunner/internal/dispatch"
)

type fakeSender struct {
	sent []any
}

func (f *fakeSender) Send(v any) error {
	f.sent = append(f.sent, v)
	return nil
}

type fakeRequester struct {
	table *dispatch.Table
}

func (f *fakeRequester) Register(kind dispatch.Kind) (string, <-chan dispatch.Result) {
	return f.table.Register(kind)
}

func TestLoggerAlwaysOverridesTaskID(t *testing.T) {
	ch := &fakeSender{}
	c := New("task-1", nil, nil, nil, nil, ch, &fakeRequester{table: dispatch.NewTable()}, nil, nil, nil)

	c.Logger("hello", map[string]any{"sandboxTaskId": "forged", "x": 1})

	require.Len(t, ch.sent, 1)

	b, err := json.Marshal(ch.sent[0])
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(b, &decoded))
	meta := decoded["meta"].(map[string]any)
	require.Equal(t, "task-1", meta["sandboxTaskId"])
	require.Equal(t, float64(1), meta["x"])
}

func TestUpdateRoundTrip(t *testing.T) {
	table := dispatch.NewTable()
	ch := &fakeSender{}
	requester := &fakeRequester{table: table}
	c := New("task-1", nil, map[string]any{"old": true}, map[string]any{"a": 1}, nil, ch, requester, nil, nil, nil)

	// Drive Update manually: call Register ourselves is not possible since
	// Update registers internally. Instead, run Update in a goroutine and
	// complete the request once it has been sent.
	resultCh := make(chan any, 1)
	errCh := make(chan error, 1)
	go func() {
		r, err := c.Update(context.Background(), map[string]any{
			"parameters": map[string]any{"a": 2},
			"dropped":    "nope",
		})
		resultCh <- r
		errCh <- err
	}()

	var requestID string
	for requestID == "" {
		if len(ch.sent) == 1 {
			b, err := json.Marshal(ch.sent[0])
			require.NoError(t, err)
			var decoded map[string]any
			require.NoError(t, json.Unmarshal(b, &decoded))
			require.Equal(t, "update-request", decoded["type"])

			updates := decoded["updates"].(map[string]any)
			_, hasDropped := updates["dropped"]
			require.False(t, hasDropped)
			require.Contains(t, updates, "parameters")

			requestID = decoded["requestId"].(string)
		}
	}

	table.Complete(requestID, dispatch.Result{OK: true, Run: json.RawMessage(`{"parameters":{"a":2},"id":"r1"}`)})

	result := <-resultCh
	err := <-errCh
	require.NoError(t, err)
	require.NotNil(t, result)
	require.Equal(t, map[string]any{"a": float64(2)}, c.Parameters())
}

func TestResolveSecretRoundTrip(t *testing.T) {
	table := dispatch.NewTable()
	ch := &fakeSender{}
	requester := &fakeRequester{table: table}
	c := New("task-1", nil, nil, nil, nil, ch, requester, nil, nil, nil)

	resultCh := make(chan *string, 1)
	errCh := make(chan error, 1)
	go func() {
		v, err := c.ResolveSecret(context.Background(), "ref://db/password")
		resultCh <- v
		errCh <- err
	}()

	var requestID string
	for requestID == "" {
		if len(ch.sent) == 1 {
			b, err := json.Marshal(ch.sent[0])
			require.NoError(t, err)
			var decoded map[string]any
			require.NoError(t, json.Unmarshal(b, &decoded))
			require.Equal(t, "resolve-secret-request", decoded["type"])
			require.Equal(t, "ref://db/password", decoded["reference"])
			requestID = decoded["requestId"].(string)
		}
	}

	secretJSON, _ := json.Marshal("s3cr3t")
	table.Complete(requestID, dispatch.Result{OK: true, Value: secretJSON})

	v := <-resultCh
	err := <-errCh
	require.NoError(t, err)
	require.NotNil(t, v)
	require.Equal(t, "s3cr3t", *v)
}

func TestResolveSecretFailure(t *testing.T) {
	table := dispatch.NewTable()
	ch := &fakeSender{}
	requester := &fakeRequester{table: table}
	c := New("task-1", nil, nil, nil, nil, ch, requester, nil, nil, nil)

	resultCh := make(chan *string, 1)
	errCh := make(chan error, 1)
	go func() {
		v, err := c.ResolveSecret(context.Background(), "ref://missing")
		resultCh <- v
		errCh <- err
	}()

	var requestID string
	for requestID == "" {
		if len(ch.sent) == 1 {
			b, _ := json.Marshal(ch.sent[0])
			var decoded map[string]any
			_ = json.Unmarshal(b, &decoded)
			if id, ok := decoded["requestId"].(string); ok {
				requestID = id
			}
		}
	}
	table.Complete(requestID, dispatch.Result{OK: false, Err: "Secret resolution failed"})

	v := <-resultCh
	err := <-errCh
	require.Nil(t, v)
	require.EqualError(t, err, "Secret resolution failed")
}

func TestWorkflowEventContextDualNaming(t *testing.T) {
	c := New("task-1", nil, nil, nil, map[string]any{"runId": "abc"}, &fakeSender{}, &fakeRequester{table: dispatch.NewTable()}, nil, nil, nil)
	require.Equal(t, c.WorkflowEventContext(), c.Workflow_event_context())
}
