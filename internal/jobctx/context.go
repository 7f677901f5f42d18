// Package jobctx implements the Job Context façade handed to handlers
// (spec §4.8): parameters, a logger, update, and resolveSecret, each round
// tripping through the IPC channel and the pending-request table.
package jobctx

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/benediktbwimmer/sandboxrunner/internal/dispatch"
	"github.com/benediktbwimmer/sandboxrunner/internal/guard"
	"github.com/benediktbwimmer/sandboxrunner/internal/sanitize"
	"github.com/benediktbwimmer/sandboxrunner/internal/wire"
)

// updateWhitelist is the exact set of keys an update() call may carry
// through to the parent (spec §4.8); everything else is dropped silently.
var updateWhitelist = map[string]bool{
	"parameters": true,
	"logsUrl":    true,
	"metrics":    true,
	"context":    true,
	"timeoutMs":  true,
}

// sender is satisfied by *wire.Channel; narrowed to ease testing.
type sender interface {
	Send(v any) error
}

// requester is satisfied by *dispatch.Table; narrowed to ease testing.
type requester interface {
	Register(kind dispatch.Kind) (string, <-chan dispatch.Result)
}

// Context is the façade handed to a handler invocation.
type Context struct {
	taskID string

	mu                   sync.Mutex
	definition           any
	run                  any
	parameters           any
	workflowEventContext any

	ch    sender
	table requester

	fs      *guard.FS
	net     *guard.Net
	process *guard.ProcessGuard
}

// New builds a Context bound to one start payload. fs, net, and process are
// the guard façades installed for this invocation; handler code reaches
// them through FS()/Net()/Process() rather than through intercepted stdlib
// calls, since Go has no equivalent of monkey-patching the standard
// library at runtime.
func New(taskID string, definition, run, parameters, workflowEventContext any, ch sender, table requester, fs *guard.FS, net *guard.Net, process *guard.ProcessGuard) *Context {
	return &Context{
		taskID:               taskID,
		definition:           definition,
		run:                  run,
		parameters:           parameters,
		workflowEventContext: workflowEventContext,
		ch:                   ch,
		table:                table,
		fs:                   fs,
		net:                  net,
		process:              process,
	}
}

// FS returns the filesystem guard façade installed for this invocation.
func (c *Context) FS() *guard.FS { return c.fs }

// Net returns the network guard façade installed for this invocation.
func (c *Context) Net() *guard.Net { return c.net }

// Process returns the process-hardening façade installed for this
// invocation, or nil if the Context was built without one.
func (c *Context) Process() *guard.ProcessGuard { return c.process }

// Definition returns the job definition bound from the start payload.
func (c *Context) Definition() any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.definition
}

// Run returns the current run value, possibly replaced by a prior Update.
func (c *Context) Run() any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.run
}

// Parameters returns the current parameters, possibly replaced by a prior
// Update.
func (c *Context) Parameters() any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.parameters
}

// WorkflowEventContext returns the workflow event context bound from the
// start payload, or nil if absent.
func (c *Context) WorkflowEventContext() any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.workflowEventContext
}

// Workflow_event_context is the underscore-style spelling of
// WorkflowEventContext (spec §4.8: both spellings are the same operation).
func (c *Context) Workflow_event_context() any { //nolint:revive,stylecheck // dual naming required by spec
	return c.WorkflowEventContext()
}

// Logger emits a log message. meta is sanitized and always carries
// sandboxTaskId, overriding any value the handler supplied for that key —
// the task id is authoritative (spec §4.8).
func (c *Context) Logger(message string, meta map[string]any) {
	sanitizedAny := sanitize.Value(meta)
	sanitized, ok := sanitizedAny.(map[string]any)
	if !ok || sanitized == nil {
		sanitized = map[string]any{}
	}
	sanitized["sandboxTaskId"] = c.taskID

	_ = c.ch.Send(wire.NewLogMessage("info", message, sanitized))
}

// Update normalizes updates to the whitelisted keys, sends an
// update-request, and awaits the paired response. On success, if the
// returned run value is an object, it replaces the local run (and its
// parameters field, if present, replaces the local parameters).
func (c *Context) Update(ctx context.Context, updates map[string]any) (any, error) {
	filtered := make(map[string]any, len(updates))
	for k, v := range updates {
		if updateWhitelist[k] {
			filtered[k] = v
		}
	}
	sanitized, _ := sanitize.Value(filtered).(map[string]any)

	requestID, waiter := c.table.Register(dispatch.KindUpdate)
	if err := c.ch.Send(wire.UpdateRequest{Type: "update-request", RequestID: requestID, Updates: sanitized}); err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-waiter:
		if !res.OK {
			return nil, errors.New(res.Err)
		}
		if len(res.Run) == 0 {
			return nil, nil
		}

		var newRun any
		if err := json.Unmarshal(res.Run, &newRun); err != nil {
			return nil, err
		}

		c.mu.Lock()
		if obj, ok := newRun.(map[string]any); ok {
			c.run = newRun
			if params, present := obj["parameters"]; present {
				c.parameters = params
			}
		}
		c.mu.Unlock()

		return newRun, nil
	}
}

// ResolveSecret resolves a parent-held secret reference to its value.
// reference is an arbitrary JSON-shaped value (spec §4.8), sanitized before
// it crosses the wire.
func (c *Context) ResolveSecret(ctx context.Context, reference any) (*string, error) {
	requestID, waiter := c.table.Register(dispatch.KindResolveSecret)
	sanitizedRef := sanitize.Value(reference)
	if err := c.ch.Send(wire.ResolveSecretRequest{Type: "resolve-secret-request", RequestID: requestID, Reference: sanitizedRef}); err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-waiter:
		if !res.OK {
			return nil, errors.New(res.Err)
		}
		if len(res.Value) == 0 {
			return nil, nil
		}

		var value *string
		if err := json.Unmarshal(res.Value, &value); err != nil {
			return nil, err
		}
		return value, nil
	}
}

// Resolve_secret is the underscore-style spelling of ResolveSecret.
func (c *Context) Resolve_secret(ctx context.Context, reference any) (*string, error) { //nolint:revive,stylecheck // dual naming required by spec
	return c.ResolveSecret(ctx, reference)
}
