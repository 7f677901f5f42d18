// Package handler implements the handler lifecycle (spec §4.6): loading the
// bundle entry, resolving the callable, installing the guards, invoking the
// handler with a Job Context, and reporting the outcome.
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/benediktbwimmer/sandboxrunner/internal/config"
	"github.com/benediktbwimmer/sandboxrunner/internal/dispatch"
	"github.com/benediktbwimmer/sandboxrunner/internal/guard"
	"github.com/benediktbwimmer/sandboxrunner/internal/jobctx"
	"github.com/benediktbwimmer/sandboxrunner/internal/rusage"
	"github.com/benediktbwimmer/sandboxrunner/internal/sanitize"
	"github.com/benediktbwimmer/sandboxrunner/internal/wire"

	"github.com/benediktbwimmer/sandboxrunner/internal/pathresolver"
)

// WorkflowEventContextEnv is the environment variable a bundle's entry
// process can read its workflow event context from, once published.
const WorkflowEventContextEnv = "APPHUB_WORKFLOW_EVENT_CONTEXT"

// HostRootPrefixEnv names the environment variable carrying the optional
// host-root remap (spec §3's "Host-root remap").
const HostRootPrefixEnv = "APPHUB_SANDBOX_HOST_ROOT_PREFIX"

// HandlerFunc is a resolved bundle handler. ctx carries cancellation
// (delivered by the Dispatcher on a "cancel" message); jc is the Job
// Context façade.
type HandlerFunc func(ctx context.Context, jc *jobctx.Context) (any, error)

// Awaitable is implemented by a handler result that needs a further
// blocking step before it is ready to sanitize and emit, mirroring the
// "if the result is awaitable, await it" step of the lifecycle.
type Awaitable interface {
	Await() (any, error)
}

// EntryLoader loads a bundle's entry file and resolves the handler callable
// by export-name precedence.
type EntryLoader interface {
	Load(entryFile, exportName string) (HandlerFunc, error)
}

// sender mirrors the jobctx package's narrow sender interface so this
// package doesn't need to depend on *wire.Channel concretely in its exported
// signatures. The pending-request table is taken as a concrete
// *dispatch.Table.
type sender interface {
	Send(v any) error
}

// Runtime executes one bundle start payload to completion.
type Runtime struct {
	loader           EntryLoader
	ch               sender
	table            *dispatch.Table
	hostRoot         string
	allowGitConfig   bool
	domainPolicy     guard.DomainPolicy
	processDenyRules []string
	logger           *logrus.Entry
	cancelReason     func() string
}

// Options configures a Runtime.
type Options struct {
	HostRoot         string
	AllowGitConfig   bool
	DomainPolicy     guard.DomainPolicy
	ProcessDenyRules []string
	Logger           *logrus.Entry
	// CancelReason returns the reason captured by the Dispatcher for the
	// most recent cancel message, or "" if none arrived yet.
	CancelReason func() string
}

// New builds a Runtime.
func New(loader EntryLoader, ch sender, table *dispatch.Table, opts Options) *Runtime {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	cancelReason := opts.CancelReason
	if cancelReason == nil {
		cancelReason = func() string { return "" }
	}
	return &Runtime{
		loader:           loader,
		ch:               ch,
		table:            table,
		hostRoot:         opts.HostRoot,
		allowGitConfig:   opts.AllowGitConfig,
		domainPolicy:     opts.DomainPolicy,
		processDenyRules: opts.ProcessDenyRules,
		logger:           logger,
		cancelReason:     cancelReason,
	}
}

// Execute runs the full lifecycle for one start payload. It returns an
// error only for the setup failures the spec calls fatal (steps 1-8);
// once the handler has been invoked (step 9 onward), every outcome -
// success, cancellation, or handler exception - is reported over the
// channel and Execute returns nil.
func (r *Runtime) Execute(ctx context.Context, payload config.StartPayload) error {
	taskID := payload.TaskID
	if taskID == "" {
		taskID = uuid.NewString()
	}

	resolver, err := pathresolver.New(payload.Bundle.Directory, r.hostRoot)
	if err != nil {
		return fmt.Errorf("handler: resolving bundle root: %w", err)
	}

	entryReal, err := resolver.Resolve(payload.Bundle.EntryFile)
	if err != nil {
		return fmt.Errorf("handler: entry file escapes bundle root: %w", err)
	}

	publishWorkflowEventContext(payload.WorkflowEventContext)

	if err := os.Chdir(resolver.BundleRoot()); err != nil {
		return fmt.Errorf("handler: changing to bundle root: %w", err)
	}

	caps := payload.Bundle.Capabilities()
	deny := guard.NewMandatoryDeny(resolver.BundleRoot(), r.allowGitConfig)

	if found := guard.FindDangerousFiles(resolver.BundleRoot(), guard.DefaultMaxDangerousFileDepth); len(found) > 0 {
		r.logger.WithField("sandboxTaskId", taskID).WithField("paths", found).Info("bundle contains write-protected dangerous files")
	}

	fsGuard := guard.NewFS(caps, resolver, deny)
	netGuard := guard.NewNet(caps)
	processGuard := guard.NewProcessGuard(r.processDenyRules)

	if caps.Has("network") && !r.domainPolicy.Empty() {
		proxy, err := guard.NewSocksProxy(r.domainPolicy)
		if err != nil {
			return fmt.Errorf("handler: starting domain-policy proxy: %w", err)
		}
		defer proxy.Close()
		processGuard.SetProxyEnv(guard.EnvVars(proxy.Port()))
	}

	handlerFn, err := r.loader.Load(entryReal, payload.Bundle.ExportName)
	if err != nil {
		return fmt.Errorf("handler: failed to load bundle entry: %w", err)
	}

	var definition, run, parameters, workflowCtx any
	_ = json.Unmarshal(payload.Job.Definition, &definition)
	_ = json.Unmarshal(payload.Job.Run, &run)
	_ = json.Unmarshal(payload.Job.Parameters, &parameters)
	if len(payload.WorkflowEventContext) > 0 {
		_ = json.Unmarshal(payload.WorkflowEventContext, &workflowCtx)
	}

	jc := jobctx.New(taskID, definition, run, parameters, workflowCtx, r.ch, r.table, fsGuard, netGuard, processGuard)

	r.invoke(ctx, taskID, handlerFn, jc)
	return nil
}

type outcome struct {
	result any
	err    error
}

func (r *Runtime) invoke(ctx context.Context, taskID string, handlerFn HandlerFunc, jc *jobctx.Context) {
	done := make(chan outcome, 1)
	start := time.Now()

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- outcome{err: fmt.Errorf("handler panicked: %v\n%s", rec, debug.Stack())}
			}
		}()

		result, err := handlerFn(ctx, jc)
		if err == nil {
			if awaitable, ok := result.(Awaitable); ok {
				result, err = awaitable.Await()
			}
		}
		done <- outcome{result: result, err: err}
	}()

	select {
	case <-ctx.Done():
		r.reportCancellation(taskID)
	case o := <-done:
		r.reportOutcome(taskID, time.Since(start), o)
	}
}

func (r *Runtime) reportCancellation(taskID string) {
	message := r.cancelReason()
	if message == "" {
		message = "Sandbox execution cancelled"
	}
	_ = r.ch.Send(wire.NewErrorMessage(message, ""))
	r.table.DrainWithFailure(message)
}

func (r *Runtime) reportOutcome(taskID string, duration time.Duration, o outcome) {
	if o.err != nil {
		stack := fmt.Sprintf("%+v", o.err)
		r.logger.WithField("sandboxTaskId", taskID).WithField("error", stack).Info("Handler threw error")
		_ = r.ch.Send(wire.NewErrorMessage("Handler threw error", stack))
		r.table.DrainWithFailure("Handler failed")
		return
	}

	resultValue := o.result
	if resultValue == nil {
		resultValue = map[string]any{}
	}
	sanitized := sanitize.Value(resultValue)
	if sanitized == nil {
		sanitized = map[string]any{}
	}

	var resourceUsage map[string]any
	if usage, ok := rusage.Collect(); ok {
		resourceUsage = usage.AsMap()
	}

	_ = r.ch.Send(wire.ResultMessage{
		Type:          "result",
		Result:        sanitized,
		DurationMs:    duration.Milliseconds(),
		ResourceUsage: resourceUsage,
	})
}

func publishWorkflowEventContext(raw json.RawMessage) {
	if len(raw) == 0 {
		return
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		os.Unsetenv(WorkflowEventContextEnv)
		return
	}
	serialized, err := json.Marshal(v)
	if err != nil {
		os.Unsetenv(WorkflowEventContextEnv)
		return
	}
	os.Setenv(WorkflowEventContextEnv, string(serialized))
}
