//go:build linux

package handler

import (
	"context"
	"errors"
	"fmt"
	"plugin"

	"github.com/benediktbwimmer/sandboxrunner/internal/jobctx"
)

// pluginLoader resolves a bundle entry compiled as a Go plugin (a .so built
// with `go build -buildmode=plugin`). This is the Linux-only analogue of
// dynamically loading an arbitrary module at runtime; Go has no equivalent
// of importlib for source files, so bundles on this platform ship as
// prebuilt plugins.
type pluginLoader struct{}

// NewEntryLoader returns the platform's EntryLoader.
func NewEntryLoader() EntryLoader {
	return pluginLoader{}
}

func (pluginLoader) Load(entryFile, exportName string) (HandlerFunc, error) {
	p, err := plugin.Open(entryFile)
	if err != nil {
		return nil, fmt.Errorf("opening bundle entry plugin: %w", err)
	}

	var precedence []string
	if exportName != "" {
		precedence = append(precedence, exportName)
	}
	precedence = append(precedence, "Handler", "New", "Default")

	for _, name := range precedence {
		sym, err := p.Lookup(name)
		if err != nil {
			continue
		}
		if fn, ok := adaptSymbol(sym); ok {
			return fn, nil
		}
	}

	return nil, errors.New("bundle entry did not export a callable handler")
}

// adaptSymbol recognizes the two callable shapes a plugin symbol may take:
// a handler function directly, or a zero-argument constructor for one (the
// "New" precedence slot).
func adaptSymbol(sym plugin.Symbol) (HandlerFunc, bool) {
	switch v := sym.(type) {
	case func(context.Context, *jobctx.Context) (any, error):
		return v, true
	case *func(context.Context, *jobctx.Context) (any, error):
		if v == nil {
			return nil, false
		}
		return *v, true
	case func() HandlerFunc:
		return v(), true
	case *func() HandlerFunc:
		if v == nil || *v == nil {
			return nil, false
		}
		return (*v)(), true
	}
	return nil, false
}
