//go:build !linux

package handler

import "errors"

// stubLoader reports that dynamic bundle loading is unavailable: the
// plugin package used by the Linux loader only supports ELF shared
// objects.
type stubLoader struct{}

// NewEntryLoader returns the platform's EntryLoader.
func NewEntryLoader() EntryLoader {
	return stubLoader{}
}

func (stubLoader) Load(entryFile, exportName string) (HandlerFunc, error) {
	return nil, errors.New("dynamic bundle loading via the plugin package is only supported on linux")
}
