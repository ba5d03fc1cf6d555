// Package registry lets object store drivers register themselves by name at
// init time so the gateway can pick one by configuration alone.
package registry

import "github.com/qabel/blockserver/pkg/store"

// NewFuncs is a map containing all the registered driver new functions.
var NewFuncs = map[string]store.NewFunc{}

// Register registers a new driver new function. Not safe for concurrent use;
// safe for use from package init.
func Register(name string, f store.NewFunc) {
	NewFuncs[name] = f
}
