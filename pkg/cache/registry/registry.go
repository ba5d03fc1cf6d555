// Package registry lets metadata cache implementations register themselves
// by name at init time so the gateway can pick one by configuration alone.
package registry

import "github.com/qabel/blockserver/pkg/cache"

// NewFuncs is a map containing all the registered cache new functions.
var NewFuncs = map[string]cache.NewFunc{}

// Register registers a new cache new function. Not safe for concurrent use;
// safe for use from package init.
func Register(name string, f cache.NewFunc) {
	NewFuncs[name] = f
}
