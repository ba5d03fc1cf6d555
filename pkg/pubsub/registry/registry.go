package registry

import "github.com/qabel/blockserver/pkg/pubsub"

// NewFuncs is a map containing all the registered pub/sub bus new functions.
var NewFuncs = map[string]pubsub.NewFunc{}

// Register registers a new pub/sub bus new function. Not safe for concurrent
// use; safe for use from package init.
func Register(name string, f pubsub.NewFunc) {
	NewFuncs[name] = f
}
