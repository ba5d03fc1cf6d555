package registry

import "github.com/qabel/blockserver/pkg/auth"

// NewFuncs is a map containing all the registered auth resolver new
// functions.
var NewFuncs = map[string]auth.NewFunc{}

// Register registers a new auth resolver new function. Not safe for
// concurrent use; safe for use from package init.
func Register(name string, f auth.NewFunc) {
	NewFuncs[name] = f
}
