// Package middleware wraps slot stores with cross-cutting persistence behavior.
package middleware

import "github.com/aretw0/teller/pkg/ports"

// Middleware allows wrapping a SlotStore to add behavior.
type Middleware func(ports.SlotStore) ports.SlotStore

// Chain applies middlewares so that the first one is the outermost.
func Chain(store ports.SlotStore, mws ...Middleware) ports.SlotStore {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}
