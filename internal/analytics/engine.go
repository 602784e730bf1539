// Package analytics implements the Analytics Engine (spec §4.7): trend
// computation across a sliding window of parent runs, classification
// (flaky / regression / new-failure / always-failing/passing), and the
// per-module, all-modules, priority, exclude-flaky and bug-impact
// aggregations the HTTP Surface serves.
package analytics

import (
	"github.com/go-logr/logr"

	"github.com/jordigilh/regtrack/internal/store"
)

// Engine is the Analytics Engine (C7). It holds no state of its own;
// every computation reads fresh from the Store within the caller's
// request-scoped transaction.
type Engine struct {
	store *store.Store
	log   logr.Logger
}

// New builds an Engine.
func New(s *store.Store, log logr.Logger) *Engine {
	return &Engine{store: s, log: log}
}
