// Package handlers implements the HTTP API surface.
package handlers

import (
	"formflow/backend/internal/engine"
	"formflow/backend/internal/recorder"
)

var (
	eng        *engine.Engine
	recordings *recorder.SessionManager
)

// Init wires the shared services into the handler package. Must run
// before routes are served.
func Init(e *engine.Engine) {
	eng = e
	recordings = recorder.NewSessionManager()
}
