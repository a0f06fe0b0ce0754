package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Session stores and gateway adapters
// return these (optionally wrapped) so the orchestrator can translate them into
// domain errors:
//   - ErrNotFound: session or identity record does not exist
//   - ErrConflict: concurrent writer won the compare-and-set
//   - ErrExpired: session outlived its TTL
//   - ErrUnavailable: backend temporarily unreachable
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrExpired     = errors.New("expired")
	ErrUnavailable = errors.New("unavailable")
)
