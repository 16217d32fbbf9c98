// Package repository holds the process-wide shared state services (sessions,
// subscribers) and the optional MySQL-backed stores (allow-list, outcome
// history).  All mutation of shared state goes through the owning store's
// methods; nothing in this package is exported as a bare map.
package repository

import "errors"

// ErrUnavailable is returned when an optional backing store (MySQL, Redis)
// is not configured or cannot be reached.  Callers treat it as a degraded
// mode, not a request failure.
var ErrUnavailable = errors.New("backing store unavailable")
