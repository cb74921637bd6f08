// Package memory provides in-memory implementations of every store and
// client contract. They back the test suite and small single-node
// deployments; the repository package holds the SQL-backed variants.
package memory

import "time"

// nowFn lets tests freeze time. Stores default to time.Now.
type nowFn func() time.Time
