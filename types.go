package etwin

import (
	"fmt"

	"github.com/google/uuid"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Error(format string, args ...any)
}

// UuidGenerator allocates ids for new users and sessions. It is injected
// everywhere an id is minted so tests can use a deterministic sequence.
type UuidGenerator interface {
	Next() uuid.UUID
}

// Uuid4Generator is the production UuidGenerator: random v4 ids.
type Uuid4Generator struct{}

func (Uuid4Generator) Next() uuid.UUID {
	return uuid.New()
}

// PasswordHasher hashes and verifies canonical-user passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) error
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] ETWIN "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] ETWIN "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] ETWIN "+newline(format), args...)
}

// DefaultLogger returns the stdout fallback logger used when a component is
// constructed without an explicit one.
func DefaultLogger() Logger {
	return defLogger{}
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
