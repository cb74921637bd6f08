package memory

import (
	"fmt"
	"sync"

	etwin "github.com/eternaltwin/etwin"
	"github.com/google/uuid"
)

// UuidGenerator allocates sequential ids so tests get stable values. The
// first id ends in 1.
type UuidGenerator struct {
	mu   sync.Mutex
	next uint64
}

func NewUuidGenerator() *UuidGenerator {
	return &UuidGenerator{}
}

var _ etwin.UuidGenerator = (*UuidGenerator)(nil)

func (g *UuidGenerator) Next() uuid.UUID {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	return uuid.MustParse(fmt.Sprintf("00000000-0000-4000-8000-%012x", g.next))
}
