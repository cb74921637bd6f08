package archive_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/eternaltwin/etwin/archive"
	"github.com/eternaltwin/etwin/dinoparc"
	"github.com/eternaltwin/etwin/hammerfest"
	"github.com/eternaltwin/etwin/memory"
	"github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingLogger struct {
	mu       sync.Mutex
	errorMsg []string
}

func (l *recordingLogger) Debug(format string, args ...any) {}
func (l *recordingLogger) Info(format string, args ...any)  {}
func (l *recordingLogger) Error(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errorMsg = append(l.errorMsg, fmt.Sprintf(format, args...))
}

func (l *recordingLogger) errors() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.errorMsg...)
}

func TestRunner_WaitDrainsTasks(t *testing.T) {
	runner := archive.NewRunner()
	done := false
	runner.Go("test", func(ctx context.Context) {
		time.Sleep(5 * time.Millisecond)
		done = true
	})
	runner.Wait()
	assert.True(t, done)
}

func TestRunner_RecoversPanic(t *testing.T) {
	logger := &recordingLogger{}
	runner := archive.NewRunner(archive.WithRunnerLogger(logger))
	runner.Go("exploding", func(ctx context.Context) {
		panic("boom")
	})
	runner.Wait()

	msgs := logger.errors()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "exploding")
	assert.Contains(t, msgs[0], "boom")
}

func hammerfestSession(t *testing.T, client *memory.HammerfestClient) *hammerfest.Session {
	t.Helper()
	session, err := client.CreateSession(context.Background(), hammerfest.Credentials{
		Server: hammerfest.HammerfestFr, Username: "alice", Password: "pw",
	})
	require.NoError(t, err)
	return session
}

func TestHammerfest_SnapshotsAccount(t *testing.T) {
	client := memory.NewHammerfestClient()
	store := memory.NewHammerfestStore()
	ref := hammerfest.UserRef{Server: hammerfest.HammerfestFr, ID: "12"}
	client.CreateUser(ref.Server, ref.ID, "alice", "pw")
	client.SetItems(ref, map[string]uint32{"1000": 2})
	client.SetShop(ref, hammerfest.Shop{Tokens: 5})
	client.SetGodchildren(ref, []hammerfest.Godchild{
		{User: hammerfest.ShortUser{Server: ref.Server, ID: "44", Username: "kid"}, Tokens: 1},
	})

	archive.Hammerfest(context.Background(), client, store, hammerfestSession(t, client), nil)

	require.NotNil(t, store.GetProfile(ref))
	require.NotNil(t, store.GetInventory(ref))
	require.NotNil(t, store.GetShop(ref))
	godchildren := store.GetGodchildren(ref)
	require.NotNil(t, godchildren)
	require.Len(t, godchildren.Godchildren, 1)

	// Godchildren are archived as short users too.
	kid, err := store.GetShortUser(context.Background(), hammerfest.UserRef{Server: ref.Server, ID: "44"})
	require.NoError(t, err)
	require.NotNil(t, kid)
	assert.Equal(t, "kid", kid.Username)
}

// failingHammerfestStore fails inventory touches and passes the rest
// through.
type failingHammerfestStore struct {
	hammerfest.Store
}

func (s *failingHammerfestStore) TouchInventory(ctx context.Context, resp *hammerfest.InventoryResponse) error {
	return errors.New("inventory storage down", errors.CategoryInternal)
}

func TestHammerfest_OneFailureDoesNotStopTheRest(t *testing.T) {
	client := memory.NewHammerfestClient()
	inner := memory.NewHammerfestStore()
	store := &failingHammerfestStore{Store: inner}
	ref := hammerfest.UserRef{Server: hammerfest.HammerfestFr, ID: "12"}
	client.CreateUser(ref.Server, ref.ID, "alice", "pw")

	logger := &recordingLogger{}
	archive.Hammerfest(context.Background(), client, store, hammerfestSession(t, client), logger)

	assert.Nil(t, inner.GetInventory(ref))
	assert.NotNil(t, inner.GetProfile(ref))
	assert.NotNil(t, inner.GetShop(ref))
	assert.NotNil(t, inner.GetGodchildren(ref))
	require.Len(t, logger.errors(), 1)
	assert.Contains(t, logger.errors()[0], "inventory touch failed")
}

func dinoparcRoster(server dinoparc.Server, count int) []dinoparc.Dinoz {
	out := make([]dinoparc.Dinoz, 0, count)
	for i := 0; i < count; i++ {
		name := fmt.Sprintf("dino-%d", i)
		out = append(out, dinoparc.Dinoz{
			Server: server,
			ID:     dinoparc.DinozId(fmt.Sprintf("%d", i+1)),
			Name:   &name,
			Race:   "Moueffe",
			Skin:   "AaAaBb",
			Life:   100,
			Level:  uint16(i + 1),
		})
	}
	return out
}

func TestDinoparc_SnapshotsSmallAccount(t *testing.T) {
	defer archive.SetDinozFetchInterval(time.Millisecond)()

	client := memory.NewDinoparcClient()
	store := memory.NewDinoparcStore()
	ref := dinoparc.UserRef{Server: dinoparc.DinoparcCom, ID: "7"}
	client.CreateUser(ref.Server, ref.ID, "alice", "pw")
	client.SetDinoz(ref, dinoparcRoster(ref.Server, 3))
	client.SetInventory(ref, map[string]uint32{"4": 9})
	client.SetCollection(ref, dinoparc.Collection{RewardIDs: []string{"1"}})

	session, err := client.CreateSession(context.Background(), dinoparc.Credentials{
		Server: ref.Server, Username: "alice", Password: "pw",
	})
	require.NoError(t, err)

	archive.Dinoparc(context.Background(), client, store, session, nil)

	inv := store.GetInventory(ref)
	require.NotNil(t, inv)
	assert.Equal(t, uint32(9), inv.Inventory["4"])
	require.NotNil(t, store.GetCollection(ref))
	for i := 1; i <= 3; i++ {
		assert.NotNil(t, store.GetDinoz(ref.Server, dinoparc.DinozId(fmt.Sprintf("%d", i))))
	}
	// Below the sidebar cap the exchange page is never fetched.
	assert.Zero(t, store.ExchangeCount())
}

func TestDinoparc_EnumeratesLargeAccountViaExchange(t *testing.T) {
	defer archive.SetDinozFetchInterval(time.Microsecond)()

	client := memory.NewDinoparcClient()
	store := memory.NewDinoparcStore()
	ref := dinoparc.UserRef{Server: dinoparc.DinoparcCom, ID: "7"}
	client.CreateUser(ref.Server, ref.ID, "alice", "pw")
	client.CreateUser(ref.Server, "1", "partner", "pw")
	client.SetDinoz(ref, dinoparcRoster(ref.Server, archive.ExchangeWithThreshold+10))

	session, err := client.CreateSession(context.Background(), dinoparc.Credentials{
		Server: ref.Server, Username: "alice", Password: "pw",
	})
	require.NoError(t, err)

	archive.Dinoparc(context.Background(), client, store, session, nil)

	assert.Equal(t, 1, store.ExchangeCount())
	// Dinoz beyond the sidebar cap are reachable only through the
	// exchange listing; they must be archived too.
	last := dinoparc.DinozId(fmt.Sprintf("%d", archive.ExchangeWithThreshold+10))
	assert.NotNil(t, store.GetDinoz(ref.Server, last))
}

// failingDinoparcStore fails collection touches.
type failingDinoparcStore struct {
	dinoparc.Store
}

func (s *failingDinoparcStore) TouchCollection(ctx context.Context, resp *dinoparc.CollectionResponse) error {
	return errors.New("collection storage down", errors.CategoryInternal)
}

func TestDinoparc_OneFailureDoesNotStopTheRest(t *testing.T) {
	defer archive.SetDinozFetchInterval(time.Millisecond)()

	client := memory.NewDinoparcClient()
	inner := memory.NewDinoparcStore()
	store := &failingDinoparcStore{Store: inner}
	ref := dinoparc.UserRef{Server: dinoparc.DinoparcCom, ID: "7"}
	client.CreateUser(ref.Server, ref.ID, "alice", "pw")
	client.SetDinoz(ref, dinoparcRoster(ref.Server, 2))

	session, err := client.CreateSession(context.Background(), dinoparc.Credentials{
		Server: ref.Server, Username: "alice", Password: "pw",
	})
	require.NoError(t, err)

	logger := &recordingLogger{}
	archive.Dinoparc(context.Background(), client, store, session, logger)

	assert.Nil(t, inner.GetCollection(ref))
	assert.NotNil(t, inner.GetInventory(ref))
	assert.NotNil(t, inner.GetDinoz(ref.Server, "1"))
	assert.NotNil(t, inner.GetDinoz(ref.Server, "2"))
	require.Len(t, logger.errors(), 1)
	assert.Contains(t, logger.errors()[0], "collection touch failed")
}

func TestDinoparc_CancelledContextAborts(t *testing.T) {
	client := memory.NewDinoparcClient()
	store := memory.NewDinoparcStore()
	ref := dinoparc.UserRef{Server: dinoparc.DinoparcCom, ID: "7"}
	client.CreateUser(ref.Server, ref.ID, "alice", "pw")
	client.SetDinoz(ref, dinoparcRoster(ref.Server, 5))

	session, err := client.CreateSession(context.Background(), dinoparc.Credentials{
		Server: ref.Server, Username: "alice", Password: "pw",
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	logger := &recordingLogger{}
	archive.Dinoparc(ctx, client, store, session, logger)

	// The paced dinoz loop stops on a dead context instead of spinning.
	assert.NotEmpty(t, logger.errors())
}
