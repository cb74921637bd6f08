package repository

import (
	"context"
	"database/sql"
	"testing"

	etwin "github.com/eternaltwin/etwin"
	"github.com/eternaltwin/etwin/dinoparc"
	"github.com/eternaltwin/etwin/hammerfest"
	"github.com/eternaltwin/etwin/link"
	"github.com/eternaltwin/etwin/twinoid"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func setupDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { db.Close() })

	require.NoError(t, Migrate(context.Background(), db))
	return db
}

func newUserID() uuid.UUID {
	return uuid.New()
}

func TestUserStore_FirstUserIsAdministrator(t *testing.T) {
	db := setupDB(t)
	store := NewUserStore(db)
	ctx := context.Background()

	first, err := store.CreateUser(ctx, etwin.CreateUserOptions{
		ID:          newUserID(),
		DisplayName: "alice",
		Username:    "alice",
	})
	require.NoError(t, err)
	assert.True(t, first.IsAdministrator)

	second, err := store.CreateUser(ctx, etwin.CreateUserOptions{
		ID:          newUserID(),
		DisplayName: "bob",
	})
	require.NoError(t, err)
	assert.False(t, second.IsAdministrator)
}

func TestUserStore_Lookups(t *testing.T) {
	db := setupDB(t)
	store := NewUserStore(db)
	ctx := context.Background()

	created, err := store.CreateUser(ctx, etwin.CreateUserOptions{
		ID:           newUserID(),
		DisplayName:  "alice",
		Username:     "alice",
		PasswordHash: "hash",
	})
	require.NoError(t, err)

	user, err := store.GetUser(ctx, created.Ref())
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "alice", user.DisplayName)
	assert.False(t, user.CreatedAt.IsZero())

	short, err := store.GetShortUser(ctx, created.Ref())
	require.NoError(t, err)
	require.NotNil(t, short)
	assert.Equal(t, created.ID, short.ID)

	byName, err := store.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, byName)
	assert.Equal(t, "hash", byName.PasswordHash)

	missing, err := store.GetUser(ctx, etwin.UserRef{ID: newUserID()})
	require.NoError(t, err)
	assert.Nil(t, missing)

	noName, err := store.GetUserByUsername(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, noName)
}

func TestUserStore_UsernameConflict(t *testing.T) {
	db := setupDB(t)
	store := NewUserStore(db)
	ctx := context.Background()

	_, err := store.CreateUser(ctx, etwin.CreateUserOptions{
		ID:          newUserID(),
		DisplayName: "alice",
		Username:    "alice",
	})
	require.NoError(t, err)

	_, err = store.CreateUser(ctx, etwin.CreateUserOptions{
		ID:          newUserID(),
		DisplayName: "impostor",
		Username:    "alice",
	})
	assert.ErrorIs(t, err, ErrUsernameTaken)

	bob, err := store.CreateUser(ctx, etwin.CreateUserOptions{
		ID:          newUserID(),
		DisplayName: "bob",
		Username:    "bob",
	})
	require.NoError(t, err)

	taken := "alice"
	_, err = store.UpdateUser(ctx, etwin.UpdateStoreUserOptions{
		Ref:      bob.Ref(),
		Username: &taken,
	})
	assert.ErrorIs(t, err, ErrUsernameTaken)
}

func TestUserStore_Update(t *testing.T) {
	db := setupDB(t)
	store := NewUserStore(db)
	ctx := context.Background()

	created, err := store.CreateUser(ctx, etwin.CreateUserOptions{
		ID:          newUserID(),
		DisplayName: "alice",
		Username:    "alice",
	})
	require.NoError(t, err)

	name := "Alice the Great"
	hash := "new-hash"
	updated, err := store.UpdateUser(ctx, etwin.UpdateStoreUserOptions{
		Ref:          created.Ref(),
		DisplayName:  &name,
		PasswordHash: &hash,
	})
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, "Alice the Great", updated.DisplayName)
	require.NotNil(t, updated.UpdatedAt)

	full, err := store.GetUserWithPassword(ctx, created.Ref())
	require.NoError(t, err)
	assert.Equal(t, "new-hash", full.PasswordHash)

	missing, err := store.UpdateUser(ctx, etwin.UpdateStoreUserOptions{
		Ref:         etwin.UserRef{ID: newUserID()},
		DisplayName: &name,
	})
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestLinkStore_TouchAndViews(t *testing.T) {
	db := setupDB(t)
	store := NewLinkStore(db)
	ctx := context.Background()

	alice := etwin.UserRef{ID: newUserID()}
	remote := dinoparc.UserRef{Server: dinoparc.DinoparcCom, ID: "123"}

	view, err := store.TouchDinoparcLink(ctx, link.TouchLinkOptions[dinoparc.UserRef]{
		Etwin:    alice,
		Remote:   remote,
		LinkedBy: alice,
	})
	require.NoError(t, err)
	require.NotNil(t, view.Current)
	assert.Equal(t, remote, view.Current.Remote)
	assert.Equal(t, alice, view.Current.Link.By)
	assert.Empty(t, view.Old)

	all, err := store.GetLinksFromEtwin(ctx, alice)
	require.NoError(t, err)
	require.NotNil(t, all.DinoparcCom.Current)
	assert.Nil(t, all.EnDinoparcCom.Current)
	assert.Nil(t, all.Twinoid.Current)

	reverse, err := store.GetLinkFromDinoparc(ctx, remote)
	require.NoError(t, err)
	require.NotNil(t, reverse.Current)
	assert.Equal(t, alice, reverse.Current.Etwin)

	unknown, err := store.GetLinkFromDinoparc(ctx, dinoparc.UserRef{Server: dinoparc.DinoparcCom, ID: "999"})
	require.NoError(t, err)
	assert.Nil(t, unknown.Current)
}

func TestLinkStore_TouchConflicts(t *testing.T) {
	db := setupDB(t)
	store := NewLinkStore(db)
	ctx := context.Background()

	alice := etwin.UserRef{ID: newUserID()}
	bob := etwin.UserRef{ID: newUserID()}
	remote := hammerfest.UserRef{Server: hammerfest.HammerfestFr, ID: "123"}

	_, err := store.TouchHammerfestLink(ctx, link.TouchLinkOptions[hammerfest.UserRef]{
		Etwin: alice, Remote: remote, LinkedBy: alice,
	})
	require.NoError(t, err)

	// Same pair again: idempotent, history unchanged.
	again, err := store.TouchHammerfestLink(ctx, link.TouchLinkOptions[hammerfest.UserRef]{
		Etwin: alice, Remote: remote, LinkedBy: alice,
	})
	require.NoError(t, err)
	require.NotNil(t, again.Current)
	assert.Empty(t, again.Old)

	_, err = store.TouchHammerfestLink(ctx, link.TouchLinkOptions[hammerfest.UserRef]{
		Etwin: bob, Remote: remote, LinkedBy: bob,
	})
	assert.ErrorIs(t, err, link.ErrRemoteAccountInUse)

	other := hammerfest.UserRef{Server: hammerfest.HammerfestFr, ID: "456"}
	_, err = store.TouchHammerfestLink(ctx, link.TouchLinkOptions[hammerfest.UserRef]{
		Etwin: alice, Remote: other, LinkedBy: alice,
	})
	assert.ErrorIs(t, err, link.ErrUserAlreadyLinked)

	// A different realm of the same family stays independent.
	net := hammerfest.UserRef{Server: hammerfest.HfestNet, ID: "123"}
	_, err = store.TouchHammerfestLink(ctx, link.TouchLinkOptions[hammerfest.UserRef]{
		Etwin: alice, Remote: net, LinkedBy: alice,
	})
	require.NoError(t, err)
}

func TestLinkStore_DeleteClosesPeriod(t *testing.T) {
	db := setupDB(t)
	store := NewLinkStore(db)
	ctx := context.Background()

	alice := etwin.UserRef{ID: newUserID()}
	admin := etwin.UserRef{ID: newUserID()}
	remote := twinoid.UserRef{ID: "42"}

	_, err := store.TouchTwinoidLink(ctx, link.TouchLinkOptions[twinoid.UserRef]{
		Etwin: alice, Remote: remote, LinkedBy: alice,
	})
	require.NoError(t, err)

	view, err := store.DeleteTwinoidLink(ctx, link.DeleteLinkOptions[twinoid.UserRef]{
		Etwin: alice, Remote: remote, UnlinkedBy: admin,
	})
	require.NoError(t, err)
	assert.Nil(t, view.Current)
	require.Len(t, view.Old, 1)
	require.NotNil(t, view.Old[0].Unlink)
	assert.Equal(t, admin, view.Old[0].Unlink.By)

	// Deleting again is a no-op.
	view, err = store.DeleteTwinoidLink(ctx, link.DeleteLinkOptions[twinoid.UserRef]{
		Etwin: alice, Remote: remote, UnlinkedBy: alice,
	})
	require.NoError(t, err)
	assert.Nil(t, view.Current)
	assert.Len(t, view.Old, 1)

	// Relink then name the wrong remote: mismatch.
	_, err = store.TouchTwinoidLink(ctx, link.TouchLinkOptions[twinoid.UserRef]{
		Etwin: alice, Remote: remote, LinkedBy: alice,
	})
	require.NoError(t, err)
	_, err = store.DeleteTwinoidLink(ctx, link.DeleteLinkOptions[twinoid.UserRef]{
		Etwin: alice, Remote: twinoid.UserRef{ID: "99"}, UnlinkedBy: alice,
	})
	assert.ErrorIs(t, err, link.ErrLinkMismatch)
}

func TestLinkStore_RelinkKeepsHistory(t *testing.T) {
	db := setupDB(t)
	store := NewLinkStore(db)
	ctx := context.Background()

	alice := etwin.UserRef{ID: newUserID()}
	remote := dinoparc.UserRef{Server: dinoparc.EnDinoparcCom, ID: "7"}

	_, err := store.TouchDinoparcLink(ctx, link.TouchLinkOptions[dinoparc.UserRef]{
		Etwin: alice, Remote: remote, LinkedBy: alice,
	})
	require.NoError(t, err)
	_, err = store.DeleteDinoparcLink(ctx, link.DeleteLinkOptions[dinoparc.UserRef]{
		Etwin: alice, Remote: remote, UnlinkedBy: alice,
	})
	require.NoError(t, err)

	view, err := store.TouchDinoparcLink(ctx, link.TouchLinkOptions[dinoparc.UserRef]{
		Etwin: alice, Remote: remote, LinkedBy: alice,
	})
	require.NoError(t, err)
	require.NotNil(t, view.Current)
	require.Len(t, view.Old, 1)
	require.NotNil(t, view.Old[0].Unlink)
}

func TestDinoparcStore_TouchShortUserUpsert(t *testing.T) {
	db := setupDB(t)
	store := NewDinoparcStore(db)
	ctx := context.Background()

	short := dinoparc.ShortUser{Server: dinoparc.DinoparcCom, ID: "1", Username: "alice"}
	archived, err := store.TouchShortUser(ctx, short)
	require.NoError(t, err)
	assert.False(t, archived.ArchivedAt.IsZero())

	short.Username = "alice_renamed"
	_, err = store.TouchShortUser(ctx, short)
	require.NoError(t, err)

	got, err := store.GetShortUser(ctx, short.Ref())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "alice_renamed", got.Username)

	missing, err := store.GetShortUser(ctx, dinoparc.UserRef{Server: dinoparc.DinoparcCom, ID: "404"})
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestDinoparcStore_SnapshotsAreAppendOnly(t *testing.T) {
	db := setupDB(t)
	store := NewDinoparcStore(db)
	ctx := context.Background()

	session := dinoparc.SessionUser{
		User:  dinoparc.ShortUser{Server: dinoparc.DinoparcCom, ID: "1", Username: "alice"},
		Coins: 100,
	}
	resp := &dinoparc.InventoryResponse{
		SessionUser: session,
		Inventory:   map[string]uint32{"4": 10},
	}
	require.NoError(t, store.TouchInventory(ctx, resp))
	require.NoError(t, store.TouchInventory(ctx, resp))

	count, err := db.NewSelect().
		Model((*SnapshotModel)(nil)).
		Where("service = ?", serviceDinoparc).
		Where("kind = ?", "inventory").
		Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestHammerfestStore_GodchildrenArchiveUsers(t *testing.T) {
	db := setupDB(t)
	store := NewHammerfestStore(db)
	ctx := context.Background()

	owner := hammerfest.ShortUser{Server: hammerfest.HammerfestFr, ID: "1", Username: "alice"}
	child := hammerfest.ShortUser{Server: hammerfest.HammerfestFr, ID: "2", Username: "bob"}
	resp := &hammerfest.GodchildrenResponse{
		Session:     hammerfest.Session{Key: "aaaaaaaaaaaaaaaaaaaaaaaaaa", User: owner},
		Godchildren: []hammerfest.Godchild{{User: child, Tokens: 5}},
	}
	require.NoError(t, store.TouchGodchildren(ctx, resp))

	got, err := store.GetShortUser(ctx, child.Ref())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "bob", got.Username)
}

func TestTwinoidStore_Upsert(t *testing.T) {
	db := setupDB(t)
	store := NewTwinoidStore(db)
	ctx := context.Background()

	short := twinoid.ShortUser{ID: "42", DisplayName: "alice"}
	_, err := store.TouchShortUser(ctx, short)
	require.NoError(t, err)

	short.DisplayName = "alice_renamed"
	_, err = store.TouchShortUser(ctx, short)
	require.NoError(t, err)

	got, err := store.GetShortUser(ctx, twinoid.UserRef{ID: "42"})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "alice_renamed", got.DisplayName)

	missing, err := store.GetShortUser(ctx, twinoid.UserRef{ID: "404"})
	require.NoError(t, err)
	assert.Nil(t, missing)
}
