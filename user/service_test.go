package user_test

import (
	"context"
	"testing"
	"time"

	etwin "github.com/eternaltwin/etwin"
	"github.com/eternaltwin/etwin/archive"
	"github.com/eternaltwin/etwin/dinoparc"
	"github.com/eternaltwin/etwin/hammerfest"
	"github.com/eternaltwin/etwin/link"
	"github.com/eternaltwin/etwin/memory"
	"github.com/eternaltwin/etwin/token"
	"github.com/eternaltwin/etwin/twinoid"
	"github.com/eternaltwin/etwin/user"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type userFixture struct {
	users      *memory.UserStore
	uuids      *memory.UuidGenerator
	links      *link.Service
	runner     *archive.Runner
	dparc      *memory.DinoparcClient
	dparcStore *memory.DinoparcStore
	hfest      *memory.HammerfestClient
	hfestStore *memory.HammerfestStore
	tid        *memory.TwinoidClient
	tidStore   *memory.TwinoidStore
	service    *user.Service
}

func newUserFixture(t *testing.T) *userFixture {
	t.Helper()
	f := &userFixture{
		users:      memory.NewUserStore(),
		uuids:      memory.NewUuidGenerator(),
		runner:     archive.NewRunner(),
		dparc:      memory.NewDinoparcClient(),
		dparcStore: memory.NewDinoparcStore(),
		hfest:      memory.NewHammerfestClient(),
		hfestStore: memory.NewHammerfestStore(),
		tid:        memory.NewTwinoidClient(),
		tidStore:   memory.NewTwinoidStore(),
	}
	f.links = link.NewService(memory.NewLinkStore(), f.users, f.dparcStore, f.hfestStore, f.tidStore)

	service, err := user.NewService(user.ServiceConfig{
		Users:            f.users,
		Links:            f.links,
		Tokens:           memory.NewTokenService(),
		Password:         etwin.NewBcryptHasher(4),
		Runner:           f.runner,
		DinoparcClient:   f.dparc,
		DinoparcStore:    f.dparcStore,
		HammerfestClient: f.hfest,
		HammerfestStore:  f.hfestStore,
		TwinoidClient:    f.tid,
		TwinoidStore:     f.tidStore,
	})
	require.NoError(t, err)
	f.service = service
	return f
}

func (f *userFixture) createUser(t *testing.T, displayName string) *etwin.User {
	t.Helper()
	u, err := f.users.CreateUser(context.Background(), etwin.CreateUserOptions{
		ID:          f.uuids.Next(),
		DisplayName: displayName,
	})
	require.NoError(t, err)
	return u
}

func TestService_LinkToDinoparcWithCredentials(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()
	alice := f.createUser(t, "Alice")
	f.dparc.CreateUser(dinoparc.DinoparcCom, "55", "alice_dp", "pw")

	acx := etwin.UserAuth(alice.Short(), false)
	linked, err := f.service.LinkToDinoparcWithCredentials(ctx, acx, user.LinkToDinoparcWithCredentialsOptions{
		UserID:      alice.ID,
		Credentials: dinoparc.Credentials{Server: dinoparc.DinoparcCom, Username: "alice_dp", Password: "pw"},
	})
	require.NoError(t, err)
	require.NotNil(t, linked.Current)
	assert.Equal(t, dinoparc.UserId("55"), linked.Current.User.ID)
	assert.Equal(t, alice.ID, linked.Current.Link.By.ID)
	f.runner.Wait()
}

func TestService_LinkToDinoparcWithCredentials_BadPassword(t *testing.T) {
	f := newUserFixture(t)
	alice := f.createUser(t, "Alice")
	f.dparc.CreateUser(dinoparc.DinoparcCom, "55", "alice_dp", "pw")

	acx := etwin.UserAuth(alice.Short(), false)
	_, err := f.service.LinkToDinoparcWithCredentials(context.Background(), acx, user.LinkToDinoparcWithCredentialsOptions{
		UserID:      alice.ID,
		Credentials: dinoparc.Credentials{Server: dinoparc.DinoparcCom, Username: "alice_dp", Password: "wrong"},
	})
	assert.ErrorIs(t, err, etwin.ErrRemoteAuthFailed)
}

func TestService_AuthorizationMatrix(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()
	alice := f.createUser(t, "Alice")
	bob := f.createUser(t, "Bob")
	f.dparc.CreateUser(dinoparc.DinoparcCom, "55", "alice_dp", "pw")

	opts := user.LinkToDinoparcWithCredentialsOptions{
		UserID:      alice.ID,
		Credentials: dinoparc.Credentials{Server: dinoparc.DinoparcCom, Username: "alice_dp", Password: "pw"},
	}

	_, err := f.service.LinkToDinoparcWithCredentials(ctx, etwin.GuestAuth(), opts)
	assert.ErrorIs(t, err, etwin.ErrUnauthorized)

	_, err = f.service.LinkToDinoparcWithCredentials(ctx, etwin.UserAuth(bob.Short(), false), opts)
	assert.ErrorIs(t, err, etwin.ErrForbidden)

	// Administrators do not bypass self-service credential linking either:
	// the credentials prove ownership of the remote account, not of the
	// canonical one.
	_, err = f.service.LinkToDinoparcWithCredentials(ctx, etwin.UserAuth(bob.Short(), true), opts)
	assert.ErrorIs(t, err, etwin.ErrForbidden)

	_, err = f.service.LinkToDinoparcWithCredentials(ctx, etwin.UserAuth(alice.Short(), false), opts)
	assert.NoError(t, err)
	f.runner.Wait()
}

func TestService_LinkWithRefRequiresAdmin(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()
	alice := f.createUser(t, "Alice")
	admin := f.createUser(t, "Admin")
	_, err := f.dparcStore.TouchShortUser(ctx, dinoparc.ShortUser{
		Server: dinoparc.DinoparcCom, ID: "55", Username: "alice_dp",
	})
	require.NoError(t, err)

	opts := user.LinkToDinoparcWithRefOptions{
		UserID: alice.ID,
		Ref:    dinoparc.UserRef{Server: dinoparc.DinoparcCom, ID: "55"},
	}

	_, err = f.service.LinkToDinoparcWithRef(ctx, etwin.GuestAuth(), opts)
	assert.ErrorIs(t, err, etwin.ErrUnauthorized)

	_, err = f.service.LinkToDinoparcWithRef(ctx, etwin.UserAuth(alice.Short(), false), opts)
	assert.ErrorIs(t, err, etwin.ErrForbidden)

	linked, err := f.service.LinkToDinoparcWithRef(ctx, etwin.UserAuth(admin.Short(), true), opts)
	require.NoError(t, err)
	require.NotNil(t, linked.Current)
	// The administrator, not the target user, is recorded as the actor.
	assert.Equal(t, admin.ID, linked.Current.Link.By.ID)
}

func TestService_LinkToDinoparcWithRef_UnknownRemote(t *testing.T) {
	f := newUserFixture(t)
	alice := f.createUser(t, "Alice")
	admin := f.createUser(t, "Admin")

	_, err := f.service.LinkToDinoparcWithRef(context.Background(), etwin.UserAuth(admin.Short(), true), user.LinkToDinoparcWithRefOptions{
		UserID: alice.ID,
		Ref:    dinoparc.UserRef{Server: dinoparc.DinoparcCom, ID: "999"},
	})
	assert.ErrorIs(t, err, user.ErrInvalidDinoparcRef)
}

func TestService_LinkToHammerfestWithRef_FetchesProfile(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()
	alice := f.createUser(t, "Alice")
	admin := f.createUser(t, "Admin")
	f.hfest.CreateUser(hammerfest.HammerfestFr, "42", "alice_hf", "pw")

	linked, err := f.service.LinkToHammerfestWithRef(ctx, etwin.UserAuth(admin.Short(), true), user.LinkToHammerfestWithRefOptions{
		UserID: alice.ID,
		Ref:    hammerfest.UserRef{Server: hammerfest.HammerfestFr, ID: "42"},
	})
	require.NoError(t, err)
	require.NotNil(t, linked.Current)
	assert.Equal(t, "alice_hf", linked.Current.User.Username)

	_, err = f.service.LinkToHammerfestWithRef(ctx, etwin.UserAuth(admin.Short(), true), user.LinkToHammerfestWithRefOptions{
		UserID: alice.ID,
		Ref:    hammerfest.UserRef{Server: hammerfest.HammerfestFr, ID: "999"},
	})
	assert.ErrorIs(t, err, user.ErrInvalidHammerfestRef)
}

func TestService_LinkToHammerfestWithSessionKey(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()
	alice := f.createUser(t, "Alice")
	ref := hammerfest.UserRef{Server: hammerfest.HammerfestFr, ID: "42"}
	f.hfest.CreateUser(ref.Server, ref.ID, "alice_hf", "pw")
	key := hammerfest.SessionKey("abcdefghij0123456789abcdef")
	f.hfest.RegisterSession(ref, key)

	linked, err := f.service.LinkToHammerfestWithSessionKey(ctx, etwin.UserAuth(alice.Short(), false), user.LinkToHammerfestWithSessionKeyOptions{
		UserID: alice.ID, Server: ref.Server, SessionKey: key,
	})
	require.NoError(t, err)
	require.NotNil(t, linked.Current)
	f.runner.Wait()

	_, err = f.service.LinkToHammerfestWithSessionKey(ctx, etwin.UserAuth(alice.Short(), false), user.LinkToHammerfestWithSessionKeyOptions{
		UserID: alice.ID, Server: ref.Server, SessionKey: "00000000000000000000000000",
	})
	assert.ErrorIs(t, err, etwin.ErrRemoteAuthFailed)
}

func TestService_LinkToTwinoidWithOauth(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()
	alice := f.createUser(t, "Alice")
	f.tid.RegisterToken("tok", twinoid.User{ID: "777", DisplayName: "AliceTid"})

	linked, err := f.service.LinkToTwinoidWithOauth(ctx, etwin.UserAuth(alice.Short(), false), user.LinkToTwinoidWithOauthOptions{
		UserID: alice.ID,
		Oauth:  tokenOauth("tok", "refresh"),
	})
	require.NoError(t, err)
	require.NotNil(t, linked.Current)
	assert.Equal(t, twinoid.UserId("777"), linked.Current.User.ID)
}

func tokenOauth(access twinoid.AccessToken, refresh string) token.TouchTwinoidOauthOptions {
	return token.TouchTwinoidOauthOptions{
		AccessToken:    access,
		RefreshToken:   refresh,
		ExpirationTime: time.Now().Add(time.Hour),
	}
}

func TestService_UnlinkAuthorization(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()
	alice := f.createUser(t, "Alice")
	bob := f.createUser(t, "Bob")
	admin := f.createUser(t, "Admin")
	f.dparc.CreateUser(dinoparc.DinoparcCom, "55", "alice_dp", "pw")

	_, err := f.service.LinkToDinoparcWithCredentials(ctx, etwin.UserAuth(alice.Short(), false), user.LinkToDinoparcWithCredentialsOptions{
		UserID:      alice.ID,
		Credentials: dinoparc.Credentials{Server: dinoparc.DinoparcCom, Username: "alice_dp", Password: "pw"},
	})
	require.NoError(t, err)
	f.runner.Wait()

	opts := user.UnlinkFromDinoparcOptions{
		UserID: alice.ID,
		Ref:    dinoparc.UserRef{Server: dinoparc.DinoparcCom, ID: "55"},
	}

	_, err = f.service.UnlinkFromDinoparc(ctx, etwin.GuestAuth(), opts)
	assert.ErrorIs(t, err, etwin.ErrUnauthorized)

	_, err = f.service.UnlinkFromDinoparc(ctx, etwin.UserAuth(bob.Short(), false), opts)
	assert.ErrorIs(t, err, etwin.ErrForbidden)

	// An administrator may unlink on behalf of the target user.
	unlinked, err := f.service.UnlinkFromDinoparc(ctx, etwin.UserAuth(admin.Short(), true), opts)
	require.NoError(t, err)
	assert.Nil(t, unlinked.Current)
	require.Len(t, unlinked.Old, 1)
	assert.Equal(t, admin.ID, unlinked.Old[0].Unlink.By.ID)
}

func TestService_UpdateUser(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()
	alice := f.createUser(t, "Alice")

	displayName := "Alicia"
	username := "alicia"
	password := "s3cret"
	view, err := f.service.UpdateUser(ctx, etwin.UserAuth(alice.Short(), false), user.UpdateUserOptions{
		UserID: alice.ID,
		Patch: etwin.UpdateUserPatch{
			DisplayName: &displayName,
			Username:    &username,
			Password:    &password,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Alicia", view.User.DisplayName)
	assert.Equal(t, "alicia", view.User.Username)
	require.NotNil(t, view.User.UpdatedAt)

	// The password was hashed, not stored raw.
	stored, err := f.users.GetUserWithPassword(ctx, alice.Ref())
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.NotEqual(t, password, stored.PasswordHash)
	assert.NoError(t, etwin.NewBcryptHasher(4).Verify(password, stored.PasswordHash))
}

func TestService_UpdateUser_Authorization(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()
	alice := f.createUser(t, "Alice")
	bob := f.createUser(t, "Bob")

	displayName := "Eve"
	opts := user.UpdateUserOptions{
		UserID: alice.ID,
		Patch:  etwin.UpdateUserPatch{DisplayName: &displayName},
	}

	_, err := f.service.UpdateUser(ctx, etwin.GuestAuth(), opts)
	assert.ErrorIs(t, err, etwin.ErrUnauthorized)

	_, err = f.service.UpdateUser(ctx, etwin.UserAuth(bob.Short(), false), opts)
	assert.ErrorIs(t, err, etwin.ErrForbidden)

	_, err = f.service.UpdateUser(ctx, etwin.UserAuth(bob.Short(), true), opts)
	assert.NoError(t, err)
}

func TestService_UpdateUser_InvalidPatch(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()
	alice := f.createUser(t, "Alice")

	bad := "!!!"
	_, err := f.service.UpdateUser(ctx, etwin.UserAuth(alice.Short(), false), user.UpdateUserOptions{
		UserID: alice.ID,
		Patch:  etwin.UpdateUserPatch{DisplayName: &bad},
	})
	assert.Error(t, err)

	badUsername := "Not-A-Username"
	_, err = f.service.UpdateUser(ctx, etwin.UserAuth(alice.Short(), false), user.UpdateUserOptions{
		UserID: alice.ID,
		Patch:  etwin.UpdateUserPatch{Username: &badUsername},
	})
	assert.Error(t, err)
}

func TestService_GetUserView(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()
	alice := f.createUser(t, "Alice")
	f.dparc.CreateUser(dinoparc.DinoparcCom, "55", "alice_dp", "pw")

	_, err := f.service.LinkToDinoparcWithCredentials(ctx, etwin.UserAuth(alice.Short(), false), user.LinkToDinoparcWithCredentialsOptions{
		UserID:      alice.ID,
		Credentials: dinoparc.Credentials{Server: dinoparc.DinoparcCom, Username: "alice_dp", Password: "pw"},
	})
	require.NoError(t, err)
	f.runner.Wait()

	view, err := f.service.GetUserView(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", view.User.DisplayName)
	require.NotNil(t, view.Links.DinoparcCom.Current)

	_, err = f.service.GetUserView(ctx, f.uuids.Next())
	assert.ErrorIs(t, err, etwin.ErrUserNotFound)
}
