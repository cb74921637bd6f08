package etwin

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestValidateDisplayName(t *testing.T) {
	valid := []string{"Alice", "alice dp", "Aragorn_42", "Éowyn", "a"}
	for _, name := range valid {
		assert.NoError(t, ValidateDisplayName(name), name)
	}

	invalid := []string{"", "has!bang", "semi;colon", "tab\tname", strings.Repeat("a", 80)}
	for _, name := range invalid {
		assert.Error(t, ValidateDisplayName(name), name)
	}
}

func TestValidateUsername(t *testing.T) {
	valid := []string{"alice", "a", "bob_42", "x0"}
	for _, name := range valid {
		assert.NoError(t, ValidateUsername(name), name)
	}

	invalid := []string{"", "Alice", "0alice", "_alice", "al-ice", "name with spaces"}
	for _, name := range invalid {
		assert.Error(t, ValidateUsername(name), name)
	}
}

func TestAuthContext(t *testing.T) {
	aliceID := uuid.New()
	alice := ShortUser{ID: aliceID, DisplayName: "Alice"}

	guest := GuestAuth()
	assert.True(t, guest.IsGuest())
	assert.False(t, guest.IsAdmin())
	assert.False(t, guest.CanActAs(aliceID))

	user := UserAuth(alice, false)
	assert.False(t, user.IsGuest())
	assert.False(t, user.IsAdmin())
	assert.True(t, user.Is(aliceID))
	assert.True(t, user.CanActAs(aliceID))
	assert.False(t, user.CanActAs(uuid.New()))
	assert.Equal(t, aliceID, user.Actor().ID)

	admin := UserAuth(alice, true)
	assert.True(t, admin.IsAdmin())
	assert.True(t, admin.CanActAs(uuid.New()))

	system := SystemAuth()
	assert.False(t, system.IsGuest())
	assert.True(t, system.IsAdmin())
	assert.True(t, system.CanActAs(uuid.New()))
	assert.Equal(t, uuid.Nil, system.Actor().ID)
}

func TestBcryptHasher(t *testing.T) {
	hasher := NewBcryptHasher(4)

	hash, err := hasher.Hash("hunter2")
	assert.NoError(t, err)
	assert.NotEqual(t, "hunter2", hash)

	assert.NoError(t, hasher.Verify("hunter2", hash))
	assert.ErrorIs(t, hasher.Verify("wrong", hash), ErrMismatchedHashAndPassword)

	_, err = hasher.Hash("")
	assert.ErrorIs(t, err, ErrEmptyPassword)
}

func TestStoreInvariant(t *testing.T) {
	err := StoreInvariant("expected user to exist")
	assert.True(t, IsStoreInvariant(err))
	assert.False(t, IsStoreInvariant(ErrUserNotFound))

	wrapped := WrapStoreInvariant(ErrUserNotFound, "link points at a ghost")
	assert.True(t, IsStoreInvariant(wrapped))
}
