package keybundle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Digital-Defiance/walletsession/storage/memory"
	"github.com/Digital-Defiance/walletsession/wallet"
)

func testPhrase(t *testing.T) string {
	t.Helper()
	m, err := wallet.NewMnemonic()
	require.NoError(t, err)
	t.Cleanup(m.Destroy)
	phrase, err := m.Phrase()
	require.NoError(t, err)
	return phrase
}

func TestSetupAndUnlock(t *testing.T) {
	store := memory.NewStore()
	phrase := testPhrase(t)

	assert.False(t, Available(store))

	w, err := Setup(store, phrase, "correct horse battery", Identity{Username: "alice"})
	require.NoError(t, err)
	t.Cleanup(w.Destroy)

	assert.True(t, Available(store))

	w2, m2, id, err := Unlock(store, "correct horse battery")
	require.NoError(t, err)
	t.Cleanup(w2.Destroy)
	t.Cleanup(m2.Destroy)

	assert.Equal(t, "alice", id.Username)
	assert.Equal(t, w.PublicKeyHex(), w2.PublicKeyHex())

	got, err := m2.Phrase()
	require.NoError(t, err)
	assert.Equal(t, phrase, got)
}

func TestUnlock_WrongPassword(t *testing.T) {
	store := memory.NewStore()
	phrase := testPhrase(t)

	_, err := Setup(store, phrase, "right-password", Identity{})
	require.NoError(t, err)

	_, _, _, err = Unlock(store, "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidPassword)
}

func TestUnlock_NotSetup(t *testing.T) {
	store := memory.NewStore()
	_, _, _, err := Unlock(store, "any")
	assert.ErrorIs(t, err, ErrNotSetup)
}

func TestSetup_InvalidPhrase(t *testing.T) {
	store := memory.NewStore()
	_, err := Setup(store, "not a mnemonic", "password", Identity{})
	assert.Error(t, err)
	assert.False(t, Available(store))
}

func TestSetup_EmptyPassword(t *testing.T) {
	store := memory.NewStore()
	_, err := Setup(store, testPhrase(t), "", Identity{})
	assert.Error(t, err)
}

func TestSetup_OverwritesExistingBundle(t *testing.T) {
	store := memory.NewStore()
	phrase := testPhrase(t)

	_, err := Setup(store, phrase, "old-password", Identity{})
	require.NoError(t, err)
	_, err = Setup(store, phrase, "new-password", Identity{})
	require.NoError(t, err)

	_, _, _, err = Unlock(store, "old-password")
	assert.ErrorIs(t, err, ErrInvalidPassword)

	w, m, _, err := Unlock(store, "new-password")
	require.NoError(t, err)
	w.Destroy()
	m.Destroy()
}

func TestRemove(t *testing.T) {
	store := memory.NewStore()
	_, err := Setup(store, testPhrase(t), "password", Identity{})
	require.NoError(t, err)

	require.NoError(t, Remove(store))
	assert.False(t, Available(store))
}
