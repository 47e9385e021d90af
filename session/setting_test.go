package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Digital-Defiance/walletsession/storage/memory"
)

func TestIntSetting_DefaultWhenMissing(t *testing.T) {
	store := memory.NewStore()
	s := NewIntSetting(store, "mnemonicExpirationSeconds", 300)

	assert.Equal(t, 300, s.Value())
	assert.Equal(t, 300, s.Default())
	// A missing entry is not written back as a side effect.
	assert.False(t, store.Has("mnemonicExpirationSeconds"))
}

func TestIntSetting_ReadsStoredValue(t *testing.T) {
	store := memory.NewStore()
	require.NoError(t, store.Set("mnemonicExpirationSeconds", "120"))

	s := NewIntSetting(store, "mnemonicExpirationSeconds", 300)
	assert.Equal(t, 120, s.Value())
}

func TestIntSetting_CorruptValueFallsBack(t *testing.T) {
	store := memory.NewStore()
	require.NoError(t, store.Set("mnemonicExpirationSeconds", "not-a-number"))

	s := NewIntSetting(store, "mnemonicExpirationSeconds", 300)
	assert.Equal(t, 300, s.Value())
	// The corrupt entry is left alone until the next write.
	raw, err := store.Get("mnemonicExpirationSeconds")
	require.NoError(t, err)
	assert.Equal(t, "not-a-number", raw)
}

func TestIntSetting_WriteThrough(t *testing.T) {
	store := memory.NewStore()
	s := NewIntSetting(store, "walletExpirationSeconds", 3600)

	require.NoError(t, s.Set(900))
	assert.Equal(t, 900, s.Value())

	raw, err := store.Get("walletExpirationSeconds")
	require.NoError(t, err)
	assert.Equal(t, "900", raw)

	// A fresh Setting over the same store sees the persisted value.
	s2 := NewIntSetting(store, "walletExpirationSeconds", 3600)
	assert.Equal(t, 900, s2.Value())
}

func TestStringSetting_RoundTrip(t *testing.T) {
	store := memory.NewStore()
	s := NewStringSetting(store, "currencyCode", "USD")
	assert.Equal(t, "USD", s.Value())

	require.NoError(t, s.Set("EUR"))
	assert.Equal(t, "EUR", s.Value())

	raw, err := store.Get("currencyCode")
	require.NoError(t, err)
	assert.Equal(t, "EUR", raw)
}
