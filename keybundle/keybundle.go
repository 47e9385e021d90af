// Package keybundle implements password-based wallet unlock. The recovery
// mnemonic is encrypted under a password-derived key and kept in durable
// client storage, so the user can log in with a password instead of
// re-entering the full phrase.
package keybundle

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Digital-Defiance/walletsession/internal/util"
	"github.com/Digital-Defiance/walletsession/storage"
	"github.com/Digital-Defiance/walletsession/wallet"
)

// StorageKey is the durable-storage key holding the encrypted bundle.
// Presence of the key is what makes password login available.
const StorageKey = "encryptedKeyBundle"

const (
	bundleVersion = 1
	saltLen       = 16
)

var (
	// ErrNotSetup indicates no encrypted bundle exists in storage.
	ErrNotSetup = errors.New("password login is not set up")
	// ErrInvalidPassword indicates the bundle could not be decrypted with
	// the supplied password.
	ErrInvalidPassword = errors.New("invalid password")
)

// Identity carries the account identifiers stored alongside the mnemonic so
// a later password login can resolve the account without the caller
// re-supplying them.
type Identity struct {
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
}

type bundlePayload struct {
	Mnemonic string `json:"mnemonic"`
	Identity
}

// Available reports whether an encrypted bundle exists in storage.
func Available(store storage.Store) bool {
	return store.Has(StorageKey)
}

// Remove deletes the encrypted bundle, disabling password login.
func Remove(store storage.Store) error {
	return store.Delete(StorageKey)
}

// Setup encrypts the mnemonic under the password and writes the bundle to
// storage, overwriting any existing bundle. It returns the wallet derived
// from the mnemonic.
//
// The bundle format is base64 over: version (1 byte) || salt (16 bytes) ||
// AES-256-GCM ciphertext. The encryption key is derived from the
// NFKD-normalized password using Argon2id.
func Setup(store storage.Store, phrase, password string, id Identity) (*wallet.Wallet, error) {
	if password == "" {
		return nil, fmt.Errorf("password must not be empty")
	}

	// Deriving the wallet first also validates the phrase.
	w, err := wallet.FromPhraseKey(phrase)
	if err != nil {
		return nil, err
	}

	payload := bundlePayload{Mnemonic: phrase, Identity: id}
	plaintext, err := json.Marshal(payload)
	if err != nil {
		w.Destroy()
		return nil, fmt.Errorf("marshaling bundle: %w", err)
	}
	defer util.WipeBytes(plaintext)

	salt, err := util.RandomBytes(saltLen)
	if err != nil {
		w.Destroy()
		return nil, fmt.Errorf("generating bundle salt: %w", err)
	}

	key, err := util.DeriveArgon2idKey(util.Normalize(password), salt, util.DefaultArgon2idParams())
	if err != nil {
		w.Destroy()
		return nil, fmt.Errorf("deriving bundle key: %w", err)
	}
	defer util.WipeBytes(key)

	ciphertext, err := util.EncryptAES(plaintext, key)
	if err != nil {
		w.Destroy()
		return nil, fmt.Errorf("encrypting bundle: %w", err)
	}

	out := make([]byte, 0, 1+saltLen+len(ciphertext))
	out = append(out, byte(bundleVersion))
	out = append(out, salt...)
	out = append(out, ciphertext...)

	if err := store.Set(StorageKey, base64.StdEncoding.EncodeToString(out)); err != nil {
		w.Destroy()
		return nil, fmt.Errorf("persisting bundle: %w", err)
	}
	return w, nil
}

// Unlock decrypts the stored bundle with the password and returns the
// derived wallet, the mnemonic, and the identity stored at setup time.
func Unlock(store storage.Store, password string) (*wallet.Wallet, *wallet.Mnemonic, Identity, error) {
	encoded, err := store.Get(StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, Identity{}, ErrNotSetup
		}
		return nil, nil, Identity{}, fmt.Errorf("reading bundle: %w", err)
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, nil, Identity{}, fmt.Errorf("decoding bundle: %w", err)
	}
	if len(data) < 1+saltLen {
		return nil, nil, Identity{}, fmt.Errorf("bundle data too short")
	}
	if data[0] != bundleVersion {
		return nil, nil, Identity{}, fmt.Errorf("unsupported bundle version: %d", data[0])
	}
	salt := data[1 : 1+saltLen]
	ciphertext := data[1+saltLen:]

	key, err := util.DeriveArgon2idKey(util.Normalize(password), salt, util.DefaultArgon2idParams())
	if err != nil {
		return nil, nil, Identity{}, fmt.Errorf("deriving bundle key: %w", err)
	}
	defer util.WipeBytes(key)

	plaintext, err := util.DecryptAES(ciphertext, key)
	if err != nil {
		// GCM authentication failure: wrong password.
		return nil, nil, Identity{}, ErrInvalidPassword
	}
	defer util.WipeBytes(plaintext)

	var payload bundlePayload
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return nil, nil, Identity{}, fmt.Errorf("unmarshaling bundle: %w", err)
	}
	if payload.Mnemonic == "" {
		return nil, nil, Identity{}, ErrInvalidPassword
	}

	m, err := wallet.FromPhrase(payload.Mnemonic)
	if err != nil {
		return nil, nil, Identity{}, fmt.Errorf("restoring mnemonic: %w", err)
	}
	w, err := wallet.FromPhraseKey(payload.Mnemonic)
	if err != nil {
		m.Destroy()
		return nil, nil, Identity{}, fmt.Errorf("deriving wallet: %w", err)
	}
	return w, m, payload.Identity, nil
}
