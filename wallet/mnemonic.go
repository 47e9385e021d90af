// Package wallet provides the in-memory secret types for the session layer:
// a BIP-39 recovery mnemonic held in a guarded enclave, and the signing
// wallet derived from it.
package wallet

import (
	"fmt"

	"github.com/awnumar/memguard"
	bip39 "github.com/tyler-smith/go-bip39"
)

const mnemonicEntropyBits = 128

// Mnemonic is a recovery phrase held encrypted at rest in memory.
// Call Destroy() when done to drop the key material.
type Mnemonic struct {
	enclave   *memguard.Enclave
	destroyed bool
}

// NewMnemonic generates a fresh random mnemonic.
func NewMnemonic() (*Mnemonic, error) {
	entropy, err := bip39.NewEntropy(mnemonicEntropyBits)
	if err != nil {
		return nil, fmt.Errorf("generating mnemonic entropy: %w", err)
	}
	phrase, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return nil, fmt.Errorf("generating mnemonic: %w", err)
	}
	return &Mnemonic{enclave: memguard.NewEnclave([]byte(phrase))}, nil
}

// FromPhrase wraps an existing recovery phrase. The phrase must be a valid
// BIP-39 mnemonic.
func FromPhrase(phrase string) (*Mnemonic, error) {
	if !bip39.IsMnemonicValid(phrase) {
		return nil, fmt.Errorf("invalid mnemonic phrase")
	}
	return &Mnemonic{enclave: memguard.NewEnclave([]byte(phrase))}, nil
}

// Phrase opens the enclave and returns a copy of the recovery phrase.
func (m *Mnemonic) Phrase() (string, error) {
	if m == nil || m.destroyed || m.enclave == nil {
		return "", fmt.Errorf("mnemonic has been destroyed")
	}
	buf, err := m.enclave.Open()
	if err != nil {
		return "", fmt.Errorf("opening mnemonic enclave: %w", err)
	}
	defer buf.Destroy()
	return string(buf.Bytes()), nil
}

// Destroy drops the enclave. After calling Destroy, the Mnemonic must not
// be reused.
func (m *Mnemonic) Destroy() {
	if m == nil || m.destroyed {
		return
	}
	m.enclave = nil
	m.destroyed = true
}
