package wallet

import (
	"crypto/ed25519"
	"fmt"

	bip39 "github.com/tyler-smith/go-bip39"

	"github.com/Digital-Defiance/walletsession/internal/util"
)

// hkdfInfo domain-separates the signing key from any other key derived
// from the same seed.
var hkdfInfo = []byte("walletsession/ed25519/v1")

// Wallet is an ed25519 keypair derived deterministically from a mnemonic.
// It signs server-issued login challenges. Call Destroy() when done.
type Wallet struct {
	pub       ed25519.PublicKey
	priv      ed25519.PrivateKey
	destroyed bool
}

// FromMnemonic derives the wallet for the given mnemonic.
func FromMnemonic(m *Mnemonic) (*Wallet, error) {
	phrase, err := m.Phrase()
	if err != nil {
		return nil, err
	}
	return FromPhraseKey(phrase)
}

// FromPhraseKey derives the wallet directly from a recovery phrase.
func FromPhraseKey(phrase string) (*Wallet, error) {
	seed, err := bip39.NewSeedWithErrorChecking(phrase, "")
	if err != nil {
		return nil, fmt.Errorf("deriving seed from mnemonic: %w", err)
	}
	defer util.WipeBytes(seed)

	keySeed, err := util.HKDF(seed, nil, hkdfInfo)
	if err != nil {
		return nil, fmt.Errorf("deriving signing key: %w", err)
	}
	defer util.WipeBytes(keySeed)

	priv := ed25519.NewKeyFromSeed(keySeed)
	return &Wallet{
		pub:  priv.Public().(ed25519.PublicKey),
		priv: priv,
	}, nil
}

// PublicKeyHex returns the hex-encoded public key.
func (w *Wallet) PublicKeyHex() string {
	if w == nil || w.destroyed {
		return ""
	}
	return util.HexEncode(w.pub)
}

// Sign signs a server-issued challenge.
func (w *Wallet) Sign(challenge []byte) ([]byte, error) {
	if w == nil || w.destroyed {
		return nil, fmt.Errorf("wallet has been destroyed")
	}
	return ed25519.Sign(w.priv, challenge), nil
}

// Destroy wipes the private key. After calling Destroy, the Wallet must not
// be reused.
func (w *Wallet) Destroy() {
	if w == nil || w.destroyed {
		return
	}
	util.WipeBytes(w.priv)
	w.priv = nil
	w.pub = nil
	w.destroyed = true
}

// VerifySignature checks a challenge signature against a hex-encoded public key.
func VerifySignature(publicKeyHex string, challenge, signature []byte) bool {
	pub, err := util.HexDecode(publicKeyHex)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pub), challenge, signature)
}
