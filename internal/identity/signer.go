package identity

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/cloudflare/circl/sign/ed25519"
	"golang.org/x/crypto/hkdf"

	"roomchat/internal/common"
	"roomchat/internal/xmtp"
)

// SignFunc signs text with a wallet.
type SignFunc func(ctx context.Context, text string) ([]byte, error)

type walletSigner struct {
	id   xmtp.Identifier
	sign SignFunc
}

func (s *walletSigner) Identifier() xmtp.Identifier { return s.id }

func (s *walletSigner) SignMessage(ctx context.Context, text string) ([]byte, error) {
	return s.sign(ctx, text)
}

// BuildSigner pairs a wallet address with its signing function.
func BuildSigner(address string, sign SignFunc) (xmtp.Signer, error) {
	const op = "identity.BuildSigner"
	if sign == nil {
		return nil, common.SignerUnavailable(op, "no signing provider")
	}
	normalized, err := common.NormalizeAddress(address)
	if err != nil {
		return nil, common.SignerUnavailable(op, "no wallet address")
	}
	return &walletSigner{id: xmtp.Identifier{Address: normalized}, sign: sign}, nil
}

// Wallet is an address together with the capability to sign for it.
type Wallet struct {
	Address string
	Sign    SignFunc
}

// WalletProvider resolves the wallet the service signs with on a user's behalf.
type WalletProvider interface {
	Wallet(ctx context.Context, p common.Principal) (Wallet, error)
}

// DerivedWalletProvider is the in-app provider: each user gets an ed25519
// signing key derived from a master secret and their fid.
type DerivedWalletProvider struct {
	master []byte
}

func NewDerivedWalletProvider(masterSecret string) *DerivedWalletProvider {
	return &DerivedWalletProvider{master: []byte(masterSecret)}
}

func (d *DerivedWalletProvider) Wallet(ctx context.Context, p common.Principal) (Wallet, error) {
	const op = "identity.Wallet"
	if len(d.master) == 0 {
		return Wallet{}, common.SignerUnavailable(op, "in-app wallet provider is not configured")
	}
	if p.Address == "" {
		return Wallet{}, common.SignerUnavailable(op, fmt.Sprintf("fid %d has no wallet address", p.FID))
	}

	info := make([]byte, 8)
	binary.BigEndian.PutUint64(info, p.FID)
	seed := make([]byte, ed25519.SeedSize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, d.master, []byte("roomchat-wallet"), info), seed); err != nil {
		return Wallet{}, common.Internal(op, err)
	}
	key := ed25519.NewKeyFromSeed(seed)

	return Wallet{
		Address: p.Address,
		Sign: func(ctx context.Context, text string) ([]byte, error) {
			return ed25519.Sign(key, []byte(text)), nil
		},
	}, nil
}

// SystemSigner is the admin identity that provisions room groups.
type SystemSigner struct {
	address string
	key     ed25519.PrivateKey
}

func NewSystemSigner(address, seedHex string) (*SystemSigner, error) {
	const op = "identity.NewSystemSigner"
	normalized, err := common.NormalizeAddress(address)
	if err != nil {
		return nil, common.SignerUnavailable(op, "system wallet address is not configured")
	}
	seed, err := hex.DecodeString(seedHex)
	if err != nil || len(seed) != ed25519.SeedSize {
		return nil, common.SignerUnavailable(op, "system signing seed must be 32 hex-encoded bytes")
	}
	return &SystemSigner{address: normalized, key: ed25519.NewKeyFromSeed(seed)}, nil
}

func (s *SystemSigner) Identifier() xmtp.Identifier {
	return xmtp.Identifier{Address: s.address}
}

func (s *SystemSigner) SignMessage(ctx context.Context, text string) ([]byte, error) {
	return ed25519.Sign(s.key, []byte(text)), nil
}

func (s *SystemSigner) Verify(text string, sig []byte) bool {
	return ed25519.Verify(s.key.Public().(ed25519.PublicKey), []byte(text), sig)
}

// DatabaseKey derives the system client's local database key from its seed.
func (s *SystemSigner) DatabaseKey() []byte {
	key := make([]byte, KeySize)
	r := hkdf.New(sha256.New, s.key.Seed(), []byte("roomchat-system-db"), nil)
	if _, err := io.ReadFull(r, key); err != nil {
		panic(err) // hkdf can always produce 32 bytes
	}
	return key
}
