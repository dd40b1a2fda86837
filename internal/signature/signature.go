// Package signature binds redemption proofs to account identities.
//
// A signature envelope is the signer's Ed25519 public key followed by the
// 64-byte signature over the message. The signer identity is the first 20
// bytes of BLAKE3(public key), so recovering the signer needs no key
// registry: the envelope verifies itself and names its author.
package signature

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"

	"github.com/kirinyoku/fairtix/internal/domain"
)

// EnvelopeSize is the byte length of a signature envelope.
const EnvelopeSize = ed25519.PublicKeySize + ed25519.SignatureSize

const (
	redeemContext  = "fairtix/redeem/v1"
	requestContext = "fairtix/request/v1"
)

var (
	ErrEnvelopeSize     = errors.New("signature: envelope has wrong size")
	ErrInvalidSignature = errors.New("signature: invalid Ed25519 signature")
)

// Verifier recovers the identity that signed message.
type Verifier interface {
	RecoverSigner(message, envelope []byte) (domain.Identity, error)
}

type Ed25519Verifier struct{}

func (Ed25519Verifier) RecoverSigner(message, envelope []byte) (domain.Identity, error) {
	if len(envelope) != EnvelopeSize {
		return "", ErrEnvelopeSize
	}
	pub := ed25519.PublicKey(envelope[:ed25519.PublicKeySize])
	sig := envelope[ed25519.PublicKeySize:]
	if !ed25519.Verify(pub, message, sig) {
		return "", ErrInvalidSignature
	}
	return IdentityOf(pub), nil
}

// IdentityOf derives the account identity of an Ed25519 public key.
func IdentityOf(pub ed25519.PublicKey) domain.Identity {
	sum := blake3.Sum256(pub)
	return domain.IdentityFromBytes(sum[:domain.IdentitySize])
}

// Sign produces a signature envelope over message.
func Sign(priv ed25519.PrivateKey, message []byte) []byte {
	pub := priv.Public().(ed25519.PublicKey)
	out := make([]byte, 0, EnvelopeSize)
	out = append(out, pub...)
	out = append(out, ed25519.Sign(priv, message)...)
	return out
}

// GenerateKey creates a fresh signing key and its identity.
func GenerateKey() (ed25519.PrivateKey, domain.Identity, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, "", fmt.Errorf("generating Ed25519 key: %w", err)
	}
	return priv, IdentityOf(pub), nil
}

// RedemptionDigest is the message a holder signs to redeem ticketID with
// secret.
func RedemptionDigest(ticketID uuid.UUID, secret []byte) []byte {
	h := blake3.NewDeriveKey(redeemContext)
	_, _ = h.Write(ticketID[:])
	_, _ = h.Write(secret)
	return h.Sum(nil)
}

// RequestDigest is the message a caller signs to authenticate an API
// request. target is the request URI with its query string.
func RequestDigest(method, target string, timestamp int64, body []byte) []byte {
	bodySum := blake3.Sum256(body)

	h := blake3.NewDeriveKey(requestContext)
	_, _ = h.Write([]byte(method))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(target))
	_, _ = h.Write([]byte{0})
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(timestamp))
	_, _ = h.Write(ts[:])
	_, _ = h.Write(bodySum[:])
	return h.Sum(nil)
}

// SecretKey is the stored form of a used redemption secret.
func SecretKey(secret []byte) string {
	sum := blake3.Sum256(secret)
	return hex.EncodeToString(sum[:])
}

// SecretHash derives a per-ticket redemption secret hash bound to the ticket,
// the buyer and the mint time. salt keeps hashes unpredictable across
// tickets minted in the same instant.
func SecretHash(ticketID uuid.UUID, buyer domain.Identity, at time.Time, salt []byte) string {
	h := blake3.New()
	_, _ = h.Write(ticketID[:])
	_, _ = h.Write([]byte(buyer))
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(at.UnixNano()))
	_, _ = h.Write(ts[:])
	_, _ = h.Write(salt)
	return hex.EncodeToString(h.Sum(nil))
}
