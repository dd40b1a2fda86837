package domain

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// IdentitySize is the byte length of an account address.
const IdentitySize = 20

// Identity is an account address rendered as 0x-prefixed lowercase hex.
type Identity string

// ZeroIdentity is the all-zero address. It never names a participant.
var ZeroIdentity = Identity("0x" + strings.Repeat("0", IdentitySize*2))

// Treasury is the ledger account holding collected funds.
const Treasury = Identity("treasury")

func IdentityFromBytes(b []byte) Identity {
	return Identity("0x" + hex.EncodeToString(b))
}

// ParseIdentity normalizes s and checks that it is a well-formed address.
func ParseIdentity(s string) (Identity, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if !strings.HasPrefix(s, "0x") {
		return "", fmt.Errorf("identity %q: missing 0x prefix", s)
	}
	raw, err := hex.DecodeString(s[2:])
	if err != nil {
		return "", fmt.Errorf("identity %q: %w", s, err)
	}
	if len(raw) != IdentitySize {
		return "", fmt.Errorf("identity %q: want %d bytes, got %d", s, IdentitySize, len(raw))
	}
	return Identity(s), nil
}

func (id Identity) IsZero() bool {
	return id == "" || id == ZeroIdentity
}

func (id Identity) String() string { return string(id) }
