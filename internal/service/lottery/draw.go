package lottery

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"slices"

	"github.com/zeebo/blake3"

	"github.com/kirinyoku/fairtix/internal/domain"
)

// Entropy supplies the secret seed of a draw.
type Entropy interface {
	Seed() ([32]byte, error)
}

type CryptoEntropy struct{}

func (CryptoEntropy) Seed() ([32]byte, error) {
	var seed [32]byte
	if _, err := rand.Read(seed[:]); err != nil {
		return seed, fmt.Errorf("reading draw seed: %w", err)
	}
	return seed, nil
}

// drawStream returns the keyed BLAKE3 output stream that drives one draw.
// The nonce makes every draw's stream distinct even under a repeated seed.
func drawStream(seed [32]byte, nonce uint64, lotteryID int64, caller domain.Identity) (io.Reader, error) {
	h, err := blake3.NewKeyed(seed[:])
	if err != nil {
		return nil, err
	}

	var buf [16]byte
	binary.BigEndian.PutUint64(buf[:8], nonce)
	binary.BigEndian.PutUint64(buf[8:], uint64(lotteryID))
	_, _ = h.Write(buf[:])
	_, _ = h.Write([]byte(caller))

	return h.Digest(), nil
}

// uniform returns an unbiased integer in [0, n) read from r.
func uniform(r io.Reader, n uint64) (uint64, error) {
	// 2^64 mod n; values below it would favour small results.
	threshold := -n % n
	var buf [8]byte
	for {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return 0, err
		}
		v := binary.BigEndian.Uint64(buf[:])
		if v >= threshold {
			return v % n, nil
		}
	}
}

// pickWinners selects k distinct applicants with a partial Fisher-Yates
// shuffle. The applicant order is the application order.
func pickWinners(r io.Reader, applicants []domain.Identity, k int) ([]domain.Identity, error) {
	pool := slices.Clone(applicants)
	n := len(pool)
	if k > n {
		k = n
	}

	for i := 0; i < k; i++ {
		j, err := uniform(r, uint64(n-i))
		if err != nil {
			return nil, err
		}
		swap := i + int(j)
		pool[i], pool[swap] = pool[swap], pool[i]
	}

	return pool[:k], nil
}
