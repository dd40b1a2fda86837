package lottery

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirinyoku/fairtix/internal/domain"
)

func words(vs ...uint64) *bytes.Reader {
	var buf bytes.Buffer
	for _, v := range vs {
		_ = binary.Write(&buf, binary.BigEndian, v)
	}
	return bytes.NewReader(buf.Bytes())
}

func TestUniform_RejectsBiasedValues(t *testing.T) {
	// 2^64 mod 3 == 1, so 0 is rejected.
	v, err := uniform(words(0, 5), 3)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), v)

	v, err = uniform(words(^uint64(0)), 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), v)

	_, err = uniform(words(0), 3)
	require.Error(t, err)
}

func TestUniform_Spread(t *testing.T) {
	r, err := drawStream([32]byte{1}, 1, 1, "0x01")
	require.NoError(t, err)

	var counts [3]int
	for range 6000 {
		v, err := uniform(r, 3)
		require.NoError(t, err)
		counts[v]++
	}

	for _, c := range counts {
		assert.InDelta(t, 2000, c, 300)
	}
}

func applicants(n int) []domain.Identity {
	out := make([]domain.Identity, n)
	for i := range out {
		out[i] = domain.IdentityFromBytes([]byte{byte(i + 1)})
	}
	return out
}

func TestPickWinners(t *testing.T) {
	pool := applicants(10)

	r, err := drawStream([32]byte{7}, 1, 1, "0x01")
	require.NoError(t, err)

	winners, err := pickWinners(r, pool, 4)
	require.NoError(t, err)
	require.Len(t, winners, 4)

	seen := map[domain.Identity]bool{}
	for _, w := range winners {
		assert.Contains(t, pool, w)
		assert.False(t, seen[w], "duplicate winner %s", w)
		seen[w] = true
	}

	assert.Equal(t, applicants(10), pool, "input must not be reordered")
}

func TestPickWinners_AllWhenFewerApplicants(t *testing.T) {
	pool := applicants(3)

	r, err := drawStream([32]byte{7}, 1, 1, "0x01")
	require.NoError(t, err)

	winners, err := pickWinners(r, pool, 5)
	require.NoError(t, err)
	assert.ElementsMatch(t, pool, winners)
}

func TestDrawStream_Deterministic(t *testing.T) {
	pool := applicants(20)

	pick := func(seed byte, nonce uint64) []domain.Identity {
		r, err := drawStream([32]byte{seed}, nonce, 9, "0x01")
		require.NoError(t, err)
		w, err := pickWinners(r, pool, 5)
		require.NoError(t, err)
		return w
	}

	assert.Equal(t, pick(1, 1), pick(1, 1))
	assert.NotEqual(t, pick(1, 1), pick(1, 2))
	assert.NotEqual(t, pick(1, 1), pick(2, 1))
}
