package redisx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigOptions(t *testing.T) {
	opts, err := Config{Addr: "localhost:6379", Password: "pw", DB: 2, PoolSize: 4}.options()
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", opts.Addr)
	assert.Equal(t, "pw", opts.Password)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 4, opts.PoolSize)
	assert.Equal(t, "fairtix", opts.ClientName)

	opts, err = Config{Addr: "redis://:secret@cache:6380/3", Password: "ignored"}.options()
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 3, opts.DB)

	_, err = Config{Addr: "redis://host:port:bad/x"}.options()
	assert.Error(t, err)
}
