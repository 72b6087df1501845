package config

import (
	"testing"
	"time"

	"github.com/and161185/passkit/internal/crypto"
	"github.com/and161185/passkit/internal/datasize"
	"github.com/stretchr/testify/require"
)

func env(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestParse_DefaultsAndEnv(t *testing.T) {
	t.Parallel()

	c, err := Parse(nil, env(map[string]string{
		EnvDSN:      "postgres://x",
		EnvJWTKey:   "jwt",
		EnvIPPepper: "pepper",
	}))
	require.NoError(t, err)
	require.Equal(t, ":8443", c.Addr)
	require.Equal(t, "postgres://x", c.DSN)
	require.Equal(t, 15*time.Minute, c.AccessTTL)

	p, err := c.HashParams()
	require.NoError(t, err)
	require.Equal(t, crypto.DefaultParams, p)

	l, err := c.HashLimits()
	require.NoError(t, err)
	require.Equal(t, crypto.DefaultLimits, l)
}

func TestParse_FlagsOverrideEnv(t *testing.T) {
	t.Parallel()

	c, err := Parse([]string{
		"-dsn", "postgres://flag",
		"-jwt-key", "k",
		"-ip-pepper", "p",
		"-argon-memory", "64MiB",
		"-argon-time", "3",
		"-argon-threads", "4",
		"-limit-max-fails", "3",
	}, env(map[string]string{EnvDSN: "postgres://env"}))
	require.NoError(t, err)
	require.Equal(t, "postgres://flag", c.DSN)
	require.Equal(t, 64*datasize.MiB, c.ArgonMemory)
	require.Equal(t, 3, c.LimitMaxFails)

	p, err := c.HashParams()
	require.NoError(t, err)
	require.Equal(t, uint32(65536), p.Memory)
	require.Equal(t, uint32(3), p.Time)
	require.Equal(t, uint8(4), p.Threads)
}

func TestParse_Errors(t *testing.T) {
	t.Parallel()

	full := map[string]string{EnvDSN: "d", EnvJWTKey: "k", EnvIPPepper: "p"}

	tests := map[string]struct {
		args []string
		env  map[string]string
	}{
		"missing dsn":          {nil, map[string]string{EnvJWTKey: "k", EnvIPPepper: "p"}},
		"missing jwt":          {nil, map[string]string{EnvDSN: "d", EnvIPPepper: "p"}},
		"missing pepper":       {nil, map[string]string{EnvDSN: "d", EnvJWTKey: "k"}},
		"bad size":             {[]string{"-argon-memory", "lots"}, full},
		"memory not KiB":       {[]string{"-argon-memory", "1000B"}, full},
		"memory above max":     {[]string{"-argon-memory", "2GiB"}, full},
		"too many threads":     {[]string{"-argon-threads", "300"}, full},
		"zero time":            {[]string{"-argon-time", "0"}, full},
		"zero fails":           {[]string{"-limit-max-fails", "0"}, full},
		"max memory overflows": {[]string{"-argon-max-memory", "8TiB"}, full},
		"time wraps uint32":    {[]string{"-argon-time", "4294967297"}, full},
		"keylen wraps uint32":  {[]string{"-argon-keylen", "4294967328"}, full},
		"saltlen wraps uint32": {[]string{"-argon-saltlen", "4294967312"}, full},
		"max time wraps":       {[]string{"-argon-max-time", "4294967360"}, full},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := Parse(tc.args, env(tc.env))
			require.Error(t, err)
		})
	}
}

func TestNewHasher(t *testing.T) {
	t.Parallel()

	c := &Config{
		ArgonMemory:    64 * datasize.KiB,
		ArgonTime:      1,
		ArgonThreads:   1,
		ArgonKeyLen:    32,
		ArgonSaltLen:   16,
		ArgonMaxMemory: datasize.MiB,
		ArgonMaxTime:   4,
	}
	h, err := c.NewHasher()
	require.NoError(t, err)
	require.Equal(t, uint32(64), h.Params().Memory)

	ph, err := h.Hash("pw")
	require.NoError(t, err)
	ok, err := h.Verify("pw", ph.Encode())
	require.NoError(t, err)
	require.True(t, ok)
}

func TestUint32(t *testing.T) {
	t.Parallel()

	n, err := Uint32("x", 4294967295)
	require.NoError(t, err)
	require.Equal(t, uint32(4294967295), n)

	_, err = Uint32("argon-time", 4294967297)
	require.ErrorContains(t, err, "argon-time: 4294967297 exceeds 4294967295")
}
