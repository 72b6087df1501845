// Package config parses server configuration from flags with environment fallbacks.
package config

import (
	"errors"
	"flag"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/and161185/passkit/internal/crypto"
	"github.com/and161185/passkit/internal/datasize"
)

// Environment variables consulted when the matching flag is not set.
const (
	EnvDSN      = "PASSKIT_DSN"
	EnvJWTKey   = "PASSKIT_JWT_KEY"
	EnvIPPepper = "PASSKIT_IP_PEPPER"
)

// Config is the server configuration.
type Config struct {
	Addr     string
	DSN      string
	JWTKey   string
	IPPepper string

	AccessTTL time.Duration
	CertFile  string
	KeyFile   string
	Dev       bool

	ArgonMemory    datasize.Size
	ArgonTime      uint
	ArgonThreads   uint
	ArgonKeyLen    uint
	ArgonSaltLen   uint
	ArgonMaxMemory datasize.Size
	ArgonMaxTime   uint

	LimitWindow   time.Duration
	LimitMaxFails int
	LimitBlockFor time.Duration
}

// Parse reads args (without the program name). getenv is usually os.Getenv.
func Parse(args []string, getenv func(string) string) (*Config, error) {
	c := &Config{
		ArgonMemory:    datasize.FromKiB(crypto.DefaultParams.Memory),
		ArgonMaxMemory: datasize.FromKiB(crypto.DefaultLimits.MaxMemory),
	}

	fs := flag.NewFlagSet("passkit-server", flag.ContinueOnError)
	fs.StringVar(&c.Addr, "addr", ":8443", "listen address")
	fs.StringVar(&c.DSN, "dsn", "", "PostgreSQL DSN (or "+EnvDSN+")")
	fs.StringVar(&c.JWTKey, "jwt-key", "", "HS256 signing key (or "+EnvJWTKey+")")
	fs.StringVar(&c.IPPepper, "ip-pepper", "", "HMAC key for client address fingerprints (or "+EnvIPPepper+")")
	fs.DurationVar(&c.AccessTTL, "access-ttl", 15*time.Minute, "access token TTL")
	fs.StringVar(&c.CertFile, "tls-cert", "cert.pem", "TLS certificate (PEM)")
	fs.StringVar(&c.KeyFile, "tls-key", "key.pem", "TLS private key (PEM)")
	fs.BoolVar(&c.Dev, "dev", false, "enable server reflection (dev only)")

	fs.Var(&c.ArgonMemory, "argon-memory", "Argon2id memory cost for new hashes")
	fs.UintVar(&c.ArgonTime, "argon-time", uint(crypto.DefaultParams.Time), "Argon2id passes")
	fs.UintVar(&c.ArgonThreads, "argon-threads", uint(crypto.DefaultParams.Threads), "Argon2id lanes")
	fs.UintVar(&c.ArgonKeyLen, "argon-keylen", uint(crypto.DefaultParams.KeyLen), "derived hash length, bytes")
	fs.UintVar(&c.ArgonSaltLen, "argon-saltlen", uint(crypto.DefaultParams.SaltLen), "salt length, bytes")
	fs.Var(&c.ArgonMaxMemory, "argon-max-memory", "largest memory cost accepted from stored hashes")
	fs.UintVar(&c.ArgonMaxTime, "argon-max-time", uint(crypto.DefaultLimits.MaxTime), "largest time cost accepted from stored hashes")

	fs.DurationVar(&c.LimitWindow, "limit-window", 15*time.Minute, "failed-login counting window")
	fs.IntVar(&c.LimitMaxFails, "limit-max-fails", 5, "failures before lockout")
	fs.DurationVar(&c.LimitBlockFor, "limit-block-for", 15*time.Minute, "lockout duration")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if c.DSN == "" {
		c.DSN = getenv(EnvDSN)
	}
	if c.JWTKey == "" {
		c.JWTKey = getenv(EnvJWTKey)
	}
	if c.IPPepper == "" {
		c.IPPepper = getenv(EnvIPPepper)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// FromOS parses os.Args and the process environment.
func FromOS() (*Config, error) {
	return Parse(os.Args[1:], os.Getenv)
}

// Validate checks required values and that the hasher can be built.
func (c *Config) Validate() error {
	switch {
	case c.DSN == "":
		return errors.New("config: missing dsn (--dsn or " + EnvDSN + ")")
	case c.JWTKey == "":
		return errors.New("config: missing jwt signing key (--jwt-key or " + EnvJWTKey + ")")
	case c.IPPepper == "":
		return errors.New("config: missing ip pepper (--ip-pepper or " + EnvIPPepper + ")")
	case c.LimitMaxFails < 1:
		return errors.New("config: limit-max-fails must be >= 1")
	}
	if _, err := c.NewHasher(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// HashParams converts the argon flags to crypto.Params.
func (c *Config) HashParams() (crypto.Params, error) {
	mem, err := c.ArgonMemory.CheckedKiB()
	if err != nil {
		return crypto.Params{}, fmt.Errorf("argon-memory: %w", err)
	}
	if c.ArgonThreads > 255 {
		return crypto.Params{}, fmt.Errorf("argon-threads: %d exceeds 255", c.ArgonThreads)
	}
	p := crypto.Params{Memory: mem, Threads: uint8(c.ArgonThreads)}
	for _, f := range []struct {
		name string
		v    uint
		dst  *uint32
	}{
		{"argon-time", c.ArgonTime, &p.Time},
		{"argon-keylen", c.ArgonKeyLen, &p.KeyLen},
		{"argon-saltlen", c.ArgonSaltLen, &p.SaltLen},
	} {
		n, err := Uint32(f.name, f.v)
		if err != nil {
			return crypto.Params{}, err
		}
		*f.dst = n
	}
	return p, nil
}

// HashLimits converts the argon limit flags to crypto.Limits.
func (c *Config) HashLimits() (crypto.Limits, error) {
	mem, err := c.ArgonMaxMemory.CheckedKiB()
	if err != nil {
		return crypto.Limits{}, fmt.Errorf("argon-max-memory: %w", err)
	}
	maxTime, err := Uint32("argon-max-time", c.ArgonMaxTime)
	if err != nil {
		return crypto.Limits{}, err
	}
	l := crypto.DefaultLimits
	l.MaxMemory = mem
	l.MaxTime = maxTime
	return l, nil
}

// Uint32 narrows the value of the named flag, rejecting values that do not fit.
func Uint32(name string, v uint) (uint32, error) {
	if uint64(v) > math.MaxUint32 {
		return 0, fmt.Errorf("%s: %d exceeds %d", name, v, uint64(math.MaxUint32))
	}
	return uint32(v), nil
}

// NewHasher builds the password hasher described by the config.
func (c *Config) NewHasher() (*crypto.Hasher, error) {
	p, err := c.HashParams()
	if err != nil {
		return nil, err
	}
	l, err := c.HashLimits()
	if err != nil {
		return nil, err
	}
	return crypto.NewHasher(p, crypto.WithLimits(l))
}
