package main

import (
	"encoding/base64"
	"errors"
	"flag"
	"fmt"

	"github.com/and161185/passkit/internal/config"
	"github.com/and161185/passkit/internal/crypto"
	"github.com/and161185/passkit/internal/datasize"
)

// paramFlags binds the Argon2id cost flags shared by hash and needs-rehash.
type paramFlags struct {
	memory  datasize.Size
	time    uint
	threads uint
	keyLen  uint
	saltLen uint
}

func bindParams(fs *flag.FlagSet) *paramFlags {
	p := &paramFlags{memory: datasize.FromKiB(crypto.DefaultParams.Memory)}
	fs.Var(&p.memory, "m", "memory cost (e.g. 64MiB)")
	fs.UintVar(&p.time, "t", uint(crypto.DefaultParams.Time), "passes")
	fs.UintVar(&p.threads, "p", uint(crypto.DefaultParams.Threads), "lanes")
	fs.UintVar(&p.keyLen, "len", uint(crypto.DefaultParams.KeyLen), "hash length, bytes")
	fs.UintVar(&p.saltLen, "salt-len", uint(crypto.DefaultParams.SaltLen), "salt length, bytes")
	return p
}

func (p *paramFlags) params() (crypto.Params, error) {
	mem, err := p.memory.CheckedKiB()
	if err != nil {
		return crypto.Params{}, fmt.Errorf("-m: %w", err)
	}
	if p.threads > 255 {
		return crypto.Params{}, fmt.Errorf("-p: %d exceeds 255", p.threads)
	}
	out := crypto.Params{Memory: mem, Threads: uint8(p.threads)}
	if out.Time, err = config.Uint32("-t", p.time); err != nil {
		return crypto.Params{}, err
	}
	if out.KeyLen, err = config.Uint32("-len", p.keyLen); err != nil {
		return crypto.Params{}, err
	}
	if out.SaltLen, err = config.Uint32("-salt-len", p.saltLen); err != nil {
		return crypto.Params{}, err
	}
	return out, nil
}

func (p *paramFlags) hasher() (*crypto.Hasher, error) {
	params, err := p.params()
	if err != nil {
		return nil, err
	}
	return crypto.NewHasher(params)
}

func newFlagSet(name string, e *env) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	return fs
}

// oneArg parses args and requires exactly one positional argument.
func oneArg(fs *flag.FlagSet, args []string) (string, error) {
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	if fs.NArg() != 1 {
		return "", fmt.Errorf("%s: expected one argument, got %d", fs.Name(), fs.NArg())
	}
	return fs.Arg(0), nil
}

func cmdHash(args []string, e *env) int {
	fs := newFlagSet("hash", e)
	pf := bindParams(fs)
	if err := fs.Parse(args); err != nil {
		return exitError
	}
	h, err := pf.hasher()
	if err != nil {
		return e.fail(err)
	}
	pw, err := e.password()
	if err != nil {
		return e.fail(err)
	}
	ph, err := h.Hash(pw)
	if err != nil {
		return e.fail(err)
	}
	fmt.Fprintln(e.stdout, ph.Encode())
	return exitOK
}

func cmdVerify(args []string, e *env) int {
	fs := newFlagSet("verify", e)
	maxMem := datasize.FromKiB(crypto.DefaultLimits.MaxMemory)
	fs.Var(&maxMem, "max-memory", "largest memory cost accepted")
	maxTime := fs.Uint("max-time", uint(crypto.DefaultLimits.MaxTime), "largest time cost accepted")
	encoded, err := oneArg(fs, args)
	if err != nil {
		return e.fail(err)
	}
	mem, err := maxMem.CheckedKiB()
	if err != nil {
		return e.fail(fmt.Errorf("-max-memory: %w", err))
	}
	limits := crypto.DefaultLimits
	limits.MaxMemory = mem
	if limits.MaxTime, err = config.Uint32("-max-time", *maxTime); err != nil {
		return e.fail(err)
	}

	pw, err := e.password()
	if err != nil {
		return e.fail(err)
	}
	ok, err := crypto.VerifyWithLimits(pw, encoded, limits)
	if err != nil {
		return e.fail(err)
	}
	if !ok {
		fmt.Fprintln(e.stdout, "mismatch")
		return exitMismatch
	}
	fmt.Fprintln(e.stdout, "match")
	return exitOK
}

type hashInfo struct {
	Variant   string `json:"variant"`
	Version   int    `json:"version"`
	MemoryKiB uint32 `json:"memory_kib"`
	Memory    string `json:"memory"`
	Time      uint32 `json:"time"`
	Threads   uint8  `json:"threads"`
	Salt      string `json:"salt"`
	SaltLen   int    `json:"salt_len"`
	KeyLen    int    `json:"key_len"`
}

func cmdInspect(args []string, e *env) int {
	encoded, err := oneArg(newFlagSet("inspect", e), args)
	if err != nil {
		return e.fail(err)
	}
	ph, err := crypto.ParseHash(encoded)
	if err != nil {
		return e.fail(err)
	}
	e.printJSON(hashInfo{
		Variant:   crypto.Variant,
		Version:   ph.Version,
		MemoryKiB: ph.Memory,
		Memory:    datasize.FromKiB(ph.Memory).String(),
		Time:      ph.Time,
		Threads:   ph.Threads,
		Salt:      base64.StdEncoding.EncodeToString(ph.Salt),
		SaltLen:   len(ph.Salt),
		KeyLen:    len(ph.Key),
	})
	return exitOK
}

func cmdNeedsRehash(args []string, e *env) int {
	fs := newFlagSet("needs-rehash", e)
	pf := bindParams(fs)
	encoded, err := oneArg(fs, args)
	if err != nil {
		return e.fail(err)
	}
	h, err := pf.hasher()
	if err != nil {
		return e.fail(err)
	}
	stale, err := h.NeedsRehash(encoded)
	if err != nil {
		return e.fail(err)
	}
	if stale {
		fmt.Fprintln(e.stdout, "stale")
		return exitMismatch
	}
	fmt.Fprintln(e.stdout, "current")
	return exitOK
}

func cmdRandom(name string, def int, args []string, e *env) int {
	fs := newFlagSet(name, e)
	n := fs.Int("n", def, "number of random bytes")
	if err := fs.Parse(args); err != nil {
		return exitError
	}
	if *n < 1 {
		return e.fail(errors.New("-n must be >= 1"))
	}
	b, err := crypto.RandBytes(*n)
	if err != nil {
		return e.fail(err)
	}
	fmt.Fprintln(e.stdout, base64.StdEncoding.EncodeToString(b))
	return exitOK
}

func decodeFlag(name, v string) ([]byte, error) {
	if v == "" {
		return nil, fmt.Errorf("-%s is required", name)
	}
	b, err := base64.StdEncoding.DecodeString(v)
	if err != nil {
		return nil, fmt.Errorf("-%s: %w", name, err)
	}
	return b, nil
}

func cmdMAC(args []string, e *env) int {
	fs := newFlagSet("mac", e)
	keyB64 := fs.String("key", "", "base64 key; a fresh key is generated and printed when empty")
	arg, err := oneArg(fs, args)
	if err != nil {
		return e.fail(err)
	}
	msg, err := e.input(arg)
	if err != nil {
		return e.fail(err)
	}

	if *keyB64 == "" {
		key, err := crypto.GenerateMACKey(crypto.MACKeySize)
		if err != nil {
			return e.fail(err)
		}
		m := crypto.ComputeMACBytes(msg, key)
		e.printJSON(map[string]string{
			"key": base64.StdEncoding.EncodeToString(m.Key),
			"tag": base64.StdEncoding.EncodeToString(m.Tag),
		})
		return exitOK
	}
	key, err := decodeFlag("key", *keyB64)
	if err != nil {
		return e.fail(err)
	}
	fmt.Fprintln(e.stdout, base64.StdEncoding.EncodeToString(crypto.ComputeMACBytes(msg, key).Tag))
	return exitOK
}

func cmdMACVerify(args []string, e *env) int {
	fs := newFlagSet("mac-verify", e)
	keyB64 := fs.String("key", "", "base64 key")
	tagB64 := fs.String("tag", "", "base64 tag")
	arg, err := oneArg(fs, args)
	if err != nil {
		return e.fail(err)
	}
	key, err := decodeFlag("key", *keyB64)
	if err != nil {
		return e.fail(err)
	}
	tag, err := decodeFlag("tag", *tagB64)
	if err != nil {
		return e.fail(err)
	}
	msg, err := e.input(arg)
	if err != nil {
		return e.fail(err)
	}
	if !crypto.VerifyMACBytes(msg, tag, key) {
		fmt.Fprintln(e.stdout, "invalid")
		return exitMismatch
	}
	fmt.Fprintln(e.stdout, "valid")
	return exitOK
}
