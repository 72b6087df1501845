package crypto

import (
	"bytes"
	"errors"
	"testing"

	"github.com/and161185/passkit/internal/errs"
)

func TestEncode_Grammar(t *testing.T) {
	t.Parallel()

	ph := &PasswordHash{
		Version: 19,
		Memory:  64,
		Time:    2,
		Threads: 2,
		Salt:    []byte("somesalt"),
		Key:     []byte{0x35, 0x0a, 0xc3, 0x72},
	}
	want := "$argon2id$v=19$m=64,t=2,p=2$c29tZXNhbHQ$NQrDcg"
	if got := ph.Encode(); got != want {
		t.Fatalf("Encode=%q, want %q", got, want)
	}
}

func TestParseHash_RoundTrip(t *testing.T) {
	t.Parallel()

	in := []*PasswordHash{
		{Version: 19, Memory: 131072, Time: 4, Threads: 2, Salt: make([]byte, 16), Key: bytes.Repeat([]byte{0xab}, 64)},
		{Version: 19, Memory: 8, Time: 1, Threads: 1, Salt: []byte{1}, Key: []byte{2}},
		{Version: 19, Memory: 4294967295, Time: 4294967295, Threads: 255, Salt: bytes.Repeat([]byte{0xff}, 33), Key: bytes.Repeat([]byte{0}, 7)},
	}
	for _, want := range in {
		got, err := ParseHash(want.Encode())
		if err != nil {
			t.Fatalf("ParseHash(%q): %v", want.Encode(), err)
		}
		if got.Version != want.Version || got.Memory != want.Memory || got.Time != want.Time || got.Threads != want.Threads {
			t.Fatalf("params mismatch: got %+v, want %+v", got, want)
		}
		if !bytes.Equal(got.Salt, want.Salt) || !bytes.Equal(got.Key, want.Key) {
			t.Fatalf("salt/key mismatch for %q", want.Encode())
		}
	}
}

func TestParseHash_Malformed(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"empty":             "",
		"garbage":           "not-a-valid-encoded-hash",
		"too few fields":    "$argon2id$v=19$m=64,t=2,p=2$c29tZXNhbHQ",
		"too many fields":   "$argon2id$v=19$m=64,t=2,p=2$c29tZXNhbHQ$NQrDcg$x",
		"no leading dollar": "argon2id$v=19$m=64,t=2,p=2$c29tZXNhbHQ$NQrDcg$",
		"argon2i variant":   "$argon2i$v=19$m=64,t=2,p=2$c29tZXNhbHQ$NQrDcg",
		"missing v=":        "$argon2id$19$m=64,t=2,p=2$c29tZXNhbHQ$NQrDcg",
		"old version":       "$argon2id$v=16$m=64,t=2,p=2$c29tZXNhbHQ$NQrDcg",
		"non-numeric m":     "$argon2id$v=19$m=abc,t=2,p=2$c29tZXNhbHQ$NQrDcg",
		"negative t":        "$argon2id$v=19$m=64,t=-1,p=2$c29tZXNhbHQ$NQrDcg",
		"p overflows uint8": "$argon2id$v=19$m=4096,t=2,p=256$c29tZXNhbHQ$NQrDcg",
		"m overflows":       "$argon2id$v=19$m=4294967296,t=2,p=2$c29tZXNhbHQ$NQrDcg",
		"order swapped":     "$argon2id$v=19$t=2,m=64,p=2$c29tZXNhbHQ$NQrDcg",
		"missing p":         "$argon2id$v=19$m=64,t=2$c29tZXNhbHQ$NQrDcg",
		"zero time":         "$argon2id$v=19$m=64,t=0,p=2$c29tZXNhbHQ$NQrDcg",
		"zero threads":      "$argon2id$v=19$m=64,t=2,p=0$c29tZXNhbHQ$NQrDcg",
		"memory < 8p":       "$argon2id$v=19$m=8,t=2,p=2$c29tZXNhbHQ$NQrDcg",
		"bad salt base64":   "$argon2id$v=19$m=64,t=2,p=2$!!!!$NQrDcg",
		"bad hash base64":   "$argon2id$v=19$m=64,t=2,p=2$c29tZXNhbHQ$N*Q",
		"empty salt":        "$argon2id$v=19$m=64,t=2,p=2$$NQrDcg",
		"empty hash":        "$argon2id$v=19$m=64,t=2,p=2$c29tZXNhbHQ$",
		"url alphabet":      "$argon2id$v=19$m=64,t=2,p=2$c29tZXNhbHQ$NQrD-_",
		"newline in salt":   "$argon2id$v=19$m=64,t=2,p=2$c29tZX\nNhbHQ$NQrDcg",
		"cr in hash":        "$argon2id$v=19$m=64,t=2,p=2$c29tZXNhbHQ$NQr\rDcg",
		"excess padding":    "$argon2id$v=19$m=64,t=2,p=2$c29tZXNhbHQ=====$NQrDcg",
		"short padding":     "$argon2id$v=19$m=64,t=2,p=2$c29tZXNhbHQ$NQrDcg=",
		"padding inside":    "$argon2id$v=19$m=64,t=2,p=2$c29t=ZXNhbHQ$NQrDcg",
		"trailing bits":     "$argon2id$v=19$m=64,t=2,p=2$c29tZXNhbHR$NQrDcg",
		"leading zero m":    "$argon2id$v=19$m=064,t=2,p=2$c29tZXNhbHQ$NQrDcg",
		"plus sign t":       "$argon2id$v=19$m=64,t=+2,p=2$c29tZXNhbHQ$NQrDcg",
		"junk after p":      "$argon2id$v=19$m=64,t=2,p=2x$c29tZXNhbHQ$NQrDcg",
	}
	for name, enc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			if _, err := ParseHash(enc); !errors.Is(err, errs.ErrInvalidFormat) {
				t.Fatalf("ParseHash(%q): want ErrInvalidFormat, got %v", enc, err)
			}
		})
	}
}

func TestParseHash_KeepsEmbeddedSaltLength(t *testing.T) {
	t.Parallel()

	ph, err := ParseHash("$argon2id$v=19$m=64,t=2,p=2$c29tZXNhbHQ$NQrDcg")
	if err != nil {
		t.Fatalf("ParseHash: %v", err)
	}
	if p := ph.Params(); p.SaltLen != 8 || p.KeyLen != 4 {
		t.Fatalf("params=%+v", p)
	}
}

func TestParseHash_ExactPadding(t *testing.T) {
	t.Parallel()

	canonical := "$argon2id$v=19$m=64,t=2,p=2$c29tZXNhbHQ$NQrDcg"
	padded := "$argon2id$v=19$m=64,t=2,p=2$c29tZXNhbHQ=$NQrDcg=="
	for _, enc := range []string{canonical, padded} {
		ph, err := ParseHash(enc)
		if err != nil {
			t.Fatalf("ParseHash(%q): %v", enc, err)
		}
		if got := ph.Encode(); got != canonical {
			t.Fatalf("Encode(ParseHash(%q))=%q, want %q", enc, got, canonical)
		}
	}
}
