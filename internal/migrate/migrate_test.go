package migrate

import (
	"io/fs"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/and161185/passkit/migrations"
	"github.com/stretchr/testify/require"
)

func TestVersions_Embedded(t *testing.T) {
	t.Parallel()

	vs, err := Versions(migrations.FS)
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2}, vs)
}

func TestVersions_BadName(t *testing.T) {
	t.Parallel()

	_, err := Versions(fstest.MapFS{"users.sql": {Data: []byte("-- +goose Up")}})
	require.Error(t, err)
}

func TestEmbeddedMigrations_HaveUpAndDown(t *testing.T) {
	t.Parallel()

	names, err := fs.Glob(migrations.FS, "*.sql")
	require.NoError(t, err)
	for _, n := range names {
		b, err := fs.ReadFile(migrations.FS, n)
		require.NoError(t, err)
		require.True(t, strings.Contains(string(b), "-- +goose Up"), n)
		require.True(t, strings.Contains(string(b), "-- +goose Down"), n)
	}
}
