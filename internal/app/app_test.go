// Package app_test exercises the dependency container against the
// default in-memory configuration.
package app_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/brandlens/footprint/internal/app"
	"github.com/brandlens/footprint/internal/config"
)

func TestBuildWithDefaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	a, err := app.Build(context.Background(), &cfg)
	require.NoError(t, err)
	require.NotNil(t, a)
	require.NoError(t, a.Close())
}

func TestBuildWithLocalBlobStore(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Storage.BlobProvider = "local"
	cfg.Storage.LocalBaseDir = t.TempDir()

	a, err := app.Build(context.Background(), &cfg)
	require.NoError(t, err)
	require.NoError(t, a.Close())
}

func TestBuildFailsOnBadLocalBaseDir(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Storage.BlobProvider = "local"
	cfg.Storage.LocalBaseDir = "   "

	_, err = app.Build(context.Background(), &cfg)
	require.Error(t, err)
}
