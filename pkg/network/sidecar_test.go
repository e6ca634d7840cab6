package network

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/hive/pkg/types"
)

const fakeHelperScript = `#!/bin/sh
while [ "$1" != "" ]; do
  if [ "$1" = "--endpoint-file" ]; then
    shift
    echo '{"name":"test","uri":"ws://127.0.0.1:9999","mock":true}' > "$1"
  fi
  shift
done
sleep 5
`

func writeFakeHelper(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "helper.sh")
	require.NoError(t, os.WriteFile(path, []byte(fakeHelperScript), 0o755))
	return path
}

func TestSidecarExplicitEndpointSkipsSpawn(t *testing.T) {
	s := NewSidecar(types.NetworkDescriptor{ExplicitIPCEndpoint: "ws://mock"})
	endpoint, err := s.EnsureStarted(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ws://mock", endpoint.URI)
	assert.True(t, endpoint.Mock)
	assert.NoError(t, s.Stop())
}

func TestSidecarSpawnsHelperAndReadsEndpoint(t *testing.T) {
	helper := writeFakeHelper(t)
	workDir := t.TempDir()

	s := NewSidecar(types.NetworkDescriptor{
		HelperBinaryPath: helper,
		WorkDir:          workDir,
		Mode:             "test",
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	endpoint, err := s.EnsureStarted(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ws://127.0.0.1:9999", endpoint.URI)

	require.NoError(t, s.Stop())
}

func TestSidecarMissingBinaryPathIsSpawnError(t *testing.T) {
	s := NewSidecar(types.NetworkDescriptor{WorkDir: t.TempDir()})
	_, err := s.EnsureStarted(context.Background())
	require.Error(t, err)

	var spawnErr *types.NetworkSpawnError
	require.ErrorAs(t, err, &spawnErr)
}

func TestSidecarEnsureStartedIsIdempotent(t *testing.T) {
	helper := writeFakeHelper(t)
	workDir := t.TempDir()

	s := NewSidecar(types.NetworkDescriptor{HelperBinaryPath: helper, WorkDir: workDir})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	first, err := s.EnsureStarted(ctx)
	require.NoError(t, err)

	second, err := s.EnsureStarted(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	require.NoError(t, s.Stop())
}
