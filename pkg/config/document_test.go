package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/hive/pkg/types"
)

const sampleDocument = `
[[agents]]
id = "agent1"
display_name = "Alice"
public_key_b64 = "abc123"

[[dnas]]
id = "mod1"
file_ref = "bridge/callee.dna"
content_hash = "deadbeef"

[[instances]]
id = "A"
module_id = "mod1"
agent_id = "agent1"
[instances.storage]
type = "file"
path = "/var/lib/hive/A"

[[bridges]]
caller_id = "B"
callee_id = "A"
handle = "DPKI"

[[interfaces]]
id = "ws1"
instances = ["A"]
[interfaces.driver]
type = "websocket"
port = 8888

[network]
helper_binary_path = "/usr/local/bin/p2p-helper"
work_dir = "/var/lib/hive/network"
mode = "real"

[logger]
channel = true
level = "info"
`

func TestParseDocument(t *testing.T) {
	cfg, err := Parse([]byte(sampleDocument))
	require.NoError(t, err)

	require.Len(t, cfg.Agents, 1)
	assert.Equal(t, "agent1", cfg.Agents[0].ID)

	require.Len(t, cfg.Modules, 1)
	assert.Equal(t, "bridge/callee.dna", cfg.Modules[0].FileRef)

	require.Len(t, cfg.Instances, 1)
	assert.Equal(t, types.StorageFile, cfg.Instances[0].Storage.Kind)
	assert.Equal(t, "/var/lib/hive/A", cfg.Instances[0].Storage.Path)

	require.Len(t, cfg.Bridges, 1)
	assert.Equal(t, "DPKI", cfg.Bridges[0].Handle)

	require.Len(t, cfg.Interfaces, 1)
	assert.Equal(t, types.DriverWebsocket, cfg.Interfaces[0].Driver)
	assert.Equal(t, 8888, cfg.Interfaces[0].Port)
	assert.Equal(t, []string{"A"}, cfg.Interfaces[0].InstanceIDSet)

	require.NotNil(t, cfg.Network)
	assert.Equal(t, "/usr/local/bin/p2p-helper", cfg.Network.HelperBinaryPath)

	assert.True(t, cfg.Logger.UseChannelLogger)
}

func TestParseMalformedDocument(t *testing.T) {
	_, err := Parse([]byte("not = [valid toml"))
	require.Error(t, err)
	var configErr *types.ConfigError
	assert.ErrorAs(t, err, &configErr)
}

func TestParseFileMissing(t *testing.T) {
	_, err := ParseFile("/nonexistent/hive.toml")
	require.Error(t, err)
}
