package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/hive/pkg/loader"
	"github.com/cuemby/hive/pkg/types"
)

func happyConfig() *types.Configuration {
	artifacts := map[string]*types.ModuleArtifact{
		"a.module": {FileRef: "a.module"},
		"b.module": {FileRef: "b.module"},
		"c.module": {FileRef: "c.module"},
	}
	_ = artifacts
	return &types.Configuration{
		Agents: []types.Agent{{ID: "agent1"}, {ID: "agent2"}, {ID: "agent3"}},
		Modules: []types.ModuleDescriptor{
			{ID: "mod1", FileRef: "a.module"},
			{ID: "mod2", FileRef: "b.module"},
			{ID: "mod3", FileRef: "c.module"},
		},
		Instances: []types.InstanceDescriptor{
			{ID: "A", ModuleID: "mod1", AgentID: "agent1", Storage: types.StorageDescriptor{Kind: types.StorageMemory}},
			{ID: "B", ModuleID: "mod2", AgentID: "agent2", Storage: types.StorageDescriptor{Kind: types.StorageMemory}},
			{ID: "C", ModuleID: "mod3", AgentID: "agent3", Storage: types.StorageDescriptor{Kind: types.StorageMemory}},
		},
		Bridges: []types.Bridge{
			{CallerID: "B", CalleeID: "A", Handle: "DPKI"},
			{CallerID: "C", CalleeID: "B", Handle: "happ-store"},
			{CallerID: "C", CalleeID: "A", Handle: "test-callee"},
		},
	}
}

func newTestManager() *Manager {
	ld := &loader.StaticLoader{Artifacts: map[string]*types.ModuleArtifact{
		"a.module": {FileRef: "a.module"},
		"b.module": {FileRef: "b.module"},
		"c.module": {FileRef: "c.module"},
	}}
	return NewManager(DemoRuntime{}, ld)
}

func TestLoadHappyConfigProducesTopoOrderedRegistry(t *testing.T) {
	m := newTestManager()
	defer m.Shutdown()

	require.NoError(t, m.Load(happyConfig()))
	assert.Equal(t, []string{"A", "B", "C"}, m.Order())

	for _, id := range []string{"A", "B", "C"} {
		inst, ok := m.InstanceByID(id)
		require.True(t, ok)
		assert.Equal(t, types.InstanceLoaded, inst.Status())
	}
}

func TestLoadMissingModuleFileYieldsLoadError(t *testing.T) {
	ld := &loader.StaticLoader{
		Artifacts: map[string]*types.ModuleArtifact{
			"b.module": {FileRef: "b.module"},
			"c.module": {FileRef: "c.module"},
		},
		Err: map[string]error{
			"a.module": &types.ConfigError{Reason: `Could not load DNA file "bridge/callee.dna"`},
		},
	}
	m := NewManager(DemoRuntime{}, ld)
	defer m.Shutdown()

	err := m.Load(happyConfig())
	require.Error(t, err)
	var loadErr *types.LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, "A", loadErr.InstanceID)
}

func TestStartAllThenBridgeCallRoundTrip(t *testing.T) {
	m := newTestManager()
	defer m.Shutdown()

	require.NoError(t, m.Load(happyConfig()))
	require.NoError(t, m.StartAll())

	c, ok := m.InstanceByID("C")
	require.True(t, ok)

	out, err := c.Call("call_bridge", nil)
	require.NoError(t, err)
	assert.Equal(t, "Holo World", string(out))
}

func TestAttachSignalSinkAfterLoadIsPreconditionViolation(t *testing.T) {
	m := newTestManager()
	defer m.Shutdown()

	require.NoError(t, m.Load(happyConfig()))

	err := m.AttachSignalSink(make(chan types.Signal, 1))
	require.Error(t, err)
	var violation *types.PreconditionViolation
	require.ErrorAs(t, err, &violation)
}

func TestSignalSinkObservesInitSignalsPerInstance(t *testing.T) {
	m := newTestManager()
	sink := make(chan types.Signal, 16)
	require.NoError(t, m.AttachSignalSink(sink))

	require.NoError(t, m.Load(happyConfig()))
	defer m.Shutdown()

	seen := map[string]map[types.SignalKind]bool{"A": {}, "B": {}, "C": {}}
	deadline := time.After(2 * time.Second)
	for i := 0; i < 6; i++ {
		select {
		case sig := <-sink:
			seen[sig.InstanceID][sig.Kind] = true
		case <-deadline:
			t.Fatal("timed out waiting for signals")
		}
	}

	for _, id := range []string{"A", "B", "C"} {
		assert.True(t, seen[id][types.SignalInitApplication], "missing InitApplication for %s", id)
		assert.True(t, seen[id][types.SignalInitNetwork], "missing InitNetwork for %s", id)
	}
}

func TestShutdownIsIdempotent(t *testing.T) {
	m := newTestManager()
	require.NoError(t, m.Load(happyConfig()))
	require.NoError(t, m.Shutdown())
	require.NoError(t, m.Shutdown())
}

func TestCallOnNotStartedInstanceIsInstanceError(t *testing.T) {
	m := newTestManager()
	defer m.Shutdown()

	require.NoError(t, m.Load(happyConfig()))

	a, ok := m.InstanceByID("A")
	require.True(t, ok)

	_, err := a.Call("hello", nil)
	require.Error(t, err)
	var instErr *types.InstanceError
	require.ErrorAs(t, err, &instErr)
}
