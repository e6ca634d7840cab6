// Package registry holds the running instances keyed by id and drives
// their load/start/stop/shutdown transitions in dependency order: the
// Instance Registry and Lifecycle Manager of the container.
package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/cuemby/hive/pkg/config"
	"github.com/cuemby/hive/pkg/events"
	"github.com/cuemby/hive/pkg/instctx"
	"github.com/cuemby/hive/pkg/loader"
	"github.com/cuemby/hive/pkg/log"
	"github.com/cuemby/hive/pkg/metrics"
	"github.com/cuemby/hive/pkg/network"
	"github.com/cuemby/hive/pkg/types"
)

// Manager is the Instance Registry and Lifecycle Manager. It is safe for
// concurrent use; Load serializes against itself via loadMu, while StartAll /
// StopAll / Shutdown only take instMu and do not wait for a running Load.
type Manager struct {
	runtime Runtime
	loader  loader.Loader

	loadMu      sync.Mutex
	sidecar     *network.Sidecar
	endpoint    types.Endpoint
	haveNetwork bool

	broker       *events.Broker
	sinkMu       sync.Mutex
	sinkAttached bool
	everLoaded   bool

	instMu    sync.RWMutex
	instances map[string]*Instance
	order     []string
}

// NewManager creates a Lifecycle Manager bound to a Runtime (the bytecode
// execution seam) and a module Loader.
func NewManager(rt Runtime, ld loader.Loader) *Manager {
	broker := events.NewBroker()
	broker.Start()
	return &Manager{
		runtime:   rt,
		loader:    ld,
		broker:    broker,
		instances: make(map[string]*Instance),
	}
}

// AttachSignalSink forwards every Signal fanned out by the container's
// broker into sink, for the lifetime of the container. Legal only before
// the first successful Load.
func (m *Manager) AttachSignalSink(sink chan<- types.Signal) error {
	m.sinkMu.Lock()
	defer m.sinkMu.Unlock()

	if m.everLoaded {
		return &types.PreconditionViolation{What: "signal sink attached after load"}
	}

	sub := m.broker.Subscribe()
	m.sinkAttached = true
	go func() {
		for sig := range sub {
			sink <- sig
		}
	}()
	return nil
}

// Load validates cfg, ensures the container's P2P endpoint exists (spawning
// the helper on first call with a Network Descriptor, else synthesizing a
// mock endpoint), then builds every instance in topological order and
// swaps the registry wholesale. On any instance build failure the partial
// registry is discarded and the prior registry is left untouched.
func (m *Manager) Load(cfg *types.Configuration) error {
	m.loadMu.Lock()
	defer m.loadMu.Unlock()

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.LoadDuration)

	validation, err := config.Validate(cfg)
	if err != nil {
		metrics.LoadTotal.WithLabelValues("config_error").Inc()
		return err
	}

	endpoint, err := m.ensureNetwork(cfg.Network)
	if err != nil {
		metrics.LoadTotal.WithLabelValues("network_error").Inc()
		return err
	}

	dispatch := func(instanceID, fn string, args []byte) ([]byte, error) {
		inst, ok := m.instanceByID(instanceID)
		if !ok {
			return nil, &types.InstanceError{InstanceID: instanceID, Kind: types.InstanceErrorCall, Cause: fmt.Errorf("unknown callee instance")}
		}
		return inst.Call(fn, args)
	}

	builder := instctx.NewBuilder(validation, m.loader, m.broker, dispatch, endpoint)

	built := make(map[string]*Instance, len(validation.TopoOrder))
	for _, id := range validation.TopoOrder {
		inst, ok := validation.InstanceByID(id)
		if !ok {
			return &types.LoadError{InstanceID: id, Cause: fmt.Errorf("instance vanished from validated configuration")}
		}
		ctx, err := builder.Build(*inst)
		if err != nil {
			metrics.LoadTotal.WithLabelValues("build_error").Inc()
			return err
		}
		built[id] = newInstance(ctx, m.runtime)
	}

	m.instMu.Lock()
	m.instances = built
	m.order = append([]string(nil), validation.TopoOrder...)
	m.instMu.Unlock()

	m.sinkMu.Lock()
	m.everLoaded = true
	m.sinkMu.Unlock()

	metrics.InstancesTotal.WithLabelValues(string(types.InstanceLoaded)).Set(float64(len(built)))
	metrics.LoadTotal.WithLabelValues("success").Inc()
	return nil
}

func (m *Manager) ensureNetwork(descriptor *types.NetworkDescriptor) (types.Endpoint, error) {
	if m.haveNetwork {
		return m.endpoint, nil
	}

	if descriptor == nil {
		m.endpoint = types.Endpoint{Name: "mock-" + uuid.NewString(), URI: "mock://local", Mock: true}
		m.haveNetwork = true
		return m.endpoint, nil
	}

	m.sidecar = network.NewSidecar(*descriptor)
	endpoint, err := m.sidecar.EnsureStarted(context.Background())
	if err != nil {
		return types.Endpoint{}, err
	}
	metrics.P2PHelperSpawnsTotal.Inc()
	m.endpoint = endpoint
	m.haveNetwork = true
	return endpoint, nil
}

// StartAll starts every instance in registry iteration (topological) order.
// The first failure aborts the fold; already-started instances remain
// started.
func (m *Manager) StartAll() error {
	m.instMu.RLock()
	defer m.instMu.RUnlock()

	for _, id := range m.order {
		if err := m.instances[id].Start(); err != nil {
			return &types.InstanceError{InstanceID: id, Kind: types.InstanceErrorStart, Cause: err}
		}
	}
	return nil
}

// StopAll stops every instance in registry iteration order. The first
// failure aborts the fold.
func (m *Manager) StopAll() error {
	m.instMu.RLock()
	defer m.instMu.RUnlock()

	for _, id := range m.order {
		if err := m.instances[id].Stop(); err != nil {
			return &types.InstanceError{InstanceID: id, Kind: types.InstanceErrorStop, Cause: err}
		}
	}
	return nil
}

// Shutdown stops every instance, clears the registry, and kills the P2P
// sidecar exactly once. Idempotent.
func (m *Manager) Shutdown() error {
	_ = m.StopAll()

	m.instMu.Lock()
	m.instances = make(map[string]*Instance)
	m.order = nil
	m.instMu.Unlock()

	if m.sidecar != nil {
		if err := m.sidecar.Stop(); err != nil {
			log.WithComponent("registry").Error().Err(err).Msg("sidecar stop failed")
		}
	}
	m.broker.Stop()
	return nil
}

// InstanceByID returns the shared Instance handle for id, exactly as held
// in the registry (not a copy) — the RPC dispatch fabric relies on this.
func (m *Manager) InstanceByID(id string) (*Instance, bool) {
	return m.instanceByID(id)
}

func (m *Manager) instanceByID(id string) (*Instance, bool) {
	m.instMu.RLock()
	defer m.instMu.RUnlock()
	inst, ok := m.instances[id]
	return inst, ok
}

// Endpoint returns the container's P2P endpoint, established by the first
// successful Load. The zero Endpoint before any Load has happened.
func (m *Manager) Endpoint() types.Endpoint {
	m.loadMu.Lock()
	defer m.loadMu.Unlock()
	return m.endpoint
}

// Order returns the topological order the most recent Load produced.
func (m *Manager) Order() []string {
	m.instMu.RLock()
	defer m.instMu.RUnlock()
	return append([]string(nil), m.order...)
}
