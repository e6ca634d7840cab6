// Package instctx builds the immutable per-instance Context that the
// Instance Registry hands to a running instance: its identity, module
// artifact, storage handle, bridge call table, and signal emitter. A
// Context is assembled once at load time and never mutated afterward.
package instctx

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/hive/pkg/config"
	"github.com/cuemby/hive/pkg/events"
	"github.com/cuemby/hive/pkg/identity"
	"github.com/cuemby/hive/pkg/loader"
	"github.com/cuemby/hive/pkg/log"
	"github.com/cuemby/hive/pkg/metrics"
	"github.com/cuemby/hive/pkg/storage"
	"github.com/cuemby/hive/pkg/types"
)

// BridgeCall is the function shape an instance invokes through its call
// table. The caller's context wires this to the callee's dispatcher.
type BridgeCall func(fn string, args []byte) ([]byte, error)

// Context is the immutable, fully-wired environment one instance runs in.
type Context struct {
	InstanceID string
	Identity   identity.Identity
	Module     *types.ModuleArtifact
	Storage    storage.Handle
	Network    types.Endpoint
	CallTable  map[string]BridgeCall // bridge handle -> callee invocation
	Logger     zerolog.Logger

	emit func(types.SignalKind)
}

// EmitSignal fans out a Signal of the given kind for this instance,
// stamping InstanceID and the current time.
func (c *Context) EmitSignal(kind types.SignalKind) {
	metrics.SignalsEmittedTotal.WithLabelValues(string(kind)).Inc()
	c.emit(kind)
}

// Dispatcher is the callee-side hook a Builder wires bridge calls against:
// the Instance Registry resolves it to "call the named instance's
// function with these arguments".
type Dispatcher func(instanceID, fn string, args []byte) ([]byte, error)

// Builder assembles Contexts from a validated Configuration. It must be
// constructed with the full set of collaborators before any instance is
// built, since bridge call tables reference sibling instances' entries in
// the registry's dispatch table.
type Builder struct {
	validation *config.Validation
	loader     loader.Loader
	broker     *events.Broker
	dispatch   Dispatcher
	network    types.Endpoint
}

// NewBuilder creates a Context Builder bound to a validated configuration,
// a module loader, the container's signal broker, the shared callee
// dispatcher, and the network endpoint published by the P2P sidecar (the
// zero Endpoint is valid for instances with no network-capable bridges).
func NewBuilder(validation *config.Validation, ld loader.Loader, broker *events.Broker, dispatch Dispatcher, network types.Endpoint) *Builder {
	return &Builder{
		validation: validation,
		loader:     ld,
		broker:     broker,
		dispatch:   dispatch,
		network:    network,
	}
}

// Build materializes the Context for a single instance descriptor. It
// resolves the instance's agent and module, opens its storage handle,
// and wires a call table entry per outbound bridge.
func (b *Builder) Build(inst types.InstanceDescriptor) (*Context, error) {
	agent, ok := b.validation.AgentByID(inst.AgentID)
	if !ok {
		return nil, &types.LoadError{InstanceID: inst.ID, Cause: fmt.Errorf("unknown agent %q", inst.AgentID)}
	}
	id, err := identity.Rehydrate(*agent)
	if err != nil {
		return nil, &types.LoadError{InstanceID: inst.ID, Cause: err}
	}

	module, ok := b.validation.ModuleByID(inst.ModuleID)
	if !ok {
		return nil, &types.LoadError{InstanceID: inst.ID, Cause: fmt.Errorf("unknown module %q", inst.ModuleID)}
	}
	artifact, err := b.loader.Load(module.FileRef)
	if err != nil {
		return nil, &types.LoadError{InstanceID: inst.ID, Cause: err}
	}

	handle, err := storage.Open(inst.Storage)
	if err != nil {
		return nil, &types.LoadError{InstanceID: inst.ID, Cause: err}
	}

	callTable := make(map[string]BridgeCall)
	for _, bridge := range b.validation.BridgesWhereCaller(inst.ID) {
		calleeID := bridge.CalleeID
		callerID := inst.ID
		callTable[bridge.Handle] = func(fn string, args []byte) ([]byte, error) {
			out, err := b.dispatch(calleeID, fn, args)
			outcome := "success"
			if err != nil {
				outcome = "error"
			}
			metrics.BridgeCallsTotal.WithLabelValues(callerID, calleeID, outcome).Inc()
			return out, err
		}
	}

	instanceID := inst.ID
	ctx := &Context{
		InstanceID: instanceID,
		Identity:   id,
		Module:     artifact,
		Storage:    handle,
		Network:    b.network,
		CallTable:  callTable,
		Logger:     log.WithInstanceID(instanceID),
		emit: func(kind types.SignalKind) {
			b.broker.Emit(types.Signal{InstanceID: instanceID, Kind: kind, At: time.Now()})
		},
	}
	return ctx, nil
}
