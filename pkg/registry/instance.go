package registry

import (
	"fmt"
	"sync"

	"github.com/cuemby/hive/pkg/instctx"
	"github.com/cuemby/hive/pkg/types"
)

// Runtime executes a function call against an instance's module artifact.
// The bytecode execution engine proper is an external collaborator; Runtime
// is the seam a real one plugs into.
type Runtime interface {
	Invoke(ctx *instctx.Context, fn string, args []byte) ([]byte, error)
}

// Instance pairs a built Context with the readers-writer lock discipline
// described for the concurrency model: RPC handlers and bridge calls both
// acquire the writer lock for the duration of one Call.
type Instance struct {
	id      string
	ctx     *instctx.Context
	runtime Runtime

	mu     sync.RWMutex
	status types.InstanceStatus
}

// newInstance builds an Instance in the Loaded state and immediately emits
// its InitApplication and InitNetwork signals, in that order — these are
// observable as soon as the container has loaded, before any instance is
// started.
func newInstance(ctx *instctx.Context, rt Runtime) *Instance {
	ctx.EmitSignal(types.SignalInitApplication)
	ctx.EmitSignal(types.SignalInitNetwork)
	return &Instance{id: ctx.InstanceID, ctx: ctx, runtime: rt, status: types.InstanceLoaded}
}

// ID returns the instance's id.
func (i *Instance) ID() string { return i.id }

// Status returns the instance's current lifecycle status.
func (i *Instance) Status() types.InstanceStatus {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.status
}

// Start transitions the instance to running. InitApplication and InitNetwork
// are already emitted by the time an instance reaches this point (load
// time); Start only flips its status.
func (i *Instance) Start() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.status = types.InstanceRunning
	return nil
}

// Stop transitions the instance to stopped. Idempotent.
func (i *Instance) Stop() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.status = types.InstanceStopped
	return nil
}

// Call invokes fn on this instance's runtime under the writer lock, so
// concurrent calls into one instance are linearized. It is also the entry
// point bridge calls from other instances arrive through.
func (i *Instance) Call(fn string, args []byte) ([]byte, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.status != types.InstanceRunning {
		return nil, &types.InstanceError{InstanceID: i.id, Kind: types.InstanceErrorCall, Cause: fmt.Errorf("instance is not running")}
	}

	out, err := i.runtime.Invoke(i.ctx, fn, args)
	if err != nil {
		return nil, &types.InstanceError{InstanceID: i.id, Kind: types.InstanceErrorCall, Cause: err}
	}
	return out, nil
}

// Capabilities exposes the instance's declared capability surface. The RPC
// dispatch fabric does not consult it; routed method names are passed to
// Call unchecked.
func (i *Instance) Capabilities() map[string][]string {
	return i.ctx.Module.Capabilities
}
