package registry

import (
	"fmt"

	"github.com/cuemby/hive/pkg/instctx"
)

// DemoRuntime is a minimal stand-in Runtime for modules that declare no
// real bytecode interpreter. The bytecode execution engine itself is out
// of scope for the container; DemoRuntime exists only to exercise the
// call-table and RPC dispatch paths end to end. It recognizes exactly two
// function names: "hello", which returns a fixed greeting, and
// "call_bridge", which calls "hello" through one entry of the instance's
// bridge call-table and returns the callee's response verbatim. The
// call-table is a map, so which entry is used is not defined when the
// instance has more than one outbound bridge.
type DemoRuntime struct{}

// Invoke implements Runtime.
func (DemoRuntime) Invoke(ctx *instctx.Context, fn string, args []byte) ([]byte, error) {
	switch fn {
	case "hello":
		return []byte("Holo World"), nil
	case "call_bridge":
		for _, call := range ctx.CallTable {
			return call("hello", args)
		}
		return nil, fmt.Errorf("instance %q declares no outbound bridge", ctx.InstanceID)
	default:
		return nil, fmt.Errorf("unknown function %q", fn)
	}
}
