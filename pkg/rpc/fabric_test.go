package rpc

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/hive/pkg/types"
)

type fakeInstance struct {
	reply  []byte
	err    error
	status types.InstanceStatus
}

func (f *fakeInstance) Call(fn string, args []byte) ([]byte, error) {
	return f.reply, f.err
}

func (f *fakeInstance) Status() types.InstanceStatus {
	return f.status
}

func TestFabricBuilderRoutesToLiveHandle(t *testing.T) {
	a := &fakeInstance{reply: []byte("hi")}
	lookup := func(id string) (Callable, bool) {
		if id == "A" {
			return a, true
		}
		return nil, false
	}

	b := NewBuilder(lookup, types.Endpoint{})
	router, err := b.Build(types.InterfaceDescriptor{ID: "ws1", InstanceIDSet: []string{"A"}})
	require.NoError(t, err)

	resp := router.Handle([]byte(`{"jsonrpc":"2.0","method":"A/hello","id":1}`))
	require.Nil(t, resp.Error)
}

func TestFabricBuilderUnknownInstanceSurfacesInternalError(t *testing.T) {
	lookup := func(id string) (Callable, bool) { return nil, false }

	b := NewBuilder(lookup, types.Endpoint{})
	router, err := b.Build(types.InterfaceDescriptor{ID: "ws1", InstanceIDSet: []string{"ghost"}})
	require.NoError(t, err)

	resp := router.Handle([]byte(`{"jsonrpc":"2.0","method":"ghost/hello","id":1}`))
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeInternalError, resp.Error.Code)
}

func TestFabricBuilderInfoStateReportsStatusAndEndpoint(t *testing.T) {
	a := &fakeInstance{status: types.InstanceRunning}
	lookup := func(id string) (Callable, bool) {
		if id == "A" {
			return a, true
		}
		return nil, false
	}

	b := NewBuilder(lookup, types.Endpoint{Name: "mock-1", URI: "mock://local", Mock: true})
	router, err := b.Build(types.InterfaceDescriptor{ID: "ws1", InstanceIDSet: []string{"A"}})
	require.NoError(t, err)

	resp := router.Handle([]byte(`{"jsonrpc":"2.0","method":"info/state","id":1}`))
	require.Nil(t, resp.Error)

	var state ContainerState
	require.NoError(t, json.Unmarshal(resp.Result, &state))
	require.Len(t, state.Instances, 1)
	assert.Equal(t, "A", state.Instances[0].ID)
	assert.Equal(t, string(types.InstanceRunning), state.Instances[0].Status)
	assert.Equal(t, "mock-1", state.Endpoint.Name)
}
