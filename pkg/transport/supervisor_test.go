package transport

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/hive/pkg/rpc"
	"github.com/cuemby/hive/pkg/types"
)

func echoRouterBuilder(types.InterfaceDescriptor) (*rpc.Router, error) {
	return rpc.NewRouter([]string{"A"}, func(instanceID, fn string, args []byte) ([]byte, error) {
		return []byte("ok"), nil
	}), nil
}

func TestSupervisorStartInterfaceTwiceIsAlreadyRunning(t *testing.T) {
	s := NewSupervisor(echoRouterBuilder)
	descriptor := types.InterfaceDescriptor{ID: "ws1", Driver: types.DriverHTTP, Port: 18080}

	require.NoError(t, s.StartInterface(descriptor))
	defer s.StopAll(context.Background())

	err := s.StartInterface(descriptor)
	require.Error(t, err)
	var already *types.InterfaceAlreadyRunning
	require.ErrorAs(t, err, &already)
}

func TestSupervisorStopUnknownInterfaceIsNotFound(t *testing.T) {
	s := NewSupervisor(echoRouterBuilder)
	err := s.StopInterface(context.Background(), "ghost")
	require.Error(t, err)
	var notFound *types.InterfaceNotFound
	require.ErrorAs(t, err, &notFound)
}

func TestSupervisorStartAllThenStopAll(t *testing.T) {
	s := NewSupervisor(echoRouterBuilder)
	descriptors := []types.InterfaceDescriptor{
		{ID: "ws1", Driver: types.DriverHTTP, Port: 18081},
		{ID: "ws2", Driver: types.DriverHTTP, Port: 18082},
	}

	require.NoError(t, s.StartAll(descriptors))
	assert.True(t, s.Running("ws1"))
	assert.True(t, s.Running("ws2"))

	require.NoError(t, s.StopAll(context.Background()))
	assert.False(t, s.Running("ws1"))
	assert.False(t, s.Running("ws2"))
}

func TestSupervisorUnknownDriverKindFailsStart(t *testing.T) {
	s := NewSupervisor(echoRouterBuilder)
	err := s.StartInterface(types.InterfaceDescriptor{ID: "bad", Driver: "carrier-pigeon", Port: 18083})
	require.Error(t, err)
}
