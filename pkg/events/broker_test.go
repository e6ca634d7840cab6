package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/hive/pkg/types"
)

func TestBrokerDeliversToSubscriber(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub := b.Subscribe()
	defer b.Unsubscribe(sub)

	b.Emit(types.Signal{InstanceID: "A", Kind: types.SignalInitApplication})

	select {
	case sig := <-sub:
		assert.Equal(t, "A", sig.InstanceID)
		assert.Equal(t, types.SignalInitApplication, sig.Kind)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for signal")
	}
}

func TestBrokerFansOutToMultipleSubscribers(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub1 := b.Subscribe()
	sub2 := b.Subscribe()
	defer b.Unsubscribe(sub1)
	defer b.Unsubscribe(sub2)

	b.Emit(types.Signal{InstanceID: "A", Kind: types.SignalInitNetwork})

	for _, sub := range []Subscriber{sub1, sub2} {
		select {
		case sig := <-sub:
			assert.Equal(t, types.SignalInitNetwork, sig.Kind)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for signal")
		}
	}
}

func TestBrokerPreservesPerInstanceOrder(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub := b.Subscribe()
	defer b.Unsubscribe(sub)

	b.Emit(types.Signal{InstanceID: "A", Kind: types.SignalInitApplication})
	b.Emit(types.Signal{InstanceID: "A", Kind: types.SignalInitNetwork})

	first := <-sub
	second := <-sub
	require.Equal(t, types.SignalInitApplication, first.Kind)
	require.Equal(t, types.SignalInitNetwork, second.Kind)
}

func TestBrokerUnsubscribeStopsDelivery(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub := b.Subscribe()
	b.Unsubscribe(sub)

	b.Emit(types.Signal{InstanceID: "A", Kind: types.SignalInitApplication})

	_, ok := <-sub
	assert.False(t, ok, "channel should be closed after unsubscribe")
}
