package devicepool

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sunO2/scrs/pkg/device"
)

type fakeDevice struct {
	device.Device
	serial string
}

func (f *fakeDevice) Serial() string    { return f.serial }
func (f *fakeDevice) Name() string      { return f.serial }
func (f *fakeDevice) IsConnected() bool { return true }

func newTestPool(t *testing.T) *Pool {
	t.Helper()
	p, err := New(Config{MaxConnections: 2}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })
	return p
}

func TestRegisterUnregister_RoundTripLeavesNoTrace(t *testing.T) {
	p := newTestPool(t)
	dev := &fakeDevice{serial: "s1"}

	require.NoError(t, p.RegisterDevice("s1", "device one", dev))
	_, ok := p.Entry("s1")
	assert.True(t, ok)

	require.NoError(t, p.UnregisterDevice("s1"))
	_, ok = p.Entry("s1")
	assert.False(t, ok)
}

func TestRegisterDevice_RejectsDuplicate(t *testing.T) {
	p := newTestPool(t)
	dev := &fakeDevice{serial: "s1"}

	require.NoError(t, p.RegisterDevice("s1", "", dev))
	err := p.RegisterDevice("s1", "", dev)
	assert.Error(t, err)
}

func TestRegisterDevice_RejectsOverCapacity(t *testing.T) {
	p := newTestPool(t)
	require.NoError(t, p.RegisterDevice("s1", "", &fakeDevice{serial: "s1"}))
	require.NoError(t, p.RegisterDevice("s2", "", &fakeDevice{serial: "s2"}))

	err := p.RegisterDevice("s3", "", &fakeDevice{serial: "s3"})
	assert.Error(t, err)
}

func TestUnregisterDevice_UnknownSerialIsError(t *testing.T) {
	p := newTestPool(t)
	assert.Error(t, p.UnregisterDevice("missing"))
}

func TestDisconnectDevice_UnconnectedIsError(t *testing.T) {
	p := newTestPool(t)
	require.NoError(t, p.RegisterDevice("s1", "", &fakeDevice{serial: "s1"}))

	err := p.DisconnectDevice("s1")
	assert.Error(t, err)
}

func TestEventBroadcast_NonBlockingOnFullChannel(t *testing.T) {
	p := newTestPool(t)
	sub := p.Subscribe()

	for i := 0; i < eventChannelCapacity+10; i++ {
		p.broadcast(Event{Kind: EventDeviceRegistered, Serial: "s1"})
	}

	select {
	case <-sub:
	case <-time.After(time.Second):
		t.Fatal("expected at least one buffered event")
	}
}
