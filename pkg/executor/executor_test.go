package executor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sunO2/scrs/pkg/action"
	"github.com/sunO2/scrs/pkg/device"
)

// fakeDevice fails Tap for the first failCount calls, then succeeds.
type fakeDevice struct {
	device.Device
	tapCalls  int
	failCount int
}

func (f *fakeDevice) Serial() string      { return "fake" }
func (f *fakeDevice) Name() string        { return "fake" }
func (f *fakeDevice) IsConnected() bool   { return true }
func (f *fakeDevice) Tap(ctx context.Context, x, y int) error {
	f.tapCalls++
	if f.tapCalls <= f.failCount {
		return device.NewError(device.ErrNonZeroExit, "simulated failure %d", f.tapCalls)
	}
	return nil
}

func TestExecuteWithRetry_ValidationFailureIsFatalNeverAttempted(t *testing.T) {
	fd := &fakeDevice{}
	exec := New(fd, DefaultConfig())

	_, err := exec.ExecuteWithRetry(context.Background(), action.Action{Kind: action.KindTap, X: -1, Y: 0})
	require.Error(t, err)
	assert.Equal(t, 0, fd.tapCalls)
}

func TestExecuteWithRetry_RetriesThenSucceeds(t *testing.T) {
	fd := &fakeDevice{failCount: 2}
	cfg := Config{MaxAttempts: 3, Backoff: Backoff{Kind: BackoffImmediate}}
	exec := New(fd, cfg)

	result, err := exec.ExecuteWithRetry(context.Background(), action.Action{Kind: action.KindTap, X: 1, Y: 1})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 3, fd.tapCalls)
}

func TestExecuteWithRetry_GivesUpAfterMaxAttempts(t *testing.T) {
	fd := &fakeDevice{failCount: 100}
	cfg := Config{MaxAttempts: 2, Backoff: Backoff{Kind: BackoffImmediate}}
	exec := New(fd, cfg)

	_, err := exec.ExecuteWithRetry(context.Background(), action.Action{Kind: action.KindTap, X: 1, Y: 1})
	require.Error(t, err)
	assert.Equal(t, 2, fd.tapCalls)
}

func TestBackoff_ExponentialCapsAtMax(t *testing.T) {
	b := Backoff{Kind: BackoffExponential, InitialMs: 1000, MaxMs: 3000, Multiplier: 2.0}

	assert.Equal(t, time.Second, b.Delay(1))
	assert.Equal(t, 2*time.Second, b.Delay(2))
	assert.Equal(t, 3*time.Second, b.Delay(3)) // would be 4s uncapped
	assert.Equal(t, 3*time.Second, b.Delay(4))
}

func TestBackoff_FixedAndImmediate(t *testing.T) {
	assert.Equal(t, time.Duration(0), Backoff{Kind: BackoffImmediate}.Delay(5))
	assert.Equal(t, 500*time.Millisecond, Backoff{Kind: BackoffFixed, FixedMs: 500}.Delay(1))
}
