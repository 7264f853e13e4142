package device

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubDevice(t *testing.T, responses map[string][]byte) *ADBDevice {
	t.Helper()
	d := NewADBDevice("emulator-5554", "test-device", Resolution{})
	d.runner = func(_ context.Context, name string, args ...string) ([]byte, error) {
		key := strings.Join(args, " ")
		for prefix, out := range responses {
			if strings.Contains(key, prefix) {
				return out, nil
			}
		}
		return nil, NewError(ErrNonZeroExit, "unstubbed command: %s %v", name, args)
	}
	return d
}

func TestScreenSize_ParsesWmSizeOutput(t *testing.T) {
	d := stubDevice(t, map[string][]byte{
		"wm size": []byte("Physical size: 1080x2400\n"),
	})

	w, h, err := d.ScreenSize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1080, w)
	assert.Equal(t, 2400, h)
}

func TestToPhysical_IdentityWithoutOverride(t *testing.T) {
	d := stubDevice(t, nil)
	px, py := d.toPhysical(100, 200)
	assert.Equal(t, 100, px)
	assert.Equal(t, 200, py)
}

func TestToPhysical_ScalesWithOverride(t *testing.T) {
	d := NewADBDevice("emulator-5554", "", Resolution{Width: 1000, Height: 2000})
	d.runner = func(_ context.Context, _ string, args ...string) ([]byte, error) {
		if strings.Contains(strings.Join(args, " "), "wm size") {
			return []byte("Physical size: 2000x4000\n"), nil
		}
		return nil, nil
	}

	_, _, err := d.ScreenSize(context.Background())
	require.NoError(t, err)

	px, py := d.toPhysical(500, 1000)
	assert.Equal(t, 1000, px) // 500 * 2000/1000
	assert.Equal(t, 2000, py) // 1000 * 4000/2000
}

func TestCurrentApp_ParsesDumpsysOutput(t *testing.T) {
	d := stubDevice(t, map[string][]byte{
		"dumpsys window windows": []byte("mCurrentFocus=Window{abc u0 com.example.app/com.example.app.MainActivity}"),
	})

	pkg, err := d.CurrentApp(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "com.example.app", pkg)
}

func TestLaunchApp_NoActivityIsError(t *testing.T) {
	d := stubDevice(t, map[string][]byte{
		"monkey": []byte("No activities found to run, monkey aborted."),
	})

	err := d.LaunchApp(context.Background(), "com.example.app")
	require.Error(t, err)
	devErr, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, ErrUnknownPackage, devErr.Kind)
}

func TestIsConnected_ReadsGetState(t *testing.T) {
	d := stubDevice(t, map[string][]byte{
		"get-state": []byte("device\n"),
	})
	assert.True(t, d.IsConnected())
}
