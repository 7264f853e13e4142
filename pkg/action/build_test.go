package action

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromFields_ElementAdapter(t *testing.T) {
	a, err := FromFields("tap", map[string]interface{}{"element": []int{100, 200}}, nil)
	require.NoError(t, err)
	assert.Equal(t, 100, a.X)
	assert.Equal(t, 200, a.Y)
}

func TestFromFields_BareXY(t *testing.T) {
	a, err := FromFields("tap", map[string]interface{}{"x": 10, "y": 20}, nil)
	require.NoError(t, err)
	assert.Equal(t, 10, a.X)
	assert.Equal(t, 20, a.Y)
}

func TestFromFields_SwipeStartEndAliases(t *testing.T) {
	a, err := FromFields("swipe", map[string]interface{}{
		"start": []int{0, 0},
		"end":   []int{100, 100},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, a.StartX)
	assert.Equal(t, 100, a.EndX)
	assert.Equal(t, 500, a.DurationMs) // default
}

func TestFromFields_LaunchResolvesAppAlias(t *testing.T) {
	resolve := func(alias string) (string, error) { return "com.example." + alias, nil }
	a, err := FromFields("launch", map[string]interface{}{"app": "wechat"}, resolve)
	require.NoError(t, err)
	assert.Equal(t, "com.example.wechat", a.Package)
}

func TestFromFields_LaunchWithoutResolverRejectsAppAlias(t *testing.T) {
	_, err := FromFields("launch", map[string]interface{}{"app": "wechat"}, nil)
	assert.Error(t, err)
}

func TestFromFields_WaitSecondsToMillis(t *testing.T) {
	a, err := FromFields("wait", map[string]interface{}{"duration": 2}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2000, a.DurationMs)
}

func TestFromFields_FinishAliasPriority(t *testing.T) {
	a, err := FromFields("finish", map[string]interface{}{
		"message": "done",
		"reason":  "ignored",
		"result":  "also ignored",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "done", a.Result)
}

func TestFromFields_UnknownNameRejected(t *testing.T) {
	_, err := FromFields("frobnicate", map[string]interface{}{}, nil)
	assert.Error(t, err)
}

func TestFromFields_ValidationFailurePropagates(t *testing.T) {
	_, err := FromFields("tap", map[string]interface{}{"x": -1, "y": 0}, nil)
	assert.Error(t, err)
}

func TestResolveKind_Aliases(t *testing.T) {
	for _, name := range []string{"LongPress", "long_press", "DoubleTap", "PressKey"} {
		_, ok := ResolveKind(name)
		assert.Truef(t, ok, "expected alias %q to resolve", name)
	}
}
