package action

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_SwipeDurationBounds(t *testing.T) {
	cases := []struct {
		name string
		ms   int
		ok   bool
	}{
		{"below minimum", minSwipeMs - 1, false},
		{"at minimum", minSwipeMs, true},
		{"at maximum", maxSwipeMs, true},
		{"above maximum", maxSwipeMs + 1, false},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			a := Action{Kind: KindSwipe, StartX: 0, StartY: 0, EndX: 10, EndY: 10, DurationMs: c.ms}
			err := a.Validate()
			if c.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidate_WaitMaxDuration(t *testing.T) {
	assert.NoError(t, Action{Kind: KindWait, DurationMs: maxWaitMs}.Validate())

	err := Action{Kind: KindWait, DurationMs: maxWaitMs + 1}.Validate()
	require.Error(t, err)
	actionErr, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, ErrDurationTooLong, actionErr.Kind)
}

func TestValidate_FinishRequiresResult(t *testing.T) {
	assert.Error(t, Action{Kind: KindFinish}.Validate())
	assert.NoError(t, Action{Kind: KindFinish, Result: "done"}.Validate())
}

func TestValidate_CoordinateSanityBound(t *testing.T) {
	assert.Error(t, Action{Kind: KindTap, X: maxCoord + 1, Y: 0}.Validate())
	assert.Error(t, Action{Kind: KindTap, X: -1, Y: 0}.Validate())
	assert.NoError(t, Action{Kind: KindTap, X: maxCoord, Y: maxCoord}.Validate())
}

func TestValidate_ScrollRejectsBadDirection(t *testing.T) {
	a := Action{Kind: KindScroll, Direction: "sideways", DistancePct: 50, DurationMs: 300}
	assert.Error(t, a.Validate())
}

func TestEstimateDuration_MatchesDeclaredDurations(t *testing.T) {
	a := Action{Kind: KindSwipe, DurationMs: 700}
	assert.Equal(t, int64(700), a.EstimateDuration())
}
