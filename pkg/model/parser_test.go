package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sunO2/scrs/pkg/action"
)

func TestParseResponse_FinishWinsOverDo(t *testing.T) {
	raw := `<thinking>done here</thinking>
do(action=tap, x=10, y=20)
finish(message="all set")`

	result := ParseResponse(raw, nil)

	require.Len(t, result.Actions, 1)
	assert.Equal(t, action.KindFinish, result.Actions[0].Kind)
	assert.Equal(t, "all set", result.Actions[0].Result)
	assert.Equal(t, "done here", result.Reasoning)
}

func TestParseResponse_FinishMultilineMessage(t *testing.T) {
	raw := "finish(message=\"line one\nline two\")"
	result := ParseResponse(raw, nil)

	require.Len(t, result.Actions, 1)
	assert.Contains(t, result.Actions[0].Result, "line one")
	assert.Contains(t, result.Actions[0].Result, "line two")
}

func TestParseResponse_FinishBareLiteral(t *testing.T) {
	result := ParseResponse(`finish("task complete")`, nil)

	require.Len(t, result.Actions, 1)
	assert.Equal(t, "task complete", result.Actions[0].Result)
}

func TestParseResponse_MultiDoBatchPreservesOrder(t *testing.T) {
	raw := `do(action=tap, x=1, y=1)
do(action=wait, duration=1)
do(action=back)`

	result := ParseResponse(raw, nil)

	require.Len(t, result.Actions, 3)
	assert.Equal(t, action.KindTap, result.Actions[0].Kind)
	assert.Equal(t, action.KindWait, result.Actions[1].Kind)
	assert.Equal(t, action.KindBack, result.Actions[2].Kind)
}

func TestParseResponse_DoWithParensInQuotedValue(t *testing.T) {
	raw := `do(action=type, text="press (the) button")`
	result := ParseResponse(raw, nil)

	require.Len(t, result.Actions, 1)
	assert.Equal(t, "press (the) button", result.Actions[0].Text)
}

func TestParseResponse_InvalidDoIsSkippedRestProceeds(t *testing.T) {
	raw := `do(action=tap, x=-1, y=0)
do(action=back)`

	result := ParseResponse(raw, nil)

	require.Len(t, result.Actions, 1)
	assert.Equal(t, action.KindBack, result.Actions[0].Kind)
}

func TestParseResponse_NoCallsYieldsEmptyNonError(t *testing.T) {
	result := ParseResponse("just some prose, no calls here", nil)
	assert.Empty(t, result.Actions)
}

func TestParseResponse_ElementCoordinatePair(t *testing.T) {
	raw := `do(action=tap, element=[50,60])`
	result := ParseResponse(raw, nil)

	require.Len(t, result.Actions, 1)
	assert.Equal(t, 50, result.Actions[0].X)
	assert.Equal(t, 60, result.Actions[0].Y)
}
