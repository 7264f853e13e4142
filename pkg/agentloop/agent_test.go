package agentloop

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/sunO2/scrs/pkg/action"
	"github.com/sunO2/scrs/pkg/model"
)

func TestIndexOfFinish_FindsFinishAmongBatch(t *testing.T) {
	actions := []model.ParsedAction{
		{Kind: action.KindTap},
		{Kind: action.KindFinish, Result: "done"},
	}
	assert.Equal(t, 1, indexOfFinish(actions))
}

func TestIndexOfFinish_NoneReturnsNegativeOne(t *testing.T) {
	actions := []model.ParsedAction{{Kind: action.KindTap}, {Kind: action.KindBack}}
	assert.Equal(t, -1, indexOfFinish(actions))
}

func TestJoinStrings(t *testing.T) {
	assert.Equal(t, "a; b; c", joinStrings([]string{"a", "b", "c"}, "; "))
	assert.Equal(t, "", joinStrings(nil, "; "))
	assert.Equal(t, "solo", joinStrings([]string{"solo"}, "; "))
}
