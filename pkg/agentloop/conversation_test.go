package agentloop

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/sunO2/scrs/pkg/model"
)

func TestConversation_SnapshotIsIndependentCopy(t *testing.T) {
	c := NewConversation()
	c.Add(Message{Role: model.RoleUser, Content: "first"})

	snap := c.Snapshot()
	c.Add(Message{Role: model.RoleUser, Content: "second"})

	assert.Len(t, snap, 1)
	assert.Equal(t, 2, c.Len())
}

func TestRingContext_EvictsOldestPastCapacity(t *testing.T) {
	r := NewRingContext(3)
	for i := 0; i < 5; i++ {
		r.Push(Message{Role: model.RoleAssistant, Content: string(rune('a' + i))})
	}

	entries := r.Entries()
	assert.Len(t, entries, 3)
	assert.Equal(t, "c", entries[0].Content)
	assert.Equal(t, "e", entries[2].Content)
}

func TestRingContext_DefaultCapacityWhenNonPositive(t *testing.T) {
	r := NewRingContext(0)
	assert.Equal(t, 50, r.cap)
}

func TestState_Terminal(t *testing.T) {
	assert.True(t, StateCompleted.Terminal())
	assert.True(t, StateFailed.Terminal())
	assert.False(t, StateAnalyzing.Terminal())
	assert.False(t, StateIdle.Terminal())
}
