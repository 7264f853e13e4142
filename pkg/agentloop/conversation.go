package agentloop

import "sync"

// Conversation is the agent's ordered message list, a thin mutex-guarded
// wrapper over our own Message/Role types rather than raw OpenAI message
// params.
type Conversation struct {
	mu       sync.Mutex
	messages []Message
}

func NewConversation() *Conversation {
	return &Conversation{}
}

func (c *Conversation) Add(msgs ...Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, msgs...)
}

// Snapshot returns a copy of the full message list, safe to hand to a model
// query running concurrently with further Add calls.
func (c *Conversation) Snapshot() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

// RingContext is a fixed-capacity FIFO-eviction buffer kept alongside the
// full Conversation for subsystems that want recent context without
// retaining the unbounded raw history (default cap 50).
type RingContext struct {
	mu       sync.Mutex
	cap      int
	entries  []Message
}

func NewRingContext(capacity int) *RingContext {
	if capacity <= 0 {
		capacity = 50
	}
	return &RingContext{cap: capacity}
}

func (r *RingContext) Push(m Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, m)
	if len(r.entries) > r.cap {
		r.entries = r.entries[len(r.entries)-r.cap:]
	}
}

func (r *RingContext) Entries() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.entries))
	copy(out, r.entries)
	return out
}
