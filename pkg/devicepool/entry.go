package devicepool

import (
	"time"

	"github.com/sunO2/scrs/pkg/agentloop"
	"github.com/sunO2/scrs/pkg/device"
	"github.com/sunO2/scrs/pkg/streaming"
)

// Status is the pool entry's connection/activity state.
type Status string

const (
	StatusRegistered  Status = "registered"
	StatusConnecting  Status = "connecting"
	StatusConnected   Status = "connected"
	StatusBusy        Status = "busy"
	StatusDisconnected Status = "disconnected"
	StatusOffline     Status = "offline"
	StatusError       Status = "error"
)

// Entry is one device pool registration: an id, status flags, a
// back-reference to the live device/agent, and time.Time bookkeeping.
//
// Invariant: a non-nil Agent implies Status == StatusBusy; Status ==
// StatusConnecting is only ever observed from inside ConnectDevice.
type Entry struct {
	Serial string
	Name   string
	Dev    device.Device

	Status     Status
	ErrorMsg   string
	LastUsed   time.Time
	RegisteredAt time.Time

	Session *streaming.Session
	Agent   *agentloop.Agent

	CurrentTaskID          string
	CurrentTaskDescription string
}

func (e *Entry) idleSeconds() float64 {
	return time.Since(e.LastUsed).Seconds()
}
