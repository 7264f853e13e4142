// Package devicepool is the central device registry: a map-guarded
// RWMutex tracking id, status, a back-reference to the live agent (if
// any), and time.Time bookkeeping per entry.
package devicepool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sunO2/scrs/pkg/agentloop"
	"github.com/sunO2/scrs/pkg/device"
	"github.com/sunO2/scrs/pkg/executor"
	"github.com/sunO2/scrs/pkg/model"
	"github.com/sunO2/scrs/pkg/streaming"
)

// Config bounds the pool's behaviour.
type Config struct {
	MaxConnections int

	IdleThreshold time.Duration // eligible for agent-handle cleanup past this
	HealthInterval time.Duration
	CleanupInterval time.Duration

	ModelConfig  model.Config
	AgentConfig  agentloop.Config
	JarPath      string
	StreamBasePort int

	ResolvePackage func(string) (string, error)
}

// Pool is the device registry.
type Pool struct {
	mu      sync.RWMutex
	entries map[string]*Entry

	cfg    Config
	events chan Event
	logger zerolog.Logger

	scheduler gocron.Scheduler

	nextPort int
}

// New builds a Pool and starts its background maintenance scheduler
// (go-co-op/gocron/v2) that periodically runs the idle cleanup and
// recomputes the health snapshot; the scheduled health check does not act
// on unhealthy entries.
func New(cfg Config, logger zerolog.Logger) (*Pool, error) {
	if cfg.IdleThreshold == 0 {
		cfg.IdleThreshold = 5 * time.Minute
	}
	if cfg.HealthInterval == 0 {
		cfg.HealthInterval = 30 * time.Second
	}
	if cfg.CleanupInterval == 0 {
		cfg.CleanupInterval = time.Minute
	}
	if cfg.StreamBasePort == 0 {
		cfg.StreamBasePort = 27200
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	p := &Pool{
		entries:  make(map[string]*Entry),
		cfg:      cfg,
		events:   make(chan Event, eventChannelCapacity),
		logger:   logger,
		scheduler: scheduler,
		nextPort: cfg.StreamBasePort,
	}

	if _, err := scheduler.NewJob(
		gocron.DurationJob(cfg.CleanupInterval),
		gocron.NewTask(func() { p.cleanupIdleDevices() }),
	); err != nil {
		return nil, fmt.Errorf("schedule idle cleanup: %w", err)
	}

	if _, err := scheduler.NewJob(
		gocron.DurationJob(cfg.HealthInterval),
		gocron.NewTask(func() { p.healthCheck() }),
	); err != nil {
		return nil, fmt.Errorf("schedule health check: %w", err)
	}

	scheduler.Start()

	return p, nil
}

func (p *Pool) Shutdown(ctx context.Context) error {
	return p.scheduler.Shutdown()
}

// RegisterDevice fails if already present or max_connections would be
// exceeded.
func (p *Pool) RegisterDevice(serial, name string, dev device.Device) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.entries[serial]; exists {
		return NewError(ErrDeviceAlreadyExists, "device %q already registered", serial)
	}
	if p.cfg.MaxConnections > 0 && len(p.entries) >= p.cfg.MaxConnections {
		return NewError(ErrPoolFull, "pool at capacity (%d)", p.cfg.MaxConnections)
	}

	p.entries[serial] = &Entry{
		Serial:       serial,
		Name:         name,
		Dev:          dev,
		Status:       StatusRegistered,
		RegisteredAt: time.Now(),
		LastUsed:     time.Now(),
	}

	p.broadcast(Event{Kind: EventDeviceRegistered, Serial: serial})
	return nil
}

// UnregisterDevice stops a live agent, drops the streaming session if any,
// and removes the entry.
func (p *Pool) UnregisterDevice(serial string) error {
	p.mu.Lock()
	entry, ok := p.entries[serial]
	if !ok {
		p.mu.Unlock()
		return NewError(ErrDeviceNotFound, "device %q not registered", serial)
	}
	delete(p.entries, serial)
	p.mu.Unlock()

	if entry.Agent != nil {
		entry.Agent.Stop()
	}
	if entry.Session != nil {
		entry.Session.Close()
	}
	return nil
}

// ConnectDevice is idempotent: Registered→Connecting→Connected, creating
// the streaming session if absent.
func (p *Pool) ConnectDevice(serial string) error {
	p.mu.Lock()
	entry, ok := p.entries[serial]
	if !ok {
		p.mu.Unlock()
		return NewError(ErrDeviceNotFound, "device %q not registered", serial)
	}

	if entry.Status == StatusConnected || entry.Status == StatusBusy {
		p.mu.Unlock()
		return nil
	}

	entry.Status = StatusConnecting
	if entry.Session == nil {
		forwardPort := p.nextPort
		viewerPort := p.nextPort + 1
		p.nextPort += 2
		entry.Session = streaming.New(serial, p.cfg.JarPath, forwardPort, viewerPort, p.logger)
	}
	entry.Status = StatusConnected
	entry.LastUsed = time.Now()
	p.mu.Unlock()

	p.broadcast(Event{Kind: EventDeviceConnected, Serial: serial})
	return nil
}

// DisconnectDevice reverses ConnectDevice: drops the streaming session and
// any live agent, transitions to Disconnected.
func (p *Pool) DisconnectDevice(serial string) error {
	p.mu.Lock()
	entry, ok := p.entries[serial]
	if !ok {
		p.mu.Unlock()
		return NewError(ErrDeviceNotFound, "device %q not registered", serial)
	}
	if entry.Status != StatusConnected && entry.Status != StatusBusy {
		p.mu.Unlock()
		return NewError(ErrDeviceNotConnected, "device %q is not connected", serial)
	}

	agent := entry.Agent
	session := entry.Session
	entry.Agent = nil
	entry.Session = nil
	entry.Status = StatusDisconnected
	p.mu.Unlock()

	if agent != nil {
		agent.Stop()
	}
	if session != nil {
		session.Close()
	}

	p.broadcast(Event{Kind: EventDeviceDisconnected, Serial: serial})
	return nil
}

// GetAgent is the lazy-create gateway: ensures the device is connected,
// reuses an existing agent if any, else constructs one with a freshly
// minted id, records the handle, and flips status to Busy.
func (p *Pool) GetAgent(serial, task string) (*agentloop.Agent, error) {
	if err := p.ConnectDevice(serial); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	entry, ok := p.entries[serial]
	if !ok {
		return nil, NewError(ErrDeviceNotFound, "device %q not registered", serial)
	}

	if entry.Agent != nil {
		return entry.Agent, nil
	}

	id := uuid.NewString()
	client := model.New(p.cfg.ModelConfig)
	exec := executor.New(entry.Dev, executor.DefaultConfig())
	agent := agentloop.New(id, task, entry.Dev, client, exec, p.cfg.ResolvePackage, p.cfg.AgentConfig)

	entry.Agent = agent
	entry.Status = StatusBusy
	entry.LastUsed = time.Now()

	p.broadcast(Event{Kind: EventAgentCreated, Serial: serial, Message: id})
	return agent, nil
}

// ReleaseAgent stops the agent, clears its handle, flips status back to
// Connected, clears the current task, and broadcasts AgentDestroyed.
func (p *Pool) ReleaseAgent(serial string) error {
	p.mu.Lock()
	entry, ok := p.entries[serial]
	if !ok {
		p.mu.Unlock()
		return NewError(ErrDeviceNotFound, "device %q not registered", serial)
	}

	agent := entry.Agent
	entry.Agent = nil
	entry.Status = StatusConnected
	entry.CurrentTaskID = ""
	entry.CurrentTaskDescription = ""
	p.mu.Unlock()

	if agent != nil {
		agent.Stop()
	}

	p.broadcast(Event{Kind: EventAgentDestroyed, Serial: serial})
	return nil
}

func (p *Pool) UpdateTaskStatus(serial, taskID, description string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	entry, ok := p.entries[serial]
	if !ok {
		return NewError(ErrDeviceNotFound, "device %q not registered", serial)
	}

	entry.CurrentTaskID = taskID
	entry.CurrentTaskDescription = description
	entry.LastUsed = time.Now()

	p.broadcast(Event{Kind: EventTaskStarted, Serial: serial, Message: taskID})
	return nil
}

func (p *Pool) MarkTaskCompleted(serial string) {
	p.mu.Lock()
	if entry, ok := p.entries[serial]; ok {
		entry.CurrentTaskID = ""
		entry.CurrentTaskDescription = ""
	}
	p.mu.Unlock()
	p.broadcast(Event{Kind: EventTaskCompleted, Serial: serial})
}

func (p *Pool) MarkTaskFailed(serial, reason string) {
	p.mu.Lock()
	if entry, ok := p.entries[serial]; ok {
		entry.CurrentTaskID = ""
		entry.CurrentTaskDescription = ""
	}
	p.mu.Unlock()
	p.broadcast(Event{Kind: EventTaskFailed, Serial: serial, Message: reason})
}

// cleanupIdleDevices considers only entries without an agent: it broadcasts
// DeviceIdle for those idle past IdleThreshold, and disconnects those idle
// past twice that threshold. Entries holding an agent are left untouched.
func (p *Pool) cleanupIdleDevices() {
	p.mu.Lock()
	var toDisconnect []string
	for serial, entry := range p.entries {
		if entry.Agent != nil {
			continue
		}
		idle := time.Since(entry.LastUsed)
		if idle <= p.cfg.IdleThreshold {
			continue
		}

		p.broadcast(Event{Kind: EventDeviceIdle, Serial: serial})

		if idle > 2*p.cfg.IdleThreshold && entry.Status != StatusDisconnected {
			toDisconnect = append(toDisconnect, serial)
		}
	}
	p.mu.Unlock()

	for _, serial := range toDisconnect {
		if err := p.DisconnectDevice(serial); err != nil {
			p.logger.Warn().Err(err).Str("serial", serial).Msg("idle disconnect failed")
		}
	}
}

// healthCheck returns a per-serial bool: streaming session present AND
// status in {Connected, Busy}.
func (p *Pool) healthCheck() map[string]bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	result := make(map[string]bool, len(p.entries))
	for serial, entry := range p.entries {
		healthy := entry.Session != nil && (entry.Status == StatusConnected || entry.Status == StatusBusy)
		result[serial] = healthy
	}
	return result
}

// HealthCheck exposes the per-serial health snapshot to callers (e.g. the
// HTTP layer), reusing the scheduled job's computation.
func (p *Pool) HealthCheck() map[string]bool {
	return p.healthCheck()
}

// Entries returns a snapshot of all registered entries' serial/status,
// used by the /devices HTTP handler.
func (p *Pool) Entries() []Entry {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]Entry, 0, len(p.entries))
	for _, e := range p.entries {
		out = append(out, *e)
	}
	return out
}

// Entry looks up one entry by serial.
func (p *Pool) Entry(serial string) (Entry, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, ok := p.entries[serial]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}
