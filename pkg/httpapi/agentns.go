package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/sunO2/scrs/pkg/devicepool"
)

// AgentNamespace is the process-wide Socket.IO-style namespace on port 4000
//: one gorilla/websocket hub keyed by connection instead of by
// device serial, reusing the {event, data} envelope from pkg/streaming.
type AgentNamespace struct {
	pool   *devicepool.Pool
	logger zerolog.Logger

	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]bool
}

// NewAgentNamespace wires the namespace to the pool it dispatches into.
func NewAgentNamespace(pool *devicepool.Pool, logger zerolog.Logger) *AgentNamespace {
	return &AgentNamespace{
		pool:    pool,
		logger:  logger,
		clients: make(map[*websocket.Conn]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// ServeHTTP upgrades to a websocket connection and dispatches incoming
// events until the client disconnects.
func (n *AgentNamespace) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := n.upgrader.Upgrade(w, r, nil)
	if err != nil {
		n.logger.Warn().Err(err).Msg("agent namespace upgrade failed")
		return
	}

	n.mu.Lock()
	n.clients[conn] = true
	n.mu.Unlock()

	defer func() {
		n.mu.Lock()
		delete(n.clients, conn)
		n.mu.Unlock()
		_ = conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var evt envelope
		if err := json.Unmarshal(raw, &evt); err != nil {
			continue
		}

		switch evt.Event {
		case "agent/start":
			n.handleStart(conn, evt.Data)
		case "agent/devices":
			n.handleDevices(conn)
		case "agent/stop":
			n.handleStop(conn, evt.Data)
		}
	}
}

type agentStartRequest struct {
	DeviceSerial string `json:"device_serial"`
	Task         string `json:"task"`
}

type agentStartResponse struct {
	Success      bool   `json:"success"`
	AgentID      string `json:"agent_id,omitempty"`
	DeviceSerial string `json:"device_serial"`
	Task         string `json:"task"`
	Error        string `json:"error,omitempty"`
}

// handleStart is an idempotent register-then-get-or-create-agent-then-start
//: if the serial is not yet registered it is skipped, since
// registration requires a device.Device the namespace does not construct;
// get_agent is itself idempotent, so repeated agent/start calls for the same
// serial reuse the running agent.
func (n *AgentNamespace) handleStart(conn *websocket.Conn, raw json.RawMessage) {
	var req agentStartRequest
	resp := agentStartResponse{DeviceSerial: req.DeviceSerial, Task: req.Task}

	if err := json.Unmarshal(raw, &req); err != nil {
		resp.Error = "malformed request"
		n.reply(conn, "agent/start/response", resp)
		return
	}
	resp.DeviceSerial = req.DeviceSerial
	resp.Task = req.Task

	agent, err := n.pool.GetAgent(req.DeviceSerial, req.Task)
	if err != nil {
		resp.Error = err.Error()
		n.reply(conn, "agent/start/response", resp)
		return
	}

	if err := agent.Start(context.Background()); err != nil {
		resp.Error = err.Error()
		n.reply(conn, "agent/start/response", resp)
		return
	}

	_ = n.pool.UpdateTaskStatus(req.DeviceSerial, agent.ID(), req.Task)

	resp.Success = true
	resp.AgentID = agent.ID()
	n.reply(conn, "agent/start/response", resp)
}

type agentDeviceSummary struct {
	Serial      string             `json:"serial"`
	Name        string             `json:"name"`
	Status      devicepool.Status  `json:"status"`
	HasAgent    bool               `json:"has_agent"`
	LastUsed    int64              `json:"last_used"`
	IdleSeconds float64            `json:"idle_seconds"`
}

type agentDevicesResponse struct {
	Success bool                 `json:"success"`
	Devices []agentDeviceSummary `json:"devices"`
}

func (n *AgentNamespace) handleDevices(conn *websocket.Conn) {
	entries := n.pool.Entries()
	devices := make([]agentDeviceSummary, 0, len(entries))
	for _, e := range entries {
		devices = append(devices, agentDeviceSummary{
			Serial:      e.Serial,
			Name:        e.Name,
			Status:      e.Status,
			HasAgent:    e.Agent != nil,
			LastUsed:    e.LastUsed.Unix(),
			IdleSeconds: time.Since(e.LastUsed).Seconds(),
		})
	}
	n.reply(conn, "agent/devices/response", agentDevicesResponse{Success: true, Devices: devices})
}

type agentStopRequest struct {
	DeviceSerial string `json:"device_serial"`
}

type agentStopResponse struct {
	Success      bool   `json:"success"`
	DeviceSerial string `json:"device_serial"`
	Error        string `json:"error,omitempty"`
}

func (n *AgentNamespace) handleStop(conn *websocket.Conn, raw json.RawMessage) {
	var req agentStopRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		n.reply(conn, "agent/stop/response", agentStopResponse{Error: "malformed request"})
		return
	}

	resp := agentStopResponse{DeviceSerial: req.DeviceSerial}
	if err := n.pool.ReleaseAgent(req.DeviceSerial); err != nil {
		resp.Error = err.Error()
		n.reply(conn, "agent/stop/response", resp)
		return
	}

	resp.Success = true
	n.reply(conn, "agent/stop/response", resp)
}

func (n *AgentNamespace) reply(conn *websocket.Conn, event string, data interface{}) {
	payload, err := json.Marshal(data)
	if err != nil {
		n.logger.Error().Err(err).Msg("failed to marshal agent namespace response")
		return
	}
	if err := conn.WriteJSON(envelope{Event: event, Data: payload}); err != nil {
		n.logger.Debug().Err(err).Msg("failed to write agent namespace response")
	}
}
