// Package streaming multiplexes a device-side mirror subprocess over a
// Socket.IO-style namespace built directly on gorilla/websocket, rather
// than pulling in an unmaintained, transitive-only socket.io dependency
// for what is really just framed JSON over a websocket connection.
package streaming

import (
	"bufio"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net"
	"net/http"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	chunkChannelCapacity = 256
	readChunkSize        = 8 * 1024
	handshakeAckSize     = 1
	handshakeMetaSize    = 64
	restartSettleDelay   = 200 * time.Millisecond
)

// Envelope is the JSON event wrapper for control messages, mirroring a
// Socket.IO-style {event, data} frame.
type Envelope struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Session owns the four supervised tasks (server/read/write/broadcast) and
// client set for one device's stream: one waitgroup per streaming session.
type Session struct {
	serial     string
	jarPath    string
	hostPort   int // local TCP port the adb forward targets
	viewerPort int // local TCP port browsers connect to for the ws namespace
	logger     zerolog.Logger

	viewerServer *http.Server

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	writeMu   sync.Mutex
	writeConn net.Conn

	deviceName string

	clientsMu sync.Mutex
	clients   map[*websocket.Conn]bool

	chunks chan []byte
}

// New builds a session for serial, with the embedded mirror jar at jarPath
// pushed to the device at start time, forwarded to hostPort. viewerPort is
// the separate local port browsers connect to for the ws namespace
// (returned to callers as socketio_port by /connect).
func New(serial, jarPath string, hostPort, viewerPort int, logger zerolog.Logger) *Session {
	s := &Session{
		serial:     serial,
		jarPath:    jarPath,
		hostPort:   hostPort,
		viewerPort: viewerPort,
		logger:     logger.With().Str("serial", serial).Logger(),
		clients:    make(map[*websocket.Conn]bool),
	}
	s.startViewerServer()
	return s
}

// AddClient adds conn to the client set; if not running, start; if
// running, restart so the new viewer gets a fresh stream with the
// handshake, preserving the client set.
func (s *Session) AddClient(conn *websocket.Conn) {
	s.clientsMu.Lock()
	s.clients[conn] = true
	s.clientsMu.Unlock()

	s.mu.Lock()
	alreadyRunning := s.running
	s.mu.Unlock()

	if !alreadyRunning {
		if err := s.Start(context.Background()); err != nil {
			s.logger.Error().Err(err).Msg("failed to start streaming session")
		}
		return
	}

	s.restart()
}

// RemoveClient drops the connection; if the set becomes empty, the session
// is torn down entirely.
func (s *Session) RemoveClient(conn *websocket.Conn) {
	s.clientsMu.Lock()
	delete(s.clients, conn)
	empty := len(s.clients) == 0
	s.clientsMu.Unlock()

	if empty {
		s.Close()
	}
}

// Close tears down the session entirely: mirror tasks and the viewer
// websocket server, torn down when the last client disconnects.
func (s *Session) Close() {
	s.Stop()
	if s.viewerServer != nil {
		_ = s.viewerServer.Close()
	}
}

func (s *Session) restart() {
	s.Stop()
	time.Sleep(restartSettleDelay)
	if err := s.Start(context.Background()); err != nil {
		s.logger.Error().Err(err).Msg("failed to restart streaming session")
	}
}

// Start launches the four supervised tasks. Not re-entrant while already
// running.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.mu.Unlock()

	s.chunks = make(chan []byte, chunkChannelCapacity)

	if err := s.pushAndForward(runCtx); err != nil {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		cancel()
		return NewError(ErrPushFailed, "push/forward failed: %v", err)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.serverTask(runCtx)
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.readTask(runCtx)
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.writeTask(runCtx)
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.broadcastTask(runCtx)
	}()

	return nil
}

// Stop aborts all four tasks, clears the write-half mutex, and clears
// cached device metadata — but never touches the client set.
func (s *Session) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()

	s.writeMu.Lock()
	if s.writeConn != nil {
		_ = s.writeConn.Close()
		s.writeConn = nil
	}
	s.writeMu.Unlock()

	s.deviceName = ""
}

// pushAndForward pushes the embedded mirror jar and sets up the adb port
// forward from s.hostPort to the abstract socket; this setup half runs
// synchronously so Start can report failure.
func (s *Session) pushAndForward(ctx context.Context) error {
	if out, err := exec.CommandContext(ctx, "adb", "-s", s.serial, "push", s.jarPath, "/data/local/tmp/scrcpy-server.jar").CombinedOutput(); err != nil {
		return fmt.Errorf("adb push: %w: %s", err, out)
	}

	forwardSpec := fmt.Sprintf("tcp:%d", s.hostPort)
	if out, err := exec.CommandContext(ctx, "adb", "-s", s.serial, "forward", forwardSpec, "localabstract:scrcpy").CombinedOutput(); err != nil {
		return fmt.Errorf("adb forward: %w: %s", err, out)
	}

	return nil
}

// serverTask runs the mirror process on-device (audio off, fixed max
// frame dimension, info log level, forward-tunnel mode); output is
// captured to the per-device log.
func (s *Session) serverTask(ctx context.Context) {
	cmd := exec.CommandContext(ctx, "adb", "-s", s.serial, "shell",
		"CLASSPATH=/data/local/tmp/scrcpy-server.jar", "app_process", "/",
		"com.genymobile.scrcpy.Server", "3.3.4",
		"audio=false", "max_size=1920", "log_level=info", "tunnel_forward=true")

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		s.logger.Error().Err(err).Msg("mirror server stdout pipe failed")
		return
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		s.logger.Error().Err(err).Msg("mirror server failed to start")
		return
	}

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		s.logger.Debug().Str("component", "mirror").Msg(scanner.Text())
	}

	_ = cmd.Wait()
}

// readTask opens a TCP client to the forwarded port and runs the framed
// handshake state machine, then streams chunks onto the bounded channel.
func (s *Session) readTask(ctx context.Context) {
	// A handshake failure aborts all of the session's tasks; the next client
	// connect restarts the session.
	abort := func(err error, msg string) {
		s.logger.Error().Err(err).Msg(msg)
		s.mu.Lock()
		cancel := s.cancel
		s.mu.Unlock()
		if cancel != nil {
			cancel()
		}
	}

	conn, err := dialWithRetry(ctx, s.hostPort)
	if err != nil {
		abort(err, "streaming handshake failed: could not connect")
		return
	}
	defer conn.Close()

	reader := bufio.NewReader(conn)

	ack := make([]byte, handshakeAckSize)
	if _, err := io.ReadFull(reader, ack); err != nil {
		abort(err, "streaming handshake failed: ack")
		return
	}
	if ack[0] != 0 {
		s.logger.Warn().Int("ack", int(ack[0])).Msg("unexpected ack byte, continuing anyway")
	}

	meta := make([]byte, handshakeMetaSize)
	if _, err := io.ReadFull(reader, meta); err != nil {
		abort(err, "streaming handshake failed: device metadata")
		return
	}
	name := strings.TrimRight(string(meta), "\x00")
	s.deviceName = name
	s.emit(Envelope{Event: "scrcpy_device_meta", Data: name})

	buf := make([]byte, readChunkSize)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		n, err := reader.Read(buf)
		if err != nil {
			if err != io.EOF {
				s.logger.Warn().Err(err).Msg("streaming read task exiting")
			}
			return
		}

		chunk := make([]byte, n)
		copy(chunk, buf[:n])

		select {
		case s.chunks <- chunk:
		case <-ctx.Done():
			return
		}
	}
}

// writeTask opens the second TCP client used for control-packet writes,
// moving the write half into the per-session mutex.
func (s *Session) writeTask(ctx context.Context) {
	conn, err := dialWithRetry(ctx, s.hostPort)
	if err != nil {
		s.logger.Error().Err(err).Msg("write channel connect failed")
		return
	}

	s.writeMu.Lock()
	s.writeConn = conn
	s.writeMu.Unlock()

	<-ctx.Done()
}

// broadcastTask consumes the chunk channel, base64-encodes each chunk, and
// emits scrcpy events to every connected viewer.
func (s *Session) broadcastTask(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case chunk := <-s.chunks:
			s.emit(Envelope{Event: "scrcpy", Data: base64.StdEncoding.EncodeToString(chunk)})
		}
	}
}

// Port returns the port this session's viewers connect through, reported
// to callers as socketio_port.
func (s *Session) Port() int {
	return s.viewerPort
}

func (s *Session) emit(env Envelope) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()

	for conn := range s.clients {
		if err := conn.WriteJSON(env); err != nil {
			s.logger.Debug().Err(err).Msg("failed to write to viewer, dropping on next disconnect")
		}
	}
}

// HandleControlPacket writes raw bytes directly to the write half under the
// mutex; the bytes are opaque to the session layer.
func (s *Session) HandleControlPacket(payload []byte) Envelope {
	s.writeMu.Lock()
	conn := s.writeConn
	s.writeMu.Unlock()

	if conn == nil {
		return Envelope{Event: "scrcpy_ctl_error", Data: map[string]string{"reason": "session not ready"}}
	}

	n, err := conn.Write(payload)
	if err != nil {
		return Envelope{Event: "scrcpy_ctl_error", Data: map[string]string{"error": err.Error()}}
	}

	return Envelope{Event: "scrcpy_ctl_ack", Data: map[string]int{"length": n}}
}

func dialWithRetry(ctx context.Context, port int) (net.Conn, error) {
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	deadline := time.Now().Add(3 * time.Second)

	var lastErr error
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		conn, err := net.DialTimeout("tcp", addr, 500*time.Millisecond)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		time.Sleep(100 * time.Millisecond)
	}

	return nil, lastErr
}
