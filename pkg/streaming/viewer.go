package streaming

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// startViewerServer launches the per-session ws namespace on viewerPort.
// One namespace per device on its own dynamically allocated port.
func (s *Session) startViewerServer() {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleViewerConn)

	s.viewerServer = &http.Server{
		Addr:    fmt.Sprintf("127.0.0.1:%d", s.viewerPort),
		Handler: mux,
	}

	go func() {
		if err := s.viewerServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("viewer websocket server exited")
		}
	}()
}

// clientEvent is the inbound {event, data} envelope clients send.
type clientEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func (s *Session) handleViewerConn(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("viewer websocket upgrade failed")
		return
	}

	s.AddClient(conn)
	defer s.RemoveClient(conn)
	defer conn.Close()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var evt clientEvent
		if err := json.Unmarshal(raw, &evt); err != nil {
			continue
		}

		switch evt.Event {
		case "test":
			_ = conn.WriteJSON(Envelope{Event: "test_response", Data: json.RawMessage(evt.Data)})
		case "scrcpy_ctl":
			var payload []byte
			if err := json.Unmarshal(evt.Data, &payload); err != nil {
				_ = conn.WriteJSON(Envelope{Event: "scrcpy_ctl_error", Data: map[string]string{"error": "malformed payload"}})
				continue
			}
			_ = conn.WriteJSON(s.HandleControlPacket(payload))
		}
	}
}
