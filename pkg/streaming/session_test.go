package streaming

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestHandleControlPacket_NotReadyBeforeWriteConnEstablished(t *testing.T) {
	s := &Session{logger: zerolog.Nop()}

	env := s.HandleControlPacket([]byte{0x01, 0x02})
	assert.Equal(t, "scrcpy_ctl_error", env.Event)
}

func TestPort_ReturnsViewerPortNotHostPort(t *testing.T) {
	s := &Session{hostPort: 27200, viewerPort: 27201}
	assert.Equal(t, 27201, s.Port())
}
