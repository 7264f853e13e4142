package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sunO2/scrs/pkg/device"
	"github.com/sunO2/scrs/pkg/devicepool"
)

type fakeDevice struct {
	device.Device
	serial string
}

func (f *fakeDevice) Serial() string    { return f.serial }
func (f *fakeDevice) Name() string      { return f.serial }
func (f *fakeDevice) IsConnected() bool { return true }

func newTestServer(t *testing.T) *Server {
	t.Helper()
	pool, err := devicepool.New(devicepool.Config{MaxConnections: 4}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Shutdown(context.Background()) })
	require.NoError(t, pool.RegisterDevice("s1", "phone one", &fakeDevice{serial: "s1"}))
	return NewServer(pool)
}

func TestHandleListDevices_ReturnsRegisteredDevice(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/devices", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var env Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.True(t, env.Success)
}

func TestHandleConnect_MissingSerialIsBadRequest(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/connect", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleDeviceStatus_UnknownSerialIsNotFound(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/device/unknown/status", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatusForError_MapsPoolErrorKinds(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, statusForError(devicepool.NewError(devicepool.ErrDeviceNotFound, "x")))
	assert.Equal(t, http.StatusConflict, statusForError(devicepool.NewError(devicepool.ErrDeviceAlreadyExists, "x")))
	assert.Equal(t, http.StatusInternalServerError, statusForError(assert.AnError))
}
