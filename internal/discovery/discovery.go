// Package discovery periodically scans `adb devices` and reconciles the
// result against the device pool, registering newly attached serials and
// unregistering ones no longer reported by adb. This is the pool's only
// caller of register_device/unregister_device outside of tests; the HTTP
// surface only connects/disconnects/lists what discovery has already
// registered.
package discovery

import (
	"bufio"
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sunO2/scrs/pkg/device"
	"github.com/sunO2/scrs/pkg/devicepool"
)

// Scanner owns the background polling loop.
type Scanner struct {
	pool     *devicepool.Pool
	logger   zerolog.Logger
	interval time.Duration
}

func New(pool *devicepool.Pool, logger zerolog.Logger, interval time.Duration) *Scanner {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Scanner{pool: pool, logger: logger, interval: interval}
}

// Run blocks, polling until ctx is cancelled.
func (s *Scanner) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.scanOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.scanOnce(ctx)
		}
	}
}

func (s *Scanner) scanOnce(ctx context.Context) {
	serials, err := listSerials(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("adb devices scan failed")
		return
	}

	seen := make(map[string]bool, len(serials))
	for _, serial := range serials {
		seen[serial] = true

		if _, ok := s.pool.Entry(serial); ok {
			continue
		}

		dev := device.NewADBDevice(serial, serial, device.Resolution{})
		if err := s.pool.RegisterDevice(serial, serial, dev); err != nil {
			s.logger.Warn().Err(err).Str("serial", serial).Msg("failed to register discovered device")
		}
	}

	for _, entry := range s.pool.Entries() {
		if seen[entry.Serial] {
			continue
		}
		if err := s.pool.UnregisterDevice(entry.Serial); err != nil {
			s.logger.Warn().Err(err).Str("serial", entry.Serial).Msg("failed to unregister vanished device")
		}
	}
}

// listSerials parses `adb devices -l` output, skipping the header line and
// any line not reporting "device" status (offline/unauthorized excluded).
func listSerials(ctx context.Context) ([]string, error) {
	out, err := exec.CommandContext(ctx, "adb", "devices", "-l").Output()
	if err != nil {
		return nil, err
	}

	var serials []string
	scanner := bufio.NewScanner(strings.NewReader(string(out)))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "List of devices") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 || fields[1] != "device" {
			continue
		}
		serials = append(serials, fields[0])
	}
	return serials, scanner.Err()
}
