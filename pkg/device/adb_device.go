package device

import (
	"bytes"
	"context"
	"encoding/base64"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// ADBDevice drives a single physical device through the `adb` command-line
// tool, one subprocess invocation per operation: shell out to the platform
// tool and parse its output, rather than linking an adb client library.
type ADBDevice struct {
	serial string
	name   string

	mu       sync.RWMutex
	physical Resolution
	override Resolution // logical/override resolution; zero value means "use physical"

	runner commandRunner
}

// commandRunner abstracts subprocess execution so tests can stub it out.
type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func defaultRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return nil, NewError(ErrNonZeroExit, "adb %s exited %d: %s", strings.Join(args, " "), exitErr.ExitCode(), stderr.String())
		}
		return nil, NewError(ErrSpawnFailed, "failed to run adb %s: %v", strings.Join(args, " "), err)
	}

	return stdout.Bytes(), nil
}

// NewADBDevice creates a device bound to the given serial. override, if
// non-zero, is the logical resolution that screenshots and model
// coordinates use; when zero, physical resolution is used directly.
func NewADBDevice(serial, name string, override Resolution) *ADBDevice {
	return &ADBDevice{
		serial:   serial,
		name:     name,
		override: override,
		runner:   defaultRunner,
	}
}

func (d *ADBDevice) Serial() string { return d.serial }

func (d *ADBDevice) Name() string {
	if d.name != "" {
		return d.name
	}
	return d.serial
}

func (d *ADBDevice) IsConnected() bool {
	out, err := d.runner(context.Background(), "adb", "-s", d.serial, "get-state")
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(out)) == "device"
}

func (d *ADBDevice) adb(ctx context.Context, args ...string) ([]byte, error) {
	full := append([]string{"-s", d.serial}, args...)
	return d.runner(ctx, "adb", full...)
}

func (d *ADBDevice) Screenshot(ctx context.Context) (string, error) {
	out, err := d.adb(ctx, "exec-out", "screencap", "-p")
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(out), nil
}

var wmSizeRe = regexp.MustCompile(`(\d+)x(\d+)`)

// ScreenSize returns the logical resolution, querying the device's physical
// resolution via `wm size` and caching it, then applying any configured
// override (coordinate policy).
func (d *ADBDevice) ScreenSize(ctx context.Context) (int, int, error) {
	if err := d.refreshPhysicalSize(ctx); err != nil {
		return 0, 0, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.override.Width > 0 && d.override.Height > 0 {
		return d.override.Width, d.override.Height, nil
	}
	return d.physical.Width, d.physical.Height, nil
}

func (d *ADBDevice) refreshPhysicalSize(ctx context.Context) error {
	out, err := d.adb(ctx, "shell", "wm", "size")
	if err != nil {
		return err
	}

	matches := wmSizeRe.FindStringSubmatch(string(out))
	if len(matches) != 3 {
		return NewError(ErrUnparseableOutput, "could not parse 'wm size' output: %q", strings.TrimSpace(string(out)))
	}

	w, err1 := strconv.Atoi(matches[1])
	h, err2 := strconv.Atoi(matches[2])
	if err1 != nil || err2 != nil {
		return NewError(ErrUnparseableOutput, "could not parse resolution numbers from 'wm size' output: %q", string(out))
	}

	d.mu.Lock()
	d.physical = Resolution{Width: w, Height: h}
	d.mu.Unlock()
	return nil
}

// toPhysical converts logical coordinates to the physical pixel space the
// on-device input path expects: round(logical * physical/override), or the
// identity when no override is configured (invariant).
func (d *ADBDevice) toPhysical(x, y int) (int, int) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.override.Width == 0 || d.override.Height == 0 || d.physical.Width == 0 {
		return x, y
	}

	px := int(float64(x)*float64(d.physical.Width)/float64(d.override.Width) + 0.5)
	py := int(float64(y)*float64(d.physical.Height)/float64(d.override.Height) + 0.5)
	return px, py
}

func (d *ADBDevice) Tap(ctx context.Context, x, y int) error {
	px, py := d.toPhysical(x, y)
	_, err := d.adb(ctx, "shell", "input", "tap", strconv.Itoa(px), strconv.Itoa(py))
	return err
}

func (d *ADBDevice) Swipe(ctx context.Context, x1, y1, x2, y2, durationMs int) error {
	p1x, p1y := d.toPhysical(x1, y1)
	p2x, p2y := d.toPhysical(x2, y2)
	_, err := d.adb(ctx, "shell", "input", "swipe",
		strconv.Itoa(p1x), strconv.Itoa(p1y), strconv.Itoa(p2x), strconv.Itoa(p2y), strconv.Itoa(durationMs))
	return err
}

// LongPress is synthesised as a zero-delta swipe of the requested duration.
func (d *ADBDevice) LongPress(ctx context.Context, x, y, durationMs int) error {
	return d.Swipe(ctx, x, y, x, y, durationMs)
}

// DoubleTap is synthesised as two taps separated by ~100ms.
func (d *ADBDevice) DoubleTap(ctx context.Context, x, y int) error {
	if err := d.Tap(ctx, x, y); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(100 * time.Millisecond):
	}

	return d.Tap(ctx, x, y)
}

func (d *ADBDevice) InputText(ctx context.Context, text string) error {
	escaped := strings.ReplaceAll(text, " ", "%s")
	_, err := d.adb(ctx, "shell", "input", "text", escaped)
	return err
}

func (d *ADBDevice) PressKey(ctx context.Context, keycode string) error {
	_, err := d.adb(ctx, "shell", "input", "keyevent", keycode)
	return err
}

func (d *ADBDevice) Back(ctx context.Context) error { return d.PressKey(ctx, "KEYCODE_BACK") }
func (d *ADBDevice) Home(ctx context.Context) error { return d.PressKey(ctx, "KEYCODE_HOME") }
func (d *ADBDevice) Recent(ctx context.Context) error {
	return d.PressKey(ctx, "KEYCODE_APP_SWITCH")
}

func (d *ADBDevice) Notification(ctx context.Context) error {
	_, err := d.adb(ctx, "shell", "cmd", "statusbar", "expand-notifications")
	return err
}

func (d *ADBDevice) LaunchApp(ctx context.Context, packageOrAlias string) error {
	pkg, err := ResolvePackage(packageOrAlias)
	if err != nil {
		return err
	}

	out, err := d.adb(ctx, "shell", "monkey", "-p", pkg, "-c", "android.intent.category.LAUNCHER", "1")
	if err != nil {
		return err
	}
	if strings.Contains(string(out), "No activities found") {
		return NewError(ErrUnknownPackage, "package %q has no launchable activity", pkg)
	}
	return nil
}

var currentAppRe = regexp.MustCompile(`mCurrentFocus=.*?\s([\w.]+)/`)

func (d *ADBDevice) CurrentApp(ctx context.Context) (string, error) {
	out, err := d.adb(ctx, "shell", "dumpsys", "window", "windows")
	if err != nil {
		return "", err
	}

	matches := currentAppRe.FindStringSubmatch(string(out))
	if len(matches) != 2 {
		return "", NewError(ErrUnparseableOutput, "could not determine current focused app")
	}

	log.Debug().Str("serial", d.serial).Str("package", matches[1]).Msg("resolved current app")
	return matches[1], nil
}
