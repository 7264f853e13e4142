// Package device provides the uniform operation surface over a single
// physical Android device: screenshot, screen size,
// touch/key/navigation primitives, app launch and current-app query.
package device

import "context"

// Device is the capability set every concrete device backend implements.
// All operations fail with a *Error carrying a descriptive DeviceError
// kind; there are no silent failures.
type Device interface {
	Serial() string
	Name() string
	IsConnected() bool

	// Screenshot returns a base64-encoded PNG of the current screen in the
	// logical (override) coordinate space.
	Screenshot(ctx context.Context) (string, error)

	// ScreenSize returns the logical (override) resolution, refreshed on
	// every call.
	ScreenSize(ctx context.Context) (width, height int, err error)

	Tap(ctx context.Context, x, y int) error
	Swipe(ctx context.Context, x1, y1, x2, y2, durationMs int) error
	LongPress(ctx context.Context, x, y, durationMs int) error
	DoubleTap(ctx context.Context, x, y int) error
	InputText(ctx context.Context, text string) error
	PressKey(ctx context.Context, keycode string) error
	Back(ctx context.Context) error
	Home(ctx context.Context) error
	Recent(ctx context.Context) error
	Notification(ctx context.Context) error
	LaunchApp(ctx context.Context, packageOrAlias string) error
	CurrentApp(ctx context.Context) (string, error)
}

// Resolution is a width/height pair in pixels.
type Resolution struct {
	Width  int
	Height int
}
