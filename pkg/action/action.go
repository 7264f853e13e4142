// Package action defines the closed set of operations the agent loop can
// issue against a device, and the validation/duration/execution rules that
// apply to each one.
package action

import (
	"context"
	"fmt"
	"time"

	"github.com/sunO2/scrs/pkg/device"
)

// Kind identifies which variant an Action carries.
type Kind string

const (
	KindTap          Kind = "tap"
	KindLongPress    Kind = "long_press"
	KindDoubleTap    Kind = "double_tap"
	KindSwipe        Kind = "swipe"
	KindScroll       Kind = "scroll"
	KindType         Kind = "type"
	KindPressKey     Kind = "press_key"
	KindBack         Kind = "back"
	KindHome         Kind = "home"
	KindRecent       Kind = "recent"
	KindNotification Kind = "notification"
	KindLaunch       Kind = "launch"
	KindWait         Kind = "wait"
	KindScreenshot   Kind = "screenshot"
	KindFinish       Kind = "finish"
)

// Direction is a scroll direction.
type Direction string

const (
	DirUp    Direction = "up"
	DirDown  Direction = "down"
	DirLeft  Direction = "left"
	DirRight Direction = "right"
)

// Duration bounds, in milliseconds, per action kind.
const (
	maxCoord = 10000

	minLongPressMs = 100
	maxLongPressMs = 10000

	minSwipeMs = 50
	maxSwipeMs = 5000

	minScrollMs = 50
	maxScrollMs = 2000

	maxWaitMs = 60000

	maxTextLen = 10000
)

// Action is a tagged union over all 15 operation variants. Exactly one of
// the typed fields is meaningful, selected by Kind; the rest are zero.
// A closed sum type is used instead of an interface-per-variant so
// validate/estimate/execute can match exhaustively in one place.
type Action struct {
	Kind        Kind   `json:"kind"`
	Description string `json:"description,omitempty"`

	X, Y               int `json:"x,omitempty"`
	StartX, StartY     int `json:"start_x,omitempty"`
	EndX, EndY         int `json:"end_x,omitempty"`
	DurationMs         int `json:"duration_ms,omitempty"`
	Direction          Direction `json:"direction,omitempty"`
	DistancePct        int    `json:"distance_pct,omitempty"`
	Text               string `json:"text,omitempty"`
	Key                string `json:"key,omitempty"`
	Package            string `json:"package,omitempty"`
	Activity           string `json:"activity,omitempty"`
	Reason             string `json:"reason,omitempty"`
	Result             string `json:"result,omitempty"`
	Success            bool   `json:"success,omitempty"`

	SchemaVersion int `json:"schema_version,omitempty"`
}

// Result is returned by Execute.
type Result struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	DurationMs int64  `json:"duration_ms"`
}

// Validate checks variant-specific parameter constraints. It is pure and
// returns an *Error carrying one of the ActionError kinds
func (a Action) Validate() error {
	switch a.Kind {
	case KindTap, KindDoubleTap:
		return validateCoord(a.X, a.Y)
	case KindLongPress:
		if err := validateCoord(a.X, a.Y); err != nil {
			return err
		}
		return validateDuration(a.DurationMs, minLongPressMs, maxLongPressMs)
	case KindSwipe:
		if err := validateCoord(a.StartX, a.StartY); err != nil {
			return err
		}
		if err := validateCoord(a.EndX, a.EndY); err != nil {
			return err
		}
		return validateDuration(a.DurationMs, minSwipeMs, maxSwipeMs)
	case KindScroll:
		switch a.Direction {
		case DirUp, DirDown, DirLeft, DirRight:
		default:
			return NewError(ErrInvalidParameters, "scroll direction %q is not one of up/down/left/right", a.Direction)
		}
		if a.DistancePct < 1 || a.DistancePct > 100 {
			return NewError(ErrOutOfBounds, "scroll distance_pct %d out of range [1,100]", a.DistancePct)
		}
		return validateDuration(a.DurationMs, minScrollMs, maxScrollMs)
	case KindType:
		if len(a.Text) > maxTextLen {
			return NewError(ErrInvalidText, "text length %d exceeds maximum %d", len(a.Text), maxTextLen)
		}
	case KindPressKey:
		if a.Key == "" {
			return NewError(ErrInvalidParameters, "press_key requires a non-empty key")
		}
	case KindLaunch:
		if a.Package == "" {
			return NewError(ErrInvalidParameters, "launch requires a package")
		}
	case KindWait:
		if a.DurationMs > maxWaitMs {
			return NewError(ErrDurationTooLong, "wait duration_ms %d exceeds maximum %d", a.DurationMs, maxWaitMs)
		}
	case KindFinish:
		if a.Result == "" {
			return NewError(ErrInvalidParameters, "finish requires a result")
		}
	case KindBack, KindHome, KindRecent, KindNotification, KindScreenshot:
		// No parameters to validate.
	default:
		return NewError(ErrInvalidParameters, "unknown action kind %q", a.Kind)
	}
	return nil
}

func validateCoord(x, y int) error {
	if x < 0 || x > maxCoord || y < 0 || y > maxCoord {
		return NewError(ErrOutOfBounds, "coordinate (%d,%d) out of sanity bound [0,%d]", x, y, maxCoord)
	}
	return nil
}

func validateDuration(ms, min, max int) error {
	if ms < min {
		return NewError(ErrDurationTooShort, "duration_ms %d below minimum %d", ms, min)
	}
	if ms > max {
		return NewError(ErrDurationTooLong, "duration_ms %d above maximum %d", ms, max)
	}
	return nil
}

// EstimateDuration returns a pure ms hint for how long the action is
// expected to take, used for pacing/telemetry, not for scheduling decisions.
func (a Action) EstimateDuration() int64 {
	switch a.Kind {
	case KindTap:
		return 50
	case KindDoubleTap:
		return 250
	case KindLongPress, KindSwipe, KindScroll:
		return int64(a.DurationMs)
	case KindType:
		return int64(len(a.Text)) * 10
	case KindWait:
		return int64(a.DurationMs)
	case KindScreenshot:
		return 200
	default:
		return 100
	}
}

// Execute dispatches the action to the device and wraps the outcome in a
// Result. Coordinate scaling (logical -> physical) is the device's
// responsibility (see device.Device), not the action's.
func (a Action) Execute(ctx context.Context, dev device.Device) (Result, error) {
	start := time.Now()
	err := a.dispatch(ctx, dev)
	dur := time.Since(start).Milliseconds()

	if err != nil {
		return Result{Success: false, Message: err.Error(), DurationMs: dur}, err
	}
	return Result{Success: true, Message: a.describe(), DurationMs: dur}, nil
}

func (a Action) dispatch(ctx context.Context, dev device.Device) error {
	switch a.Kind {
	case KindTap:
		return dev.Tap(ctx, a.X, a.Y)
	case KindDoubleTap:
		return dev.DoubleTap(ctx, a.X, a.Y)
	case KindLongPress:
		return dev.LongPress(ctx, a.X, a.Y, a.DurationMs)
	case KindSwipe:
		return dev.Swipe(ctx, a.StartX, a.StartY, a.EndX, a.EndY, a.DurationMs)
	case KindScroll:
		return a.executeScroll(ctx, dev)
	case KindType:
		return dev.InputText(ctx, a.Text)
	case KindPressKey:
		return dev.PressKey(ctx, a.Key)
	case KindBack:
		return dev.Back(ctx)
	case KindHome:
		return dev.Home(ctx)
	case KindRecent:
		return dev.Recent(ctx)
	case KindNotification:
		return dev.Notification(ctx)
	case KindLaunch:
		return dev.LaunchApp(ctx, a.Package)
	case KindWait:
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(a.DurationMs) * time.Millisecond):
			return nil
		}
	case KindScreenshot:
		_, err := dev.Screenshot(ctx)
		return err
	case KindFinish:
		// Finish carries no device-side effect; the agent loop interprets it.
		return nil
	default:
		return fmt.Errorf("dispatch: unknown action kind %q", a.Kind)
	}
}

// executeScroll expresses scroll as a swipe along the requested direction
// covering distance_pct of the logical screen, matching how the model
// reasons about scroll distance as a screen-relative percentage.
func (a Action) executeScroll(ctx context.Context, dev device.Device) error {
	w, h, err := dev.ScreenSize(ctx)
	if err != nil {
		return err
	}

	cx, cy := w/2, h/2
	dist := func(total int) int { return total * a.DistancePct / 100 }

	var sx, sy, ex, ey int
	switch a.Direction {
	case DirUp:
		sx, sy, ex, ey = cx, cy, cx, cy-dist(h)
	case DirDown:
		sx, sy, ex, ey = cx, cy, cx, cy+dist(h)
	case DirLeft:
		sx, sy, ex, ey = cx, cy, cx-dist(w), cy
	case DirRight:
		sx, sy, ex, ey = cx, cy, cx+dist(w), cy
	}

	return dev.Swipe(ctx, sx, sy, ex, ey, a.DurationMs)
}

func (a Action) describe() string {
	if a.Description != "" {
		return a.Description
	}
	return string(a.Kind)
}
