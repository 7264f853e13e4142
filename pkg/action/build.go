package action

import (
	"strconv"
	"strings"
)

// kindAliases maps the case-insensitive action names and their shorthand
// spellings the model commonly emits onto a canonical Kind.
var kindAliases = map[string]Kind{
	"tap":          KindTap,
	"long_press":   KindLongPress,
	"longpress":    KindLongPress,
	"double_tap":   KindDoubleTap,
	"doubletap":    KindDoubleTap,
	"swipe":        KindSwipe,
	"scroll":       KindScroll,
	"type":         KindType,
	"press_key":    KindPressKey,
	"presskey":     KindPressKey,
	"back":         KindBack,
	"home":         KindHome,
	"recent":       KindRecent,
	"notification": KindNotification,
	"launch":       KindLaunch,
	"wait":         KindWait,
	"screenshot":   KindScreenshot,
	"finish":       KindFinish,
}

// ResolveKind maps a case-insensitive action name, including the model's
// common aliases (DoubleTap, LongPress, PressKey), onto a canonical Kind.
func ResolveKind(name string) (Kind, bool) {
	kind, ok := kindAliases[strings.ToLower(name)]
	return kind, ok
}

// FromFields builds and validates an Action from a loosely-typed field map,
// applying the shape adapters for cosmetic variations the model (or an
// externally-sourced JSON payload, per the executor's execute_parsed_action)
// commonly emits. Values are whatever the caller's source format produces:
// string, int, or []int for bracketed lists.
//
// resolvePackage resolves a launch target's alias/package text; passing nil
// disables launch's app= adapter (callers that already pass package= do not
// need it).
func FromFields(name string, fields map[string]interface{}, resolvePackage func(string) (string, error)) (Action, error) {
	kind, ok := ResolveKind(name)
	if !ok {
		return Action{}, NewError(ErrInvalidParameters, "unknown action name %q", name)
	}

	a := Action{Kind: kind}

	switch kind {
	case KindTap, KindDoubleTap:
		x, y, err := coordFromElementOrXY(fields)
		if err != nil {
			return Action{}, err
		}
		a.X, a.Y = x, y

	case KindLongPress:
		x, y, err := coordFromElementOrXY(fields)
		if err != nil {
			return Action{}, err
		}
		a.X, a.Y = x, y
		a.DurationMs = intField(fields, "duration_ms", 0)

	case KindSwipe:
		if start, ok := intPairField(fields, "start"); ok {
			a.StartX, a.StartY = start[0], start[1]
		} else {
			a.StartX = intField(fields, "start_x", 0)
			a.StartY = intField(fields, "start_y", 0)
		}
		if end, ok := intPairField(fields, "end"); ok {
			a.EndX, a.EndY = end[0], end[1]
		} else {
			a.EndX = intField(fields, "end_x", 0)
			a.EndY = intField(fields, "end_y", 0)
		}
		a.DurationMs = intField(fields, "duration_ms", 500)

	case KindScroll:
		a.Direction = Direction(strings.ToLower(stringField(fields, "direction", "")))
		a.DistancePct = intField(fields, "distance_pct", 0)
		a.DurationMs = intField(fields, "duration_ms", 300)

	case KindType:
		a.Text = stringField(fields, "text", "")

	case KindPressKey:
		a.Key = stringField(fields, "key", "")

	case KindLaunch:
		pkg := stringField(fields, "package", "")
		if pkg == "" {
			if alias := stringField(fields, "app", ""); alias != "" {
				if resolvePackage == nil {
					return Action{}, NewError(ErrInvalidParameters, "launch app=%q needs a package resolver", alias)
				}
				resolved, err := resolvePackage(alias)
				if err != nil {
					return Action{}, NewError(ErrInvalidParameters, "launch: %v", err)
				}
				pkg = resolved
			}
		}
		a.Package = pkg

	case KindWait:
		if _, ok := fields["duration"]; ok {
			a.DurationMs = intField(fields, "duration", 0) * 1000
		} else {
			a.DurationMs = intField(fields, "duration_ms", 0)
		}

	case KindFinish:
		result := stringField(fields, "message", "")
		if result == "" {
			result = stringField(fields, "reason", "")
		}
		if result == "" {
			result = stringField(fields, "result", "")
		}
		a.Result = result

	case KindBack, KindHome, KindRecent, KindNotification, KindScreenshot:
		// No parameters.
	}

	if err := a.Validate(); err != nil {
		return Action{}, err
	}
	return a, nil
}

func coordFromElementOrXY(fields map[string]interface{}) (int, int, error) {
	if xy, ok := intPairField(fields, "element"); ok {
		return xy[0], xy[1], nil
	}
	return intField(fields, "x", 0), intField(fields, "y", 0), nil
}

func stringField(fields map[string]interface{}, key, fallback string) string {
	v, ok := fields[key]
	if !ok {
		return fallback
	}
	switch t := v.(type) {
	case string:
		return t
	case int:
		return strconv.Itoa(t)
	}
	return fallback
}

func intField(fields map[string]interface{}, key string, fallback int) int {
	v, ok := fields[key]
	if !ok {
		return fallback
	}
	switch t := v.(type) {
	case int:
		return t
	case string:
		n, err := strconv.Atoi(t)
		if err != nil {
			return fallback
		}
		return n
	}
	return fallback
}

func intPairField(fields map[string]interface{}, key string) ([2]int, bool) {
	v, ok := fields[key]
	if !ok {
		return [2]int{}, false
	}
	list, ok := v.([]int)
	if !ok || len(list) != 2 {
		return [2]int{}, false
	}
	return [2]int{list[0], list[1]}, true
}
