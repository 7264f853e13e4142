package model

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/sunO2/scrs/pkg/action"
	"github.com/sunO2/scrs/pkg/device"
)

// ParsedAction is a parse-level result: either a fully built, validated
// action.Action, or (when parsing that one call failed) nothing — the
// caller logs and skips it.
type ParsedAction = action.Action

// thinkingRe extracts the first <thinking>...</thinking> block, compiled
// once at package scope like the other structural-scrubbing patterns below.
var thinkingRe = regexp.MustCompile(`(?is)<thinking>(.*?)</thinking>`)

// callRe finds the next `name(` call-opener, used to locate candidate
// finish(/do( invocations in document order before balanced-paren scanning
// determines each call's true extent.
var callRe = regexp.MustCompile(`\b(finish|do)\s*\(`)

// ParseResult is what ParseResponse returns: the reasoning pulled from the
// thinking block (if any) and the actions resolved per the priority rules.
type ParseResult struct {
	Reasoning string
	Actions   []ParsedAction
}

// ParseResponse implements the response grammar: an optional thinking
// block, then either exactly one finish(...) (first one wins, sole action)
// or zero-or-more do(...) calls scanned in document order. Neither marker
// present yields an empty, non-error result — a testable signal, not a
// parse failure.
func ParseResponse(raw string, resolvePackage func(string) (string, error)) ParseResult {
	result := ParseResult{}

	if m := thinkingRe.FindStringSubmatch(raw); m != nil {
		result.Reasoning = strings.TrimSpace(m[1])
	}

	calls := findCalls(raw)

	for _, c := range calls {
		if c.name == "finish" {
			a, err := parseFinish(c.body)
			if err != nil {
				log.Warn().Err(err).Msg("failed to parse finish() call")
				return result
			}
			result.Actions = []ParsedAction{a}
			return result
		}
	}

	for _, c := range calls {
		if c.name != "do" {
			continue
		}
		a, err := parseDo(c.body, resolvePackage)
		if err != nil {
			log.Warn().Err(err).Str("body", c.body).Msg("failed to parse do() call, skipping")
			continue
		}
		result.Actions = append(result.Actions, a)
	}

	return result
}

type call struct {
	name string
	body string
}

// findCalls scans raw in document order for finish(/do( openers, then uses
// balanced-parenthesis matching to find each call's true closing paren —
// required because literal message text or quoted strings inside a call may
// themselves contain parentheses. Hand-rolled: no ecosystem parser targets
// free-form pseudo-function-call text like this.
func findCalls(raw string) []call {
	var calls []call

	idx := 0
	for idx < len(raw) {
		loc := callRe.FindStringSubmatchIndex(raw[idx:])
		if loc == nil {
			break
		}
		nameStart, nameEnd := idx+loc[2], idx+loc[3]
		openParen := idx + loc[1] - 1

		closeParen, ok := matchParen(raw, openParen)
		if !ok {
			idx = openParen + 1
			continue
		}

		calls = append(calls, call{
			name: raw[nameStart:nameEnd],
			body: raw[openParen+1 : closeParen],
		})
		idx = closeParen + 1
	}

	return calls
}

// matchParen returns the index of the paren matching the '(' at open,
// respecting single- and double-quoted string literals so a ')' inside a
// quoted value does not terminate the call early.
func matchParen(raw string, open int) (int, bool) {
	depth := 0
	var quote byte

	for i := open; i < len(raw); i++ {
		ch := raw[i]

		if quote != 0 {
			if ch == quote && raw[i-1] != '\\' {
				quote = 0
			}
			continue
		}

		switch ch {
		case '"', '\'':
			quote = ch
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}

	return 0, false
}

// parseFinish extracts finish's literal argument: either message=<literal>
// or a bare literal, with surrounding quotes stripped (rule 1).
func parseFinish(body string) (action.Action, error) {
	body = strings.TrimSpace(body)

	literal := body
	if eq := strings.Index(body, "="); eq > 0 && strings.TrimSpace(body[:eq]) == "message" {
		literal = body[eq+1:]
	}

	literal = unquote(strings.TrimSpace(literal))

	fields := map[string]interface{}{"message": literal}
	return action.FromFields("finish", fields, nil)
}

// parseDo extracts action=... plus the remaining key=value pairs and hands
// them to action.FromFields for shape-adaptation and construction.
func parseDo(body string, resolvePackage func(string) (string, error)) (action.Action, error) {
	fields, err := tokenizeKeyValues(body)
	if err != nil {
		return action.Action{}, err
	}

	name, ok := fields["action"].(string)
	if !ok || name == "" {
		return action.Action{}, device.NewError(device.ErrUnparseableOutput, "do() call missing required action= key")
	}
	delete(fields, "action")

	return action.FromFields(name, fields, resolvePackage)
}

// tokenizeKeyValues splits a do(...) body into key=value pairs. Values may
// be a double-quoted string, a bracketed integer list [n,n,...], or a bare
// integer/identifier. Commas inside quotes or brackets do not split pairs.
func tokenizeKeyValues(body string) (map[string]interface{}, error) {
	fields := make(map[string]interface{})

	for _, pair := range splitTopLevel(body, ',') {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}

		eq := strings.Index(pair, "=")
		if eq < 0 {
			continue
		}

		key := strings.TrimSpace(pair[:eq])
		raw := strings.TrimSpace(pair[eq+1:])

		fields[key] = parseValue(raw)
	}

	return fields, nil
}

// splitTopLevel splits s on sep, ignoring separators that occur inside
// brackets or quotes.
func splitTopLevel(s string, sep byte) []string {
	var parts []string
	var depth int
	var quote byte
	start := 0

	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case quote != 0:
			if ch == quote && s[i-1] != '\\' {
				quote = 0
			}
		case ch == '"' || ch == '\'':
			quote = ch
		case ch == '[':
			depth++
		case ch == ']':
			depth--
		case ch == sep && depth == 0:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	parts = append(parts, s[start:])
	return parts
}

func parseValue(raw string) interface{} {
	if len(raw) >= 2 && (raw[0] == '"' || raw[0] == '\'') && raw[len(raw)-1] == raw[0] {
		return unquote(raw)
	}

	if strings.HasPrefix(raw, "[") && strings.HasSuffix(raw, "]") {
		inner := raw[1 : len(raw)-1]
		var nums []int
		for _, tok := range strings.Split(inner, ",") {
			tok = strings.TrimSpace(tok)
			if tok == "" {
				continue
			}
			n, err := strconv.Atoi(tok)
			if err != nil {
				return raw
			}
			nums = append(nums, n)
		}
		return nums
	}

	if n, err := strconv.Atoi(raw); err == nil {
		return n
	}

	return unquote(raw)
}

func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
