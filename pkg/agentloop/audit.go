package agentloop

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// AuditLog appends execution-step records as JSON lines and extracts each
// step's screenshot to a sibling PNG file — appended in
// order, never mutated.
type AuditLog struct {
	id           string
	logPath      string
	screenshotDir string
	file         *os.File
}

// NewAuditLog opens (creating parent directories as needed) the JSONL log
// at logs/agent/agent_<id>_<date>.jsonl and the screenshots directory at
// logs/agent/screenshots/.
func NewAuditLog(baseDir, id, date string) (*AuditLog, error) {
	agentDir := filepath.Join(baseDir, "agent")
	screenshotDir := filepath.Join(agentDir, "screenshots")
	if err := os.MkdirAll(screenshotDir, 0o755); err != nil {
		return nil, fmt.Errorf("create audit log directories: %w", err)
	}

	logPath := filepath.Join(agentDir, fmt.Sprintf("agent_%s_%s.jsonl", id, date))
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}

	return &AuditLog{id: id, logPath: logPath, screenshotDir: screenshotDir, file: f}, nil
}

func (l *AuditLog) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

func (l *AuditLog) appendLine(v interface{}) error {
	line, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = l.file.Write(append(line, '\n'))
	return err
}

// RecordStart appends a run-start marker.
func (l *AuditLog) RecordStart(task string, timestampMs int64) error {
	return l.appendLine(map[string]interface{}{
		"type":      "start",
		"task":      task,
		"timestamp": timestampMs,
	})
}

// RecordStep saves the step's screenshot (decoded from base64) to a sibling
// file and appends the execution-step record with a path reference.
func (l *AuditLog) RecordStep(step ExecutionStep, screenshotB64 string) error {
	if screenshotB64 != "" {
		path, err := l.saveScreenshot(step.StepNumber, step.Timestamp, screenshotB64)
		if err != nil {
			return err
		}
		step.ScreenshotPath = path
	}
	return l.appendLine(step)
}

func (l *AuditLog) saveScreenshot(step int, timestampMs int64, b64 string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return "", fmt.Errorf("decode screenshot: %w", err)
	}

	name := fmt.Sprintf("%s_step_%d.png", l.id, timestampMs)
	path := filepath.Join(l.screenshotDir, name)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return "", fmt.Errorf("write screenshot: %w", err)
	}
	_ = step
	return path, nil
}

// RecordCompleted appends the run-completion marker.
func (l *AuditLog) RecordCompleted(steps int, elapsedMs int64, reasoning string) error {
	return l.appendLine(map[string]interface{}{
		"type":      "completed",
		"steps":     steps,
		"elapsedMs": elapsedMs,
		"reasoning": reasoning,
	})
}

// RecordFailed appends the run-failure marker.
func (l *AuditLog) RecordFailed(steps int, elapsedMs int64, cause string) error {
	return l.appendLine(map[string]interface{}{
		"type":      "failed",
		"steps":     steps,
		"elapsedMs": elapsedMs,
		"error":     cause,
	})
}
