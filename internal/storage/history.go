// Package storage keeps the history of past runs in a bbolt database.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"sessionq/internal/config"
	"sessionq/internal/report"
)

// MaxHistory is the number of runs kept; older runs are pruned on Save.
const MaxHistory = 100

var ErrNotFound = errors.New("run not found")

// HistoryItem is one saved run.
type HistoryItem struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Config    config.Config  `json:"config"`
	Summary   report.Summary `json:"summary"`
}

// NewHistoryItem captures a finished run for the history.
func NewHistoryItem(r report.Report, cfg config.Config) HistoryItem {
	return HistoryItem{
		ID:        r.RunID,
		Timestamp: r.GeneratedAt,
		Config:    cfg,
		Summary:   r.Summary(),
	}
}

// DefaultPath returns ~/.sessionq/history.db, creating the directory.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	dir := filepath.Join(home, ".sessionq")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return filepath.Join(dir, "history.db"), nil
}

// itemKey orders runs by time so a cursor walks them chronologically.
func itemKey(item HistoryItem) []byte {
	return []byte(fmt.Sprintf("%020d-%s", item.Timestamp.UnixNano(), item.ID))
}

func keyID(k []byte) string {
	if len(k) <= keyStampLen {
		return ""
	}
	return string(k[keyStampLen:])
}

const keyStampLen = 21
