package cli

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"sessionq/internal/config"
	"sessionq/internal/runner"
	"sessionq/internal/usage"
)

func TestProgressBar(t *testing.T) {
	assert.Equal(t, "[----]", progressBar(0, 4))
	assert.Equal(t, "[██--]", progressBar(0.5, 4))
	assert.Equal(t, "[████]", progressBar(1.5, 4))
	assert.Equal(t, "[----]", progressBar(-1, 4))
}

func TestPrinterProgress(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.Header(config.Default(), "run-1")
	assert.Contains(t, buf.String(), "run-1")
	assert.Contains(t, buf.String(), "up to 50 per page, 20/s")

	p.Outcome(runner.Outcome{Index: 1, Usage: &usage.Record{TotalBytes: 2048}})
	p.Outcome(runner.Outcome{Index: 2})
	p.Progress(runner.Progress{Completed: 2, Succeeded: 1, Failed: 1, Total: 4})

	out := buf.String()
	assert.Contains(t, out, " 50% | 2/4 | OK: 1 | Fail: 1 | 2.0 KiB")
}

func TestPrinterFinish(t *testing.T) {
	pr := runner.Progress{Completed: 3, Total: 10}

	var buf bytes.Buffer
	NewPrinter(&buf).Finish(pr, context.Canceled)
	assert.Contains(t, buf.String(), "cancelled after 3 of 10")

	buf.Reset()
	NewPrinter(&buf).Finish(pr, errors.New("boom"))
	assert.Contains(t, buf.String(), "boom")

	buf.Reset()
	NewPrinter(&buf).Exported([]string{"a.json", "b.csv"})
	assert.Contains(t, buf.String(), "b.csv")
}
