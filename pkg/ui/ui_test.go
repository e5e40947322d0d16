package ui

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPrintSummary(t *testing.T) {
	SetColorEnabled(false)
	defer SetColorEnabled(true)

	var buf bytes.Buffer
	PrintSummary(&buf, 12, 3, 0)
	assert.Equal(t, "Done. Saved: 12, failed: 3\n", buf.String())

	buf.Reset()
	PrintSummary(&buf, 1, 0, 2)
	assert.Equal(t, "Done. Saved: 1, failed: 0, skipped: 2\n", buf.String())
}

func TestColorize(t *testing.T) {
	SetColorEnabled(true)
	assert.Equal(t, "\033[32mok\033[0m", Green("ok"))

	SetColorEnabled(false)
	defer SetColorEnabled(true)
	assert.Equal(t, "ok", Green("ok"))
}

func TestProgressCountsConcurrently(t *testing.T) {
	p := NewProgress(&bytes.Buffer{}, 300, false)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Advance(true)
			p.Advance(false)
			p.Skip()
		}()
	}
	wg.Wait()

	succeeded, failed, skipped := p.Counts()
	assert.Equal(t, 100, succeeded)
	assert.Equal(t, 100, failed)
	assert.Equal(t, 100, skipped)
	assert.Equal(t, 300, p.Processed())
}

func TestProgressDisabledWritesNothing(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgress(&buf, 2, false)
	p.Advance(true)
	p.Finish()
	assert.Empty(t, buf.String())
}

func TestProgressFinishDrawsFinalLine(t *testing.T) {
	SetColorEnabled(false)
	defer SetColorEnabled(true)

	var buf bytes.Buffer
	p := NewProgress(&buf, 4, true)
	p.Advance(true)
	p.Advance(true)
	p.Advance(false)
	p.Skip()
	p.Finish()

	out := buf.String()
	assert.True(t, strings.HasSuffix(out, "\n"))
	last := out[strings.LastIndex(out, "\r")+1:]
	assert.Contains(t, last, "4/4")
	assert.Contains(t, last, "saved 2")
	assert.Contains(t, last, "failed 1")
	assert.Contains(t, last, "skipped 1")
	assert.Contains(t, last, strings.Repeat(ProgressBar, barWidth))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "42s", formatDuration(42*time.Second))
	assert.Equal(t, "3m5s", formatDuration(185*time.Second))
	assert.Equal(t, "2h1m", formatDuration(121*time.Minute))
}
