package ui

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bamsammich/sortcp/internal/stats"
)

func TestNewPresenter(t *testing.T) {
	p := NewPresenter(Config{Stats: stats.NewCollector()})
	assert.IsType(t, &plainPresenter{}, p)

	p = NewPresenter(Config{Quiet: true})
	assert.IsType(t, &quietPresenter{}, p)
}

func TestQuietPresenter(t *testing.T) {
	var out, errOut bytes.Buffer
	p := NewPresenter(Config{Writer: &out, ErrWriter: &errOut, Quiet: true})

	events := make(chan Event, 4)
	events <- Event{Type: FileCompleted, Path: "a.txt", Dst: "out/txt/a.txt"}
	events <- Event{Type: FileSkipped, Path: "b.txt", Reason: "r"}
	events <- Event{Type: FileFailed, Path: "c.txt", Error: assert.AnError}
	events <- Event{Type: ScanError, Path: "locked", Error: assert.AnError}
	close(events)
	require.NoError(t, p.Run(events))

	assert.Empty(t, out.String())
	assert.Equal(t,
		"Error copying c.txt: "+assert.AnError.Error()+"\n"+
			"Error reading locked: "+assert.AnError.Error()+"\n",
		errOut.String())
	assert.Empty(t, p.Summary())
}

func TestColorEnabled(t *testing.T) {
	assert.True(t, ColorEnabled("always", false))
	assert.False(t, ColorEnabled("never", true))
	assert.False(t, ColorEnabled("auto", false))
}

func TestCompletionSummary(t *testing.T) {
	tests := []struct {
		name     string
		snap     stats.Snapshot
		contains []string
		absent   []string
	}{
		{
			name:     "clean",
			snap:     stats.Snapshot{FilesCopied: 4, BucketsCreated: 3, BytesCopied: 20},
			contains: []string{"done ✓", "files 4", "buckets 3", "size 20 B", "errors 0"},
			absent:   []string{"skipped", "verified"},
		},
		{
			name:     "failures",
			snap:     stats.Snapshot{FilesCopied: 2, FilesFailed: 1, ScanErrors: 1, FilesSkipped: 5, FilesVerified: 2},
			contains: []string{"done ✗", "skipped 5", "verified 2", "errors 2"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := completionSummary(tc.snap)
			for _, want := range tc.contains {
				assert.Contains(t, s, want)
			}
			for _, no := range tc.absent {
				assert.NotContains(t, s, no)
			}
		})
	}
}
