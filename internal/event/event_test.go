package event

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypeString(t *testing.T) {
	tests := []struct {
		want string
		typ  Type
	}{
		{want: "ScanStarted", typ: ScanStarted},
		{want: "ScanComplete", typ: ScanComplete},
		{want: "ScanError", typ: ScanError},
		{want: "BucketCreated", typ: BucketCreated},
		{want: "FileCompleted", typ: FileCompleted},
		{want: "FileFailed", typ: FileFailed},
		{want: "FileSkipped", typ: FileSkipped},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.typ.String())
		})
	}
}

func TestTypeStringUnknown(t *testing.T) {
	assert.Equal(t, "Unknown", Type(999).String())
	assert.Equal(t, "Unknown", Type(0).String())
}

func TestEmitter_Reports(t *testing.T) {
	ch := make(chan Event, 8)
	em := NewEmitter(ch, false)

	cause := errors.New("boom")
	em.ReportSuccess("/src/a.txt", "/out/txt/a.txt", 12)
	em.ReportFailure("/src/b.txt", cause)
	em.ReportSkipped("/src/c.txt", "collision")
	em.ReportScanStarted("/src")
	close(ch)

	var got []Event
	for ev := range ch {
		got = append(got, ev)
	}
	require.Len(t, got, 4)

	assert.Equal(t, FileCompleted, got[0].Type)
	assert.Equal(t, "/src/a.txt", got[0].Path)
	assert.Equal(t, "/out/txt/a.txt", got[0].Dst)
	assert.Equal(t, int64(12), got[0].Size)
	assert.False(t, got[0].DryRun)
	assert.WithinDuration(t, time.Now(), got[0].Timestamp, time.Minute)

	assert.Equal(t, FileFailed, got[1].Type)
	assert.ErrorIs(t, got[1].Error, cause)

	assert.Equal(t, FileSkipped, got[2].Type)
	assert.Equal(t, "collision", got[2].Reason)

	assert.Equal(t, ScanStarted, got[3].Type)
	assert.Equal(t, "/src", got[3].Path)
}

func TestEmitter_DryRunFlag(t *testing.T) {
	ch := make(chan Event, 1)
	NewEmitter(ch, true).ReportSuccess("a", "b", 0)
	ev := <-ch
	assert.True(t, ev.DryRun)
}

func TestEmitter_NilSafe(t *testing.T) {
	assert.NotPanics(t, func() { NewEmitter(nil, false).ReportFailure("a", errors.New("x")) })
}
