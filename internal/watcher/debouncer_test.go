package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ev(project, path string, op Operation) FileEvent {
	return FileEvent{Project: project, Path: path, Operation: op, Timestamp: time.Now()}
}

func nextBatch(t *testing.T, d *Debouncer, timeout time.Duration) []FileEvent {
	t.Helper()
	select {
	case events := <-d.Output():
		return events
	case <-time.After(timeout):
		t.Fatal("timeout waiting for debounced events")
		return nil
	}
}

func TestDebouncer_MultipleEventsForSameFile_Coalesces(t *testing.T) {
	// Given: a debouncer with short window
	d := NewDebouncer(100*time.Millisecond, nil)
	defer d.Stop()

	// When: multiple events for the same file are added rapidly
	for i := 0; i < 5; i++ {
		d.Add(ev("panel", "doc/index.md", OpModify))
		time.Sleep(10 * time.Millisecond)
	}

	// Then: only one event comes out
	events := nextBatch(t, d, 500*time.Millisecond)
	require.Len(t, events, 1)
	assert.Equal(t, "doc/index.md", events[0].Path)
	assert.Equal(t, OpModify, events[0].Operation)
}

func TestDebouncer_Coalescing(t *testing.T) {
	tests := []struct {
		name  string
		first Operation
		then  Operation
		want  Operation
	}{
		{"create then modify stays create", OpCreate, OpModify, OpCreate},
		{"modify then delete is delete", OpModify, OpDelete, OpDelete},
		{"delete then create is modify", OpDelete, OpCreate, OpModify},
		{"modify then rename is rename", OpModify, OpRename, OpRename},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDebouncer(30*time.Millisecond, nil)
			defer d.Stop()

			d.Add(ev("panel", "a.md", tt.first))
			d.Add(ev("panel", "a.md", tt.then))

			events := nextBatch(t, d, 300*time.Millisecond)
			require.Len(t, events, 1)
			assert.Equal(t, tt.want, events[0].Operation)
		})
	}
}

func TestDebouncer_CreateThenDelete_NoEvent(t *testing.T) {
	// Given: a debouncer with short window
	d := NewDebouncer(50*time.Millisecond, nil)
	defer d.Stop()

	// When: an editor swap file comes and goes
	d.Add(ev("panel", "doc/.index.md.swp", OpCreate))
	d.Add(ev("panel", "doc/.index.md.swp", OpDelete))

	// Then: nothing is emitted
	select {
	case events := <-d.Output():
		t.Fatalf("unexpected batch %v", events)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestDebouncer_SamePathInTwoProjects_Independent(t *testing.T) {
	d := NewDebouncer(50*time.Millisecond, nil)
	defer d.Stop()

	d.Add(ev("panel", "doc/index.md", OpModify))
	d.Add(ev("hvplot", "doc/index.md", OpDelete))
	d.Add(ev("hvplot", "doc/a.md", OpCreate))

	events := nextBatch(t, d, 300*time.Millisecond)
	require.Len(t, events, 3)
	assert.Equal(t, ev("hvplot", "doc/a.md", OpCreate).Path, events[0].Path)
	assert.Equal(t, "hvplot", events[1].Project)
	assert.Equal(t, OpDelete, events[1].Operation)
	assert.Equal(t, "panel", events[2].Project)
	assert.Equal(t, []string{"hvplot", "panel"}, Projects(events))
}

func TestDebouncer_Stop_ClosesOutput(t *testing.T) {
	// Given: a debouncer
	d := NewDebouncer(50*time.Millisecond, nil)

	// When: stopped twice, then fed
	d.Stop()
	d.Stop()
	d.Add(ev("panel", "a.md", OpCreate))

	// Then: output channel is closed
	_, ok := <-d.Output()
	assert.False(t, ok, "channel should be closed")
}
