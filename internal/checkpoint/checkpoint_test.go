package checkpoint

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "result.partial.json")
	sink := NewFileSink(path)

	t.Run("emit writes the latest snapshot", func(t *testing.T) {
		sink.Emit(Snapshot{RunID: "r1", Phase: "run_start", Partial: true, GeneratedAt: time.Now()})
		sink.Emit(Snapshot{RunID: "r1", Phase: "feed_complete", Partial: true, GeneratedAt: time.Now()})

		payload, err := os.ReadFile(path)
		require.NoError(t, err)
		var snap Snapshot
		require.NoError(t, json.Unmarshal(payload, &snap))
		assert.Equal(t, "feed_complete", snap.Phase)
		assert.True(t, snap.Partial)
	})

	t.Run("remove deletes the file", func(t *testing.T) {
		sink.Remove()
		_, err := os.Stat(path)
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("nil and empty sinks are inert", func(t *testing.T) {
		var nilSink *FileSink
		nilSink.Emit(Snapshot{Phase: "x"})
		nilSink.Remove()
		NewFileSink("").Emit(Snapshot{Phase: "x"})
	})
}

func TestMemorySink(t *testing.T) {
	sink := &MemorySink{}
	sink.Emit(Snapshot{Phase: "run_start"})
	sink.Emit(Snapshot{Phase: "attempt_start"})
	sink.Emit(Snapshot{Phase: "match_found", Found: true})

	assert.Equal(t, []string{"run_start", "attempt_start", "match_found"}, sink.Phases())

	snaps := sink.Snapshots()
	require.Len(t, snaps, 3)
	assert.True(t, snaps[2].Found)

	// Snapshots returns a copy.
	snaps[0].Phase = "mutated"
	assert.Equal(t, "run_start", sink.Snapshots()[0].Phase)
}

func TestNop(t *testing.T) {
	Nop{}.Emit(Snapshot{Phase: "anything"})
}
