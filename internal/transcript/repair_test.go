package transcript

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRepairFillsMissingEnd(t *testing.T) {
	t.Parallel()

	repaired := Repair([]Chunk{{Start: 1.0, Text: "hi"}})
	require.Len(t, repaired, 1)
	require.NotNil(t, repaired[0].End)
	require.InDelta(t, 1.001, *repaired[0].End, 1e-9)
	require.Equal(t, 1.0, repaired[0].Start)
}

func TestRepairIsIdempotent(t *testing.T) {
	t.Parallel()

	chunks := []Chunk{
		{Start: 0.5, End: Seconds(0.9), Text: "hi "},
		{Start: 1.0, Text: "there"},
		{Start: 2.25, Text: "again"},
	}

	once := Repair(chunks)
	twice := Repair(once)
	require.Equal(t, once, twice)
}

func TestRepairPreservesOrderAndInput(t *testing.T) {
	t.Parallel()

	chunks := []Chunk{
		{Start: 3, Text: "c"},
		{Start: 1, End: Seconds(2), Text: "a"},
	}

	repaired := Repair(chunks)
	require.Equal(t, "c", repaired[0].Text)
	require.Equal(t, "a", repaired[1].Text)
	require.Nil(t, chunks[0].End, "input must not be mutated")
	require.Nil(t, Repair(nil))
	require.Empty(t, Repair([]Chunk{}))
}
