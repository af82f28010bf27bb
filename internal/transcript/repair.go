package transcript

// MinChunkDuration is the length given to a chunk whose end is unknown.
// Subtitle renderers reject zero-length cues.
const MinChunkDuration = 0.001

// Repair returns a copy of chunks in which every missing end is set to
// start+MinChunkDuration. Order and start times are preserved, and repairing
// an already repaired sequence changes nothing.
func Repair(chunks []Chunk) []Chunk {
	if chunks == nil {
		return nil
	}

	repaired := make([]Chunk, len(chunks))
	for i, chunk := range chunks {
		if chunk.End == nil {
			chunk.End = Seconds(chunk.Start + MinChunkDuration)
		}
		repaired[i] = chunk
	}
	return repaired
}
