package pipeline

import "github.com/fourTheorem/podwhisperer/internal/inference"

// assignSpeakers labels each transcript segment with the speaker whose
// diarization turn overlaps it the most. Segments with no overlapping turn
// are left unlabeled.
func assignSpeakers(segments []inference.Segment, turns []inference.SpeakerTurn) []inference.Segment {
	out := make([]inference.Segment, len(segments))
	copy(out, segments)

	for i := range out {
		best := ""
		bestOverlap := 0.0
		for _, turn := range turns {
			o := overlap(out[i].Start, out[i].End, turn.Start, turn.End)
			if o > bestOverlap {
				bestOverlap = o
				best = turn.Speaker
			}
		}
		if best != "" {
			out[i].Speaker = best
		}
	}

	return out
}

func overlap(aStart, aEnd, bStart, bEnd float64) float64 {
	start := max(aStart, bStart)
	end := min(aEnd, bEnd)
	if end <= start {
		return 0
	}
	return end - start
}
