package captions

// ShiftSegments re-bases source-relative segments onto a trimmed output that
// starts at trimStart. Segments ending at or before the trim point are
// dropped; a start that falls before it clamps to zero.
func ShiftSegments(segments []Segment, trimStart float64) []Segment {
	out := make([]Segment, 0, len(segments))
	for _, seg := range segments {
		end := seg.End - trimStart
		if end <= 0 {
			continue
		}
		out = append(out, Segment{
			Start: max(0, seg.Start-trimStart),
			End:   end,
			Text:  seg.Text,
		})
	}
	return out
}
