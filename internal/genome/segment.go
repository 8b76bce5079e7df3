package genome

import (
	"fmt"

	"github.com/genimp/genimp/internal/model"
)

// PlanSegments divides a chromosome into non-overlapping segments of
// segmentSize bases; the last segment is clipped to the chromosome length.
// The result is a pure function of its arguments so a resumed run plans the
// exact same segments (and therefore the same task names) as the crashed one.
func PlanSegments(chromosome string, length, segmentSize int) ([]model.Segment, error) {
	if segmentSize <= 0 {
		return nil, fmt.Errorf("%d: invalid segment length: %w", segmentSize, model.ErrInvalidData)
	}
	if length <= 0 {
		return nil, fmt.Errorf("%d: invalid chromosome length: %w", length, model.ErrInvalidData)
	}

	segments := make([]model.Segment, 0, (length+segmentSize-1)/segmentSize)
	for start := 1; start <= length; start += segmentSize {
		end := start + segmentSize - 1
		if end > length {
			end = length
		}
		segments = append(segments, model.Segment{
			Chromosome: chromosome,
			Start:      start,
			End:        end,
		})
	}

	return segments, nil
}
