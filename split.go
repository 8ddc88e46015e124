package sipl

import "github.com/pkg/errors"

// Partition is one contiguous block of an axis: Count elements beginning
// at Start.
type Partition struct {
	Start int
	Count int
}

// Stop is the exclusive end of the partition.
func (p Partition) Stop() int { return p.Start + p.Count }

// PartitionAxis block-distributes length elements over numSplits
// partitions. The first length % numSplits partitions hold one extra
// element, so sizes never increase along the result and differ by at most
// one.
func PartitionAxis(length, numSplits int) ([]Partition, error) {
	if numSplits < 1 {
		return nil, errors.Wrapf(ErrInvalidSplit, "numSplits must be at least 1, got %d", numSplits)
	}
	if length < 0 {
		return nil, errors.Wrapf(ErrInvalidSplit, "negative axis length %d", length)
	}

	base, remainder := length/numSplits, length%numSplits
	parts := make([]Partition, numSplits)
	start := 0
	for i := range parts {
		count := base
		if i < remainder {
			count++
		}
		parts[i] = Partition{Start: start, Count: count}
		start += count
	}
	return parts, nil
}

// Chunkify splits a into numSplits independent chunks along axis 0. Chunk i
// has its axis 0 descriptor stamped with rank i of numSplits. When numSplits
// exceeds the axis length the trailing chunks are empty.
func Chunkify(a *ChunkedArray, numSplits int) ([]*ChunkedArray, error) {
	if a.Rank() == 0 {
		return nil, errors.Wrap(ErrInvalidSplit, "cannot split a rank 0 array")
	}
	parts, err := PartitionAxis(a.shape[0], numSplits)
	if err != nil {
		return nil, err
	}

	chunks := make([]*ChunkedArray, len(parts))
	for i, p := range parts {
		// Slice hands back fresh buffer, metadata and descriptors
		ch, err := a.Slice(Range(p.Start, p.Stop()))
		if err != nil {
			return nil, errors.WithMessagef(err, "chunk %d", i)
		}
		ch.dimData[0].ProcGridRank = i
		ch.dimData[0].ProcGridSize = numSplits
		chunks[i] = ch
	}
	return chunks, nil
}
