package pipeline

import (
	"context"
	"math/rand"
	"sort"

	"github.com/pkg/errors"

	"github.com/dnlglsn/sipl"
)

// Transform names accepted by TransformByName
const (
	TransformNone         = "none"
	TransformInvert       = "invert"
	TransformRankScale    = "rank-scale"
	TransformChannelShift = "channel-shift"
)

// TransformByName returns the per-chunk function registered as name. The
// seed only affects channel-shift.
func TransformByName(name string, seed int64) (MapFunc, error) {
	switch name {
	case TransformNone, "":
		return nil, nil
	case TransformInvert:
		return Invert, nil
	case TransformRankScale:
		return RankScale, nil
	case TransformChannelShift:
		return ChannelShift(seed), nil
	}
	return nil, errors.Errorf("unknown transform %q", name)
}

// TransformNames lists the registered transforms.
func TransformNames() []string {
	names := []string{TransformNone, TransformInvert, TransformRankScale, TransformChannelShift}
	sort.Strings(names)
	return names
}

func requireBytes(c *sipl.ChunkedArray) error {
	if !c.Dtype().Equal(sipl.Uint8) {
		return errors.Wrapf(sipl.ErrTypeMismatch, "transform needs %s samples, got %s", sipl.Uint8, c.Dtype())
	}
	return nil
}

// Invert replaces every sample v with 255-v.
func Invert(_ context.Context, c *sipl.ChunkedArray) (*sipl.ChunkedArray, error) {
	if err := requireBytes(c); err != nil {
		return nil, err
	}
	src := c.Buffer()
	buf := make([]byte, len(src))
	for i, v := range src {
		buf[i] = 0xff - v
	}
	return c.WithBuffer(buf, c.Dtype())
}

// RankScale darkens each chunk in proportion to its grid rank: samples are
// multiplied by (rank+1)/size and truncated.
func RankScale(_ context.Context, c *sipl.ChunkedArray) (*sipl.ChunkedArray, error) {
	if err := requireBytes(c); err != nil {
		return nil, err
	}
	rank, size := c.GridPosition()
	if size < 1 {
		size = 1
	}
	factor := float64(rank+1) / float64(size)

	src := c.Buffer()
	buf := make([]byte, len(src))
	for i, v := range src {
		buf[i] = uint8(min(float64(v)*factor, 0xff))
	}
	return c.WithBuffer(buf, c.Dtype())
}

// ChannelShift returns a transform that subtracts a random offset from
// each of the first three channels of a rows x cols x channels chunk,
// wrapping modulo 256, and drops any further channels. Offsets are drawn
// per chunk from a source seeded with seed plus the chunk rank.
func ChannelShift(seed int64) MapFunc {
	return func(_ context.Context, c *sipl.ChunkedArray) (*sipl.ChunkedArray, error) {
		if err := requireBytes(c); err != nil {
			return nil, err
		}
		shape := c.Shape()
		if len(shape) != 3 || shape[2] < 3 {
			return nil, errors.Wrapf(sipl.ErrUnsupportedChannel, "channel-shift needs 3 or more channels, got shape %v", shape)
		}

		rank, _ := c.GridPosition()
		rng := rand.New(rand.NewSource(seed + int64(rank)))
		var offsets [3]byte
		for i := range offsets {
			offsets[i] = byte(rng.Intn(255))
		}

		channels := shape[2]
		src := c.Buffer()
		buf := make([]byte, 0, len(src)/channels*3)
		for i := 0; i < len(src); i += channels {
			for k := 0; k < 3; k++ {
				buf = append(buf, src[i+k]-offsets[k])
			}
		}

		shape[2] = 3
		return sipl.NewChunkedArray(buf, shape, c.Dtype(), sipl.WithMetadata(c.Metadata()), sipl.WithDimData(c.DimData()))
	}
}
