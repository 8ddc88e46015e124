package pipeline

import (
	"context"
	"sort"
	"testing"

	"github.com/pkg/errors"
	"go.uber.org/zap/zaptest"

	"github.com/dnlglsn/sipl"
)

func ranks(chunks []*sipl.ChunkedArray) []int {
	out := make([]int, len(chunks))
	for i, c := range chunks {
		out[i], _ = c.GridPosition()
	}
	return out
}

func TestEngines(t *testing.T) {
	ctx := context.Background()
	logger := zaptest.NewLogger(t)
	a := testImage(t, 13, 4, 3)
	chunks, err := sipl.Chunkify(a, 5)
	if err != nil {
		t.Fatal(err)
	}

	engines := map[string]Engine{
		"sequential":          NewSequential(WithLogger(logger)),
		"sequential-shuffled": NewSequential(WithLogger(logger), WithShuffle(3)),
		"concurrent":          NewConcurrent(3, WithLogger(logger)),
		"concurrent-shuffled": NewConcurrent(8, WithShuffle(11)),
	}
	for name, e := range engines {
		t.Run(name, func(t *testing.T) {
			out, err := e.Map(ctx, chunks, Invert)
			if err != nil {
				t.Fatal(err)
			}
			got := ranks(out)
			sort.Ints(got)
			for i, r := range got {
				if r != i {
					t.Fatalf("ranks %v are not a permutation of 0..4", ranks(out))
				}
			}

			whole, err := sipl.Reassemble(out)
			if err != nil {
				t.Fatal(err)
			}
			back, err := Invert(ctx, whole)
			if err != nil {
				t.Fatal(err)
			}
			if string(back.Buffer()) != string(a.Buffer()) {
				t.Error("inverting twice did not restore the image")
			}
		})
	}
}

func TestSequentialKeepsOrder(t *testing.T) {
	chunks, err := sipl.Chunkify(testImage(t, 8, 2, 1), 4)
	if err != nil {
		t.Fatal(err)
	}
	out, err := NewSequential().Map(context.Background(), chunks, nil)
	if err != nil {
		t.Fatal(err)
	}
	for i, r := range ranks(out) {
		if r != i {
			t.Errorf("position %d holds rank %d", i, r)
		}
	}
}

func TestEngineErrors(t *testing.T) {
	chunks, err := sipl.Chunkify(testImage(t, 6, 2, 1), 3)
	if err != nil {
		t.Fatal(err)
	}
	failOnRank := func(rank int) MapFunc {
		return func(_ context.Context, c *sipl.ChunkedArray) (*sipl.ChunkedArray, error) {
			if r, _ := c.GridPosition(); r == rank {
				return nil, sipl.ErrTypeMismatch
			}
			return c, nil
		}
	}

	for _, e := range []Engine{NewSequential(), NewConcurrent(2)} {
		if _, err := e.Map(context.Background(), chunks, failOnRank(1)); !errors.Is(err, sipl.ErrTypeMismatch) {
			t.Errorf("%T: expected ErrTypeMismatch, got %v", e, err)
		}

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := e.Map(ctx, chunks, nil); !errors.Is(err, context.Canceled) {
			t.Errorf("%T: expected context.Canceled, got %v", e, err)
		}
	}
}

func TestNewEngine(t *testing.T) {
	if _, ok := NewEngine(EngineConfig{Workers: 1}, nil).(*Sequential); !ok {
		t.Error("one worker should select the sequential engine")
	}
	if e, ok := NewEngine(EngineConfig{Workers: 4}, nil).(*Concurrent); !ok || e.workers != 4 {
		t.Error("four workers should select the concurrent engine")
	}
}
