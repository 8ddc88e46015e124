package pipeline

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"

	"github.com/dnlglsn/sipl"
)

func TestInvert(t *testing.T) {
	a, err := sipl.FromValues([]uint8{0, 1, 128, 255}, []int{2, 2, 1})
	if err != nil {
		t.Fatal(err)
	}
	out, err := Invert(context.Background(), a)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]byte{255, 254, 127, 0}, out.Buffer()); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	if a.Buffer()[0] != 0 {
		t.Error("input modified")
	}
}

func TestRankScaleKeepsProvenance(t *testing.T) {
	chunks, err := sipl.Chunkify(testImage(t, 4, 3, 3), 4)
	if err != nil {
		t.Fatal(err)
	}
	c := chunks[1]
	out, err := RankScale(context.Background(), c)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(c.DimData(), out.DimData()); diff != "" {
		t.Errorf("dimData mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(c.Metadata(), out.Metadata()); diff != "" {
		t.Errorf("metadata mismatch (-want +got):\n%s", diff)
	}
	for i, v := range c.Buffer() {
		if want := uint8(float64(v) * 0.5); out.Buffer()[i] != want {
			t.Fatalf("sample %d = %d, want %d", i, out.Buffer()[i], want)
		}
	}
}

func TestChannelShift(t *testing.T) {
	chunks, err := sipl.Chunkify(testImage(t, 4, 2, 4), 2)
	if err != nil {
		t.Fatal(err)
	}
	fn := ChannelShift(5)
	out, err := fn(context.Background(), chunks[1])
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int{2, 2, 3}, out.Shape()); diff != "" {
		t.Errorf("shape mismatch (-want +got):\n%s", diff)
	}
	if r, n := out.GridPosition(); r != 1 || n != 2 {
		t.Errorf("grid position = (%d, %d), want (1, 2)", r, n)
	}

	again, err := fn(context.Background(), chunks[1])
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(out.Buffer(), again.Buffer()); diff != "" {
		t.Errorf("same seed and rank gave different output (-first +second):\n%s", diff)
	}

	gray := testImage(t, 2, 2, 1)
	if _, err := fn(context.Background(), gray); !errors.Is(err, sipl.ErrUnsupportedChannel) {
		t.Errorf("expected ErrUnsupportedChannel, got %v", err)
	}
}

func TestTransformsRejectNonBytes(t *testing.T) {
	f, err := sipl.FromValues([]float32{1, 2, 3}, []int{1, 1, 3})
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{TransformInvert, TransformRankScale, TransformChannelShift} {
		fn, err := TransformByName(name, 0)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fn(context.Background(), f); !errors.Is(err, sipl.ErrTypeMismatch) {
			t.Errorf("%s: expected ErrTypeMismatch, got %v", name, err)
		}
	}
}

func TestTransformByName(t *testing.T) {
	if fn, err := TransformByName(TransformNone, 0); err != nil || fn != nil {
		t.Errorf("none = %v, %v; want nil, nil", fn, err)
	}
	if _, err := TransformByName("sepia", 0); err == nil {
		t.Error("expected error for unknown transform")
	}
	if len(TransformNames()) != 4 {
		t.Errorf("TransformNames() = %v", TransformNames())
	}
}
