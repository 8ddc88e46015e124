package sipl

import (
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
)

func assertSameArray(t *testing.T, want, got *ChunkedArray) {
	t.Helper()
	if !want.Dtype().Equal(got.Dtype()) {
		t.Errorf("dtype = %s, want %s", got.Dtype(), want.Dtype())
	}
	if diff := cmp.Diff(want.Shape(), got.Shape()); diff != "" {
		t.Errorf("shape (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want.Buffer(), got.Buffer()); diff != "" {
		t.Errorf("buffer (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want.Metadata(), got.Metadata()); diff != "" {
		t.Errorf("metadata (-want +got):\n%s", diff)
	}
}

func TestReassembleScenario(t *testing.T) {
	a := seqArray(t, []int{6, 4, 3}, Metadata{"filename": "x.jpg"})
	chunks, err := Chunkify(a, 4)
	if err != nil {
		t.Fatal(err)
	}
	out, err := Reassemble(chunks)
	if err != nil {
		t.Fatal(err)
	}
	assertSameArray(t, a, out)
	if diff := cmp.Diff(DefaultDimData([]int{6, 4, 3}), out.DimData()); diff != "" {
		t.Errorf("dimData (-want +got):\n%s", diff)
	}
}

func TestReassembleRoundTrip(t *testing.T) {
	shapes := [][]int{{1}, {7}, {5, 3}, {9, 2, 4}, {3, 1, 1, 2}}
	for _, shape := range shapes {
		for n := 1; n <= 10; n++ {
			a := seqArray(t, shape, Metadata{"n": float64(n)})
			chunks, err := Chunkify(a, n)
			if err != nil {
				t.Fatal(err)
			}
			out, err := Reassemble(chunks)
			if err != nil {
				t.Fatalf("shape %v n %d: %v", shape, n, err)
			}
			assertSameArray(t, a, out)
		}
	}
}

func TestReassemblePermutationInvariant(t *testing.T) {
	a := seqArray(t, []int{11, 3}, Metadata{"filename": "x.jpg"})
	chunks, err := Chunkify(a, 5)
	if err != nil {
		t.Fatal(err)
	}
	// rank 0 carries the surviving metadata
	chunks[0].Metadata()["worker"] = "zero"
	chunks[3].Metadata()["worker"] = "three"

	ordered, err := Reassemble(chunks)
	if err != nil {
		t.Fatal(err)
	}

	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 20; trial++ {
		shuffled := append([]*ChunkedArray(nil), chunks...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		out, err := Reassemble(shuffled)
		if err != nil {
			t.Fatal(err)
		}
		assertSameArray(t, ordered, out)
		if out.Metadata()["worker"] != "zero" {
			t.Fatalf("metadata from %v, want rank 0's", out.Metadata()["worker"])
		}
	}
}

func TestReassembleMismatch(t *testing.T) {
	a := seqArray(t, []int{4, 3}, nil)
	chunks, err := Chunkify(a, 2)
	if err != nil {
		t.Fatal(err)
	}

	wide := seqArray(t, []int{2, 4}, nil)
	if _, err := Reassemble([]*ChunkedArray{chunks[0], wide}); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("shape mismatch: expected ErrTypeMismatch, got %v", err)
	}

	other, err := NewChunkedArray(make([]byte, 12), []int{2, 3}, Uint16)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Reassemble([]*ChunkedArray{chunks[0], other}); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("dtype mismatch: expected ErrTypeMismatch, got %v", err)
	}

	flat := seqArray(t, []int{6}, nil)
	if _, err := Reassemble([]*ChunkedArray{chunks[0], flat}); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("rank mismatch: expected ErrTypeMismatch, got %v", err)
	}

	if _, err := Reassemble(nil); !errors.Is(err, ErrNoChunks) {
		t.Errorf("expected ErrNoChunks, got %v", err)
	}
}

func TestConcatenateInnerAxis(t *testing.T) {
	left, err := FromValues([]uint8{1, 2, 3, 4}, []int{2, 2}, WithMetadata(Metadata{"side": "left"}))
	if err != nil {
		t.Fatal(err)
	}
	right, err := FromValues([]uint8{5, 6}, []int{2, 1})
	if err != nil {
		t.Fatal(err)
	}
	out, err := Concatenate([]*ChunkedArray{left, right}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int{2, 3}, out.Shape()); diff != "" {
		t.Errorf("shape (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]byte{1, 2, 5, 3, 4, 6}, out.Buffer()); diff != "" {
		t.Errorf("buffer (-want +got):\n%s", diff)
	}
	if out.Metadata()["side"] != "left" {
		t.Errorf("metadata should come from the first array")
	}

	if _, err := Concatenate([]*ChunkedArray{left, right}, 2); !errors.Is(err, ErrIndex) {
		t.Errorf("expected ErrIndex, got %v", err)
	}
}
