package sipl

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
)

func TestPartitionAxis(t *testing.T) {
	cases := []struct {
		length, n int
		want      []Partition
	}{
		{6, 4, []Partition{{0, 2}, {2, 2}, {4, 1}, {5, 1}}},
		{10, 3, []Partition{{0, 4}, {4, 3}, {7, 3}}},
		{4, 4, []Partition{{0, 1}, {1, 1}, {2, 1}, {3, 1}}},
		{2, 4, []Partition{{0, 1}, {1, 1}, {2, 0}, {2, 0}}},
		{0, 2, []Partition{{0, 0}, {0, 0}}},
		{7, 1, []Partition{{0, 7}}},
	}
	for _, c := range cases {
		got, err := PartitionAxis(c.length, c.n)
		if err != nil {
			t.Fatalf("PartitionAxis(%d, %d): %v", c.length, c.n, err)
		}
		if diff := cmp.Diff(c.want, got); diff != "" {
			t.Errorf("PartitionAxis(%d, %d) (-want +got):\n%s", c.length, c.n, diff)
		}
	}
}

func TestPartitionAxisCoverage(t *testing.T) {
	for length := 0; length < 40; length++ {
		for n := 1; n < 12; n++ {
			parts, err := PartitionAxis(length, n)
			if err != nil {
				t.Fatal(err)
			}
			if len(parts) != n {
				t.Fatalf("PartitionAxis(%d, %d) returned %d parts", length, n, len(parts))
			}
			next := 0
			for i, p := range parts {
				if p.Start != next {
					t.Fatalf("PartitionAxis(%d, %d) part %d starts at %d, want %d", length, n, i, p.Start, next)
				}
				if p.Count != length/n && p.Count != length/n+1 {
					t.Fatalf("PartitionAxis(%d, %d) part %d has %d elements", length, n, i, p.Count)
				}
				if i > 0 && p.Count > parts[i-1].Count {
					t.Fatalf("PartitionAxis(%d, %d) sizes increase at part %d", length, n, i)
				}
				next = p.Stop()
			}
			if next != length {
				t.Fatalf("PartitionAxis(%d, %d) covers [0, %d)", length, n, next)
			}
		}
	}
}

func TestPartitionAxisErrors(t *testing.T) {
	if _, err := PartitionAxis(5, 0); !errors.Is(err, ErrInvalidSplit) {
		t.Errorf("expected ErrInvalidSplit, got %v", err)
	}
	if _, err := PartitionAxis(-1, 2); !errors.Is(err, ErrInvalidSplit) {
		t.Errorf("expected ErrInvalidSplit, got %v", err)
	}
}

func TestChunkifyStampsRanks(t *testing.T) {
	a := seqArray(t, []int{6, 4, 3}, Metadata{"filename": "x.jpg"})
	chunks, err := Chunkify(a, 4)
	if err != nil {
		t.Fatal(err)
	}

	rows := []int{}
	for i, ch := range chunks {
		rows = append(rows, ch.Len())
		d := ch.DimData()
		if d[0].ProcGridRank != i || d[0].ProcGridSize != 4 {
			t.Errorf("chunk %d stamped %d/%d", i, d[0].ProcGridRank, d[0].ProcGridSize)
		}
		if d[0].Size != 6 {
			t.Errorf("chunk %d global size = %d, want 6", i, d[0].Size)
		}
		if d[1].ProcGridSize != 1 || d[2].ProcGridSize != 1 {
			t.Errorf("chunk %d trailing axes stamped", i)
		}
	}
	if diff := cmp.Diff([]int{2, 2, 1, 1}, rows); diff != "" {
		t.Errorf("rows (-want +got):\n%s", diff)
	}

	starts := []int{}
	for _, ch := range chunks {
		starts = append(starts, ch.DimData()[0].Start)
	}
	if diff := cmp.Diff([]int{0, 2, 4, 5}, starts); diff != "" {
		t.Errorf("starts (-want +got):\n%s", diff)
	}
}

func TestChunkifyNoAliasing(t *testing.T) {
	md := Metadata{
		"filename": "x.jpg",
		"nested":   map[string]interface{}{"k": "v"},
		"tags":     map[string]string{"camera": "a"},
		"rows":     []map[string]interface{}{{"k": "v"}},
		"flags":    []bool{true},
		"ids":      []int64{1},
		"counts":   map[string]int{"n": 1},
	}
	a := seqArray(t, []int{4, 2}, md)
	chunks, err := Chunkify(a, 2)
	if err != nil {
		t.Fatal(err)
	}

	w := chunks[0].Metadata()
	w["filename"] = "worker.jpg"
	w["nested"].(map[string]interface{})["k"] = "changed"
	w["tags"].(map[string]string)["camera"] = "changed"
	w["rows"].([]map[string]interface{})[0]["k"] = "changed"
	w["flags"].([]bool)[0] = false
	w["ids"].([]int64)[0] = 99
	w["counts"].(map[string]int)["n"] = 99
	chunks[0].Buffer()[0] = 250

	for name, other := range map[string]Metadata{"sibling": chunks[1].Metadata(), "source": a.Metadata(), "caller": md} {
		if other["filename"] != "x.jpg" {
			t.Errorf("%s: filename shared", name)
		}
		if other["nested"].(map[string]interface{})["k"] != "v" {
			t.Errorf("%s: nested map shared", name)
		}
		if other["tags"].(map[string]string)["camera"] != "a" {
			t.Errorf("%s: map[string]string shared", name)
		}
		if other["rows"].([]map[string]interface{})[0]["k"] != "v" {
			t.Errorf("%s: slice of maps shared", name)
		}
		if !other["flags"].([]bool)[0] {
			t.Errorf("%s: []bool shared", name)
		}
		if other["ids"].([]int64)[0] != 1 {
			t.Errorf("%s: []int64 shared", name)
		}
		if other["counts"].(map[string]int)["n"] != 1 {
			t.Errorf("%s: map[string]int shared", name)
		}
	}
	if a.Buffer()[0] != 0 {
		t.Errorf("buffer shared with source")
	}
}

func TestChunkifyErrors(t *testing.T) {
	a := seqArray(t, []int{4}, nil)
	if _, err := Chunkify(a, 0); !errors.Is(err, ErrInvalidSplit) {
		t.Errorf("expected ErrInvalidSplit, got %v", err)
	}
	scalar, err := NewChunkedArray([]byte{1}, nil, Uint8)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Chunkify(scalar, 2); !errors.Is(err, ErrInvalidSplit) {
		t.Errorf("expected ErrInvalidSplit, got %v", err)
	}
}
