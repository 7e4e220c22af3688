package pkg_test

import (
	"testing"

	. "github.com/chunkdb/chunkdb/pkg"
)

func TestFilter(t *testing.T) {
	res := Filter([]int{1, 2, 3, 4, 5, 6}, func(i int) bool {
		return i%2 == 0
	})

	if len(res) != 3 {
		t.Errorf("Expected 3, got %d", len(res))
	}

	if res[0] != 2 || res[1] != 4 || res[2] != 6 {
		t.Errorf("Expected 2, 4, 6, got %d, %d, %d", res[0], res[1], res[2])
	}
}

func TestInsertSortMapOrder(t *testing.T) {
	m := NewInsertSortMap[string, int]()
	m.Push("c", 3)
	m.Push("a", 1)
	m.Push("b", 2)

	if m.Len() != 3 {
		t.Errorf("Expected 3, got %d", m.Len())
	}

	want := []string{"c", "a", "b"}
	for i, k := range m.Sorted {
		if k != want[i] {
			t.Errorf("Expected %s at %d, got %s", want[i], i, k)
		}
	}

	if m.IndexOf("a") != 1 {
		t.Errorf("Expected 1, got %d", m.IndexOf("a"))
	}

	m.Delete("a")
	if m.IndexOf("a") != -1 {
		t.Errorf("Expected -1, got %d", m.IndexOf("a"))
	}
}
