package collection

import (
	"sync"
	"testing"
)

func TestSyncMap(t *testing.T) {
	m := NewSyncMap[string, int]()
	if _, ok := m.Get("a"); ok {
		t.Fatalf("unexpected entry")
	}
	m.Put("a", 1)
	if v, ok := m.Get("a"); !ok || v != 1 {
		t.Fatalf("got %v %v, want 1 true", v, ok)
	}
	if v, loaded := m.GetOrPut("a", 2); !loaded || v != 1 {
		t.Fatalf("GetOrPut existing: got %v %v", v, loaded)
	}
	if v, loaded := m.GetOrPut("b", 2); loaded || v != 2 {
		t.Fatalf("GetOrPut new: got %v %v", v, loaded)
	}
	if m.Len() != 2 {
		t.Fatalf("len: got %d, want 2", m.Len())
	}
	m.Delete("a")
	if _, ok := m.Get("a"); ok {
		t.Fatalf("delete failed")
	}
	seen := 0
	m.Range(func(string, int) bool {
		seen++
		return true
	})
	if seen != 1 {
		t.Fatalf("range visited %d entries, want 1", seen)
	}
}

func TestSyncMap_Concurrent(t *testing.T) {
	m := NewSyncMap[int, int]()
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			m.Put(n, n)
			m.Get(n)
			m.GetOrPut(n%4, n)
		}(i)
	}
	wg.Wait()
	if m.Len() != 32 {
		t.Fatalf("len: got %d, want 32", m.Len())
	}
}
