package queue

import (
	"sync"
	"testing"
)

type testItem struct {
	ID   int
	Name string
}

func TestQueue_PushPop(t *testing.T) {
	q := New[testItem]()
	if !q.Empty() {
		t.Fatal("expected empty queue")
	}

	if _, ok := q.Pop(); ok {
		t.Error("expected pop from empty queue to fail")
	}

	q.Push(testItem{ID: 1, Name: "first"}, testItem{ID: 2, Name: "second"})
	if q.Len() != 2 {
		t.Errorf("expected length 2, got %d", q.Len())
	}

	peek, ok := q.Peek()
	if !ok || peek.ID != 1 {
		t.Errorf("expected peek {1, first}, got %+v", peek)
	}

	first, ok := q.Pop()
	if !ok || first.ID != 1 || first.Name != "first" {
		t.Errorf("expected {1, first}, got %+v", first)
	}
	if q.Len() != 1 {
		t.Errorf("expected length 1, got %d", q.Len())
	}
}

func TestQueue_Drain(t *testing.T) {
	q := New[testItem]()
	q.Push(testItem{ID: 1}, testItem{ID: 2}, testItem{ID: 3})

	items := q.Drain()
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	for i, it := range items {
		if it.ID != i+1 {
			t.Errorf("expected ID %d at %d, got %d", i+1, i, it.ID)
		}
	}
	if !q.Empty() {
		t.Error("expected empty queue after drain")
	}
}

func TestQueue_Concurrent(t *testing.T) {
	q := New[int]()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			q.Push(n)
		}(i)
	}
	wg.Wait()
	if q.Len() != 100 {
		t.Errorf("expected 100 items, got %d", q.Len())
	}
}

func TestInbox_LatestWins(t *testing.T) {
	b := NewInbox[testItem](4)

	if _, ok := b.Put(1, &testItem{ID: 1}); !ok {
		t.Fatal("expected put to succeed")
	}
	replaced, _ := b.Put(1, &testItem{ID: 2})
	if replaced == nil || replaced.ID != 1 {
		t.Errorf("expected replaced item 1, got %+v", replaced)
	}
	b.Put(3, &testItem{ID: 3})

	if b.Pending() != 2 {
		t.Errorf("expected 2 pending, got %d", b.Pending())
	}

	items := b.TakeAll()
	if len(items) != 4 {
		t.Fatalf("expected 4 slots, got %d", len(items))
	}
	if items[0] != nil || items[1].ID != 2 || items[3].ID != 3 {
		t.Errorf("unexpected items %+v", items)
	}
	if b.Pending() != 0 {
		t.Error("expected inbox to be empty after take")
	}
}

func TestInbox_OutOfRange(t *testing.T) {
	b := NewInbox[testItem](2)
	if _, ok := b.Put(2, &testItem{}); ok {
		t.Error("expected out of range key to be dropped")
	}
	if _, ok := b.Put(-1, &testItem{}); ok {
		t.Error("expected negative key to be dropped")
	}
}
