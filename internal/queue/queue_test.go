package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// testItem is a simple struct for testing the generic queue
type testItem struct {
	ID   int
	Name string
}

func TestQueue_New(t *testing.T) {
	q := New[testItem]()
	if q == nil {
		t.Fatal("expected non-nil queue")
	}
	if !q.Empty() {
		t.Error("expected empty queue")
	}
	if q.Len() != 0 {
		t.Errorf("expected length 0, got %d", q.Len())
	}
}

func TestQueue_Push(t *testing.T) {
	q := New[testItem]()

	q.Push(testItem{ID: 1, Name: "first"})
	if q.Len() != 1 {
		t.Errorf("expected length 1, got %d", q.Len())
	}

	q.Push(testItem{ID: 2}, testItem{ID: 3})
	if q.Len() != 3 {
		t.Errorf("expected length 3, got %d", q.Len())
	}
}

func TestQueue_Pop(t *testing.T) {
	q := New[testItem]()

	// Pop from empty queue reports nothing
	if result, ok := q.Pop(); ok {
		t.Errorf("expected no item, got %+v", result)
	}

	q.Push(testItem{ID: 1, Name: "first"}, testItem{ID: 2, Name: "second"})
	first, ok := q.Pop()
	if !ok || first.ID != 1 || first.Name != "first" {
		t.Errorf("expected {1, first}, got %+v", first)
	}
	if q.Len() != 1 {
		t.Errorf("expected length 1, got %d", q.Len())
	}
}

func TestQueue_PushFront(t *testing.T) {
	q := New[testItem]()
	q.Push(testItem{ID: 2}, testItem{ID: 3})

	first, _ := q.Pop()
	q.PushFront(first)
	q.PushFront(testItem{ID: 1})

	var got []int
	for !q.Empty() {
		item, _ := q.Pop()
		got = append(got, item.ID)
	}
	if len(got) != 3 || got[0] != 1 || got[1] != 2 || got[2] != 3 {
		t.Errorf("expected [1 2 3], got %v", got)
	}
}

func TestQueue_TakeWaitsForPush(t *testing.T) {
	q := New[testItem]()

	got := make(chan testItem, 1)
	go func() {
		item, err := q.Take(context.Background())
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		got <- item
	}()

	time.Sleep(20 * time.Millisecond)
	q.Push(testItem{ID: 7})

	select {
	case item := <-got:
		if item.ID != 7 {
			t.Errorf("expected item 7, got %+v", item)
		}
	case <-time.After(time.Second):
		t.Fatal("Take did not return after Push")
	}
}

func TestQueue_TakeHonoursContext(t *testing.T) {
	q := New[testItem]()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Take(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestQueue_CloseWakesTakers(t *testing.T) {
	q := New[testItem]()

	var wg sync.WaitGroup
	errs := make(chan error, 3)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := q.Take(context.Background())
			errs <- err
		}()
	}

	time.Sleep(20 * time.Millisecond)
	q.Close()
	q.Close()
	wg.Wait()
	close(errs)

	for err := range errs {
		if !errors.Is(err, ErrClosed) {
			t.Errorf("expected ErrClosed, got %v", err)
		}
	}
}

func TestQueue_CloseKeepsQueuedItems(t *testing.T) {
	q := New[testItem]()
	q.Push(testItem{ID: 1})
	q.Close()

	item, err := q.Take(context.Background())
	if err != nil || item.ID != 1 {
		t.Errorf("expected queued item, got %+v, %v", item, err)
	}
	if _, err := q.Take(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed once drained, got %v", err)
	}
}

func TestQueue_Clear(t *testing.T) {
	q := New[testItem]()
	q.Push(testItem{ID: 1}, testItem{ID: 2}, testItem{ID: 3})

	q.Clear()

	if !q.Empty() {
		t.Error("expected empty queue after clear")
	}
	if q.Len() != 0 {
		t.Errorf("expected length 0, got %d", q.Len())
	}
}

func TestQueue_GetAndEmpty(t *testing.T) {
	q := New[testItem]()
	q.Push(testItem{ID: 1}, testItem{ID: 2}, testItem{ID: 3})

	result := q.GetAndEmpty()

	if len(result) != 3 {
		t.Errorf("expected 3 items, got %d", len(result))
	}
	if result[0].ID != 1 || result[1].ID != 2 || result[2].ID != 3 {
		t.Errorf("unexpected items: %+v", result)
	}
	if !q.Empty() {
		t.Error("expected empty queue after GetAndEmpty")
	}
}

func TestQueue_ConcurrentProducersAndConsumers(t *testing.T) {
	q := New[testItem]()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var producers sync.WaitGroup
	for i := 0; i < 100; i++ {
		producers.Add(1)
		go func(id int) {
			defer producers.Done()
			q.Push(testItem{ID: id})
		}(i)
	}

	var mu sync.Mutex
	seen := make(map[int]bool)
	var consumers sync.WaitGroup
	for i := 0; i < 4; i++ {
		consumers.Add(1)
		go func() {
			defer consumers.Done()
			for {
				item, err := q.Take(ctx)
				if err != nil {
					return
				}
				mu.Lock()
				seen[item.ID] = true
				mu.Unlock()
			}
		}()
	}

	producers.Wait()
	for q.Len() > 0 {
		time.Sleep(time.Millisecond)
	}
	q.Close()
	consumers.Wait()

	if len(seen) != 100 {
		t.Errorf("expected 100 distinct items, got %d", len(seen))
	}
}
