package portpool

import (
	"sync"
	"testing"
)

func TestRecordOnlyFirst(t *testing.T) {
	p := New()
	if _, ok := p.RandomPort("dubbo"); ok {
		t.Fatal("expected no cached port initially")
	}
	cached, won := p.RecordRandomPort("dubbo", 20880)
	if !won || cached != 20880 {
		t.Fatalf("first record should win with its own port, got cached=%d won=%v", cached, won)
	}
	cached, won = p.RecordRandomPort("dubbo", 30000)
	if won || cached != 20880 {
		t.Fatalf("second record should not overwrite: got cached=%d won=%v", cached, won)
	}
	got, ok := p.RandomPort("dubbo")
	if !ok || got != 20880 {
		t.Fatalf("want cached port 20880, got %d ok=%v", got, ok)
	}
}

func TestRecordConcurrentOnlyOneWinner(t *testing.T) {
	p := New()
	const n = 50
	var wg sync.WaitGroup
	wins := make([]bool, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, won := p.RecordRandomPort("dubbo", uint16(20000+i))
			wins[i] = won
		}(i)
	}
	wg.Wait()
	winners := 0
	for _, w := range wins {
		if w {
			winners++
		}
	}
	if winners != 1 {
		t.Fatalf("want exactly 1 winner, got %d", winners)
	}
}

func TestPoolsAreIndependent(t *testing.T) {
	p1, p2 := New(), New()
	p1.RecordRandomPort("dubbo", 1)
	if _, ok := p2.RandomPort("dubbo"); ok {
		t.Fatal("pools must not share state")
	}
}
