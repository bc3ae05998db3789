package termstat

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

type lines struct {
	mu  sync.Mutex
	got []string
}

func (l *lines) Printf(format string, v ...interface{}) {
	l.mu.Lock()
	l.got = append(l.got, fmt.Sprintf(format, v...))
	l.mu.Unlock()
}

func TestCollector(t *testing.T) {
	l := &lines{}
	c := NewCollector(l, time.Hour)
	c.Count("kdp.write.rows", 3, 1)
	c.Count("kdp.write.rows", 4, 1)
	c.Count("kdp.write.batches", 1, 1)
	c.Gauge("kdp.queue", 2.5, 1)
	c.Timing("ignored", time.Second, 1)
	if err := c.Close(); err != nil {
		t.Fatalf("closing: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("closing twice: %v", err)
	}

	if c.Counts()["kdp.write.rows"] != 7 {
		t.Fatalf("unexpected counts: %v", c.Counts())
	}
	if len(l.got) != 1 {
		t.Fatalf("expected one line on close, got %v", l.got)
	}
	exp := "stats kdp.queue: 2.5 kdp.write.batches: 1 kdp.write.rows: 7"
	if l.got[0] != exp {
		t.Fatalf("unexpected line:\n%s\nexp:\n%s", l.got[0], exp)
	}
}

func TestCollectorTicks(t *testing.T) {
	l := &lines{}
	c := NewCollector(l, time.Millisecond)
	defer c.Close()
	c.Count("n", 1, 1)
	deadline := time.Now().Add(5 * time.Second)
	for {
		l.mu.Lock()
		n := len(l.got)
		l.mu.Unlock()
		if n > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("nothing logged")
		}
		time.Sleep(time.Millisecond)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if !strings.Contains(l.got[0], "n: 1") {
		t.Fatalf("unexpected line: %s", l.got[0])
	}
	if len(l.got) != 1 {
		t.Fatalf("unchanged stats were logged again: %v", l.got)
	}
}
