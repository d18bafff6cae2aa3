package automation

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/qapilot/backend/internal/ai"
)

// blockingGenerator counts concurrent Complete calls and holds each one
// until released.
type blockingGenerator struct {
	release chan struct{}
	active  atomic.Int32
	peak    atomic.Int32
}

func (g *blockingGenerator) Complete(ctx context.Context, _ ai.Request) (string, error) {
	n := g.active.Add(1)
	for {
		p := g.peak.Load()
		if n <= p || g.peak.CompareAndSwap(p, n) {
			break
		}
	}
	defer g.active.Add(-1)

	select {
	case <-g.release:
		return "await page.goto('x')", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func TestPoolCapsConcurrency(t *testing.T) {
	gen := &blockingGenerator{release: make(chan struct{})}
	pool := NewPool(NewGenerator(gen), 2, zerolog.Nop())
	defer pool.Close()

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := pool.Submit(context.Background(), "cmd", "chromium"); err != nil {
				t.Errorf("Submit() error = %v", err)
			}
		}()
	}

	// Give workers a moment to pick up jobs, then let everything finish.
	time.Sleep(50 * time.Millisecond)
	close(gen.release)
	wg.Wait()

	if peak := gen.peak.Load(); peak > 2 {
		t.Fatalf("peak concurrency = %d, want <= 2", peak)
	}
}

func TestPoolReturnsResult(t *testing.T) {
	pool := NewPool(NewGenerator(&ai.MockGenerator{Response: "await page.goto('x')"}), 1, zerolog.Nop())
	defer pool.Close()

	code, err := pool.Submit(context.Background(), "cmd", "firefox")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if code == "" {
		t.Fatal("expected generated code")
	}
}

func TestPoolSubmitHonorsContext(t *testing.T) {
	gen := &blockingGenerator{release: make(chan struct{})}
	pool := NewPool(NewGenerator(gen), 1, zerolog.Nop())
	defer func() {
		close(gen.release)
		pool.Close()
	}()

	// Occupy the only worker.
	go pool.Submit(context.Background(), "cmd", "chromium")
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if _, err := pool.Submit(ctx, "cmd", "chromium"); err != context.DeadlineExceeded {
		t.Fatalf("Submit() error = %v, want context.DeadlineExceeded", err)
	}
}

func TestPoolClose(t *testing.T) {
	pool := NewPool(NewGenerator(&ai.MockGenerator{Response: "code"}), 1, zerolog.Nop())
	pool.Close()

	if _, err := pool.Submit(context.Background(), "cmd", "chromium"); err != ErrPoolClosed {
		t.Fatalf("Submit() after Close error = %v, want ErrPoolClosed", err)
	}
}
