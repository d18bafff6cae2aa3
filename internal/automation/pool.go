package automation

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

var ErrPoolClosed = errors.New("codegen pool is closed")

type job struct {
	ctx       context.Context
	nlCommand string
	browser   string
	result    chan jobResult
}

type jobResult struct {
	code string
	err  error
}

// Pool bounds concurrent code generation. Submit blocks the caller until a
// worker finishes the job, so HTTP handlers still respond synchronously
// while total in-flight generations stay capped.
type Pool struct {
	gen    *Generator
	jobs   chan job
	wg     sync.WaitGroup
	once   sync.Once
	closed chan struct{}
	logger zerolog.Logger
}

func NewPool(gen *Generator, workers int, logger zerolog.Logger) *Pool {
	if workers <= 0 {
		workers = 4
	}
	p := &Pool{
		gen:    gen,
		jobs:   make(chan job),
		closed: make(chan struct{}),
		logger: logger,
	}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker(i)
	}
	return p
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for j := range p.jobs {
		code, err := p.gen.Generate(j.ctx, j.nlCommand, j.browser)
		if err != nil {
			p.logger.Warn().Err(err).Int("worker", id).Msg("code generation failed")
		}
		j.result <- jobResult{code: code, err: err}
	}
}

// Submit queues a generation job and waits for its result. The context
// cancels both the wait for a free worker and the generation itself.
func (p *Pool) Submit(ctx context.Context, nlCommand, browser string) (string, error) {
	j := job{ctx: ctx, nlCommand: nlCommand, browser: browser, result: make(chan jobResult, 1)}

	select {
	case p.jobs <- j:
	case <-ctx.Done():
		return "", ctx.Err()
	case <-p.closed:
		return "", ErrPoolClosed
	}

	select {
	case res := <-j.result:
		return res.code, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Close stops accepting jobs and waits for in-flight generations.
func (p *Pool) Close() {
	p.once.Do(func() {
		close(p.closed)
		close(p.jobs)
	})
	p.wg.Wait()
}
