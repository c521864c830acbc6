package texture

import (
	"context"
	"image"
	"sync"
)

// Job asks for one face to be resampled to Size x Size and mipmapped
type Job struct {
	Index  int
	Image  image.Image
	Size   int
	Levels int
	// Result channel - will be sent the result when done
	Result chan<- Result
}

// Result is the mip chain of the job with the same Index
type Result struct {
	Index int
	Chain []*image.RGBA
}

// Pool manages goroutines preparing texture data
type Pool struct {
	jobQueue chan Job
	workers  int
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewPool starts workers goroutines reading from a queue of queueSize jobs
func NewPool(workers, queueSize int) *Pool {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		jobQueue: make(chan Job, queueSize),
		workers:  max(workers, 1),
		ctx:      ctx,
		cancel:   cancel,
	}
	for range p.workers {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

// SubmitBlocking waits for room in the queue
func (p *Pool) SubmitBlocking(job Job) {
	select {
	case p.jobQueue <- job:
	case <-p.ctx.Done():
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for job := range p.jobQueue {
		res := Result{Index: job.Index, Chain: MipChain(Resample(job.Image, job.Size, job.Size), job.Levels)}
		select {
		case job.Result <- res:
		case <-p.ctx.Done():
			return
		}
	}
}

// Shutdown stops accepting jobs and waits for the workers. Queued jobs still
// run unless their result can no longer be delivered.
func (p *Pool) Shutdown() {
	close(p.jobQueue)
	p.wg.Wait()
	p.cancel()
}
