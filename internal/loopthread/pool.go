package loopthread

import "github.com/tinyreactor/tinyreactor/internal/eventloop"

// Pool configures a fixed number of worker threads and load-balances
// accepted connections across them round-robin — the sole load-balancing
// policy per spec §4.5.
type Pool struct {
	baseLoop *eventloop.EventLoop
	n        int
	threads  []*Thread
	loops    []*eventloop.EventLoop
	next     int
}

// NewPool configures a pool of n worker threads. n == 0 means "no workers";
// GetNextLoop then always returns baseLoop, so the acceptor and every
// connection share a single thread.
func NewPool(baseLoop *eventloop.EventLoop, n int) *Pool {
	return &Pool{baseLoop: baseLoop, n: n}
}

// Start spawns all n worker threads, running initCb (if non-nil) on each
// worker's own thread before it enters its loop. Blocks until every worker's
// EventLoop exists.
func (p *Pool) Start(initCb func(*eventloop.EventLoop)) {
	p.loops = make([]*eventloop.EventLoop, 0, p.n)
	for i := 0; i < p.n; i++ {
		th := New(initCb)
		loop := th.Start()
		p.threads = append(p.threads, th)
		p.loops = append(p.loops, loop)
	}
}

// GetNextLoop returns the next worker loop in round-robin order, or the
// base loop if the pool has zero worker threads.
func (p *Pool) GetNextLoop() *eventloop.EventLoop {
	if p.n == 0 {
		return p.baseLoop
	}
	loop := p.loops[p.next]
	p.next = (p.next + 1) % len(p.loops)
	return loop
}

// AllLoops returns every worker loop, or just the base loop when the pool
// has no workers — used to post shutdown work to every loop that might own
// a connection.
func (p *Pool) AllLoops() []*eventloop.EventLoop {
	if p.n == 0 {
		return []*eventloop.EventLoop{p.baseLoop}
	}
	return p.loops
}
