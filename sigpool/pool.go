// Package sigpool provides a worker pool that signs or verifies many
// BIP-143 signatures in parallel, so that a commitment transaction with a
// large number of HTLCs does not pay the cost of signing each one serially.
// It mirrors the role the teacher's lnwallet.LightningChannel.sigPool plays:
// a pool of workers fed by a lock-free queue, started once at channel open
// and torn down at channel close.
package sigpool

import (
	"fmt"
	"runtime"

	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/lightningnetwork/lnd/queue"
)

// queueBufferPerWorker sizes the ConcurrentQueue's internal buffer relative
// to the worker count, giving producers headroom to submit a full
// commitment's worth of HTLC jobs without blocking on a slow worker.
const queueBufferPerWorker = 50

// signJob is one unit of pool work: an opaque closure that performs a
// single BIP-143 signature, plus the channel its result is delivered on.
type signJob struct {
	fn   func() (*ecdsa.Signature, error)
	resp chan signResult
}

type signResult struct {
	sig *ecdsa.Signature
	err error
}

// Pool is a fixed-size set of signing workers draining a shared
// queue.ConcurrentQueue. A Pool must be Start'd before use and Stop'd when
// the owning channel actor shuts down.
type Pool struct {
	numWorkers int
	queue      *queue.ConcurrentQueue
	quit       chan struct{}
}

// New constructs a Pool with numWorkers workers. A numWorkers of zero or
// less defaults to runtime.NumCPU(), matching the teacher's
// newSigPool(runtime.NumCPU(), signer) call site.
func New(numWorkers int) *Pool {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}

	return &Pool{
		numWorkers: numWorkers,
		queue:      queue.NewConcurrentQueue(numWorkers * queueBufferPerWorker),
		quit:       make(chan struct{}),
	}
}

// Start launches the pool's worker goroutines.
func (p *Pool) Start() error {
	log.Debugf("Starting sigpool with %d workers", p.numWorkers)

	p.queue.Start()

	for i := 0; i < p.numWorkers; i++ {
		go p.worker()
	}

	return nil
}

// Stop signals every worker to exit and drains the underlying queue. It
// does not wait for in-flight Submit calls to complete; callers must not
// invoke Submit concurrently with Stop.
func (p *Pool) Stop() error {
	log.Debugf("Stopping sigpool")

	close(p.quit)
	p.queue.Stop()
	return nil
}

func (p *Pool) worker() {
	for {
		select {
		case item, ok := <-p.queue.ChanOut():
			if !ok {
				return
			}
			job := item.(signJob)
			sig, err := job.fn()
			job.resp <- signResult{sig: sig, err: err}

		case <-p.quit:
			return
		}
	}
}

// Submit runs every job concurrently across the pool's workers and returns
// their results in the same order the jobs were given. The first job to
// fail short-circuits the result collection and its error is returned; the
// other jobs are still allowed to finish in the background (their results
// are simply discarded), since the signer treats any job failure as fatal
// to the whole batch.
func (p *Pool) Submit(jobs []func() (*ecdsa.Signature, error)) ([]*ecdsa.Signature, error) {
	if len(jobs) == 0 {
		return nil, nil
	}

	resps := make([]chan signResult, len(jobs))
	for i, fn := range jobs {
		resp := make(chan signResult, 1)
		resps[i] = resp
		p.queue.ChanIn() <- signJob{fn: fn, resp: resp}
	}

	out := make([]*ecdsa.Signature, len(jobs))
	for i, resp := range resps {
		result := <-resp
		if result.err != nil {
			log.Errorf("Sign job %d failed: %v", i, result.err)
			return nil, fmt.Errorf("sign job %d failed: %w", i, result.err)
		}
		out[i] = result.sig
	}

	return out, nil
}
