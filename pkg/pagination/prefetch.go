package pagination

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// PrefetchConfig holds prefetcher configuration
type PrefetchConfig struct {
	// MaxConcurrency is the maximum number of first pages loaded in parallel
	MaxConcurrency int
	// Timeout per first-page load
	Timeout time.Duration
}

// DefaultPrefetchConfig returns the default prefetch configuration
func DefaultPrefetchConfig() PrefetchConfig {
	return PrefetchConfig{
		MaxConcurrency: 4,
		Timeout:        15 * time.Second,
	}
}

// Primer is implemented by *Fetcher[T] for every item type
type Primer interface {
	Prime(ctx context.Context) error
}

// PrimeResult is the outcome of priming one fetcher
type PrimeResult struct {
	Index int
	Error error
}

// Prefetcher loads the first page of many independent fetchers with a worker pool.
// Each fetcher keeps its own state; the pool only bounds concurrency.
type Prefetcher struct {
	config PrefetchConfig
}

// NewPrefetcher creates a new prefetcher
func NewPrefetcher(config PrefetchConfig) *Prefetcher {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 4
	}
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}

	return &Prefetcher{config: config}
}

// PrimeAll primes every fetcher and returns one result per fetcher, ordered by index.
// A failed fetcher does not stop the others.
func (p *Prefetcher) PrimeAll(ctx context.Context, fetchers []Primer) []PrimeResult {
	results := make([]PrimeResult, len(fetchers))
	if len(fetchers) == 0 {
		return results
	}

	start := time.Now()
	queue := make(chan int, len(fetchers))
	for i := range fetchers {
		queue <- i
	}
	close(queue)

	workers := p.config.MaxConcurrency
	if workers > len(fetchers) {
		workers = len(fetchers)
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go p.worker(ctx, fetchers, queue, results, &wg, w)
	}
	wg.Wait()

	failed := 0
	for _, r := range results {
		if r.Error != nil {
			failed++
		}
	}

	log.Debug().
		Int("fetchers", len(fetchers)).
		Int("failed", failed).
		Dur("duration", time.Since(start)).
		Msg("Prefetch complete")

	return results
}

// worker primes fetchers from the queue. Each index is written by exactly one worker.
func (p *Prefetcher) worker(ctx context.Context, fetchers []Primer, queue <-chan int, results []PrimeResult, wg *sync.WaitGroup, workerID int) {
	defer wg.Done()

	for i := range queue {
		results[i].Index = i

		if err := ctx.Err(); err != nil {
			results[i].Error = err
			continue
		}

		primeCtx, cancel := context.WithTimeout(ctx, p.config.Timeout)
		err := fetchers[i].Prime(primeCtx)
		cancel()

		if err != nil {
			log.Warn().
				Err(err).
				Int("worker_id", workerID).
				Int("index", i).
				Msg("Prefetch failed")
			results[i].Error = err
		}
	}
}
