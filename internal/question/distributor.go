package question

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/pranavjoshi/trivia-gateway/internal/logging"
	"github.com/pranavjoshi/trivia-gateway/internal/metrics"
)

// FetchProvider is what the distributor needs from the fetcher.
type FetchProvider interface {
	Fetch(ctx context.Context, req Request) ([]Question, error)
}

// ShortfallFiller tops up a distribution that came up short of the requested
// total, e.g. with uncategorized questions. The default is a no-op; a real
// filler is wired in only when generic fallback is enabled.
type ShortfallFiller interface {
	Fill(ctx context.Context, missing int, difficulty string) ([]Question, error)
}

// NopFiller never fills.
type NopFiller struct{}

func (NopFiller) Fill(context.Context, int, string) ([]Question, error) { return nil, nil }

// Distributor partitions a total question count across the caller's topics,
// resolves each topic through the cache, and merges results in the
// caller-supplied topic order.
type Distributor struct {
	fetcher  FetchProvider
	cache    Cache
	filler   ShortfallFiller
	logger   zerolog.Logger
	recorder *metrics.Recorder
}

func NewDistributor(fetcher FetchProvider, cache Cache, filler ShortfallFiller, logger zerolog.Logger, recorder *metrics.Recorder) *Distributor {
	if filler == nil {
		filler = NopFiller{}
	}
	return &Distributor{
		fetcher:  fetcher,
		cache:    cache,
		filler:   filler,
		logger:   logger,
		recorder: recorder,
	}
}

// ComputeQuotas splits total across topics: base = total/k for everyone, and
// the first total%k topics in the caller's order get one extra. The sum is
// exactly total for any k >= 1; when total < k the tail topics get 0 and are
// skipped entirely.
func ComputeQuotas(topics []string, total int) []TopicQuota {
	k := len(topics)
	if k == 0 {
		return nil
	}
	base := total / k
	remainder := total % k
	quotas := make([]TopicQuota, k)
	for i, topic := range topics {
		count := base
		if i < remainder {
			count++
		}
		quotas[i] = TopicQuota{Topic: topic, Count: count}
	}
	return quotas
}

type topicOutcome struct {
	questions []Question
	err       error
}

// Distribute fetches total questions spread across topics. Topics run
// concurrently, one goroutine each; the merge is always in the caller's topic
// order regardless of completion order. A failed topic never discards the
// others' work: the caller gets everything that arrived plus a report of what
// did not.
func (d *Distributor) Distribute(ctx context.Context, topics []string, total int, difficulty string) (Result, error) {
	if len(topics) == 0 {
		return Result{}, ErrNoTopics
	}
	if total < 1 {
		return Result{}, ErrInvalidTotal
	}

	quotas := ComputeQuotas(topics, total)

	outcomes := make([]topicOutcome, len(quotas))
	var wg sync.WaitGroup
	for i, quota := range quotas {
		if quota.Count == 0 {
			continue
		}
		wg.Add(1)
		go func(i int, quota TopicQuota) {
			defer wg.Done()
			qs, err := d.resolveTopic(ctx, Request{
				Topic:      quota.Topic,
				Amount:     quota.Count,
				Difficulty: difficulty,
			})
			outcomes[i] = topicOutcome{questions: qs, err: err}
		}(i, quota)
	}
	wg.Wait()

	result := Result{Questions: make([]Question, 0, total)}
	attempted := 0
	for i, quota := range quotas {
		if quota.Count == 0 {
			continue
		}
		attempted++
		if outcomes[i].err != nil {
			result.Failed = append(result.Failed, TopicFailure{Topic: quota.Topic, Err: outcomes[i].err})
			continue
		}
		result.Questions = append(result.Questions, outcomes[i].questions...)
	}

	if attempted > 0 && len(result.Failed) == attempted {
		d.recorder.ObserveDistribute(metrics.DistributeOutcomeTotalFailure)
		return result, &TotalFailureError{Failures: result.Failed}
	}

	if missing := total - len(result.Questions); missing > 0 {
		if extra, err := d.filler.Fill(ctx, missing, difficulty); err != nil {
			logger := d.requestLogger(ctx)
			logger.Warn().Err(err).Int("missing", missing).Msg("shortfall fill failed")
		} else {
			result.Questions = append(result.Questions, extra...)
		}
	}
	if len(result.Questions) > total {
		result.Questions = result.Questions[:total]
	}

	if len(result.Failed) > 0 {
		d.recorder.ObserveDistribute(metrics.DistributeOutcomePartial)
	} else {
		d.recorder.ObserveDistribute(metrics.DistributeOutcomeSuccess)
	}
	return result, nil
}

// resolveTopic consults the cache before the upstream. Cache errors degrade
// to a miss rather than failing the topic; the cache is an optimization, not
// a dependency.
func (d *Distributor) resolveTopic(ctx context.Context, req Request) ([]Question, error) {
	logger := d.requestLogger(ctx)

	cached, err := d.cache.Lookup(ctx, req)
	if err != nil {
		logger.Warn().Err(err).Str("topic", req.Topic).Msg("cache lookup failed")
		d.recorder.ObserveCacheLookup(metrics.CacheLookupError)
	} else if cached != nil {
		d.recorder.ObserveCacheLookup(metrics.CacheLookupHit)
		return cached, nil
	} else {
		d.recorder.ObserveCacheLookup(metrics.CacheLookupMiss)
	}

	qs, err := d.fetcher.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := d.cache.Store(ctx, req, qs); err != nil {
		logger.Warn().Err(err).Str("topic", req.Topic).Msg("cache store failed")
	}
	return qs, nil
}

// requestLogger prefers a request-scoped logger carried in ctx (the HTTP
// handler and the prefetch worker both inject one) over the constructor
// logger.
func (d *Distributor) requestLogger(ctx context.Context) zerolog.Logger {
	if logger := logging.FromContext(ctx); logger.GetLevel() != zerolog.Disabled {
		return logger
	}
	return d.logger
}
