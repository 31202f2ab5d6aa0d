package question

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pranavjoshi/trivia-gateway/internal/logging"
)

type stubFetcher struct {
	mu    sync.Mutex
	calls []Request
	fetch func(ctx context.Context, req Request) ([]Question, error)
}

func (s *stubFetcher) Fetch(ctx context.Context, req Request) ([]Question, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req)
	s.mu.Unlock()
	return s.fetch(ctx, req)
}

func (s *stubFetcher) fetchedTopics() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	topics := make([]string, 0, len(s.calls))
	for _, c := range s.calls {
		topics = append(topics, c.Topic)
	}
	return topics
}

func questionsFor(topic string, n int) []Question {
	qs := make([]Question, n)
	for i := range qs {
		qs[i] = Question{
			ID:           fmt.Sprintf("%s-%d", topic, i),
			Text:         fmt.Sprintf("Question %d about %s?", i, topic),
			Choices:      []string{"B", "C", "D", "A"},
			CorrectIndex: 3,
			Category:     topic,
		}
	}
	return qs
}

func newTestDistributor(fetcher FetchProvider, cache Cache, filler ShortfallFiller) *Distributor {
	return NewDistributor(fetcher, cache, filler, zerolog.Nop(), nil)
}

func TestComputeQuotasSumsExactly(t *testing.T) {
	cases := []struct {
		total  int
		topics int
	}{
		{total: 1, topics: 1},
		{total: 5, topics: 2},
		{total: 10, topics: 3},
		{total: 7, topics: 7},
		{total: 2, topics: 5},
		{total: 100, topics: 9},
	}
	for _, tc := range cases {
		topics := make([]string, tc.topics)
		for i := range topics {
			topics[i] = fmt.Sprintf("topic-%d", i)
		}
		quotas := ComputeQuotas(topics, tc.total)

		sum := 0
		base := tc.total / tc.topics
		for _, q := range quotas {
			sum += q.Count
			assert.Contains(t, []int{base, base + 1}, q.Count,
				"quota for %s must be base or base+1 (total=%d k=%d)", q.Topic, tc.total, tc.topics)
		}
		assert.Equal(t, tc.total, sum, "quotas must sum to total (total=%d k=%d)", tc.total, tc.topics)
	}
}

func TestComputeQuotasEmptyTopics(t *testing.T) {
	assert.Empty(t, ComputeQuotas(nil, 10))
	assert.Empty(t, ComputeQuotas([]string{}, 10))
}

func TestComputeQuotasRemainderGoesToFirstTopics(t *testing.T) {
	quotas := ComputeQuotas([]string{"A", "B", "C"}, 10)
	assert.Equal(t, []TopicQuota{{"A", 4}, {"B", 3}, {"C", 3}}, quotas)
}

func TestDistributeSkipsZeroQuotaTopics(t *testing.T) {
	fetcher := &stubFetcher{fetch: func(_ context.Context, req Request) ([]Question, error) {
		return questionsFor(req.Topic, req.Amount), nil
	}}
	cache := NewMemoryCache(time.Minute)
	d := newTestDistributor(fetcher, cache, nil)

	result, err := d.Distribute(context.Background(), []string{"A", "B", "C"}, 2, "")
	require.NoError(t, err)
	assert.Len(t, result.Questions, 2)
	assert.ElementsMatch(t, []string{"A", "B"}, fetcher.fetchedTopics(), "C has quota 0 and must never be fetched")

	cached, err := cache.Lookup(context.Background(), Request{Topic: "C", Amount: 0})
	require.NoError(t, err)
	assert.Nil(t, cached, "no cache entry may exist for a zero-quota topic")
}

func TestDistributeRejectsInvalidInput(t *testing.T) {
	fetcher := &stubFetcher{fetch: func(_ context.Context, req Request) ([]Question, error) {
		t.Fatal("fetch must not run on validation failure")
		return nil, nil
	}}
	d := newTestDistributor(fetcher, NewMemoryCache(time.Minute), nil)

	_, err := d.Distribute(context.Background(), nil, 5, "")
	assert.ErrorIs(t, err, ErrNoTopics)

	_, err = d.Distribute(context.Background(), []string{"A"}, 0, "")
	assert.ErrorIs(t, err, ErrInvalidTotal)
}

func TestDistributeConsultsCacheBeforeFetching(t *testing.T) {
	fetcher := &stubFetcher{fetch: func(_ context.Context, req Request) ([]Question, error) {
		return questionsFor(req.Topic, req.Amount), nil
	}}
	cache := NewMemoryCache(time.Minute)
	d := newTestDistributor(fetcher, cache, nil)

	result, err := d.Distribute(context.Background(), []string{"History"}, 5, "")
	require.NoError(t, err)
	assert.Len(t, result.Questions, 5)
	assert.Len(t, fetcher.fetchedTopics(), 1)

	// Same shape again: served from cache, no second upstream call.
	result, err = d.Distribute(context.Background(), []string{"History"}, 5, "")
	require.NoError(t, err)
	assert.Len(t, result.Questions, 5)
	assert.Len(t, fetcher.fetchedTopics(), 1, "second request must be a cache hit")
}

func TestDistributePartialFailureKeepsSuccessfulTopics(t *testing.T) {
	fetcher := &stubFetcher{fetch: func(_ context.Context, req Request) ([]Question, error) {
		if req.Topic == "B" {
			return nil, errors.New("upstream exhausted")
		}
		return questionsFor(req.Topic, req.Amount), nil
	}}
	d := newTestDistributor(fetcher, NewMemoryCache(time.Minute), nil)

	result, err := d.Distribute(context.Background(), []string{"A", "B"}, 6, "")
	require.NoError(t, err, "partial failure must not surface as an error")
	assert.Len(t, result.Questions, 3, "A's share survives B's failure")
	require.Len(t, result.Failed, 1)
	assert.Equal(t, "B", result.Failed[0].Topic)
	assert.Contains(t, result.Failed[0].Reason(), "upstream exhausted")
}

func TestDistributeTotalFailure(t *testing.T) {
	fetcher := &stubFetcher{fetch: func(_ context.Context, req Request) ([]Question, error) {
		return nil, errors.New("upstream down")
	}}
	d := newTestDistributor(fetcher, NewMemoryCache(time.Minute), nil)

	result, err := d.Distribute(context.Background(), []string{"A", "B", "C"}, 9, "")
	var totalErr *TotalFailureError
	require.ErrorAs(t, err, &totalErr)
	assert.Len(t, totalErr.Failures, 3)
	assert.Empty(t, result.Questions)
}

func TestDistributeMergeOrderIsCallerTopicOrder(t *testing.T) {
	// First topic completes last; output must still lead with it.
	fetcher := &stubFetcher{fetch: func(_ context.Context, req Request) ([]Question, error) {
		if req.Topic == "Slow" {
			time.Sleep(30 * time.Millisecond)
		}
		return questionsFor(req.Topic, req.Amount), nil
	}}
	d := newTestDistributor(fetcher, NewMemoryCache(time.Minute), nil)

	result, err := d.Distribute(context.Background(), []string{"Slow", "Fast"}, 4, "")
	require.NoError(t, err)
	require.Len(t, result.Questions, 4)
	assert.Equal(t, "Slow", result.Questions[0].Category)
	assert.Equal(t, "Slow", result.Questions[1].Category)
	assert.Equal(t, "Fast", result.Questions[2].Category)
	assert.Equal(t, "Fast", result.Questions[3].Category)
}

func TestDistributeGenericFallbackFillsShortfall(t *testing.T) {
	fetcher := &stubFetcher{fetch: func(_ context.Context, req Request) ([]Question, error) {
		if req.Topic == "B" {
			return nil, errors.New("no luck")
		}
		return questionsFor(req.Topic, req.Amount), nil
	}}
	d := newTestDistributor(fetcher, NewMemoryCache(time.Minute), NewGenericFiller(fetcher))

	result, err := d.Distribute(context.Background(), []string{"A", "B"}, 6, "")
	require.NoError(t, err)
	assert.Len(t, result.Questions, 6, "filler tops the result back up to the requested total")
	require.Len(t, result.Failed, 1)
	assert.Equal(t, "B", result.Failed[0].Topic)
}

type erringCache struct{}

func (erringCache) Lookup(context.Context, Request) ([]Question, error) {
	return nil, errors.New("backend unreachable")
}

func (erringCache) Store(context.Context, Request, []Question) error {
	return errors.New("backend unreachable")
}

func TestDistributeLogsThroughRequestScopedLogger(t *testing.T) {
	fetcher := &stubFetcher{fetch: func(_ context.Context, req Request) ([]Question, error) {
		return questionsFor(req.Topic, req.Amount), nil
	}}
	d := newTestDistributor(fetcher, erringCache{}, nil)

	var buf bytes.Buffer
	ctx := logging.IntoContext(context.Background(), zerolog.New(&buf))

	result, err := d.Distribute(ctx, []string{"History"}, 2, "")
	require.NoError(t, err, "a broken cache degrades to a miss")
	assert.Len(t, result.Questions, 2)
	assert.Contains(t, buf.String(), "cache lookup failed")
	assert.Contains(t, buf.String(), "cache store failed")
}

func TestDistributeFallsBackToConstructorLogger(t *testing.T) {
	fetcher := &stubFetcher{fetch: func(_ context.Context, req Request) ([]Question, error) {
		return questionsFor(req.Topic, req.Amount), nil
	}}
	var buf bytes.Buffer
	d := NewDistributor(fetcher, erringCache{}, nil, zerolog.New(&buf), nil)

	// No logger in ctx: warnings still land on the distributor's own logger.
	_, err := d.Distribute(context.Background(), []string{"History"}, 2, "")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "cache lookup failed")
}

func TestDistributeWithoutFillerReturnsShortResult(t *testing.T) {
	fetcher := &stubFetcher{fetch: func(_ context.Context, req Request) ([]Question, error) {
		if req.Topic == "B" {
			return nil, errors.New("no luck")
		}
		return questionsFor(req.Topic, req.Amount), nil
	}}
	d := newTestDistributor(fetcher, NewMemoryCache(time.Minute), nil)

	result, err := d.Distribute(context.Background(), []string{"A", "B"}, 6, "")
	require.NoError(t, err)
	assert.Len(t, result.Questions, 3, "the no-op filler leaves the partial result alone")
}
