package question

import (
	"context"
	"fmt"
	"html"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pranavjoshi/trivia-gateway/internal/metrics"
	"github.com/pranavjoshi/trivia-gateway/internal/question/external"
)

type upstream interface {
	Fetch(ctx context.Context, amount, categoryID int, difficulty string) ([]external.OpenTDBQuestion, error)
}

// FetcherOptions tunes the retry schedule. Zero values fall back to the
// documented defaults (3 attempts, 5s per attempt, 400ms backoff unit).
type FetcherOptions struct {
	MaxRetries  int
	Timeout     time.Duration
	BackoffUnit time.Duration
}

// Fetcher performs a bounded-retry fetch for a single topic. Attempt i
// (0-indexed) waits i*BackoffUnit before going out, so with 3 attempts the
// schedule is t=0, t=unit, t=2*unit. No jitter; the schedule is deterministic
// so tests can pin it down.
type Fetcher struct {
	client      upstream
	maxRetries  int
	timeout     time.Duration
	backoffUnit time.Duration
	logger      zerolog.Logger
	recorder    *metrics.Recorder

	// sleep is swapped out in tests to observe the backoff schedule.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewFetcher(client upstream, opts FetcherOptions, logger zerolog.Logger, recorder *metrics.Recorder) *Fetcher {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.BackoffUnit <= 0 {
		opts.BackoffUnit = 400 * time.Millisecond
	}
	return &Fetcher{
		client:      client,
		maxRetries:  opts.MaxRetries,
		timeout:     opts.Timeout,
		backoffUnit: opts.BackoffUnit,
		logger:      logger,
		recorder:    recorder,
		sleep:       sleepCtx,
	}
}

// Fetch requests req.Amount questions for one topic, retrying retryable
// upstream failures per the linear backoff schedule. It never panics across
// its boundary; callers always get a typed error. The cache is a layer above.
func (f *Fetcher) Fetch(ctx context.Context, req Request) ([]Question, error) {
	categoryID := CategoryID(req.Topic)

	var lastErr error
	for attempt := 0; attempt < f.maxRetries; attempt++ {
		if wait := time.Duration(attempt) * f.backoffUnit; wait > 0 {
			if err := f.sleep(ctx, wait); err != nil {
				return nil, err
			}
		}

		raw, err := f.attempt(ctx, req.Amount, categoryID, req.Difficulty)
		if err == nil {
			f.recorder.ObserveFetch(metrics.FetchOutcomeSuccess)
			return normalize(raw, req.Topic), nil
		}
		lastErr = err

		if !external.Retryable(err) {
			f.recorder.ObserveFetch(metrics.FetchOutcomeRejected)
			f.logger.Warn().Err(err).Str("topic", req.Topic).Msg("upstream rejected fetch, not retrying")
			return nil, err
		}
		f.recorder.ObserveFetch(metrics.FetchOutcomeRetry)
		f.logger.Debug().Err(err).Str("topic", req.Topic).Int("attempt", attempt+1).Msg("fetch attempt failed")
	}

	f.recorder.ObserveFetch(metrics.FetchOutcomeExhausted)
	return nil, fmt.Errorf("fetch %q after %d attempts: %w", req.Topic, f.maxRetries, lastErr)
}

func (f *Fetcher) attempt(ctx context.Context, amount, categoryID int, difficulty string) ([]external.OpenTDBQuestion, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	return f.client.Fetch(attemptCtx, amount, categoryID, difficulty)
}

// normalize converts raw upstream questions into value data: HTML entities
// unescaped, the correct answer appended after the incorrect ones.
func normalize(raw []external.OpenTDBQuestion, topic string) []Question {
	out := make([]Question, 0, len(raw))
	for _, r := range raw {
		choices := make([]string, 0, len(r.IncorrectAnswers)+1)
		for _, a := range r.IncorrectAnswers {
			choices = append(choices, html.UnescapeString(a))
		}
		choices = append(choices, html.UnescapeString(r.CorrectAnswer))
		if len(choices) < 2 || r.Question == "" {
			continue
		}
		category := html.UnescapeString(r.Category)
		if category == "" {
			category = topic
		}
		out = append(out, Question{
			ID:           uuid.NewString(),
			Text:         html.UnescapeString(r.Question),
			Choices:      choices,
			CorrectIndex: len(choices) - 1,
			Category:     category,
			Difficulty:   r.Difficulty,
		})
	}
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
