package question

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/pranavjoshi/trivia-gateway/internal/logging"
)

// PrefetchRequest names a topic combination worth keeping warm.
type PrefetchRequest struct {
	Topics     []string
	Total      int
	Difficulty string
}

// PrefetchWorker runs distributions in the background so popular topic
// combinations are already cached when real traffic asks for them. Failures
// are logged and dropped; the next tick tries again.
type PrefetchWorker struct {
	distributor *Distributor
	queue       <-chan PrefetchRequest
	logger      zerolog.Logger
	timeout     time.Duration
	shutdownC   chan struct{}
}

func NewPrefetchWorker(distributor *Distributor, queue <-chan PrefetchRequest, logger zerolog.Logger, timeout time.Duration) *PrefetchWorker {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &PrefetchWorker{
		distributor: distributor,
		queue:       queue,
		logger:      logger,
		timeout:     timeout,
		shutdownC:   make(chan struct{}),
	}
}

func (w *PrefetchWorker) Run() {
	for {
		select {
		case <-w.shutdownC:
			w.logger.Info().Msg("prefetch worker stopping")
			return
		case req := <-w.queue:
			w.handle(req)
		}
	}
}

func (w *PrefetchWorker) handle(req PrefetchRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()
	ctx = logging.IntoContext(ctx, w.logger)

	result, err := w.distributor.Distribute(ctx, req.Topics, req.Total, req.Difficulty)
	if err != nil {
		w.logger.Warn().Err(err).Strs("topics", req.Topics).Msg("prefetch failed")
		return
	}
	if len(result.Failed) > 0 {
		w.logger.Warn().Strs("topics", req.Topics).Int("failed", len(result.Failed)).Msg("prefetch partially failed")
	}
}

func (w *PrefetchWorker) Stop() {
	close(w.shutdownC)
}
