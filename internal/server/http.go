package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pranavjoshi/trivia-gateway/internal/config"
	"github.com/pranavjoshi/trivia-gateway/internal/logging"
	"github.com/pranavjoshi/trivia-gateway/internal/metrics"
	"github.com/pranavjoshi/trivia-gateway/internal/question"
	httperrors "github.com/pranavjoshi/trivia-gateway/pkg/http/errors"
)

// QuestionSource is the single operation the rest of the application consumes:
// get N questions distributed across a topic set.
type QuestionSource interface {
	Distribute(ctx context.Context, topics []string, total int, difficulty string) (question.Result, error)
}

type questionsResponse struct {
	Questions    []question.Question `json:"questions"`
	FailedTopics []failedTopic       `json:"failed_topics,omitempty"`
}

type failedTopic struct {
	Topic  string `json:"topic"`
	Reason string `json:"reason"`
}

// NewHTTPServer wires base routes (health, metrics) plus the quiz endpoints.
func NewHTTPServer(cfg *config.App, logger zerolog.Logger, distributor QuestionSource, recorder *metrics.Recorder) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	mux.Handle("/metrics", recorder.Handler())

	mux.HandleFunc("/v1/topics", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string][]string{"topics": question.Topics()})
	})

	mux.HandleFunc("/v1/quiz/questions", NewQuestionsHandler(cfg, logger, distributor))

	return &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: mux,
	}
}

// NewQuestionsHandler serves GET /v1/quiz/questions?topics=A,B&amount=10&difficulty=easy.
// Partial failures still answer 200 with the failing topics named; only a
// total failure answers 502.
func NewQuestionsHandler(cfg *config.App, logger zerolog.Logger, distributor QuestionSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			httperrors.RespondError(w, http.StatusMethodNotAllowed, httperrors.ErrCodeInvalidRequest, "method not allowed")
			return
		}

		topics := splitTopics(r.URL.Query().Get("topics"))
		if len(topics) == 0 {
			httperrors.RespondValidationError(w, httperrors.ErrCodeMissingField, "select at least one topic", "topics")
			return
		}

		total := cfg.Quiz.DefaultQuestionCount
		if raw := r.URL.Query().Get("amount"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil {
				httperrors.RespondValidationError(w, httperrors.ErrCodeValidationFailed, "amount must be an integer", "amount")
				return
			}
			total = parsed
		}

		difficulty := strings.ToLower(r.URL.Query().Get("difficulty"))

		ctx := logging.IntoContext(r.Context(), logger)
		result, err := distributor.Distribute(ctx, topics, total, difficulty)
		switch {
		case errors.Is(err, question.ErrNoTopics):
			httperrors.RespondValidationError(w, httperrors.ErrCodeMissingField, err.Error(), "topics")
			return
		case errors.Is(err, question.ErrInvalidTotal):
			httperrors.RespondValidationError(w, httperrors.ErrCodeValidationFailed, err.Error(), "amount")
			return
		case err != nil:
			logger.Error().Err(err).Strs("topics", topics).Msg("distribution failed")
			httperrors.RespondBadGateway(w, httperrors.ErrCodeUpstreamError, "unable to load quiz questions")
			return
		}

		resp := questionsResponse{Questions: result.Questions}
		for _, f := range result.Failed {
			resp.FailedTopics = append(resp.FailedTopics, failedTopic{Topic: f.Topic, Reason: f.Reason()})
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			logger.Error().Err(err).Msg("encode response failed")
		}
	}
}

func splitTopics(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	topics := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			topics = append(topics, trimmed)
		}
	}
	return topics
}
