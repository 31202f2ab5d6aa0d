package external

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// OpenTDB response codes (https://opentdb.com docs).
const (
	codeSuccess          = 0
	codeNoResults        = 1
	codeInvalidParameter = 2
	codeTokenNotFound    = 3
	codeTokenEmpty       = 4
	codeRateLimit        = 5
)

// Kind classifies a single-attempt upstream failure.
type Kind int

const (
	KindTimeout Kind = iota + 1
	KindServerError
	KindRateLimited
	KindRejectedTopic
	KindDecode
)

func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindServerError:
		return "server_error"
	case KindRateLimited:
		return "rate_limited"
	case KindRejectedTopic:
		return "rejected_topic"
	case KindDecode:
		return "decode_failure"
	default:
		return "unknown"
	}
}

// Error is a typed upstream failure. The fetcher uses Retryable to decide
// whether another attempt makes sense.
type Error struct {
	Kind         Kind
	StatusCode   int // HTTP status, when the request got that far
	ResponseCode int // OpenTDB response_code, when the body decoded
	cause        error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("opentdb %s: %v", e.Kind, e.cause)
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("opentdb %s: http %d", e.Kind, e.StatusCode)
	}
	return fmt.Sprintf("opentdb %s: response code %d", e.Kind, e.ResponseCode)
}

func (e *Error) Unwrap() error { return e.cause }

// Retryable reports whether another attempt can succeed. Rejected topics and
// undecodable bodies fail the same way every time.
func (e *Error) Retryable() bool {
	return e.Kind != KindRejectedTopic && e.Kind != KindDecode
}

// Retryable classifies any error from Client.Fetch. Plain transport errors
// (connection refused, DNS) that carry no *Error are treated as retryable.
func Retryable(err error) bool {
	var uerr *Error
	if errors.As(err, &uerr) {
		return uerr.Retryable()
	}
	return true
}

// Client fetches questions from the Open Trivia DB (no API key). It performs
// exactly one attempt per call; retry policy lives a layer above.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = "https://opentdb.com"
	}
	if httpClient == nil {
		// No transport-level timeout: every attempt is bounded by the
		// caller's context, and a fixed cap here would silently override
		// a configured per-attempt timeout above it.
		httpClient = &http.Client{}
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
	}
}

type OpenTDBQuestion struct {
	Category         string   `json:"category"`
	Type             string   `json:"type"`
	Difficulty       string   `json:"difficulty"`
	Question         string   `json:"question"`
	CorrectAnswer    string   `json:"correct_answer"`
	IncorrectAnswers []string `json:"incorrect_answers"`
}

type openTDBResponse struct {
	ResponseCode int               `json:"response_code"`
	Results      []OpenTDBQuestion `json:"results"`
}

// Fetch performs one GET against /api.php. categoryID 0 means uncategorized.
func (c *Client) Fetch(ctx context.Context, amount, categoryID int, difficulty string) ([]OpenTDBQuestion, error) {
	values := url.Values{}
	values.Set("amount", fmt.Sprint(amount))
	values.Set("type", "multiple")
	if categoryID > 0 {
		values.Set("category", fmt.Sprint(categoryID))
	}
	if difficulty != "" {
		values.Set("difficulty", difficulty)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/api.php?%s", c.baseURL, values.Encode()), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &Error{Kind: KindTimeout, cause: err}
		}
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &Error{Kind: KindRateLimited, StatusCode: resp.StatusCode}
	case resp.StatusCode >= 500:
		return nil, &Error{Kind: KindServerError, StatusCode: resp.StatusCode}
	case resp.StatusCode >= 300:
		return nil, &Error{Kind: KindDecode, StatusCode: resp.StatusCode}
	}

	var payload openTDBResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, &Error{Kind: KindDecode, cause: err}
	}

	switch payload.ResponseCode {
	case codeSuccess:
		if len(payload.Results) == 0 {
			return nil, &Error{Kind: KindDecode, ResponseCode: payload.ResponseCode, cause: errors.New("empty result set")}
		}
		return payload.Results, nil
	case codeInvalidParameter:
		return nil, &Error{Kind: KindRejectedTopic, ResponseCode: payload.ResponseCode}
	case codeNoResults, codeTokenNotFound, codeTokenEmpty, codeRateLimit:
		return nil, &Error{Kind: KindRateLimited, ResponseCode: payload.ResponseCode}
	default:
		return nil, &Error{Kind: KindDecode, ResponseCode: payload.ResponseCode}
	}
}
