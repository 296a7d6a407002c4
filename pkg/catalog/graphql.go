package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	catalogDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "arena",
		Subsystem: "catalog",
		Name:      "request_duration_seconds",
		Help:      "Duration of catalog requests",
	}, []string{"operation"})

	catalogFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "arena",
		Subsystem: "catalog",
		Name:      "request_failures_total",
		Help:      "Number of failed catalog requests",
	}, []string{"operation"})
)

const (
	questionQuery = `query questionData($titleSlug: String!) {
  question(titleSlug: $titleSlug) {
    questionFrontendId
    title
    titleSlug
    difficulty
    topicTags { name }
  }
}`

	recentSubmissionsQuery = `query recentSubmissions($username: String!, $limit: Int!) {
  recentSubmissionList(username: $username, limit: $limit) {
    id
    title
    titleSlug
    timestamp
    statusDisplay
    lang
  }
}`
)

// GraphQLConfig configures the GraphQL catalog client.
type GraphQLConfig struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// GraphQLClient talks to a LeetCode-compatible GraphQL endpoint.
type GraphQLClient struct {
	baseURL string
	http    *http.Client
	tracer  trace.Tracer
	logger  zerolog.Logger
}

// NewGraphQLClient builds a catalog client for the configured endpoint.
func NewGraphQLClient(cfg GraphQLConfig) (*GraphQLClient, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("catalog base url is required")
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	return &GraphQLClient{
		baseURL: baseURL,
		http:    client,
		tracer:  otel.Tracer("github.com/noah-isme/codearena-api/pkg/catalog"),
		logger:  logger.With().Str("component", "catalog_client").Logger(),
	}, nil
}

// LookupProblem resolves a title, slug or problem URL to catalog metadata.
func (c *GraphQLClient) LookupProblem(parent context.Context, query string) (Problem, error) {
	titleSlug := NormalizeSlug(query)
	if titleSlug == "" {
		return Problem{}, ErrProblemNotFound
	}

	ctx, span := c.tracer.Start(parent, "catalog.lookup_problem", trace.WithAttributes(
		attribute.String("catalog.slug", titleSlug),
	))
	defer span.End()

	var payload struct {
		Question *struct {
			ID         string `json:"questionFrontendId"`
			Title      string `json:"title"`
			TitleSlug  string `json:"titleSlug"`
			Difficulty string `json:"difficulty"`
			TopicTags  []struct {
				Name string `json:"name"`
			} `json:"topicTags"`
		} `json:"question"`
	}

	if err := c.do(ctx, "lookup_problem", questionQuery, map[string]interface{}{"titleSlug": titleSlug}, &payload); err != nil {
		recordSpanError(span, err)
		return Problem{}, err
	}

	if payload.Question == nil {
		return Problem{}, ErrProblemNotFound
	}

	tags := make([]string, 0, len(payload.Question.TopicTags))
	for _, tag := range payload.Question.TopicTags {
		tags = append(tags, tag.Name)
	}

	return Problem{
		ID:         payload.Question.ID,
		Title:      payload.Question.Title,
		Slug:       payload.Question.TitleSlug,
		Difficulty: payload.Question.Difficulty,
		URL:        fmt.Sprintf("%s/problems/%s/", c.baseURL, payload.Question.TitleSlug),
		Tags:       tags,
	}, nil
}

// RecentSubmissions lists the latest submissions of a judge user, newest first.
func (c *GraphQLClient) RecentSubmissions(parent context.Context, username string, limit int) ([]Submission, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrUserNotFound
	}
	if limit <= 0 {
		limit = 20
	}

	ctx, span := c.tracer.Start(parent, "catalog.recent_submissions", trace.WithAttributes(
		attribute.String("catalog.username", username),
		attribute.Int("catalog.limit", limit),
	))
	defer span.End()

	var payload struct {
		RecentSubmissionList *[]struct {
			ID            string `json:"id"`
			Title         string `json:"title"`
			TitleSlug     string `json:"titleSlug"`
			Timestamp     string `json:"timestamp"`
			StatusDisplay string `json:"statusDisplay"`
			Lang          string `json:"lang"`
		} `json:"recentSubmissionList"`
	}

	err := c.do(ctx, "recent_submissions", recentSubmissionsQuery, map[string]interface{}{"username": username, "limit": limit}, &payload)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}

	if payload.RecentSubmissionList == nil {
		return nil, ErrUserNotFound
	}

	submissions := make([]Submission, 0, len(*payload.RecentSubmissionList))
	for _, item := range *payload.RecentSubmissionList {
		seconds, err := strconv.ParseInt(item.Timestamp, 10, 64)
		if err != nil {
			c.logger.Warn().Str("submission_id", item.ID).Str("timestamp", item.Timestamp).Msg("skipping submission with invalid timestamp")
			continue
		}
		submissions = append(submissions, Submission{
			ID:          item.ID,
			Title:       item.Title,
			Slug:        item.TitleSlug,
			Status:      item.StatusDisplay,
			Language:    item.Lang,
			SubmittedAt: time.Unix(seconds, 0).UTC(),
		})
	}

	return submissions, nil
}

type graphQLRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func (c *GraphQLClient) do(ctx context.Context, operation, query string, variables map[string]interface{}, out interface{}) error {
	start := time.Now()
	defer func() {
		catalogDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}()

	body, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("encode catalog request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/graphql", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build catalog request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Referer", c.baseURL)

	resp, err := c.http.Do(req)
	if err != nil {
		catalogFailures.WithLabelValues(operation).Inc()
		c.logger.Error().Err(err).Str("operation", operation).Msg("catalog request failed")
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		catalogFailures.WithLabelValues(operation).Inc()
		return fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}

	if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
		catalogFailures.WithLabelValues(operation).Inc()
		c.logger.Error().Int("status", resp.StatusCode).Str("operation", operation).Msg("catalog answered with an error status")
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var envelope graphQLResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		catalogFailures.WithLabelValues(operation).Inc()
		return fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}

	if len(envelope.Data) == 0 || string(envelope.Data) == "null" {
		if len(envelope.Errors) > 0 {
			c.logger.Debug().Str("operation", operation).Str("error", envelope.Errors[0].Message).Msg("catalog returned errors")
		}
		return json.Unmarshal([]byte("{}"), out)
	}

	if err := json.Unmarshal(envelope.Data, out); err != nil {
		catalogFailures.WithLabelValues(operation).Inc()
		return fmt.Errorf("%w: decode data: %v", ErrUnavailable, err)
	}
	return nil
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
