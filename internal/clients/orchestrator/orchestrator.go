// Package orchestrator reads queue state from the generation orchestrator.
// It never writes and never retries; callers decide how to retry.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fastprodman/buzzledger/internal/config"
	"github.com/fastprodman/buzzledger/internal/domain"
)

const (
	serviceName  = "orchestrator"
	maxErrorBody = 64 << 10
)

var ErrNotConfigured = errors.New("orchestrator host not configured")

var tracer = otel.Tracer("github.com/fastprodman/buzzledger/internal/clients/orchestrator")

type Client struct {
	httpClient *http.Client
	host       string
	token      string
	cb         *gobreaker.CircuitBreaker
}

func New(cfg config.OrchestratorConfig, httpClient *http.Client, cb *gobreaker.CircuitBreaker) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.HTTPTimeout}
	}

	return &Client{
		httpClient: httpClient,
		host:       strings.TrimRight(cfg.Host, "/"),
		token:      cfg.Token,
		cb:         cb,
	}
}

// producerStatus is the raw body of GET /v1/producer:
//
//	{"sdxl": {"prioritySummaries": {"high": {"size": 12, "cost": 3, "active": 2}}}, ...}
//
// Only the queue size of each tier is kept.
type producerStatus map[string]struct {
	PrioritySummaries map[string]struct {
		Size int64 `json:"size"`
	} `json:"prioritySummaries"`
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// GetPriorityVolume returns the queue size of every priority tier, grouped
// by ecosystem and sorted by ecosystem.
func (c *Client) GetPriorityVolume(ctx context.Context) ([]domain.PriorityVolume, error) {
	ctx, span := tracer.Start(ctx, "orchestrator.GetPriorityVolume")
	defer span.End()

	if c.host == "" {
		return nil, &domain.ErrExternalService{Service: serviceName, Err: ErrNotConfigured}
	}

	result, err := c.cb.Execute(func() (interface{}, error) {
		return c.fetch(ctx)
	})
	if err != nil {
		span.RecordError(err)

		var ext *domain.ErrExternalService
		if errors.As(err, &ext) {
			span.SetAttributes(attribute.Int("http.status_code", ext.Status))

			return nil, ext
		}

		return nil, &domain.ErrExternalService{Service: serviceName, Err: err}
	}

	return reshape(result.(producerStatus)), nil
}

func (c *Client) fetch(ctx context.Context) (producerStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.host+"/v1/producer", nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get producer status: %w", err)
	}
	//nolint:errcheck
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, upstreamError(resp)
	}

	var status producerStatus

	err = json.NewDecoder(resp.Body).Decode(&status)
	if err != nil {
		return nil, fmt.Errorf("decode producer status: %w", err)
	}

	return status, nil
}

// upstreamError keeps the orchestrator's own message when the body has one.
func upstreamError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	msg := http.StatusText(resp.StatusCode)

	var body errorBody
	if json.Unmarshal(raw, &body) == nil {
		switch {
		case body.Error != "":
			msg = body.Error
		case body.Message != "":
			msg = body.Message
		}
	} else if s := strings.TrimSpace(string(raw)); s != "" {
		msg = s
	}

	return &domain.ErrExternalService{Service: serviceName, Status: resp.StatusCode, Message: msg}
}

func reshape(status producerStatus) []domain.PriorityVolume {
	out := make([]domain.PriorityVolume, 0, len(status))

	for ecosystem, eco := range status {
		summaries := make(map[string]int64, len(eco.PrioritySummaries))
		for tier, q := range eco.PrioritySummaries {
			summaries[tier] = q.Size
		}

		out = append(out, domain.PriorityVolume{Key: ecosystem, PrioritySummaries: summaries})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })

	return out
}

// Retryable reports whether err is worth another attempt: transport failures
// and 5xx answers are. 4xx answers, an open breaker and a missing host are not.
func Retryable(err error) bool {
	if errors.Is(err, gobreaker.ErrOpenState) ||
		errors.Is(err, gobreaker.ErrTooManyRequests) ||
		errors.Is(err, ErrNotConfigured) {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var ext *domain.ErrExternalService
	if errors.As(err, &ext) && ext.Status != 0 {
		return ext.Status >= 500
	}

	return true
}
