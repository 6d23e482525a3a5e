package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/tunebridge/console/internal/config"
	"github.com/tunebridge/console/internal/models"
	"github.com/tunebridge/console/internal/workflow"
)

const maxErrorBody = 64 << 10

// Client talks to the distribution backend REST API on behalf of an
// operator. Reads retry transport failures; actions never retry.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	readRetries uint64
	retryDelay  time.Duration
	logger      *zap.Logger
}

func NewClient(cfg config.BackendConfig, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	delay := cfg.RetryDelay
	if delay <= 0 {
		delay = 300 * time.Millisecond
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		readRetries: cfg.ReadRetries,
		retryDelay:  delay,
		logger:      logger,
	}
}

// wirePagination is the backend's camelCase paging block.
type wirePagination struct {
	CurrentPage int   `json:"currentPage"`
	TotalPages  int   `json:"totalPages"`
	TotalItems  int64 `json:"totalItems"`
}

func (p wirePagination) model() models.Pagination {
	return models.Pagination{CurrentPage: p.CurrentPage, TotalPages: p.TotalPages, TotalItems: p.TotalItems}
}

// RawPage is a list response with items left undecoded.
type RawPage struct {
	Items      []json.RawMessage
	Pagination models.Pagination
}

// ActionBody is the optional payload of an action call. Payload fields are
// merged into the top-level JSON object.
type ActionBody struct {
	Reason     string
	AdminNotes string
	Payload    map[string]string
}

func (b ActionBody) MarshalJSON() ([]byte, error) {
	out := make(map[string]string, len(b.Payload)+2)
	for k, v := range b.Payload {
		out[k] = v
	}
	if b.Reason != "" {
		out["reason"] = b.Reason
	}
	if b.AdminNotes != "" {
		out["adminNotes"] = b.AdminNotes
	}
	return json.Marshal(out)
}

// List fetches one page of a family's collection.
func (c *Client) List(ctx context.Context, token, family string, params models.ListParams) (*RawPage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(params.Page))
	q.Set("limit", strconv.Itoa(params.Limit))
	if params.Status != "" {
		q.Set("status", string(params.Status))
	}
	if params.Search != "" {
		q.Set("search", params.Search)
	}
	if params.SortOrder != "" {
		q.Set("sortOrder", string(params.SortOrder))
	}
	if params.Category != "" {
		q.Set("category", string(params.Category))
	}

	var body struct {
		Items      []json.RawMessage `json:"items"`
		Pagination wirePagination    `json:"pagination"`
	}
	if err := c.read(ctx, "list "+family, token, workflow.CollectionPath(family)+"?"+q.Encode(), &body); err != nil {
		return nil, err
	}
	if body.Items == nil {
		body.Items = []json.RawMessage{}
	}
	return &RawPage{Items: body.Items, Pagination: body.Pagination.model()}, nil
}

// Get fetches one record of a family by id.
func (c *Client) Get(ctx context.Context, token, family, id string) (json.RawMessage, error) {
	var raw json.RawMessage
	path := workflow.CollectionPath(family) + "/" + url.PathEscape(id)
	if err := c.read(ctx, "get "+family, token, path, &raw); err != nil {
		return nil, err
	}
	return unwrapData(raw), nil
}

// GetReleasePage fetches one page of full release records for export.
func (c *Client) GetReleasePage(ctx context.Context, token string, page, limit int) (*models.ReleasePage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))

	var body struct {
		Items      []models.ReleaseDetail `json:"items"`
		Pagination wirePagination         `json:"pagination"`
	}
	if err := c.read(ctx, "export releases", token, "/releases/export?"+q.Encode(), &body); err != nil {
		return nil, err
	}
	return &models.ReleasePage{Items: body.Items, Pagination: body.Pagination.model()}, nil
}

// Dispatch sends one action call. The response is the updated record, or
// nil when the backend only acknowledged.
func (c *Client) Dispatch(ctx context.Context, token string, op workflow.Operation, id string, body ActionBody) (json.RawMessage, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode action body: %w", err)
	}

	opName := fmt.Sprintf("%s %s", op.Action, op.Family)
	var raw json.RawMessage
	if err := c.do(ctx, opName, op.Method, token, op.Path(id), payload, &raw); err != nil {
		c.logger.Warn("backend action failed",
			zap.String("op", opName),
			zap.String("entity_id", id),
			zap.String("kind", string(KindOf(err))),
			zap.Error(err),
		)
		return nil, err
	}
	data := unwrapData(raw)
	if !looksLikeRecord(data) {
		return nil, nil
	}
	return data, nil
}

// Ping checks that the backend answers at all.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, "health", http.MethodGet, "", "/health", nil, nil)
}

func (c *Client) read(ctx context.Context, op, token, path string, out interface{}) error {
	backoff := retry.WithMaxRetries(c.readRetries, retry.NewConstant(c.retryDelay))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := c.do(ctx, op, http.MethodGet, token, path, nil, out)
		if errors.Is(err, ErrNetwork) {
			c.logger.Debug("retrying backend read", zap.String("op", op), zap.Error(err))
			return retry.RetryableError(err)
		}
		return err
	})
}

func (c *Client) do(ctx context.Context, op, method, token, path string, body []byte, out interface{}) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return network(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return rejected(op, resp.StatusCode, errorMessage(data))
	}
	if out == nil {
		return nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return network(op, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s response: %w", op, err)
	}
	return nil
}

// errorMessage extracts the backend's human-readable message from an
// error body. Plain-text bodies are used as they are.
func errorMessage(data []byte) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Error != "" {
			return body.Error
		}
	}
	return strings.TrimSpace(string(data))
}

// unwrapData strips a {"data": ...} envelope when the backend uses one.
func unwrapData(raw json.RawMessage) json.RawMessage {
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err == nil && len(env.Data) > 0 && string(env.Data) != "null" {
		return env.Data
	}
	return raw
}

func looksLikeRecord(raw json.RawMessage) bool {
	var head struct {
		ID     json.RawMessage `json:"id"`
		Status string          `json:"status"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return false
	}
	return len(head.ID) > 0 && head.Status != ""
}
