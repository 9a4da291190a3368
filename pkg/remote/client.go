package remote

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/nihonma/manabi/pkg/config"
	"github.com/nihonma/manabi/pkg/models"
	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
)

// upsertKeys declares the unique compound key each collection upserts on.
var upsertKeys = map[string]string{
	models.CollectionCatalogItems:    "id",
	models.CollectionProgressRecords: "user_id,catalog_item_id",
	models.CollectionNoteRecords:     "user_id,catalog_item_id",
}

// Client talks to a PostgREST-style backend. Every call carries a hard
// timeout; expiry is classified as ErrTimeout and handled by callers
// exactly like a network failure.
type Client struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	http    *http.Client
}

var _ Gateway = (*Client)(nil)

func NewClient(cfg *config.Config) *Client {
	return &Client{
		baseURL: cfg.RemoteBaseURL,
		apiKey:  cfg.RemoteAPIKey,
		timeout: cfg.RemoteTimeout(),
		http:    &http.Client{},
	}
}

func (c *Client) Fetch(ctx context.Context, collection string, filter Filter) ([]json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u, err := url.Parse(c.baseURL + "/rest/v1/" + collection)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	q := u.Query()
	for column, value := range filter.Eq {
		q.Set(column, "eq."+value)
	}
	if filter.Order != "" {
		q.Set("order", filter.Order)
	}
	if filter.Limit > 0 {
		q.Set("limit", strconv.Itoa(filter.Limit))
	}
	if filter.Offset > 0 {
		q.Set("offset", strconv.Itoa(filter.Offset))
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classifyTransport(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, classifyStatus(resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransport(ctx, err)
	}

	rows := []json.RawMessage{}
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, errors.Wrap(err, "failed to decode remote response")
	}

	return rows, nil
}

func (c *Client) Write(ctx context.Context, collection, kind string, payload json.RawMessage) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u, err := url.Parse(c.baseURL + "/rest/v1/" + collection)
	if err != nil {
		return errors.WithStack(err)
	}

	prefer := "return=minimal"
	if kind == models.OperationKindUpsert {
		prefer = "resolution=merge-duplicates,return=minimal"
		q := u.Query()
		q.Set("on_conflict", upsertKeys[collection])
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(payload))
	if err != nil {
		return errors.WithStack(err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", prefer)

	resp, err := c.http.Do(req)
	if err != nil {
		return classifyTransport(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return classifyStatus(resp)
	}

	return nil
}

func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.baseURL+"/rest/v1/", nil)
	if err != nil {
		return errors.WithStack(err)
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return classifyTransport(ctx, err)
	}
	resp.Body.Close()

	if resp.StatusCode >= 500 {
		return classify(ErrNetwork, errors.Errorf("remote returned %d", resp.StatusCode))
	}

	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

func classifyTransport(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return classify(ErrTimeout, err)
	}
	return classify(ErrNetwork, err)
}

func classifyStatus(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	cause := errors.Errorf("remote returned %d: %s", resp.StatusCode, bytes.TrimSpace(body))

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return classify(ErrAuth, cause)
	case resp.StatusCode == http.StatusConflict:
		return classify(ErrConflict, cause)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return classify(ErrValidation, cause)
	default:
		return classify(ErrNetwork, cause)
	}
}
