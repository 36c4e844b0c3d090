package d1

import (
	"bytes"
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/mesh-intelligence/xanote/internal/retry"
	"github.com/mesh-intelligence/xanote/pkg/types"
)

// DefaultEndpoint is the Cloudflare API base URL.
const DefaultEndpoint = "https://api.cloudflare.com/client/v4"

// Client issues queries against one D1 database over the HTTP API. Every
// call is an independent request; there is no cross-call transaction.
type Client struct {
	http     *http.Client
	queryURL string
	token    string
	policy   retry.Policy
}

// NewClient validates the binding in cfg and returns a client. A missing
// account id, database id or API token is a configuration error.
func NewClient(cfg types.D1Config, httpClient *http.Client) (*Client, error) {
	var missing []string
	if cfg.AccountID == "" {
		missing = append(missing, "account_id")
	}
	if cfg.DatabaseID == "" {
		missing = append(missing, "database_id")
	}
	if cfg.APIToken == "" {
		missing = append(missing, "api_token")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: d1 binding missing %s", types.ErrConfiguration, strings.Join(missing, ", "))
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		http: httpClient,
		queryURL: fmt.Sprintf("%s/accounts/%s/d1/database/%s/query",
			strings.TrimRight(endpoint, "/"), url.PathEscape(cfg.AccountID), url.PathEscape(cfg.DatabaseID)),
		token:  cfg.APIToken,
		policy: retry.Policy{Timeout: cfg.Timeout, Retries: cfg.Retries},
	}, nil
}

// QueryRequest is the body of a query call.
type QueryRequest struct {
	SQL    string `json:"sql"`
	Params []any  `json:"params"`
}

// Meta is the per-statement metadata D1 reports.
type Meta struct {
	Changes   int64   `json:"changes"`
	LastRowID *int64  `json:"last_row_id"`
	Duration  float64 `json:"duration"`
	RowsRead  int64   `json:"rows_read"`
}

// QueryResult is the outcome of one statement.
type QueryResult struct {
	Results []map[string]any `json:"results"`
	Success bool             `json:"success"`
	Meta    Meta             `json:"meta"`
}

// ResponseInfo is one entry of the errors or messages arrays.
type ResponseInfo struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Response is the API envelope.
type Response struct {
	Result   []QueryResult  `json:"result"`
	Success  bool           `json:"success"`
	Errors   []ResponseInfo `json:"errors"`
	Messages []ResponseInfo `json:"messages"`
}

// APIError is returned when D1 rejects a query.
type APIError struct {
	Status int
	Errors []ResponseInfo
}

func (e *APIError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, ei := range e.Errors {
		msgs = append(msgs, fmt.Sprintf("%d: %s", ei.Code, ei.Message))
	}
	if len(msgs) == 0 {
		return fmt.Sprintf("d1: http %d", e.Status)
	}
	return fmt.Sprintf("d1: http %d: %s", e.Status, strings.Join(msgs, "; "))
}

// Unwrap marks server-side and rate-limit failures as transient.
func (e *APIError) Unwrap() error {
	if e.Status >= 500 || e.Status == http.StatusTooManyRequests {
		return types.ErrTransient
	}
	return nil
}

// Query runs one statement and returns its result.
func (c *Client) Query(ctx context.Context, query string, args []any) (*QueryResult, error) {
	params, err := convertArgs(args)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(QueryRequest{SQL: query, Params: params})
	if err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}

	var resp *Response
	err = retry.Do(ctx, c.policy, "d1 query", func(ctx context.Context) error {
		var err error
		resp, err = c.post(ctx, body)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Result) == 0 {
		return nil, fmt.Errorf("d1: empty result set")
	}
	res := &resp.Result[0]
	if res.Results == nil {
		res.Results = []map[string]any{}
	}
	return res, nil
}

func (c *Client) post(ctx context.Context, body []byte) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.queryURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: d1 request: %w", types.ErrTransient, err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read d1 response: %w", types.ErrTransient, err)
	}

	var resp Response
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	decodeErr := dec.Decode(&resp)

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 || !resp.Success {
		return nil, &APIError{Status: httpResp.StatusCode, Errors: resp.Errors}
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("decode d1 response: %w", decodeErr)
	}
	for _, r := range resp.Result {
		if !r.Success {
			return nil, &APIError{Status: httpResp.StatusCode, Errors: resp.Errors}
		}
	}
	return &resp, nil
}

// convertArgs maps bind values onto JSON-encodable parameters, the same way
// database/sql converts them for a driver.
func convertArgs(args []any) ([]any, error) {
	params := make([]any, len(args))
	for i, a := range args {
		v, err := driver.DefaultParameterConverter.ConvertValue(a)
		if err != nil {
			return nil, fmt.Errorf("param %d: %w", i+1, err)
		}
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		params[i] = types.NormalizeValue(v)
	}
	return params, nil
}

// IsAPIError reports whether err carries a D1 API rejection.
func IsAPIError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}
