package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aevon-lab/aggindex/internal/core/document"
	coreerr "github.com/aevon-lab/aggindex/internal/core/errors"
)

// HTTPClient speaks the engine's REST document API.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func docPath(index, typ, id string) string {
	return "/" + url.PathEscape(index) + "/" + url.PathEscape(typ) + "/" + url.PathEscape(id)
}

// do sends one request. A 404 is returned as a response; any other status
// from 400 up becomes an InternalServiceError carrying the engine's body.
func (c *HTTPClient) do(ctx context.Context, op, method, path string, query url.Values, body interface{}) (*Response, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to marshal body: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build request: %w", op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &coreerr.InternalServiceError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &coreerr.InternalServiceError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}
	slog.Debug("[StoreClient] Request", "op", op, "method", method, "path", path, "status", resp.StatusCode, "elapsed", time.Since(start))

	if resp.StatusCode >= http.StatusBadRequest && resp.StatusCode != http.StatusNotFound {
		var details interface{}
		if json.Unmarshal(raw, &details) != nil {
			details = string(raw)
		}
		return nil, &coreerr.InternalServiceError{Op: op, StatusCode: resp.StatusCode, Details: details}
	}

	out := &Response{}
	if len(raw) > 0 && method != http.MethodHead {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		// Index-level 404 bodies do not have the document shape.
		if err := dec.Decode(out); err != nil && resp.StatusCode != http.StatusNotFound {
			return nil, &coreerr.InternalServiceError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decoding response: %w", err)}
		}
		document.Normalize(out.Source)
	}
	out.StatusCode = resp.StatusCode
	return out, nil
}

func (c *HTTPClient) Get(ctx context.Context, index, typ, id string) (document.Document, error) {
	resp, err := c.do(ctx, "GET", http.MethodGet, docPath(index, typ, id), nil, nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound || !resp.Found {
		return nil, nil
	}
	if resp.Source == nil {
		return document.Document{}, nil
	}
	return resp.Source, nil
}

// GetFields fetches only fields of the stored source.
func (c *HTTPClient) GetFields(ctx context.Context, index, typ, id string, fields []string) (document.Document, error) {
	query := url.Values{}
	if len(fields) > 0 {
		query.Set("_source", strings.Join(fields, ","))
	}
	resp, err := c.do(ctx, "OPTIMISED_GET", http.MethodGet, docPath(index, typ, id), query, nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound || !resp.Found {
		return nil, nil
	}
	if resp.Source == nil {
		return document.Document{}, nil
	}
	return resp.Source, nil
}

func (c *HTTPClient) Exists(ctx context.Context, index, typ, id string) (bool, error) {
	resp, err := c.do(ctx, "EXISTS", http.MethodHead, docPath(index, typ, id), nil, nil)
	if err != nil {
		return false, err
	}
	return resp.StatusCode != http.StatusNotFound, nil
}

func (c *HTTPClient) Put(ctx context.Context, index, typ, id string, doc document.Document) (*Response, error) {
	return c.do(ctx, "ADD", http.MethodPut, docPath(index, typ, id), nil, doc)
}

func (c *HTTPClient) Update(ctx context.Context, index, typ, id string, partial document.Document) (*Response, error) {
	return c.do(ctx, "UPDATE", http.MethodPost, docPath(index, typ, id)+"/_update", nil, map[string]interface{}{"doc": partial})
}

func (c *HTTPClient) Delete(ctx context.Context, index, typ, id string) (*Response, error) {
	return c.do(ctx, "REMOVE", http.MethodDelete, docPath(index, typ, id), nil, nil)
}

func (c *HTTPClient) CreateIndex(ctx context.Context, name string, body map[string]interface{}) (*Response, error) {
	resp, err := c.do(ctx, "CREATE_INDEX", http.MethodPut, "/"+url.PathEscape(name), nil, body)
	if err != nil {
		return nil, err
	}
	resp.Index = name
	return resp, nil
}

func (c *HTTPClient) DeleteIndex(ctx context.Context, name string) (*Response, error) {
	resp, err := c.do(ctx, "DELETE_INDEX", http.MethodDelete, "/"+url.PathEscape(name), nil, nil)
	if err != nil {
		return nil, err
	}
	resp.Index = name
	return resp, nil
}

// Ping checks the engine answers at all.
func (c *HTTPClient) Ping(ctx context.Context) error {
	_, err := c.do(ctx, "PING", http.MethodHead, "/", nil, nil)
	return err
}

var _ Store = (*HTTPClient)(nil)
