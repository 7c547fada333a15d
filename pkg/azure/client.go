// Package azure is a thin REST client for Azure Cognitive Services endpoints
// authenticated with a subscription key.
package azure

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Nephrolytics-ai/docvoice/pkg/utils"
)

const (
	HeaderSubscriptionKey = "Ocp-Apim-Subscription-Key"
	defaultHTTPTimeout    = 90 * time.Second
)

type Client struct {
	httpClient *http.Client
	apiKey     string
}

type ClientOption func(*Client)

// WithHTTPClient replaces the default client, which has a 90 second timeout.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

func NewClient(apiKey string, opts ...ClientOption) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, utils.WrapIfNotNil(errors.New("subscription key is required"))
	}

	c := &Client{
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		apiKey:     apiKey,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// APIError is a non-2xx answer from a service.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("azure API error (%d): %s", e.StatusCode, e.Message)
}

// Request describes one call. Signed requests carry the subscription key; result
// links handed out by the services (already carrying a SAS token) must not.
type Request struct {
	Method      string
	URL         string
	ContentType string
	Header      map[string]string
	Body        []byte
	Unsigned    bool
}

// Do sends req and reads the whole body. Non-2xx statuses are returned as a
// Response, not an error, so callers can map them to their own error types.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpRequest, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return nil, utils.WrapIfNotNil(err)
	}
	if !req.Unsigned {
		httpRequest.Header.Set(HeaderSubscriptionKey, c.apiKey)
	}
	if req.ContentType != "" {
		httpRequest.Header.Set("Content-Type", req.ContentType)
	}
	for k, v := range req.Header {
		httpRequest.Header.Set(k, v)
	}

	httpResponse, err := c.httpClient.Do(httpRequest)
	if err != nil {
		return nil, utils.WrapIfNotNil(err)
	}
	defer httpResponse.Body.Close()

	responseBits, err := io.ReadAll(httpResponse.Body)
	if err != nil {
		return nil, utils.WrapIfNotNil(err)
	}

	return &Response{
		StatusCode: httpResponse.StatusCode,
		Header:     httpResponse.Header,
		Body:       responseBits,
	}, nil
}

// GetJSON fetches url and decodes a 2xx JSON body into out.
func (c *Client) GetJSON(ctx context.Context, url string, unsigned bool, out any) error {
	response, err := c.Do(ctx, Request{Method: http.MethodGet, URL: url, Unsigned: unsigned})
	if err != nil {
		return err
	}
	if !response.OK() {
		return utils.WrapIfNotNil(response.Err())
	}
	if err := json.Unmarshal(response.Body, out); err != nil {
		return utils.WrapIfNotNil(err)
	}
	return nil
}

// Err converts a non-2xx response into an APIError, preferring the service's own message.
func (r *Response) Err() error {
	if r.OK() {
		return nil
	}
	message := ErrorMessage(r.Body)
	if message == "" {
		message = strings.TrimSpace(string(r.Body))
	}
	if message == "" {
		message = http.StatusText(r.StatusCode)
	}
	return &APIError{StatusCode: r.StatusCode, Message: message}
}

type errorEnvelope struct {
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Message string `json:"message"`
}

// ErrorMessage extracts error.message (or a top-level message) from a JSON error body.
func ErrorMessage(body []byte) string {
	envelope := errorEnvelope{}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return ""
	}
	if envelope.Error != nil {
		if message := strings.TrimSpace(envelope.Error.Message); message != "" {
			return message
		}
		return strings.TrimSpace(envelope.Error.Code)
	}
	return strings.TrimSpace(envelope.Message)
}
