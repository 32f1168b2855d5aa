package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"people-search/internal/search"
)

const (
	DefaultBaseURL = "https://xlhyimcjmnvz.manus.space/api"

	HealthPath = "/health"
	UploadPath = "/upload"
)

// Backend is the client interface for the remote search service.
type Backend interface {
	Health(ctx context.Context) (*search.HealthInfo, error)
	Upload(ctx context.Context, req search.UploadRequest) (*search.ResponsePayload, error)
}

var _ Backend = (*Client)(nil)

// Client talks to the search backend over HTTP. It carries no timeout of its
// own: callers bound every call through ctx, which aborts the transport.
type Client struct {
	rc *resty.Client
}

func NewClient(baseURL string) *Client {
	rc := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("Accept", "application/json").
		SetLogger(zap.S().Named("resty"))
	return &Client{rc: rc}
}

func (c *Client) Health(ctx context.Context) (*search.HealthInfo, error) {
	res, err := c.rc.R().
		SetContext(ctx).
		Get(HealthPath)
	if err != nil {
		return nil, err
	}
	if !res.IsSuccess() {
		return nil, newHTTPError("health", res.StatusCode(), res.Status(), res.Body())
	}

	var out search.HealthInfo
	if err := json.Unmarshal(res.Body(), &out); err != nil {
		return nil, fmt.Errorf("parse health response: %w", err)
	}
	return &out, nil
}

// Upload posts the CSV as multipart field "file". The content type, boundary
// included, is left to the transport.
func (c *Client) Upload(ctx context.Context, req search.UploadRequest) (*search.ResponsePayload, error) {
	res, err := c.rc.R().
		SetContext(ctx).
		SetFileReader(req.FieldName(), req.FileName(), req.Reader()).
		Post(UploadPath)
	if err != nil {
		return nil, err
	}
	if !res.IsSuccess() {
		return nil, newHTTPError("upload", res.StatusCode(), res.Status(), res.Body())
	}

	var out search.ResponsePayload
	if err := json.Unmarshal(res.Body(), &out); err != nil {
		return nil, fmt.Errorf("parse upload response: %w", err)
	}
	return &out, nil
}
