package platform

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"membership-workflow/internal/common/config"
	commonhttp "membership-workflow/internal/common/http"
	"membership-workflow/internal/common/logger"
	"membership-workflow/internal/common/metrics"
)

// HTTPClient talks to the platform bridge, the process that owns the chat gateway
// connection and exposes these capabilities over REST.
type HTTPClient struct {
	client *commonhttp.Client
	logger logger.Logger
}

func NewHTTPClient(cfg config.PlatformConfig, log logger.Logger) *HTTPClient {
	return NewHTTPClientWithRetry(cfg, &commonhttp.RetryConfig{
		MaxRetries: cfg.MaxRetries,
		BaseDelay:  500 * time.Millisecond,
		MaxDelay:   5 * time.Second,
	}, log)
}

func NewHTTPClientWithRetry(cfg config.PlatformConfig, retry *commonhttp.RetryConfig, log logger.Logger) *HTTPClient {
	return &HTTPClient{
		client: commonhttp.NewClient(commonhttp.Config{
			BaseURL:       cfg.BaseURL,
			Token:         cfg.Token,
			Timeout:       config.GetDuration(cfg.Timeout),
			RatePerSecond: cfg.RatePerSecond,
			Burst:         cfg.Burst,
			Retry:         retry,
		}),
		logger: log.WithFields(map[string]interface{}{"component": "platform"}),
	}
}

type refResponse struct {
	Ref string `json:"ref"`
}

type spacesResponse struct {
	Spaces []Space `json:"spaces"`
}

func (c *HTTPClient) call(ctx context.Context, operation, method, path string, in, out interface{}) error {
	err := c.client.DoJSON(ctx, method, path, in, out)
	outcome := "ok"
	if err != nil {
		outcome = "error"
		var statusErr *commonhttp.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			outcome = "not_found"
			err = errors.Join(ErrNotFound, err)
		}
		c.logger.Debug("platform call failed", map[string]interface{}{
			"operation": operation,
			"error":     err.Error(),
		})
	}
	metrics.PlatformRequests.WithLabelValues(operation, outcome).Inc()
	return err
}

func (c *HTTPClient) CreateRestrictedSpace(ctx context.Context, spec SpaceSpec) (string, error) {
	var resp refResponse
	if err := c.call(ctx, "create_space", http.MethodPost, "/spaces", spec, &resp); err != nil {
		return "", err
	}
	return resp.Ref, nil
}

func (c *HTTPClient) PostMessage(ctx context.Context, spaceRef string, msg Message) (string, error) {
	var resp refResponse
	path := "/spaces/" + url.PathEscape(spaceRef) + "/messages"
	if err := c.call(ctx, "post_message", http.MethodPost, path, msg, &resp); err != nil {
		return "", err
	}
	return resp.Ref, nil
}

func (c *HTTPClient) ClearActions(ctx context.Context, spaceRef, messageRef string) error {
	path := "/spaces/" + url.PathEscape(spaceRef) + "/messages/" + url.PathEscape(messageRef) + "/actions"
	return c.call(ctx, "clear_actions", http.MethodDelete, path, nil, nil)
}

func (c *HTTPClient) DirectNotify(ctx context.Context, userID string, msg Message) error {
	path := "/users/" + url.PathEscape(userID) + "/notices"
	return c.call(ctx, "direct_notify", http.MethodPost, path, msg, nil)
}

func (c *HTTPClient) DeleteSpace(ctx context.Context, spaceRef string) error {
	return c.call(ctx, "delete_space", http.MethodDelete, "/spaces/"+url.PathEscape(spaceRef), nil, nil)
}

func (c *HTTPClient) GetSpace(ctx context.Context, spaceRef string) (*Space, error) {
	var space Space
	if err := c.call(ctx, "get_space", http.MethodGet, "/spaces/"+url.PathEscape(spaceRef), nil, &space); err != nil {
		return nil, err
	}
	return &space, nil
}

func (c *HTTPClient) ListSpaces(ctx context.Context, parentRef string) ([]Space, error) {
	var resp spacesResponse
	path := "/spaces?parent=" + url.QueryEscape(parentRef)
	if err := c.call(ctx, "list_spaces", http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Spaces, nil
}

func (c *HTTPClient) Ping(ctx context.Context) error {
	return c.call(ctx, "ping", http.MethodGet, "/ping", nil, nil)
}
