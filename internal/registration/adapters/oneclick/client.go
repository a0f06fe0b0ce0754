// Package oneclick is the HTTP adapter for the one-click identity backend.
package oneclick

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"onboarding/internal/registration/adapters/jsonapi"
	"onboarding/internal/registration/models"
	"onboarding/internal/registration/ports"
)

const gatewayName = "oneclick"

// Client implements ports.OneClickGateway over HTTP.
type Client struct {
	api *jsonapi.Client
}

// New builds a client for the backend at baseURL.
func New(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{api: jsonapi.New(gatewayName, baseURL, apiKey, timeout)}
}

type postRequest struct {
	Phone       string        `json:"phone"`
	Content     ports.Content `json:"content"`
	RedirectURL string        `json:"redirectUrl,omitempty"`
}

type postResponse struct {
	URL  string `json:"url"`
	Code string `json:"code"`
}

type fetchResponse struct {
	Credentials *models.Credentials `json:"credentials"`
}

// Post starts a wallet hand-off.
func (c *Client) Post(ctx context.Context, req ports.PostRequest) (*ports.PostResult, error) {
	var out postResponse
	in := postRequest{Phone: req.Phone, Content: req.Content, RedirectURL: req.RedirectURL}
	if err := c.api.Do(ctx, "post", http.MethodPost, "/1-click", in, &out); err != nil {
		return nil, err
	}
	if out.URL == "" {
		return nil, ports.NewGatewayError(gatewayName, "post", ports.CategoryBadData, "", nil)
	}
	return &ports.PostResult{URL: out.URL, Code: out.Code}, nil
}

// Fetch loads the credentials issued for identifier.
func (c *Client) Fetch(ctx context.Context, identifier string) (*models.Credentials, error) {
	var out fetchResponse
	if err := c.api.Do(ctx, "fetch", http.MethodGet, "/1-click/"+url.PathEscape(identifier), nil, &out); err != nil {
		return nil, err
	}
	if out.Credentials == nil {
		return nil, ports.NewGatewayError(gatewayName, "fetch", ports.CategoryNotFound, "", nil)
	}
	return out.Credentials, nil
}
