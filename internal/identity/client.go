package identity

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/havenlab/apiserver/config"
	"go.uber.org/zap"
)

// Client is the REST implementation of Provider.
type Client struct {
	http   *resty.Client
	logger *zap.Logger
}

// NewClient constructs a provider client from config. The secret key is sent
// as a bearer token on every call.
func NewClient(cfg config.IdentityConfig, logger *zap.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("identity base url is required")
	}
	if strings.TrimSpace(cfg.SecretKey) == "" {
		return nil, fmt.Errorf("identity secret key is required")
	}

	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(15 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(3 * time.Second).
		SetAuthToken(cfg.SecretKey).
		SetHeader("Content-Type", "application/json")

	return &Client{http: httpClient, logger: logger}, nil
}

type accountPayload struct {
	ID             string `json:"id"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	EmailAddresses []struct {
		EmailAddress string `json:"email_address"`
	} `json:"email_addresses"`
	PhoneNumbers []struct {
		PhoneNumber string `json:"phone_number"`
	} `json:"phone_numbers"`
	Banned         bool           `json:"banned"`
	PublicMetadata map[string]any `json:"public_metadata"`
}

func (p accountPayload) toAccount() Account {
	acct := Account{
		ID:     p.ID,
		Name:   strings.TrimSpace(p.FirstName + " " + p.LastName),
		Banned: p.Banned,
	}
	if len(p.EmailAddresses) > 0 {
		acct.Email = p.EmailAddresses[0].EmailAddress
	}
	if len(p.PhoneNumbers) > 0 {
		acct.Phone = p.PhoneNumbers[0].PhoneNumber
	}
	if role, ok := p.PublicMetadata["role"].(string); ok && role != "" {
		acct.Metadata.Role = role
		acct.Metadata.HasRole = true
	}
	if approved, ok := p.PublicMetadata["approved"].(bool); ok {
		acct.Metadata.Approved = approved
	}
	return acct
}

func (c *Client) GetUser(ctx context.Context, id string) (Account, error) {
	var payload accountPayload
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&payload).
		Get("/users/" + id)
	if err != nil {
		return Account{}, &ProviderError{Op: "get user", Err: err}
	}
	if resp.StatusCode() == http.StatusNotFound {
		return Account{}, ErrUserNotFound
	}
	if resp.IsError() {
		return Account{}, &ProviderError{Op: "get user", StatusCode: resp.StatusCode()}
	}
	return payload.toAccount(), nil
}

func (c *Client) UpdateMetadata(ctx context.Context, id string, md Metadata) error {
	body := map[string]any{
		"public_metadata": map[string]any{
			"role":     md.Role,
			"approved": md.Approved,
		},
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		Patch("/users/" + id)
	if err != nil {
		return &ProviderError{Op: "update metadata", Err: err}
	}
	if resp.StatusCode() == http.StatusNotFound {
		return ErrUserNotFound
	}
	if resp.IsError() {
		return &ProviderError{Op: "update metadata", StatusCode: resp.StatusCode()}
	}
	c.logger.Debug("provider metadata updated",
		zap.String("user_id", id),
		zap.String("role", md.Role),
		zap.Bool("approved", md.Approved))
	return nil
}

func (c *Client) ListUsersByEmail(ctx context.Context, email string) ([]Account, error) {
	var payloads []accountPayload
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("email_address", email).
		SetResult(&payloads).
		Get("/users")
	if err != nil {
		return nil, &ProviderError{Op: "list users", Err: err}
	}
	if resp.IsError() {
		return nil, &ProviderError{Op: "list users", StatusCode: resp.StatusCode()}
	}
	accounts := make([]Account, 0, len(payloads))
	for _, p := range payloads {
		accounts = append(accounts, p.toAccount())
	}
	return accounts, nil
}

func (c *Client) BanUser(ctx context.Context, id string) error {
	return c.postAction(ctx, id, "ban")
}

func (c *Client) UnbanUser(ctx context.Context, id string) error {
	return c.postAction(ctx, id, "unban")
}

func (c *Client) DeleteUser(ctx context.Context, id string) error {
	resp, err := c.http.R().SetContext(ctx).Delete("/users/" + id)
	if err != nil {
		return &ProviderError{Op: "delete user", Err: err}
	}
	if resp.StatusCode() == http.StatusNotFound {
		return ErrUserNotFound
	}
	if resp.IsError() {
		return &ProviderError{Op: "delete user", StatusCode: resp.StatusCode()}
	}
	return nil
}

func (c *Client) postAction(ctx context.Context, id, action string) error {
	resp, err := c.http.R().SetContext(ctx).Post("/users/" + id + "/" + action)
	if err != nil {
		return &ProviderError{Op: action + " user", Err: err}
	}
	if resp.StatusCode() == http.StatusNotFound {
		return ErrUserNotFound
	}
	if resp.IsError() {
		return &ProviderError{Op: action + " user", StatusCode: resp.StatusCode()}
	}
	return nil
}
