package facebook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/go-querystring/query"

	"storycast/domain/model"
	"storycast/domain/repository"
)

const graphBaseURL = "https://graph.facebook.com/v19.0"

// Client publishes page stories through the Facebook Graph API.
type Client struct {
	httpClient   *http.Client
	clientID     string
	clientSecret string
	baseURL      string
}

func NewClient(clientID, clientSecret string) *Client {
	return &Client{
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		clientID:     clientID,
		clientSecret: clientSecret,
		baseURL:      graphBaseURL,
	}
}

func (c *Client) Platform() model.Platform { return model.PlatformFacebook }

type publishParams struct {
	URL         string `url:"url,omitempty"`
	FileURL     string `url:"file_url,omitempty"`
	Caption     string `url:"caption,omitempty"`
	Description string `url:"description,omitempty"`
	AccessToken string `url:"access_token"`
}

func (c *Client) Publish(ctx context.Context, account *model.LinkedAccount, content repository.RenderedContent) (*repository.Receipt, error) {
	edge := "photos"
	params := publishParams{
		URL:         content.MediaURL,
		Caption:     content.Text,
		AccessToken: account.AccessToken,
	}
	if content.MediaType == model.MediaTypeVideo {
		edge = "videos"
		params = publishParams{
			FileURL:     content.MediaURL,
			Description: content.Text,
			AccessToken: account.AccessToken,
		}
	}
	values, err := query.Values(params)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/%s/%s", c.baseURL, account.ExternalID, edge)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(values.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode >= 300 {
		return nil, graphError(resp, body)
	}
	var out struct {
		ID     string `json:"id"`
		PostID string `json:"post_id"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decoding publish response: %w", err)
	}
	externalID := out.PostID
	if externalID == "" {
		externalID = out.ID
	}
	return &repository.Receipt{
		ExternalID: externalID,
		URL:        fmt.Sprintf("https://facebook.com/%s", externalID),
	}, nil
}

func (c *Client) VerifyTokenHealth(ctx context.Context, accessToken string) (bool, error) {
	endpoint := fmt.Sprintf("%s/me?access_token=%s", c.baseURL, url.QueryEscape(accessToken))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return false, nil
	}
	if resp.StatusCode >= 300 {
		return false, fmt.Errorf("token probe returned http %d", resp.StatusCode)
	}
	return true, nil
}

type exchangeParams struct {
	GrantType       string `url:"grant_type"`
	ClientID        string `url:"client_id"`
	ClientSecret    string `url:"client_secret"`
	FBExchangeToken string `url:"fb_exchange_token"`
}

// RefreshToken exchanges the current token for a fresh long-lived one.
// Facebook has no refresh token flow; the live access token is re-exchanged.
func (c *Client) RefreshToken(ctx context.Context, account *model.LinkedAccount) (*repository.RefreshedToken, error) {
	values, err := query.Values(exchangeParams{
		GrantType:       "fb_exchange_token",
		ClientID:        c.clientID,
		ClientSecret:    c.clientSecret,
		FBExchangeToken: account.AccessToken,
	})
	if err != nil {
		return nil, err
	}
	endpoint := fmt.Sprintf("%s/oauth/access_token?%s", c.baseURL, values.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return nil, graphError(resp, body)
	}
	var out struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decoding token response: %w", err)
	}
	return &repository.RefreshedToken{
		AccessToken: out.AccessToken,
		ExpiresIn:   out.ExpiresIn,
	}, nil
}

// graphError maps a Graph API error body to a classifiable platform error.
func graphError(resp *http.Response, body []byte) error {
	perr := &model.PlatformError{
		Platform:   model.PlatformFacebook,
		StatusCode: resp.StatusCode,
		Message:    strings.TrimSpace(string(body)),
	}
	var envelope struct {
		Error struct {
			Message string `json:"message"`
			Code    int    `json:"code"`
			Type    string `json:"type"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		perr.Message = envelope.Error.Message
		perr.Code = strconv.Itoa(envelope.Error.Code)
	}
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			perr.RetryAfter = time.Duration(secs) * time.Second
		}
	}
	return perr
}
