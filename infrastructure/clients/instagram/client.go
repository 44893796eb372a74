package instagram

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

const (
	graphBaseURL = "https://graph.facebook.com/v19.0"
	basicBaseURL = "https://graph.instagram.com"
)

// Client publishes stories through the Instagram Graph API. Publishing is a
// two-step flow: create a media container, then publish it.
type Client struct {
	httpClient *http.Client
	baseURL    string
	basicURL   string
}

func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    graphBaseURL,
		basicURL:   basicBaseURL,
	}
}

func (c *Client) Platform() model.Platform { return model.PlatformInstagram }

type containerParams struct {
	ImageURL    string `url:"image_url,omitempty"`
	VideoURL    string `url:"video_url,omitempty"`
	MediaType   string `url:"media_type"`
	Caption     string `url:"caption,omitempty"`
	AccessToken string `url:"access_token"`
}

func (c *Client) Publish(ctx context.Context, account *model.LinkedAccount, content repository.RenderedContent) (*repository.Receipt, error) {
	params := containerParams{
		MediaType:   "STORIES",
		Caption:     content.Text,
		AccessToken: account.AccessToken,
	}
	if content.MediaType == model.MediaTypeVideo {
		params.VideoURL = content.MediaURL
	} else {
		params.ImageURL = content.MediaURL
	}
	containerID, err := c.createContainer(ctx, account.ExternalID, params)
	if err != nil {
		return nil, err
	}
	mediaID, err := c.publishContainer(ctx, account.ExternalID, containerID, account.AccessToken)
	if err != nil {
		return nil, err
	}
	return &repository.Receipt{
		ExternalID: mediaID,
		URL:        fmt.Sprintf("https://instagram.com/p/%s", mediaID),
	}, nil
}

func (c *Client) createContainer(ctx context.Context, userID string, params containerParams) (string, error) {
	values, err := query.Values(params)
	if err != nil {
		return "", err
	}
	endpoint := fmt.Sprintf("%s/%s/media", c.baseURL, userID)
	body, err := c.postForm(ctx, endpoint, values)
	if err != nil {
		return "", err
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decoding container response: %w", err)
	}
	return out.ID, nil
}

func (c *Client) publishContainer(ctx context.Context, userID, containerID, accessToken string) (string, error) {
	values := url.Values{}
	values.Set("creation_id", containerID)
	values.Set("access_token", accessToken)
	endpoint := fmt.Sprintf("%s/%s/media_publish", c.baseURL, userID)
	body, err := c.postForm(ctx, endpoint, values)
	if err != nil {
		return "", err
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decoding publish response: %w", err)
	}
	return out.ID, nil
}

func (c *Client) postForm(ctx context.Context, endpoint string, values url.Values) ([]byte, error) {
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
	return body, nil
}

func (c *Client) VerifyTokenHealth(ctx context.Context, accessToken string) (bool, error) {
	endpoint := fmt.Sprintf("%s/me?fields=id&access_token=%s", c.basicURL, url.QueryEscape(accessToken))
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

// RefreshToken extends a long-lived token. Instagram tokens refresh in place;
// there is no separate refresh token.
func (c *Client) RefreshToken(ctx context.Context, account *model.LinkedAccount) (*repository.RefreshedToken, error) {
	endpoint := fmt.Sprintf("%s/refresh_access_token?grant_type=ig_refresh_token&access_token=%s",
		c.basicURL, url.QueryEscape(account.AccessToken))
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

func graphError(resp *http.Response, body []byte) error {
	perr := &model.PlatformError{
		Platform:   model.PlatformInstagram,
		StatusCode: resp.StatusCode,
		Message:    strings.TrimSpace(string(body)),
	}
	var envelope struct {
		Error struct {
			Message string `json:"message"`
			Code    int    `json:"code"`
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
