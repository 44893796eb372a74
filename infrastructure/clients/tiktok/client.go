package tiktok

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"storycast/domain/model"
	"storycast/domain/repository"
)

const (
	openAPIBaseURL = "https://open.tiktokapis.com/v2"
	tokenURL       = "https://open.tiktokapis.com/v2/oauth/token/"
)

// Client publishes stories through the TikTok Content Posting API using the
// PULL_FROM_URL flow: TikTok fetches the media from our signed URL.
type Client struct {
	httpClient  *http.Client
	oauthConfig *oauth2.Config
	baseURL     string
}

func NewClient(clientKey, clientSecret string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		oauthConfig: &oauth2.Config{
			ClientID:     clientKey,
			ClientSecret: clientSecret,
			Endpoint:     oauth2.Endpoint{TokenURL: tokenURL},
		},
		baseURL: openAPIBaseURL,
	}
}

func (c *Client) Platform() model.Platform { return model.PlatformTikTok }

func (c *Client) Publish(ctx context.Context, account *model.LinkedAccount, content repository.RenderedContent) (*repository.Receipt, error) {
	payload := map[string]interface{}{
		"post_info": map[string]interface{}{
			"title":         content.Text,
			"privacy_level": "PUBLIC_TO_EVERYONE",
		},
		"source_info": map[string]interface{}{
			"source":    "PULL_FROM_URL",
			"video_url": content.MediaURL,
		},
	}
	if content.MediaType == model.MediaTypeImage {
		payload["source_info"] = map[string]interface{}{
			"source":            "PULL_FROM_URL",
			"photo_cover_index": 0,
			"photo_images":      []string{content.MediaURL},
		}
		payload["media_type"] = "PHOTO"
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/post/publish/content/init/", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	req.Header.Set("Authorization", "Bearer "+account.AccessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)

	var out struct {
		Data struct {
			PublishID string `json:"publish_id"`
		} `json:"data"`
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	_ = json.Unmarshal(respBody, &out)

	if resp.StatusCode >= 300 || (out.Error.Code != "" && out.Error.Code != "ok") {
		return nil, apiError(resp, respBody, out.Error.Code, out.Error.Message)
	}
	return &repository.Receipt{ExternalID: out.Data.PublishID}, nil
}

func (c *Client) VerifyTokenHealth(ctx context.Context, accessToken string) (bool, error) {
	endpoint := fmt.Sprintf("%s/user/info/?fields=open_id", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
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

// RefreshToken rotates the access token with the stored refresh token. TikTok
// rotates the refresh token too, so the caller must persist both.
func (c *Client) RefreshToken(ctx context.Context, account *model.LinkedAccount) (*repository.RefreshedToken, error) {
	stale := &oauth2.Token{
		RefreshToken: account.RefreshToken,
		Expiry:       time.Now().Add(-1 * time.Minute), // force refresh
	}
	fresh, err := c.oauthConfig.TokenSource(ctx, stale).Token()
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return nil, &model.PlatformError{
				Platform:   model.PlatformTikTok,
				StatusCode: retrieveErr.Response.StatusCode,
				Message:    strings.TrimSpace(string(retrieveErr.Body)),
			}
		}
		return nil, err
	}
	return &repository.RefreshedToken{
		AccessToken:  fresh.AccessToken,
		RefreshToken: fresh.RefreshToken,
		ExpiresIn:    int64(time.Until(fresh.Expiry).Seconds()),
	}, nil
}

func apiError(resp *http.Response, body []byte, code, message string) error {
	perr := &model.PlatformError{
		Platform:   model.PlatformTikTok,
		StatusCode: resp.StatusCode,
		Code:       code,
		Message:    message,
	}
	if perr.Message == "" {
		perr.Message = strings.TrimSpace(string(body))
	}
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			perr.RetryAfter = time.Duration(secs) * time.Second
		}
	}
	return perr
}
