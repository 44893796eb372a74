package renderer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"storycast/domain/model"
	"storycast/domain/repository"
)

// RenderClient calls the external video rendering pipeline. The pipeline
// composes the story content into a vertical video, uploads it to the media
// bucket and answers with the object key and a signed URL.
type RenderClient struct {
	httpClient *http.Client
	host       string
}

func NewRenderClient(host string) *RenderClient {
	return &RenderClient{
		httpClient: &http.Client{Timeout: 10 * time.Minute},
		host:       host,
	}
}

type renderRequest struct {
	StoryID   string `json:"story_id"`
	Content   string `json:"content"`
	SourceURL string `json:"source_url,omitempty"`
}

type renderResponse struct {
	URL        string `json:"url"`
	StorageKey string `json:"storage_key"`
	Size       int64  `json:"size"`
}

func (c *RenderClient) Render(ctx context.Context, story *model.Story) (*repository.RenderResult, error) {
	payload, err := json.Marshal(renderRequest{
		StoryID:   story.ID,
		Content:   story.Content,
		SourceURL: story.MediaURL,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/render", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("render pipeline returned http %d: %s", resp.StatusCode, string(body))
	}

	var out renderResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decoding render response: %w", err)
	}
	if out.StorageKey == "" || out.URL == "" {
		return nil, fmt.Errorf("render pipeline returned incomplete result")
	}
	return &repository.RenderResult{
		URL:        out.URL,
		StorageKey: out.StorageKey,
		Size:       out.Size,
	}, nil
}
