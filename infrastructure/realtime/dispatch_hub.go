package realtime

import (
	"encoding/json"
	"sync"

	"github.com/gin-gonic/gin"

	"storycast/domain/model"
)

// DispatchEvent represents an SSE payload for publish status updates.
type DispatchEvent struct {
	Type      string  `json:"type"`
	StoryID   string  `json:"story_id"`
	AccountID string  `json:"account_id"`
	Status    string  `json:"status"`
	Error     *string `json:"error,omitempty"`
}

// Hub maintains subscribers listening for dispatch status events. The
// dashboard shows every story, so there is one shared subscriber pool.
type Hub struct {
	mu   sync.RWMutex
	subs map[chan DispatchEvent]struct{}
}

func NewDispatchHub() *Hub {
	return &Hub{subs: make(map[chan DispatchEvent]struct{})}
}

// Serve registers an SSE stream for the connected client.
func (h *Hub) Serve(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no") // disable nginx buffering

	ch := make(chan DispatchEvent, 8)
	h.addSubscriber(ch)
	defer h.removeSubscriber(ch)

	// Initial comment to keep connection open
	_, _ = c.Writer.Write([]byte(":ok\n\n"))
	c.Writer.Flush()

	for {
		select {
		case evt := <-ch:
			data, _ := json.Marshal(evt)
			_, _ = c.Writer.Write([]byte("event: dispatch_status\n"))
			_, _ = c.Writer.Write([]byte("data: "))
			_, _ = c.Writer.Write(data)
			_, _ = c.Writer.Write([]byte("\n\n"))
			c.Writer.Flush()
		case <-c.Request.Context().Done():
			return
		}
	}
}

func (h *Hub) addSubscriber(ch chan DispatchEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs[ch] = struct{}{}
}

func (h *Hub) removeSubscriber(ch chan DispatchEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
	}
}

// BroadcastDispatch fans an assignment transition out to every subscriber.
func (h *Hub) BroadcastDispatch(story *model.Story, assignment *model.Assignment) {
	if story == nil || assignment == nil {
		return
	}
	evt := DispatchEvent{
		Type:      "dispatch_status",
		StoryID:   story.ID,
		AccountID: assignment.AccountID,
		Status:    string(assignment.Status),
		Error:     assignment.LastError,
	}
	h.mu.RLock()
	for ch := range h.subs {
		select { // non-blocking
		case ch <- evt:
		default:
		}
	}
	h.mu.RUnlock()
}
