package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"storycast/usecase"
)

type ISchedulerHandler interface {
	RunPublishTick(c *gin.Context)
	RunVideoPrep(c *gin.Context)
	RunTokenSweep(c *gin.Context)
	Status(c *gin.Context)
}

// SchedulerHandler exposes manual triggers for the periodic controllers so an
// operator can force a cycle without waiting for the next tick.
type SchedulerHandler struct {
	Loop      *usecase.ScheduleLoop
	VideoPrep *usecase.VideoPrepCoordinator
	Tokens    usecase.ITokenLifecycle
}

func NewSchedulerHandler(loop *usecase.ScheduleLoop, videoPrep *usecase.VideoPrepCoordinator, tokens usecase.ITokenLifecycle) ISchedulerHandler {
	return &SchedulerHandler{Loop: loop, VideoPrep: videoPrep, Tokens: tokens}
}

func (h *SchedulerHandler) RunPublishTick(c *gin.Context) {
	if err := h.Loop.Tick(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *SchedulerHandler) RunVideoPrep(c *gin.Context) {
	if err := h.VideoPrep.Sweep(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *SchedulerHandler) RunTokenSweep(c *gin.Context) {
	if err := h.Tokens.Sweep(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *SchedulerHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"in_flight":  h.Loop.InFlight(),
		"last_tick":  formatTime(h.Loop.LastTick()),
		"last_sweep": formatTime(h.VideoPrep.LastSweep()),
	})
}

func formatTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}
