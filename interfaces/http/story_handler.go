package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"storycast/domain/repository"
)

type IStoryHandler interface {
	GetStory(c *gin.Context)
}

type StoryHandler struct {
	Stories     repository.IStoryStore
	Assignments repository.IAssignmentStore
}

func NewStoryHandler(stories repository.IStoryStore, assignments repository.IAssignmentStore) IStoryHandler {
	return &StoryHandler{Stories: stories, Assignments: assignments}
}

// GetStory returns one story with its per-account assignment states, the view
// the dashboard renders while a publish is in progress.
func (h *StoryHandler) GetStory(c *gin.Context) {
	id := c.Param("storyId")
	story, err := h.Stories.GetStory(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if story == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "story not found"})
		return
	}
	assignments, err := h.Assignments.GetAssignments(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"story":       story,
		"assignments": assignments,
	}})
}
