package server

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"storycast/infrastructure/configuration"
	"storycast/infrastructure/realtime"
	httpHandler "storycast/interfaces/http"
	"storycast/interfaces/middleware"
)

func InitiateRouter(
	schedulerHandler httpHandler.ISchedulerHandler,
	accountHandler httpHandler.IAccountHandler,
	storyHandler httpHandler.IStoryHandler,
	hub *realtime.Hub,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     configuration.C.App.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("api")
	api.Use(middleware.Auth(configuration.C.App.SecretKey))

	scheduler := api.Group("/scheduler")
	{
		scheduler.POST("/run", schedulerHandler.RunPublishTick)
		scheduler.POST("/video-prep", schedulerHandler.RunVideoPrep)
		scheduler.POST("/token-sweep", schedulerHandler.RunTokenSweep)
		scheduler.GET("/status", schedulerHandler.Status)
	}

	api.GET("/accounts", accountHandler.ListAccounts)
	api.POST("/accounts/:accountId/refresh", accountHandler.RefreshAccount)

	api.GET("/stories/:storyId", storyHandler.GetStory)

	if hub != nil {
		api.GET("/events/stream", hub.Serve)
	}

	return router
}
