package server

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/mikejsmtih1985/mbl2pc/internal/auth"
	"github.com/mikejsmtih1985/mbl2pc/internal/blobstore"
	"github.com/mikejsmtih1985/mbl2pc/internal/repository"
	"github.com/mikejsmtih1985/mbl2pc/internal/service"
)

type Dependencies struct {
	Chat     *service.ChatService
	Sessions *auth.SessionManager
	Provider auth.Provider
	States   repository.StateRepository
	Hub      *Hub
	// Blobs is set only for the in-memory blob backend, which the server
	// then serves under /blobs.
	Blobs *blobstore.MemoryGateway

	StaticDir        string
	MessagesMaxLimit int
	MaxUploadBytes   int64
	Log              *slog.Logger
}

type Handler struct {
	Dependencies
}

func NewRouter(deps Dependencies) *gin.Engine {
	h := &Handler{Dependencies: deps}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggingMiddleware(deps.Log))
	router.Use(CORSMiddleware())
	router.MaxMultipartMemory = deps.MaxUploadBytes

	router.GET("/", h.Index)
	router.GET("/health", h.HealthCheck)
	router.GET("/version", h.Version)

	router.GET("/login", h.Login)
	router.GET("/auth", h.AuthCallback)
	router.GET("/logout", h.Logout)

	router.GET("/send.html", RequireSessionOrLogin(deps.Sessions), h.SendPage)
	router.Static("/static", deps.StaticDir)

	api := router.Group("/", RequireSession(deps.Sessions))
	{
		api.POST("/send", h.SendText)
		api.POST("/send-image", h.SendImage)
		api.POST("/messages", h.CreateMessage)
		api.GET("/messages", h.ListMessages)
		api.POST("/images", h.UploadImage)
		api.GET("/ws", h.WebSocket)
	}

	if deps.Blobs != nil {
		router.GET("/blobs/:key", h.GetBlob)
	}

	return router
}
