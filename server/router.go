package server

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cellmate-ai/cellmate/chat"
	"github.com/cellmate-ai/cellmate/stores"
)

// Deps carries everything the transport layer needs.
type Deps struct {
	Session       *chat.Session
	Store         stores.InteractionStore
	Pseudonymizer *stores.Pseudonymizer
	Logger        *zap.SugaredLogger
}

// NewRouter wires the chat endpoints onto a gin engine.
func NewRouter(deps Deps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	handler := &ChatHandler{
		Session:       deps.Session,
		Store:         deps.Store,
		Pseudonymizer: deps.Pseudonymizer,
		Logger:        deps.Logger,
	}

	api := router.Group("/api/v1")
	{
		api.POST("/chat", handler.HandleChat)
		api.GET("/chat/ws", handler.HandleWS)
		api.GET("/interactions", handler.HandleInteractions)
	}

	router.GET("/healthz", handler.HandleHealth)

	return router
}
