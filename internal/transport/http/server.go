package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/formsync/internal/auth"
	"github.com/vovakirdan/formsync/internal/config"
	"github.com/vovakirdan/formsync/internal/core"
	"github.com/vovakirdan/formsync/internal/store"
)

// NewServer builds the HTTP server. Channels are served by WSHandler on the
// plain mux; health and the REST API go through gin.
func NewServer(hub *core.Hub, authService *auth.Service, st store.Store, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	router.GET("/health", healthHandler)

	forms := NewFormHandlers(hub, st, logger)
	users := NewUserHandlers(logger)

	api := router.Group("/api", AuthMiddleware(authService, logger))
	api.GET("/me", users.Me)
	api.GET("/formularios", forms.ListForms)
	api.POST("/formularios", forms.CreateForm)
	api.GET("/formularios/:id", forms.GetForm)
	api.PATCH("/formularios/:id", forms.PatchForm)
	api.DELETE("/formularios/:id", forms.DeleteForm)
	api.GET("/formularios/:id/respostas", forms.ListResponses)
	api.POST("/formularios/:id/respostas", forms.CreateResponse)
	api.DELETE("/formularios/:id/respostas/:rid", forms.DeleteResponse)

	mux := stdhttp.NewServeMux()
	mux.Handle(wsPrefix, NewWSHandler(hub, authService, st, cfg, logger))
	mux.Handle("/", router)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
