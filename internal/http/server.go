package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/you/gatekeeper/internal/bot"
	"github.com/you/gatekeeper/internal/infrastructure/gateway"
)

// secretHeader is the header Telegram echoes the configured webhook
// secret back in.
const secretHeader = "X-Telegram-Bot-Api-Secret-Token"

// Server is the webhook-mode HTTP surface: the update endpoint plus a
// health probe and a small read-only operator API.
type Server struct {
	router  *bot.Router
	ops     *OpsHandler
	secret  string
	log     zerolog.Logger
	handler http.Handler
}

// NewServer builds the gin engine and its route table.
func NewServer(router *bot.Router, ops *OpsHandler, webhookSecret string, log zerolog.Logger) *Server {
	s := &Server{
		router: router,
		ops:    ops,
		secret: webhookSecret,
		log:    log.With().Str("component", "http").Logger(),
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), s.requestLog())

	engine.GET("/health", s.health)
	engine.POST("/webhook", s.webhook)

	admin := engine.Group("/admin", s.ops.RequireOperator())
	{
		admin.GET("/stats", s.ops.Stats)
		admin.GET("/pending", s.ops.Pending)
		admin.GET("/export", s.ops.Export)
	}

	s.handler = engine
	return s
}

// Handler exposes the engine for the std http server and for tests.
func (s *Server) Handler() http.Handler { return s.handler }

// Run serves until the listener fails or the server is shut down.
func (s *Server) Run(port string) error {
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      s.handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	s.log.Info().Str("addr", srv.Addr).Msg("http server listening")
	return srv.ListenAndServe()
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// webhook ingests one Bot API update. The secret check rejects anyone
// who is not Telegram; decode failures are answered 200 so Telegram
// does not redeliver garbage forever.
func (s *Server) webhook(c *gin.Context) {
	if s.secret != "" && c.GetHeader(secretHeader) != s.secret {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "bad secret token"})
		return
	}

	var update gateway.Update
	if err := c.ShouldBindJSON(&update); err != nil {
		s.log.Warn().Err(err).Msg("undecodable webhook body")
		c.Status(http.StatusOK)
		return
	}

	if event, ok := gateway.DecodeUpdate(update); ok {
		s.router.HandleEvent(c.Request.Context(), event)
	}
	c.Status(http.StatusOK)
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("took", time.Since(start)).
			Msg("request")
	}
}
