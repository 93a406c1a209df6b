// Package gateway exposes a small HTTP API for monitoring and
// administering the daemon: health, status with dispatch counters, the
// current rule set and execution of the text command surface.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v5"
	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"go.uber.org/zap"

	"ongoing/pkg/admin"
	"ongoing/pkg/commands"
	"ongoing/pkg/config"
	"ongoing/pkg/logger"
	"ongoing/pkg/version"
)

// Server is the HTTP gateway server.
type Server struct {
	config     *config.Config
	logger     *logger.Logger
	admin      *admin.Service
	commands   *commands.Registry
	channels   commands.ChannelManager
	echo       *echo.Echo
	httpServer *http.Server
	startedAt  time.Time
}

// NewServer creates a new gateway server. channels may be nil.
func NewServer(
	cfg *config.Config,
	log *logger.Logger,
	svc *admin.Service,
	registry *commands.Registry,
	channels commands.ChannelManager,
) *Server {
	s := &Server{
		config:    cfg,
		logger:    log.Named("gateway"),
		admin:     svc,
		commands:  registry,
		channels:  channels,
		startedAt: time.Now(),
	}

	s.setup()
	return s
}

func (s *Server) setup() {
	e := echo.New()
	e.Use(middleware.Recover())

	e.GET("/health", s.handleHealth)

	api := e.Group("/api")
	if secret := strings.TrimSpace(s.config.Gateway.JWTSecret); secret != "" {
		api.Use(echojwt.WithConfig(echojwt.Config{
			KeyFunc: func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method")
				}
				return []byte(secret), nil
			},
		}))
	} else {
		s.logger.Warn("Gateway API has no jwt_secret; /api is unauthenticated")
	}

	api.GET("/status", s.handleStatus)
	api.GET("/rules", s.handleRules)
	api.POST("/command", s.handleCommand)

	s.echo = e
}

// Handler returns the HTTP handler serving all routes.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start starts listening in the background.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Gateway.Host, s.config.Gateway.Port)
	s.logger.Info("Gateway server starting", zap.String("addr", addr))

	// http.Server directly so shutdown follows the fx lifecycle.
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.echo,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Gateway server error", zap.Error(err))
		}
	}()

	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Gateway server stopping")
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

func (s *Server) handleHealth(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

type channelStatus struct {
	ID        string `json:"id"`
	Connected bool   `json:"connected"`
}

type connectedChannel interface {
	Connected() bool
}

func (s *Server) handleStatus(c *echo.Context) error {
	stats, err := s.admin.Stats(c.Request().Context())
	if err != nil {
		s.logger.Error("Failed to read stats", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	channels := []channelStatus{}
	if s.channels != nil {
		for _, ch := range s.channels.GetEnabledChannels() {
			st := channelStatus{ID: ch.ID()}
			if cc, ok := ch.(connectedChannel); ok {
				st.Connected = cc.Connected()
			}
			channels = append(channels, st)
		}
	}

	uptime := time.Since(s.startedAt)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"version":        version.GetVersion(),
		"commit":         version.GitCommit,
		"build_time":     version.BuildTime,
		"uptime":         uptime.Round(time.Second).String(),
		"uptime_seconds": int64(uptime.Seconds()),
		"channels":       channels,
		"stats":          stats,
	})
}

func (s *Server) handleRules(c *echo.Context) error {
	ctx := c.Request().Context()

	channel, err := s.admin.GetChannel(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	bots, err := s.admin.ListBots(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	filters, err := s.admin.ListFilters(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"channel": channel,
		"bots":    bots,
		"filters": filters,
	})
}

type commandBody struct {
	Command string `json:"command"`
}

func (s *Server) handleCommand(c *echo.Context) error {
	var body commandBody
	if err := c.Bind(&body); err != nil || strings.TrimSpace(body.Command) == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "command is required"})
	}

	req := commands.CommandRequest{Source: "http", Nick: currentSubject(c)}
	resp, err := s.commands.Execute(c.Request().Context(), req, body.Command)

	result := map[string]interface{}{
		"ok":     err == nil,
		"output": resp.Content,
	}
	if err != nil {
		result["error"] = err.Error()
	}
	s.logger.Info("Command executed via gateway",
		zap.String("command", body.Command),
		zap.String("subject", req.Nick),
		zap.Bool("ok", err == nil))

	return c.JSON(http.StatusOK, result)
}

func currentSubject(c *echo.Context) string {
	token, ok := c.Get("user").(*jwt.Token)
	if !ok || token == nil {
		return ""
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return ""
	}
	sub, _ := claims["sub"].(string)
	return strings.TrimSpace(sub)
}

// GenerateToken signs an HS256 token for subject valid for ttl.
func GenerateToken(secret, subject string, ttl time.Duration) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", fmt.Errorf("gateway.jwt_secret is not set")
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": subject,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
