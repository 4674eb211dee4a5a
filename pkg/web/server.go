// Package web provides the dashboard HTTP API with routing and middleware.
// It uses Gin framework for high-performance web handling.
package web

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"regexp"
	"sync"
	"time"

	"github.com/PancyStudios/PancyCommunityGo/pkg/database"
	"github.com/PancyStudios/PancyCommunityGo/pkg/embeds"
	"github.com/PancyStudios/PancyCommunityGo/pkg/leveling"
	"github.com/PancyStudios/PancyCommunityGo/pkg/logger"
	"github.com/PancyStudios/PancyCommunityGo/pkg/onboarding"
	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
)

// BotStatus is the part of the Discord client reported by /api/status
type BotStatus interface {
	IsReady() bool
	GuildCount() int
}

// Dependencies are the services the dashboard operates on
type Dependencies struct {
	Store      database.Store
	Engine     *leveling.Engine
	Onboarding *onboarding.Service
	Embeds     *embeds.Service
	Guilds     leveling.GuildResolver
	Identity   Identity
	Live       *LiveHub
	Bot        BotStatus
}

// Options configures a Server
type Options struct {
	// BaseURL is where the dashboard is served; login redirects back to it
	BaseURL    string
	WebhookURL string
	SessionTTL time.Duration
	// AllowedHost rejects requests whose Host does not match. Nil allows every host.
	AllowedHost *regexp.Regexp
	RateLimit   RateLimitConfig
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	WindowMs    time.Duration
	MaxRequests int
}

// Server represents the web server
type Server struct {
	engine *gin.Engine
	deps   Dependencies
	opts   Options
	now    func() time.Time
	guilds *guildCache
	http   *http.Server
}

var (
	server *Server
)

// Init initializes the global web server
func Init(deps Dependencies, opts Options) *Server {
	server = NewServer(deps, opts)
	return server
}

// Get returns the global web server
func Get() *Server {
	return server
}

// NewServer creates a new web server with every API route registered
func NewServer(deps Dependencies, opts Options) *Server {
	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 72 * time.Hour
	}
	if opts.RateLimit.MaxRequests <= 0 {
		opts.RateLimit = RateLimitConfig{WindowMs: 60 * time.Second, MaxRequests: 100}
	}
	if deps.Live == nil {
		deps.Live = NewLiveHub()
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		engine: engine,
		deps:   deps,
		opts:   opts,
		now:    time.Now,
		guilds: newGuildCache(guildCacheTTL),
	}

	// Apply middlewares
	s.engine.Use(s.logsMiddleware())
	s.engine.Use(s.rateLimitMiddleware())

	// Set up error handlers
	s.setupErrorHandlers()
	SetupAPIRoutes(s)

	return s
}

// Engine returns the underlying Gin engine
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Live returns the hub feeding /live websockets
func (s *Server) Live() *LiveHub {
	return s.deps.Live
}

// logsMiddleware logs every request. Requests to an unexpected host are rejected
// and reported to the webhook, as are requests refused by the API.
func (s *Server) logsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.opts.AllowedHost != nil && !s.opts.AllowedHost.MatchString(c.Request.Host) {
			logger.Warn(fmt.Sprintf("[LOG] Solicitud Sospechosa: %s %s | %s", c.Request.Method, c.Request.URL.Path, c.ClientIP()), "WebServer")
			fail(c, http.StatusForbidden, "Host no permitido")
			go s.sendLogToWebhook(requestLog(c), true)
			return
		}

		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		logger.Debug(fmt.Sprintf("[LOG] %s %s %d (%s)", c.Request.Method, c.Request.URL.Path, status, time.Since(start).Round(time.Millisecond)), "WebServer")
		if status == http.StatusForbidden || status == http.StatusTooManyRequests {
			go s.sendLogToWebhook(requestLog(c), true)
		} else if c.Request.Method != http.MethodGet && status < 400 {
			go s.sendLogToWebhook(requestLog(c), false)
		}
	}
}

// loggedRequest is copied out of the gin context before it is recycled
type loggedRequest struct {
	method  string
	path    string
	ip      string
	status  int
	headers http.Header
	query   string
}

func requestLog(c *gin.Context) loggedRequest {
	headers := c.Request.Header.Clone()
	headers.Del("Authorization")
	headers.Del("Cookie")
	return loggedRequest{
		method:  c.Request.Method,
		path:    c.Request.URL.Path,
		ip:      c.ClientIP(),
		status:  c.Writer.Status(),
		headers: headers,
		query:   c.Request.URL.RawQuery,
	}
}

// sendLogToWebhook sends a log message to the Discord webhook
func (s *Server) sendLogToWebhook(r loggedRequest, suspicious bool) {
	if s.opts.WebhookURL == "" {
		return
	}

	title := fmt.Sprintf("💫 | Cambio en el dashboard: %s %s", r.method, r.path)
	color := 0x00AE86 // Green

	if suspicious {
		title = fmt.Sprintf("💫 | Solicitud Rechazada (%d): %s %s", r.status, r.method, r.path)
		color = 0xFFA500 // Orange
	}

	headers, _ := json.Marshal(r.headers)
	query := r.query
	if query == "" {
		query = "{}"
	}

	embed := map[string]interface{}{
		"title": title,
		"description": fmt.Sprintf(
			"> **Ruta:** `%s`\n> **IP:** `%s`\n> **Headers:** ```%s``` \n> **Query:** ```%s```",
			r.path,
			r.ip,
			string(headers),
			query,
		),
		"color":     color,
		"timestamp": time.Now().Format(time.RFC3339),
	}

	jsonData, err := json.Marshal(map[string]interface{}{"embeds": []interface{}{embed}})
	if err != nil {
		return
	}

	req, err := http.NewRequest(http.MethodPost, s.opts.WebhookURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return
	}
	defer resp.Body.Close()
}

// rateLimitMiddleware implements a fixed window limiter per client IP
func (s *Server) rateLimitMiddleware() gin.HandlerFunc {
	type clientInfo struct {
		count   int
		resetAt time.Time
	}
	var mu sync.Mutex
	clients := make(map[string]*clientInfo)
	config := s.opts.RateLimit

	return func(c *gin.Context) {
		ip := c.ClientIP()
		now := time.Now()

		mu.Lock()
		info, exists := clients[ip]
		if !exists || now.After(info.resetAt) {
			// drop expired windows so the map does not grow with every address seen
			for key, other := range clients {
				if now.After(other.resetAt) {
					delete(clients, key)
				}
			}
			info = &clientInfo{resetAt: now.Add(config.WindowMs)}
			clients[ip] = info
		}
		info.count++
		count := info.count
		mu.Unlock()

		if count > config.MaxRequests {
			fail(c, http.StatusTooManyRequests, "Demasiadas solicitudes, por favor intente de nuevo más tarde.")
			return
		}

		c.Next()
	}
}

// setupErrorHandlers sets up error handling routes
func (s *Server) setupErrorHandlers() {
	s.engine.HandleMethodNotAllowed = true

	s.engine.NoRoute(func(c *gin.Context) {
		fail(c, http.StatusNotFound, "La ruta solicitada no existe.")
	})

	s.engine.NoMethod(func(c *gin.Context) {
		fail(c, http.StatusMethodNotAllowed, "El método HTTP no está permitido para esta ruta.")
	})
}

// Start serves the API until Shutdown is called
func (s *Server) Start(port string) error {
	return s.serve(s.listener(port))
}

// StartAsync starts the web server in a goroutine
func (s *Server) StartAsync(port string) {
	srv := s.listener(port)
	go func() {
		if err := s.serve(srv); err != nil {
			logger.Error(fmt.Sprintf("Error iniciando el servidor web: %v", err), "WebServer")
		}
	}()
}

func (s *Server) listener(port string) *http.Server {
	s.http = &http.Server{
		Addr:              ":" + port,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s.http
}

func (s *Server) serve(srv *http.Server) error {
	logger.Info(fmt.Sprintf("🚀 Servidor escuchando en http://localhost%s", srv.Addr), "WebServer")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for the running ones
func (s *Server) Shutdown(ctx context.Context) error {
	s.deps.Live.Close()
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}
