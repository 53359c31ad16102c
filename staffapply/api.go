package staffapply

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/lmittmann/tint"
)

const (
	apiPathIndex       = "/"
	apiPathHealthCheck = "/healthz"

	xRequestIDHeader = "X-Request-ID"

	// uptimePage is served on the index route so external uptime
	// monitors can keep the bot's host awake.
	uptimePage = "<center><h1>Bot 24H ON!</h1></center>"
)

var structValidator = validator.New()

func init() {
	structValidator.SetTagName("binding")
}

// API is the liveness HTTP server that runs alongside the Discord
// gateway connection.
type API struct {
	config         *APIConfig
	engine         *gin.Engine
	httpServer     *http.Server
	listener       net.Listener
	logger         *slog.Logger
	b              *StaffApply
	requestMetrics map[string]int
	metricMu       sync.Mutex
}

type healthCheckResponse struct {
	DiscordGatewayConnected bool   `json:"discord_gateway_connected"`
	Uptime                  string `json:"uptime"`
}

func newAPI(b *StaffApply, config *APIConfig) (*API, error) {
	if config == nil {
		return nil, fmt.Errorf("nil API config")
	}
	apiLogger := slog.New(
		tint.NewHandler(
			os.Stdout, &tint.Options{
				Level:     config.LogLevel,
				AddSource: true,
			},
		),
	).With(loggerNameKey, "api")

	r := gin.New()
	api := &API{
		config:         config,
		engine:         r,
		b:              b,
		logger:         apiLogger,
		requestMetrics: map[string]int{},
	}

	api.httpServer = &http.Server{
		Addr:              config.Listen,
		Handler:           r,
		WriteTimeout:      config.WriteTimeout,
		IdleTimeout:       config.IdleTimeout,
		ReadTimeout:       config.ReadTimeout,
		ReadHeaderTimeout: config.ReadHeaderTimeout,
	}

	corsConfig := config.CORS.GINConfig()
	if len(corsConfig.AllowOrigins) == 0 {
		corsConfig.AllowOrigins = []string{"*"}
	}

	r.Use(gin.Recovery())
	r.Use(
		requestIDMiddleware(),
		ginLoggingMiddleware(),
		metricMiddleware(api),
		cors.New(corsConfig),
	)

	r.GET(apiPathIndex, api.indexHandler)
	r.GET(apiPathHealthCheck, api.healthCheck)

	return api, nil
}

func (a *API) indexHandler(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(uptimePage))
}

func (a *API) healthCheck(c *gin.Context) {
	rv := healthCheckResponse{}
	if a.b != nil {
		rv.DiscordGatewayConnected = a.b.discord.connected.Load()
		if startedAt := a.b.startedAt; !startedAt.IsZero() {
			rv.Uptime = time.Since(startedAt).Round(time.Second).String()
		}
	}
	c.JSON(http.StatusOK, rv)
}

// Serve listens on the configured address and serves requests until the
// server is shut down.
func (a *API) Serve(ctx context.Context) error {
	if a.listener != nil {
		return a.httpServer.Serve(a.listener)
	}
	listenCfg := &net.ListenConfig{}
	ln, err := listenCfg.Listen(ctx, a.config.ListenNetwork, a.config.Listen)
	if err != nil {
		return fmt.Errorf(
			"error listening on %s %s: %w",
			a.config.ListenNetwork,
			a.config.Listen,
			err,
		)
	}
	a.listener = ln
	return a.httpServer.Serve(a.listener)
}

func generateRandomHexString(n int) (string, error) {
	bytes := make([]byte, n/2)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// requestIDMiddleware assigns a unique request ID to each incoming
// request and echoes it back in the response headers.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := generateRandomHexString(32)
		if err != nil {
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		c.Set(xRequestIDHeader, id)
		if requestID, exists := c.Get(xRequestIDHeader); exists {
			c.Header(xRequestIDHeader, requestID.(string))
		}
		c.Next()
	}
}

// ginContextLogger returns the slog.Logger from the given gin context,
// or, if it doesn't exist, creates a logger with request details included,
// and sets the logger in the context so the next call to ginContextLogger
// will return the new logger.
func ginContextLogger(c *gin.Context) *slog.Logger {
	var requestLogger *slog.Logger
	logger, ok := c.Get(string(loggerContextKey))
	if ok {
		requestLogger, ok = logger.(*slog.Logger)
		if ok {
			return requestLogger
		}
	}
	requestLogger = slog.Default()
	requestID, _ := c.Get(xRequestIDHeader)
	path := c.Request.URL.Path
	raw := c.Request.URL.RawQuery
	if raw != "" {
		path = path + "?" + raw
	}

	requestLogger = requestLogger.With(
		slog.Group(
			"request",
			"method", c.Request.Method,
			"path", path,
			"remote_addr", c.Request.RemoteAddr,
			"remote_ip", c.RemoteIP(),
			"user_agent", c.Request.UserAgent(),
			"referer", c.Request.Referer(),
		),
		slog.Any(xRequestIDHeader, requestID),
	)
	c.Set(string(loggerContextKey), requestLogger)
	return requestLogger
}

// ginLoggingMiddleware returns a Gin middleware function for logging
// HTTP requests: the request method, path, remote address, and the
// duration of the request, along with any accumulated errors.
func ginLoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestLogger := ginContextLogger(c)
		c.Next()
		latency := time.Since(start)

		var errs []error
		for _, e := range c.Errors.ByType(gin.ErrorTypePrivate) {
			errs = append(errs, *e)
		}
		if len(errs) > 0 {
			requestLogger.Error(
				fmt.Sprintf(
					"%s %s finished with errors",
					c.Request.Method,
					c.Request.URL,
				),
				"duration", latency,
				"errors", errs,
				slog.Group(
					"response",
					"status_code", c.Writer.Status(),
					"body_size", c.Writer.Size(),
				),
			)
		} else {
			requestLogger.Info(
				fmt.Sprintf("%s %s finished", c.Request.Method, c.Request.URL),
				"duration", latency,
				slog.Group(
					"response",
					"status_code", c.Writer.Status(),
					"body_size", c.Writer.Size(),
				),
			)
		}
	}
}

// metricMiddleware tracks request counts per method and path.
func metricMiddleware(a *API) gin.HandlerFunc {
	return func(c *gin.Context) {
		a.metricMu.Lock()
		a.requestMetrics[fmt.Sprintf(
			"%s %s",
			c.Request.Method,
			c.Request.URL.Path,
		)]++
		a.metricMu.Unlock()
		c.Next()
	}
}
