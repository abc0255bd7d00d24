package web

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"MediaTrend/internal/config"
	"MediaTrend/internal/domain"
	"MediaTrend/internal/infrastructure/arr"
	"MediaTrend/internal/ports"
	"MediaTrend/internal/usecase"
)

// Runner is the slice of the job scheduler the dashboard drives.
type Runner interface {
	Trigger(ctx context.Context, key string) error
	Reload(ctx context.Context) error
	Running() []string
	Active() bool
	Entries() []ports.ScheduledEntry
	LastOutcomes() []domain.RunOutcome
}

// LogSource returns recently emitted log lines, oldest first.
type LogSource interface {
	Lines() []string
}

// Server exposes the dashboard JSON API.
type Server struct {
	ec     *echo.Echo
	store  *config.Store
	runner Runner
	logs   LogSource
	client *http.Client
	logger *slog.Logger
}

// StatusResponse is returned by GET /api/status.
type StatusResponse struct {
	SchedulerRunning bool                   `json:"schedulerRunning"`
	EnabledJobs      int                    `json:"enabledJobs"`
	NextRuns         []ports.ScheduledEntry `json:"nextRuns"`
	Running          []string               `json:"running"`
	LastRuns         []domain.RunOutcome    `json:"lastRuns"`
}

// ConnectionRequest carries ad-hoc credentials for the profile and folder proxies.
type ConnectionRequest struct {
	URL    string `json:"url" validate:"required,url"`
	APIKey string `json:"api_key" validate:"required"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// NewServer builds the router. A nil client gets a 15s timeout.
func NewServer(store *config.Store, runner Runner, logs LogSource, httpClient *http.Client, log *slog.Logger) *Server {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if log == nil {
		log = slog.New(discardHandler{})
	}

	ec := echo.New()
	ec.HideBanner = true
	ec.HidePort = true

	s := &Server{ec: ec, store: store, runner: runner, logs: logs, client: httpClient, logger: log}

	ec.Use(middleware.Recover())
	ec.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			s.logger.Debug("http request", "method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency)
			return nil
		},
	}))
	ec.Use(middleware.BasicAuthWithConfig(middleware.BasicAuthConfig{
		Skipper:   s.authDisabled,
		Validator: s.checkCredentials,
		Realm:     "MediaTrend",
	}))

	api := ec.Group("/api")
	api.GET("/status", s.status)
	api.GET("/logs", s.recentLogs)
	api.GET("/settings", s.getSettings)
	api.POST("/settings", s.updateSettings)
	api.GET("/platforms", s.platforms)
	api.GET("/constants", s.constants)
	api.POST("/run/:job", s.runJob)
	api.POST("/radarr/profiles", s.qualityProfiles("radarr"))
	api.POST("/radarr/folders", s.rootFolders("radarr"))
	api.POST("/sonarr/profiles", s.qualityProfiles("sonarr"))
	api.POST("/sonarr/folders", s.rootFolders("sonarr"))

	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.ec
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("dashboard listening", "addr", addr)
		if err := s.ec.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("dashboard: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.ec.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("dashboard shutdown: %w", err)
	}
	return nil
}

func (s *Server) authDisabled(echo.Context) bool {
	return !s.store.Current().Web.Auth.Enabled
}

func (s *Server) checkCredentials(username, password string, _ echo.Context) (bool, error) {
	auth := s.store.Current().Web.Auth
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(auth.Username)) == 1
	if !userOK || !config.CheckPassword(auth.Password, password) {
		s.logger.Warn("dashboard login rejected", "username", username)
		return false, nil
	}
	return true, nil
}

func (s *Server) status(ec echo.Context) error {
	cfg := s.store.Current()
	enabled := 0
	for _, job := range cfg.Scheduler.Jobs {
		if job.Enabled {
			enabled++
		}
	}

	resp := StatusResponse{EnabledJobs: enabled, NextRuns: []ports.ScheduledEntry{}, Running: []string{}, LastRuns: []domain.RunOutcome{}}
	if s.runner != nil {
		resp.SchedulerRunning = s.runner.Active()
		if entries := s.runner.Entries(); entries != nil {
			resp.NextRuns = entries
		}
		resp.Running = s.runner.Running()
		resp.LastRuns = s.runner.LastOutcomes()
	}
	return ec.JSON(http.StatusOK, resp)
}

func (s *Server) recentLogs(ec echo.Context) error {
	lines := []string{}
	if s.logs != nil {
		lines = s.logs.Lines()
	}
	return ec.JSON(http.StatusOK, map[string][]string{"logs": lines})
}

func (s *Server) getSettings(ec echo.Context) error {
	cfg := s.store.Current()
	cfg.Web.Auth.Password = ""
	return ec.JSON(http.StatusOK, cfg)
}

func (s *Server) updateSettings(ec echo.Context) error {
	current := s.store.Current()
	next := current.Clone()
	if err := ec.Bind(&next); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("JSON body invalid: %s", err))
	}
	if next.Web.Auth.Password == "" {
		next.Web.Auth.Password = current.Web.Auth.Password
	}

	saved, err := s.store.Update(next)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	s.logger.Info("settings updated", "path", s.store.Path())

	if s.runner != nil {
		if err := s.runner.Reload(ec.Request().Context()); err != nil {
			s.logger.Error("scheduler reload failed", "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("settings saved, scheduler reload failed: %s", err))
		}
	}

	saved.Web.Auth.Password = ""
	return ec.JSON(http.StatusOK, saved)
}

func (s *Server) platforms(ec echo.Context) error {
	return ec.JSON(http.StatusOK, config.Platforms())
}

func (s *Server) constants(ec echo.Context) error {
	return ec.JSON(http.StatusOK, map[string]any{"countries": config.CommonCountries()})
}

func (s *Server) runJob(ec echo.Context) error {
	key := ec.Param("job")
	if s.runner == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "scheduler unavailable")
	}

	err := s.runner.Trigger(ec.Request().Context(), key)
	switch {
	case errors.Is(err, usecase.ErrUnknownJob):
		return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("unknown job %s", key))
	case errors.Is(err, usecase.ErrJobRunning):
		return echo.NewHTTPError(http.StatusConflict, fmt.Sprintf("job %s is already running", key))
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	s.logger.Info("job triggered from dashboard", "job", key)
	return ec.JSON(http.StatusAccepted, messageResponse{Message: fmt.Sprintf("job %s started", key)})
}

// catalogue is what both connectors offer for the settings pickers.
type catalogue interface {
	QualityProfiles(ctx context.Context) ([]arr.QualityProfile, error)
	RootFolders(ctx context.Context) ([]arr.RootFolder, error)
}

func (s *Server) connect(ec echo.Context, target string) (catalogue, error) {
	var req ConnectionRequest
	if err := ec.Bind(&req); err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("JSON body invalid: %s", err))
	}
	if err := config.Validator().Struct(req); err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "url and api_key are required")
	}

	settings := arr.Settings{URL: req.URL, APIKey: req.APIKey}
	log := s.logger.With("component", target)
	if target == "sonarr" {
		return arr.NewSonarr(settings, s.client, log), nil
	}
	return arr.NewRadarr(settings, s.client, log), nil
}

func (s *Server) qualityProfiles(target string) echo.HandlerFunc {
	return func(ec echo.Context) error {
		conn, err := s.connect(ec, target)
		if err != nil {
			return err
		}
		profiles, err := conn.QualityProfiles(ec.Request().Context())
		if err != nil {
			return echo.NewHTTPError(http.StatusBadGateway, fmt.Sprintf("%s: %s", target, err))
		}
		return ec.JSON(http.StatusOK, profiles)
	}
}

func (s *Server) rootFolders(target string) echo.HandlerFunc {
	return func(ec echo.Context) error {
		conn, err := s.connect(ec, target)
		if err != nil {
			return err
		}
		folders, err := conn.RootFolders(ec.Request().Context())
		if err != nil {
			return echo.NewHTTPError(http.StatusBadGateway, fmt.Sprintf("%s: %s", target, err))
		}
		return ec.JSON(http.StatusOK, folders)
	}
}
