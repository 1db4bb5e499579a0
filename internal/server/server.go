// =============================================================================
// FBDI Workflow - Console Server
// =============================================================================
//
// A local HTTP console that holds workflow sessions in memory and exposes
// the screens as JSON endpoints. A thin web page or curl drives it.
//
// ROUTES:
//   GET    /api/health
//   POST   /api/sessions                          create (multipart source)
//   GET    /api/sessions/:id                      state
//   DELETE /api/sessions/:id
//   POST   /api/sessions/:id/navigate             {screen}
//   POST   /api/sessions/:id/reset
//   POST   /api/sessions/:id/preview
//   POST   /api/sessions/:id/generate
//   GET    /api/sessions/:id/generate/package     archive download
//   POST   /api/sessions/:id/generate/continue
//   POST   /api/sessions/:id/process              202, runs in background
//   GET    /api/sessions/:id/process
//   POST   /api/sessions/:id/process/retry        202
//   GET    /api/sessions/:id/process/report       execution report
//   POST   /api/sessions/:id/process/continue
//   POST   /api/sessions/:id/recon
//   GET    /api/sessions/:id/recon/download
//   DELETE /api/sessions/:id/recon/banner
//   GET    /api/jobs/:id
//
// =============================================================================

package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/ginjaninja78/fbdi-workflow/internal/api"
	"github.com/ginjaninja78/fbdi-workflow/internal/config"
	"github.com/ginjaninja78/fbdi-workflow/internal/logging"
	"github.com/ginjaninja78/fbdi-workflow/internal/screens"
	"github.com/ginjaninja78/fbdi-workflow/internal/types"
	"github.com/ginjaninja78/fbdi-workflow/internal/workflow"
	"github.com/ginjaninja78/fbdi-workflow/pkg/utils"
)

// Server is the console HTTP server.
type Server struct {
	app      *fiber.App
	cfg      *config.Config
	backend  screens.Backend
	files    *utils.FileManager
	sessions *SessionRepository
	log      logging.Logger

	// background runs processing submissions that outlive the request.
	background context.Context
	stop       context.CancelFunc
}

// New creates the server. Routes are registered immediately.
func New(cfg *config.Config, backend screens.Backend, log logging.Logger) *Server {
	log = log.With("server")
	bg, stop := context.WithCancel(context.Background())

	s := &Server{
		cfg:        cfg,
		backend:    backend,
		files:      utils.NewFileManager(cfg.OutputDir),
		sessions:   NewSessionRepository(cfg.Server.SessionTTL),
		log:        log,
		background: bg,
		stop:       stop,
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "fbdi-workflow",
		BodyLimit:             50 * 1024 * 1024,
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})
	s.registerRoutes()
	return s
}

// App returns the fiber application.
func (s *Server) App() *fiber.App {
	return s.app
}

// Sessions returns the session repository.
func (s *Server) Sessions() *SessionRepository {
	return s.sessions
}

// Listen serves on the configured address until Shutdown.
func (s *Server) Listen() error {
	s.log.Info("console listening", "address", s.cfg.Server.Address, "backend", s.cfg.Backend.BaseURL)
	return s.app.Listen(s.cfg.Server.Address)
}

// Shutdown stops the listener and closes every session.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stop()
	s.sessions.Close()
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) registerRoutes() {
	r := s.app.Group("/api")
	r.Get("/health", s.health)
	r.Get("/jobs/:id", s.checkJob)

	h := r.Group("/sessions")
	h.Post("", s.createSession)
	h.Get("/:id", s.showSession)
	h.Delete("/:id", s.deleteSession)
	h.Post("/:id/navigate", s.navigate)
	h.Post("/:id/reset", s.reset)

	h.Post("/:id/preview", s.preview)

	h.Post("/:id/generate", s.generate)
	h.Get("/:id/generate/package", s.downloadPackage)
	h.Post("/:id/generate/continue", s.continueToProcess)

	h.Post("/:id/process", s.startProcess)
	h.Get("/:id/process", s.showProcess)
	h.Post("/:id/process/retry", s.retryProcess)
	h.Get("/:id/process/report", s.downloadReport)
	h.Post("/:id/process/continue", s.continueToRecon)

	h.Post("/:id/recon", s.generateRecon)
	h.Get("/:id/recon/download", s.downloadRecon)
	h.Delete("/:id/recon/banner", s.dismissBanner)
}

// =============================================================================
// ERRORS
// =============================================================================

type errorResponse struct {
	Status string   `json:"status"`
	Error  string   `json:"error"`
	Fields []string `json:"fields,omitempty"`
	Step   string   `json:"step,omitempty"`
	JobID  string   `json:"job_id,omitempty"`
	Job    string   `json:"job_status,omitempty"`
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	body := errorResponse{Status: "error", Error: err.Error()}
	code := http.StatusInternalServerError

	var (
		ve *types.ValidationError
		se *api.StepError
		ae *api.APIError
		fe *fiber.Error
	)
	switch {
	case errors.As(err, &ve):
		code = http.StatusBadRequest
		body.Error = ve.Message
		body.Fields = ve.Fields
	case errors.As(err, &se):
		code = http.StatusBadGateway
		body.Step = string(se.Step)
		body.JobID = se.JobID
		body.Job = se.Status
		body.Error = se.Message
	case errors.As(err, &ae):
		code = http.StatusBadGateway
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, api.ErrJobNotFound):
		code = http.StatusNotFound
	case errors.Is(err, screens.ErrBusy),
		errors.Is(err, workflow.ErrInvalidTransition),
		errors.Is(err, workflow.ErrNoPackage),
		errors.Is(err, workflow.ErrNotProcessed),
		errors.Is(err, screens.ErrNoReport),
		errors.Is(err, screens.ErrNothingToRetry):
		code = http.StatusConflict
	case errors.As(err, &fe):
		code = fe.Code
	}

	if code >= http.StatusInternalServerError && code != http.StatusBadGateway {
		s.log.Error("request failed", "method", c.Method(), "path", c.Path(), "error", err)
	}
	return c.Status(code).JSON(body)
}
