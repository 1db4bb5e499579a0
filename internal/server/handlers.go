package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ginjaninja78/fbdi-workflow/internal/api"
	"github.com/ginjaninja78/fbdi-workflow/internal/config"
	"github.com/ginjaninja78/fbdi-workflow/internal/screens"
	"github.com/ginjaninja78/fbdi-workflow/internal/types"
	"github.com/ginjaninja78/fbdi-workflow/internal/workflow"
)

// =============================================================================
// VIEWS
// =============================================================================

type packageView struct {
	FileName    string    `json:"file_name"`
	Size        int       `json:"size"`
	GeneratedAt time.Time `json:"generated_at"`
}

type sessionView struct {
	ID                 string                     `json:"id"`
	Stage              workflow.Stage             `json:"stage"`
	StepIndicator      string                     `json:"step_indicator,omitempty"`
	Screen             workflow.Screen            `json:"screen"`
	Markers            map[workflow.Screen]string `json:"markers,omitempty"`
	Session            types.SessionConfig        `json:"session"`
	Mappings           []types.MappingEntry       `json:"mappings"`
	MappingSummary     string                     `json:"mapping_summary"`
	Package            *packageView               `json:"package,omitempty"`
	Processing         *types.ProcessingResult    `json:"processing,omitempty"`
	ProcessingComplete bool                       `json:"processing_complete"`
	Recon              *types.ReconResult         `json:"recon,omitempty"`
	ReconBanner        string                     `json:"recon_banner,omitempty"`
}

func viewSession(s *Session) sessionView {
	st := s.Store.State()
	v := sessionView{
		ID:                 s.ID,
		Stage:              st.Stage,
		StepIndicator:      s.Navigator.StepIndicator(),
		Screen:             s.Navigator.Active(),
		Session:            st.Session,
		Mappings:           st.Mappings,
		MappingSummary:     types.MappingSummary(st.Mappings),
		Processing:         st.Processing,
		ProcessingComplete: st.ProcessingComplete,
		Recon:              st.Recon,
		ReconBanner:        s.Recon.Banner(),
	}
	if v.Mappings == nil {
		v.Mappings = []types.MappingEntry{}
	}
	for _, screen := range workflow.Screens {
		if m := s.Navigator.Marker(screen); m != "" {
			if v.Markers == nil {
				v.Markers = map[workflow.Screen]string{}
			}
			v.Markers[screen] = m
		}
	}
	if st.Package != nil {
		v.Package = &packageView{
			FileName:    st.Package.FileName,
			Size:        st.Package.Size(),
			GeneratedAt: st.Package.GeneratedAt,
		}
	}
	return v
}

type processView struct {
	Loading     bool                    `json:"loading"`
	Steps       []screens.StepView      `json:"steps"`
	Error       *errorResponse          `json:"error,omitempty"`
	Result      *types.ProcessingResult `json:"result,omitempty"`
	CanContinue bool                    `json:"can_continue"`
}

func viewProcess(p *screens.Process) processView {
	v := processView{
		Loading:     p.Loading(),
		Steps:       p.Steps(),
		Result:      p.Result(),
		CanContinue: p.CanContinue(),
	}
	if err := p.Err(); err != nil {
		v.Error = &errorResponse{Status: "error", Error: err.Error()}
		var se *api.StepError
		if errors.As(err, &se) {
			v.Error.Error = se.Message
			v.Error.Step = string(se.Step)
			v.Error.JobID = se.JobID
			v.Error.Job = se.Status
		}
	}
	return v
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *Server) session(c *fiber.Ctx) (*Session, error) {
	return s.sessions.Get(c.Params("id"))
}

// formUpload reads an optional file part. Non-multipart requests have none.
func formUpload(c *fiber.Ctx, field string) (api.Upload, error) {
	if !strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		return api.Upload{}, nil
	}
	form, err := c.MultipartForm()
	if err != nil {
		return api.Upload{}, fiber.NewError(http.StatusBadRequest, "invalid multipart form")
	}
	files := form.File[field]
	if len(files) == 0 {
		return api.Upload{}, nil
	}

	fh := files[0]
	f, err := fh.Open()
	if err != nil {
		return api.Upload{}, fmt.Errorf("failed to open %s: %w", field, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return api.Upload{}, fmt.Errorf("failed to read %s: %w", field, err)
	}
	return api.Upload{Name: filepath.Base(fh.Filename), Data: data}, nil
}

func formValue(c *fiber.Ctx, key, fallback string) string {
	if v := strings.TrimSpace(c.FormValue(key)); v != "" {
		return v
	}
	return fallback
}

// =============================================================================
// SESSIONS
// =============================================================================

func (s *Server) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":   "ok",
		"sessions": s.sessions.Count(),
		"backend":  s.cfg.Backend.BaseURL,
	})
}

func (s *Server) createSession(c *fiber.Ctx) error {
	raw, err := formUpload(c, "raw_file")
	if err != nil {
		return err
	}
	if raw.IsZero() {
		return &types.ValidationError{Fields: []string{"SourceFile"}, Message: "Please fill all fields before submitting"}
	}

	id := s.sessions.NewID()
	dir, err := os.MkdirTemp("", "fbdi-session-")
	if err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}
	source := filepath.Join(dir, raw.Name)
	if err := os.WriteFile(source, raw.Data, 0o600); err != nil {
		os.RemoveAll(dir)
		return fmt.Errorf("failed to store source file: %w", err)
	}

	cfg := types.SessionConfig{
		SourceFile:      source,
		TemplateType:    types.TemplateType(strings.ToUpper(formValue(c, "fbdi_type", string(types.DefaultTemplateType)))),
		ProjectName:     formValue(c, "project_name", ""),
		EnvironmentType: types.EnvironmentType(strings.ToUpper(formValue(c, "env_type", ""))),
	}
	if err := types.ValidateSession(cfg); err != nil {
		os.RemoveAll(dir)
		return err
	}

	sess := &Session{
		ID:        id,
		Dir:       dir,
		CreatedAt: time.Now(),
		Set:       screens.NewSet(s.backend, cfg, s.files, s.log, screens.OptionsFromConfig(s.cfg)),
	}
	s.sessions.Save(sess)
	s.log.Info("session created", "session", id, "project", cfg.ProjectName, "template", cfg.TemplateType)

	return c.Status(http.StatusCreated).JSON(viewSession(sess))
}

func (s *Server) showSession(c *fiber.Ctx) error {
	sess, err := s.session(c)
	if err != nil {
		return err
	}
	return c.JSON(viewSession(sess))
}

func (s *Server) deleteSession(c *fiber.Ctx) error {
	if err := s.sessions.Delete(c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

func (s *Server) navigate(c *fiber.Ctx) error {
	sess, err := s.session(c)
	if err != nil {
		return err
	}
	var req struct {
		Screen workflow.Screen `json:"screen"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	if err := sess.Navigator.Navigate(req.Screen); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(viewSession(sess))
}

func (s *Server) reset(c *fiber.Ctx) error {
	sess, err := s.session(c)
	if err != nil {
		return err
	}
	if err := sess.Generate.Reset(); err != nil {
		return err
	}
	return c.JSON(viewSession(sess))
}

// =============================================================================
// PREVIEW AND GENERATE
// =============================================================================

func (s *Server) preview(c *fiber.Ctx) error {
	sess, err := s.session(c)
	if err != nil {
		return err
	}
	entries, err := sess.Preview.Submit(c.UserContext(), sess.Store.State().Session)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"mappings": entries,
		"summary":  types.MappingSummary(entries),
	})
}

func (s *Server) generate(c *fiber.Ctx) error {
	sess, err := s.session(c)
	if err != nil {
		return err
	}
	pkg, err := sess.Generate.Submit(c.UserContext(), sess.Store.State().Session)
	if err != nil {
		return err
	}
	return c.JSON(packageView{FileName: pkg.FileName, Size: pkg.Size(), GeneratedAt: pkg.GeneratedAt})
}

func (s *Server) downloadPackage(c *fiber.Ctx) error {
	sess, err := s.session(c)
	if err != nil {
		return err
	}
	pkg := sess.Generate.Package()
	if pkg == nil {
		return workflow.ErrNoPackage
	}
	c.Attachment(pkg.FileName)
	c.Set(fiber.HeaderContentType, "application/zip")
	return c.Send(pkg.Payload)
}

func (s *Server) continueToProcess(c *fiber.Ctx) error {
	sess, err := s.session(c)
	if err != nil {
		return err
	}
	if err := sess.Generate.Continue(); err != nil {
		return err
	}
	if s.cfg.Features.AutoProcess {
		go s.autoStart(sess)
	}
	return c.JSON(viewSession(sess))
}

// =============================================================================
// PROCESS
// =============================================================================

func (s *Server) autoStart(sess *Session) {
	started, _, err := sess.Process.AutoStart(s.background)
	if started && err != nil {
		s.log.Warn("auto processing failed", "session", sess.ID, "error", err)
	}
}

func (s *Server) runProcess(sess *Session, pending *screens.Pending) {
	if _, err := pending.Wait(); err != nil {
		s.log.Warn("processing failed", "session", sess.ID, "error", err)
	}
}

func (s *Server) startProcess(c *fiber.Ctx) error {
	sess, err := s.session(c)
	if err != nil {
		return err
	}

	archive, err := formUpload(c, "fbdi_file")
	if err != nil {
		return err
	}
	if archive.IsZero() {
		if pkg := sess.Generate.Package(); pkg != nil {
			archive = api.Upload{Name: pkg.FileName, Data: pkg.Payload}
		}
	}

	defaults := sess.Process.DefaultParams()
	sub := screens.Submission{
		Archive: archive,
		Params: types.BusinessParams{
			BusinessUnit: formValue(c, "business_unit", defaults.BusinessUnit),
			BatchSource:  formValue(c, "batch_source", defaults.BatchSource),
			GLDate:       formValue(c, "gl_date", defaults.GLDate),
		},
	}
	pending, err := sess.Process.Begin(s.background, sub)
	if err != nil {
		return err
	}
	go s.runProcess(sess, pending)
	return c.Status(http.StatusAccepted).JSON(viewProcess(sess.Process))
}

func (s *Server) showProcess(c *fiber.Ctx) error {
	sess, err := s.session(c)
	if err != nil {
		return err
	}
	return c.JSON(viewProcess(sess.Process))
}

func (s *Server) retryProcess(c *fiber.Ctx) error {
	sess, err := s.session(c)
	if err != nil {
		return err
	}
	pending, err := sess.Process.BeginRetry(s.background)
	if err != nil {
		return err
	}
	go s.runProcess(sess, pending)
	return c.Status(http.StatusAccepted).JSON(viewProcess(sess.Process))
}

func (s *Server) downloadReport(c *fiber.Ctx) error {
	sess, err := s.session(c)
	if err != nil {
		return err
	}
	path, err := sess.Process.DownloadReport(c.UserContext())
	if err != nil {
		return err
	}
	return c.Download(path, filepath.Base(path))
}

func (s *Server) continueToRecon(c *fiber.Ctx) error {
	sess, err := s.session(c)
	if err != nil {
		return err
	}
	if err := sess.Process.Continue(); err != nil {
		return err
	}
	return c.JSON(viewSession(sess))
}

// =============================================================================
// RECONCILIATION AND JOBS
// =============================================================================

func (s *Server) generateRecon(c *fiber.Ctx) error {
	sess, err := s.session(c)
	if err != nil {
		return err
	}
	var raw api.Upload
	if sess.Recon.Source() == config.ReconUpload {
		if raw, err = formUpload(c, "rawFile"); err != nil {
			return err
		}
	}
	result, err := sess.Recon.Generate(c.UserContext(), raw)
	if err != nil {
		return err
	}
	return c.JSON(result)
}

func (s *Server) downloadRecon(c *fiber.Ctx) error {
	sess, err := s.session(c)
	if err != nil {
		return err
	}
	path, err := sess.Recon.Download(c.UserContext())
	if err != nil {
		return err
	}
	return c.Download(path, filepath.Base(path))
}

func (s *Server) dismissBanner(c *fiber.Ctx) error {
	sess, err := s.session(c)
	if err != nil {
		return err
	}
	sess.Recon.DismissBanner()
	return c.SendStatus(http.StatusNoContent)
}

func (s *Server) checkJob(c *fiber.Ctx) error {
	// Lookups are not tied to a session, so each request gets its own screen.
	status, err := screens.NewJobStatus(s.backend, s.log).Check(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"job_id":        status.JobID,
		"job_status":    status.Status,
		"category":      status.Category(),
		"start_time":    status.StartTime,
		"end_time":      status.EndTime,
		"error_message": status.ErrorMessage,
	})
}
