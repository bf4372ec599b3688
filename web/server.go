// ABOUTME: Web server for the client portal with embedded templates
// ABOUTME: Serves portfolio and project pages, a JSON/SSE API, timeline SVGs, and xlsx reports
package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/goccy/go-graphviz"
	"github.com/harperreed/fitout/cases"
	"github.com/harperreed/fitout/docstore"
	"github.com/harperreed/fitout/models"
	"github.com/harperreed/fitout/portal"
	"github.com/harperreed/fitout/reports"
	"github.com/harperreed/fitout/viz"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

//go:embed templates/*.html
var templatesFS embed.FS

const shutdownTimeout = 5 * time.Second

type Server struct {
	store     docstore.Store
	reports   *reports.Service
	templates *template.Template
	logger    *log.Logger
	now       func() time.Time
	tag       language.Tag
	mux       *http.ServeMux
}

type Option func(*Server)

func WithLogger(l *log.Logger) Option {
	return func(s *Server) { s.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// WithLanguage sets the locale used to group amounts on HTML pages.
func WithLanguage(tag language.Tag) Option {
	return func(s *Server) { s.tag = tag }
}

// NewServer builds the server. svc may be nil, which disables /api/reports.
func NewServer(store docstore.Store, svc *reports.Service, opts ...Option) (*Server, error) {
	s := &Server{
		store:   store,
		reports: svc,
		logger:  log.Default(),
		now:     time.Now,
		tag:     language.English,
		mux:     http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}

	printer := message.NewPrinter(s.tag)
	funcMap := template.FuncMap{
		"amount": func(v float64) string {
			return printer.Sprintf("%.0f", v)
		},
		"date": func(t *time.Time) string {
			if t == nil {
				return "-"
			}
			return t.Format("02 Jan 2006")
		},
		"gantt": viz.GanttBars,
	}

	tmpl, err := template.New("").Funcs(funcMap).ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	s.templates = tmpl

	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /{$}", s.handleDashboard)
	s.mux.HandleFunc("GET /cases/{id}", s.handleProjectPage)

	s.mux.HandleFunc("GET /api/cases", s.handleListCases)
	s.mux.HandleFunc("GET /api/cases/{id}/project", s.handleProject)
	s.mux.HandleFunc("GET /api/cases/{id}/stream", s.handleStream)
	s.mux.HandleFunc("GET /api/cases/{id}/timeline.svg", s.handleTimeline)
	s.mux.HandleFunc("POST /api/cases/{id}/chat", s.handleChat)

	s.mux.HandleFunc("GET /api/reports/summary", s.handleReportSummary)
	s.mux.HandleFunc("GET /api/reports/{kind}", s.handleReport)
}

// Handler exposes the routes for tests and for embedding.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting web server", "addr", "http://"+addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.logger.Info("stopping web server")
		return srv.Shutdown(shutdownCtx)
	}
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, cases.ErrCaseNotFound),
		errors.Is(err, cases.ErrInstallmentNotFound),
		errors.Is(err, cases.ErrApprovalNotFound),
		errors.Is(err, cases.ErrPhaseNotFound),
		errors.Is(err, docstore.ErrNotFound),
		errors.Is(err, reports.ErrUnknownKind):
		return http.StatusNotFound
	case errors.Is(err, cases.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, portal.ErrUnsupportedSchema):
		return http.StatusUnprocessableEntity
	case errors.Is(err, docstore.ErrDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to write response", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "err", err)
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) renderTemplate(w http.ResponseWriter, name string, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		s.logger.Error("template error", "template", name, "err", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) projects(ctx context.Context) ([]*models.ClientProject, error) {
	all, err := cases.ListCases(ctx, s.store)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]*models.ClientProject, 0, len(all))
	for _, raw := range all {
		out = append(out, portal.RawCaseToClientProject(raw, now))
	}
	return out, nil
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	projects, err := s.projects(r.Context())
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	s.renderTemplate(w, "layout.html", map[string]interface{}{
		"Title":           "Portfolio",
		"ContentTemplate": "dashboard-content",
		"Stats":           viz.GenerateDashboardStats(projects, s.now()),
		"Projects":        projects,
	})
}

func (s *Server) handleProjectPage(w http.ResponseWriter, r *http.Request) {
	raw, err := cases.GetCase(r.Context(), s.store, r.PathValue("id"))
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	p := portal.RawCaseToClientProject(raw, s.now())

	s.renderTemplate(w, "layout.html", map[string]interface{}{
		"Title":           p.ProjectName,
		"ContentTemplate": "project-content",
		"Project":         p,
	})
}

func (s *Server) handleListCases(w http.ResponseWriter, r *http.Request) {
	projects, err := s.projects(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, projects)
}

// handleProject answers with the same shape the stream publishes.
func (s *Server) handleProject(w http.ResponseWriter, r *http.Request) {
	raw, err := cases.GetCase(r.Context(), s.store, r.PathValue("id"))
	switch {
	case errors.Is(err, cases.ErrCaseNotFound):
		s.writeJSON(w, http.StatusNotFound, portal.State{Error: portal.ErrProjectNotFound.Error()})
		return
	case err != nil:
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, portal.State{Project: portal.RawCaseToClientProject(raw, s.now())})
}

// handleStream pushes every watcher state as a server-sent event until the
// client goes away or the case turns out not to exist.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	watcher := portal.NewWatcher(s.store, portal.WithLogger(s.logger), portal.WithClock(s.now))
	defer watcher.Close()

	// Capacity one: a slow client only ever sees the newest state.
	states := make(chan portal.State, 1)
	stop := watcher.OnChange(func(st portal.State) {
		for {
			select {
			case states <- st:
				return
			default:
				select {
				case <-states:
				default:
				}
			}
		}
	})
	defer stop()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	watcher.Watch(r.PathValue("id"))

	for {
		select {
		case <-r.Context().Done():
			return
		case st := <-states:
			data, err := json.Marshal(st)
			if err != nil {
				s.logger.Warn("failed to encode state", "err", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: state\ndata: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()
			if !st.Loading && st.Project == nil && st.Error == portal.ErrProjectNotFound.Error() {
				return
			}
		}
	}
}

func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	raw, err := cases.GetCase(r.Context(), s.store, r.PathValue("id"))
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	svg, err := viz.GenerateTimelineGraph(r.Context(), portal.RawCaseToClientProject(raw, s.now()), graphviz.SVG)
	if err != nil {
		s.logger.Error("failed to render timeline", "case", raw.ID, "err", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	_, _ = w.Write(svg)
}

type chatRequest struct {
	SenderID    string   `json:"senderId"`
	SenderName  string   `json:"senderName"`
	Role        string   `json:"role"`
	Message     string   `json:"message"`
	Type        string   `json:"type"`
	Attachments []string `json:"attachments"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}

	msg, err := cases.SendChatMessage(r.Context(), s.store, r.PathValue("id"), cases.ChatInput{
		SenderID:    req.SenderID,
		SenderName:  req.SenderName,
		Role:        req.Role,
		Message:     req.Message,
		Type:        req.Type,
		Attachments: req.Attachments,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, msg)
}

func (s *Server) reportFilter(r *http.Request) (models.TimeEntryFilter, error) {
	q := r.URL.Query()
	f := models.TimeEntryFilter{
		UserID:         q.Get("user"),
		OrganizationID: q.Get("org"),
		CaseID:         q.Get("case"),
	}
	loc := s.reports.Location()
	for _, b := range []struct {
		name string
		dst  *time.Time
	}{{"from", &f.From}, {"to", &f.To}} {
		v := q.Get(b.name)
		if v == "" {
			continue
		}
		t, err := time.ParseInLocation("2006-01-02", v, loc)
		if err != nil {
			return f, fmt.Errorf("%w: %s must be YYYY-MM-DD", cases.ErrInvalidInput, b.name)
		}
		*b.dst = t
	}
	return f, nil
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if s.reports == nil {
		http.Error(w, "reports unavailable", http.StatusServiceUnavailable)
		return
	}
	kind, err := reports.ParseKind(r.PathValue("kind"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	f, err := s.reportFilter(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s-%s.xlsx"`, kind, s.now().Format("20060102")))
	if err := s.reports.Write(r.Context(), kind, f, w); err != nil {
		s.logger.Error("failed to write report", "kind", kind, "err", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) handleReportSummary(w http.ResponseWriter, r *http.Request) {
	if s.reports == nil {
		http.Error(w, "reports unavailable", http.StatusServiceUnavailable)
		return
	}
	f, err := s.reportFilter(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	sum, err := s.reports.Summarize(r.Context(), f)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sum)
}
