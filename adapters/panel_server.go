package adapters

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"math"
	"mqtt-light-panel/application"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

//go:embed templates/*.html
var templateFiles embed.FS

const (
	ActionSwitchOn  = "on"
	ActionSwitchOff = "off"
	ActionAnalog    = "analog"
)

type PanelServerParams struct {
	Addr string

	Panel    *application.Panel
	Defaults application.PanelForm

	// Status reports transport counters on /api/state. Optional.
	Status func() application.MQTTStatus

	Log zerolog.Logger
}

// PanelServer renders the control page and owns the panel State. Form posts
// are handled one at a time so publishes never overlap.
type PanelServer struct {
	params PanelServerParams

	tmpl *template.Template

	mu    sync.Mutex
	state application.State

	server *http.Server

	log zerolog.Logger
}

type panelPage struct {
	Form      application.PanelForm
	Analog    float64
	State     application.State
	GoVersion string

	AnalogMin  float64
	AnalogMax  float64
	AnalogStep float64
}

type stateResponse struct {
	application.State
	Transport *application.MQTTStatus `json:"transport,omitempty"`
}

var templateFuncs = template.FuncMap{
	"payloadJSON": payloadJSON,
	"oneDecimal":  func(f float64) string { return strconv.FormatFloat(f, 'f', 1, 64) },
}

func NewPanelServer(params PanelServerParams) (*PanelServer, error) {
	if params.Panel == nil {
		return nil, fmt.Errorf("Panel is nil")
	}
	if params.Addr == "" {
		return nil, fmt.Errorf("listen address is empty")
	}

	tmpl, err := template.New("panel.html").Funcs(templateFuncs).ParseFS(templateFiles, "templates/panel.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	return &PanelServer{params: params, tmpl: tmpl, log: params.Log}, nil
}

func (s *PanelServer) State() application.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Handler returns the panel routes wrapped with request logging.
func (s *PanelServer) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /{$}", s.handleSubmit)
	mux.HandleFunc("GET /api/state", s.handleState)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	var h http.Handler = mux
	h = hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	})(h)
	h = hlog.RemoteAddrHandler("remote_addr")(h)
	h = hlog.NewHandler(s.log)(h)
	return h
}

// Run serves the panel until ctx is cancelled.
func (s *PanelServer) Run(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.params.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.log.Info().Msgf("panel listening on %s", s.params.Addr)

	go func() {
		<-ctx.Done()
		s.log.Info().Msg("panel shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("panel listen: %w", err)
	}
	return nil
}

func (s *PanelServer) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, s.params.Defaults, application.AnalogDefault, s.State())
}

func (s *PanelServer) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form: "+err.Error(), http.StatusBadRequest)
		return
	}

	form := formFromRequest(r)
	analog := parseAnalog(r.PostFormValue("analog"))

	st, ok := s.apply(r.Context(), r.PostFormValue("action"), form, analog)
	if !ok {
		http.Error(w, "unknown action", http.StatusBadRequest)
		return
	}

	if math.IsNaN(analog) {
		analog = application.AnalogDefault
	}
	s.render(w, r, form, analog, st)
}

func (s *PanelServer) apply(ctx context.Context, action string, form application.PanelForm, analog float64) (application.State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	panel := s.params.Panel
	switch action {
	case ActionSwitchOn:
		s.state = panel.SwitchOn(ctx, s.state, form)
	case ActionSwitchOff:
		s.state = panel.SwitchOff(ctx, s.state, form)
	case ActionAnalog:
		s.state = panel.SendAnalog(ctx, s.state, form, analog)
	default:
		return s.state, false
	}
	return s.state, true
}

func (s *PanelServer) handleState(w http.ResponseWriter, r *http.Request) {
	resp := stateResponse{State: s.State()}
	if s.params.Status != nil {
		status := s.params.Status()
		resp.Transport = &status
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *PanelServer) render(w http.ResponseWriter, r *http.Request, form application.PanelForm, analog float64, st application.State) {
	page := panelPage{
		Form:       form,
		Analog:     analog,
		State:      st,
		GoVersion:  runtime.Version(),
		AnalogMin:  application.AnalogMin,
		AnalogMax:  application.AnalogMax,
		AnalogStep: application.AnalogStep,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.Execute(w, page); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("template render failed")
	}
}

// formFromRequest reads the connection fields. An unparsable port becomes 0
// and is refused by validation.
func formFromRequest(r *http.Request) application.PanelForm {
	port, err := strconv.Atoi(strings.TrimSpace(r.PostFormValue("port")))
	if err != nil {
		port = 0
	}
	return application.PanelForm{
		Host:        r.PostFormValue("host"),
		Port:        port,
		ClientID:    r.PostFormValue("client_id"),
		SwitchTopic: r.PostFormValue("switch_topic"),
		AnalogTopic: r.PostFormValue("analog_topic"),
	}
}

func parseAnalog(v string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return math.NaN()
	}
	return f
}

func payloadJSON(p application.Payload) (string, error) {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
