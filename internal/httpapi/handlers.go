package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"reftracker.org/internal/auth"
	"reftracker.org/internal/obs"
	"reftracker.org/internal/stakeholder"
	"reftracker.org/internal/stream"
)

const serviceName = "reftracker-api"

// Pinger reports whether the storage backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ReadyProbe is a simple readiness check, e.g. a database ping.
type ReadyProbe struct {
	Store Pinger
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.Store == nil {
		return nil
	}
	return rp.Store.Ping(ctx)
}

// Lifecycle is the stakeholder service as seen by the HTTP layer.
type Lifecycle interface {
	Create(ctx context.Context, in stakeholder.CreateInput, actor auth.Actor) (string, error)
	UpdateStatus(ctx context.Context, in stakeholder.UpdateStatusInput, actor auth.Actor) error
	Get(ctx context.Context, id string, actor auth.Actor) (stakeholder.Stakeholder, error)
}

// Options wires the API's collaborators.
type Options struct {
	Lifecycle Lifecycle
	Stream    *stream.Stream
	Ready     ReadyProbe
	Logger    *slog.Logger
	Version   string

	// Tokens enables bearer authentication when non-nil.
	Tokens *auth.Tokens
	// TrustUserHeader accepts the actor carried in the X-User header.
	TrustUserHeader bool

	MaxBodyBytes int64
	RateBurst    int
	RatePerSec   float64
	CORSOrigins  []string
}

// API is the HTTP layer.
type API struct {
	router      chi.Router
	lifecycle   Lifecycle
	stream      *stream.Stream
	readyProbe  ReadyProbe
	logger      *slog.Logger
	version     string
	tokens      *auth.Tokens
	trustHeader bool
	validate    *validator.Validate

	maxBody     int64
	rateBurst   int
	ratePerSec  float64
	corsOrigins []string
}

func New(opts Options) *API {
	a := &API{
		lifecycle:   opts.Lifecycle,
		stream:      opts.Stream,
		readyProbe:  opts.Ready,
		logger:      opts.Logger,
		version:     opts.Version,
		tokens:      opts.Tokens,
		trustHeader: opts.TrustUserHeader,
		validate:    newValidator(),
		maxBody:     opts.MaxBodyBytes,
		rateBurst:   opts.RateBurst,
		ratePerSec:  opts.RatePerSec,
		corsOrigins: opts.CORSOrigins,
	}
	if a.logger == nil {
		a.logger = obs.Logger()
	}
	if a.maxBody <= 0 {
		a.maxBody = 1 << 20
	}
	if a.rateBurst <= 0 {
		a.rateBurst = 100
	}
	if a.ratePerSec <= 0 {
		a.ratePerSec = 50
	}

	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "not_found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed")
	})

	// health/ready/info
	r.Get("/api/health", a.Health)
	r.Get("/healthz", a.Healthz)
	r.Get("/readyz", a.Ready)
	r.Get("/v1/info", a.Info)

	// Prometheus metrics
	r.Handle("/metrics", obs.Handler())

	r.Route("/api/stakeholders", func(r chi.Router) {
		r.Use(requireActor)
		r.Post("/", a.createStakeholder)
		r.With(RequirePermission(auth.PermStakeholderView, actorOrgScope)).Get("/events", a.Stream)
		r.With(RequirePermission(auth.PermStakeholderView, actorOrgScope)).Get("/{id}", a.getStakeholder)
		r.Patch("/{id}/status", a.updateStakeholderStatus)
	})

	a.router = r
	return a
}

// Handler returns the router wrapped in the middleware stack.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.router
	h = a.authenticate(h)
	h = MaxBodyBytes(h, a.maxBody)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = CORS(h, a.corsOrigins)
	h = SecurityHeaders(h)
	h = Logging(h, a.logger)
	h = RequestID(h)
	return obs.Instrument(h)
}

// --- Handlers ---

func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": serviceName,
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		obs.SetReady(false)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    serviceName,
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}
