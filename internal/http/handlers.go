package httpapi

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/field-dispatch/internal/assignment"
	"github.com/example/field-dispatch/internal/auditlog"
	"github.com/example/field-dispatch/internal/config"
	"github.com/example/field-dispatch/internal/dispatch"
	"github.com/example/field-dispatch/internal/eta"
	"github.com/example/field-dispatch/internal/geo"
	"github.com/example/field-dispatch/internal/ingest"
	"github.com/example/field-dispatch/internal/locate"
	"github.com/example/field-dispatch/internal/mileage"
	"github.com/example/field-dispatch/internal/models"
	"github.com/example/field-dispatch/internal/observability"
	"github.com/example/field-dispatch/internal/payments"
	"github.com/example/field-dispatch/internal/storage"
)

type Server struct {
	Engine   *assignment.Engine
	Mileage  *mileage.Engine
	Requests storage.RequestStore
	Logs     auditlog.Log
	WSReg    *dispatch.WSRegistry
	Notifier dispatch.Notifier
	Payments *payments.StripeClient

	// capture providers keyed by client runtime; browser runtimes get
	// the W3C bridge, everything else the native daemon
	browser locate.Provider
	native  locate.Provider

	captureTimeout time.Duration
	calloutFee     int64
	currency       string
	logger         *slog.Logger
	mux            *mux.Router
}

// NewServer wires the acceptance core from config. Postgres and redis
// are optional; without them everything runs on in-memory stores.
func NewServer(cfg config.ServerConfig, logger *slog.Logger) *Server {
	var requests storage.RequestStore
	var logs auditlog.Log

	if cfg.PGDSN != "" {
		if ps, err := storage.NewPostgresStore(cfg.PGDSN); err == nil {
			requests = ps
			logs = ps
		} else {
			logger.Error("postgres unavailable, falling back to memory", "error", err)
		}
	}
	if requests == nil {
		requests = storage.NewMemoryStore()
	}
	if logs == nil {
		if cfg.RedisAddr != "" {
			logs = auditlog.NewRedisLog(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisAuditKey)
		} else {
			logs = auditlog.NewMemoryLog()
		}
	}

	engine := assignment.NewEngine(requests, logs)
	if len(cfg.KafkaBrokers) > 0 {
		engine.Publisher = ingest.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	}

	report := &mileage.Engine{Requests: requests, Logs: logs}
	if cfg.OSRMEndpoint != "" {
		report.ETAClient = eta.NewOSRMClient(cfg.OSRMEndpoint)
		report.ETACache = eta.NewCache(cfg.ETACacheTTL)
	}

	wsreg := dispatch.NewWSRegistry()
	var notifier dispatch.Notifier
	switch {
	case cfg.FCMEndpoint != "":
		notifier = dispatch.NewFCMDispatcher(cfg.FCMEndpoint, cfg.FCMKey, nil)
	case cfg.PushEndpoint != "":
		notifier = dispatch.NewPushDispatcher(cfg.PushEndpoint, wsreg)
	default:
		notifier = dispatch.NewPushDispatcher("", wsreg)
	}

	s := &Server{
		Engine:         engine,
		Mileage:        report,
		Requests:       requests,
		Logs:           logs,
		WSReg:          wsreg,
		Notifier:       notifier,
		captureTimeout: cfg.CaptureTimeout,
		calloutFee:     cfg.CalloutFeeCents,
		currency:       cfg.Currency,
		logger:         logger,
		mux:            mux.NewRouter(),
	}
	if cfg.CalloutFeeCents > 0 {
		s.Payments = payments.NewStripeClient()
	}
	if cfg.BrowserGeoEndpoint != "" {
		s.browser = locate.NewBrowserProvider(cfg.BrowserGeoEndpoint, cfg.CaptureTimeout)
	}
	if cfg.NativeGeoEndpoint != "" {
		s.native = locate.NewNativeProvider(cfg.NativeGeoEndpoint, cfg.SettleDelay)
	}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/v1/jobs", s.handleCreateJob).Methods("POST")
	s.mux.HandleFunc("/api/v1/jobs/{job_id}", s.handleGetJob).Methods("GET")
	s.mux.HandleFunc("/api/v1/jobs/{job_id}/accept", s.handleAccept).Methods("POST")
	s.mux.HandleFunc("/api/v1/jobs/{job_id}/decline", s.handleDecline).Methods("POST")
	s.mux.HandleFunc("/api/v1/jobs/{job_id}/assign", s.handleAssign).Methods("POST")
	s.mux.HandleFunc("/api/v1/jobs/{job_id}/complete", s.transitionHandler(models.StatusCompleted)).Methods("POST")
	s.mux.HandleFunc("/api/v1/jobs/{job_id}/cancel", s.transitionHandler(models.StatusCanceled)).Methods("POST")
	s.mux.HandleFunc("/api/v1/reports/mileage", s.handleMileageReport).Methods("GET")
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) }).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
	s.mux.HandleFunc("/ws/{user_id}", s.handleWS)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

type createJobRequest struct {
	Title         string          `json:"title"`
	CustomerName  string          `json:"customer_name"`
	ServiceType   string          `json:"service_type"`
	Location      models.Location `json:"location"`
	AssignedStaff []string        `json:"assigned_staff"`
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Title == "" || req.CustomerName == "" {
		writeError(w, http.StatusBadRequest, "title and customer_name are required")
		return
	}
	now := time.Now().UTC()
	job := &models.ServiceRequest{
		ID:            newID(),
		Title:         req.Title,
		CustomerName:  req.CustomerName,
		ServiceType:   req.ServiceType,
		Status:        models.StatusPending,
		AssignedStaff: req.AssignedStaff,
		Location:      req.Location,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if s.Payments != nil {
		piID, err := s.Payments.Hold(r.Context(), s.calloutFee, s.currency, "")
		if err != nil {
			writeError(w, http.StatusBadGateway, "payment hold failed: "+err.Error())
			return
		}
		job.PaymentIntentID = piID
	}
	if err := s.Requests.Save(r.Context(), job); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, job)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.Requests.Find(r.Context(), mux.Vars(r)["job_id"])
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	logs, err := s.Logs.ListFor(r.Context(), job.ID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"job": job, "acceptance_logs": logs})
}

type acceptRequest struct {
	User        models.User         `json:"user"`
	Platform    models.Platform     `json:"platform"`
	Coordinates *models.Coordinates `json:"coordinates,omitempty"`
}

func (s *Server) handleAccept(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["job_id"]
	var req acceptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.User.ID == "" {
		writeError(w, http.StatusBadRequest, "user is required")
		return
	}
	if req.Platform == "" {
		req.Platform = models.PlatformUnknown
	}

	coords, err := s.resolveCoordinates(r.Context(), &req)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	job, notes, err := s.Engine.Accept(r.Context(), jobID, req.User, coords, req.Platform)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	dispatch.FanOut(s.Notifier, notes)
	writeJSON(w, http.StatusOK, job)
}

// resolveCoordinates uses a client-supplied fix when present, otherwise
// runs a capture through the platform's provider.
func (s *Server) resolveCoordinates(ctx context.Context, req *acceptRequest) (models.Coordinates, error) {
	if req.Coordinates != nil {
		c := *req.Coordinates
		if !geo.Valid(c) {
			return c, &locate.Error{Kind: locate.KindOutOfRange, Cause: "client-supplied coordinates rejected"}
		}
		return c, nil
	}
	provider := s.providerFor(req.Platform)
	if provider == nil {
		return models.Coordinates{}, &locate.Error{Kind: locate.KindCaptureFailed, Cause: "no position provider configured"}
	}
	cctx, cancel := context.WithTimeout(ctx, s.captureTimeout)
	defer cancel()
	c, err := locate.Capture(cctx, provider)
	if err != nil {
		var le *locate.Error
		if errors.As(err, &le) {
			observability.CaptureFailures.WithLabelValues(string(le.Kind)).Inc()
		}
		return c, err
	}
	return c, nil
}

func (s *Server) providerFor(p models.Platform) locate.Provider {
	if p == models.PlatformWeb {
		return s.browser
	}
	if s.native != nil {
		return s.native
	}
	return s.browser
}

type actorRequest struct {
	User models.User `json:"user"`
}

func (s *Server) handleDecline(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["job_id"]
	var req actorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.User.ID == "" {
		writeError(w, http.StatusBadRequest, "user is required")
		return
	}
	job, notes, err := s.Engine.Decline(r.Context(), jobID, req.User)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	dispatch.FanOut(s.Notifier, notes)
	writeJSON(w, http.StatusOK, job)
}

type assignRequest struct {
	StaffIDs []string `json:"staff_ids"`
}

func (s *Server) handleAssign(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["job_id"]
	var req assignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	job, notes, err := s.Engine.AssignStaff(r.Context(), jobID, req.StaffIDs)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	dispatch.FanOut(s.Notifier, notes)
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) transitionHandler(to models.Status) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID := mux.Vars(r)["job_id"]
		job, notes, err := s.Engine.Transition(r.Context(), jobID, to)
		if err != nil {
			s.writeDomainError(w, err)
			return
		}
		if s.Payments != nil && job.PaymentIntentID != "" {
			// settle the callout-fee hold; payment state follows job state
			var perr error
			if to == models.StatusCompleted {
				perr = s.Payments.Capture(r.Context(), job.PaymentIntentID)
			} else if to == models.StatusCanceled {
				perr = s.Payments.Cancel(r.Context(), job.PaymentIntentID)
			}
			if perr != nil {
				s.logger.Error("payment settlement failed", "job_id", job.ID, "error", perr)
			}
		}
		dispatch.FanOut(s.Notifier, notes)
		writeJSON(w, http.StatusOK, job)
	}
}

func (s *Server) handleMileageReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sortBy := mileage.SortKey(q.Get("sort"))
	if sortBy == "" {
		sortBy = mileage.SortByDate
	}
	entries, summary, err := s.Mileage.BuildReport(r.Context(),
		mileage.Filter{Status: q.Get("status")}, q.Get("search"), sortBy)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries, "summary": summary})
}

var upgrader = websocket.Upgrader{}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["user_id"]
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		writeError(w, http.StatusBadRequest, "upgrade failed")
		return
	}
	s.WSReg.Add(id, conn)
}

// writeDomainError maps the error taxonomy to HTTP statuses. The exact
// failure reason always reaches the operator so they know whether to
// retry, grant a permission, or escalate.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	var le *locate.Error
	var pre *assignment.PreconditionError
	var pe *auditlog.PersistenceError
	switch {
	case errors.As(err, &le):
		writeError(w, http.StatusUnprocessableEntity, le.Error())
	case errors.As(err, &pre):
		writeError(w, http.StatusConflict, pre.Error())
	case errors.As(err, &pe):
		s.logger.Error("audit log store failure", "error", pe)
		writeError(w, http.StatusInternalServerError, pe.Error())
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		s.logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func newID() string { b := make([]byte, 8); _, _ = rand.Read(b); return hex.EncodeToString(b) }
