package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/xiaonanln/liveroute/cluster/etcdmanager"
	"github.com/xiaonanln/liveroute/config"
	"github.com/xiaonanln/liveroute/livedb"
	"github.com/xiaonanln/liveroute/policy"
	"github.com/xiaonanln/liveroute/route"
	"github.com/xiaonanln/liveroute/stats"
	"github.com/xiaonanln/liveroute/tag"
	"github.com/xiaonanln/liveroute/util/logger"
	"github.com/xiaonanln/liveroute/util/metrics"
	"github.com/xiaonanln/liveroute/util/postgres"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/codes"
)

const shutdownTimeout = 5 * time.Second

// agent owns the routing state of one process and the source that feeds it.
type agent struct {
	cfg      *config.Config
	registry *stats.Registry
	store    *policy.Store
	router   *route.Router
	limits   *config.AdmissionLimits
	gatherer prometheus.Gatherer
	logger   *logger.Logger

	etcd *etcdmanager.EtcdManager
	db   *postgres.DB

	httpServer *http.Server
}

func newAgent(cfg *config.Config) (*agent, error) {
	limits, err := cfg.NewAdmissionLimits()
	if err != nil {
		return nil, err
	}

	registry := stats.NewRegistry(cfg.Stats.MaxEndpoints, nil)
	store := policy.NewStore()

	promRegistry := prometheus.NewRegistry()
	if err := promRegistry.Register(metrics.NewCounterCollector(registry)); err != nil {
		return nil, fmt.Errorf("failed to register counter collector: %w", err)
	}

	a := &agent{
		cfg:      cfg,
		registry: registry,
		store:    store,
		router:   route.NewRouter(store, registry, nil),
		limits:   limits,
		gatherer: prometheus.Gatherers{prometheus.DefaultGatherer, promRegistry},
		logger:   logger.NewLogger("RouteAgent"),
	}
	store.AddListener(func(kind string, version int64) {
		a.logger.Infof("Serving %s policy version %d", kind, version)
	})
	return a, nil
}

// run serves until ctx is cancelled or a component fails.
func (a *agent) run(ctx context.Context) error {
	if err := a.bootstrap(); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	if err := a.startSource(ctx, g); err != nil {
		return err
	}

	snapshotter := stats.NewSnapshotter(a.registry, a.cfg.Stats.SnapshotInterval, a.cfg.Stats.IdleTimeout)
	g.Go(func() error {
		return snapshotter.Run(ctx)
	})

	if a.cfg.MetricsAddr != "" {
		a.httpServer = &http.Server{
			Addr:              a.cfg.MetricsAddr,
			Handler:           a.createHTTPHandler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			a.logger.Infof("HTTP server listening on %s", a.cfg.MetricsAddr)
			if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return a.httpServer.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}

// bootstrap loads the policy file before a remote source is consulted. It is
// the only source when policy.source is file.
func (a *agent) bootstrap() error {
	if a.cfg.Policy.File == "" {
		return nil
	}
	err := policy.NewFileSource(a.cfg.Policy.File, a.store).Load()
	if err == nil {
		return nil
	}
	if a.cfg.Policy.Source == config.SourceFile {
		return err
	}
	a.logger.Warnf("Ignoring bootstrap policies: %v", err)
	return nil
}

func (a *agent) startSource(ctx context.Context, g *errgroup.Group) error {
	switch a.cfg.Policy.Source {
	case config.SourceEtcd:
		mgr, err := etcdmanager.NewEtcdManager(a.cfg.Policy.Etcd.Endpoints, a.cfg.Policy.Etcd.Prefix)
		if err != nil {
			return err
		}
		if err := mgr.Connect(ctx); err != nil {
			return err
		}
		a.etcd = mgr
		source := policy.NewEtcdSource(mgr, a.store)
		g.Go(func() error {
			return source.Run(ctx)
		})

	case config.SourcePostgres:
		db, err := postgres.NewDB(&a.cfg.Policy.Postgres)
		if err != nil {
			return err
		}
		a.db = db
		source := policy.NewPostgresSource(db, a.store, a.cfg.Policy.PollInterval, nil)
		g.Go(func() error {
			return source.Run(ctx)
		})

	case config.SourceFile:
		// loaded by bootstrap
	}
	return nil
}

// close releases the connections opened by run.
func (a *agent) close() error {
	var err error
	if a.etcd != nil {
		err = multierr.Append(err, a.etcd.Close())
	}
	if a.db != nil {
		err = multierr.Append(err, a.db.Close())
	}
	return err
}

// createHTTPHandler serves metrics and the routing debug endpoints
func (a *agent) createHTTPHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/policies", a.handlePolicies)
	mux.HandleFunc("/route", a.handleRoute)
	mux.HandleFunc("/database", a.handleDatabase)
	mux.HandleFunc("/admission", a.handleAdmission)
	mux.HandleFunc("/record", a.handleRecord)
	return mux
}

type policiesResponse struct {
	Databases int64 `json:"databases"`
	Rules     int64 `json:"rules"`
}

func (a *agent) handlePolicies(w http.ResponseWriter, r *http.Request) {
	var resp policiesResponse
	if spec := a.store.DatabaseSpec(); spec != nil {
		resp.Databases = spec.Version
	}
	if rs := a.store.RuleSet(); rs != nil {
		resp.Rules = rs.Version
	}
	a.writeJSON(w, http.StatusOK, resp)
}

type routeEndpoint struct {
	ID      string   `json:"id"`
	Address string   `json:"address"`
	Tags    tag.Tags `json:"tags"`
}

type routeRequest struct {
	Service    string          `json:"service"`
	URI        string          `json:"uri"`
	Tags       tag.Tags        `json:"tags"`
	Candidates []routeEndpoint `json:"candidates"`
}

type routeResponse struct {
	Matched  bool           `json:"matched"`
	Endpoint *routeEndpoint `json:"endpoint,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (a *agent) handleRoute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		a.writeError(w, http.StatusMethodNotAllowed, "only POST is allowed")
		return
	}

	var req routeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if req.Service == "" {
		a.writeError(w, http.StatusBadRequest, "service is required")
		return
	}

	candidates := make([]route.Endpoint, len(req.Candidates))
	for i, c := range req.Candidates {
		candidates[i] = route.Endpoint{ID: c.ID, Address: c.Address, Tags: c.Tags}
	}

	d := a.router.Route(req.Service, req.Tags, candidates, req.URI)
	resp := routeResponse{Matched: d.Matched}
	if d.Endpoint != nil {
		resp.Endpoint = &routeEndpoint{ID: d.Endpoint.ID, Address: d.Endpoint.Address, Tags: d.Endpoint.Tags}
	}
	a.writeJSON(w, http.StatusOK, resp)
}

// handleDatabase resolves ?shard=... to the write master, or to a read replica
// near ?unit=&cell= when ?mode=read.
func (a *agent) handleDatabase(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	shards := q["shard"]
	if len(shards) == 0 {
		a.writeError(w, http.StatusBadRequest, "at least one shard is required")
		return
	}

	spec := a.store.DatabaseSpec()
	var db *livedb.LiveDatabase
	switch q.Get("mode") {
	case "", "write":
		db = spec.GetWriteDatabase(shards...)
	case "read":
		db = spec.GetReadDatabase(q.Get("unit"), q.Get("cell"), shards...)
	default:
		a.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown mode %q", q.Get("mode")))
		return
	}

	if db == nil {
		a.writeError(w, http.StatusNotFound, "no database available")
		return
	}
	a.writeJSON(w, http.StatusOK, db)
}

type admissionResponse struct {
	MaxActive int64 `json:"max_active"`
}

func (a *agent) handleAdmission(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	a.writeJSON(w, http.StatusOK, admissionResponse{
		MaxActive: a.limits.MaxActive(q.Get("service"), q.Get("method")),
	})
}

// recordRequest reports one finished call. Endpoint must be the key routing
// uses for the candidate: its id, or its address when it has no id.
type recordRequest struct {
	Service   string `json:"service"`
	Endpoint  string `json:"endpoint"`
	URI       string `json:"uri"`
	ElapsedMs int64  `json:"elapsed_ms"`
	OK        bool   `json:"ok"`
}

type recordResponse struct {
	Total     int64 `json:"total"`
	Succeeded int64 `json:"succeeded"`
}

// handleRecord feeds the counters /route estimates from, for callers that do
// not run the gRPC interceptor in process.
func (a *agent) handleRecord(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		a.writeError(w, http.StatusMethodNotAllowed, "only POST is allowed")
		return
	}

	var req recordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if req.Service == "" || req.Endpoint == "" {
		a.writeError(w, http.StatusBadRequest, "service and endpoint are required")
		return
	}
	if req.ElapsedMs < 0 {
		a.writeError(w, http.StatusBadRequest, "elapsed_ms must not be negative")
		return
	}

	// The call already finished, so it is counted without an admission check.
	counter := a.registry.Counter(req.Service, req.Endpoint, req.URI)
	counter.Begin(0)
	counter.End(req.ElapsedMs, req.OK)

	code := codes.OK
	if !req.OK {
		code = codes.Unknown
	}
	metrics.RecordCallDuration(req.Service, code.String(), float64(req.ElapsedMs)/1000)

	a.writeJSON(w, http.StatusOK, recordResponse{Total: counter.Total(), Succeeded: counter.Succeeded()})
}

func (a *agent) writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		a.logger.Errorf("Failed to encode JSON response: %v", err)
	}
}

func (a *agent) writeError(w http.ResponseWriter, statusCode int, message string) {
	a.writeJSON(w, statusCode, errorResponse{Error: message})
}
