package rest

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/uol/gobol/rip"
	"github.com/uol/logh"

	"github.com/uol/graphiteproxy/lib/constants"
	"github.com/uol/graphiteproxy/lib/stats"
	"github.com/uol/graphiteproxy/lib/structs"
)

// ConnectionCounter - counts the open telnet connections
type ConnectionCounter interface {
	NumConnections() uint32
}

// PendingCounter - counts the points waiting for acknowledgment
type PendingCounter interface {
	Len() int
}

// HealthChecker - reports the backend stream state
type HealthChecker interface {
	Healthy() bool
}

// REST - the admin http handler
type REST struct {
	settings    *structs.SettingsHTTP
	connections ConnectionCounter
	pending     PendingCounter
	backend     HealthChecker
	stats       *stats.Manager
	server      *http.Server
	logger      *logh.ContextualLogger
}

// New - returns the http handler of the admin endpoints
func New(settings *structs.SettingsHTTP, connections ConnectionCounter, pending PendingCounter, backend HealthChecker, statsManager *stats.Manager) *REST {

	return &REST{
		settings:    settings,
		connections: connections,
		pending:     pending,
		backend:     backend,
		stats:       statsManager,
		logger:      logh.CreateContextualLogger(constants.StringsPKG, "rest"),
	}
}

// Handler - builds the router with all admin endpoints
func (trest *REST) Handler() http.Handler {

	router := rip.NewCustomRouter()
	//NODE
	router.HEAD("/"+URIConnections, trest.countConnections)
	router.GET("/ledger", trest.ledgerStatus)
	//PROBE
	router.GET("/probe", trest.check)
	//METRICS
	router.Handler(http.MethodGet, "/metrics", promhttp.HandlerFor(trest.stats.Registry(), promhttp.HandlerOpts{}))
	//ADMINISTRATIVE
	router.POST("/admin/gc/free", trest.freeOSMemory)
	router.PUT("/admin/gc/percent", trest.setGCPercent)
	router.GET("/admin/gc/stats", trest.readGCStats)

	var handler http.Handler = newStatsMiddleware(trest.stats, router)

	if trest.settings.AllowCORS {
		handler = cors.AllowAll().Handler(handler)
	}

	return handler
}

// Start - asynchronously starts the handler of the APIs
func (trest *REST) Start() {

	trest.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", trest.settings.Bind, trest.settings.Port),
		Handler:           trest.Handler(),
		ReadTimeout:       60 * time.Second,
		ReadHeaderTimeout: 60 * time.Second,
		WriteTimeout:      60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go trest.asyncStart()
}

const cFuncAsyncStart string = "asyncStart"

func (trest *REST) asyncStart() {

	if logh.InfoEnabled {
		trest.logger.Info().Str(constants.StringsFunc, cFuncAsyncStart).Msgf("admin endpoint listening at %q", trest.server.Addr)
	}

	err := trest.server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed && logh.ErrorEnabled {
		trest.logger.Error().Str(constants.StringsFunc, cFuncAsyncStart).Err(err).Send()
	}
}

func (trest *REST) check(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {

	if !trest.backend.Healthy() {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	w.WriteHeader(http.StatusOK)
}

const cFuncStop string = "Stop"

// Stop - stops the rest server
func (trest *REST) Stop() {

	if trest.server == nil {
		return
	}

	if err := trest.server.Shutdown(context.Background()); err != nil && logh.ErrorEnabled {
		trest.logger.Error().Str(constants.StringsFunc, cFuncStop).Err(err).Send()
	}
}
