package rest

import (
	"net/http"

	"github.com/uol/graphiteproxy/lib/stats"
)

// statusRecorder - keeps the status code written by the handler
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(status int) {
	sr.status = status
	sr.ResponseWriter.WriteHeader(status)
}

// statsMiddleware - counts every served request
type statsMiddleware struct {
	stats *stats.Manager
	next  http.Handler
}

func newStatsMiddleware(statsManager *stats.Manager, next http.Handler) *statsMiddleware {

	return &statsMiddleware{
		stats: statsManager,
		next:  next,
	}
}

const cFuncServeHTTP string = "ServeHTTP"

func (sm *statsMiddleware) ServeHTTP(w http.ResponseWriter, r *http.Request) {

	recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

	sm.next.ServeHTTP(recorder, r)

	sm.stats.HTTPRequest(cFuncServeHTTP, r.Method, recorder.status)
}
