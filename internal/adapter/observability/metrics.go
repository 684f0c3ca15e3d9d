package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"route", "method"},
	)

	CVUploadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cv_uploads_total",
			Help: "Total number of CV uploads by category and outcome",
		},
		[]string{"category", "outcome"},
	)
	RankingsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rankings_total",
			Help: "Total number of ranking requests served",
		},
	)
	CandidatesScored = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ranking_candidates_scored",
			Help:    "Distribution of candidate pool sizes scored per ranking request",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
	)

	// Score distribution of ranked results; scores are unbounded above but
	// flatten quickly past the experience cap.
	CandidateScoreHistogram = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ranking_candidate_score",
			Help:    "Distribution of candidate scores",
			Buckets: []float64{0, 1, 2, 3, 4, 5, 7.5, 10, 15, 20},
		},
	)
)

var initMetricsOnce sync.Once

func InitMetrics() {
	initMetricsOnce.Do(func() {
		prometheus.MustRegister(HTTPRequestsTotal)
		prometheus.MustRegister(HTTPRequestDuration)
		prometheus.MustRegister(CVUploadsTotal)
		prometheus.MustRegister(RankingsTotal)
		prometheus.MustRegister(CandidatesScored)
		prometheus.MustRegister(CandidateScoreHistogram)
	})
}

// HTTPMetricsMiddleware records Prometheus metrics for each request.
func HTTPMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		dur := time.Since(start).Seconds()
		// Route pattern may be unavailable outside chi router; guard nil
		var route string
		if rc := chi.RouteContext(r.Context()); rc != nil {
			route = rc.RoutePattern()
		}
		if route == "" {
			// fallback when route pattern is unavailable
			route = r.URL.Path
		}
		method := r.Method
		status := ww.Status()
		HTTPRequestsTotal.WithLabelValues(route, method, http.StatusText(status)).Inc()
		HTTPRequestDuration.WithLabelValues(route, method).Observe(dur)
	})
}

// ObserveUpload records one upload attempt.
func ObserveUpload(category, outcome string) {
	CVUploadsTotal.WithLabelValues(category, outcome).Inc()
}

// ObserveRanking records pool size and resulting scores of one ranking request.
func ObserveRanking(poolSize int, scores []float64) {
	RankingsTotal.Inc()
	CandidatesScored.Observe(float64(poolSize))
	for _, s := range scores {
		CandidateScoreHistogram.Observe(s)
	}
}
