package observability

import (
	"net/http"
	"time"
)

// NewOpsServer serves /metrics, /healthz and, when given, the live dashboard
// websocket on a listener separate from the public API.
func NewOpsServer(addr string, metrics *Metrics, dashboard http.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if dashboard != nil {
		mux.Handle("/ws/dashboard", dashboard)
	}

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
