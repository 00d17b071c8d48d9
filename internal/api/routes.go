package api

import (
	"net/http"

	"github.com/nearlist/nearlist/internal/engine"
	"github.com/nearlist/nearlist/internal/middleware"
)

// RouterConfig carries everything the HTTP surface needs.
type RouterConfig struct {
	Engine *engine.Engine
	Health HealthHandlersConfig

	// MetricsHandler serves GET /metrics when set (the Prometheus handler
	// for the process registry).
	MetricsHandler http.Handler

	// VoteRateLimiter wraps the vote endpoints when set.
	VoteRateLimiter func(http.Handler) http.Handler
}

// NewRouter builds the route table for the API server.
func NewRouter(config RouterConfig) *http.ServeMux {
	searchHandlers := NewSearchHandlers(config.Engine)
	voteHandlers := NewVoteHandlers(config.Engine)
	reputationHandlers := NewReputationHandlers(config.Engine)
	listingHandlers := NewListingHandlers(config.Engine)
	decayHandlers := NewDecayHandlers(config.Engine)
	healthHandlers := NewHealthHandlers(config.Health)

	mux := http.NewServeMux()

	mux.HandleFunc("/search", searchHandlers.Search)

	var votes http.Handler = http.HandlerFunc(voteHandlers.HandleVotes)
	if config.VoteRateLimiter != nil {
		votes = config.VoteRateLimiter(votes)
	}
	mux.Handle("/votes", votes)

	mux.HandleFunc("/reputation/", reputationHandlers.GetReputation)
	mux.HandleFunc("/listings/", listingHandlers.HandleListings)
	mux.HandleFunc("/admin/decay", decayHandlers.TriggerDecay)

	mux.HandleFunc("/health", healthHandlers.Health)
	mux.HandleFunc("/ready", healthHandlers.Ready)
	if config.MetricsHandler != nil {
		mux.Handle("/metrics", config.MetricsHandler)
	}

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "The requested resource was not found")
			return
		}
		writeJSON(w, r.Context(), http.StatusOK, map[string]string{
			"service": "nearlist-api",
			"version": "0.1.0",
		})
	})

	return mux
}
