package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nearlist/nearlist/internal/decay"
	"github.com/nearlist/nearlist/internal/engine"
	"github.com/nearlist/nearlist/internal/gazetteer"
	"github.com/nearlist/nearlist/internal/geo"
	"github.com/nearlist/nearlist/internal/listing"
	"github.com/nearlist/nearlist/internal/owner"
	"github.com/nearlist/nearlist/internal/reputation"
	"github.com/nearlist/nearlist/internal/search"
)

// newTestRouter builds a router over in-memory stores seeded with a small
// France-shaped fixture: Paris and Marseille in the gazetteer, one listing
// near Versailles, and three owners.
func newTestRouter(t *testing.T) *http.ServeMux {
	t.Helper()

	listings := listing.NewInMemoryRepository()
	owners := owner.NewInMemoryRepository()
	levels := reputation.DefaultLevelTable()
	store := reputation.NewInMemoryStore(owners, levels)
	ledger := reputation.NewLedger(store, owners, levels, nil, reputation.LedgerConfig{})

	resolver := gazetteer.NewInMemoryGazetteer()
	resolver.Add(gazetteer.Entry{
		DisplayName: "Paris",
		Coordinates: geo.Coordinates{Lat: 48.8566, Lng: 2.3522},
		CountryCode: "FR",
	})
	resolver.Add(gazetteer.Entry{
		DisplayName: "Marseille",
		Coordinates: geo.Coordinates{Lat: 43.2965, Lng: 5.3698},
		CountryCode: "FR",
	})

	searchSvc := search.NewService(listings, resolver, search.ServiceConfig{Owners: owners})
	scheduler := decay.NewScheduler(listings, decay.NewInMemoryLogStore(), decay.SchedulerConfig{})

	aWeekAgo := time.Now().Add(-30 * 24 * time.Hour)
	owners.Put(&owner.Owner{ID: "alice", AccountCreatedAt: aWeekAgo})
	owners.Put(&owner.Owner{ID: "bob", AccountCreatedAt: aWeekAgo})
	owners.Put(&owner.Owner{ID: "newbie", AccountCreatedAt: time.Now().Add(-time.Hour)})

	listings.Put(&listing.Listing{
		ID:           "versailles-plumber",
		OwnerID:      "bob",
		LocationName: "Versailles",
		Coordinates:  &geo.Coordinates{Lat: 48.8049, Lng: 2.1204},
		Category:     "plumbing",
		CountryCode:  "FR",
		Tier:         listing.TierStandard,
		CreatedAt:    time.Now(),
		Status:       listing.StatusActive,
	})

	eng := engine.New(listings, searchSvc, ledger, scheduler)

	return NewRouter(RouterConfig{Engine: eng})
}

func doRequest(t *testing.T, mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	return rr
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse error body: %v, body: %s", err, rr.Body.String())
	}
	return resp.Error.Code
}

func TestSearch_ByOriginName(t *testing.T) {
	mux := newTestRouter(t)

	rr := doRequest(t, mux, http.MethodGet, "/search?origin=Paris&radius_km=50", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", rr.Code, rr.Body.String())
	}

	var resp search.Response
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(resp.Results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(resp.Results))
	}
	if resp.Results[0].Listing.ID != "versailles-plumber" {
		t.Errorf("unexpected listing %q", resp.Results[0].Listing.ID)
	}
	if resp.Results[0].DistanceKm < 10 || resp.Results[0].DistanceKm > 25 {
		t.Errorf("DistanceKm = %g, want roughly 17", resp.Results[0].DistanceKm)
	}
}

func TestSearch_ExplicitCoordinates(t *testing.T) {
	mux := newTestRouter(t)

	// Coordinates near Marseille with a misleading origin name; coordinates win.
	rr := doRequest(t, mux, http.MethodGet, "/search?origin=Paris&lat=43.2965&lng=5.3698&radius_km=50", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", rr.Code, rr.Body.String())
	}

	var resp search.Response
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(resp.Results) != 0 {
		t.Errorf("expected no results near Marseille, got %d", len(resp.Results))
	}
}

func TestSearch_Errors(t *testing.T) {
	mux := newTestRouter(t)

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantCode   string
	}{
		{"unresolved origin", "/search?origin=Atlantis&radius_km=50", http.StatusNotFound, ErrCodeLocationUnresolved},
		{"missing radius", "/search?origin=Paris", http.StatusBadRequest, ErrCodeValidation},
		{"radius over cap", "/search?origin=Paris&radius_km=501", http.StatusBadRequest, ErrCodeInvalidRadius},
		{"negative radius", "/search?origin=Paris&radius_km=-5", http.StatusBadRequest, ErrCodeInvalidRadius},
		{"page size over max", "/search?origin=Paris&radius_km=50&page_size=101", http.StatusBadRequest, ErrCodePageOutOfRange},
		{"zero page", "/search?origin=Paris&radius_km=50&page=0", http.StatusBadRequest, ErrCodePageOutOfRange},
		{"negative page", "/search?origin=Paris&radius_km=50&page=-1", http.StatusBadRequest, ErrCodePageOutOfRange},
		{"zero page size", "/search?origin=Paris&radius_km=50&page_size=0", http.StatusBadRequest, ErrCodePageOutOfRange},
		{"missing origin entirely", "/search?radius_km=50", http.StatusBadRequest, ErrCodeValidation},
		{"lat without lng", "/search?lat=48.0&radius_km=50", http.StatusBadRequest, ErrCodeValidation},
		{"lat out of range", "/search?lat=91&lng=0&radius_km=50", http.StatusBadRequest, ErrCodeValidation},
		{"origin with markup", "/search?origin=%3Cscript%3E&radius_km=50", http.StatusBadRequest, ErrCodeValidation},
		{"invalid category", "/search?origin=Paris&radius_km=50&category=plumbing%21", http.StatusBadRequest, ErrCodeValidation},
		{"invalid country code", "/search?origin=Paris&radius_km=50&country=FRA", http.StatusBadRequest, ErrCodeValidation},
		{"invalid sort", "/search?origin=Paris&radius_km=50&sort=alphabetical", http.StatusBadRequest, ErrCodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doRequest(t, mux, http.MethodGet, tt.path, "")
			if rr.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d, body: %s", rr.Code, tt.wantStatus, rr.Body.String())
			}
			if code := errorCode(t, rr); code != tt.wantCode {
				t.Errorf("error code = %q, want %q", code, tt.wantCode)
			}
		})
	}
}

func TestVotes_CastAndRevoke(t *testing.T) {
	mux := newTestRouter(t)

	rr := doRequest(t, mux, http.MethodPost, "/votes",
		`{"voter_id":"alice","target_id":"bob","weight_class":"tier1"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("cast status = %d, body: %s", rr.Code, rr.Body.String())
	}

	var resp voteResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Reputation.Score != 50 {
		t.Errorf("Score = %d, want 50", resp.Reputation.Score)
	}

	// Reputation endpoint reflects the vote.
	rr = doRequest(t, mux, http.MethodGet, "/reputation/bob", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("reputation status = %d", rr.Code)
	}
	var rep reputationResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &rep); err != nil {
		t.Fatalf("failed to parse reputation: %v", err)
	}
	if rep.Reputation.Score != 50 {
		t.Errorf("reputation Score = %d, want 50", rep.Reputation.Score)
	}

	// Revoke brings it back to zero.
	rr = doRequest(t, mux, http.MethodDelete, "/votes",
		`{"voter_id":"alice","target_id":"bob"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("revoke status = %d, body: %s", rr.Code, rr.Body.String())
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Reputation.Score != 0 {
		t.Errorf("Score after revoke = %d, want 0", resp.Reputation.Score)
	}
}

func TestVotes_Errors(t *testing.T) {
	mux := newTestRouter(t)

	tests := []struct {
		name       string
		method     string
		body       string
		wantStatus int
		wantCode   string
	}{
		{
			"self vote",
			http.MethodPost,
			`{"voter_id":"alice","target_id":"alice","weight_class":"tier1"}`,
			http.StatusUnprocessableEntity,
			ErrCodeSelfVote,
		},
		{
			"cooldown",
			http.MethodPost,
			`{"voter_id":"newbie","target_id":"bob","weight_class":"tier1"}`,
			http.StatusForbidden,
			ErrCodeCooldownActive,
		},
		{
			"invalid weight class",
			http.MethodPost,
			`{"voter_id":"alice","target_id":"bob","weight_class":"tier9"}`,
			http.StatusBadRequest,
			ErrCodeInvalidWeightClass,
		},
		{
			"unknown voter",
			http.MethodPost,
			`{"voter_id":"ghost","target_id":"bob","weight_class":"tier1"}`,
			http.StatusNotFound,
			ErrCodeNotFound,
		},
		{
			"unknown target",
			http.MethodPost,
			`{"voter_id":"alice","target_id":"ghost","weight_class":"tier1"}`,
			http.StatusNotFound,
			ErrCodeNotFound,
		},
		{
			"missing fields",
			http.MethodPost,
			`{"weight_class":"tier1"}`,
			http.StatusBadRequest,
			ErrCodeValidation,
		},
		{
			"malformed body",
			http.MethodPost,
			`{not json`,
			http.StatusBadRequest,
			ErrCodeBadRequest,
		},
		{
			"revoke missing vote",
			http.MethodDelete,
			`{"voter_id":"alice","target_id":"bob"}`,
			http.StatusNotFound,
			ErrCodeNotFound,
		},
		{
			"unsupported method",
			http.MethodGet,
			"",
			http.StatusBadRequest,
			ErrCodeBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doRequest(t, mux, tt.method, "/votes", tt.body)
			if rr.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d, body: %s", rr.Code, tt.wantStatus, rr.Body.String())
			}
			if code := errorCode(t, rr); code != tt.wantCode {
				t.Errorf("error code = %q, want %q", code, tt.wantCode)
			}
		})
	}
}

func TestReputation_Errors(t *testing.T) {
	mux := newTestRouter(t)

	rr := doRequest(t, mux, http.MethodGet, "/reputation/ghost", "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
	if code := errorCode(t, rr); code != ErrCodeNotFound {
		t.Errorf("error code = %q, want %q", code, ErrCodeNotFound)
	}

	rr = doRequest(t, mux, http.MethodGet, "/reputation/", "")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("empty owner status = %d, want 400", rr.Code)
	}
}

func TestListings_ViewAndGet(t *testing.T) {
	mux := newTestRouter(t)

	for i := 0; i < 2; i++ {
		rr := doRequest(t, mux, http.MethodPost, "/listings/versailles-plumber/view", "")
		if rr.Code != http.StatusNoContent {
			t.Fatalf("view status = %d, body: %s", rr.Code, rr.Body.String())
		}
	}

	rr := doRequest(t, mux, http.MethodGet, "/listings/versailles-plumber", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("get status = %d", rr.Code)
	}
	var l listing.Listing
	if err := json.Unmarshal(rr.Body.Bytes(), &l); err != nil {
		t.Fatalf("failed to parse listing: %v", err)
	}
	if l.WindowViewCount != 2 || l.TotalViewCount != 2 {
		t.Errorf("view counts = (%d, %d), want (2, 2)", l.WindowViewCount, l.TotalViewCount)
	}

	rr = doRequest(t, mux, http.MethodPost, "/listings/missing/view", "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("view on missing listing status = %d, want 404", rr.Code)
	}

	rr = doRequest(t, mux, http.MethodGet, "/listings/missing", "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("get missing listing status = %d, want 404", rr.Code)
	}
}

func TestAdminDecay(t *testing.T) {
	mux := newTestRouter(t)

	rr := doRequest(t, mux, http.MethodPost, "/admin/decay", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("first trigger status = %d, body: %s", rr.Code, rr.Body.String())
	}

	var entry decay.LogEntry
	if err := json.Unmarshal(rr.Body.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log entry: %v", err)
	}
	if entry.AffectedListingCount != 1 {
		t.Errorf("AffectedListingCount = %d, want 1", entry.AffectedListingCount)
	}

	// Second trigger inside the same window conflicts.
	rr = doRequest(t, mux, http.MethodPost, "/admin/decay", "")
	if rr.Code != http.StatusConflict {
		t.Errorf("second trigger status = %d, want 409", rr.Code)
	}
	if code := errorCode(t, rr); code != ErrCodeDecayAlreadyRan {
		t.Errorf("error code = %q, want %q", code, ErrCodeDecayAlreadyRan)
	}

	rr = doRequest(t, mux, http.MethodGet, "/admin/decay", "")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("GET status = %d, want 400", rr.Code)
	}
}

func TestHealthEndpoints(t *testing.T) {
	mux := newTestRouter(t)

	rr := doRequest(t, mux, http.MethodGet, "/health", "")
	if rr.Code != http.StatusOK {
		t.Errorf("/health status = %d, want 200", rr.Code)
	}

	rr = doRequest(t, mux, http.MethodGet, "/ready", "")
	if rr.Code != http.StatusOK {
		t.Errorf("/ready status = %d, want 200", rr.Code)
	}

	var resp HealthResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse readiness response: %v", err)
	}
	if resp.Status != "ready" {
		t.Errorf("status = %q, want ready", resp.Status)
	}
	if resp.Checks["database"] != "ok" {
		t.Errorf("database check = %q, want ok", resp.Checks["database"])
	}
}

func TestRootRoute(t *testing.T) {
	mux := newTestRouter(t)

	rr := doRequest(t, mux, http.MethodGet, "/", "")
	if rr.Code != http.StatusOK {
		t.Errorf("root status = %d, want 200", rr.Code)
	}

	rr = doRequest(t, mux, http.MethodGet, "/nope", "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("unknown route status = %d, want 404", rr.Code)
	}
	if code := errorCode(t, rr); code != ErrCodeNotFound {
		t.Errorf("error code = %q, want %q", code, ErrCodeNotFound)
	}
}
