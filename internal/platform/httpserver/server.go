package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	userservice "cratewatch/contexts/identity/user-service"
	usererrors "cratewatch/contexts/identity/user-service/domain/errors"
	importservice "cratewatch/contexts/integrations/import-service"
	importerrors "cratewatch/contexts/integrations/import-service/domain/errors"
	providergateway "cratewatch/contexts/integrations/provider-gateway"
	gatewayerrors "cratewatch/contexts/integrations/provider-gateway/domain/errors"
	listingservice "cratewatch/contexts/marketplace/listing-service"
	listingerrors "cratewatch/contexts/marketplace/listing-service/domain/errors"
	notificationservice "cratewatch/contexts/notifications/notification-service"
	notiferrors "cratewatch/contexts/notifications/notification-service/domain/errors"
	releaseservice "cratewatch/contexts/watching/release-service"
	releaseerrors "cratewatch/contexts/watching/release-service/domain/errors"
	ruleservice "cratewatch/contexts/watching/rule-service"
	ruleerrors "cratewatch/contexts/watching/rule-service/domain/errors"
	"cratewatch/internal/platform/messaging"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "cratewatch/internal/platform/httpserver/docs"
)

type Server struct {
	mux    *http.ServeMux
	logger *slog.Logger
	addr   string

	users         userservice.Module
	rules         ruleservice.Module
	releases      releaseservice.Module
	listings      listingservice.Module
	imports       importservice.Module
	notifications notificationservice.Module
	gateway       providergateway.Module
	stream        *messaging.Broker

	ebayCampaignID string
	importCooldown int
}

// Options carries everything the server needs: one module per context plus
// the stream broker and the metrics registry.
type Options struct {
	Users          userservice.Module
	Rules          ruleservice.Module
	Releases       releaseservice.Module
	Listings       listingservice.Module
	Imports        importservice.Module
	Notifications  notificationservice.Module
	Gateway        providergateway.Module
	Stream         *messaging.Broker
	Registry       *prometheus.Registry
	EbayCampaignID string
	ImportCooldown int
	Logger         *slog.Logger
	Addr           string
}

func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Addr == "" {
		opts.Addr = ":8080"
	}

	s := &Server{
		mux:            http.NewServeMux(),
		logger:         opts.Logger,
		addr:           opts.Addr,
		users:          opts.Users,
		rules:          opts.Rules,
		releases:       opts.Releases,
		listings:       opts.Listings,
		imports:        opts.Imports,
		notifications:  opts.Notifications,
		gateway:        opts.Gateway,
		stream:         opts.Stream,
		ebayCampaignID: opts.EbayCampaignID,
		importCooldown: opts.ImportCooldown,
	}
	s.registerRoutes(opts.Registry)
	return s
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	return http.ListenAndServe(s.addr, s.mux)
}

// Handler exposes the mux for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) registerRoutes(registry *prometheus.Registry) {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
	if registry != nil {
		s.mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}
	s.mux.HandleFunc("GET /healthz", s.handleHealth)

	s.mux.HandleFunc("POST /v1/users", s.handleCreateUser)
	s.mux.HandleFunc("GET /v1/users/me", s.handleGetMe)
	s.mux.HandleFunc("PATCH /v1/users/me", s.handleUpdateMe)
	s.mux.HandleFunc("POST /v1/users/me/deactivate", s.handleDeactivateMe)

	s.mux.HandleFunc("POST /v1/rules", s.handleCreateRule)
	s.mux.HandleFunc("GET /v1/rules", s.handleListRules)
	s.mux.HandleFunc("GET /v1/rules/{rule_id}", s.handleGetRule)
	s.mux.HandleFunc("PATCH /v1/rules/{rule_id}", s.handleUpdateRule)
	s.mux.HandleFunc("DELETE /v1/rules/{rule_id}", s.handleDeleteRule)
	s.mux.HandleFunc("POST /v1/rules/{rule_id}/enable", s.handleEnableRule)
	s.mux.HandleFunc("POST /v1/rules/{rule_id}/disable", s.handleDisableRule)
	s.mux.HandleFunc("GET /v1/rules/{rule_id}/matches", s.handleListRuleMatches)

	s.mux.HandleFunc("POST /v1/releases", s.handleCreateRelease)
	s.mux.HandleFunc("GET /v1/releases", s.handleListReleases)
	s.mux.HandleFunc("GET /v1/releases/{watch_release_id}", s.handleGetRelease)
	s.mux.HandleFunc("PATCH /v1/releases/{watch_release_id}", s.handleUpdateRelease)
	s.mux.HandleFunc("DELETE /v1/releases/{watch_release_id}", s.handleDeleteRelease)
	s.mux.HandleFunc("POST /v1/releases/{watch_release_id}/enable", s.handleEnableRelease)
	s.mux.HandleFunc("POST /v1/releases/{watch_release_id}/disable", s.handleDisableRelease)

	s.mux.HandleFunc("GET /v1/listings/{listing_id}", s.handleGetListing)
	s.mux.HandleFunc("GET /v1/matches", s.handleListMatches)
	s.mux.HandleFunc("GET /outbound/listings/{listing_id}", s.handleOutboundClick)

	s.mux.HandleFunc("POST /v1/accounts/links", s.handleLinkAccount)
	s.mux.HandleFunc("POST /v1/imports", s.handleStartImport)
	s.mux.HandleFunc("GET /v1/imports", s.handleListImports)
	s.mux.HandleFunc("GET /v1/imports/{job_id}", s.handleGetImport)

	s.mux.HandleFunc("GET /v1/notifications", s.handleListNotifications)
	s.mux.HandleFunc("POST /v1/notifications/{notification_id}/read", s.handleMarkRead)
	s.mux.HandleFunc("PUT /v1/notifications/preferences", s.handleUpdatePreference)
	s.mux.HandleFunc("GET /v1/events", s.handleListEvents)
	s.mux.HandleFunc("GET /v1/stream", s.handleStream)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// requireUser reads the authenticated subject from the gateway-injected
// header. Empty means the request never passed the edge proxy.
func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return "", false
	}
	return userID, true
}

func parseLimit(r *http.Request, w http.ResponseWriter) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be an integer")
		return 0, false
	}
	return limit, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ruleerrors.ErrRuleNotFound):
		writeError(w, http.StatusNotFound, "rule_not_found", err.Error())
	case errors.Is(err, releaseerrors.ErrReleaseNotFound):
		writeError(w, http.StatusNotFound, "release_not_found", err.Error())
	case errors.Is(err, listingerrors.ErrListingNotFound):
		writeError(w, http.StatusNotFound, "listing_not_found", err.Error())
	case errors.Is(err, usererrors.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "user_not_found", err.Error())
	case errors.Is(err, importerrors.ErrJobNotFound):
		writeError(w, http.StatusNotFound, "import_job_not_found", err.Error())
	case errors.Is(err, notiferrors.ErrNotificationNotFound):
		writeError(w, http.StatusNotFound, "notification_not_found", err.Error())
	case errors.Is(err, gatewayerrors.ErrLinkNotFound):
		writeError(w, http.StatusNotFound, "account_link_not_found", err.Error())

	case errors.Is(err, releaseerrors.ErrDuplicateRelease):
		writeError(w, http.StatusConflict, "duplicate_release", err.Error())
	case errors.Is(err, usererrors.ErrDuplicateEmail):
		writeError(w, http.StatusConflict, "duplicate_email", err.Error())
	case errors.Is(err, importerrors.ErrJobTerminal):
		writeError(w, http.StatusConflict, "import_job_terminal", err.Error())
	case errors.Is(err, gatewayerrors.ErrTokenMissing),
		errors.Is(err, gatewayerrors.ErrTokenExpired):
		writeError(w, http.StatusConflict, "provider_token_unusable", err.Error())

	case errors.Is(err, gatewayerrors.ErrProviderDisabled):
		writeError(w, http.StatusServiceUnavailable, "provider_disabled", err.Error())

	case errors.Is(err, ruleerrors.ErrInvalidRuleName),
		errors.Is(err, ruleerrors.ErrInvalidPollInterval),
		errors.Is(err, ruleerrors.ErrNoSources),
		errors.Is(err, ruleerrors.ErrUnknownSource),
		errors.Is(err, ruleerrors.ErrBlankKeywords),
		errors.Is(err, ruleerrors.ErrNegativeMaxPrice),
		errors.Is(err, releaseerrors.ErrInvalidMatchMode),
		errors.Is(err, releaseerrors.ErrMissingReleaseID),
		errors.Is(err, releaseerrors.ErrMissingMasterID),
		errors.Is(err, releaseerrors.ErrInvalidTitle),
		errors.Is(err, releaseerrors.ErrNegativeTargetPrice),
		errors.Is(err, usererrors.ErrInvalidEmail),
		errors.Is(err, importerrors.ErrInvalidScope),
		errors.Is(err, listingerrors.ErrInvalidClick),
		errors.Is(err, listingerrors.ErrInvalidListing),
		errors.Is(err, notiferrors.ErrInvalidPreference),
		errors.Is(err, notiferrors.ErrInvalidEvent),
		errors.Is(err, gatewayerrors.ErrUnknownProvider),
		errors.Is(err, gatewayerrors.ErrInvalidSearchTerm):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())

	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}
