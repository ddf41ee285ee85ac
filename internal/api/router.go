package api

import (
	"net/http"
	"time"

	"github.com/soaringjerry/stsportal/internal/middleware"
	"github.com/soaringjerry/stsportal/internal/models"
	"github.com/soaringjerry/stsportal/internal/services"
	"github.com/soaringjerry/stsportal/internal/utils"
)

// Services bundles the domain services the handlers call.
type Services struct {
	Codes          *services.CodeService
	Sessions       *services.SessionService
	Collaboratives *services.CollaborativeService
	Teams          *services.TeamService
	Analytics      *services.AnalyticsService
	Completion     *services.CompletionService
	Auth           *services.AuthService
	Export         *services.ExportService
}

// NewServices wires every service onto one store. events and archive may
// be nil.
func NewServices(store Store, events services.EventPublisher, archive services.ArchiveSink, signer services.TokenSigner, tokenTTL time.Duration) *Services {
	if events == nil {
		events = services.NopPublisher{}
	}
	codes := services.NewCodeService(store)
	return &Services{
		Codes:          codes,
		Sessions:       services.NewSessionService(codes, store, events),
		Collaboratives: services.NewCollaborativeService(store),
		Teams:          services.NewTeamService(store),
		Analytics:      services.NewAnalyticsService(store),
		Completion:     services.NewCompletionService(store),
		Auth:           services.NewAuthService(store, signer, tokenTTL),
		Export:         services.NewExportService(store, archive),
	}
}

type BuildInfo struct {
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

type Router struct {
	svc   *Services
	store Store
	build BuildInfo
}

func NewRouter(store Store, svc *Services, build BuildInfo) *Router {
	return &Router{svc: svc, store: store, build: build}
}

func (rt *Router) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", rt.handleHealth)
	mux.HandleFunc("GET /version", rt.handleVersion)

	// participant flow, no account needed
	mux.HandleFunc("POST /api/codes/validate", rt.handleValidateCode)
	mux.HandleFunc("POST /api/sessions", rt.handleStartSession)
	mux.HandleFunc("GET /api/sessions/{id}", rt.handleSessionProgress)
	mux.HandleFunc("POST /api/sessions/{id}/demographics", rt.handleSubmitDemographics)
	mux.HandleFunc("POST /api/sessions/{id}/stss", rt.handleSubmitStss)
	mux.HandleFunc("POST /api/sessions/{id}/proqol", rt.handleSubmitProqol)
	mux.HandleFunc("POST /api/sessions/{id}/stsioa", rt.handleSubmitStsioa)
	mux.HandleFunc("GET /api/instruments/{key}", rt.handleInstrument)

	mux.HandleFunc("POST /api/auth/login", rt.handleLogin)
	mux.Handle("GET /api/auth/me", middleware.RequireAuth(http.HandlerFunc(rt.handleMe)))
	mux.Handle("POST /api/auth/logout", middleware.RequireAuth(http.HandlerFunc(rt.handleLogout)))

	authed := func(h http.HandlerFunc) http.Handler { return middleware.RequireAuth(h) }
	superAdmin := func(h http.HandlerFunc) http.Handler {
		return middleware.RequireRole(models.RoleSuperAdmin)(h)
	}
	mux.Handle("GET /api/admin/collaboratives", authed(rt.handleListCollaboratives))
	mux.Handle("POST /api/admin/collaboratives", superAdmin(rt.handleCreateCollaborative))
	mux.Handle("GET /api/admin/collaboratives/{id}", authed(rt.handleGetCollaborative))
	mux.Handle("PUT /api/admin/collaboratives/{id}", superAdmin(rt.handleUpdateCollaborative))
	mux.Handle("GET /api/admin/collaboratives/{id}/teams", authed(rt.handleListTeams))
	mux.Handle("POST /api/admin/collaboratives/{id}/teams", superAdmin(rt.handleAddTeam))
	mux.Handle("PUT /api/admin/teams/{id}", superAdmin(rt.handleUpdateTeam))
	mux.Handle("PUT /api/admin/codes/{id}", superAdmin(rt.handleUpdateCode))
	mux.Handle("GET /api/admin/completion", authed(rt.handleCompletion))
	mux.Handle("GET /api/admin/summary", authed(rt.handleSummary))
	mux.Handle("GET /api/admin/dashboard", authed(rt.handleDashboard))
	mux.Handle("GET /api/admin/export", authed(rt.handleExport))
	mux.Handle("POST /api/admin/exports", authed(rt.handleArchive))
	mux.Handle("POST /api/admin/users", superAdmin(rt.handleCreateUser))
}

func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := rt.store.Ping(r.Context()); err != nil {
		writeError(w, r, services.NewUnavailableError(utils.T(utils.MsgUnavailable)))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":         true,
		"name":       "STS Assessment Portal",
		"msg":        utils.T(utils.MsgHealthOK),
		"commit":     rt.build.Commit,
		"build_time": rt.build.BuildTime,
	})
}

func (rt *Router) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, rt.build)
}
