package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/soaringjerry/stsportal/internal/models"
	"github.com/soaringjerry/stsportal/internal/services"
)

type teamRequest struct {
	AgencyName          string `json:"agency_name" validate:"required"`
	TeamName            string `json:"team_name"`
	PrimaryContactName  string `json:"primary_contact_name"`
	PrimaryContactEmail string `json:"primary_contact_email" validate:"omitempty,email"`
	EstimatedStaffCount *int   `json:"estimated_staff_count" validate:"omitempty,min=0"`
}

type archiveRequest struct {
	CollaborativeID string `json:"collaborative_id" validate:"required"`
	Timepoint       string `json:"timepoint" validate:"required"`
	TeamID          string `json:"team_id,omitempty"`
}

type cohortQuery struct {
	CollaborativeID string `json:"collaborative_id" validate:"required"`
	Timepoint       string `json:"timepoint" validate:"required"`
	TeamID          string `json:"team_id"`
}

// selector builds a cohort selector. Timepoint aliases are resolved here;
// anything unrecognised is passed on for the service to reject.
func (q cohortQuery) selector() services.CohortSelector {
	tp, ok := models.ParseTimepoint(q.Timepoint)
	if !ok {
		tp = models.Timepoint(q.Timepoint)
	}
	return services.CohortSelector{CollaborativeID: q.CollaborativeID, Timepoint: tp, TeamID: q.TeamID}
}

func readCohortQuery(r *http.Request) (services.CohortSelector, error) {
	q := r.URL.Query()
	cq := cohortQuery{CollaborativeID: q.Get("collaborative_id"), Timepoint: q.Get("timepoint"), TeamID: q.Get("team_id")}
	if err := check(cq); err != nil {
		return services.CohortSelector{}, err
	}
	return cq.selector(), nil
}

// GET /api/admin/collaboratives?status=active
func (rt *Router) handleListCollaboratives(w http.ResponseWriter, r *http.Request) {
	list, err := rt.svc.Collaboratives.List(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"collaboratives": list})
}

// POST /api/admin/collaboratives
func (rt *Router) handleCreateCollaborative(w http.ResponseWriter, r *http.Request) {
	var in services.CollaborativeInput
	if err := decode(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := rt.svc.Collaboratives.Create(r.Context(), actor(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// GET /api/admin/collaboratives/{id}
func (rt *Router) handleGetCollaborative(w http.ResponseWriter, r *http.Request) {
	c, err := rt.svc.Collaboratives.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// PUT /api/admin/collaboratives/{id}
func (rt *Router) handleUpdateCollaborative(w http.ResponseWriter, r *http.Request) {
	var in services.CollaborativeInput
	if err := decode(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := rt.svc.Collaboratives.Update(r.Context(), actor(r), r.PathValue("id"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// GET /api/admin/collaboratives/{id}/teams
func (rt *Router) handleListTeams(w http.ResponseWriter, r *http.Request) {
	teams, err := rt.svc.Teams.List(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"teams": teams})
}

// POST /api/admin/collaboratives/{id}/teams issues the team's four codes.
func (rt *Router) handleAddTeam(w http.ResponseWriter, r *http.Request) {
	var req teamRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	t, err := rt.svc.Teams.Add(r.Context(), actor(r), r.PathValue("id"), services.TeamInput(req))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// PUT /api/admin/teams/{id}
func (rt *Router) handleUpdateTeam(w http.ResponseWriter, r *http.Request) {
	var req teamRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	t, err := rt.svc.Teams.Update(r.Context(), actor(r), r.PathValue("id"), services.TeamInput(req))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// PUT /api/admin/codes/{id}
func (rt *Router) handleUpdateCode(w http.ResponseWriter, r *http.Request) {
	var in services.AccessCodeUpdate
	if err := decode(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	ac, err := rt.svc.Teams.UpdateCode(r.Context(), actor(r), r.PathValue("id"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ac)
}

// GET /api/admin/completion?collaborative_id=&timepoint=
func (rt *Router) handleCompletion(w http.ResponseWriter, r *http.Request) {
	sel, err := readCohortQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rep, err := rt.svc.Completion.Report(r.Context(), sel.CollaborativeID, sel.Timepoint)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// GET /api/admin/summary?collaborative_id=&timepoint=&team_id=&seq=
func (rt *Router) handleSummary(w http.ResponseWriter, r *http.Request) {
	sel, err := readCohortQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var seq *int64
	if raw := r.URL.Query().Get("seq"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, r, services.NewInvalidError("seq must be an integer"))
			return
		}
		seq = &n
	}
	sum, err := rt.svc.Analytics.Summary(r.Context(), sel, seq)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// GET /api/admin/dashboard?collaborative_id=&team_id=
func (rt *Router) handleDashboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	out, err := rt.svc.Analytics.Dashboard(r.Context(), q.Get("collaborative_id"), q.Get("team_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"timepoints": out})
}

// GET /api/admin/export?collaborative_id=&timepoint=&team_id=&format=scores|items
func (rt *Router) handleExport(w http.ResponseWriter, r *http.Request) {
	sel, err := readCohortQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var res *services.ExportResult
	switch format := r.URL.Query().Get("format"); format {
	case "", "scores":
		res, err = rt.svc.Export.CohortScoresCSV(r.Context(), sel)
	case "items", "long":
		res, err = rt.svc.Export.CohortItemsCSV(r.Context(), sel)
	default:
		err = services.NewInvalidError(fmt.Sprintf("unsupported format %q", format))
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", res.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.Filename))
	_, _ = w.Write(res.Data)
}

// POST /api/admin/exports stores the score export in the archive bucket.
func (rt *Router) handleArchive(w http.ResponseWriter, r *http.Request) {
	var req archiveRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	sel := cohortQuery(req).selector()
	res, err := rt.svc.Export.Archive(r.Context(), actor(r), sel)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}
