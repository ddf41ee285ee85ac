package api

import (
	"net/http"

	"github.com/soaringjerry/stsportal/internal/models"
	"github.com/soaringjerry/stsportal/internal/services"
	"github.com/soaringjerry/stsportal/internal/utils"
)

// codeRequest carries a team code. An empty code is left to the code
// validator so the participant sees its message.
type codeRequest struct {
	Code string `json:"code"`
}

type responsesRequest struct {
	Responses models.ItemResponses `json:"responses" validate:"required"`
}

// POST /api/codes/validate
func (rt *Router) handleValidateCode(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	v, err := rt.svc.Codes.Validate(r.Context(), req.Code)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// POST /api/sessions
func (rt *Router) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := rt.svc.Sessions.Start(r.Context(), req.Code)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// GET /api/sessions/{id}
func (rt *Router) handleSessionProgress(w http.ResponseWriter, r *http.Request) {
	p, err := rt.svc.Sessions.Progress(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// POST /api/sessions/{id}/demographics
func (rt *Router) handleSubmitDemographics(w http.ResponseWriter, r *http.Request) {
	var in services.DemographicsInput
	if err := decode(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := rt.svc.Sessions.SubmitDemographics(r.Context(), r.PathValue("id"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type submitFunc func(r *http.Request, id string, resp models.ItemResponses) (*services.SessionProgress, error)

func (rt *Router) submitScale(w http.ResponseWriter, r *http.Request, submit submitFunc) {
	var req responsesRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := submit(r, r.PathValue("id"), req.Responses)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// POST /api/sessions/{id}/stss
func (rt *Router) handleSubmitStss(w http.ResponseWriter, r *http.Request) {
	rt.submitScale(w, r, func(r *http.Request, id string, resp models.ItemResponses) (*services.SessionProgress, error) {
		return rt.svc.Sessions.SubmitStss(r.Context(), id, resp)
	})
}

// POST /api/sessions/{id}/proqol
func (rt *Router) handleSubmitProqol(w http.ResponseWriter, r *http.Request) {
	rt.submitScale(w, r, func(r *http.Request, id string, resp models.ItemResponses) (*services.SessionProgress, error) {
		return rt.svc.Sessions.SubmitProqol(r.Context(), id, resp)
	})
}

// POST /api/sessions/{id}/stsioa
func (rt *Router) handleSubmitStsioa(w http.ResponseWriter, r *http.Request) {
	rt.submitScale(w, r, func(r *http.Request, id string, resp models.ItemResponses) (*services.SessionProgress, error) {
		return rt.svc.Sessions.SubmitStsioa(r.Context(), id, resp)
	})
}

// GET /api/instruments/{key} returns item texts and response options.
func (rt *Router) handleInstrument(w http.ResponseWriter, r *http.Request) {
	c, ok := services.LookupCatalog(models.Instrument(r.PathValue("key")))
	if !ok {
		writeError(w, r, services.NewNotFoundError(utils.T(utils.MsgNotFound)))
		return
	}
	writeJSON(w, http.StatusOK, c)
}
