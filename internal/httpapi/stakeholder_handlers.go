package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"reftracker.org/internal/auth"
	"reftracker.org/internal/stakeholder"
)

type createStakeholderResponse struct {
	ID string `json:"id"`
}

// createStakeholder checks stakeholder:create against the requested org, or
// the actor's org when none is given.
func (a *API) createStakeholder(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFromContext(r.Context())

	var req createStakeholderRequest
	if err := decodeJSON(r, &req); err != nil {
		a.handleError(w, r, err)
		return
	}
	if err := a.validateBody(&req); err != nil {
		a.handleError(w, r, err)
		return
	}

	scope := auth.Scope{OrgID: actor.OrgID}
	if req.OrgID != nil {
		scope.OrgID = *req.OrgID
	}
	if !authorize(w, actor, auth.PermStakeholderCreate, scope) {
		return
	}

	id, err := a.lifecycle.Create(r.Context(), stakeholder.CreateInput{
		Type:    stakeholder.Type(req.Type),
		Name:    req.Name,
		OwnerID: valueOf(req.OwnerID),
		OrgID:   valueOf(req.OrgID),
		Meta:    req.Meta,
	}, *actor)
	if err != nil {
		a.handleError(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/stakeholders/"+id)
	writeJSON(w, http.StatusCreated, createStakeholderResponse{ID: id})
}

func (a *API) updateStakeholderStatus(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFromContext(r.Context())

	var req updateStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		a.handleError(w, r, err)
		return
	}
	if err := a.validateBody(&req); err != nil {
		a.handleError(w, r, err)
		return
	}
	if !authorize(w, actor, auth.PermStakeholderUpdateStatus, auth.Scope{OrgID: actor.OrgID}) {
		return
	}

	err := a.lifecycle.UpdateStatus(r.Context(), stakeholder.UpdateStatusInput{
		StakeholderID: chi.URLParam(r, "id"),
		Status:        stakeholder.Status(req.Status),
		Reason:        valueOf(req.Reason),
	}, *actor)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) getStakeholder(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFromContext(r.Context())
	row, err := a.lifecycle.Get(r.Context(), chi.URLParam(r, "id"), *actor)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, row)
}
