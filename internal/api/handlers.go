package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"gocause/internal/errors"
	"gocause/internal/service"
)

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *App) handleBuild(w http.ResponseWriter, r *http.Request) {
	var req service.BuildRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, a.svc.Build(r.Context(), req))
}

func (a *App) handleListModels(w http.ResponseWriter, r *http.Request) {
	models, err := a.svc.ListModels(r.Context())
	if err != nil {
		a.log.Error("list models: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorBody(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"models": models})
}

func (a *App) handleDeleteModel(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := a.svc.DeleteModel(r.Context(), name); err != nil {
		status := http.StatusInternalServerError
		if errors.HasCode(err, errors.CodeNotFound) {
			status = http.StatusNotFound
		}
		writeJSON(w, status, errorBody(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": name})
}

func (a *App) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req service.EvaluateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.ModelName = chi.URLParam(r, "name")
	writeJSON(w, http.StatusOK, a.svc.Evaluate(r.Context(), req))
}

func (a *App) handleIntervention(w http.ResponseWriter, r *http.Request) {
	var req service.InterventionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, a.svc.Intervene(r.Context(), req))
}

func (a *App) handleCounterfactual(w http.ResponseWriter, r *http.Request) {
	var req service.CounterfactualRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, a.svc.CounterfactualQuery(r.Context(), req))
}

func (a *App) handleArrowStrength(w http.ResponseWriter, r *http.Request) {
	var req service.ArrowStrengthRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, a.svc.ArrowStrength(r.Context(), req))
}

func (a *App) handleIntrinsicInfluence(w http.ResponseWriter, r *http.Request) {
	var req service.IntrinsicInfluenceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, a.svc.IntrinsicInfluence(r.Context(), req))
}

func (a *App) handleAnomalyAttribution(w http.ResponseWriter, r *http.Request) {
	var req service.AnomalyAttributionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, a.svc.AttributeAnomalies(r.Context(), req))
}

func (a *App) handleFalsify(w http.ResponseWriter, r *http.Request) {
	var req service.FalsifyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, a.svc.Falsify(r.Context(), req))
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(errors.InvalidInput("malformed request body: "+err.Error())))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func errorBody(err error) map[string]string {
	return map[string]string{
		"status":     "error",
		"message":    err.Error(),
		"error_code": errors.GetCode(err),
	}
}
