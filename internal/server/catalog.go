package server

import (
	"net/http"

	"github.com/and161185/servicecenter/internal/model"
	"github.com/go-chi/chi/v5"
)

func (srv *Server) ListServicesHandler(w http.ResponseWriter, r *http.Request) {
	services, err := srv.catalog.ListServices(r.Context())
	if err != nil {
		writeError(w, srv.deps.Logger, err)
		return
	}
	if services == nil {
		services = []model.Service{}
	}
	writeJSON(w, http.StatusOK, services)
}

func (srv *Server) GetServiceHandler(w http.ResponseWriter, r *http.Request) {
	svc, err := srv.catalog.GetService(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, srv.deps.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, svc)
}

func (srv *Server) CreateServiceHandler(w http.ResponseWriter, r *http.Request) {
	var in model.ServiceInput
	if err := decodeJSON(r, &in); err != nil {
		badRequest(w, "bad request")
		return
	}

	svc, err := srv.catalog.AddService(r.Context(), in)
	if err != nil {
		writeError(w, srv.deps.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, svc)
}

func (srv *Server) UpdateServiceHandler(w http.ResponseWriter, r *http.Request) {
	var patch model.ServicePatch
	if err := decodeJSON(r, &patch); err != nil {
		badRequest(w, "bad request")
		return
	}

	svc, err := srv.catalog.UpdateService(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		writeError(w, srv.deps.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, svc)
}

func (srv *Server) DeleteServiceHandler(w http.ResponseWriter, r *http.Request) {
	deleted, err := srv.catalog.DeleteService(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, srv.deps.Logger, err)
		return
	}
	if !deleted {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "service not found"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
