package content

import (
	"encoding/json"
	"net/http"

	"github.com/aboudjelida/aimenboudev/internal/telemetry/tracing"
	"github.com/aboudjelida/aimenboudev/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

type Handler struct {
	manager *Manager
}

func NewHandler(manager *Manager) *Handler {
	return &Handler{
		manager: manager,
	}
}

func (handler *Handler) SetupRoutes(router *mux.Router) {
	router.HandleFunc("/content/profile", handler.handleGetProfile).Methods("GET").Name("profile")
	router.HandleFunc("/projects", handler.handleGetProjects).Methods("GET").Name("projects")
	router.HandleFunc("/projects/{id}", handler.handleGetProject).Methods("GET").Name("project")
}

func (handler *Handler) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.GlobalTracer.Start(r.Context(), "contentHandler.profile")
	defer span.End()

	profileJson, err := json.Marshal(handler.manager.Profile())
	if err != nil {
		log.Errorf("marshal profile error: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, profileJson)
}

// handleGetProjects lists projects, newest completed first. The filters
// mirror the frontend hooks: ?featured=true, ?category=, ?tech=; the
// first one present wins.
func (handler *Handler) handleGetProjects(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.GlobalTracer.Start(r.Context(), "contentHandler.projects")
	defer span.End()

	var projects []Project
	query := r.URL.Query()
	switch {
	case query.Get("featured") == "true":
		projects = handler.manager.FeaturedProjects()
	case query.Get("category") != "":
		projects = handler.manager.ProjectsByCategory(query.Get("category"))
	case query.Get("tech") != "":
		projects = handler.manager.ProjectsByTechnology(query.Get("tech"))
	default:
		projects = handler.manager.AllProjects()
	}

	if len(projects) == 0 {
		pkg.WriteJSONResponseOK(w, "[]")
		return
	}

	projectsJson, err := json.Marshal(projects)
	if err != nil {
		log.Errorf("marshal projects error: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, projectsJson)
}

func (handler *Handler) handleGetProject(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.GlobalTracer.Start(r.Context(), "contentHandler.project")
	defer span.End()

	vars := mux.Vars(r)
	id := vars["id"]

	project, ok := handler.manager.ProjectByID(id)
	if !ok {
		http.Error(w, "project not found", http.StatusNotFound)
		return
	}

	pkg.SendJsonResponse(w, http.StatusOK, project)
}
