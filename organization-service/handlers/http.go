package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/draftea/organization-system/organization-service/application"
	"github.com/draftea/organization-system/organization-service/domain"
	"github.com/draftea/organization-system/shared/logging"
	"github.com/draftea/organization-system/shared/saga"
	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
)

// OperatorHeader carries the id of the user issuing a request
const OperatorHeader = "X-Operator-Id"

// OrganizationHandlers contains organization HTTP handlers
type OrganizationHandlers struct {
	createOrganization *application.CreateOrganization
	addUsers           *application.AddUsersToOrganization
	getOrganization    *application.GetOrganization
	getSaga            *application.GetSaga
}

// NewOrganizationHandlers creates new organization handlers
func NewOrganizationHandlers(
	createOrganization *application.CreateOrganization,
	addUsers *application.AddUsersToOrganization,
	getOrganization *application.GetOrganization,
	getSaga *application.GetSaga,
) *OrganizationHandlers {
	return &OrganizationHandlers{
		createOrganization: createOrganization,
		addUsers:           addUsers,
		getOrganization:    getOrganization,
		getSaga:            getSaga,
	}
}

// CreateOrganization starts a create organization job
func (h *OrganizationHandlers) CreateOrganization(w http.ResponseWriter, r *http.Request) {
	var cmd application.CreateOrganizationCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	cmd.OperatorID = r.Header.Get(OperatorHeader)

	response, err := h.createOrganization.Execute(r.Context(), &cmd)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, response)
}

// AddUsers starts an add users job for the organization in the path
func (h *OrganizationHandlers) AddUsers(w http.ResponseWriter, r *http.Request) {
	var cmd application.AddUsersCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	cmd.OperatorID = r.Header.Get(OperatorHeader)
	cmd.OrganizationID = chi.URLParam(r, "id")

	response, err := h.addUsers.Execute(r.Context(), &cmd)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, response)
}

// GetOrganization handles organization retrieval requests
func (h *OrganizationHandlers) GetOrganization(w http.ResponseWriter, r *http.Request) {
	response, err := h.getOrganization.Execute(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response)
}

// ListOrganizations handles organization listing requests. ids fetches a set
// of organizations in one call.
func (h *OrganizationHandlers) ListOrganizations(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	query := &application.ListOrganizationsQuery{
		IDs:     listParam(values["ids"]),
		OwnerID: values.Get("owner_id"),
		Plans:   listParam(values["plan"]),
		UserID:  values.Get("user_id"),
	}

	var err error
	if query.Offset, err = intParam(values.Get("offset")); err != nil {
		http.Error(w, "Invalid offset", http.StatusBadRequest)
		return
	}
	if query.Limit, err = intParam(values.Get("limit")); err != nil {
		http.Error(w, "Invalid limit", http.StatusBadRequest)
		return
	}

	response, err := h.getOrganization.List(r.Context(), query)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response)
}

// GetSaga handles job status requests
func (h *OrganizationHandlers) GetSaga(w http.ResponseWriter, r *http.Request) {
	response, err := h.getSaga.Execute(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response)
}

// GetSagaEvents handles job lifecycle history requests
func (h *OrganizationHandlers) GetSagaEvents(w http.ResponseWriter, r *http.Request) {
	response, err := h.getSaga.Events(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response)
}

// RegisterRoutes registers organization routes
func (h *OrganizationHandlers) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/organizations", func(r chi.Router) {
			r.Get("/", h.ListOrganizations)
			r.Post("/", h.CreateOrganization)
			r.Get("/{id}", h.GetOrganization)
			r.Post("/{id}/users", h.AddUsers)
		})
		r.Route("/sagas/{id}", func(r chi.Router) {
			r.Get("/", h.GetSaga)
			r.Get("/events", h.GetSagaEvents)
		})
	})
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, application.ErrInvalidRequest):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrOrganizationNotFound), errors.Is(err, saga.ErrInstanceNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		logging.FromContext(r.Context()).WithError(err).Error("request failed")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// listParam flattens repeated and comma separated query values
func listParam(values []string) []string {
	var list []string
	for _, value := range values {
		for _, v := range strings.Split(value, ",") {
			if v = strings.TrimSpace(v); v != "" {
				list = append(list, v)
			}
		}
	}
	return list
}

func intParam(value string) (int, error) {
	if value == "" {
		return 0, nil
	}
	return strconv.Atoi(value)
}
