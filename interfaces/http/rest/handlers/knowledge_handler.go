package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"graphsync/application/services"
	"graphsync/domain/core/valueobjects"
	"graphsync/pkg/auth"
	pkgerrors "graphsync/pkg/errors"
	"graphsync/pkg/utils"
)

// KnowledgeHandler handles workspace requests of the authenticated author
type KnowledgeHandler struct {
	registry *services.Registry
	errors   *pkgerrors.ErrorHandler
	logger   *zap.Logger
}

// NewKnowledgeHandler creates a new knowledge handler
func NewKnowledgeHandler(registry *services.Registry, errorHandler *pkgerrors.ErrorHandler, logger *zap.Logger) *KnowledgeHandler {
	return &KnowledgeHandler{
		registry: registry,
		errors:   errorHandler,
		logger:   logger,
	}
}

func (h *KnowledgeHandler) workspace(w http.ResponseWriter, r *http.Request) (*services.KnowledgeService, bool) {
	author, err := auth.GetAuthorFromContext(r.Context())
	if err != nil {
		h.errors.Handle(w, r, pkgerrors.NewUnauthorizedError(""))
		return nil, false
	}
	return h.registry.Get(author), true
}

// decode reads and validates a JSON body
func (h *KnowledgeHandler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.errors.Handle(w, r, pkgerrors.NewValidationError("Invalid request body: "+err.Error()).WithCause(err))
		return false
	}
	if err := utils.ValidateStruct(dst); err != nil {
		h.errors.Handle(w, r, err)
		return false
	}
	return true
}

func repositoryID(r *http.Request) valueobjects.ID {
	return valueobjects.ID(chi.URLParam(r, "repositoryID"))
}

// CreateRepository handles POST /repositories
func (h *KnowledgeHandler) CreateRepository(w http.ResponseWriter, r *http.Request) {
	var req CreateRepositoryRequest
	if !h.decode(w, r, &req) {
		return
	}
	svc, ok := h.workspace(w, r)
	if !ok {
		return
	}

	repo, err := svc.CreateRepository(r.Context(), req.Node.toNode(), valueobjects.ID(req.ID))
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{
		"id":     repo.ID.String(),
		"branch": valueobjects.DefaultBranchName,
	})
}

// DeleteRepository handles DELETE /repositories/{repositoryID}
func (h *KnowledgeHandler) DeleteRepository(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.workspace(w, r)
	if !ok {
		return
	}
	if err := svc.DeleteRepository(r.Context(), repositoryID(r)); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetRepository handles GET /repositories/{repositoryID}?branch=&author=
func (h *KnowledgeHandler) GetRepository(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.workspace(w, r)
	if !ok {
		return
	}

	var path *valueobjects.BranchPath
	q := r.URL.Query()
	if name := q.Get("branch"); name != "" {
		p := valueobjects.LocalBranch(name)
		if author := q.Get("author"); author != "" {
			p = valueobjects.RemoteBranch(valueobjects.AuthorID(author), name)
		}
		path = &p
	}

	id := repositoryID(r)
	node, resolved, err := svc.Resolve(r.Context(), id, path)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, ResolveResponse{
		RepositoryID: id.String(),
		Branch:       resolved.String(),
		Node:         nodeToDTO(node),
	})
}

// GetDefaultBranch handles GET /repositories/{repositoryID}/default-branch
func (h *KnowledgeHandler) GetDefaultBranch(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.workspace(w, r)
	if !ok {
		return
	}
	path, err := svc.DefaultBranch(r.Context(), repositoryID(r))
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"branch": path.String()})
}

// StageNode handles PUT /repositories/{repositoryID}/branches/{branch}/staged
func (h *KnowledgeHandler) StageNode(w http.ResponseWriter, r *http.Request) {
	var req NodeDTO
	if !h.decode(w, r, &req) {
		return
	}
	svc, ok := h.workspace(w, r)
	if !ok {
		return
	}
	if err := svc.Stage(r.Context(), repositoryID(r), chi.URLParam(r, "branch"), req.toNode()); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CommitAll handles POST /commit
func (h *KnowledgeHandler) CommitAll(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.workspace(w, r)
	if !ok {
		return
	}
	n, err := svc.CommitAll(r.Context())
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"committed": n})
}

// GetDivergence handles GET /repositories/{repositoryID}/divergence?from=&to=
func (h *KnowledgeHandler) GetDivergence(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := valueobjects.ParseBranchPath(q.Get("from"))
	if err != nil {
		h.errors.Handle(w, r, pkgerrors.NewValidationError("from: "+err.Error()))
		return
	}
	to, err := valueobjects.ParseBranchPath(q.Get("to"))
	if err != nil {
		h.errors.Handle(w, r, pkgerrors.NewValidationError("to: "+err.Error()))
		return
	}
	svc, ok := h.workspace(w, r)
	if !ok {
		return
	}

	desc, err := svc.Divergence(r.Context(), repositoryID(r), from, to)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"from":       from.String(),
		"to":         to.String(),
		"divergence": desc,
	})
}

// branchAction decodes a BranchRequest and runs action with the parsed path
func (h *KnowledgeHandler) branchAction(w http.ResponseWriter, r *http.Request, action func(*services.KnowledgeService, valueobjects.BranchPath) (valueobjects.BranchPath, error)) {
	var req BranchRequest
	if !h.decode(w, r, &req) {
		return
	}
	path, _ := valueobjects.ParseBranchPath(req.Branch)
	svc, ok := h.workspace(w, r)
	if !ok {
		return
	}
	result, err := action(svc, path)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"branch": result.String()})
}

// Checkout handles POST /repositories/{repositoryID}/checkout
func (h *KnowledgeHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	h.branchAction(w, r, func(svc *services.KnowledgeService, path valueobjects.BranchPath) (valueobjects.BranchPath, error) {
		return svc.Checkout(r.Context(), repositoryID(r), path)
	})
}

// Merge handles POST /repositories/{repositoryID}/merge
func (h *KnowledgeHandler) Merge(w http.ResponseWriter, r *http.Request) {
	h.branchAction(w, r, func(svc *services.KnowledgeService, path valueobjects.BranchPath) (valueobjects.BranchPath, error) {
		return svc.Merge(r.Context(), repositoryID(r), path)
	})
}

// SetWorkspace handles PUT /workspace
func (h *KnowledgeHandler) SetWorkspace(w http.ResponseWriter, r *http.Request) {
	var req WorkspaceRequest
	if !h.decode(w, r, &req) {
		return
	}
	svc, ok := h.workspace(w, r)
	if !ok {
		return
	}
	if err := svc.SetActiveWorkspace(r.Context(), valueobjects.ID(req.RepositoryID)); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PutView handles PUT /views/{key}
func (h *KnowledgeHandler) PutView(w http.ResponseWriter, r *http.Request) {
	var req ViewDTO
	if !h.decode(w, r, &req) {
		return
	}
	svc, ok := h.workspace(w, r)
	if !ok {
		return
	}
	if err := svc.SetView(r.Context(), chi.URLParam(r, "key"), req.toView()); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteView handles DELETE /views/{key}
func (h *KnowledgeHandler) DeleteView(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.workspace(w, r)
	if !ok {
		return
	}
	if err := svc.DeleteView(r.Context(), chi.URLParam(r, "key")); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddContact handles POST /contacts
func (h *KnowledgeHandler) AddContact(w http.ResponseWriter, r *http.Request) {
	var req ContactRequest
	if !h.decode(w, r, &req) {
		return
	}
	svc, ok := h.workspace(w, r)
	if !ok {
		return
	}
	if err := svc.AddContact(r.Context(), valueobjects.AuthorID(req.Author)); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListContacts handles GET /contacts
func (h *KnowledgeHandler) ListContacts(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.workspace(w, r)
	if !ok {
		return
	}
	contacts, err := svc.Contacts(r.Context())
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	out := make([]string, 0, len(contacts))
	for _, c := range contacts {
		out = append(out, c.String())
	}
	respondJSON(w, http.StatusOK, map[string][]string{"contacts": out})
}

// Publish handles POST /sync/publish
func (h *KnowledgeHandler) Publish(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.workspace(w, r)
	if !ok {
		return
	}
	n, err := svc.Publish(r.Context())
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"events": n})
}

// Pull handles POST /sync/pull
func (h *KnowledgeHandler) Pull(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.workspace(w, r)
	if !ok {
		return
	}
	if err := svc.Sync(r.Context()); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.GetKnowledge(w, r)
}

// GetKnowledge handles GET /knowledge
func (h *KnowledgeHandler) GetKnowledge(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.workspace(w, r)
	if !ok {
		return
	}
	view, err := svc.View(r.Context())
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, knowledgeToResponse(view))
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
