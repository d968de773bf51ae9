package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/ayusman/fingerspell/internal/letter"
	"github.com/ayusman/fingerspell/internal/plugin"
	"github.com/ayusman/fingerspell/internal/store"
)

const bindingsPrefix = "/api/bindings"

// PluginCatalog looks up discovered plugins.
type PluginCatalog interface {
	Get(name string) (*plugin.Plugin, error)
	List() []*plugin.Plugin
}

// BindingHandler serves the bindings that connect committed letters to
// plugin actions. An empty label binds every commit.
type BindingHandler struct {
	store   *store.Store
	plugins PluginCatalog
}

// NewBindingHandler creates a BindingHandler. When plugins is nil, plugin
// and action names are not checked.
func NewBindingHandler(s *store.Store, plugins PluginCatalog) *BindingHandler {
	return &BindingHandler{store: s, plugins: plugins}
}

// ServeHTTP routes binding requests.
func (h *BindingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r.URL.Path, bindingsPrefix)

	switch len(parts) {
	case 0:
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodPost:
			h.create(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	case 1:
		switch r.Method {
		case http.MethodGet:
			h.get(w, r, parts[0])
		case http.MethodPut:
			h.update(w, r, parts[0])
		case http.MethodDelete:
			h.delete(w, r, parts[0])
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

type createBindingRequest struct {
	Label      string          `json:"label"`
	PluginName string          `json:"plugin_name"`
	ActionName string          `json:"action_name"`
	Config     json.RawMessage `json:"config,omitempty"`
	Enabled    *bool           `json:"enabled,omitempty"`
}

type updateBindingRequest struct {
	Label      *string         `json:"label,omitempty"`
	PluginName string          `json:"plugin_name,omitempty"`
	ActionName string          `json:"action_name,omitempty"`
	Config     json.RawMessage `json:"config,omitempty"`
	Enabled    *bool           `json:"enabled,omitempty"`
}

type bindingResponse struct {
	ID         string          `json:"id"`
	Label      string          `json:"label"`
	PluginName string          `json:"plugin_name"`
	ActionName string          `json:"action_name"`
	Config     json.RawMessage `json:"config"`
	Enabled    bool            `json:"enabled"`
	CreatedAt  string          `json:"created_at"`
}

type listBindingsResponse struct {
	Bindings []bindingResponse `json:"bindings"`
}

func toBindingResponse(b *store.Binding) bindingResponse {
	return bindingResponse{
		ID:         b.ID,
		Label:      b.Label,
		PluginName: b.PluginName,
		ActionName: b.ActionName,
		Config:     b.Config,
		Enabled:    b.Enabled,
		CreatedAt:  formatTime(b.CreatedAt),
	}
}

// normalizeLabel accepts an empty label or any classifier label.
func normalizeLabel(s string) (string, error) {
	if s == "" {
		return "", nil
	}
	l, err := letter.Parse(s)
	if err != nil {
		return "", err
	}
	return string(l), nil
}

// checkTarget verifies the plugin exists and offers the action.
func (h *BindingHandler) checkTarget(pluginName, action string) string {
	if h.plugins == nil {
		return ""
	}
	p, err := h.plugins.Get(pluginName)
	if err != nil {
		return "Unknown plugin"
	}
	if !p.Manifest.Supports(action) {
		return "Plugin does not support this action"
	}
	return ""
}

func (h *BindingHandler) list(w http.ResponseWriter, r *http.Request) {
	bindings, err := h.store.Bindings().List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list bindings")
		return
	}

	response := listBindingsResponse{Bindings: make([]bindingResponse, 0, len(bindings))}
	for _, b := range bindings {
		response.Bindings = append(response.Bindings, toBindingResponse(b))
	}
	writeJSON(w, http.StatusOK, response)
}

func (h *BindingHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	b, err := h.store.Bindings().GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Binding not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get binding")
		return
	}
	writeJSON(w, http.StatusOK, toBindingResponse(b))
}

func (h *BindingHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createBindingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.PluginName == "" || req.ActionName == "" {
		writeError(w, http.StatusBadRequest, "plugin_name and action_name are required")
		return
	}
	label, err := normalizeLabel(req.Label)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Unknown label")
		return
	}
	if msg := h.checkTarget(req.PluginName, req.ActionName); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	if len(req.Config) > 0 && !json.Valid(req.Config) {
		writeError(w, http.StatusBadRequest, "config must be JSON")
		return
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	b := &store.Binding{
		ID:         uuid.New().String(),
		Label:      label,
		PluginName: req.PluginName,
		ActionName: req.ActionName,
		Config:     req.Config,
		Enabled:    enabled,
	}
	if err := h.store.Bindings().Create(r.Context(), b); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create binding")
		return
	}
	if len(b.Config) == 0 {
		b.Config = json.RawMessage("{}")
	}
	writeJSON(w, http.StatusCreated, toBindingResponse(b))
}

func (h *BindingHandler) update(w http.ResponseWriter, r *http.Request, id string) {
	b, err := h.store.Bindings().GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Binding not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get binding")
		return
	}

	var req updateBindingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.Label != nil {
		label, err := normalizeLabel(*req.Label)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Unknown label")
			return
		}
		b.Label = label
	}
	if req.PluginName != "" {
		b.PluginName = req.PluginName
	}
	if req.ActionName != "" {
		b.ActionName = req.ActionName
	}
	if req.Config != nil {
		if !json.Valid(req.Config) {
			writeError(w, http.StatusBadRequest, "config must be JSON")
			return
		}
		b.Config = req.Config
	}
	if req.Enabled != nil {
		b.Enabled = *req.Enabled
	}
	if req.PluginName != "" || req.ActionName != "" {
		if msg := h.checkTarget(b.PluginName, b.ActionName); msg != "" {
			writeError(w, http.StatusBadRequest, msg)
			return
		}
	}

	if err := h.store.Bindings().Update(r.Context(), b); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update binding")
		return
	}
	writeJSON(w, http.StatusOK, toBindingResponse(b))
}

func (h *BindingHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.store.Bindings().Delete(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Binding not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete binding")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type pluginResponse struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Description string   `json:"description"`
	Actions     []string `json:"actions"`
}

// PluginsHandler lists the discovered plugins at GET /api/plugins.
func PluginsHandler(plugins PluginCatalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		response := struct {
			Plugins []pluginResponse `json:"plugins"`
		}{Plugins: []pluginResponse{}}
		if plugins != nil {
			for _, p := range plugins.List() {
				response.Plugins = append(response.Plugins, pluginResponse{
					Name:        p.Manifest.Name,
					Version:     p.Manifest.Version,
					Description: p.Manifest.Description,
					Actions:     p.Manifest.Actions,
				})
			}
		}
		writeJSON(w, http.StatusOK, response)
	}
}
