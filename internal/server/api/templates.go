package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/ayusman/fingerspell/internal/classifier"
	"github.com/ayusman/fingerspell/internal/letter"
	"github.com/ayusman/fingerspell/internal/store"
)

const templatesPrefix = "/api/templates"

// TemplateHandler serves letter templates and their training samples:
//
//	GET/POST          /api/templates
//	GET/PUT/DELETE    /api/templates/{id}
//	GET/POST/DELETE   /api/templates/{id}/samples
//	POST              /api/templates/{id}/train
type TemplateHandler struct {
	store    *store.Store
	reloader TemplateReloader
	log      *slog.Logger
}

// NewTemplateHandler creates a TemplateHandler. reloader may be nil.
func NewTemplateHandler(s *store.Store, reloader TemplateReloader, log *slog.Logger) *TemplateHandler {
	if log == nil {
		log = slog.Default()
	}
	return &TemplateHandler{store: s, reloader: reloader, log: log}
}

// ServeHTTP routes template requests.
func (h *TemplateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r.URL.Path, templatesPrefix)

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
		id := parts[0]
		switch r.Method {
		case http.MethodGet:
			h.get(w, r, id)
		case http.MethodPut:
			h.update(w, r, id)
		case http.MethodDelete:
			h.delete(w, r, id)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	case 2:
		id := parts[0]
		switch {
		case parts[1] == "samples" && r.Method == http.MethodGet:
			h.listSamples(w, r, id)
		case parts[1] == "samples" && r.Method == http.MethodPost:
			h.addSamples(w, r, id)
		case parts[1] == "samples" && r.Method == http.MethodDelete:
			h.deleteSamples(w, r, id)
		case parts[1] == "train" && r.Method == http.MethodPost:
			h.train(w, r, id)
		case parts[1] == "samples" || parts[1] == "train":
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		default:
			writeError(w, http.StatusNotFound, "Not found")
		}
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

type templateRequest struct {
	Label     string  `json:"label"`
	Tolerance float64 `json:"tolerance"`
}

type templateResponse struct {
	ID        string  `json:"id"`
	Label     string  `json:"label"`
	Tolerance float64 `json:"tolerance"`
	Samples   int     `json:"samples"`
	Trained   bool    `json:"trained"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
}

type listTemplatesResponse struct {
	Templates []templateResponse `json:"templates"`
}

type sampleResponse struct {
	ID          int64           `json:"id"`
	TemplateID  string          `json:"template_id"`
	SampleIndex int             `json:"sample_index"`
	Data        json.RawMessage `json:"data"`
	CreatedAt   string          `json:"created_at"`
}

type listSamplesResponse struct {
	Samples []sampleResponse `json:"samples"`
}

type addSamplesRequest struct {
	Samples []json.RawMessage `json:"samples"`
}

type addSamplesResponse struct {
	Added   int `json:"added"`
	Samples int `json:"samples"`
}

type trainResponse struct {
	ID        string `json:"id"`
	Label     string `json:"label"`
	Samples   int    `json:"samples"`
	Landmarks int    `json:"landmarks"`
}

func (h *TemplateHandler) toResponse(r *http.Request, t *store.Template) templateResponse {
	points, err := h.store.Templates().Landmarks(r.Context(), t.ID)
	if err != nil {
		h.log.Warn("failed to read landmarks", slog.String("template", t.ID), slog.Any("error", err))
	}
	return templateResponse{
		ID:        t.ID,
		Label:     t.Label,
		Tolerance: t.Tolerance,
		Samples:   t.Samples,
		Trained:   len(points) > 0,
		CreatedAt: formatTime(t.CreatedAt),
		UpdatedAt: formatTime(t.UpdatedAt),
	}
}

// reload pushes the stored templates to the running classifier.
func (h *TemplateHandler) reload(r *http.Request) {
	if h.reloader == nil {
		return
	}
	if err := h.reloader.LoadTemplates(r.Context()); err != nil {
		h.log.Error("failed to reload templates", slog.Any("error", err))
	}
}

// lookup loads a template or writes the matching error response.
func (h *TemplateHandler) lookup(w http.ResponseWriter, r *http.Request, id string) (*store.Template, bool) {
	t, err := h.store.Templates().GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Template not found")
			return nil, false
		}
		writeError(w, http.StatusInternalServerError, "Failed to get template")
		return nil, false
	}
	return t, true
}

// checkLabel parses label and verifies no other template uses it.
func (h *TemplateHandler) checkLabel(w http.ResponseWriter, r *http.Request, label, selfID string) (letter.Label, bool) {
	l, err := letter.Parse(label)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Unknown label")
		return letter.None, false
	}
	existing, err := h.store.Templates().GetByLabel(r.Context(), string(l))
	switch {
	case err == nil && existing.ID != selfID:
		writeError(w, http.StatusConflict, "A template for this label already exists")
		return letter.None, false
	case err != nil && !errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusInternalServerError, "Failed to check label")
		return letter.None, false
	}
	return l, true
}

func (h *TemplateHandler) list(w http.ResponseWriter, r *http.Request) {
	templates, err := h.store.Templates().List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list templates")
		return
	}

	response := listTemplatesResponse{Templates: make([]templateResponse, 0, len(templates))}
	for _, t := range templates {
		response.Templates = append(response.Templates, h.toResponse(r, t))
	}
	writeJSON(w, http.StatusOK, response)
}

func (h *TemplateHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	t, ok := h.lookup(w, r, id)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.toResponse(r, t))
}

func (h *TemplateHandler) create(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Label == "" {
		writeError(w, http.StatusBadRequest, "label is required")
		return
	}
	if req.Tolerance < 0 {
		writeError(w, http.StatusBadRequest, "tolerance must not be negative")
		return
	}
	l, ok := h.checkLabel(w, r, req.Label, "")
	if !ok {
		return
	}

	t := &store.Template{
		ID:        uuid.New().String(),
		Label:     string(l),
		Tolerance: req.Tolerance,
	}
	if err := h.store.Templates().Create(r.Context(), t); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create template")
		return
	}
	writeJSON(w, http.StatusCreated, h.toResponse(r, t))
}

func (h *TemplateHandler) update(w http.ResponseWriter, r *http.Request, id string) {
	t, ok := h.lookup(w, r, id)
	if !ok {
		return
	}

	var req templateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Label != "" {
		l, ok := h.checkLabel(w, r, req.Label, t.ID)
		if !ok {
			return
		}
		t.Label = string(l)
	}
	if req.Tolerance < 0 {
		writeError(w, http.StatusBadRequest, "tolerance must not be negative")
		return
	}
	if req.Tolerance > 0 {
		t.Tolerance = req.Tolerance
	}

	if err := h.store.Templates().Update(r.Context(), t); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update template")
		return
	}
	h.reload(r)
	writeJSON(w, http.StatusOK, h.toResponse(r, t))
}

func (h *TemplateHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.store.Templates().Delete(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Template not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete template")
		return
	}
	h.reload(r)
	w.WriteHeader(http.StatusNoContent)
}

func (h *TemplateHandler) listSamples(w http.ResponseWriter, r *http.Request, id string) {
	if _, ok := h.lookup(w, r, id); !ok {
		return
	}
	samples, err := h.store.Samples().ListByTemplate(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list samples")
		return
	}

	response := listSamplesResponse{Samples: make([]sampleResponse, 0, len(samples))}
	for _, s := range samples {
		response.Samples = append(response.Samples, sampleResponse{
			ID:          s.ID,
			TemplateID:  s.TemplateID,
			SampleIndex: s.SampleIndex,
			Data:        s.Data,
			CreatedAt:   formatTime(s.CreatedAt),
		})
	}
	writeJSON(w, http.StatusOK, response)
}

func (h *TemplateHandler) addSamples(w http.ResponseWriter, r *http.Request, id string) {
	if _, ok := h.lookup(w, r, id); !ok {
		return
	}

	var req addSamplesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if len(req.Samples) == 0 {
		writeError(w, http.StatusBadRequest, "At least one sample is required")
		return
	}
	for _, s := range req.Samples {
		if !json.Valid(s) {
			writeError(w, http.StatusBadRequest, "Samples must be JSON values")
			return
		}
	}

	count, err := h.store.Samples().Add(r.Context(), id, req.Samples)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save samples")
		return
	}
	writeJSON(w, http.StatusCreated, addSamplesResponse{Added: len(req.Samples), Samples: count})
}

func (h *TemplateHandler) deleteSamples(w http.ResponseWriter, r *http.Request, id string) {
	if _, ok := h.lookup(w, r, id); !ok {
		return
	}
	if err := h.store.Samples().DeleteByTemplate(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete samples")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// train averages the recorded samples into the template's landmarks.
func (h *TemplateHandler) train(w http.ResponseWriter, r *http.Request, id string) {
	t, ok := h.lookup(w, r, id)
	if !ok {
		return
	}

	samples, err := h.store.Samples().ListByTemplate(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load samples")
		return
	}
	data := make([]json.RawMessage, len(samples))
	for i, s := range samples {
		data[i] = s.Data
	}

	landmarks, err := classifier.Train(data)
	if err != nil {
		if errors.Is(err, classifier.ErrNoSamples) {
			writeError(w, http.StatusBadRequest, "Template has no samples")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	points := make([]store.Point, len(landmarks))
	for i, p := range landmarks {
		points[i] = store.Point{X: p.X, Y: p.Y, Z: p.Z}
	}
	if err := h.store.Templates().SetLandmarks(r.Context(), id, points); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save landmarks")
		return
	}
	h.reload(r)

	h.log.Info("template trained",
		slog.String("template", id),
		slog.String("label", t.Label),
		slog.Int("samples", len(samples)))
	writeJSON(w, http.StatusOK, trainResponse{
		ID:        id,
		Label:     t.Label,
		Samples:   len(samples),
		Landmarks: len(points),
	})
}
