package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"spheres/internal/config"
	"spheres/internal/game"
	"spheres/internal/save"
	"spheres/internal/stage"
	"spheres/internal/vault"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const tokenHeader = "X-Slot-Token"

type Server struct {
	cfg     config.APIConfig
	log     *slog.Logger
	catalog stage.Catalog
	vault   *vault.Service
	mux     *chi.Mux
}

func New(cfg config.APIConfig, logger *slog.Logger, catalog stage.Catalog, vaultSvc *vault.Service) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:     cfg,
		log:     logger,
		catalog: catalog,
		vault:   vaultSvc,
		mux:     chi.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	r := s.mux
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	timeout := s.cfg.RequestLimit
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	r.Use(middleware.Timeout(timeout))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Get("/stages", s.handleStages)
		r.Post("/inspect", s.handleInspect)

		r.Post("/slots", s.handleCreateSlot)
		r.Put("/slots/{id}", s.handlePutSlot)
		r.Get("/slots/{id}", s.handleGetSlot)
	})
}

func (s *Server) handleStages(w http.ResponseWriter, _ *http.Request) {
	out := make([]map[string]any, 0, s.catalog.Count())
	for i, def := range s.catalog.Stages {
		out = append(out, map[string]any{
			"index":       i,
			"name":        def.Name,
			"description": def.Description,
			"loops":       def.Loops,
			"reward":      def.Reward,
			"final":       def.Final,
			"color":       stage.Color(i),
			"angle":       s.catalog.Angle(i),
			"rules":       def.Rules,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"stages": out})
}

// handleInspect loads a plain save record into a throwaway core and reports
// the derived numbers the client would show.
func (s *Server) handleInspect(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, int64(s.bodyLimit())))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "record too large")
		return
	}
	rec, err := save.Decode(raw)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	core := game.New(s.catalog, nil, s.log)
	if err := core.Apply(rec); err != nil {
		writeDomainError(w, err)
		return
	}
	v := core.View()
	writeJSON(w, http.StatusOK, map[string]any{
		"stage":          v.Stage,
		"stage_name":     v.StageName,
		"phase":          v.Phase.String(),
		"won":            v.Won,
		"total_units":    v.TotalUnits,
		"slot_count":     v.SlotCount,
		"stage_points":   v.StagePoints,
		"completed":      v.Completed,
		"base_rate":      v.Rate.BaseRate,
		"threshold":      v.Rate.Threshold,
		"next_threshold": v.Rate.NextThreshold,
		"multiplier":     v.Rate.Multiplier,
		"speed":          v.Rate.Speed,
		"loop_rate":      v.Rate.LoopRate,
		"upgrade_costs":  v.Rate.Costs,
		"purchasable":    v.Rate.Purchasable,
		"play_time":      v.PlayTime,
	})
}

func (s *Server) handleCreateSlot(w http.ResponseWriter, r *http.Request) {
	creds, err := s.vault.CreateSlot(r.Context())
	if err != nil {
		s.log.Error("create slot failed", "err", err, "request_id", middleware.GetReqID(r.Context()))
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, creds)
}

func (s *Server) handlePutSlot(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Blob         string `json:"blob"`
		BaseRevision *int64 `json:"base_revision,omitempty"`
	}
	r.Body = http.MaxBytesReader(w, r.Body, int64(s.bodyLimit()))
	if err := decodeJSON(r, &req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "blob too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	base := int64(-1)
	if req.BaseRevision != nil {
		base = *req.BaseRevision
	}
	out, err := s.vault.PutBlob(r.Context(), vault.PutInput{
		SlotID:         chi.URLParam(r, "id"),
		Token:          slotToken(r),
		Blob:           req.Blob,
		BaseRevision:   base,
		IdempotencyKey: idempotencyKey(r),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetSlot(w http.ResponseWriter, r *http.Request) {
	out, err := s.vault.GetBlob(r.Context(), chi.URLParam(r, "id"), slotToken(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) bodyLimit() int {
	limit := s.cfg.MaxBlobBytes
	if limit <= 0 {
		limit = 256 << 10
	}
	// room for the JSON envelope around the blob
	return limit + 1024
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, vault.ErrSlotNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, vault.ErrBadToken):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, vault.ErrRevisionConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, vault.ErrBlobTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, vault.ErrEmptyBlob), errors.Is(err, save.ErrCorrupt), errors.Is(err, save.ErrUnsupportedVersion):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, game.ErrInvalidRecord):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": strings.TrimSpace(message)})
}

func idempotencyKey(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("Idempotency-Key"))
}

func slotToken(r *http.Request) string {
	if token := strings.TrimSpace(r.Header.Get(tokenHeader)); token != "" {
		return token
	}
	return bearerToken(r.Header.Get("Authorization"))
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
