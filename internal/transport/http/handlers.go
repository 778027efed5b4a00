package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"flag-challenge-service/internal/app"
	"flag-challenge-service/internal/domain"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Handler exposes the challenge engine over REST.
type Handler struct {
	service *app.ChallengeService
	catalog app.CatalogRepository
	logger  *zap.Logger
}

func NewHandler(service *app.ChallengeService, catalog app.CatalogRepository, logger *zap.Logger) *Handler {
	return &Handler{service: service, catalog: catalog, logger: logger}
}

// Router assembles the HTTP surface. The catalog endpoints are public; the
// daily challenge endpoints require a bearer identity. feed may be nil when
// no websocket tally is wired.
func (h *Handler) Router(jwtSecret []byte, feed *FeedHandler) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Get("/api/v1/countries", h.listCountries)
	r.Get("/api/v1/countries/{code}", h.getCountry)
	if feed != nil {
		r.Get("/ws/daily", feed.ServeWS)
	}

	r.Group(func(pr chi.Router) {
		pr.Use(BearerAuth(jwtSecret))
		pr.Get("/api/v1/daily", h.getDaily)
		pr.Post("/api/v1/daily/answer", h.submitAnswer)
		pr.Get("/api/v1/daily/history", h.getHistory)
		pr.Get("/api/v1/stats", h.getStats)
	})
	return r
}

func (h *Handler) getDaily(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Today(r.Context(), UserID(r.Context()))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type submitRequest struct {
	AnswerData       domain.AnswerSubmission `json:"answerData"`
	TimeTakenSeconds *int                    `json:"timeTakenSeconds,omitempty"`
}

func (h *Handler) submitAnswer(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.service.Submit(r.Context(), UserID(r.Context()), req.AnswerData, req.TimeTakenSeconds)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) getHistory(w http.ResponseWriter, r *http.Request) {
	var before time.Time
	if raw := r.URL.Query().Get("before"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "before must be YYYY-MM-DD")
			return
		}
		before = parsed
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	items, err := h.service.History(r.Context(), UserID(r.Context()), before, limit)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"results": items})
}

func (h *Handler) getStats(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Stats(r.Context(), UserID(r.Context()))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) listCountries(w http.ResponseWriter, r *http.Request) {
	var (
		countries []domain.Country
		err       error
	)
	if tier := r.URL.Query().Get("tier"); tier != "" {
		countries, err = h.catalog.ListByTier(r.Context(), tier)
	} else {
		countries, err = h.catalog.ListAll(r.Context())
	}
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"results": countries})
}

func (h *Handler) getCountry(w http.ResponseWriter, r *http.Request) {
	country, err := h.catalog.GetByCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, country)
}

// writeServiceError maps engine errors onto statuses. Expected user-facing
// rejections are 4xx and never logged as errors.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrAlreadyAnsweredCorrectly),
		errors.Is(err, domain.ErrAttemptsExhausted),
		errors.Is(err, domain.ErrMalformedAnswer):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrCountryNotFound),
		errors.Is(err, domain.ErrChallengeNotFound),
		errors.Is(err, domain.ErrQuestionNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		h.logger.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
