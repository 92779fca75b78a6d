package questionnaire

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/praxis-platform/praxis/internal/authz"
	"github.com/praxis-platform/praxis/internal/platform/httpx"
	"github.com/praxis-platform/praxis/internal/shared"
)

// Handler manages questionnaire endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	guard    *authz.Middleware
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, guard *authz.Middleware) *Handler {
	return &Handler{logger: logger, service: service, guard: guard, validate: validator.New()}
}

// MountRoutes registers questionnaire routes. Results are visible to the
// creator even without the read permission.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.guard.Authenticate)

	r.With(h.guard.Require(authz.Any(shared.PermQuestionnaireRead))).Get("/", h.list)
	r.With(h.guard.Require(authz.Any(shared.PermQuestionnaireCreate))).Post("/", h.create)
	r.With(h.guard.Require(authz.Any(shared.PermQuestionnaireRead))).Get("/{id}", h.get)
	r.With(h.guard.Require(authz.Any(shared.PermQuestionnairePublish))).Post("/{id}/publish", h.publish)
	r.With(h.guard.Require(authz.Any(shared.PermQuestionnaireVote))).Post("/{id}/votes", h.vote)
	r.With(h.guard.Require(authz.Any(shared.PermQuestionnaireRead).SelfOwned(h.creatorOf))).Get("/{id}/results", h.results)
}

// creatorOf resolves the questionnaire's creator for self-access checks.
func (h *Handler) creatorOf(r *http.Request) (int64, bool) {
	id, ok := pathID(r)
	if !ok {
		return 0, false
	}
	owner, err := h.service.Owner(r.Context(), id)
	if err != nil {
		return 0, false
	}
	return owner, true
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("perPage"))

	list, p, err := h.service.List(r.Context(), page, perPage)
	if err != nil {
		h.logger.Error("list questionnaires failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"questionnaires": list,
		"pagination": map[string]int{
			"page":       p.Page,
			"perPage":    p.PerPage,
			"total":      p.Total,
			"totalPages": p.TotalPages,
		},
	})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	q, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

type createRequest struct {
	Title    string   `json:"title" validate:"required,max=200"`
	Question string   `json:"question" validate:"required"`
	Options  []string `json:"options" validate:"required,min=2"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	principal := shared.PrincipalFromContext(r.Context())
	q, err := h.service.Create(r.Context(), req.Title, req.Question, req.Options, principal.UserID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, q)
}

func (h *Handler) publish(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	principal := shared.PrincipalFromContext(r.Context())
	if err := h.service.Publish(r.Context(), id, principal.UserID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": string(StatusPublished)})
}

type voteRequest struct {
	OptionID int64 `json:"optionId" validate:"required"`
}

func (h *Handler) vote(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	var req voteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	principal := shared.PrincipalFromContext(r.Context())
	if err := h.service.Vote(r.Context(), id, req.OptionID, principal.UserID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]string{"status": "vote recorded"})
}

func (h *Handler) results(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	res, err := h.service.Results(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil
}
