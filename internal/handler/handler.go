package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"sheger-walk-admin/internal/models"
	"sheger-walk-admin/internal/service"
	"sheger-walk-admin/internal/upstream"
	"sheger-walk-admin/internal/validation"
)

// ViewIDHeader identifies the dashboard view issuing a list request. A newer
// request from the same view supersedes an older one.
const ViewIDHeader = "X-View-ID"

// Handler provides HTTP handlers for the admin gateway.
type Handler struct {
	service     *service.Service
	maxBodySize int64
}

// NewHandlerOptions holds options for creating a handler.
type NewHandlerOptions struct {
	MaxBodySize int64
}

// DefaultHandlerOptions returns default handler options.
func DefaultHandlerOptions() NewHandlerOptions {
	return NewHandlerOptions{
		MaxBodySize: 10 << 20, // 10MB default
	}
}

// NewHandler creates a new handler instance.
func NewHandler(svc *service.Service) *Handler {
	return NewHandlerWithOptions(svc, DefaultHandlerOptions())
}

// NewHandlerWithOptions creates a new handler instance with custom options.
func NewHandlerWithOptions(svc *service.Service, opts NewHandlerOptions) *Handler {
	return &Handler{
		service:     svc,
		maxBodySize: opts.MaxBodySize,
	}
}

// Routes mounts every gateway endpoint on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/health", h.Health)
	r.Get("/dashboard", h.Dashboard)
	r.Get("/activities", h.ListActivities)
	r.Get("/users", h.ListUsers)

	r.Route("/challenges", func(r chi.Router) {
		r.Get("/", h.ListChallenges)
		r.Post("/", h.CreateChallenge)
		r.Get("/{id}", h.GetChallenge)
		r.Put("/{id}", h.UpdateChallenge)
		r.Delete("/{id}", h.DeleteChallenge)
	})
	r.Route("/providers", func(r chi.Router) {
		r.Get("/", h.ListProviders)
		r.Post("/", h.CreateProvider)
		r.Put("/{id}", h.UpdateProvider)
		r.Delete("/{id}", h.DeleteProvider)
	})
	r.Route("/rewards", func(r chi.Router) {
		r.Get("/", h.ListRewards)
		r.Post("/", h.CreateReward)
		r.Put("/{id}", h.UpdateReward)
		r.Delete("/{id}", h.DeleteReward)
	})
	r.Route("/reward-types", func(r chi.Router) {
		r.Get("/", h.ListRewardTypes)
		r.Post("/", h.CreateRewardType)
		r.Put("/{id}", h.UpdateRewardType)
		r.Delete("/{id}", h.DeleteRewardType)
	})

	r.Get("/leaderboards/{scope}", h.ListLeaderboard)
	r.Get("/transactions", h.ListTransactions)

	r.Route("/withdrawals", func(r chi.Router) {
		r.Get("/", h.ListWithdrawals)
		r.Post("/{id}/approve", h.ApproveWithdrawal)
		r.Post("/{id}/reject", h.RejectWithdrawal)
	})

	r.Get("/audit", h.ListAudit)
	r.Get("/features", h.ListFeatures)
	r.Put("/features/{name}", h.SetFeature)
}

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// Dashboard handles GET /dashboard
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	overview, err := h.service.Dashboard(r.Context())
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, overview)
}

// listHandler adapts a service list operation to an HTTP handler.
func listHandler[T any](h *Handler, list func(ctx context.Context, req service.ListRequest) (T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := parseListRequest(r)
		if err != nil {
			h.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		result, err := list(r.Context(), req)
		if err != nil {
			h.handleError(w, err)
			return
		}
		h.respondJSON(w, http.StatusOK, result)
	}
}

// ListActivities handles GET /activities
func (h *Handler) ListActivities(w http.ResponseWriter, r *http.Request) {
	listHandler(h, h.service.ListActivities)(w, r)
}

// ListUsers handles GET /users
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	listHandler(h, h.service.ListUsers)(w, r)
}

// ListChallenges handles GET /challenges
func (h *Handler) ListChallenges(w http.ResponseWriter, r *http.Request) {
	listHandler(h, h.service.ListChallenges)(w, r)
}

// ListProviders handles GET /providers
func (h *Handler) ListProviders(w http.ResponseWriter, r *http.Request) {
	listHandler(h, h.service.ListProviders)(w, r)
}

// ListRewards handles GET /rewards
func (h *Handler) ListRewards(w http.ResponseWriter, r *http.Request) {
	listHandler(h, h.service.ListRewards)(w, r)
}

// ListRewardTypes handles GET /reward-types
func (h *Handler) ListRewardTypes(w http.ResponseWriter, r *http.Request) {
	listHandler(h, h.service.ListRewardTypes)(w, r)
}

// ListTransactions handles GET /transactions
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	listHandler(h, h.service.ListTransactions)(w, r)
}

// ListWithdrawals handles GET /withdrawals
func (h *Handler) ListWithdrawals(w http.ResponseWriter, r *http.Request) {
	listHandler(h, h.service.ListWithdrawals)(w, r)
}

// ListLeaderboard handles GET /leaderboards/{scope}
func (h *Handler) ListLeaderboard(w http.ResponseWriter, r *http.Request) {
	scope := validation.SanitizeString(chi.URLParam(r, "scope"))
	listHandler(h, func(ctx context.Context, req service.ListRequest) (service.Leaderboard, error) {
		return h.service.ListLeaderboard(ctx, scope, req)
	})(w, r)
}

// GetChallenge handles GET /challenges/{id}
func (h *Handler) GetChallenge(w http.ResponseWriter, r *http.Request) {
	id := validation.SanitizeString(chi.URLParam(r, "id"))
	detail, err := h.service.GetChallenge(r.Context(), r.Header.Get(ViewIDHeader), id)
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, detail)
}

// CreateChallenge handles POST /challenges
func (h *Handler) CreateChallenge(w http.ResponseWriter, r *http.Request) {
	var req models.Challenge
	image, ok := h.decodeMutation(w, r, &req, "image")
	if !ok {
		return
	}
	sanitizeChallenge(&req)

	res, err := h.service.CreateChallenge(r.Context(), req, image)
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, res)
}

// UpdateChallenge handles PUT /challenges/{id}
func (h *Handler) UpdateChallenge(w http.ResponseWriter, r *http.Request) {
	var req models.Challenge
	image, ok := h.decodeMutation(w, r, &req, "image")
	if !ok {
		return
	}
	sanitizeChallenge(&req)

	res, err := h.service.UpdateChallenge(r.Context(), chi.URLParam(r, "id"), req, image)
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, res)
}

// DeleteChallenge handles DELETE /challenges/{id}?confirm=true
func (h *Handler) DeleteChallenge(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.DeleteChallenge(r.Context(), chi.URLParam(r, "id"), confirmed(r))
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, res)
}

// CreateProvider handles POST /providers
func (h *Handler) CreateProvider(w http.ResponseWriter, r *http.Request) {
	var req models.ChallengeProvider
	logo, ok := h.decodeMutation(w, r, &req, "logo")
	if !ok {
		return
	}
	sanitizeProvider(&req)

	res, err := h.service.CreateProvider(r.Context(), req, logo)
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, res)
}

// UpdateProvider handles PUT /providers/{id}
func (h *Handler) UpdateProvider(w http.ResponseWriter, r *http.Request) {
	var req models.ChallengeProvider
	logo, ok := h.decodeMutation(w, r, &req, "logo")
	if !ok {
		return
	}
	sanitizeProvider(&req)

	res, err := h.service.UpdateProvider(r.Context(), chi.URLParam(r, "id"), req, logo)
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, res)
}

// DeleteProvider handles DELETE /providers/{id}?confirm=true
func (h *Handler) DeleteProvider(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.DeleteProvider(r.Context(), chi.URLParam(r, "id"), confirmed(r))
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, res)
}

// CreateReward handles POST /rewards
func (h *Handler) CreateReward(w http.ResponseWriter, r *http.Request) {
	var req models.Reward
	if !h.decodeJSON(w, r, &req) {
		return
	}
	req.Name = validation.SanitizeString(req.Name)
	req.Type = validation.SanitizeString(req.Type)

	res, err := h.service.CreateReward(r.Context(), req)
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, res)
}

// UpdateReward handles PUT /rewards/{id}
func (h *Handler) UpdateReward(w http.ResponseWriter, r *http.Request) {
	var req models.Reward
	if !h.decodeJSON(w, r, &req) {
		return
	}
	req.Name = validation.SanitizeString(req.Name)
	req.Type = validation.SanitizeString(req.Type)

	res, err := h.service.UpdateReward(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, res)
}

// DeleteReward handles DELETE /rewards/{id}?confirm=true
func (h *Handler) DeleteReward(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.DeleteReward(r.Context(), chi.URLParam(r, "id"), confirmed(r))
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, res)
}

// CreateRewardType handles POST /reward-types
func (h *Handler) CreateRewardType(w http.ResponseWriter, r *http.Request) {
	var req models.RewardType
	if !h.decodeJSON(w, r, &req) {
		return
	}
	req.Name = validation.SanitizeString(req.Name)
	req.Description = validation.SanitizeString(req.Description)

	res, err := h.service.CreateRewardType(r.Context(), req)
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, res)
}

// UpdateRewardType handles PUT /reward-types/{id}
func (h *Handler) UpdateRewardType(w http.ResponseWriter, r *http.Request) {
	var req models.RewardType
	if !h.decodeJSON(w, r, &req) {
		return
	}
	req.Name = validation.SanitizeString(req.Name)
	req.Description = validation.SanitizeString(req.Description)

	res, err := h.service.UpdateRewardType(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, res)
}

// DeleteRewardType handles DELETE /reward-types/{id}?confirm=true
func (h *Handler) DeleteRewardType(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.DeleteRewardType(r.Context(), chi.URLParam(r, "id"), confirmed(r))
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, res)
}

// ApproveWithdrawal handles POST /withdrawals/{id}/approve
func (h *Handler) ApproveWithdrawal(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.ApproveWithdrawal(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, res)
}

// RejectWithdrawal handles POST /withdrawals/{id}/reject
func (h *Handler) RejectWithdrawal(w http.ResponseWriter, r *http.Request) {
	var req models.RejectWithdrawalRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	res, err := h.service.RejectWithdrawal(r.Context(), chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, res)
}

// ListAudit handles GET /audit
func (h *Handler) ListAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 0
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			h.respondError(w, http.StatusBadRequest, "invalid 'limit' parameter")
			return
		}
		limit = n
	}

	entries, err := h.service.ListAudit(r.Context(), validation.SanitizeString(q.Get("resource")), limit)
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, entries)
}

// ListFeatures handles GET /features
func (h *Handler) ListFeatures(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.service.Features().List())
}

// SetFeature handles PUT /features/{name}
func (h *Handler) SetFeature(w http.ResponseWriter, r *http.Request) {
	var req models.SetFeatureRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	name := validation.SanitizeString(chi.URLParam(r, "name"))
	if !h.service.Features().Set(name, req.Enabled) {
		h.respondError(w, http.StatusNotFound, fmt.Sprintf("unknown feature %q", name))
		return
	}
	h.respondJSON(w, http.StatusOK, h.service.Features().List())
}

// parseListRequest reads the shared list query parameters. Every query value
// is also passed through as a filter.
func parseListRequest(r *http.Request) (service.ListRequest, error) {
	q := r.URL.Query()
	req := service.ListRequest{
		ViewID:    validation.SanitizeString(r.Header.Get(ViewIDHeader)),
		Search:    validation.SanitizeString(q.Get("search")),
		Tab:       validation.SanitizeString(q.Get("tab")),
		SortBy:    validation.SanitizeString(q.Get("sortBy")),
		SortOrder: validation.SanitizeString(q.Get("sortOrder")),
		Filters:   q,
	}

	var err error
	if req.Page, err = intParam(q.Get("page"), "page"); err != nil {
		return service.ListRequest{}, err
	}
	size := q.Get("pageSize")
	if size == "" {
		size = q.Get("limit")
	}
	if req.PageSize, err = intParam(size, "pageSize"); err != nil {
		return service.ListRequest{}, err
	}
	return req, nil
}

func intParam(v, name string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("invalid '%s' parameter, must be an integer", name)
	}
	return n, nil
}

func confirmed(r *http.Request) bool {
	return service.ParseConfirm(r.URL.Query().Get("confirm"))
}

// decodeJSON reads a JSON body into dst. It writes the error response itself
// and reports whether the handler may continue.
func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	// Limit request body size to prevent abuse
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			h.respondError(w, http.StatusBadRequest, "request body is required")
		case errors.As(err, &tooLarge):
			h.respondError(w, http.StatusRequestEntityTooLarge, "request body too large")
		default:
			h.respondError(w, http.StatusBadRequest, "invalid JSON in request body")
		}
		return false
	}
	return true
}

// decodeMutation accepts either a JSON body or multipart/form-data carrying
// the JSON document in a "data" field and an optional file in fileField.
func (h *Handler) decodeMutation(w http.ResponseWriter, r *http.Request, dst any, fileField string) (*upstream.FilePart, bool) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return nil, h.decodeJSON(w, r, dst)
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)
	if err := r.ParseMultipartForm(h.maxBodySize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.respondError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return nil, false
		}
		h.respondError(w, http.StatusBadRequest, "invalid multipart form")
		return nil, false
	}

	data := r.FormValue("data")
	if data == "" {
		h.respondError(w, http.StatusBadRequest, "form field 'data' is required")
		return nil, false
	}
	if err := json.Unmarshal([]byte(data), dst); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid JSON in form field 'data'")
		return nil, false
	}

	file, header, err := r.FormFile(fileField)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, true
	}
	if err != nil {
		h.respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid '%s' upload", fileField))
		return nil, false
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, fmt.Sprintf("failed to read '%s' upload", fileField))
		return nil, false
	}
	return &upstream.FilePart{
		Field:       fileField,
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        content,
	}, true
}

func sanitizeChallenge(c *models.Challenge) {
	c.Name = validation.SanitizeString(c.Name)
	c.Description = validation.SanitizeString(c.Description)
	c.Reward.Name = validation.SanitizeString(c.Reward.Name)
	c.Reward.Type = validation.SanitizeString(c.Reward.Type)
}

func sanitizeProvider(p *models.ChallengeProvider) {
	p.Name = validation.SanitizeString(p.Name)
	p.Address = validation.SanitizeString(p.Address)
	p.Phone = validation.SanitizeString(p.Phone)
	p.Description = validation.SanitizeString(p.Description)
}

// handleError maps service errors to status codes. Upstream 4xx responses
// keep their status and message, except auth failures which are the
// gateway's own misconfiguration.
func (h *Handler) handleError(w http.ResponseWriter, err error) {
	var vErr *validation.ValidationError
	var apiErr *upstream.APIError

	switch {
	case errors.As(err, &vErr):
		h.respondJSON(w, http.StatusBadRequest, models.ErrorResponse{
			Error:  err.Error(),
			Fields: map[string]string{vErr.Field: vErr.Message},
		})
	case errors.Is(err, service.ErrConfirmationRequired):
		h.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrSuperseded):
		h.respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrUnknownScope):
		h.respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrFeatureDisabled):
		h.respondError(w, http.StatusForbidden, err.Error())
	case errors.As(err, &apiErr):
		status := http.StatusBadGateway
		if apiErr.Status >= 400 && apiErr.Status < 500 &&
			apiErr.Status != http.StatusUnauthorized && apiErr.Status != http.StatusForbidden {
			status = apiErr.Status
		}
		h.respondError(w, status, apiErr.Message)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		h.respondError(w, http.StatusGatewayTimeout, err.Error())
	default:
		h.respondError(w, http.StatusInternalServerError, "internal server error")
	}
}

// respondJSON sends a JSON response with the given status code.
func (h *Handler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response with the given status code and message.
func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, models.ErrorResponse{Error: message})
}
