package users

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/accountd/accountd/internal/domain"
	"github.com/accountd/accountd/internal/pkg/httputil"
	"github.com/accountd/accountd/internal/pkg/password"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// Handler handles HTTP requests for the users module.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new users handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: NewValidator(),
	}
}

// RegisterRoutes registers the /users routes on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/users", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)
		r.Patch("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
	})
}

// ProfileRequest is the profile part of CreateUserRequest.
type ProfileRequest struct {
	FirstName string  `json:"firstName" validate:"required,notblank"`
	LastName  string  `json:"lastName" validate:"required,notblank"`
	BirthDate *string `json:"birthDate" validate:"omitnil,isodate"`
	Phone     *string `json:"phone"`
}

// ToInput converts the request to a store input.
func (p *ProfileRequest) ToInput() ProfileInput {
	return ProfileInput{
		FirstName: p.FirstName,
		LastName:  p.LastName,
		BirthDate: p.BirthDate,
		Phone:     p.Phone,
	}
}

// CreateUserRequest represents the request body for creating a user.
type CreateUserRequest struct {
	Email    string          `json:"email" validate:"required,email"`
	Password string          `json:"password" validate:"required,min=6,max=72"`
	Role     string          `json:"role" validate:"omitempty,oneof=USER ADMIN"`
	Profile  *ProfileRequest `json:"profile" validate:"required"`
}

// CreatedResponse is returned by endpoints that create a user.
type CreatedResponse struct {
	ID string `json:"id"`
}

// Create handles POST /users request.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	role := domain.Role(req.Role)
	if !canAssign(r, role) {
		h.handleError(w, r, ErrRoleNotAllowed)
		return
	}

	id, err := h.service.Create(r.Context(), CreateInput{
		Email:    req.Email,
		Password: req.Password,
		Role:     role,
		Profile:  req.Profile.ToInput(),
	})
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusCreated, CreatedResponse{ID: id})
}

// Get handles GET /users/{id} request.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.FindOne(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, user)
}

// List handles GET /users request.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page, err := h.service.FindAll(r.Context(), ListInput{
		Page:   queryNumber(q.Get("page"), q.Has("page"), DefaultPage),
		Limit:  queryNumber(q.Get("limit"), q.Has("limit"), DefaultLimit),
		Search: q.Get("search"),
		Sort:   q.Get("sort"),
		Order:  q.Get("order"),
	})
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, page)
}

// Update handles PATCH /users/{id} request.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var input UpdateInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := ValidateUpdate(h.validator, input); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	if input.Role.Value != nil && !canAssign(r, *input.Role.Value) {
		h.handleError(w, r, ErrRoleNotAllowed)
		return
	}

	user, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), input)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, user)
}

// Delete handles DELETE /users/{id} request.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Remove(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.handleError(w, r, err)
		return
	}

	httputil.NoContent(w)
}

var errorMappings = []httputil.ErrorMapping{
	{Error: ErrUserNotFound, Status: http.StatusNotFound},
	{Error: ErrEmailExists, Status: http.StatusConflict},
	{Error: ErrNoFieldsToUpdate, Status: http.StatusBadRequest},
	{Error: ErrInvalidBirthDate, Status: http.StatusBadRequest},
	{Error: ErrInvalidRole, Status: http.StatusBadRequest},
	{Error: ErrRoleNotAllowed, Status: http.StatusForbidden},
	{Error: password.ErrPasswordTooLong, Status: http.StatusBadRequest},
}

// ErrorMappings returns the store's error-to-status table for reuse by other handlers.
func ErrorMappings() []httputil.ErrorMapping {
	return errorMappings
}

func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	httputil.HandleError(r.Context(), w, err, errorMappings)
}

// canAssign reports whether the caller may give a user the role.
// Only ADMIN callers may grant ADMIN.
func canAssign(r *http.Request, role domain.Role) bool {
	if role != domain.RoleAdmin {
		return true
	}
	return httputil.GetRole(r.Context()) == domain.RoleAdmin
}

// queryNumber parses a numeric query parameter. A missing parameter yields
// def; one that does not parse yields NaN, which the store sanitizes.
func queryNumber(raw string, present bool, def float64) float64 {
	if !present {
		return def
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return math.NaN()
	}
	return n
}
