package identity

import (
	"encoding/json"
	"net/http"

	"github.com/accountd/accountd/internal/domain"
	"github.com/accountd/accountd/internal/pkg/httputil"
	"github.com/accountd/accountd/internal/users"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// Handler handles HTTP requests for the identity module.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new identity handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: users.NewValidator(),
	}
}

// RegisterRoutes registers public identity routes. Mount under /auth.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/register", h.Register)
	r.Post("/login", h.Login)
}

// RegisterProtectedRoutes registers routes that require authentication. Mount under /auth.
func (h *Handler) RegisterProtectedRoutes(r chi.Router) {
	r.Get("/me", h.Me)
	r.Patch("/me", h.UpdateMe)
	r.Post("/logout", h.Logout)
}

// RegisterRequest represents registration request body.
type RegisterRequest struct {
	Email    string                `json:"email" validate:"required,email"`
	Password string                `json:"password" validate:"required,min=6,max=72"`
	Profile  *users.ProfileRequest `json:"profile" validate:"required"`
}

// LoginRequest represents login request body.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=1"`
}

// UpdateMeRequest is the body of PATCH /auth/me. It has no role field, so
// a role key of any type is dropped while decoding.
type UpdateMeRequest struct {
	Email   domain.Optional[string] `json:"email"`
	Profile *users.ProfilePatch     `json:"profile"`
}

// ToInput converts the request to a store update.
func (r UpdateMeRequest) ToInput() users.UpdateInput {
	return users.UpdateInput{
		Email:   r.Email,
		Profile: r.Profile,
	}
}

// LoginResponse carries the issued access token.
type LoginResponse struct {
	AccessToken string `json:"accessToken"`
}

// Register handles POST /auth/register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	id, err := h.service.Register(r.Context(), RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Profile:  req.Profile.ToInput(),
	})
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusCreated, users.CreatedResponse{ID: id})
}

// Login handles POST /auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	token, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, LoginResponse{AccessToken: token})
}

// Me handles GET /auth/me.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.Me(r.Context(), httputil.GetUserID(r.Context()))
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, user)
}

// UpdateMe handles PATCH /auth/me. A role in the body is ignored.
func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var req UpdateMeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	input := req.ToInput()
	if err := users.ValidateUpdate(h.validator, input); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	user, err := h.service.UpdateMe(r.Context(), httputil.GetUserID(r.Context()), input)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, user)
}

// Logout handles POST /auth/logout.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Logout(r.Context()); err != nil {
		h.handleError(w, r, err)
		return
	}

	httputil.NoContent(w)
}

var errorMappings = append([]httputil.ErrorMapping{
	{Error: ErrInvalidCredentials, Status: http.StatusUnauthorized},
	{Error: ErrInvalidToken, Status: http.StatusUnauthorized},
}, users.ErrorMappings()...)

func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	httputil.HandleError(r.Context(), w, err, errorMappings)
}
