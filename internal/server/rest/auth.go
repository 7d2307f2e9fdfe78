package rest

import (
	"net/http"

	"github.com/dmitrijs2005/foliokeeper/internal/server/identity"
	"github.com/dmitrijs2005/foliokeeper/internal/server/services"
	"github.com/gin-gonic/gin"
)

type registerRequest struct {
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,min=8,max=72"`
	FullName string `json:"full_name" binding:"max=255"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,max=128"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type resetRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type resetConfirmRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=8,max=72"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type userInfo struct {
	Sub      string   `json:"sub"`
	Email    string   `json:"email,omitempty"`
	Username string   `json:"username,omitempty"`
	Groups   []string `json:"groups"`
}

type localUserInfo struct {
	Sub      string  `json:"sub"`
	Email    string  `json:"email"`
	FullName *string `json:"full_name"`
}

type authStatusResponse struct {
	Authenticated bool      `json:"authenticated"`
	User          *userInfo `json:"user,omitempty"`
}

type validateResponse struct {
	Valid bool      `json:"valid"`
	User  *userInfo `json:"user"`
}

type protectedResponse struct {
	Message string `json:"message"`
	UserSub string `json:"user_sub"`
}

func toUserInfo(id *identity.Identity) *userInfo {
	groups := id.Groups
	if groups == nil {
		groups = []string{}
	}
	return &userInfo{Sub: id.Subject, Email: id.Email, Username: id.Username, Groups: groups}
}

func (h *handler) register(c *gin.Context) {
	var req registerRequest
	if !h.bind(c, &req) {
		return
	}
	pair, err := h.auth.Register(c.Request.Context(), req.Email, req.Password, req.FullName)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, pair)
}

func (h *handler) login(c *gin.Context) {
	var req loginRequest
	if !h.bind(c, &req) {
		return
	}
	pair, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, pair)
}

func (h *handler) refresh(c *gin.Context) {
	var req refreshRequest
	if !h.bind(c, &req) {
		return
	}
	pair, err := h.auth.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, pair)
}

func (h *handler) requestPasswordReset(c *gin.Context) {
	var req resetRequest
	if !h.bind(c, &req) {
		return
	}
	res, err := h.auth.RequestPasswordReset(c.Request.Context(), req.Email)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *handler) confirmPasswordReset(c *gin.Context) {
	var req resetConfirmRequest
	if !h.bind(c, &req) {
		return
	}
	if err := h.auth.ConfirmPasswordReset(c.Request.Context(), req.Token, req.NewPassword); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, messageResponse{Message: services.MsgPasswordReset})
}

// me answers from the user store in self-hosted mode and from the token
// claims in delegated mode.
func (h *handler) me(c *gin.Context) {
	id := currentIdentity(c)
	if h.resolver.Mode() != identity.ModeSelfHosted {
		c.JSON(http.StatusOK, toUserInfo(id))
		return
	}

	user, err := h.auth.CurrentUser(c.Request.Context(), id.Subject)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, localUserInfo{Sub: user.ID, Email: user.Email, FullName: user.FullName})
}

func (h *handler) status(c *gin.Context) {
	id := currentIdentity(c)
	if id == nil {
		c.JSON(http.StatusOK, authStatusResponse{Authenticated: false})
		return
	}
	c.JSON(http.StatusOK, authStatusResponse{Authenticated: true, User: toUserInfo(id)})
}

func (h *handler) validate(c *gin.Context) {
	c.JSON(http.StatusOK, validateResponse{Valid: true, User: toUserInfo(currentIdentity(c))})
}

func (h *handler) protected(c *gin.Context) {
	c.JSON(http.StatusOK, protectedResponse{
		Message: "You have accessed a protected route",
		UserSub: currentIdentity(c).Subject,
	})
}
