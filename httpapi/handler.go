package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	usersvc "github.com/LeeSeungPhill/user-api-svc"
	"github.com/LeeSeungPhill/user-api-svc/middleware"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

// Service is the part of *usersvc.Engine the handlers call.
type Service interface {
	middleware.AccountResolver
	Register(ctx context.Context, req usersvc.RegisterRequest) (usersvc.Account, error)
	AttemptLogin(ctx context.Context, acctNo int64, pass, clientOrigin string) (usersvc.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (usersvc.TokenPair, error)
	UpdateProfile(ctx context.Context, acctNo int64, change usersvc.ProfileChange) (usersvc.Account, error)
	Logout(ctx context.Context, accessToken string) error
}

// Handler serves the account routes.
type Handler struct {
	svc Service
	now func() time.Time
}

// NewHandler returns a Handler. now defaults to time.Now.
func NewHandler(svc Service, now func() time.Time) *Handler {
	if now == nil {
		now = time.Now
	}
	registerValidators()
	return &Handler{svc: svc, now: now}
}

func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortDetail(c, http.StatusBadRequest, bindingDetail(err))
		return
	}

	acct, err := h.svc.Register(c.Request.Context(), req.toEngine())
	if err != nil {
		abortError(c, err, detailInvalidCredentials)
		return
	}

	c.JSON(http.StatusCreated, newProfileOut(acct))
}

func (h *Handler) Login(c *gin.Context) {
	acctNo, pass, ok := bindLogin(c)
	if !ok {
		return
	}

	pair, err := h.svc.AttemptLogin(c.Request.Context(), acctNo, pass, c.ClientIP())
	if err != nil {
		abortError(c, err, detailInvalidCredentials)
		return
	}

	c.JSON(http.StatusOK, newTokenResponse(pair, h.now()))
}

// bindLogin reads the credentials from a JSON body or the password form.
func bindLogin(c *gin.Context) (int64, string, bool) {
	if c.ContentType() == binding.MIMEJSON {
		var req LoginJSON
		if err := c.ShouldBindJSON(&req); err != nil {
			abortDetail(c, http.StatusBadRequest, bindingDetail(err))
			return 0, "", false
		}
		return req.AcctNo, req.Password, true
	}

	var form LoginForm
	if err := c.ShouldBindWith(&form, binding.Form); err != nil {
		abortDetail(c, http.StatusBadRequest, bindingDetail(err))
		return 0, "", false
	}
	acctNo, err := strconv.ParseInt(strings.TrimSpace(form.Username), 10, 64)
	if err != nil {
		abortDetail(c, http.StatusBadRequest, detailAcctNoNotInteger)
		return 0, "", false
	}
	return acctNo, form.Password, true
}

func (h *Handler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortDetail(c, http.StatusBadRequest, bindingDetail(err))
		return
	}

	pair, err := h.svc.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		abortError(c, err, detailInvalidRefresh)
		return
	}

	c.JSON(http.StatusOK, newTokenResponse(pair, h.now()))
}

func (h *Handler) Me(c *gin.Context) {
	acct, ok := middleware.AccountFromContext(c.Request.Context())
	if !ok {
		abortDetail(c, http.StatusUnauthorized, detailInvalidToken)
		return
	}
	c.JSON(http.StatusOK, newProfileOut(acct))
}

func (h *Handler) UpdateMe(c *gin.Context) {
	acct, ok := middleware.AccountFromContext(c.Request.Context())
	if !ok {
		abortDetail(c, http.StatusUnauthorized, detailInvalidToken)
		return
	}

	var req ProfileUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortDetail(c, http.StatusBadRequest, bindingDetail(err))
		return
	}

	updated, err := h.svc.UpdateProfile(c.Request.Context(), acct.AcctNo, req.toEngine())
	if errors.Is(err, usersvc.ErrAccountNotFound) {
		_ = c.Error(err)
		abortDetail(c, http.StatusNotFound, detailNotFound)
		return
	}
	if err != nil {
		abortError(c, err, detailInvalidToken)
		return
	}

	c.JSON(http.StatusOK, newProfileOut(updated))
}

func (h *Handler) Logout(c *gin.Context) {
	token := c.GetString(ctxAccessToken)
	if token == "" {
		abortDetail(c, http.StatusUnauthorized, detailInvalidToken)
		return
	}

	if err := h.svc.Logout(c.Request.Context(), token); err != nil {
		abortError(c, err, detailInvalidToken)
		return
	}

	c.Status(http.StatusNoContent)
}
