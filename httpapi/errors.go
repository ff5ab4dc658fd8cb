package httpapi

import (
	"errors"
	"net/http"

	usersvc "github.com/LeeSeungPhill/user-api-svc"
	"github.com/gin-gonic/gin"
)

const (
	detailInvalidCredentials = "Invalid credentials"
	detailAccountLocked      = "Account locked. Try later."
	detailInvalidToken       = "Invalid token"
	detailInvalidRefresh     = "Invalid refresh token"
	detailAccountExists      = "acct_no already exists"
	detailAcctNoNotInteger   = "acct_no must be integer"
	detailNotFound           = "Not found"
	detailInternal           = "Internal server error"
	detailUnavailable        = "Service unavailable"
)

func abortDetail(c *gin.Context, status int, detail string) {
	if status == http.StatusUnauthorized {
		c.Header("WWW-Authenticate", "Bearer")
	}
	c.AbortWithStatusJSON(status, ErrorResponse{Detail: detail})
}

// abortError maps an engine error to a status and detail. tokenDetail is
// the 401 text used for token failures on this route.
func abortError(c *gin.Context, err error, tokenDetail string) {
	_ = c.Error(err)

	if errors.Is(err, usersvc.ErrEngineNotReady) {
		abortDetail(c, http.StatusServiceUnavailable, detailUnavailable)
		return
	}

	switch usersvc.Classify(err) {
	case usersvc.KindAuthFailure:
		if errors.Is(err, usersvc.ErrAccountLocked) {
			abortDetail(c, http.StatusForbidden, detailAccountLocked)
			return
		}
		abortDetail(c, http.StatusUnauthorized, detailInvalidCredentials)
	case usersvc.KindTokenFailure:
		abortDetail(c, http.StatusUnauthorized, tokenDetail)
	case usersvc.KindForbidden:
		abortDetail(c, http.StatusForbidden, detailAccountLocked)
	case usersvc.KindConflict:
		abortDetail(c, http.StatusBadRequest, detailAccountExists)
	case usersvc.KindInvalidInput:
		abortDetail(c, http.StatusBadRequest, err.Error())
	default:
		abortDetail(c, http.StatusInternalServerError, detailInternal)
	}
}
