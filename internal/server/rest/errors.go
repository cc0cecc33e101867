package rest

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/gin-gonic/gin"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorMapping struct {
	kind   error
	status int
	body   errorResponse
}

var errorMappings = []errorMapping{
	{common.ErrorUnauthorized, http.StatusUnauthorized, errorResponse{"UNAUTHORIZED", "Invalid credentials"}},
	{common.ErrInvalidToken, http.StatusUnauthorized, errorResponse{"UNAUTHORIZED", "Invalid credentials"}},
	{common.ErrTokenExpired, http.StatusUnauthorized, errorResponse{"TOKEN_EXPIRED", "Token has expired"}},
	{common.ErrorConflict, http.StatusConflict, errorResponse{"CONFLICT", "Email already registered"}},
	{common.ErrOTPNotFound, http.StatusBadRequest, errorResponse{"OTP_NOT_FOUND", "No OTP found for this email"}},
	{common.ErrOTPExpired, http.StatusBadRequest, errorResponse{"OTP_EXPIRED", "OTP has expired"}},
	{common.ErrOTPInvalid, http.StatusBadRequest, errorResponse{"OTP_INVALID", "Invalid OTP"}},
	{common.ErrorNotFound, http.StatusBadRequest, errorResponse{"USER_NOT_FOUND", "User not found"}},
}

var (
	internalError  = errorResponse{"INTERNAL_ERROR", "internal error"}
	invalidRequest = errorResponse{"INVALID_REQUEST", "invalid payload"}
)

// statusFor maps a service error to its HTTP status and body. Unknown
// errors, hashing and transport failures are all internal errors.
func statusFor(err error) (int, errorResponse) {
	for _, m := range errorMappings {
		if errors.Is(err, m.kind) {
			return m.status, m.body
		}
	}
	return http.StatusInternalServerError, internalError
}

func writeError(c *gin.Context, err error) string {
	status, body := statusFor(err)
	c.AbortWithStatusJSON(status, body)
	return body.Code
}
