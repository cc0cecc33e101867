package services

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/samber/oops"
)

// publicKinds are the only errors AuthService methods return besides
// common.ErrorInternal. Order matters: the first kind found in the chain wins.
var publicKinds = []error{
	common.ErrorUnauthorized,
	common.ErrorConflict,
	common.ErrOTPNotFound,
	common.ErrOTPExpired,
	common.ErrOTPInvalid,
	common.ErrorNotFound,
	common.ErrHashing,
	common.ErrTransport,
}

// publicError is the single point where detailed internal errors are logged
// and reduced to a public kind. Every exported AuthService method returns
// through it.
func (s *AuthService) publicError(ctx context.Context, operation string, err error) error {
	if err == nil {
		return nil
	}

	args := []any{"operation", operation, "error", err.Error()}
	if oe, ok := oops.AsOops(err); ok {
		args = append(args, "code", oe.Code())
		for k, v := range oe.Context() {
			args = append(args, k, v)
		}
	}

	for _, kind := range publicKinds {
		if errors.Is(err, kind) {
			if kind == common.ErrHashing || kind == common.ErrTransport {
				s.log.Error(ctx, "auth operation failed", args...)
			} else {
				s.log.Info(ctx, "auth operation rejected", args...)
			}
			return kind
		}
	}

	s.log.Error(ctx, "auth operation failed", args...)
	return common.ErrorInternal
}
