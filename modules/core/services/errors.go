package services

import "github.com/praxishq/praxis/pkg/serrors"

var (
	ErrForbidden = serrors.NewError("CORE_FORBIDDEN", "operation not permitted", "")
	ErrNotFound  = serrors.NewError("CORE_NOT_FOUND", "resource not found", "")
	ErrConflict  = serrors.NewError("CORE_CONFLICT", "operation conflicts with current state", "")
)
