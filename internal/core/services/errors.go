package services

import (
	"fmt"

	"pairchat/internal/core/domain"
	apperrors "pairchat/pkg/errors"
)

func illegalTransition(cause error, message string) error {
	return apperrors.NewIllegalTransitionError(cause, message)
}

func illegalFrom(op string, status domain.Status) error {
	return apperrors.NewIllegalTransitionError(
		domain.ErrIllegalStateTransition,
		fmt.Sprintf("%s is not allowed while %s", op, status),
	).WithContext("status", status.String())
}

func staleReference(fromNickname string) error {
	return apperrors.NewStaleReferenceError(
		domain.ErrStaleReference,
		fmt.Sprintf("no pending invitation from %q", fromNickname),
	)
}
