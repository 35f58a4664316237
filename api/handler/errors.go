package handler

import (
	"errors"

	"github.com/fastygo/taskboard/domain"
)

func asDomainError(err error) *domain.Error {
	var dErr *domain.Error
	if errors.As(err, &dErr) {
		return dErr
	}
	return nil
}
