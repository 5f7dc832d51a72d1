package service

import (
	"errors"

	"github.com/vietanh2810/certcheck-api/internal/domain"
	"github.com/vietanh2810/certcheck-api/internal/repository"
)

var notFoundErrs = []error{
	repository.ErrUserNotFound,
	repository.ErrEventNotFound,
	repository.ErrRegistrationNotFound,
	repository.ErrTemplateNotFound,
	repository.ErrCertificateNotFound,
	repository.ErrCheckinNotFound,
}

// classify turns a repository failure into a domain error. Missing rows are
// NotFound, anything else the store reports is TransientStorage.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if domain.KindOf(err) != "" {
		return err
	}
	for _, target := range notFoundErrs {
		if errors.Is(err, target) {
			return &domain.Error{Kind: domain.KindNotFound, Msg: target.Error(), Err: err}
		}
	}
	return domain.NewTransientStorageError(op, err)
}
