package quiz

import (
	"errors"
	"net/http"

	"github.com/gokatarajesh/shakai-quiz/internal/question"
	httperrors "github.com/gokatarajesh/shakai-quiz/pkg/http/errors"
)

// ErrorStatus maps a service error to an HTTP status and error code.
func ErrorStatus(err error) (int, string) {
	var loadErr *question.LoadError
	switch {
	case errors.As(err, &loadErr):
		return http.StatusUnprocessableEntity, httperrors.ErrCodeLoadFailed
	case errors.Is(err, question.ErrUnknownDataset):
		return http.StatusNotFound, httperrors.ErrCodeUnknownDataset
	case errors.Is(err, ErrInvalidCount):
		return http.StatusBadRequest, httperrors.ErrCodeInvalidCount
	case errors.Is(err, ErrInvalidSubmission):
		return http.StatusBadRequest, httperrors.ErrCodeInvalidChoice
	case errors.Is(err, ErrInvalidTransition):
		return http.StatusConflict, httperrors.ErrCodeInvalidTransition
	case errors.Is(err, ErrNoPool):
		return http.StatusConflict, httperrors.ErrCodeNoPool
	case errors.Is(err, ErrNotFinished):
		return http.StatusConflict, httperrors.ErrCodeNotFinished
	case errors.Is(err, ErrSessionBusy):
		return http.StatusConflict, httperrors.ErrCodeSessionBusy
	}
	return http.StatusInternalServerError, httperrors.ErrCodeInternalError
}
