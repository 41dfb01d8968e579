package server

import (
	"net/http"

	apperrors "github.com/weirdgate/weirdgate/internal/errors"
)

// HandleError writes err as an error envelope carrying the request's
// correlation ID.
func HandleError(w http.ResponseWriter, r *http.Request, err error) {
	apperrors.RespondWithError(w, r, err)
}

func notFound(w http.ResponseWriter, r *http.Request) {
	envelope, _ := apperrors.NewNotFoundError("The requested resource was not found").
		WithContext(map[string]interface{}{"path": r.URL.Path})
	HandleError(w, r, envelope)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	envelope, _ := apperrors.NewMethodNotAllowedError("The requested method is not allowed for this resource").
		WithContext(map[string]interface{}{"path": r.URL.Path, "method": r.Method})
	HandleError(w, r, envelope)
}
