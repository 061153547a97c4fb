package httpx

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	"booklending/internal/domain"
)

// Error writes err using its stable code. Errors without a code are logged
// and reported as INTERNAL_ERROR.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	var (
		nf *domain.NotFoundError
		rv *domain.RuleViolationError
		st *domain.StatusTransitionError
	)
	switch {
	case errors.As(err, &nf):
		JSONError(w, r, http.StatusNotFound, nf.Code, nf.Error(), nil)
	case errors.As(err, &rv):
		JSONError(w, r, ruleStatus(rv.Code), rv.Code, rv.Error(), ruleDetails(rv))
	case errors.As(err, &st):
		JSONError(w, r, http.StatusUnprocessableEntity, domain.CodeInvalidStatusTransition, st.Error(), []ErrorDetail{
			{Field: "from", Message: st.From.String()},
			{Field: "to", Message: st.To.String()},
		})
	case errors.Is(err, domain.ErrConcurrencyConflict):
		JSONError(w, r, http.StatusConflict, domain.CodeConcurrencyConflict, "The resource was modified concurrently, please retry", nil)
	default:
		logrus.WithError(err).WithFields(logrus.Fields{
			"request_id": RequestIDFrom(r),
			"method":     r.Method,
			"path":       r.URL.Path,
		}).Error("request failed")
		JSONError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", nil)
	}
}

func ruleStatus(code string) int {
	switch code {
	case domain.CodeCopyAlreadyBorrowed, domain.CodeAlreadyBorrowedByUser, domain.CodeBookAlreadyExists:
		return http.StatusConflict
	default:
		return http.StatusUnprocessableEntity
	}
}

func ruleDetails(rv *domain.RuleViolationError) []ErrorDetail {
	var details []ErrorDetail
	if rv.Limit > 0 {
		details = append(details, ErrorDetail{Field: "limit", Message: strconv.Itoa(rv.Limit)})
	}
	if rv.Days > 0 {
		details = append(details, ErrorDetail{Field: "days", Message: strconv.Itoa(rv.Days)})
	}
	if rv.ISBN != "" {
		details = append(details, ErrorDetail{Field: "isbn", Message: rv.ISBN})
	}
	if rv.State != "" {
		details = append(details, ErrorDetail{Field: "state", Message: string(rv.State)})
	}
	return details
}
