package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/safar/vinyl-store/internal/models"
	"go.uber.org/zap"
)

type errorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind,omitempty"`
	RecordID  int64  `json:"record_id,omitempty"`
	Requested int    `json:"requested,omitempty"`
	Available *int   `json:"available,omitempty"`
}

func statusFor(kind models.Kind) int {
	switch kind {
	case models.KindInvalidQuantity, models.KindInvalidArgument:
		return http.StatusBadRequest
	case models.KindRecordNotFound, models.KindItemNotFound, models.KindOrderNotFound, models.KindUserNotFound:
		return http.StatusNotFound
	case models.KindInsufficientStock, models.KindEmptyCart, models.KindInvalidOrderState, models.KindConflict:
		return http.StatusConflict
	case models.KindUnauthorized:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Error: message})
}

// respondDomainError maps err to a status code. Storage failures are logged
// and reported without their details.
func (h *Handler) respondDomainError(w http.ResponseWriter, r *http.Request, err error) {
	kind := models.KindOf(err)
	status := statusFor(kind)

	if status == http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		respondJSON(w, status, errorResponse{Error: "internal error", Kind: models.KindStorage.String()})
		return
	}

	resp := errorResponse{Error: err.Error(), Kind: kind.String()}
	var stockErr *models.InsufficientStockError
	if errors.As(err, &stockErr) {
		available := stockErr.Available
		resp.RecordID = stockErr.RecordID
		resp.Requested = stockErr.Requested
		resp.Available = &available
	}
	respondJSON(w, status, resp)
}
