package http

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"tripsplit/internal/core"
	"tripsplit/internal/services"
	"tripsplit/internal/storage"
)

const maxRequestBody = 1 << 20 // 1MB

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"message": message})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	raw := mux.Vars(r)[name]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return id, nil
}

// respondServiceError maps service and storage errors to HTTP statuses.
// Validation failures come back as 400, everything unexpected as 500.
func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		respondError(w, http.StatusNotFound, "not found")
	case errors.Is(err, services.ErrForbidden):
		respondError(w, http.StatusForbidden, "not allowed")
	case errors.Is(err, services.ErrExportUnavailable):
		respondError(w, http.StatusServiceUnavailable, "report export is not configured")
	case isValidationError(err):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

func isValidationError(err error) bool {
	for _, sentinel := range []error{
		core.ErrInvalidAmount,
		core.ErrEmptyName,
		core.ErrEmptyDescription,
		core.ErrInvalidCategory,
		core.ErrInvalidStatus,
		core.ErrInvalidPayer,
		core.ErrInvalidSplit,
		core.ErrSelfSettlement,
		core.ErrUnknownParticipant,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

// amount accepts a JSON number or a quoted decimal string and parses it
// with the same fixed-point rules either way, so "200.00" and 200.00 both
// become 20000 cents without a float round trip.
type amount struct {
	core.Money
}

func (a *amount) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	cents, err := core.ParseDecimalToCents(s)
	if err != nil {
		return err
	}
	a.Cents = cents
	return nil
}

func sanitizeInput(s string) string {
	return strings.TrimSpace(s)
}

func generateRequestID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "unknown"
	}
	return hex.EncodeToString(buf)
}
