package http

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const userIDContextKey contextKey = "userID"

// authMiddleware verifies the bearer token and stores the authenticated
// user id in the request context.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			respondError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		claims, err := s.tokens.ParseToken(token)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), userIDContextKey, claims.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requestUserID returns the authenticated user id placed by authMiddleware.
func requestUserID(r *http.Request) int64 {
	id, _ := r.Context().Value(userIDContextKey).(int64)
	return id
}

// requireTripAccess loads the trip and rejects callers outside its roster.
func (s *Server) requireTripAccess(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	tripID, err := pathID(r, "tripID")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return 0, 0, false
	}

	userID := requestUserID(r)
	trip, err := s.trips.GetTrip(r.Context(), tripID)
	if err != nil {
		respondServiceError(w, err)
		return 0, 0, false
	}
	if !trip.IsMember(userID) {
		respondError(w, http.StatusForbidden, "not a trip member")
		return 0, 0, false
	}
	return tripID, userID, true
}
