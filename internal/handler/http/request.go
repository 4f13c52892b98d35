package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/handler/http/response"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/jwt"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/validator"
)

const maxBodyBytes = 1 << 20

// decodeJSON reads the request body into dst. An empty body leaves dst untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(w, "Invalid request format", nil)
		return false
	}
	return true
}

func callerClaims(w http.ResponseWriter, r *http.Request) (jwt.Claims, bool) {
	claims, err := jwt.ClaimsFromContext(r.Context())
	if err != nil {
		response.Unauthorized(w, "Invalid or expired token")
		return jwt.Claims{}, false
	}
	return claims, true
}

// targetStaffID returns requested when an administrator names another staff
// member, otherwise the caller's own id.
func targetStaffID(claims jwt.Claims, requested string) string {
	if claims.IsAdmin() && requested != "" {
		return requested
	}
	return claims.StaffID
}

var adminOnlySources = []string{attendance.SourceAdmin}

// eventSource defaults the event source to web and keeps admin-only sources
// for administrators.
func eventSource(w http.ResponseWriter, claims jwt.Claims, requested string) (string, bool) {
	if requested == "" {
		return attendance.SourceWeb, true
	}
	if !claims.IsAdmin() && validator.IsInSlice(requested, adminOnlySources) {
		response.Forbidden(w, "Admin privilege required for source "+requested)
		return "", false
	}
	return requested, true
}

func optionalQuery(r *http.Request, key string) *string {
	if v := r.URL.Query().Get(key); v != "" {
		return &v
	}
	return nil
}

func getIntQueryParam(r *http.Request, key string, defaultVal int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}
	intVal, err := strconv.Atoi(val)
	if err != nil || intVal < 0 {
		return defaultVal
	}
	return intVal
}

func totalPages(total int64, limit int) int {
	if limit <= 0 {
		return 0
	}
	return int((total + int64(limit) - 1) / int64(limit))
}
