package providers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	openai "github.com/meguminnnnnnnnn/go-openai"
)

// extractErrorMetadata extracts the HTTP status code and Retry-After value from an SDK error.
func extractErrorMetadata(err error) (int, string) {
	if err == nil {
		return 0, ""
	}

	var httpStatus int
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		httpStatus = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		httpStatus = reqErr.HTTPStatusCode
	}

	errStr := err.Error()
	if httpStatus == 0 {
		for _, code := range []int{
			http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout,
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusBadRequest,
			http.StatusPaymentRequired,
		} {
			if strings.Contains(errStr, http.StatusText(code)) || strings.Contains(errStr, strconv.Itoa(code)) {
				httpStatus = code
				break
			}
		}
	}

	// Common patterns: "Retry-After: 60", "retry after 60".
	var retryAfter string
	lower := strings.ToLower(errStr)
	for _, marker := range []string{"retry-after:", "retry-after", "retry after"} {
		if idx := strings.Index(lower, marker); idx != -1 {
			if parts := strings.Fields(errStr[idx+len(marker):]); len(parts) > 0 {
				retryAfter = strings.Trim(parts[0], ":,;")
			}
			break
		}
	}

	return httpStatus, retryAfter
}
