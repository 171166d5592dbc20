package httpclient

// ErrorCategory buckets request outcomes for circuit breaker stats.
type ErrorCategory int

const (
	// ErrorCategorySuccess2xx counts 2xx responses.
	ErrorCategorySuccess2xx ErrorCategory = iota
	// ErrorCategoryClientError4xx counts 4xx responses.
	ErrorCategoryClientError4xx
	// ErrorCategoryServerError5xx counts 5xx responses.
	ErrorCategoryServerError5xx
	// ErrorCategoryTimeout counts request timeouts.
	ErrorCategoryTimeout
	// ErrorCategoryNetworkError counts transport-level failures.
	ErrorCategoryNetworkError
)

// String returns the snake_case name of the category.
func (c ErrorCategory) String() string {
	switch c {
	case ErrorCategorySuccess2xx:
		return "success_2xx"
	case ErrorCategoryClientError4xx:
		return "client_error_4xx"
	case ErrorCategoryServerError5xx:
		return "server_error_5xx"
	case ErrorCategoryTimeout:
		return "timeout"
	case ErrorCategoryNetworkError:
		return "network_error"
	default:
		return "unknown"
	}
}

// ErrorCategoryCount holds per-category outcome counts.
type ErrorCategoryCount struct {
	Success2xx     int64 `json:"success_2xx"`
	ClientError4xx int64 `json:"client_error_4xx"`
	ServerError5xx int64 `json:"server_error_5xx"`
	Timeout        int64 `json:"timeout"`
	NetworkError   int64 `json:"network_error"`
}

// Total sums all categories.
func (e *ErrorCategoryCount) Total() int64 {
	return e.Success2xx + e.ClientError4xx + e.ServerError5xx + e.Timeout + e.NetworkError
}

// Increment bumps the count for the given category.
func (e *ErrorCategoryCount) Increment(category ErrorCategory) {
	switch category {
	case ErrorCategorySuccess2xx:
		e.Success2xx++
	case ErrorCategoryClientError4xx:
		e.ClientError4xx++
	case ErrorCategoryServerError5xx:
		e.ServerError5xx++
	case ErrorCategoryTimeout:
		e.Timeout++
	case ErrorCategoryNetworkError:
		e.NetworkError++
	}
}

// Reset zeroes all counts.
func (e *ErrorCategoryCount) Reset() {
	*e = ErrorCategoryCount{}
}

// Clone returns a copy of the counts.
func (e *ErrorCategoryCount) Clone() ErrorCategoryCount {
	return *e
}

// CategorizeHTTPStatus maps an HTTP status code to its error category.
func CategorizeHTTPStatus(statusCode int) ErrorCategory {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return ErrorCategorySuccess2xx
	case statusCode >= 400 && statusCode < 500:
		return ErrorCategoryClientError4xx
	case statusCode >= 500:
		return ErrorCategoryServerError5xx
	default:
		return ErrorCategoryNetworkError
	}
}
