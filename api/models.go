package api

// ErrorResponse is the JSON body for all error statuses.
type ErrorResponse struct {
	Error string `json:"error"`
}

// SuccessResponse acknowledges a successful mutation.
type SuccessResponse struct {
	Success bool `json:"success"`
}

// HealthResponse is the liveness probe body.
type HealthResponse struct {
	Status string `json:"status"`
}
