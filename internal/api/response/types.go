package response

// Health is the response for the health check endpoint
type Health struct {
	Status string `json:"status"`
}

// Code is the response for a freshly generated session code
type Code struct {
	Code string `json:"code"`
}
