// Package backend implements the HTTP adapter for the remote language-model service.
package backend

// HealthStatus is the body of GET /health.
type HealthStatus struct {
	OllamaConnected bool     `json:"ollama_connected"`
	CurrentModel    string   `json:"current_model"`
	AvailableModels []string `json:"available_models"`
}

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse is the body returned by POST /chat.
// Success and Response are pointers so missing fields can be told apart
// from zero values.
type ChatResponse struct {
	Success  *bool   `json:"success"`
	Response *string `json:"response"`
	Error    string  `json:"error,omitempty"`
}

// ModelsResponse is the body of GET /models.
type ModelsResponse struct {
	Models []string `json:"models"`
}

// SetModelRequest is the body of POST /model.
type SetModelRequest struct {
	Model string `json:"model"`
}

// StatusResponse is the generic {success, error} body of POST /model and POST /clear.
type StatusResponse struct {
	Success *bool  `json:"success"`
	Error   string `json:"error,omitempty"`
}
