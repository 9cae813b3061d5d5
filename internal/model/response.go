package model

// APIResponse is the envelope shared by every endpoint. Error carries the
// machine readable error code; Message is the human readable summary.
type APIResponse struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	Data         any    `json:"data,omitempty"`
	Token        string `json:"token,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
	Error        string `json:"error,omitempty"`
	Details      string `json:"details,omitempty"`
	Meta         *Meta  `json:"meta,omitempty"`
}

type Meta struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}
