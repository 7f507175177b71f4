package types

type SuccessEnvelope struct {
	Data any `json:"data"`
}

// ErrorEnvelope is the flat error body: {"error": "...", "code": "...", "reason": "...", "details": ...}.
type ErrorEnvelope struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Reason  string `json:"reason,omitempty"`
	Details any    `json:"details,omitempty"`
}

// Page describes a slice of a longer listing.
type Page struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
}
