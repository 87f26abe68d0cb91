package integration

// Request payloads shared across integration tests

type registerPayload struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type verifyPayload struct {
	Username string `json:"username"`
	Nonce    string `json:"nonce"`
}

type loginPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type accountPatchPayload struct {
	ProfileURL *string `json:"profileURL,omitempty"`
}

type sessionResponse struct {
	Message      string `json:"message"`
	SessionToken string `json:"sessionToken"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

const (
	testPassword = "correct-horse-battery"
)
