package domain

// TokenPair holds the two signed credentials a login or refresh produces.
// Both are stateless JWTs: never stored, never looked up after issuance.
// They die by expiry or client-side discard; there is no revocation list.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Session is the body returned to a client after login or refresh: the
// identity claims plus an absolute expiry hint (epoch milliseconds) for the
// access token, so clients can schedule renewal without decoding the JWT.
type Session struct {
	Sub       string `json:"sub"`
	Username  string `json:"username"`
	Email     string `json:"email,omitempty"`
	Name      string `json:"name,omitempty"`
	ExpiresIn int64  `json:"expiresIn"`
}
