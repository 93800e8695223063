package models

// User is the identity handed over by the OAuth provider and carried in the
// session cookie. Sub is the stable subject identifier and doubles as the
// message partition key.
type User struct {
	Sub     string `json:"sub"`
	Email   string `json:"email,omitempty"`
	Name    string `json:"name,omitempty"`
	Picture string `json:"picture,omitempty"`
}
