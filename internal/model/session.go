package model

// Session is the authenticated identity cached across reloads.
type Session struct {
	Token       string `json:"token"`
	DisplayName string `json:"name"`
	Login       string `json:"login"`
}
