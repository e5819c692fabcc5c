package model

// Operator is the identity the session provider hands us for a connecting
// admin. It is trusted without re-validation.
type Operator struct {
	UserID     string `json:"userId"`
	UserName   string `json:"userName"`
	UserAvatar string `json:"userAvatar"`
	Role       string `json:"role"`
}
