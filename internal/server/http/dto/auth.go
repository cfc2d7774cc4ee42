package dto

// LoginRequest describes operator credentials.
type LoginRequest struct {
	OperatorID int64  `json:"operator_id"`
	Password   string `json:"password"`
}

// TokenResponse carries an issued session token.
type TokenResponse struct {
	Token string `json:"token"`
}
