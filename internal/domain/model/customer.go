package model

import "time"

// Customer is a chat user known to the storefront.
type Customer struct {
	ID       int64
	Name     string
	JoinedAt time.Time
	Blocked  bool
}

// PaymentChannel is an account customers can transfer payment to.
type PaymentChannel struct {
	ID            int64
	Method        string
	AccountNumber string
	Holder        string
	Active        bool
}
