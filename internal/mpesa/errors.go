package mpesa

import "fmt"

// AuthError means the credential exchange with the gateway failed.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("mpesa auth failed: %v", e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// GatewayError means an STK push initiation or status query failed,
// either at the HTTP level or with a non-success gateway response code.
type GatewayError struct {
	Op           string
	ResponseCode string
	Description  string
	Err          error
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("mpesa %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("mpesa %s rejected: code=%s %s", e.Op, e.ResponseCode, e.Description)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}
