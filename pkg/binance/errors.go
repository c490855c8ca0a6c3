package binance

import "fmt"

// ConnectionError reports a failed or terminated stream connection.
type ConnectionError struct {
	Op        string // "dial", "read" or "close"
	Status    int    // HTTP status of a failed handshake, if any
	CloseCode int    // websocket close code sent by the server, if any
	Err       error
}

func (e *ConnectionError) Error() string {
	switch {
	case e.Status != 0:
		return fmt.Sprintf("binance stream %s failed (http %d): %v", e.Op, e.Status, e.Err)
	case e.CloseCode != 0:
		return fmt.Sprintf("binance stream %s (code %d): %v", e.Op, e.CloseCode, e.Err)
	default:
		return fmt.Sprintf("binance stream %s failed: %v", e.Op, e.Err)
	}
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// APIError is the error body returned by the REST API, e.g. {"code":-1121,"msg":"Invalid symbol."}.
type APIError struct {
	HTTPStatus int
	Code       int    `json:"code"`
	Msg        string `json:"msg"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("binance error (http %d, code %d): %s", e.HTTPStatus, e.Code, e.Msg)
}
