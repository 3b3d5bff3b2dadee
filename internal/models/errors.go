package models

import "github.com/pkg/errors"

// Error kinds surfaced to datafeed consumers.
var (
	ErrUnknownSymbol = errors.New("unknown_symbol")
	ErrNetwork       = errors.New("network_error")
	ErrUnknown       = errors.New("unknown_error")
)

// ServerError carries a verbatim error string reported by the server.
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string { return e.Message }

// ErrorKind maps an error to the string kind used on the wire.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	var se *ServerError
	switch {
	case errors.As(err, &se):
		return se.Message
	case errors.Is(err, ErrUnknownSymbol):
		return ErrUnknownSymbol.Error()
	case errors.Is(err, ErrNetwork):
		return ErrNetwork.Error()
	default:
		return ErrUnknown.Error()
	}
}
