package bridge

import (
	"encoding/json"

	walleterr "github.com/x1wallet/walletcore/pkg/errors"
)

// Provider methods.
const (
	MethodConnect                = "connect"
	MethodDisconnect             = "disconnect"
	MethodGetAccount             = "getAccount"
	MethodSignMessage            = "signMessage"
	MethodSignTransaction        = "signTransaction"
	MethodSignAndSendTransaction = "signAndSendTransaction"
)

// Request is a page call. ID is opaque and unique per port.
type Request struct {
	ID     string          `json:"id"`
	Origin string          `json:"origin"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
	T0     int64           `json:"t0,omitempty"`
}

// Response answers exactly one Request.
type Response struct {
	ID     string `json:"id"`
	Result any    `json:"result,omitempty"`
	Error  *Error `json:"error,omitempty"`
}

// Error is the page-facing error shape.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func errorResponse(id string, err error) Response {
	return Response{ID: id, Error: &Error{Code: walleterr.ProviderCode(err), Message: err.Error()}}
}

// AccountResult answers connect and getAccount.
type AccountResult struct {
	PublicKey string `json:"publicKey"`
}

// SignatureResult answers signMessage and signAndSendTransaction.
type SignatureResult struct {
	PublicKey string `json:"publicKey,omitempty"`
	Signature string `json:"signature"`
}

// TransactionResult answers signTransaction with the base64 wire form.
type TransactionResult struct {
	Transaction string `json:"transaction"`
}

// messageParams is the signMessage payload; Message is base64.
type messageParams struct {
	Message []byte `json:"message"`
	Display string `json:"display,omitempty"`
}

// transactionParams is the payload of both transaction methods;
// Transaction is the base64 wire form.
type transactionParams struct {
	Transaction []byte          `json:"transaction"`
	Options     json.RawMessage `json:"options,omitempty"`
}

func decodeParams(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return walleterr.WithDetails(walleterr.ErrInvalidParams, map[string]string{"reason": "missing params"})
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return walleterr.WrapAs(walleterr.ErrInvalidParams, err)
	}
	return nil
}
