// Package codec converts between framed text messages and calls/responses.
//
// Inbound messages follow the JSON-RPC shape
//
//	{"method": <string>, "params": [<value>, ...]?, "id": <any>?}
//
// and outbound responses are always wrapped in a versioned envelope:
//
//	{"jsonrpc": "2.0", "id": <echoed id>, "result": <value>}
//	{"jsonrpc": "2.0", "id": <echoed id>, "error": {"code": <int>, "message": <string>, "data": <value>?}}
package codec

import (
	"encoding/json"

	"tickrpc/message"

	"github.com/gorilla/rpc/v2/json2"
	"github.com/pkg/errors"
)

// Version is the protocol version tag written into every envelope.
const Version = "2.0"

var (
	// ErrMalformedPayload is returned when the text is not a JSON object
	// or one of the known fields has the wrong type.
	ErrMalformedPayload = errors.New("malformed payload")
	// ErrMissingMethod is returned for well-formed messages without a method field.
	// Such messages are ignored, not answered.
	ErrMissingMethod = errors.New("missing method")
)

// Codec decodes inbound calls and encodes outcomes.
type Codec interface {
	Decode(raw string) (*message.Call, error)
	EncodeSuccess(id json.RawMessage, result any) ([]byte, error)
	EncodeFailure(id json.RawMessage, failure *json2.Error) ([]byte, error)
}

// Default is the codec used when none is configured.
var Default Codec = JSONRPCCodec{}
