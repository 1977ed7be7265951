package codec

import (
	"encoding/json"
	"unicode/utf8"

	"tickrpc/message"

	"github.com/gorilla/rpc/v2/json2"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// JSONRPCCodec parses with gjson and builds envelopes with sjson so the
// key order on the wire is always jsonrpc, id, result/error.
type JSONRPCCodec struct{}

var _ Codec = JSONRPCCodec{}

func (JSONRPCCodec) Decode(raw string) (*message.Call, error) {
	if !gjson.Valid(raw) {
		return nil, errors.Wrap(ErrMalformedPayload, "invalid JSON")
	}
	if !utf8.ValidString(raw) {
		return nil, errors.Wrap(ErrMalformedPayload, "invalid UTF-8")
	}
	doc := gjson.Parse(raw)
	if !doc.IsObject() {
		return nil, errors.Wrap(ErrMalformedPayload, "top level value is not an object")
	}

	method := doc.Get("method")
	if !method.Exists() {
		return nil, ErrMissingMethod
	}
	if method.Type != gjson.String {
		return nil, errors.Wrapf(ErrMalformedPayload, "method must be a string, got %s", method.Raw)
	}

	call := &message.Call{Method: method.Str, Params: message.Params{}}

	if params := doc.Get("params"); params.Exists() && params.Type != gjson.Null {
		if !params.IsArray() {
			return nil, errors.Wrap(ErrMalformedPayload, "params must be an array")
		}
		for _, p := range params.Array() {
			call.Params = append(call.Params, message.ValueOf(p))
		}
	}

	// A present id, even null, marks a request.
	if id := doc.Get("id"); id.Exists() {
		call.ID = json.RawMessage(id.Raw)
	}
	return call, nil
}

func (JSONRPCCodec) EncodeSuccess(id json.RawMessage, result any) ([]byte, error) {
	buf, err := envelope(id)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, errors.Wrap(err, "encoding result")
	}
	return sjson.SetRawBytes(buf, "result", raw)
}

func (JSONRPCCodec) EncodeFailure(id json.RawMessage, failure *json2.Error) ([]byte, error) {
	if failure == nil {
		return nil, errors.New("encoding failure: nil error")
	}
	buf, err := envelope(id)
	if err != nil {
		return nil, err
	}

	obj, err := sjson.SetBytes([]byte(`{}`), "code", int(failure.Code))
	if err != nil {
		return nil, errors.Wrap(err, "encoding error code")
	}
	if obj, err = sjson.SetBytes(obj, "message", failure.Message); err != nil {
		return nil, errors.Wrap(err, "encoding error message")
	}
	if failure.Data != nil {
		data, err := json.Marshal(failure.Data)
		if err != nil {
			return nil, errors.Wrap(err, "encoding error data")
		}
		if obj, err = sjson.SetRawBytes(obj, "data", data); err != nil {
			return nil, errors.Wrap(err, "encoding error data")
		}
	}
	return sjson.SetRawBytes(buf, "error", obj)
}

// EncodeRequest builds an outbound call. A nil id produces a notification.
func (JSONRPCCodec) EncodeRequest(method string, id json.RawMessage, params ...any) ([]byte, error) {
	buf, err := sjson.SetBytes([]byte(`{}`), "jsonrpc", Version)
	if err != nil {
		return nil, err
	}
	if buf, err = sjson.SetBytes(buf, "method", method); err != nil {
		return nil, errors.Wrap(err, "encoding method")
	}
	if len(params) > 0 {
		raw, err := json.Marshal(params)
		if err != nil {
			return nil, errors.Wrap(err, "encoding params")
		}
		if buf, err = sjson.SetRawBytes(buf, "params", raw); err != nil {
			return nil, errors.Wrap(err, "encoding params")
		}
	}
	if id != nil {
		if buf, err = sjson.SetRawBytes(buf, "id", id); err != nil {
			return nil, errors.Wrap(err, "encoding id")
		}
	}
	return buf, nil
}

func envelope(id json.RawMessage) ([]byte, error) {
	if id == nil {
		id = json.RawMessage("null")
	}
	buf, err := sjson.SetBytes([]byte(`{}`), "jsonrpc", Version)
	if err != nil {
		return nil, err
	}
	buf, err = sjson.SetRawBytes(buf, "id", id)
	if err != nil {
		return nil, errors.Wrap(err, "encoding id")
	}
	return buf, nil
}
