// Package message defines the call structure decoded from every inbound RPC message.
//
// A Call is what the codec produces from one framed text message and what the
// dispatcher hands to the registry. Parameters are kept as a positional sequence
// of tagged values; handlers coerce them on their own and report mismatches
// with an ArgumentError.
package message

import "encoding/json"

// Call carries a single decoded request or notification.
//
//   - Request:      ID is non-nil, the caller expects exactly one response.
//   - Notification: ID is nil, no response is ever sent.
type Call struct {
	Method string          // Registered method name, e.g. "Add"
	Params Params          // Positional params, empty when absent on the wire
	ID     json.RawMessage // Raw id bytes echoed verbatim in the response
}

// IsNotification reports whether the call carried no identifier.
func (c *Call) IsNotification() bool {
	return c.ID == nil
}
