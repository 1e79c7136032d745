package router

import "github.com/vmihailenco/msgpack/v5"

// Decode parses a raw inbound frame into a ClientRequest (spec §4.D:
// "a self-describing binary codec... MessagePack is a natural fit").
func Decode(raw []byte) (ClientRequest, error) {
	var req ClientRequest
	err := msgpack.Unmarshal(raw, &req)
	return req, err
}

// Encode serializes an outbound message for Fabric delivery —
// the function internal/broadcast.EncodeAll calls per Notification.
func Encode(v any) ([]byte, error) {
	return msgpack.Marshal(v)
}

// wrap tags a domain payload with its ServerMessage Kind before
// encoding.
func wrap(kind string, payload any) ServerMessage {
	return ServerMessage{Kind: kind, Payload: payload}
}
