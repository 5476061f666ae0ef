package utils

import (
	"encoding/json"
	"log"
)

// JSONWriter is satisfied by *websocket.Conn
type JSONWriter interface {
	WriteJSON(v interface{}) error
}

// SafeJSONParse parses JSON safely
func SafeJSONParse(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

// SendJSON sends a JSON payload to a WebSocket connection.
// Fiber's websocket implementation is not safe for concurrent writes;
// the caller (StatusHub) serializes writes per connection.
func SendJSON(c JSONWriter, payload interface{}) error {
	return c.WriteJSON(payload)
}

// LogError logs an error if it's not nil
func LogError(err error, context string) {
	if err != nil {
		log.Printf("Error [%s]: %v", context, err)
	}
}
