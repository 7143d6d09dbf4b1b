// Package event defines the explicit domain events that replace generic
// document-change listeners: a semantic transition is published as a
// first-class event rather than re-derived from before/after snapshots.
package event

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// Event carries a semantic fact about a single document
type Event struct {
	ID         string                 `json:"id"`
	Type       Type                   `json:"type"`
	Collection string                 `json:"collection"`
	DocID      string                 `json:"doc_id"`
	Payload    map[string]interface{} `json:"payload"`
	Timestamp  time.Time              `json:"timestamp"`
}

// New creates an event with an auto-generated ID and timestamp
func New(eventType Type, collection, docID string, payload map[string]interface{}) *Event {
	return &Event{
		ID:         generateID(),
		Type:       eventType,
		Collection: collection,
		DocID:      docID,
		Payload:    payload,
		Timestamp:  time.Now(),
	}
}

// PayloadString retrieves a string value from the payload
func (e *Event) PayloadString(key string) string {
	if val, ok := e.Payload[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

// PayloadBool retrieves a bool value from the payload
func (e *Event) PayloadBool(key string) bool {
	if val, ok := e.Payload[key]; ok {
		if b, ok := val.(bool); ok {
			return b
		}
	}
	return false
}

// generateID creates a unique ID using timestamp and random bytes
func generateID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return fmt.Sprintf("%d-%s", time.Now().UnixNano(), hex.EncodeToString(b))
}
