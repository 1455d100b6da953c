package queue

import (
	"encoding/json"
	"time"
)

// TypeAnalysisRun is the asynq task type for one pipeline run.
const TypeAnalysisRun = "analysis:run"

const messageVersion = 1

// Message is the payload handed to workers for one analysis job.
type Message struct {
	AnalysisID string `json:"analysisId"`
	UserID     string `json:"userId"`
	RequestID  string `json:"requestId,omitempty"`
	EnqueuedAt string `json:"enqueuedAt"`
	Version    int    `json:"version"`
}

// NewMessage stamps a message with the current time and payload version.
func NewMessage(analysisID, userID, requestID string) Message {
	return Message{
		AnalysisID: analysisID,
		UserID:     userID,
		RequestID:  requestID,
		EnqueuedAt: time.Now().UTC().Format(time.RFC3339),
		Version:    messageVersion,
	}
}

// EncodeMessage returns the JSON representation of a message.
func EncodeMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeMessage parses a JSON payload into a Message.
func DecodeMessage(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}
