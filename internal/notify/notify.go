package notify

import "context"

// Sender delivers a best-effort message to a recipient. It never returns an
// error; false means nothing was delivered.
type Sender interface {
	Send(ctx context.Context, to, subject, message string) bool
}

// Nop drops every message.
type Nop struct{}

// Send always reports false.
func (Nop) Send(ctx context.Context, to, subject, message string) bool {
	return false
}

const (
	SubjectCompleted = "Contract Analysis Complete"
	SubjectFailed    = "Contract Analysis Failed"
)

// CompletedMessage is the body sent when an analysis finishes.
func CompletedMessage(fileName string) string {
	return "Your contract '" + fileName + "' has been successfully analyzed."
}

// FailedMessage is the body sent when an analysis fails. An empty file name is
// rendered as Unknown.
func FailedMessage(fileName string) string {
	if fileName == "" {
		fileName = "Unknown"
	}
	return "Unfortunately, the analysis of your contract '" + fileName + "' has failed. Please try again or contact support."
}
