package models

// SendPhotoRequest is the body of POST /send-photo
type SendPhotoRequest struct {
	ImageData string `json:"imageData"`
	Emoji     string `json:"emoji,omitempty"`
}

type SendPhotoResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Recipient string `json:"recipient,omitempty"`
	CaptureID string `json:"capture_id,omitempty"`
}

// MailboxProfile mirrors the fields of the Gmail profile resource
type MailboxProfile struct {
	EmailAddress  string `json:"emailAddress"`
	MessagesTotal int64  `json:"messagesTotal"`
	ThreadsTotal  int64  `json:"threadsTotal"`
	HistoryID     uint64 `json:"historyId,string"`
}

type Label struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

// MessageSummary is the trimmed view of a mailbox message
type MessageSummary struct {
	ID      string `json:"id"`
	Snippet string `json:"snippet"`
	Subject string `json:"subject"`
	From    string `json:"from"`
	Date    string `json:"date"`
}

// Capture status events pushed over /ws
const (
	EventCaptureAccepted  = "capture.accepted"
	EventCaptureDelivered = "capture.delivered"
	EventCaptureFailed    = "capture.failed"
)

type StatusEvent struct {
	Event     string `json:"event"`
	CaptureID string `json:"capture_id,omitempty"`
	Step      string `json:"step,omitempty"`
	RecordID  int    `json:"record_id,omitempty"`
	Recipient string `json:"recipient,omitempty"`
	Error     string `json:"error,omitempty"`
	Timestamp int64  `json:"timestamp"`
}
