package chat

// Message is one chat line as persisted in the log and sent to clients.
type Message struct {
	ID        string `json:"id"`
	Sender    string `json:"sender"`
	Role      string `json:"role"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

// Frame types sent to clients.
const (
	FrameHistory = "history"
	FrameMessage = "message"
	FrameError   = "error"
)

// Frame is the envelope of every outbound payload.
type Frame struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}
