package slack

import "encoding/json"

// Event callback types delivered to the webhook endpoint.
const (
	PayloadTypeURLVerification = "url_verification"
	PayloadTypeEventCallback   = "event_callback"

	EventTypeFileShared = "file_shared"
)

// EventsPayload is the outer envelope of an Events API delivery.
type EventsPayload struct {
	Type      string     `json:"type"`
	Token     string     `json:"token,omitempty"`
	Challenge string     `json:"challenge,omitempty"`
	TeamID    string     `json:"team_id,omitempty"`
	EventID   string     `json:"event_id,omitempty"`
	EventTime int64      `json:"event_time,omitempty"`
	Event     InnerEvent `json:"event,omitempty"`
}

// InnerEvent carries the event-specific fields we care about.
type InnerEvent struct {
	Type      string `json:"type"`
	FileID    string `json:"file_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	ChannelID string `json:"channel_id,omitempty"`
	EventTS   string `json:"event_ts,omitempty"`
}

// ParseEventsPayload decodes a raw webhook body.
func ParseEventsPayload(body []byte) (EventsPayload, error) {
	var p EventsPayload
	err := json.Unmarshal(body, &p)
	return p, err
}

// File mirrors the subset of the files.info response used by the bot.
type File struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Filetype   string `json:"filetype"`
	Size       int64  `json:"size"`
	URLPrivate string `json:"url_private"`
	Shares     Shares `json:"shares"`
}

// Shares lists where a file has been posted, keyed by channel id.
type Shares struct {
	Public  map[string][]ShareRef `json:"public,omitempty"`
	Private map[string][]ShareRef `json:"private,omitempty"`
}

// ShareRef points at the message that shared the file.
type ShareRef struct {
	TS string `json:"ts"`
}

// ThreadTS returns the timestamp of the message that shared the file in
// the given channel, or "" when the share is not visible.
func (f File) ThreadTS(channel string) string {
	if refs, ok := f.Shares.Public[channel]; ok && len(refs) > 0 {
		return refs[0].TS
	}
	if refs, ok := f.Shares.Private[channel]; ok && len(refs) > 0 {
		return refs[0].TS
	}
	return ""
}

// IsPDF reports whether the file looks like a PDF document.
func (f File) IsPDF() bool {
	if f.Filetype == "pdf" {
		return true
	}
	n := len(f.Name)
	return n >= 4 && (f.Name[n-4:] == ".pdf" || f.Name[n-4:] == ".PDF")
}
