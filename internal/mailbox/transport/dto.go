package transport

import "time"

type Folder struct {
	Name  string `json:"name"`
	Label string `json:"label"`
}

type Address struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

type MessageSummary struct {
	UID            int       `json:"uid"`
	Subject        string    `json:"subject"`
	From           []Address `json:"from"`
	To             []Address `json:"to"`
	Date           time.Time `json:"date"`
	Seen           bool      `json:"seen"`
	Size           uint64    `json:"size"`
	HasAttachments bool      `json:"hasAttachments"`
}

type Attachment struct {
	Name     string `json:"name"`
	MIMEType string `json:"mimeType"`
	Size     int    `json:"size"`
}

type Message struct {
	MessageSummary
	MessageID   string       `json:"messageId,omitempty"`
	CC          []Address    `json:"cc,omitempty"`
	ReplyTo     []Address    `json:"replyTo,omitempty"`
	Text        string       `json:"text"`
	HTML        string       `json:"html,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// FoldersResponse and the other responses set Simulated when the data
// comes from the built-in demo mailbox because IMAP is not configured or
// failed.
type FoldersResponse struct {
	Folders   []Folder `json:"folders"`
	Simulated bool     `json:"simulated"`
}

type MessagesResponse struct {
	Folder    string           `json:"folder"`
	Messages  []MessageSummary `json:"messages"`
	Simulated bool             `json:"simulated"`
}

type MessageResponse struct {
	Folder    string  `json:"folder"`
	Message   Message `json:"message"`
	Simulated bool    `json:"simulated"`
}

type ListRequest struct {
	Folder string `form:"folder" validate:"max=200"`
	Limit  int    `form:"limit" validate:"omitempty,min=1,max=200"`
}
