// Package domain contains core business types for the HomeworkAI backend.
//
// This file defines the chat turn types exchanged between the HTTP layer
// and the chat orchestrator, including the tagged result that replaces
// magic sentinel strings.
package domain

import (
	"encoding/base64"
	"strings"
)

// ChatRole identifies who produced a transcript message.
type ChatRole string

const (
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
)

// ChatMessage is one turn of the conversation history as held by the UI.
type ChatMessage struct {
	Role    ChatRole `json:"role"`
	Content string   `json:"content"`
}

// ChatParams is one chat turn as submitted by the client.
type ChatParams struct {
	// History is the prior transcript, oldest first. The server is
	// stateless across turns; the client carries the conversation.
	History []ChatMessage
	// Message is the new user turn. May be empty when an image alone is
	// submitted.
	Message string
	// ImageDataURL is an optional browser-produced data URL of a photo
	// accompanying the turn.
	ImageDataURL string
}

// ImageAttachment is a decoded image ready for the completion provider.
type ImageAttachment struct {
	MIMEType string
	Data     []byte
}

// DefaultImageMIMEType is assumed when an upload's framing does not
// declare a recognizable MIME type.
const DefaultImageMIMEType = "image/jpeg"

// DecodeImageDataURL decomposes a browser-produced data URL
// (data:<mime>;base64,<payload>) into a MIME type and raw bytes.
//
// Inputs that are not in the expected framing fall back to
// DefaultImageMIMEType with the payload passed through as-is, matching
// what the upload widget actually sends in practice.
func DecodeImageDataURL(dataURL string) (*ImageAttachment, error) {
	mimeType := DefaultImageMIMEType
	payload := dataURL

	if strings.HasPrefix(dataURL, "data:") {
		rest := strings.TrimPrefix(dataURL, "data:")
		if idx := strings.Index(rest, ";base64,"); idx >= 0 {
			if mt := rest[:idx]; mt != "" {
				mimeType = mt
			}
			payload = rest[idx+len(";base64,"):]
		} else if idx := strings.Index(rest, ","); idx >= 0 {
			payload = rest[idx+1:]
		}
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, Invalid("chat.decode_image", "image is not valid base64 data")
	}
	if len(data) == 0 {
		return nil, Invalid("chat.decode_image", "image payload is empty")
	}

	return &ImageAttachment{MIMEType: mimeType, Data: data}, nil
}

// ChatResultKind tags the outcome of a chat turn.
type ChatResultKind string

const (
	// ChatCompleted carries the generated reply text.
	ChatCompleted ChatResultKind = "completed"
	// ChatQuotaDenied means the daily credit ceiling was hit; the UI
	// should present the upgrade prompt.
	ChatQuotaDenied ChatResultKind = "quota_denied"
	// ChatUnauthenticated means no identity was present on the request.
	ChatUnauthenticated ChatResultKind = "unauthenticated"
	// ChatFailed carries a user-displayable failure message; the
	// conversation is preserved rather than reset.
	ChatFailed ChatResultKind = "failed"
)

// ChatResult is the tagged outcome of one chat turn.
//
// Reply is set for ChatCompleted; Message is a user-displayable text set
// for ChatFailed. ErrorCode carries the domain error code for logging
// and metrics; it never reaches the transcript.
type ChatResult struct {
	Kind      ChatResultKind
	Reply     string
	Message   string
	ErrorCode string
}

// Completed builds a successful chat result.
func Completed(reply string) *ChatResult {
	return &ChatResult{Kind: ChatCompleted, Reply: reply}
}

// QuotaDenied builds a quota-exhausted chat result.
func QuotaDenied() *ChatResult {
	return &ChatResult{Kind: ChatQuotaDenied}
}

// ChatError builds a failed chat result with a user-displayable message.
func ChatError(code, message string) *ChatResult {
	return &ChatResult{Kind: ChatFailed, Message: message, ErrorCode: code}
}
