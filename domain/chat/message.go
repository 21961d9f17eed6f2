package chat

import "time"

// BodyKind tags the variant held by a Body.
type BodyKind string

const (
	BodyText  BodyKind = "text"
	BodyImage BodyKind = "image"
	BodyVoice BodyKind = "voice"
)

// ImageRef points at a locally resolvable image.
type ImageRef struct {
	Handle      string `json:"handle"`
	ContentType string `json:"content_type,omitempty"`
}

// VoiceRef points at a locally resolvable voice note.
type VoiceRef struct {
	Handle          string `json:"handle"`
	DurationSeconds int    `json:"duration_seconds"`
}

// Body is a tagged union: exactly one of text, image or voice is set.
// Use the constructors; the zero Body is invalid.
type Body struct {
	kind  BodyKind
	text  string
	image ImageRef
	voice VoiceRef
}

// TextBody returns a text message body.
func TextBody(text string) Body {
	return Body{kind: BodyText, text: text}
}

// ImageBody returns an image message body.
func ImageBody(ref ImageRef) Body {
	return Body{kind: BodyImage, image: ref}
}

// VoiceBody returns a voice message body.
func VoiceBody(ref VoiceRef) Body {
	return Body{kind: BodyVoice, voice: ref}
}

// Kind reports the variant. It is empty for the zero Body.
func (b Body) Kind() BodyKind { return b.kind }

// Text returns the text and whether the body is a text body.
func (b Body) Text() (string, bool) { return b.text, b.kind == BodyText }

// Image returns the image reference and whether the body is an image body.
func (b Body) Image() (ImageRef, bool) { return b.image, b.kind == BodyImage }

// Voice returns the voice reference and whether the body is a voice body.
func (b Body) Voice() (VoiceRef, bool) { return b.voice, b.kind == BodyVoice }

// Message is the canonical message shape used by the timeline.
type Message struct {
	ID         string
	ClientID   string // correlation id of an optimistic send, if any
	RoomID     string
	SenderID   string
	SenderName string
	Body       Body
	SentAt     time.Time
	IsOwn      bool
}

// Identity is who the local user is, used to derive Message.IsOwn.
type Identity struct {
	MemberID string
	Name     string
}

// Owns reports whether a message with the given sender fields was sent by
// this identity.
func (id Identity) Owns(senderID, senderName string) bool {
	if id.MemberID != "" && senderID == id.MemberID {
		return true
	}
	return id.Name != "" && senderName == id.Name
}
