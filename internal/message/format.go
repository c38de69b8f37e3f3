package message

import (
	"time"

	"roomchat/internal/xmtp"
)

// Formatted is a message ready for display.
type Formatted struct {
	ID            string    `json:"id"`
	GroupID       string    `json:"groupId"`
	SenderInboxID string    `json:"senderInboxId"`
	Sender        Sender    `json:"sender"`
	Text          string    `json:"text"`
	SentAt        time.Time `json:"sentAt"`
	Mentions      []Mention `json:"mentions,omitempty"`
	ReplyTo       *ReplyRef `json:"replyTo,omitempty"`
}

type Formatter struct {
	profiles *ProfileCache
}

func NewFormatter(profiles *ProfileCache) *Formatter {
	if profiles == nil {
		profiles = NewProfileCache()
	}
	return &Formatter{profiles: profiles}
}

func (f *Formatter) Profiles() *ProfileCache { return f.profiles }

// Format decodes a network message. Sender fields come from the payload,
// then the profile cache, then fall back to "Unknown".
func (f *Formatter) Format(m xmtp.Message) Formatted {
	out := Formatted{
		ID:            m.ID,
		GroupID:       m.ConversationID,
		SenderInboxID: m.SenderInboxID,
		SentAt:        m.SentAt,
	}

	var embedded Sender
	switch b := Decode(m.Content).(type) {
	case PlainText:
		out.Text = b.Text
	case Structured:
		out.Text, embedded, out.Mentions = b.Text, b.Sender, b.Mentions
	case Reply:
		out.Text, embedded, out.Mentions = b.Text, b.Sender, b.Mentions
		ref := b.ReplyTo
		out.ReplyTo = &ref
	}

	switch {
	case embedded.known():
		out.Sender = embedded
	default:
		if cached, ok := f.profiles.Get(m.SenderInboxID); ok {
			out.Sender = cached
		} else {
			out.Sender = Sender{Username: UnknownSender, DisplayName: UnknownSender}
		}
	}
	return out
}
