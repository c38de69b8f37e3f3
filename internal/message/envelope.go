// Package message encodes, decodes and orders chat messages carried over
// the messaging network.
package message

import (
	"encoding/json"
	"errors"
	"strings"
	"unicode/utf8"
)

const (
	UnknownSender = "Unknown"
	SnippetLength = 100
)

type Sender struct {
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	PfpURL      string `json:"pfp_url"`
	FID         uint64 `json:"fid"`
}

func (s Sender) known() bool { return s.Username != "" }

type Mention struct {
	InboxID     string `json:"inboxId"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName,omitempty"`
	FID         uint64 `json:"fid,omitempty"`
	StartIndex  int    `json:"startIndex"`
	Length      int    `json:"length"`
}

// ReplyRef is the denormalised preview of the message being replied to.
type ReplyRef struct {
	MessageID string `json:"messageId"`
	Message   string `json:"message"`
	Sender    Sender `json:"sender"`
}

// Body is one of PlainText, Structured or Reply.
type Body interface {
	BodyText() string
	isBody()
}

// PlainText is a legacy payload with no structure.
type PlainText struct {
	Text string
}

type Structured struct {
	Text     string
	Sender   Sender
	Mentions []Mention
}

type Reply struct {
	Structured
	ReplyTo ReplyRef
}

func (b PlainText) BodyText() string  { return b.Text }
func (b Structured) BodyText() string { return b.Text }
func (b Reply) BodyText() string      { return b.Text }

func (PlainText) isBody()  {}
func (Structured) isBody() {}
func (Reply) isBody()      {}

type envelope struct {
	Text     *string   `json:"text"`
	Sender   Sender    `json:"sender"`
	Mentions []Mention `json:"mentions,omitempty"`
	ReplyTo  *ReplyRef `json:"replyTo,omitempty"`
}

var ErrEmptyText = errors.New("message text is empty")

// Encode produces the wire payload for a body.
func Encode(b Body) ([]byte, error) {
	if strings.TrimSpace(b.BodyText()) == "" {
		return nil, ErrEmptyText
	}
	switch v := b.(type) {
	case PlainText:
		return []byte(v.Text), nil
	case Structured:
		return json.Marshal(envelope{Text: &v.Text, Sender: v.Sender, Mentions: v.Mentions})
	case Reply:
		ref := v.ReplyTo
		return json.Marshal(envelope{Text: &v.Text, Sender: v.Sender, Mentions: v.Mentions, ReplyTo: &ref})
	default:
		return nil, errors.New("unknown message body")
	}
}

// Decode never fails: anything that is not a structured envelope is shown
// as plain text.
func Decode(content []byte) Body {
	var env envelope
	if err := json.Unmarshal(content, &env); err != nil || env.Text == nil {
		return PlainText{Text: string(content)}
	}
	s := Structured{Text: *env.Text, Sender: env.Sender, Mentions: env.Mentions}
	if env.ReplyTo != nil && env.ReplyTo.MessageID != "" {
		return Reply{Structured: s, ReplyTo: *env.ReplyTo}
	}
	return s
}

// NewReply builds a reply body quoting original.
func NewReply(text string, sender Sender, mentions []Mention, original Formatted) Reply {
	return Reply{
		Structured: Structured{Text: text, Sender: sender, Mentions: mentions},
		ReplyTo: ReplyRef{
			MessageID: original.ID,
			Message:   Snippet(original.Text, SnippetLength),
			Sender:    original.Sender,
		},
	}
}

// Snippet cuts text to at most n runes, marking the cut with an ellipsis.
func Snippet(text string, n int) string {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) <= n {
		return text
	}
	runes := []rune(text)
	return strings.TrimRightFunc(string(runes[:n]), func(r rune) bool { return r == ' ' }) + "..."
}
