package message

import (
	"context"

	"roomchat/internal/xmtp"
)

const DefaultHistoryLimit = 100

// Source fetches raw group messages, newest first.
type Source interface {
	Messages(ctx context.Context, client xmtp.Client, groupID string, limit int) ([]xmtp.Message, error)
}

// LoadHistory fetches the most recent limit messages and returns the
// application messages oldest first.
func (f *Formatter) LoadHistory(ctx context.Context, src Source, client xmtp.Client, groupID string, limit int) ([]Formatted, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	raw, err := src.Messages(ctx, client, groupID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]Formatted, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		if raw[i].Kind != xmtp.KindApplication {
			continue
		}
		out = append(out, f.Format(raw[i]))
	}
	SortChronological(out)
	return out, nil
}

// Page returns the window [offset, offset+limit) of a chronological list.
func Page(msgs []Formatted, limit, offset int) []Formatted {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(msgs) {
		return []Formatted{}
	}
	end := len(msgs)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return msgs[offset:end]
}
