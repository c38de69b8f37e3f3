package message

import (
	"regexp"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// Usernames may carry '-' (fnames) and '.' (ENS names such as vitalik.eth).
var mentionPattern = regexp.MustCompile(`@([A-Za-z0-9_.-]+)`)

// Mentionable is a user that can be mentioned in a conversation.
type Mentionable struct {
	InboxID     string
	Username    string
	DisplayName string
	FID         uint64
}

// ExtractMentions finds @username tokens that name a mentionable user.
// Offsets and lengths are in UTF-16 code units, as browsers count them.
// Unknown tokens are left as plain text.
func ExtractMentions(text string, users []Mentionable) []Mention {
	if len(users) == 0 || !strings.Contains(text, "@") {
		return nil
	}
	byName := make(map[string]Mentionable, len(users))
	for _, u := range users {
		byName[strings.ToLower(u.Username)] = u
	}

	var out []Mention
	for _, loc := range mentionPattern.FindAllStringSubmatchIndex(text, -1) {
		start, end := loc[0], loc[1]
		if start > 0 {
			prev, _ := utf8.DecodeLastRuneInString(text[:start])
			if isWordRune(prev) {
				continue
			}
		}
		name := text[loc[2]:loc[3]]
		trimmed := strings.TrimRight(name, ".")
		if trimmed == "" {
			continue
		}
		end -= len(name) - len(trimmed)
		u, ok := byName[strings.ToLower(trimmed)]
		if !ok {
			continue
		}
		out = append(out, Mention{
			InboxID:     u.InboxID,
			Username:    u.Username,
			DisplayName: u.DisplayName,
			FID:         u.FID,
			StartIndex:  utf16Len(text[:start]),
			Length:      utf16Len(text[start:end]),
		})
	}
	return out
}

func isWordRune(r rune) bool {
	return r == '_' || (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		n += len(utf16.Encode([]rune{r}))
	}
	return n
}
