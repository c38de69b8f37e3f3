package common

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"
)

const MaxMessageLength = 4000

var (
	roomIDRegex   = regexp.MustCompile(`^[A-Za-z0-9_\-]{1,128}$`)
	usernameRegex = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
)

func ValidateRoomID(roomID string) error {
	if !roomIDRegex.MatchString(roomID) {
		return errors.New("room id must be 1-128 letters, numbers, dashes or underscores")
	}
	return nil
}

func ValidateUsername(username string) error {
	username = strings.TrimSpace(username)
	if username == "" || len(username) > 50 {
		return errors.New("username must be between 1 and 50 characters")
	}
	if !usernameRegex.MatchString(username) {
		return errors.New("username can only contain letters, numbers, and underscores")
	}
	return nil
}

func ValidateMessageText(text string) error {
	if strings.TrimSpace(text) == "" {
		return errors.New("message text cannot be empty")
	}
	if utf8.RuneCountInString(text) > MaxMessageLength {
		return errors.New("message text is too long")
	}
	return nil
}
