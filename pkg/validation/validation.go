package validation

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// MaxNicknameLength is counted in runes after trimming.
	MaxNicknameLength = 32
)

var (
	// VideoIDRegex matches a bare YouTube video id.
	VideoIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{11}$`)
)

// NormalizeNickname trims surrounding whitespace.
func NormalizeNickname(nickname string) string {
	return strings.TrimSpace(nickname)
}

// ValidateNickname validates a nickname after trimming.
func ValidateNickname(nickname string) error {
	nickname = NormalizeNickname(nickname)
	if nickname == "" {
		return fmt.Errorf("nickname is required")
	}
	if !utf8.ValidString(nickname) {
		return fmt.Errorf("nickname contains invalid characters")
	}
	if err := ValidateStringLength(nickname, 1, MaxNicknameLength, "nickname"); err != nil {
		return err
	}
	for _, r := range nickname {
		if unicode.IsControl(r) {
			return fmt.Errorf("nickname contains control characters")
		}
	}
	return nil
}

// ValidateMessageContent validates chat message text after trimming.
func ValidateMessageContent(content string, maxLength int) error {
	content = strings.TrimSpace(content)
	if err := ValidateNonEmptyString(content, "message"); err != nil {
		return err
	}
	if !utf8.ValidString(content) {
		return fmt.Errorf("message contains invalid characters")
	}
	return ValidateStringLength(content, 1, maxLength, "message")
}

// ExtractVideoID returns the YouTube video id referenced by raw. Accepted
// forms are watch URLs, youtu.be short links, /embed/ and /shorts/ paths and
// a bare 11 character id.
func ExtractVideoID(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("video URL is required")
	}
	if VideoIDRegex.MatchString(raw) {
		return raw, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid video URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("invalid video URL scheme (must be http or https)")
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	host = strings.TrimPrefix(host, "m.")

	var id string
	switch host {
	case "youtu.be":
		id = strings.Trim(u.Path, "/")
	case "youtube.com", "youtube-nocookie.com", "music.youtube.com":
		switch {
		case u.Path == "/watch":
			id = u.Query().Get("v")
		case strings.HasPrefix(u.Path, "/embed/"):
			id = strings.TrimPrefix(u.Path, "/embed/")
		case strings.HasPrefix(u.Path, "/shorts/"):
			id = strings.TrimPrefix(u.Path, "/shorts/")
		case strings.HasPrefix(u.Path, "/live/"):
			id = strings.TrimPrefix(u.Path, "/live/")
		}
	default:
		return "", fmt.Errorf("unsupported video host %q", u.Hostname())
	}

	id = strings.Trim(id, "/")
	if !VideoIDRegex.MatchString(id) {
		return "", fmt.Errorf("video URL does not contain a valid video id")
	}
	return id, nil
}

// ValidateNonEmptyString validates that string is not empty after trimming
func ValidateNonEmptyString(s, fieldName string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return fmt.Errorf("%s is required", fieldName)
	}
	return nil
}

// ValidateStringLength validates string length
func ValidateStringLength(s string, min, max int, fieldName string) error {
	length := utf8.RuneCountInString(s)
	if length < min {
		return fmt.Errorf("%s must be at least %d characters", fieldName, min)
	}
	if length > max {
		return fmt.Errorf("%s is too long (max %d characters)", fieldName, max)
	}
	return nil
}
