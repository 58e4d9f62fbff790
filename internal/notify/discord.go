package notify

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Embed colors for the two notice categories
const (
	ColorChange = 0x7b23eb
	ColorError  = 0xff0000
)

const (
	changeTitle = "External IP Checker"
	errorTitle  = "External IP Checker - Error"

	// maxBlockLen keeps descriptions well under Discord's 4096 character limit
	maxBlockLen = 1800
)

// Kind distinguishes change notices from error notices
type Kind string

const (
	KindChange Kind = "change"
	KindError  Kind = "error"
)

// DiscordMessage represents Discord message
type DiscordMessage struct {
	Username  string         `json:"username,omitempty"`
	AvatarURL string         `json:"avatar_url,omitempty"`
	Content   string         `json:"content,omitempty"`
	Embeds    []DiscordEmbed `json:"embeds"`
}

// DiscordEmbed represents Discord embed
type DiscordEmbed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       int    `json:"color"`
	Timestamp   string `json:"timestamp,omitempty"`
}

// codeBlock renders text as a fixed-width block
func codeBlock(s string) string {
	s = strings.ReplaceAll(s, "`", "'")
	if len(s) > maxBlockLen {
		cut := maxBlockLen
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut] + "..."
	}
	return fmt.Sprintf("```%s```", s)
}

// changeMessage builds the notice sent when a new address is detected
func changeMessage(address string, at time.Time) DiscordMessage {
	return DiscordMessage{
		Embeds: []DiscordEmbed{{
			Title:       changeTitle,
			Description: "New external IP detected" + codeBlock(address),
			Color:       ColorChange,
			Timestamp:   at.UTC().Format(time.RFC3339),
		}},
	}
}

// errorMessage builds the notice sent when a check fails
func errorMessage(text string, at time.Time) DiscordMessage {
	return DiscordMessage{
		Embeds: []DiscordEmbed{{
			Title:       errorTitle,
			Description: "Failed to check external IP" + codeBlock(text),
			Color:       ColorError,
			Timestamp:   at.UTC().Format(time.RFC3339),
		}},
	}
}
