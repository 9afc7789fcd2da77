package enums

type DiscordMode string

const (
	// DiscordModeMessages posts a dated summary followed by "<title> : <url>" lines.
	DiscordModeMessages DiscordMode = "messages"

	// DiscordModeFile uploads the CSV artifact as a single attachment.
	DiscordModeFile DiscordMode = "file"

	DiscordModeOff DiscordMode = "off"
)

func (m DiscordMode) Valid() bool {
	switch m {
	case DiscordModeMessages, DiscordModeFile, DiscordModeOff:
		return true
	}
	return false
}
