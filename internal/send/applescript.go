package send

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// AppleScript sends messages by driving Messages.app through
// osascript. It only works on macOS with the scripting permission
// granted.
type AppleScript struct{}

var _ Capability = AppleScript{}

// Send asks Messages.app to deliver body to recipient. Group chats
// carry a chat-prefixed identifier and are addressed as chat ids;
// everything else is treated as a direct participant identifier.
func (AppleScript) Send(ctx context.Context, recipient, body string) error {
	script := buildScript(recipient, body)

	cmd := exec.CommandContext(ctx, "osascript", "-e", script)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return fmt.Errorf("osascript: %s: %w", msg, err)
		}
		return fmt.Errorf("osascript: %w", err)
	}
	return nil
}

func buildScript(recipient, body string) string {
	id := chatID(recipient)
	return fmt.Sprintf(
		`tell application "Messages" to send "%s" to chat id "%s"`,
		escapeScript(body), escapeScript(id),
	)
}

// chatID maps a conversation identifier to the chat id form that
// Messages.app expects. Group identifiers start with "chat".
func chatID(recipient string) string {
	if strings.HasPrefix(recipient, "chat") {
		return "any;+;" + recipient
	}
	return "any;-;" + recipient
}

func escapeScript(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return s
}
