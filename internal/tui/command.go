package tui

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mattjoyce/aoproc/internal/action"
	"github.com/mattjoyce/aoproc/internal/protocol"
)

// ConsoleSender is the From value used for messages typed at the console.
const ConsoleSender = "console"

var (
	// ErrQuit is returned for "quit" and "exit".
	ErrQuit = errors.New("quit")
	// ErrEmpty is returned for blank input lines.
	ErrEmpty = errors.New("empty command")
)

// ParseCommand turns one console line into a raw message.
//
// Lines starting with "{" are passed through untouched. Otherwise the first
// word names the action and the rest supply the Key tag and Data:
//
//	Set <key> <value...>
//	Get <key>
//	Remove <key>
//	Info | List | Clear
//
// Action names match case-insensitively. Unknown words are still sent so the
// process can answer with its own error.
func ParseCommand(line string) (string, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return "", ErrEmpty
	}
	if strings.HasPrefix(line, "{") {
		return line, nil
	}

	fields := strings.Fields(line)
	verb := canonicalAction(fields[0])
	args := fields[1:]

	switch strings.ToLower(verb) {
	case "quit", "exit":
		return "", ErrQuit
	}

	sender := ConsoleSender
	msg := protocol.Message{
		From: &sender,
		Tags: protocol.Tags{action.TagAction: verb},
	}

	switch verb {
	case action.Set:
		if len(args) < 2 {
			return "", fmt.Errorf("usage: Set <key> <value>")
		}
		msg.Tags[action.TagKey] = args[0]
		// Preserve inner spacing of the value.
		value := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line[len(fields[0]):]), args[0]))
		msg.Data = &value
	case action.Get, action.Remove:
		if len(args) != 1 {
			return "", fmt.Errorf("usage: %s <key>", verb)
		}
		msg.Tags[action.TagKey] = args[0]
	default:
		if len(args) > 0 {
			return "", fmt.Errorf("%s takes no arguments", verb)
		}
	}

	b, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("encode message: %w", err)
	}
	return string(b), nil
}

func canonicalAction(word string) string {
	for _, name := range action.Names() {
		if strings.EqualFold(name, word) {
			return name
		}
	}
	return word
}
