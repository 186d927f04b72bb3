package action

import (
	"errors"
	"fmt"

	"github.com/mattjoyce/aoproc/internal/protocol"
)

//go:generate mockgen -destination=mocks/mock_store.go -package=mocks github.com/mattjoyce/aoproc/internal/action Store

// Store is the state access handlers need. *state.Store satisfies it.
type Store interface {
	Set(key, value string) error
	Get(key string) (string, bool, error)
	List() (map[string]string, error)
	Remove(key string) (bool, error)
	Clear() error
	Size() (int, error)
}

// HandlerFunc implements one action. A returned error is a handler failure;
// an Error-typed *Response is a normal outcome and is passed through as-is.
type HandlerFunc func(msg *protocol.Message, st Store) (*protocol.Response, error)

// Action names, in the order they are advertised to senders.
const (
	Info   = "Info"
	Set    = "Set"
	Get    = "Get"
	List   = "List"
	Remove = "Remove"
	Clear  = "Clear"
)

// Tag names read by the handlers.
const (
	TagAction = "Action"
	TagKey    = "Key"
)

// NotFound is returned as Get data for absent keys.
const NotFound = "Not found"

// DefaultProcessName is used in the Info greeting when none is configured.
const DefaultProcessName = "AO Process (Go)"

var (
	ErrKeyRequired   = errors.New("Key is required")
	ErrValueRequired = errors.New("Value is required")
)

// Names returns the supported actions in their advertised order.
func Names() []string {
	return []string{Info, Set, Get, List, Remove, Clear}
}

// Handlers returns the handler table keyed by action name. processName is
// used in the Info greeting; empty selects DefaultProcessName.
func Handlers(processName string) map[string]HandlerFunc {
	if processName == "" {
		processName = DefaultProcessName
	}
	return map[string]HandlerFunc{
		Info:   infoHandler(processName),
		Set:    handleSet,
		Get:    handleGet,
		List:   handleList,
		Remove: handleRemove,
		Clear:  handleClear,
	}
}

func requireKey(msg *protocol.Message) (string, error) {
	key, ok := msg.Tag(TagKey)
	if !ok {
		return "", ErrKeyRequired
	}
	return key, nil
}

// validKey reports whether key is non-empty and only [A-Za-z0-9_-].
func validKey(key string) bool {
	if key == "" {
		return false
	}
	for i := 0; i < len(key); i++ {
		c := key[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_', c == '-':
		default:
			return false
		}
	}
	return true
}

func infoHandler(processName string) HandlerFunc {
	return func(msg *protocol.Message, st Store) (*protocol.Response, error) {
		n, err := st.Size()
		if err != nil {
			return nil, err
		}
		data := fmt.Sprintf("Hello from %s! State entries: %d", processName, n)
		return protocol.NewResponse(msg.Sender(), "Info-Response", data), nil
	}
}

func handleSet(msg *protocol.Message, st Store) (*protocol.Response, error) {
	from := msg.Sender()

	key, err := requireKey(msg)
	if err != nil {
		return nil, err
	}
	value, ok := msg.Value()
	if !ok {
		return nil, ErrValueRequired
	}

	// Empty keys fall through to the store so the length error is reported.
	if key != "" && !validKey(key) {
		return protocol.ErrorResponse(from, "Invalid key format. Use alphanumeric characters, underscores, and hyphens only"), nil
	}

	if err := st.Set(key, value); err != nil {
		return nil, err
	}

	data := fmt.Sprintf("Successfully set %s to %s", key, value)
	return protocol.NewResponse(from, "Set-Response", data), nil
}

func handleGet(msg *protocol.Message, st Store) (*protocol.Response, error) {
	key, err := requireKey(msg)
	if err != nil {
		return nil, err
	}

	value, ok, err := st.Get(key)
	if err != nil {
		return nil, err
	}
	if !ok {
		value = NotFound
	}

	return protocol.NewResponse(msg.Sender(), "Get-Response", value).WithField(TagKey, key), nil
}

func handleList(msg *protocol.Message, st Store) (*protocol.Response, error) {
	snapshot, err := st.List()
	if err != nil {
		return nil, err
	}

	body, err := protocol.EncodeState(snapshot)
	if err != nil {
		return nil, err
	}

	return protocol.NewResponse(msg.Sender(), "List-Response", string(body)), nil
}

func handleRemove(msg *protocol.Message, st Store) (*protocol.Response, error) {
	key, err := requireKey(msg)
	if err != nil {
		return nil, err
	}

	removed, err := st.Remove(key)
	if err != nil {
		return nil, err
	}

	data := fmt.Sprintf("Key %s not found", key)
	if removed {
		data = fmt.Sprintf("Successfully removed %s", key)
	}
	return protocol.NewResponse(msg.Sender(), "Remove-Response", data), nil
}

func handleClear(msg *protocol.Message, st Store) (*protocol.Response, error) {
	if err := st.Clear(); err != nil {
		return nil, err
	}
	return protocol.NewResponse(msg.Sender(), "Clear-Response", "State cleared successfully"), nil
}
