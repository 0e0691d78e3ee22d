package core

import (
	"errors"
	"sort"

	"github.com/02alexander/robby-fischer/protocol"
)

var ErrUnknownCommand = errors.New("unknown command")

// CommandHandler runs one decoded command. A nil response means nothing is
// written back.
type CommandHandler func(cmd protocol.Command) (protocol.Response, error)

// CommandRegistry maps command tokens to their handlers. It is filled once at
// startup and only read from the main loop afterwards.
type CommandRegistry struct {
	handlers map[string]CommandHandler
}

// NewCommandRegistry creates an empty registry
func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{
		handlers: make(map[string]CommandHandler),
	}
}

// Register binds handler to token, replacing any earlier handler
func (r *CommandRegistry) Register(token string, handler CommandHandler) {
	r.handlers[token] = handler
}

// Dispatch calls the handler registered for cmd's token
func (r *CommandRegistry) Dispatch(cmd protocol.Command) (protocol.Response, error) {
	h, ok := r.handlers[cmd.Token()]
	if !ok || h == nil {
		return nil, ErrUnknownCommand
	}
	return h(cmd)
}

// Count returns the number of registered commands
func (r *CommandRegistry) Count() int {
	return len(r.handlers)
}

// Tokens returns the registered tokens in sorted order
func (r *CommandRegistry) Tokens() []string {
	tokens := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		tokens = append(tokens, t)
	}
	sort.Strings(tokens)
	return tokens
}
