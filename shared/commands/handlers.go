package commands

import (
	"context"
	"fmt"

	"github.com/draftea/organization-system/shared/lock"
)

// HandlerFunc performs the local mutation for a command. Expected business
// failures are returned as *Failure.
type HandlerFunc func(ctx context.Context, cmd *Command) (*Reply, error)

// PreLockFunc computes the aggregate a command must hold while it runs
type PreLockFunc func(cmd *Command) (lock.Target, error)

// Handler is one registered (channel, command type) handler
type Handler struct {
	channel     Channel
	commandType string
	fn          HandlerFunc
	preLock     PreLockFunc
}

func (h *Handler) Channel() Channel {
	return h.channel
}

func (h *Handler) CommandType() string {
	return h.commandType
}

// Handlers is the immutable handler set of one channel
type Handlers struct {
	channel  Channel
	handlers []*Handler
}

func (h *Handlers) Channel() Channel {
	return h.channel
}

// HandlersBuilder declares the commands a participant accepts on a channel
type HandlersBuilder struct {
	channel  Channel
	handlers []*Handler
	seen     map[string]struct{}
}

// FromChannel starts a handler declaration for channel
func FromChannel(channel Channel) *HandlersBuilder {
	return &HandlersBuilder{
		channel: channel,
		seen:    make(map[string]struct{}),
	}
}

// OnMessage registers fn for commandType. Registering a type twice panics.
func (b *HandlersBuilder) OnMessage(commandType string, fn HandlerFunc) *HandlersBuilder {
	if fn == nil {
		panic(fmt.Sprintf("commands: nil handler for %s on %s", commandType, b.channel))
	}
	if _, ok := b.seen[commandType]; ok {
		panic(fmt.Sprintf("commands: duplicate handler for %s on %s", commandType, b.channel))
	}
	b.seen[commandType] = struct{}{}

	b.handlers = append(b.handlers, &Handler{
		channel:     b.channel,
		commandType: commandType,
		fn:          fn,
	})
	return b
}

// WithPreLock attaches fn to the handler registered just before it
func (b *HandlersBuilder) WithPreLock(fn PreLockFunc) *HandlersBuilder {
	if len(b.handlers) == 0 {
		panic(fmt.Sprintf("commands: WithPreLock before any OnMessage on %s", b.channel))
	}

	last := b.handlers[len(b.handlers)-1]
	if last.preLock != nil {
		panic(fmt.Sprintf("commands: duplicate pre-lock for %s on %s", last.commandType, b.channel))
	}
	last.preLock = fn
	return b
}

func (b *HandlersBuilder) Build() *Handlers {
	handlers := make([]*Handler, len(b.handlers))
	copy(handlers, b.handlers)
	return &Handlers{channel: b.channel, handlers: handlers}
}
