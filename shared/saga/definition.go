package saga

import (
	"context"
	"fmt"

	"github.com/draftea/organization-system/shared/commands"
	"github.com/draftea/organization-system/shared/events"
)

// StepKind tells local steps from participant steps
type StepKind int

const (
	StepLocal StepKind = iota + 1
	StepParticipant
)

func (k StepKind) String() string {
	switch k {
	case StepLocal:
		return "LOCAL"
	case StepParticipant:
		return "PARTICIPANT"
	default:
		return "UNDEFINED"
	}
}

// Typed callbacks a saga declares. S is the saga state struct; each instance
// owns its own S and hands it to one callback at a time.
type (
	LocalAction[S any]       func(ctx context.Context, state *S) error
	ExceptionHandler[S any]  func(ctx context.Context, state *S, err error)
	CommandBuilder[S any]    func(state *S) (interface{}, error)
	ReplyHandler[S any]      func(ctx context.Context, state *S, reply *commands.Reply) error
	CompletionHandler[S any] func(ctx context.Context, state *S) (interface{}, error)
)

type exceptionHandler struct {
	target error
	handle func(ctx context.Context, state interface{}, err error)
}

type compensation struct {
	endpoint commands.Endpoint
	command  func(state interface{}) (interface{}, error)
}

type step struct {
	name         string
	kind         StepKind
	local        func(ctx context.Context, state interface{}) error
	exceptions   []exceptionHandler
	rollbackOn   []error
	endpoint     commands.Endpoint
	command      func(state interface{}) (interface{}, error)
	replies      map[string]func(ctx context.Context, state interface{}, reply *commands.Reply) error
	compensation *compensation
}

// Definition is the immutable, ordered step list of one saga type
type Definition struct {
	sagaType    string
	lifecycle   events.LifecycleTypes
	steps       []step
	newState    func() interface{}
	accepts     func(state interface{}) bool
	onCompleted func(ctx context.Context, state interface{}) (interface{}, error)
}

func (d *Definition) SagaType() string {
	return d.sagaType
}

func (d *Definition) Lifecycle() events.LifecycleTypes {
	return d.lifecycle
}

// Len returns the number of steps
func (d *Definition) Len() int {
	return len(d.steps)
}

// StepName returns the declared name of step i
func (d *Definition) StepName(i int) string {
	if i < 0 || i >= len(d.steps) {
		return ""
	}
	return d.steps[i].name
}

// StepKind returns the kind of step i
func (d *Definition) StepKind(i int) StepKind {
	if i < 0 || i >= len(d.steps) {
		return 0
	}
	return d.steps[i].kind
}

// Builder declares a saga one step at a time. Structural mistakes are
// programmer errors and panic.
type Builder[S any] struct {
	sagaType    string
	lifecycle   events.LifecycleTypes
	steps       []*step
	onCompleted CompletionHandler[S]
}

// NewBuilder starts the definition of sagaType
func NewBuilder[S any](sagaType string, lifecycle events.LifecycleTypes) *Builder[S] {
	if sagaType == "" {
		panic("saga: empty saga type")
	}
	return &Builder[S]{sagaType: sagaType, lifecycle: lifecycle}
}

// Step begins a new step
func (b *Builder[S]) Step(name string) *Builder[S] {
	b.steps = append(b.steps, &step{name: name})
	return b
}

func (b *Builder[S]) current(op string) *step {
	if len(b.steps) == 0 {
		panic(fmt.Sprintf("saga %s: %s called before Step", b.sagaType, op))
	}
	return b.steps[len(b.steps)-1]
}

func (b *Builder[S]) setAction(op string, kind StepKind) *step {
	s := b.current(op)
	if s.kind != 0 {
		panic(fmt.Sprintf("saga %s: step %q already has a %s action", b.sagaType, s.name, s.kind))
	}
	s.kind = kind
	return s
}

// InvokeLocal makes the current step run fn inline
func (b *Builder[S]) InvokeLocal(fn LocalAction[S]) *Builder[S] {
	if fn == nil {
		panic(fmt.Sprintf("saga %s: nil local action", b.sagaType))
	}
	s := b.setAction("InvokeLocal", StepLocal)
	s.local = func(ctx context.Context, state interface{}) error {
		return fn(ctx, state.(*S))
	}
	return b
}

// InvokeParticipant makes the current step send the command built by fn to endpoint
func (b *Builder[S]) InvokeParticipant(endpoint commands.Endpoint, fn CommandBuilder[S]) *Builder[S] {
	if fn == nil {
		panic(fmt.Sprintf("saga %s: missing command builder for %s", b.sagaType, endpoint.CommandType))
	}
	if endpoint.Channel == "" || endpoint.CommandType == "" {
		panic(fmt.Sprintf("saga %s: incomplete endpoint %+v", b.sagaType, endpoint))
	}
	s := b.setAction("InvokeParticipant", StepParticipant)
	s.endpoint = endpoint
	s.command = wrapCommandBuilder(fn)
	s.replies = make(map[string]func(ctx context.Context, state interface{}, reply *commands.Reply) error)
	return b
}

// OnReply registers fn for replies tagged tag on the current participant step
func (b *Builder[S]) OnReply(tag string, fn ReplyHandler[S]) *Builder[S] {
	s := b.current("OnReply")
	if s.kind != StepParticipant {
		panic(fmt.Sprintf("saga %s: OnReply on non participant step %q", b.sagaType, s.name))
	}
	if fn == nil {
		panic(fmt.Sprintf("saga %s: nil reply handler for %s", b.sagaType, tag))
	}
	if _, ok := s.replies[tag]; ok {
		panic(fmt.Sprintf("saga %s: duplicate reply handler for %s", b.sagaType, tag))
	}
	s.replies[tag] = func(ctx context.Context, state interface{}, reply *commands.Reply) error {
		return fn(ctx, state.(*S), reply)
	}
	return b
}

// OnException runs fn when the current local step fails with an error matching target
func (b *Builder[S]) OnException(target error, fn ExceptionHandler[S]) *Builder[S] {
	s := b.current("OnException")
	if s.kind != StepLocal {
		panic(fmt.Sprintf("saga %s: OnException on non local step %q", b.sagaType, s.name))
	}
	if target == nil || fn == nil {
		panic(fmt.Sprintf("saga %s: incomplete exception handler on %q", b.sagaType, s.name))
	}
	for _, h := range s.exceptions {
		if h.target == target {
			panic(fmt.Sprintf("saga %s: duplicate exception handler for %v", b.sagaType, target))
		}
	}
	s.exceptions = append(s.exceptions, exceptionHandler{
		target: target,
		handle: func(ctx context.Context, state interface{}, err error) {
			fn(ctx, state.(*S), err)
		},
	})
	return b
}

// OnExceptionRollback compensates completed prior steps when the current
// local step fails with an error matching target
func (b *Builder[S]) OnExceptionRollback(target error) *Builder[S] {
	s := b.current("OnExceptionRollback")
	if s.kind != StepLocal {
		panic(fmt.Sprintf("saga %s: OnExceptionRollback on non local step %q", b.sagaType, s.name))
	}
	if target == nil {
		panic(fmt.Sprintf("saga %s: nil rollback exception on %q", b.sagaType, s.name))
	}
	s.rollbackOn = append(s.rollbackOn, target)
	return b
}

// WithCompensation attaches an undo command to the current participant step
func (b *Builder[S]) WithCompensation(endpoint commands.Endpoint, fn CommandBuilder[S]) *Builder[S] {
	s := b.current("WithCompensation")
	if s.kind != StepParticipant {
		panic(fmt.Sprintf("saga %s: WithCompensation on non participant step %q", b.sagaType, s.name))
	}
	if s.compensation != nil {
		panic(fmt.Sprintf("saga %s: duplicate compensation on %q", b.sagaType, s.name))
	}
	if fn == nil {
		panic(fmt.Sprintf("saga %s: missing undo command builder for %s", b.sagaType, endpoint.CommandType))
	}
	s.compensation = &compensation{endpoint: endpoint, command: wrapCommandBuilder(fn)}
	return b
}

// OnCompleted computes the Success event payload once every step finished
func (b *Builder[S]) OnCompleted(fn CompletionHandler[S]) *Builder[S] {
	b.onCompleted = fn
	return b
}

// Build validates the declaration and returns the immutable definition
func (b *Builder[S]) Build() *Definition {
	if len(b.steps) == 0 {
		panic(fmt.Sprintf("saga %s: no steps", b.sagaType))
	}

	steps := make([]step, len(b.steps))
	for i, s := range b.steps {
		switch s.kind {
		case StepLocal:
		case StepParticipant:
			if len(s.replies) == 0 {
				panic(fmt.Sprintf("saga %s: participant step %q has no reply handler", b.sagaType, s.name))
			}
			if _, ok := s.replies[commands.SuccessReplyType(s.endpoint.CommandType)]; !ok {
				panic(fmt.Sprintf("saga %s: participant step %q has no handler for %s",
					b.sagaType, s.name, commands.SuccessReplyType(s.endpoint.CommandType)))
			}
		default:
			panic(fmt.Sprintf("saga %s: step %q has no action", b.sagaType, s.name))
		}

		steps[i] = *s
		steps[i].exceptions = append([]exceptionHandler(nil), s.exceptions...)
		steps[i].rollbackOn = append([]error(nil), s.rollbackOn...)
		if s.replies != nil {
			steps[i].replies = make(map[string]func(ctx context.Context, state interface{}, reply *commands.Reply) error, len(s.replies))
			for tag, fn := range s.replies {
				steps[i].replies[tag] = fn
			}
		}
	}

	def := &Definition{
		sagaType:  b.sagaType,
		lifecycle: b.lifecycle,
		steps:     steps,
		newState: func() interface{} {
			return new(S)
		},
		accepts: func(state interface{}) bool {
			_, ok := state.(*S)
			return ok
		},
	}

	if b.onCompleted != nil {
		onCompleted := b.onCompleted
		def.onCompleted = func(ctx context.Context, state interface{}) (interface{}, error) {
			return onCompleted(ctx, state.(*S))
		}
	}

	return def
}

func wrapCommandBuilder[S any](fn CommandBuilder[S]) func(state interface{}) (interface{}, error) {
	return func(state interface{}) (interface{}, error) {
		return fn(state.(*S))
	}
}
