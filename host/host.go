// Package host defines the boundary between nodes and the user callables they run.
//
// A callable receives the node it runs in as a Self and the current input, if
// any, as its arguments. nil is the universal "no value"; returning a
// token.Token is a control signal; anything else is a payload.
package host

// Self is the view of its node a callable may use while it runs.
type Self interface {
	// Name of the node.
	Name() string
	// SendOut emits v through the node's default output policy.
	// Tokens are broadcast on every output.
	SendOut(v any) error
	// SendOutTo emits v on output idx. Only multi-output nodes support it.
	SendOutTo(v any, idx int) error
	// Channel is the index of the input the current value arrived on,
	// -1 when the step has no input. Only multi-input nodes report it.
	Channel() int
	// Outputs is the number of outputs connected in the current run.
	Outputs() int
}

// Callable is a user supplied function run by a node.
type Callable interface {
	Call(self Self, args ...any) (any, error)
}

// Func adapts an ordinary function to a Callable.
type Func func(self Self, args ...any) (any, error)

func (f Func) Call(self Self, args ...any) (any, error) {
	return f(self, args...)
}

func arg(args []any) any {
	if len(args) == 0 {
		return nil
	}
	return args[0]
}

// StepFunc adapts a function of the current input.
func StepFunc(f func(in any) (any, error)) Callable {
	return Func(func(_ Self, args ...any) (any, error) {
		return f(arg(args))
	})
}

// SourceFunc adapts a function that takes no input.
func SourceFunc(f func() (any, error)) Callable {
	return Func(func(Self, ...any) (any, error) {
		return f()
	})
}

// SinkFunc adapts a function that consumes its input and returns nothing.
func SinkFunc(f func(in any) error) Callable {
	return Func(func(_ Self, args ...any) (any, error) {
		return nil, f(arg(args))
	})
}

// InitFunc adapts an init or finalize function.
func InitFunc(f func() error) Callable {
	return Func(func(Self, ...any) (any, error) {
		return nil, f()
	})
}

// EOSFunc adapts an end-of-stream handler. src is the input that ended.
func EOSFunc(f func(src int) error) Callable {
	return Func(func(_ Self, args ...any) (any, error) {
		src, _ := arg(args).(int)
		return nil, f(src)
	})
}
