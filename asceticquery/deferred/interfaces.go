package deferred

type Deferred[T any] interface {
	Resolve(T)
	Reject(error)
	Then(func(T) (any, error), func(error) (any, error)) Deferred[any]
	// Done is closed once the deferred is resolved or rejected.
	Done() <-chan struct{}
	// Settled returns the resolution value or the rejection error.
	// It is meaningful only after Done is closed.
	Settled() (T, error)
}
