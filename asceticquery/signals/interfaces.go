package signals

import (
	"github.com/krew-solutions/ascetic-query-go/asceticquery/disposable"
)

// Observer receives events. An error does not stop delivery to the remaining observers.
type Observer[E any] func(E) error

type Signal[E any] interface {
	Attach(observer Observer[E], observerID ...any) disposable.Disposable
	Detach(observer Observer[E], observerID ...any)
	Notify(event E) error
}
