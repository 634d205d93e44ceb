package disposable

import "sync"

type Disposable interface {
	Dispose()
}

// NewDisposable returns a Disposable running fn at most once.
func NewDisposable(fn func()) Disposable {
	return &disposableImp{fn: fn}
}

type disposableImp struct {
	once sync.Once
	fn   func()
}

func (d *disposableImp) Dispose() {
	d.once.Do(d.fn)
}

func NewCompositeDisposable(delegates ...Disposable) Disposable {
	return NewDisposable(func() {
		for _, d := range delegates {
			d.Dispose()
		}
	})
}
