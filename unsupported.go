//go:build !linux && !darwin

package fdwatch

type controlChannel struct{}

func newControlChannel() (*controlChannel, error) {
	return nil, ErrUnsupportedPlatform
}

func (*controlChannel) notify() error {
	return ErrControlChannelClosed
}

func (x *Watcher) run(w *worker) {
	close(w.done)
}
