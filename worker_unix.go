//go:build linux || darwin

package fdwatch

import (
	"golang.org/x/sys/unix"
)

// run is the worker goroutine. It owns w.ctl, closing it on exit.
func (x *Watcher) run(w *worker) {
	w.gid.Store(goroutineID())

	defer func() {
		if err := w.ctl.close(); err != nil {
			x.logger.Err().Err(err).Log("failed to close control channel")
		}
		close(w.done)
		x.logger.Info().Log("worker exited")
	}()

	// at most one worker runs callbacks at a time
	if prev := w.prev.Load(); prev != nil {
		<-prev.done
		w.prev.Store(nil)
	}

	x.logger.Info().Log("worker started")

	var set waitSet
	// registrations the OS reported as invalid, skipped until replaced
	invalid := make(map[int]*watchEntry)

	for !w.quit.Load() {
		x.poll(w, &set, invalid)
	}
}

// poll performs a single wait and dispatch iteration.
func (x *Watcher) poll(w *worker, set *waitSet, invalid map[int]*watchEntry) {
	x.snapshot(w, set, invalid)

	n, err := set.wait(x.timeoutDuration())
	if err != nil {
		x.metrics.waitErrors.Add(1)
		x.logger.Err().
			Limit().
			Err(err).
			Int("descriptors", len(set.entries)).
			Log("readiness wait failed")
		return
	}

	if w.quit.Load() {
		return
	}

	if n == 0 {
		x.fireTimeout()
		return
	}

	if set.controlReady() {
		w.ctl.drain()
		x.metrics.wakeups.Add(1)
		return
	}

	x.dispatch(w, set, invalid)
}

// snapshot rebuilds the wait set from the current registrations.
func (x *Watcher) snapshot(w *worker, set *waitSet, invalid map[int]*watchEntry) {
	set.reset(w.ctl.readFD)

	x.watchMu.Lock()
	defer x.watchMu.Unlock()

	for fd, entry := range invalid {
		if x.watched[fd] != entry {
			delete(invalid, fd)
		}
	}

	for fd, entry := range x.watched {
		if _, ok := invalid[fd]; ok {
			continue
		}
		set.add(entry)
	}
}

// dispatch invokes the current callback of every ready descriptor.
func (x *Watcher) dispatch(w *worker, set *waitSet, invalid map[int]*watchEntry) {
	ready := w.ready[:0]
	var rejected []int

	x.watchMu.Lock()
	for i, entry := range set.entries {
		revents := set.fds[i+1].Revents
		switch {
		case revents&unix.POLLNVAL != 0:
			if x.watched[entry.fd] == entry {
				invalid[entry.fd] = entry
				rejected = append(rejected, entry.fd)
			}
		case revents&readableEvents != 0:
			if current := x.watched[entry.fd]; current != nil {
				ready = append(ready, current)
			}
		}
	}
	x.watchMu.Unlock()

	for _, fd := range rejected {
		x.logger.Warning().
			Int("fd", fd).
			Log("ignoring invalid file descriptor until it is watched again")
	}

	for i, entry := range ready {
		ready[i] = nil
		if entry.onReadable == nil {
			continue
		}
		if w.quit.Load() {
			// stopped by an earlier callback in this batch
			continue
		}
		x.metrics.dispatches.Add(1)
		entry.onReadable(entry.fd)
	}

	w.ready = ready[:0]
}
