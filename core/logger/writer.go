package logger

import (
	"bufio"
	"errors"
	"io"
	"sync"
)

// asyncWriter provides buffered asynchronous writes to one or more sinks.
type asyncWriter struct {
	queue    chan []byte
	flushReq chan chan error
	done     chan struct{}
	once     sync.Once
	sinks    []*bufio.Writer
	errMu    sync.Mutex
	writeErr error
}

func newAsyncWriter(writers []io.Writer, bufSize int) *asyncWriter {
	if bufSize <= 0 {
		bufSize = 64 * 1024
	}
	sinks := make([]*bufio.Writer, 0, len(writers))
	for _, w := range writers {
		if w == nil {
			continue
		}
		sinks = append(sinks, bufio.NewWriterSize(w, bufSize))
	}
	aw := &asyncWriter{
		queue:    make(chan []byte, 256),
		flushReq: make(chan chan error),
		done:     make(chan struct{}),
		sinks:    sinks,
	}
	go aw.loop()
	return aw
}

func (w *asyncWriter) loop() {
	defer close(w.done)
	for {
		select {
		case data, ok := <-w.queue:
			if !ok {
				w.flushSinks()
				return
			}
			w.writeSinks(data)
		case reply := <-w.flushReq:
			// Drain anything already queued before flushing.
			for {
				select {
				case data, ok := <-w.queue:
					if !ok {
						reply <- w.flushSinks()
						return
					}
					w.writeSinks(data)
					continue
				default:
				}
				break
			}
			reply <- w.flushSinks()
		}
	}
}

func (w *asyncWriter) writeSinks(data []byte) {
	for _, sink := range w.sinks {
		if _, err := sink.Write(data); err != nil {
			w.recordErr(err)
		}
	}
}

func (w *asyncWriter) flushSinks() error {
	var errs []error
	for _, sink := range w.sinks {
		if err := sink.Flush(); err != nil {
			errs = append(errs, err)
		}
	}
	err := errors.Join(errs...)
	if err != nil {
		w.recordErr(err)
	}
	return err
}

func (w *asyncWriter) recordErr(err error) {
	w.errMu.Lock()
	if w.writeErr == nil {
		w.writeErr = err
	}
	w.errMu.Unlock()
}

// Write queues a record for asynchronous delivery. The slice is copied,
// so callers may reuse their buffer immediately.
func (w *asyncWriter) Write(p []byte) (int, error) {
	data := make([]byte, len(p))
	copy(data, p)
	select {
	case <-w.done:
		return 0, io.ErrClosedPipe
	case w.queue <- data:
		return len(p), nil
	}
}

// Flush forces buffered data out to the underlying sinks.
func (w *asyncWriter) Flush() error {
	reply := make(chan error, 1)
	select {
	case <-w.done:
		w.errMu.Lock()
		defer w.errMu.Unlock()
		return w.writeErr
	case w.flushReq <- reply:
		return <-reply
	}
}

// Close stops the writer loop after draining queued records.
func (w *asyncWriter) Close() error {
	w.once.Do(func() {
		close(w.queue)
	})
	<-w.done
	w.errMu.Lock()
	defer w.errMu.Unlock()
	return w.writeErr
}
