package host

import (
	"encoding/json"
	"errors"
	"io"
	"sync"

	log "github.com/sirupsen/logrus"
)

// outbox serializes frames onto the writer without blocking senders.
type outbox struct {
	w      io.Writer
	logger *log.Entry

	mu     sync.Mutex
	queue  [][]byte
	closed bool
	notify chan struct{}
}

func newOutbox(w io.Writer) *outbox {
	return &outbox{
		w:      w,
		logger: log.WithFields(log.Fields{"prefix": "host"}),
		notify: make(chan struct{}, 1),
	}
}

// send queues m. Messages sent after close are dropped.
func (o *outbox) send(m Message) {
	data, err := json.Marshal(m)
	if err != nil {
		o.logger.WithError(err).WithField("type", m.Type).Error("encoding message failed")
		return
	}
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.queue = append(o.queue, data)
	o.mu.Unlock()
	o.wake()
}

func (o *outbox) close() {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
	o.wake()
}

func (o *outbox) wake() {
	select {
	case o.notify <- struct{}{}:
	default:
	}
}

// run writes queued frames until close and the queue drains. After a write
// error the remaining frames are discarded. Oversized frames are dropped.
func (o *outbox) run() {
	broken := false
	for {
		o.mu.Lock()
		batch, closed := o.queue, o.closed
		o.queue = nil
		o.mu.Unlock()

		if len(batch) == 0 {
			if closed {
				return
			}
			<-o.notify
			continue
		}
		for _, data := range batch {
			if broken {
				continue
			}
			err := WriteFrame(o.w, data)
			switch {
			case errors.Is(err, ErrFrameTooLarge):
				o.logger.WithField("size", len(data)).Error("dropping oversized frame")
			case err != nil:
				o.logger.WithError(err).Error("writing frame failed")
				broken = true
			}
		}
	}
}
