package launch

import (
	"io"
	"sync"
)

// fixed size ring buffer holding the tail of a session's output.
// writers attached with Attach additionally get every write directly
type Log struct {
	direct map[io.Writer]bool
	buffer []byte
	w      int
	full   bool
	lock   sync.Mutex
}

func NewLog(size int) *Log {
	self := &Log{}
	self.direct = make(map[io.Writer]bool)
	self.buffer = make([]byte, size)
	return self
}

func (self *Log) Write(p []byte) (n int, err error) {

	self.lock.Lock()
	defer self.lock.Unlock()

	var orgsize = len(p)

	for d := range self.direct {
		_, err := d.Write(p)
		if err != nil {
			delete(self.direct, d)
		}
	}

	for {
		if self.w+len(p) < len(self.buffer) {
			copy(self.buffer[self.w:], p)
			self.w += len(p)
			return orgsize, nil
		}
		self.full = true
		space := len(self.buffer) - self.w
		copy(self.buffer[self.w:], p[:space])
		self.w = 0
		p = p[space:]
	}
}

// Dump writes the buffered tail, oldest first
func (self *Log) Dump(w io.Writer) {

	self.lock.Lock()
	defer self.lock.Unlock()

	if self.full {
		w.Write(self.buffer[self.w:])
	}
	w.Write(self.buffer[:self.w])
}

// Attach replays the buffered tail into w, then keeps w subscribed to
// every following write until it errors or is detached
func (self *Log) Attach(w io.Writer) {

	self.lock.Lock()
	defer self.lock.Unlock()

	if self.full {
		w.Write(self.buffer[self.w:])
	}
	w.Write(self.buffer[:self.w])

	self.direct[w] = true
}

func (self *Log) Detach(w io.Writer) {
	self.lock.Lock()
	defer self.lock.Unlock()
	delete(self.direct, w)
}
