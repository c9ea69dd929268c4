package transport

import (
	"fmt"
	"sync"
)

// bufferSize is large enough for any mDNS UDP payload; the wire codec's own
// 4000-octet core limit and the daemon's smaller emission cap are both well
// under it.
const bufferSize = 65536

var buffers = sync.Pool{
	New: func() interface{} {
		return make([]byte, bufferSize)
	},
}

func getBuffer() []byte {
	return buffers.Get().([]byte)
}

func putBuffer(buf []byte) {
	if cap(buf) >= bufferSize {
		buffers.Put(buf[:bufferSize])
	}
}

func errFrameTooLarge(got, limit int) error {
	return fmt.Errorf("transport: packet of %d octets exceeds frame size of %d octets", got, limit)
}
