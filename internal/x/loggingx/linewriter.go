package loggingx

import (
	"bytes"
	"sync"

	"github.com/dogmatiq/dodeca/logging"
)

// LineWriter is an io.Writer that logs each line written to it.
type LineWriter struct {
	Target logging.Logger

	m   sync.Mutex
	buf bytes.Buffer
}

// Write logs every complete line in data, buffering any trailing partial line.
func (w *LineWriter) Write(data []byte) (int, error) {
	w.m.Lock()
	defer w.m.Unlock()

	w.buf.Write(data)

	for {
		i := bytes.IndexByte(w.buf.Bytes(), '\n')
		if i == -1 {
			break
		}

		line := w.buf.Next(i + 1)
		w.log(line[:i])
	}

	return len(data), nil
}

// Flush logs any buffered partial line.
func (w *LineWriter) Flush() {
	w.m.Lock()
	defer w.m.Unlock()

	if w.buf.Len() > 0 {
		w.log(w.buf.Bytes())
		w.buf.Reset()
	}
}

func (w *LineWriter) log(line []byte) {
	line = bytes.TrimSuffix(line, []byte("\r"))
	logging.LogString(w.Target, string(line))
}
