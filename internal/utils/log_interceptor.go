package utils

import (
	"bytes"
	"io"
	"log/slog"
	"sync/atomic"
	"time"
)

// LogInterceptor implements io.Writer, prefixing every line written to it
// with a monotonic sequence number and timestamp before forwarding it to
// target. Used for the client's file-backed log, which (unlike the
// terminal handler) has no other way to tell writes apart once rotated.
type LogInterceptor struct {
	target         io.Writer
	sequenceNumber *atomic.Uint64
	buf            *bytes.Buffer
}

// NewLogInterceptor builds a LogInterceptor writing to target.
func NewLogInterceptor(target io.Writer) *LogInterceptor {
	return &LogInterceptor{
		target:         target,
		sequenceNumber: &atomic.Uint64{},
		buf:            &bytes.Buffer{},
	}
}

func (i *LogInterceptor) writeLine(line []byte) (int, error) {
	lineNum := i.sequenceNumber.Add(1)
	total := 0

	n, err := io.WriteString(i.target, slog.Uint64("line", lineNum).String()+" ")
	total += n
	if err != nil {
		return total, err
	}

	n, err = io.WriteString(i.target, slog.String("time", time.Now().Format(time.RFC3339)).String()+" ")
	total += n
	if err != nil {
		return total, err
	}

	n, err = i.target.Write(line)
	total += n
	return total, err
}

// Write implements io.Writer, buffering p and flushing complete lines.
func (i *LogInterceptor) Write(p []byte) (int, error) {
	if _, err := i.buf.Write(p); err != nil {
		return 0, err
	}

	total := 0
	for {
		idx := bytes.IndexByte(i.buf.Bytes(), '\n')
		if idx < 0 {
			break
		}
		n, err := i.writeLine(i.buf.Next(idx + 1))
		total += n
		if err != nil {
			return total, err
		}
	}
	return len(p), nil
}

// Close flushes any partial final line still buffered.
func (i *LogInterceptor) Close() error {
	if i.buf.Len() == 0 {
		return nil
	}
	remaining := i.buf.Bytes()
	i.buf.Reset()
	_, err := i.writeLine(remaining)
	return err
}
