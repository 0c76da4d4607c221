package transport

import (
	"bufio"
	"context"
	"io"
	"os"
	"sync"

	"golang.org/x/sync/errgroup"
)

// StdioTransport moves newline-delimited JSON messages over a reader/writer
// pair, by default the process's stdin and stdout. It is the conventional
// channel for command-line peers connected via pipes.
type StdioTransport struct {
	reader    io.Reader
	rawWriter *bufio.Writer

	mu           sync.Mutex
	receiver     ReceiveHandler
	errorHandler ErrorHandler

	done     chan struct{}
	stopOnce sync.Once
}

// StdioOption configures a StdioTransport.
type StdioOption func(*StdioTransport)

// WithStdioReader replaces stdin, primarily for tests.
func WithStdioReader(r io.Reader) StdioOption {
	return func(t *StdioTransport) {
		t.reader = r
	}
}

// WithStdioWriter replaces stdout, primarily for tests.
func WithStdioWriter(w io.Writer) StdioOption {
	return func(t *StdioTransport) {
		t.rawWriter = bufio.NewWriter(w)
	}
}

// NewStdio creates a stdio transport.
func NewStdio(opts ...StdioOption) *StdioTransport {
	t := &StdioTransport{
		reader:    os.Stdin,
		rawWriter: bufio.NewWriter(os.Stdout),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// SetReceiveHandler registers the handler for incoming lines.
func (t *StdioTransport) SetReceiveHandler(handler ReceiveHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.receiver = handler
}

// SetErrorHandler registers the handler for read-loop failures.
func (t *StdioTransport) SetErrorHandler(handler ErrorHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.errorHandler = handler
}

// Start reads newline-delimited messages until EOF, Stop, or context
// cancellation. Each complete line is handed to the receive handler in
// arrival order.
func (t *StdioTransport) Start(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	scanner := bufio.NewScanner(t.reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	scannerDone := make(chan struct{})

	g.Go(func() error {
		defer close(scannerDone)
		for scanner.Scan() {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case <-t.done:
				return nil
			default:
			}

			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}
			// Copy: the scanner reuses its buffer on the next Scan.
			data := make([]byte, len(line))
			copy(data, line)

			t.mu.Lock()
			receiver := t.receiver
			t.mu.Unlock()
			if receiver != nil {
				receiver(data)
			}
		}
		if err := scanner.Err(); err != nil && err != io.EOF {
			t.reportError(err)
			return err
		}
		return nil
	})

	g.Go(func() error {
		select {
		case <-gctx.Done():
			t.closeReader()
			return gctx.Err()
		case <-t.done:
			t.closeReader()
			return nil
		case <-scannerDone:
			return nil
		}
	})

	err := g.Wait()
	if err == context.Canceled {
		return nil
	}
	return err
}

// Stop halts the read loop and flushes buffered output.
func (t *StdioTransport) Stop(ctx context.Context) error {
	var flushErr error
	t.stopOnce.Do(func() {
		close(t.done)
		t.mu.Lock()
		flushErr = t.rawWriter.Flush()
		t.mu.Unlock()
	})
	return flushErr
}

// Send writes one message payload followed by a newline and flushes, so a
// line is always a complete message on the wire.
func (t *StdioTransport) Send(ctx context.Context, data []byte) error {
	select {
	case <-t.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, err := t.rawWriter.Write(data); err != nil {
		return err
	}
	if err := t.rawWriter.WriteByte('\n'); err != nil {
		return err
	}
	return t.rawWriter.Flush()
}

func (t *StdioTransport) closeReader() {
	// Unblocks scanner.Scan when the reader supports it.
	if closer, ok := t.reader.(io.Closer); ok {
		_ = closer.Close()
	}
}

func (t *StdioTransport) reportError(err error) {
	t.mu.Lock()
	handler := t.errorHandler
	t.mu.Unlock()
	if handler != nil {
		handler(err)
	}
}
