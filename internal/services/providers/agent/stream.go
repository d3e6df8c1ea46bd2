package agent

import (
	"bufio"
	"io"

	"github.com/contextads/chat-service/internal/services/providers"
)

// streamReader adapts a line-oriented agent response body to the chunk
// stream contract. It emits a start marker, one content chunk per line
// and a final done marker.
type streamReader struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	started bool
	done    bool
}

func newStreamReader(body io.ReadCloser) *streamReader {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &streamReader{
		body:    body,
		scanner: scanner,
	}
}

func (r *streamReader) Read() (*providers.StreamChunk, error) {
	if !r.started {
		r.started = true
		return &providers.StreamChunk{Type: providers.ChunkTypeStart}, nil
	}

	if r.done {
		return nil, io.EOF
	}

	if r.scanner.Scan() {
		return &providers.StreamChunk{
			Type:    providers.ChunkTypeContent,
			Content: r.scanner.Text() + "\n",
		}, nil
	}

	r.done = true
	if err := r.scanner.Err(); err != nil {
		return &providers.StreamChunk{Type: providers.ChunkTypeError, Err: err}, nil
	}
	return &providers.StreamChunk{Type: providers.ChunkTypeDone}, nil
}

func (r *streamReader) Close() error {
	return r.body.Close()
}
