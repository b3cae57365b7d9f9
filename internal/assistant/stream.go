package assistant

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const doneMarker = "[DONE]"

// StreamError is a failure after the stream was established. Partial holds
// what arrived before it.
type StreamError struct {
	Partial string
	Err     error
}

func (e *StreamError) Error() string {
	if e.Partial != "" {
		return fmt.Sprintf("stream error (partial content received: %d chars): %v", len(e.Partial), e.Err)
	}
	return fmt.Sprintf("stream error: %v", e.Err)
}

func (e *StreamError) Unwrap() error {
	return e.Err
}

// ConnectError is a failure before any event was read.
type ConnectError struct {
	Err error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect: %v", e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// SSEReader parses server-sent events.
type SSEReader struct {
	reader *bufio.Reader
}

func NewSSEReader(r io.Reader) *SSEReader {
	return &SSEReader{reader: bufio.NewReader(r)}
}

// ReadEvent returns the next event type and data. Multi-line data is joined
// with newlines. It returns io.EOF when the stream ends.
func (s *SSEReader) ReadEvent() (string, []byte, error) {
	var eventType string
	var dataLines [][]byte

	for {
		line, err := s.reader.ReadBytes('\n')
		atEOF := err == io.EOF && len(line) > 0
		if err != nil && !atEOF {
			if err == io.EOF {
				if len(dataLines) > 0 {
					return eventType, bytes.Join(dataLines, []byte("\n")), nil
				}
				return "", nil, io.EOF
			}
			return "", nil, err
		}

		line = bytes.TrimRight(line, "\r\n")

		// Empty line ends an event
		if len(line) == 0 {
			if len(dataLines) > 0 {
				return eventType, bytes.Join(dataLines, []byte("\n")), nil
			}
			eventType = ""
			continue
		}

		switch {
		case bytes.HasPrefix(line, []byte("event:")):
			eventType = string(bytes.TrimSpace(line[len("event:"):]))
		case bytes.HasPrefix(line, []byte("data:")):
			data := line[len("data:"):]
			// Only one leading space belongs to the field syntax; model
			// text chunks keep the rest.
			data = bytes.TrimPrefix(data, []byte(" "))
			dataLines = append(dataLines, append([]byte(nil), data...))
		}
		// id:, retry: and comments are ignored

		if atEOF {
			if len(dataLines) > 0 {
				return eventType, bytes.Join(dataLines, []byte("\n")), nil
			}
			return "", nil, io.EOF
		}
	}
}

// decodeChunk accepts {"text": ...}, a JSON string, or raw text.
func decodeChunk(data []byte) string {
	var obj struct {
		Text *string `json:"text"`
	}
	if json.Unmarshal(data, &obj) == nil && obj.Text != nil {
		return *obj.Text
	}
	var s string
	if json.Unmarshal(data, &s) == nil {
		return s
	}
	return string(data)
}

type StreamRequest struct {
	Prompt      string  `json:"prompt"`
	Model       string  `json:"model"`
	WebSearch   bool    `json:"webSearch"`
	Temperature float64 `json:"temperature"`
}

// Stream posts req and calls onChunk for every text chunk until the server
// sends [DONE] or closes the stream.
func (c *Client) Stream(ctx context.Context, req StreamRequest, onChunk func(string)) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/stream", bytes.NewReader(body))
	if err != nil {
		return &ConnectError{Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	c.authorize(httpReq)

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return &ConnectError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &ConnectError{Err: fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))}
	}

	reader := NewSSEReader(resp.Body)
	var partial strings.Builder
	chunks := 0
	for {
		eventType, data, err := reader.ReadEvent()
		if err == io.EOF {
			c.logger.Debug("Stream closed by server", "chunks", chunks, "elapsed", time.Since(start))
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				err = ctx.Err()
			}
			return &StreamError{Partial: partial.String(), Err: err}
		}
		if eventType == "error" {
			return &StreamError{Partial: partial.String(), Err: errors.New(decodeChunk(data))}
		}
		if string(data) == doneMarker {
			c.logger.Debug("Stream finished", "chunks", chunks, "elapsed", time.Since(start))
			return nil
		}

		text := decodeChunk(data)
		partial.WriteString(text)
		chunks++
		if onChunk != nil {
			onChunk(text)
		}
	}
}
