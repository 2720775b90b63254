package testrun

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"io"
)

// Parser parses the line-delimited JSON written by `go test -json`.
//
// The channel returned by Parse is closed when:
//   - EOF is reached (normal completion)
//   - The underlying reader is closed
//   - An unrecoverable read error occurs
//
// Lines that are not JSON are skipped. go test interleaves plain build
// output (compiler errors, "no test files") with the event stream.
type Parser interface {
	// Parse reads test2json output from the given reader and returns a channel of [TestEvent] objects.
	Parse(reader io.Reader) <-chan TestEvent
}

// DefaultParser implements [Parser] with a buffered line reader.
//
// Create instances using [NewParser] rather than constructing directly to ensure
// proper default values.
type DefaultParser struct {
	// BufferSize is the maximum size in bytes for a single JSON line.
	// Longer lines are discarded and parsing continues with the next line.
	// Defaults to 1MB if not set or <= 0.
	BufferSize int
}

// NewParser creates a new [DefaultParser] with default settings.
func NewParser() *DefaultParser {
	return &DefaultParser{
		BufferSize: 1024 * 1024, // 1MB
	}
}

// Parse reads test2json output from the reader and emits decoded [TestEvent] objects.
//
// Parse spawns a goroutine that reads lines from the reader, decodes each one
// and sends it to the returned channel. The channel is unbuffered, so the
// caller must drain it. Read errors end the stream silently; use
// [DefaultParser.ParseWithErr] to observe them.
func (p *DefaultParser) Parse(reader io.Reader) <-chan TestEvent {
	events, _ := p.ParseWithErr(reader)
	return events
}

// ParseWithErr is like [DefaultParser.Parse] but also returns a function
// reporting the read error that ended the stream, if any. It must only be
// called after the channel is closed.
//
// Lines longer than BufferSize are skipped. go test only writes results as
// short lines, so an oversized line is always captured test output.
func (p *DefaultParser) ParseWithErr(reader io.Reader) (<-chan TestEvent, func() error) {
	events := make(chan TestEvent)
	var readErr error

	bufSize := p.BufferSize
	if bufSize <= 0 {
		bufSize = 1024 * 1024
	}

	go func() {
		defer close(events)

		br := bufio.NewReaderSize(reader, 64*1024)
		for {
			line, err := readLine(br, bufSize)
			if len(line) > 0 && line[0] == '{' {
				var event TestEvent
				if json.Unmarshal(line, &event) == nil {
					events <- event
				}
			}
			if err != nil {
				if !errors.Is(err, io.EOF) {
					readErr = err
				}
				return
			}
		}
	}()

	return events, func() error { return readErr }
}

// readLine returns the next line without its terminator. A line longer than
// limit is consumed and returned empty.
func readLine(br *bufio.Reader, limit int) ([]byte, error) {
	var line []byte
	tooLong := false
	for {
		chunk, err := br.ReadSlice('\n')
		if !tooLong {
			if len(line)+len(chunk) > limit+1 {
				tooLong = true
				line = nil
			} else {
				line = append(line, chunk...)
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if tooLong {
			return nil, err
		}
		return bytes.TrimRight(line, "\r\n"), err
	}
}

// ParseSingle decodes a single line of test2json output.
//
// Unlike [Parser.Parse], ParseSingle returns malformed input as an error
// instead of skipping it.
//
// Example:
//
//	event, err := ParseSingle(`{"Action":"fail","Package":"example/limiter","Test":"TestAllow"}`)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(event.IsResult()) // true
func ParseSingle(line string) (TestEvent, error) {
	var event TestEvent
	if err := json.Unmarshal([]byte(line), &event); err != nil {
		return TestEvent{}, err
	}
	return event, nil
}
