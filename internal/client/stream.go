package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log"
	"strings"
	"sync"

	"golang.org/x/text/encoding/unicode"

	"github.com/zhouzirui/vanguard/backend/internal/model/chat"
)

const readBufferSize = 4096

// EventType distinguishes streamed text from the terminal structured result.
type EventType string

const (
	EventText EventType = "text"
	EventJSON EventType = "json"
)

// Event is one item produced by a Stream.
type Event struct {
	Type     EventType
	Text     string
	Response *chat.ChatResponse
}

// DecodeError reports a structured payload after the marker that could not be parsed.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode structured result: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Stream turns a relay response body into Events. Text before the first
// marker is emitted as it arrives; the value after the marker ends the stream.
type Stream struct {
	body io.ReadCloser
	src  io.Reader

	buf     []byte
	pending string // text that may be the start of a marker
	queue   []Event
	done    bool

	closeOnce sync.Once
}

// NewStream wraps body. The stream owns body and closes it when it ends.
func NewStream(body io.ReadCloser) *Stream {
	// 解码器会扣住不完整的尾部字符直到补齐或 EOF，无效字节替换为 U+FFFD
	return &Stream{
		body: body,
		src:  unicode.UTF8.NewDecoder().Reader(body),
		buf:  make([]byte, readBufferSize),
	}
}

// streamOf returns an already finished stream carrying events.
func streamOf(events ...Event) *Stream {
	return &Stream{queue: events, done: true}
}

// Next returns the next event, or io.EOF once the stream is exhausted.
func (s *Stream) Next() (Event, error) {
	for {
		if len(s.queue) > 0 {
			ev := s.queue[0]
			s.queue = s.queue[1:]
			return ev, nil
		}
		if s.done {
			s.Close()
			return Event{}, io.EOF
		}
		s.fill()
	}
}

// Events ranges over the stream. Stopping early closes the body.
func (s *Stream) Events() iter.Seq[Event] {
	return func(yield func(Event) bool) {
		defer s.Close()
		for {
			ev, err := s.Next()
			if err != nil {
				return
			}
			if !yield(ev) {
				return
			}
		}
	}
}

// Close releases the underlying body. It is safe to call more than once.
func (s *Stream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.done = true
		if s.body != nil {
			err = s.body.Close()
		}
	})
	return err
}

func (s *Stream) fill() {
	n, err := s.src.Read(s.buf)
	if n > 0 {
		s.consumeText(string(s.buf[:n]))
	}

	if err == nil {
		return
	}
	if !errors.Is(err, io.EOF) {
		// 连接中途断开，保留已收到的文本
		log.Printf("[client] stream read failed: %v", err)
	}
	if s.done {
		return
	}
	s.emitText(s.pending)
	s.pending = ""
	s.done = true
}

func (s *Stream) consumeText(text string) {
	if s.done || text == "" {
		return
	}

	s.pending += text
	if idx := strings.Index(s.pending, chat.ResultMarker); idx >= 0 {
		s.emitText(s.pending[:idx])
		rest := s.pending[idx+len(chat.ResultMarker):]
		s.pending = ""
		s.decodeResult(rest)
		return
	}

	hold := markerPrefixLen(s.pending)
	s.emitText(s.pending[:len(s.pending)-hold])
	s.pending = s.pending[len(s.pending)-hold:]
}

// decodeResult reads exactly one JSON value starting with prefix and
// continuing into the unread body.
func (s *Stream) decodeResult(prefix string) {
	s.done = true

	remaining := io.MultiReader(strings.NewReader(prefix), s.src)

	var resp chat.ChatResponse
	if err := json.NewDecoder(remaining).Decode(&resp); err != nil {
		log.Printf("[client] %v", &DecodeError{Err: err})
		s.Close()
		return
	}

	s.queue = append(s.queue, Event{Type: EventJSON, Response: &resp})
	s.Close()
}

func (s *Stream) emitText(text string) {
	if text == "" {
		return
	}
	s.queue = append(s.queue, Event{Type: EventText, Text: text})
}

// markerPrefixLen returns the length of the longest suffix of text that is a
// proper prefix of the marker.
func markerPrefixLen(text string) int {
	n := min(len(text), len(chat.ResultMarker)-1)
	for k := n; k > 0; k-- {
		if strings.HasSuffix(text, chat.ResultMarker[:k]) {
			return k
		}
	}
	return 0
}
