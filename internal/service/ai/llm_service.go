package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log"

	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	"github.com/zhouzirui/vanguard/backend/internal/config"
	"github.com/zhouzirui/vanguard/backend/internal/model/chat"
	"github.com/zhouzirui/vanguard/backend/internal/model/persona"
)

// ErrNotConfigured is returned for every relay attempt while no provider credential is set.
var ErrNotConfigured = errors.New("provider configuration error: GEMINI_API_KEY is not configured")

// ProviderError wraps a failure reported by the provider.
type ProviderError struct {
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider request failed: %v", e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// InlineImage is an image sent inline with the user turn.
type InlineImage struct {
	Data     []byte
	MIMEType string
}

// RelayRequest is one user turn to forward to the provider.
type RelayRequest struct {
	Message         string
	History         []chat.HistoryTurn
	PersonaOverride string
	Image           *InlineImage
}

// Streamer opens a fresh chat over history and streams the reply to parts.
type Streamer interface {
	SendStream(ctx context.Context, model string, cfg *genai.GenerateContentConfig, history []*genai.Content, parts ...*genai.Part) (iter.Seq2[*genai.GenerateContentResponse, error], error)
}

type chatStreamer struct {
	client *genai.Client
}

func (s chatStreamer) SendStream(ctx context.Context, model string, cfg *genai.GenerateContentConfig, history []*genai.Content, parts ...*genai.Part) (iter.Seq2[*genai.GenerateContentResponse, error], error) {
	session, err := s.client.Chats.Create(ctx, model, cfg, history)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat: %w", err)
	}
	return session.SendStream(ctx, parts...), nil
}

// Service relays chat turns to Gemini.
type Service struct {
	streamer Streamer
	cfg      config.AIConfig
}

// NewService creates the provider adapter. Without a credential the service is
// still returned and fails each call with ErrNotConfigured.
func NewService(ctx context.Context, cfg config.AIConfig) (*Service, error) {
	if !cfg.Enabled() {
		return &Service{cfg: cfg}, nil
	}

	client, err := cfg.NewGenAIClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return NewServiceWithStreamer(chatStreamer{client: client}, cfg), nil
}

// NewServiceWithStreamer wires a custom Streamer.
func NewServiceWithStreamer(streamer Streamer, cfg config.AIConfig) *Service {
	return &Service{streamer: streamer, cfg: cfg}
}

// Configured reports whether a provider credential is available.
func (s *Service) Configured() bool {
	return s != nil && s.streamer != nil
}

// Relay starts a streaming reply. Errors before the first chunk are returned
// directly; errors after that terminate the returned stream.
func (s *Service) Relay(ctx context.Context, req RelayRequest) (*schema.StreamReader[string], error) {
	if !s.Configured() {
		return nil, ErrNotConfigured
	}

	var cancel context.CancelFunc
	if s.cfg.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}

	genCfg := s.cfg.GenerateConfig()
	genCfg.SystemInstruction = genai.NewContentFromText(persona.Resolve(req.PersonaOverride), genai.RoleUser)

	seq, err := s.streamer.SendStream(ctx, s.cfg.Model, genCfg, buildHistoryContents(req.History), buildUserParts(req.Message, req.Image)...)
	if err != nil {
		cancel()
		return nil, &ProviderError{Err: err}
	}

	next, stop := iter.Pull2(seq)
	first, firstErr, ok := next()
	if ok && firstErr != nil {
		if !errors.Is(firstErr, io.EOF) {
			stop()
			cancel()
			return nil, &ProviderError{Err: firstErr}
		}
		ok = false
	}

	sr, sw := schema.Pipe[string](8)
	go func() {
		defer cancel()
		defer stop()
		defer sw.Close()

		resp, more := first, ok
		for more {
			if text := fragmentText(resp); text != "" {
				if closed := sw.Send(text, nil); closed {
					log.Printf("[ai] reader closed, abandoning provider stream")
					return
				}
			}

			var recvErr error
			resp, recvErr, more = next()
			if !more || errors.Is(recvErr, io.EOF) {
				return
			}
			if recvErr != nil {
				log.Printf("[ai] provider stream failed mid-reply: %v", recvErr)
				sw.Send("", &ProviderError{Err: recvErr})
				return
			}
		}
	}()

	return sr, nil
}
