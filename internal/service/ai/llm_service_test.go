package ai

import (
	"context"
	"errors"
	"io"
	"iter"
	"reflect"
	"testing"

	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	"github.com/zhouzirui/vanguard/backend/internal/config"
	"github.com/zhouzirui/vanguard/backend/internal/model/chat"
	"github.com/zhouzirui/vanguard/backend/internal/model/persona"
)

type streamStep struct {
	text string
	err  error
}

type fakeStreamer struct {
	steps    []streamStep
	setupErr error

	cfg     *genai.GenerateContentConfig
	history []*genai.Content
	parts   []*genai.Part
}

func (f *fakeStreamer) SendStream(_ context.Context, _ string, cfg *genai.GenerateContentConfig, history []*genai.Content, parts ...*genai.Part) (iter.Seq2[*genai.GenerateContentResponse, error], error) {
	f.cfg = cfg
	f.history = history
	f.parts = parts
	if f.setupErr != nil {
		return nil, f.setupErr
	}

	return func(yield func(*genai.GenerateContentResponse, error) bool) {
		for _, step := range f.steps {
			if step.err != nil {
				yield(nil, step.err)
				return
			}
			if !yield(textChunk(step.text), nil) {
				return
			}
		}
	}, nil
}

func textChunk(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: genai.NewContentFromText(text, genai.RoleModel)}},
	}
}

func drain(t *testing.T, sr *schema.StreamReader[string]) ([]string, error) {
	t.Helper()
	defer sr.Close()

	var out []string
	for {
		chunk, err := sr.Recv()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, chunk)
	}
}

func TestTrimHistory(t *testing.T) {
	cases := []struct {
		name string
		in   []chat.HistoryTurn
		want []chat.HistoryTurn
	}{
		{name: "empty", in: nil, want: nil},
		{
			name: "leading model turns dropped",
			in: []chat.HistoryTurn{
				{Role: chat.RoleModel, Content: "greeting"},
				{Role: chat.RoleModel, Content: "again"},
				{Role: chat.RoleUser, Content: "hi"},
				{Role: chat.RoleModel, Content: "hello"},
			},
			want: []chat.HistoryTurn{
				{Role: chat.RoleUser, Content: "hi"},
				{Role: chat.RoleModel, Content: "hello"},
			},
		},
		{
			name: "no user turn",
			in:   []chat.HistoryTurn{{Role: chat.RoleModel, Content: "greeting"}},
			want: nil,
		},
		{
			name: "already starts with user",
			in: []chat.HistoryTurn{
				{Role: chat.RoleUser, Content: "a"},
				{Role: chat.RoleModel, Content: "b"},
			},
			want: []chat.HistoryTurn{
				{Role: chat.RoleUser, Content: "a"},
				{Role: chat.RoleModel, Content: "b"},
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := TrimHistory(tc.in)
			if len(got) == 0 && len(tc.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("TrimHistory() = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestRelayWithoutCredential(t *testing.T) {
	svc, err := NewService(context.Background(), config.AIConfig{})
	if err != nil {
		t.Fatalf("NewService err: %v", err)
	}

	if _, err := svc.Relay(context.Background(), RelayRequest{Message: "hi"}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestRelayStreamsFragmentsInOrder(t *testing.T) {
	streamer := &fakeStreamer{steps: []streamStep{{text: "Hi"}, {text: ""}, {text: " there"}}}
	svc := NewServiceWithStreamer(streamer, config.AIConfig{Model: "test"})

	sr, err := svc.Relay(context.Background(), RelayRequest{
		Message: "Hello",
		History: []chat.HistoryTurn{
			{Role: chat.RoleModel, Content: "Systems Link Established."},
			{Role: chat.RoleUser, Content: "first"},
			{Role: chat.RoleModel, Content: "reply"},
		},
	})
	if err != nil {
		t.Fatalf("Relay err: %v", err)
	}

	got, err := drain(t, sr)
	if err != nil {
		t.Fatalf("unexpected stream error: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"Hi", " there"}) {
		t.Fatalf("unexpected fragments: %q", got)
	}

	if len(streamer.history) != 2 || streamer.history[0].Role != genai.RoleUser {
		t.Fatalf("expected history trimmed to start at user turn, got %+v", streamer.history)
	}
	if streamer.history[1].Role != genai.RoleModel {
		t.Fatalf("expected model role for assistant turn, got %s", streamer.history[1].Role)
	}
	if got := streamer.cfg.SystemInstruction.Parts[0].Text; got != persona.DefaultPrompt {
		t.Fatalf("expected default persona, got %q", got)
	}
}

func TestRelayPersonaOverrideReplacesDefault(t *testing.T) {
	streamer := &fakeStreamer{steps: []streamStep{{text: "ok"}}}
	svc := NewServiceWithStreamer(streamer, config.AIConfig{})

	sr, err := svc.Relay(context.Background(), RelayRequest{Message: "hi", PersonaOverride: "You are a pirate."})
	if err != nil {
		t.Fatalf("Relay err: %v", err)
	}
	if _, err := drain(t, sr); err != nil {
		t.Fatalf("unexpected stream error: %v", err)
	}

	if got := streamer.cfg.SystemInstruction.Parts[0].Text; got != "You are a pirate." {
		t.Fatalf("expected override persona, got %q", got)
	}
}

func TestRelayAttachesInlineImage(t *testing.T) {
	streamer := &fakeStreamer{steps: []streamStep{{text: "a cat"}}}
	svc := NewServiceWithStreamer(streamer, config.AIConfig{})

	sr, err := svc.Relay(context.Background(), RelayRequest{
		Message: "what is this?",
		Image:   &InlineImage{Data: []byte{0xff, 0xd8}, MIMEType: "image/jpeg"},
	})
	if err != nil {
		t.Fatalf("Relay err: %v", err)
	}
	if _, err := drain(t, sr); err != nil {
		t.Fatalf("unexpected stream error: %v", err)
	}

	if len(streamer.parts) != 2 {
		t.Fatalf("expected text and image parts, got %d", len(streamer.parts))
	}
	if streamer.parts[0].Text != "what is this?" {
		t.Fatalf("unexpected text part: %q", streamer.parts[0].Text)
	}
	blob := streamer.parts[1].InlineData
	if blob == nil || blob.MIMEType != "image/jpeg" || len(blob.Data) != 2 {
		t.Fatalf("unexpected inline data: %+v", blob)
	}
}

func TestRelayFailsBeforeFirstFragment(t *testing.T) {
	streamer := &fakeStreamer{steps: []streamStep{{err: errors.New("quota exceeded")}}}
	svc := NewServiceWithStreamer(streamer, config.AIConfig{})

	_, err := svc.Relay(context.Background(), RelayRequest{Message: "hi"})
	var providerErr *ProviderError
	if !errors.As(err, &providerErr) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
}

func TestRelaySetupFailure(t *testing.T) {
	streamer := &fakeStreamer{setupErr: errors.New("bad role")}
	svc := NewServiceWithStreamer(streamer, config.AIConfig{})

	_, err := svc.Relay(context.Background(), RelayRequest{Message: "hi"})
	var providerErr *ProviderError
	if !errors.As(err, &providerErr) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
}

func TestRelayMidStreamErrorEndsStream(t *testing.T) {
	streamer := &fakeStreamer{steps: []streamStep{{text: "partial"}, {err: errors.New("connection reset")}}}
	svc := NewServiceWithStreamer(streamer, config.AIConfig{})

	sr, err := svc.Relay(context.Background(), RelayRequest{Message: "hi"})
	if err != nil {
		t.Fatalf("Relay err: %v", err)
	}

	got, err := drain(t, sr)
	if !reflect.DeepEqual(got, []string{"partial"}) {
		t.Fatalf("unexpected fragments: %q", got)
	}
	var providerErr *ProviderError
	if !errors.As(err, &providerErr) {
		t.Fatalf("expected ProviderError at end of stream, got %v", err)
	}
}
