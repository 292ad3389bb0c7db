// Package orchestrator drives one conversation: it appends the user's turn,
// consumes the relay stream into a growing assistant message and persists
// the result.
package orchestrator

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/zhouzirui/vanguard/backend/internal/client"
	"github.com/zhouzirui/vanguard/backend/internal/model/chat"
	"github.com/zhouzirui/vanguard/backend/internal/model/persona"
)

const (
	// DefaultName 未提供名称时的会话名
	DefaultName = "New Chat"

	nameRuneLimit    = 20
	defaultImageMIME = "image/jpeg"
	emptyReplyNotice = "Error: empty response from AI server"
)

var (
	ErrTurnInFlight = errors.New("a turn is already in flight")
	ErrEmptyMessage = errors.New("message text or image is required")
	ErrNotOpen      = errors.New("conversation is not open")
)

// State is the phase of the current turn.
type State int

const (
	StateIdle State = iota
	StateAwaitingFirstFragment
	StateStreaming
	StateFinalizing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingFirstFragment:
		return "awaiting_first_fragment"
	case StateStreaming:
		return "streaming"
	case StateFinalizing:
		return "finalizing"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Sender opens a relay stream for one turn.
type Sender interface {
	SendMessageStream(ctx context.Context, req chat.ChatRequest) *client.Stream
}

// Store is the persistence the orchestrator needs.
type Store interface {
	GetConversation(ctx context.Context, id string) (chat.Conversation, bool, error)
	SaveConversation(ctx context.Context, conversation chat.Conversation) error
	GetSystemPrompt(ctx context.Context) (string, error)
}

// UpdateKind tells a listener whether a message is new or changed.
type UpdateKind string

const (
	MessageAdded   UpdateKind = "added"
	MessageUpdated UpdateKind = "updated"
)

// Update is delivered to the Listener after every message change.
type Update struct {
	Kind    UpdateKind
	Message chat.Message
	State   State
}

// Listener receives updates synchronously on the submitting goroutine.
type Listener func(Update)

// Attachment is an image sent with a user turn.
type Attachment struct {
	Data     []byte
	MIMEType string
	// Ref is stored on the user message for display, e.g. a file path.
	Ref string
}

// Options configures a conversation.
type Options struct {
	ID           string
	Name         string
	Category     string
	SystemPrompt string
	Listener     Listener

	Now   func() time.Time
	NewID func() string
}

// Orchestrator runs turns for a single conversation.
type Orchestrator struct {
	sender   Sender
	store    Store
	listener Listener
	now      func() time.Time
	newID    func() string

	mu           sync.Mutex
	opened       bool
	state        State
	id           string
	name         string
	category     string
	systemPrompt string
	messages     *messageLog
}

// New creates an orchestrator. Call Open before Submit.
func New(sender Sender, store Store, opts Options) *Orchestrator {
	o := &Orchestrator{
		sender:       sender,
		store:        store,
		listener:     opts.Listener,
		now:          opts.Now,
		newID:        opts.NewID,
		id:           opts.ID,
		name:         opts.Name,
		category:     opts.Category,
		systemPrompt: opts.SystemPrompt,
		messages:     newMessageLog(nil),
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.newID == nil {
		o.newID = uuid.NewString
	}
	if o.id == "" {
		o.id = NewConversationID(o.now())
	}
	return o
}

// NewConversationID returns an id for a conversation started at t.
func NewConversationID(t time.Time) string {
	return fmt.Sprintf("vcore_%d", t.UnixMilli())
}

// Open loads the stored conversation, or seeds the greeting for a new one.
// A stored name and category take precedence over Options.
func (o *Orchestrator) Open(ctx context.Context) error {
	conversation, ok, err := o.store.GetConversation(ctx, o.id)
	if err != nil {
		return fmt.Errorf("failed to load conversation %s: %w", o.id, err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if ok && len(conversation.Messages) > 0 {
		o.messages = newMessageLog(conversation.Messages)
		// 已存在的会话沿用保存的名称和分类，Options 里的值只用于新会话
		if conversation.Name != "" {
			o.name = conversation.Name
		}
		if conversation.Category != "" {
			o.category = conversation.Category
		}
		if o.systemPrompt == "" {
			o.systemPrompt = conversation.SystemPrompt
		}
	} else {
		o.messages = newMessageLog([]chat.Message{o.greeting()})
	}
	o.opened = true
	return nil
}

func (o *Orchestrator) greeting() chat.Message {
	mode := o.category
	if mode == "" {
		mode = "Universal"
	}
	return chat.Message{
		ID:        o.newID(),
		Text:      fmt.Sprintf("Systems Link Established. I am %s. Operation Mode: %s. Ready for input.", o.displayName(), mode),
		Sender:    chat.SenderAssistant,
		Timestamp: chat.DisplayTime(o.now()),
	}
}

func (o *Orchestrator) displayName() string {
	if o.name == "" {
		return DefaultName
	}
	return o.name
}

// ID returns the conversation id.
func (o *Orchestrator) ID() string {
	return o.id
}

// State returns the current turn phase.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Messages returns a copy of the conversation in display order.
func (o *Orchestrator) Messages() []chat.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.messages.snapshot()
}

// Submit runs one turn to completion. Relay and provider failures become the
// assistant's message text; only misuse is reported as an error.
func (o *Orchestrator) Submit(ctx context.Context, text string, image *Attachment) error {
	if strings.TrimSpace(text) == "" && (image == nil || len(image.Data) == 0) {
		return ErrEmptyMessage
	}

	o.mu.Lock()
	if !o.opened {
		o.mu.Unlock()
		return ErrNotOpen
	}
	if o.state != StateIdle {
		o.mu.Unlock()
		return ErrTurnInFlight
	}

	firstTurn := !o.messages.hasSender(chat.SenderUser)
	history := chat.ToHistory(o.messages.snapshot())
	userMsg := chat.Message{
		ID:        o.newID(),
		Text:      text,
		Sender:    chat.SenderUser,
		Timestamp: chat.DisplayTime(o.now()),
	}
	if image != nil {
		userMsg.Image = image.Ref
	}
	o.messages.append(userMsg)
	o.state = StateAwaitingFirstFragment
	category, systemPrompt := o.category, o.systemPrompt
	o.mu.Unlock()

	o.notify(MessageAdded, userMsg)

	req := chat.ChatRequest{
		Message:      text,
		History:      history,
		CustomPrompt: o.resolvePersona(ctx, systemPrompt),
		Category:     category,
	}
	if req.Category == "" {
		req.Category = persona.DefaultCategoryID
	}
	if image != nil && len(image.Data) > 0 {
		req.Image = base64.StdEncoding.EncodeToString(image.Data)
		req.MimeType = image.MIMEType
		if req.MimeType == "" {
			req.MimeType = defaultImageMIME
		}
	}

	t := &turn{o: o, assistantID: o.newID()}
	for ev := range o.sender.SendMessageStream(ctx, req).Events() {
		t.handle(ev)
	}
	t.finish(ctx, text, firstTurn)
	return nil
}

// resolvePersona prefers the conversation's own prompt over the stored override.
func (o *Orchestrator) resolvePersona(ctx context.Context, conversationPrompt string) string {
	if strings.TrimSpace(conversationPrompt) != "" {
		return conversationPrompt
	}
	prompt, err := o.store.GetSystemPrompt(ctx)
	if err != nil {
		log.Printf("[orchestrator] failed to load system prompt: %v", err)
		return ""
	}
	return prompt
}

func (o *Orchestrator) notify(kind UpdateKind, msg chat.Message) {
	if o.listener == nil {
		return
	}
	o.listener(Update{Kind: kind, Message: msg, State: o.State()})
}

// Conversation returns the current conversation as it would be persisted.
func (o *Orchestrator) Conversation() chat.Conversation {
	o.mu.Lock()
	defer o.mu.Unlock()

	messages := o.messages.snapshot()
	var last string
	if len(messages) > 0 {
		last = messages[len(messages)-1].Text
	}
	return chat.Conversation{
		ID:           o.id,
		Name:         o.displayName(),
		LastMessage:  last,
		Timestamp:    o.now().UTC().Format(time.RFC3339Nano),
		Messages:     messages,
		Category:     o.category,
		SystemPrompt: o.systemPrompt,
	}
}

// turn accumulates one assistant reply.
type turn struct {
	o           *Orchestrator
	assistantID string
	text        string
	created     bool
}

func (t *turn) handle(ev client.Event) {
	switch ev.Type {
	case client.EventText:
		t.text += ev.Text
		if !t.created && strings.TrimSpace(t.text) == "" {
			return
		}
		t.upsert(StateStreaming, func(msg *chat.Message) {
			msg.Text = t.text
		})
	case client.EventJSON:
		resp := ev.Response
		if resp == nil {
			return
		}
		if resp.Success {
			if resp.Message != "" {
				t.text = resp.Message
			}
			t.upsert(StateFinalizing, func(msg *chat.Message) {
				msg.Text = t.text
				if resp.Image != "" {
					msg.Image = resp.Image
				}
			})
			return
		}
		t.text = errorNotice(resp.Error)
		t.upsert(StateFinalizing, func(msg *chat.Message) {
			msg.Text = t.text
		})
	}
}

func (t *turn) upsert(next State, fn func(*chat.Message)) {
	o := t.o
	o.mu.Lock()
	kind := MessageUpdated
	var msg chat.Message
	if !t.created {
		msg = chat.Message{
			ID:        t.assistantID,
			Sender:    chat.SenderAssistant,
			Timestamp: chat.DisplayTime(o.now()),
		}
		fn(&msg)
		o.messages.append(msg)
		t.created = true
		kind = MessageAdded
	} else {
		msg, _ = o.messages.update(t.assistantID, fn)
	}
	o.state = next
	o.mu.Unlock()

	o.notify(kind, msg)
}

func (t *turn) finish(ctx context.Context, userText string, firstTurn bool) {
	if !t.created {
		t.text = emptyReplyNotice
		t.upsert(StateFinalizing, func(msg *chat.Message) {
			msg.Text = t.text
		})
	}

	o := t.o
	o.mu.Lock()
	o.state = StateFinalizing
	if firstTurn {
		if name := conversationName(userText); name != "" {
			o.name = name
		}
	}
	o.mu.Unlock()

	conversation := o.Conversation()
	conversation.LastMessage = t.text
	// 客户端取消后仍保存已收到的部分回复
	if err := o.store.SaveConversation(context.WithoutCancel(ctx), conversation); err != nil {
		log.Printf("[orchestrator] failed to save conversation %s: %v", conversation.ID, err)
	}

	o.mu.Lock()
	o.state = StateIdle
	o.mu.Unlock()
}

// conversationName derives a display name from the first user message.
func conversationName(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	if utf8.RuneCountInString(text) > nameRuneLimit {
		text = string([]rune(text)[:nameRuneLimit])
	}
	return text + "..."
}

func errorNotice(reason string) string {
	if strings.TrimSpace(reason) == "" {
		reason = "unknown error"
	}
	return "Error: " + reason
}
