package relay

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/vanguard/backend/internal/model/chat"
	aiService "github.com/zhouzirui/vanguard/backend/internal/service/ai"
	"github.com/zhouzirui/vanguard/backend/pkg/utils"
)

const (
	// 图片以 base64 内联提交，放宽请求体上限
	maxRequestBytes = 20 << 20

	defaultImageMIME = "image/jpeg"
)

// Relayer 把一轮对话转发给模型并返回文本片段流
type Relayer interface {
	Relay(ctx context.Context, req aiService.RelayRequest) (*schema.StreamReader[string], error)
}

// Handler serves the chat relay over chunked HTTP and websocket.
type Handler struct {
	relay    Relayer
	upgrader websocket.Upgrader
}

// New creates a relay handler.
func New(relay Relayer) *Handler {
	return &Handler{
		relay: relay,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}
}

// RegisterRoutes 注册聊天中继路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat", h.handleChat)
	r.Get("/chat/ws", h.handleChatWebSocket)
}

// badRequestError 请求体本身有问题，对应 400
type badRequestError struct {
	msg string
	err error
}

func (e *badRequestError) Error() string {
	if e.err == nil {
		return e.msg
	}
	return fmt.Sprintf("%s: %v", e.msg, e.err)
}

func (e *badRequestError) Unwrap() error {
	return e.err
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chat.ChatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		utils.RespondFailure(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	relayReq, err := buildRelayRequest(req)
	if err != nil {
		respondRelayFailure(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondFailure(w, http.StatusInternalServerError, "Streaming unsupported", "response writer does not support flushing")
		return
	}

	logRequest("http", req)

	// 上游调用不随客户端断开而取消，只受 PROVIDER_TIMEOUT 约束
	stream, err := h.relay.Relay(context.WithoutCancel(r.Context()), relayReq)
	if err != nil {
		log.Printf("[relay] request failed before streaming: %v", err)
		respondRelayFailure(w, err)
		return
	}
	defer stream.Close()

	utils.SetupTextStreamHeaders(w)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	written := 0
	for {
		chunk, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			// 已经开始写正文，只能截断
			log.Printf("[relay] stream terminated after %d bytes: %v", written, recvErr)
			return
		}
		if err := utils.WriteChunk(w, flusher, chunk); err != nil {
			log.Printf("[relay] client write failed after %d bytes: %v", written, err)
			return
		}
		written += len(chunk)
	}

	log.Printf("[relay] completed response, %d bytes", written)
}

func (h *Handler) handleChatWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[relay] websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	conn.SetReadLimit(maxRequestBytes)
	_, payload, err := conn.ReadMessage()
	if err != nil {
		log.Printf("[relay] websocket read failed: %v", err)
		return
	}

	var req chat.ChatRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		h.sendFailureFrame(conn, "Invalid request body")
		return
	}

	relayReq, err := buildRelayRequest(req)
	if err != nil {
		msg, _ := failureMessage(err)
		h.sendFailureFrame(conn, msg)
		return
	}

	logRequest("ws", req)

	stream, err := h.relay.Relay(context.WithoutCancel(r.Context()), relayReq)
	if err != nil {
		log.Printf("[relay] websocket request failed before streaming: %v", err)
		msg, details := failureMessage(err)
		h.sendFailureFrame(conn, msg+": "+details)
		return
	}
	defer stream.Close()

	for {
		chunk, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			log.Printf("[relay] websocket stream terminated: %v", recvErr)
			break
		}
		if chunk == "" {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, []byte(chunk)); err != nil {
			log.Printf("[relay] websocket write failed: %v", err)
			return
		}
	}

	closeNormally(conn)
}

func (h *Handler) sendFailureFrame(conn *websocket.Conn, message string) {
	data, err := json.Marshal(chat.ChatResponse{Success: false, Error: message})
	if err != nil {
		log.Printf("[relay] failed to marshal failure frame: %v", err)
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, append([]byte(chat.ResultMarker), data...)); err != nil {
		log.Printf("[relay] failed to send failure frame: %v", err)
		return
	}
	closeNormally(conn)
}

func closeNormally(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := conn.WriteMessage(websocket.CloseMessage, msg); err != nil {
		log.Printf("[relay] websocket close failed: %v", err)
	}
}

// buildRelayRequest 校验请求并解码内联图片
func buildRelayRequest(req chat.ChatRequest) (aiService.RelayRequest, error) {
	relayReq := aiService.RelayRequest{
		Message:         req.Message,
		History:         req.History,
		PersonaOverride: req.CustomPrompt,
	}

	if req.Image != "" {
		data, mime, err := decodeImage(req.Image, req.MimeType)
		if err != nil {
			return aiService.RelayRequest{}, &badRequestError{msg: "Invalid image data", err: err}
		}
		relayReq.Image = &aiService.InlineImage{Data: data, MIMEType: mime}
	}

	if strings.TrimSpace(req.Message) == "" && relayReq.Image == nil {
		return aiService.RelayRequest{}, &badRequestError{msg: "Message is required"}
	}

	return relayReq, nil
}

// decodeImage accepts raw base64 or a data URL.
func decodeImage(encoded, mimeType string) ([]byte, string, error) {
	if rest, ok := strings.CutPrefix(encoded, "data:"); ok {
		header, body, found := strings.Cut(rest, ",")
		if !found || !strings.HasSuffix(header, ";base64") {
			return nil, "", errors.New("unsupported data url")
		}
		if mimeType == "" {
			mimeType = strings.TrimSuffix(header, ";base64")
		}
		encoded = body
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, "", err
	}
	if len(data) == 0 {
		return nil, "", errors.New("empty image")
	}
	if mimeType == "" {
		mimeType = defaultImageMIME
	}
	return data, mimeType, nil
}

// failureMessage maps an error to the user-facing error and details strings.
func failureMessage(err error) (string, string) {
	var badReq *badRequestError
	var providerErr *aiService.ProviderError
	switch {
	case errors.As(err, &badReq):
		details := ""
		if badReq.err != nil {
			details = badReq.err.Error()
		}
		return badReq.msg, details
	case errors.Is(err, aiService.ErrNotConfigured):
		return "Server configuration error", err.Error()
	case errors.As(err, &providerErr):
		return "Failed to get response from AI", providerErr.Err.Error()
	default:
		return "Failed to get response from AI", err.Error()
	}
}

func respondRelayFailure(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var badReq *badRequestError
	if errors.As(err, &badReq) {
		status = http.StatusBadRequest
	}
	msg, details := failureMessage(err)
	utils.RespondFailure(w, status, msg, details)
}

func logRequest(transport string, req chat.ChatRequest) {
	category := req.Category
	if category == "" {
		category = "-"
	}
	log.Printf("[relay] %s request: category=%s history=%d image=%t custom_prompt=%t",
		transport, category, len(req.History), req.Image != "", strings.TrimSpace(req.CustomPrompt) != "")
}
