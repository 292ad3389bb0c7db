package utils

import (
	"fmt"
	"net/http"
)

// SetupTextStreamHeaders 设置纯文本流式响应头
func SetupTextStreamHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Del("Content-Length")
}

// WriteChunk 写入一段文本并立即 flush
func WriteChunk(w http.ResponseWriter, flusher http.Flusher, text string) error {
	if text == "" {
		return nil
	}
	if _, err := w.Write([]byte(text)); err != nil {
		return fmt.Errorf("write chunk: %w", err)
	}
	flusher.Flush()
	return nil
}
