package utils

import (
	"encoding/json"
	"log"
	"net/http"
)

// Failure 请求失败时返回的统一结构
type Failure struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Details string `json:"details"`
}

// RespondJSON 发送JSON响应
func RespondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

// RespondFailure 发送 {success:false,error,details} 响应
func RespondFailure(w http.ResponseWriter, status int, message, details string) {
	RespondJSON(w, status, Failure{Error: message, Details: details})
}
