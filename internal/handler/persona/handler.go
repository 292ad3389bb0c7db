package persona

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/vanguard/backend/internal/model/persona"
	"github.com/zhouzirui/vanguard/backend/pkg/utils"
)

// Handler 分类与默认人设的HTTP处理器
type Handler struct {
	categories persona.Store
}

// New 创建处理器
func New(categories persona.Store) *Handler {
	return &Handler{
		categories: categories,
	}
}

// RegisterRoutes 注册分类和人设相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/categories", h.handleListCategories)
	r.Get("/persona/default", h.handleDefaultPersona)
}

// handleListCategories 列出所有分类及其推荐问题
func (h *Handler) handleListCategories(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.categories.List())
}

func (h *Handler) handleDefaultPersona(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]string{"prompt": persona.DefaultPrompt})
}
