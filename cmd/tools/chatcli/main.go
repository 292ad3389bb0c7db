package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/vanguard/backend/internal/client"
	"github.com/zhouzirui/vanguard/backend/internal/config"
	"github.com/zhouzirui/vanguard/backend/internal/model/chat"
	"github.com/zhouzirui/vanguard/backend/internal/model/persona"
	chatservice "github.com/zhouzirui/vanguard/backend/internal/service/chat"
	"github.com/zhouzirui/vanguard/backend/internal/service/orchestrator"
	"github.com/zhouzirui/vanguard/backend/internal/storage"
)

// wsSender 通过 websocket 传输发送
type wsSender struct {
	c *client.Client
}

func (s wsSender) SendMessageStream(ctx context.Context, req chat.ChatRequest) *client.Stream {
	return s.c.DialStream(ctx, req)
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if err := godotenv.Load(); err != nil {
		log.Printf("[WARN] 无法加载 .env，改用系统环境变量: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("配置加载失败: %v", err)
	}

	id := flag.String("id", "", "会话 ID，留空则新建")
	name := flag.String("name", cfg.Server.EngineName, "新会话的显示名称")
	category := flag.String("category", "universal", "会话分类")
	prompt := flag.String("prompt", "", "仅对本会话生效的人设")
	useWS := flag.Bool("ws", false, "使用 websocket 传输")
	list := flag.Bool("list", false, "列出已保存的会话")
	search := flag.String("search", "", "按名称或最后一条消息搜索会话")
	remove := flag.String("delete", "", "删除指定会话")
	clearAll := flag.Bool("clear", false, "清空所有会话")
	setPrompt := flag.String("set-prompt", "", "保存全局人设覆盖，传入 \"-\" 恢复默认")
	health := flag.Bool("health", false, "检查中继服务状态")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kv, err := storage.Open(cfg.Store)
	if err != nil {
		log.Fatalf("打开存储失败: %v", err)
	}
	defer kv.Close()

	store := chatservice.NewService(kv)
	relay := client.New(cfg.Client)

	switch {
	case *health:
		h, err := relay.Health(ctx)
		if err != nil {
			log.Fatalf("health check failed: %v", err)
		}
		fmt.Printf("%s: %s\n", h.Engine, h.Status)
		return
	case *list || *search != "":
		printConversations(ctx, store, *search)
		return
	case *remove != "":
		if err := store.DeleteConversation(ctx, *remove); err != nil {
			log.Fatalf("删除会话失败: %v", err)
		}
		return
	case *clearAll:
		if err := store.ClearAllConversations(ctx); err != nil {
			log.Fatalf("清空会话失败: %v", err)
		}
		return
	case *setPrompt != "":
		value := *setPrompt
		if value == "-" {
			value = ""
		}
		if err := store.SaveSystemPrompt(ctx, value); err != nil {
			log.Fatalf("保存人设失败: %v", err)
		}
		return
	}

	var sender orchestrator.Sender = relay
	if *useWS {
		sender = wsSender{c: relay}
	}

	printer := newPrinter()
	conv := orchestrator.New(sender, store, orchestrator.Options{
		ID:           *id,
		Name:         *name,
		Category:     *category,
		SystemPrompt: *prompt,
		Listener:     printer.onUpdate,
	})
	if err := conv.Open(ctx); err != nil {
		log.Fatalf("打开会话失败: %v", err)
	}

	messages := conv.Messages()
	for _, msg := range messages {
		printer.printMessage(msg)
	}
	categories := persona.NewMemoryStore(persona.Seed())
	for _, suggestion := range openingSuggestions(categories, conv.Conversation().Category, messages) {
		fmt.Printf("  * %s\n", suggestion)
	}
	fmt.Printf("(conversation %s, relay %s; \"/image <path> <text>\" attaches an image, Ctrl-D quits)\n", conv.ID(), relay.BaseURL())

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		text, image, err := parseLine(line)
		if err != nil {
			log.Printf("[chatcli] %v", err)
			continue
		}
		if err := conv.Submit(ctx, text, image); err != nil {
			log.Printf("[chatcli] submit failed: %v", err)
		}
		fmt.Println()
		if ctx.Err() != nil {
			break
		}
	}
}

// openingSuggestions 只有问候语的新会话才展示分类的建议提问
func openingSuggestions(categories persona.Store, category string, messages []chat.Message) []string {
	for _, msg := range messages {
		if msg.Sender == chat.SenderUser {
			return nil
		}
	}
	return persona.Suggestions(categories, category)
}

func parseLine(line string) (string, *orchestrator.Attachment, error) {
	rest, ok := strings.CutPrefix(line, "/image ")
	if !ok {
		return line, nil, nil
	}

	path, text, _ := strings.Cut(strings.TrimSpace(rest), " ")
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("read image: %w", err)
	}
	return text, &orchestrator.Attachment{
		Data:     data,
		MIMEType: mime.TypeByExtension(filepath.Ext(path)),
		Ref:      path,
	}, nil
}

func printConversations(ctx context.Context, store *chatservice.Service, query string) {
	conversations, err := store.SearchConversations(ctx, query)
	if err != nil {
		log.Fatalf("读取会话失败: %v", err)
	}
	for _, c := range conversations {
		fmt.Printf("%s\t%s\t%s\t%s\n", c.ID, c.Timestamp, c.Name, truncate(c.LastMessage, 60))
	}
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if r := []rune(s); len(r) > n {
		return string(r[:n]) + "…"
	}
	return s
}

// printer 把助手消息的增量写到终端
type printer struct {
	shown map[string]string
}

func newPrinter() *printer {
	return &printer{shown: make(map[string]string)}
}

func (p *printer) printMessage(msg chat.Message) {
	fmt.Printf("[%s] %s: %s\n", msg.Timestamp, msg.Sender, msg.Text)
}

func (p *printer) onUpdate(u orchestrator.Update) {
	msg := u.Message
	if msg.Sender == chat.SenderUser {
		return
	}

	prev, seen := p.shown[msg.ID]
	p.shown[msg.ID] = msg.Text
	switch {
	case !seen:
		fmt.Printf("[%s] %s: %s", msg.Timestamp, msg.Sender, msg.Text)
	case strings.HasPrefix(msg.Text, prev):
		fmt.Print(msg.Text[len(prev):])
	default:
		// 结构化结果替换了流式文本
		fmt.Printf("\n[%s] %s: %s", msg.Timestamp, msg.Sender, msg.Text)
	}
	if msg.Image != "" && u.State == orchestrator.StateFinalizing {
		fmt.Printf("\n(image: %s)", msg.Image)
	}
}
