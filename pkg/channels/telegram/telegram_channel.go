package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"taskrunner/pkg/api"
	"taskrunner/pkg/task"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// DefaultMessageLimit applies when the system config gives none.
const DefaultMessageLimit = 4000

// TelegramConfig holds the bot credentials and an optional allow list.
type TelegramConfig struct {
	Token string `json:"token"`
	// AllowedUsers restricts who may submit tasks, by numeric id or username.
	// Empty means everyone.
	AllowedUsers []string `json:"allowed_users"`
}

// TelegramChannel turns chat messages into tasks. A message of the form
// "/read <path>" is answered with the file content instead.
type TelegramChannel struct {
	config       TelegramConfig
	bot          *tgbotapi.BotAPI
	messageLimit int
	allowed      map[string]bool
	stopCtx      context.Context    // aborts the long-poll request on Stop
	stopCancel   context.CancelFunc // triggers stopCtx
	wg           sync.WaitGroup
}

func NewTelegramChannel(cfg TelegramConfig, msgLimit int) (*TelegramChannel, error) {
	ctx, cancel := context.WithCancel(context.Background())

	// Tie every dial to stopCtx so an in-flight long poll dies with the channel.
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	botHttpClient := &http.Client{
		Timeout: 90 * time.Second,
		Transport: &http.Transport{
			DialContext: func(dialCtx context.Context, network, addr string) (net.Conn, error) {
				mergedCtx, mergedCancel := context.WithCancel(dialCtx)
				go func() {
					select {
					case <-ctx.Done():
						mergedCancel()
					case <-mergedCtx.Done():
					}
				}()
				return dialer.DialContext(mergedCtx, network, addr)
			},
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          10,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}

	bot, err := tgbotapi.NewBotAPIWithClient(cfg.Token, tgbotapi.APIEndpoint, botHttpClient)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	slog.Info("Telegram bot authorized", "username", bot.Self.UserName)

	if msgLimit <= 0 {
		msgLimit = DefaultMessageLimit
	}
	return &TelegramChannel{
		config:       cfg,
		bot:          bot,
		messageLimit: msgLimit,
		allowed:      allowList(cfg.AllowedUsers),
		stopCtx:      ctx,
		stopCancel:   cancel,
	}, nil
}

// ID returns "telegram".
func (t *TelegramChannel) ID() string {
	return "telegram"
}

// Start runs the long-polling loop in the background. Each message is
// handled on its own goroutine so a slow task does not stall polling.
func (t *TelegramChannel) Start(tc api.TaskContext) error {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		offset := 0
		for {
			select {
			case <-t.stopCtx.Done():
				return
			default:
			}

			reqConfig := tgbotapi.NewUpdate(offset)
			reqConfig.Timeout = 60

			updates, err := t.bot.GetUpdates(reqConfig)
			if err != nil {
				select {
				case <-t.stopCtx.Done():
					return
				case <-time.After(3 * time.Second):
					slog.Debug("Failed to get telegram updates", "error", err)
					continue
				}
			}

			for _, update := range updates {
				if update.UpdateID < offset {
					continue
				}
				offset = update.UpdateID + 1

				msg := update.Message
				if msg == nil || msg.From == nil || msg.Text == "" {
					continue
				}

				session := api.SessionContext{
					ChannelID: t.ID(),
					UserID:    strconv.FormatInt(msg.From.ID, 10),
					ChatID:    strconv.FormatInt(msg.Chat.ID, 10),
					Username:  msg.From.UserName,
				}
				if !t.isAllowed(session) {
					slog.Warn("Telegram user not allowed", "user", session.Username, "id", session.UserID)
					continue
				}

				t.wg.Add(1)
				go func(s api.SessionContext, text string) {
					defer t.wg.Done()
					t.handleMessage(tc, s, text)
				}(session, msg.Text)
			}
		}
	}()
	return nil
}

func (t *TelegramChannel) handleMessage(tc api.TaskContext, session api.SessionContext, text string) {
	ctx := t.stopCtx

	var reply string
	if path, ok := parseReadCommand(text); ok {
		if path == "" {
			reply = "usage: /read <path>"
		} else if data, err := tc.Read(ctx, session, path); err != nil {
			reply = "read failed: " + err.Error()
		} else if len(data) == 0 {
			reply = "(empty file)"
		} else {
			reply = string(data)
		}
	} else if text == "/start" || text == "/help" {
		reply = "Send a task description to run it, or /read <path> to fetch a file."
	} else {
		reply = formatEnvelope(tc.Submit(ctx, session, text))
	}

	if err := t.Send(session, reply); err != nil {
		slog.Error("Telegram reply failed", "chat", session.ChatID, "error", err)
	}
}

func (t *TelegramChannel) Stop() error {
	t.stopCancel()

	if httpClient, ok := t.bot.Client.(*http.Client); ok && httpClient != nil {
		if transport, ok := httpClient.Transport.(*http.Transport); ok {
			transport.CloseIdleConnections()
		}
	}
	t.wg.Wait()
	return nil
}

// Send writes message to the session's chat, split into chunks of at most
// messageLimit runes.
func (t *TelegramChannel) Send(session api.SessionContext, message string) error {
	chatID, err := strconv.ParseInt(session.ChatID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid chat id for telegram: %s", session.ChatID)
	}

	for i, chunk := range splitMessage(message, t.messageLimit) {
		if _, err := t.bot.Send(tgbotapi.NewMessage(chatID, chunk)); err != nil {
			return fmt.Errorf("telegram send chunk %d failed: %w", i, err)
		}
	}
	return nil
}

func (t *TelegramChannel) isAllowed(s api.SessionContext) bool {
	if len(t.allowed) == 0 {
		return true
	}
	return t.allowed[s.UserID] || (s.Username != "" && t.allowed[strings.ToLower(s.Username)])
}

func allowList(users []string) map[string]bool {
	if len(users) == 0 {
		return nil
	}
	m := make(map[string]bool, len(users))
	for _, u := range users {
		u = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(u), "@"))
		if u != "" {
			m[u] = true
		}
	}
	return m
}

// parseReadCommand recognises "/read <path>" and "/read@bot <path>".
func parseReadCommand(text string) (string, bool) {
	text = strings.TrimSpace(text)
	cmd, rest, _ := strings.Cut(text, " ")
	name, _, _ := strings.Cut(cmd, "@")
	if name != "/read" {
		return "", false
	}
	return strings.TrimSpace(rest), true
}

// formatEnvelope renders an envelope as a chat reply.
func formatEnvelope(env task.Envelope) string {
	var b strings.Builder
	if env.OK() {
		b.WriteString("✅ ")
		b.WriteString(env.Task)
		if env.Detail != "" && env.Detail != env.Task {
			b.WriteString("\n")
			b.WriteString(env.Detail)
		}
		if env.Output != "" {
			b.WriteString("\n")
			b.WriteString(env.Output)
		}
	} else {
		b.WriteString("❌ ")
		if env.Task != "" {
			b.WriteString(env.Task)
			b.WriteString(" ")
		}
		fmt.Fprintf(&b, "%s: %s", env.Kind, env.Detail)
	}
	if env.RequestID != "" {
		fmt.Fprintf(&b, "\n[%s]", env.RequestID)
	}
	return b.String()
}

// splitMessage cuts text into chunks of at most limit runes. Empty text
// yields one empty chunk so callers still reply.
func splitMessage(text string, limit int) []string {
	runes := []rune(text)
	if limit <= 0 || len(runes) <= limit {
		return []string{text}
	}
	var chunks []string
	for i := 0; i < len(runes); i += limit {
		end := min(i+limit, len(runes))
		chunks = append(chunks, string(runes[i:end]))
	}
	return chunks
}
