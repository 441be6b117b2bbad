package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/azerweys/panel/backend/internal/model/user"
)

const defaultTelegramURL = "https://api.telegram.org"

// Notifier records who did what. Delivery is best effort and never blocks
// the caller.
type Notifier interface {
	Notify(actor user.Identity, action string)
}

// Config selects the audit sink.
type Config struct {
	BotToken string
	ChatID   string
	BaseURL  string
}

// New returns a Telegram notifier when a bot is configured and a log-only one
// otherwise.
func New(cfg Config) Notifier {
	if cfg.BotToken == "" || cfg.ChatID == "" {
		log.Warn().Msg("[audit] telegram not configured, audit entries are only logged")
		return LogNotifier{}
	}
	return NewTelegramNotifier(cfg)
}

// FormatLog renders an entry in Telegram HTML markup.
func FormatLog(actor user.Identity, action string) string {
	name := actor.DisplayName
	if name == "" {
		name = actor.Username
	}
	return fmt.Sprintf("<b>%s</b> (%s): %s", html.EscapeString(name), html.EscapeString(string(actor.Role)), action)
}

// LogNotifier writes audit entries to the application log.
type LogNotifier struct{}

func (LogNotifier) Notify(actor user.Identity, action string) {
	log.Info().Str("user", actor.Username).Str("role", string(actor.Role)).Msgf("[audit] %s", action)
}

// TelegramNotifier posts entries to a chat through the Bot API.
type TelegramNotifier struct {
	endpoint string
	chatID   string
	client   *http.Client
	wg       sync.WaitGroup
}

func NewTelegramNotifier(cfg Config) *TelegramNotifier {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = defaultTelegramURL
	}
	return &TelegramNotifier{
		endpoint: fmt.Sprintf("%s/bot%s/sendMessage", base, cfg.BotToken),
		chatID:   cfg.ChatID,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (n *TelegramNotifier) Notify(actor user.Identity, action string) {
	LogNotifier{}.Notify(actor, action)
	text := FormatLog(actor, action)
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := n.send(ctx, text); err != nil {
			log.Error().Err(err).Msg("[audit] telegram delivery failed")
		}
	}()
}

// Wait blocks until every pending delivery finished.
func (n *TelegramNotifier) Wait() {
	n.wg.Wait()
}

func (n *TelegramNotifier) send(ctx context.Context, text string) error {
	body, err := json.Marshal(map[string]string{
		"chat_id":    n.chatID,
		"text":       text,
		"parse_mode": "HTML",
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram: unexpected status %d", resp.StatusCode)
	}
	return nil
}
