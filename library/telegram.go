package library

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramConfig maps usernames to the chat they receive notifications on.
type TelegramConfig struct {
	Token string           `json:"token"`
	Chats map[string]int64 `json:"chats"`
}

// EnsureTelegramConfig writes an empty template config if none exists, so an
// operator has something to fill in.
func EnsureTelegramConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return SaveTelegramConfig(path, &TelegramConfig{Chats: map[string]int64{}})
}

// LoadTelegramConfig reads the notifier config from path.
func LoadTelegramConfig(path string) (*TelegramConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg TelegramConfig
	if err := json.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SaveTelegramConfig writes the notifier config to path.
func SaveTelegramConfig(path string, cfg *TelegramConfig) error {
	b, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}

// TelegramNotifier pushes notifications over the Telegram bot API. Only the
// outbound send path is used; there is no inbound update loop.
type TelegramNotifier struct {
	bot   *tgbotapi.BotAPI
	chats map[string]int64
	log   *slog.Logger
}

// NewTelegramNotifier connects the bot from the given config.
func NewTelegramNotifier(cfg *TelegramConfig, log *slog.Logger) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("connect telegram bot: %w", err)
	}
	return &TelegramNotifier{bot: bot, chats: cfg.Chats, log: log}, nil
}

// Notify sends the message to the user's configured chat. Users without a
// chat mapping are skipped silently.
func (n *TelegramNotifier) Notify(user *UserAccount, subject, body string) error {
	chatID, ok := n.chats[user.Username]
	if !ok {
		n.log.Debug("no telegram chat for user", "user", user.Username)
		return nil
	}
	msg := tgbotapi.NewMessage(chatID, subject+"\n\n"+body)
	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}
