package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v4"

	"almanac/internal/driver"
	logx "almanac/pkg/logx"
)

type TelegramConfig struct {
	Token string
	// DefaultTarget is used for tenants without a channel.
	DefaultTarget  string
	ParseMode      string
	DisablePreview bool
	// APIURL overrides the Bot API endpoint.
	APIURL string
}

// Telegram posts payloads through the Bot API. It only sends; polling for
// updates belongs to the command layer.
type Telegram struct {
	bot  *tele.Bot
	def  Target
	mode tele.ParseMode
	opt  TelegramConfig
	log  logx.Logger
}

func NewTelegram(cfg TelegramConfig, log logx.Logger) (*Telegram, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	def, err := ParseTarget(cfg.DefaultTarget)
	if err != nil {
		return nil, fmt.Errorf("telegram default target: %w", err)
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	b, err := tele.NewBot(tele.Settings{
		Token:   cfg.Token,
		URL:     cfg.APIURL,
		Offline: true,
		OnError: func(err error, _ tele.Context) {
			log.Warn("telebot error", logx.Err(err))
		},
	})
	if err != nil {
		return nil, err
	}
	return &Telegram{
		bot:  b,
		def:  def,
		mode: tele.ParseMode(cfg.ParseMode),
		opt:  cfg,
		log:  log.With(logx.Comp("telegram")),
	}, nil
}

func (t *Telegram) Deliver(ctx context.Context, tenantID, channel string, p driver.Payload) error {
	to, err := ParseTarget(channel)
	if err != nil {
		return err
	}
	if to.IsZero() {
		to = t.def
	}
	if to.IsZero() {
		return fmt.Errorf("no channel for tenant %s and no default target", tenantID)
	}

	chat := &tele.Chat{ID: to.ChatID}
	opts := &tele.SendOptions{
		ParseMode:             t.mode,
		DisableWebPagePreview: t.opt.DisablePreview,
		ThreadID:              to.ThreadID,
	}
	for _, chunk := range splitText(p.Text, telegramTextLimit, string(t.mode)) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := t.bot.Send(chat, chunk, opts); err != nil {
			return fmt.Errorf("telegram send to %s: %w", to, err)
		}
	}
	t.log.Debug("delivered", logx.Tenant(tenantID), logx.String("to", to.String()), logx.String("kind", p.Kind))
	return nil
}
