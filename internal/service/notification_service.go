package service

import (
	"context"
	"errors"
	"fmt"
	"hire_assessment_backend/internal/config"
	"hire_assessment_backend/pkg/logger"
	"hire_assessment_backend/pkg/monitoring"
	"net/smtp"
	"strings"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v4"
)

// Notification Body 发给候选人（可含口令），Alert 发给招聘群，不得包含口令
type Notification struct {
	Email   string
	Name    string
	Subject string
	Body    string
	Alert   string
}

// Notifier 单个通知渠道
type Notifier interface {
	Channel() string
	Send(ctx context.Context, n Notification) error
}

// NotificationService 逐个渠道投递，失败只记录不返回
type NotificationService struct {
	channels []Notifier
}

func NewNotificationService(cfg config.NotificationConfig) *NotificationService {
	s := &NotificationService{}
	if cfg.SMTP.Enabled {
		s.channels = append(s.channels, NewEmailNotifier(cfg.SMTP))
	}
	if cfg.Telegram.Enabled {
		tg, err := NewTelegramNotifier(cfg.Telegram)
		if err != nil {
			logger.Log.Warn("telegram notifier disabled", zap.Error(err))
		} else {
			s.channels = append(s.channels, tg)
		}
	}
	return s
}

func NewNotificationServiceWith(channels ...Notifier) *NotificationService {
	return &NotificationService{channels: channels}
}

func (s *NotificationService) Notify(ctx context.Context, n Notification) {
	if s == nil {
		return
	}
	for _, ch := range s.channels {
		err := ch.Send(ctx, n)
		result := "ok"
		if err != nil {
			result = "error"
			logger.Log.Warn("notification failed",
				zap.String("channel", ch.Channel()),
				zap.String("subject", n.Subject),
				zap.Error(err),
			)
		}
		monitoring.NotificationCounter.WithLabelValues(ch.Channel(), result).Inc()
	}
}

// EmailNotifier 通过 SMTP 给候选人发信
type EmailNotifier struct {
	cfg  config.SMTPConfig
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewEmailNotifier(cfg config.SMTPConfig) *EmailNotifier {
	return &EmailNotifier{cfg: cfg, send: smtp.SendMail}
}

func (e *EmailNotifier) Channel() string { return "email" }

func (e *EmailNotifier) Send(ctx context.Context, n Notification) error {
	if n.Email == "" || n.Body == "" {
		return nil
	}
	if strings.ContainsAny(n.Email, "\r\n") || strings.ContainsAny(n.Subject, "\r\n") {
		return errors.New("invalid header value")
	}

	var auth smtp.Auth
	if e.cfg.Username != "" {
		auth = smtp.PlainAuth("", e.cfg.Username, e.cfg.Password, e.cfg.Host)
	}

	to := n.Email
	if n.Name != "" {
		to = fmt.Sprintf("%s <%s>", n.Name, n.Email)
	}
	msg := "From: " + e.cfg.From + "\r\n" +
		"To: " + to + "\r\n" +
		"Subject: " + n.Subject + "\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: text/plain; charset=UTF-8\r\n\r\n" +
		n.Body

	addr := fmt.Sprintf("%s:%d", e.cfg.Host, e.cfg.Port)
	return e.send(addr, auth, e.cfg.From, []string{n.Email}, []byte(msg))
}

// TelegramNotifier 招聘群提醒
type TelegramNotifier struct {
	bot    *tele.Bot
	chatID int64
}

func NewTelegramNotifier(cfg config.TelegramConfig) (*TelegramNotifier, error) {
	if cfg.Token == "" || cfg.ChatID == 0 {
		return nil, errors.New("telegram token and chat id are required")
	}
	bot, err := tele.NewBot(tele.Settings{
		Token:   cfg.Token,
		Offline: true,
	})
	if err != nil {
		return nil, fmt.Errorf("telebot.NewBot: %w", err)
	}
	return &TelegramNotifier{bot: bot, chatID: cfg.ChatID}, nil
}

func (t *TelegramNotifier) Channel() string { return "telegram" }

func (t *TelegramNotifier) Send(ctx context.Context, n Notification) error {
	if n.Alert == "" {
		return nil
	}
	_, err := t.bot.Send(tele.ChatID(t.chatID), n.Alert)
	return err
}
