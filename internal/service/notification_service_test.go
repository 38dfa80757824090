package service

import (
	"context"
	"errors"
	"hire_assessment_backend/internal/config"
	"net/smtp"
	"strings"
	"testing"
)

func TestNotifyContinuesAfterChannelFailure(t *testing.T) {
	failing := &stubNotifier{err: errors.New("smtp down")}
	ok := &stubNotifier{}
	svc := NewNotificationServiceWith(failing, ok)

	svc.Notify(context.Background(), Notification{Email: "a@example.com", Body: "hi", Alert: "sent"})

	if len(failing.sent) != 1 || len(ok.sent) != 1 {
		t.Fatalf("deliveries: failing=%d ok=%d", len(failing.sent), len(ok.sent))
	}

	var nilSvc *NotificationService
	nilSvc.Notify(context.Background(), Notification{})
}

func TestEmailNotifierMessage(t *testing.T) {
	var gotAddr string
	var gotTo []string
	var gotMsg string
	e := NewEmailNotifier(config.SMTPConfig{Host: "smtp.example.com", Port: 587, From: "hire@example.com"})
	e.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg = addr, to, string(msg)
		return nil
	}

	err := e.Send(context.Background(), Notification{
		Email:   "ana@example.com",
		Name:    "Ana",
		Subject: "Your interview",
		Body:    "Session password: ABCD1234",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if gotAddr != "smtp.example.com:587" || len(gotTo) != 1 || gotTo[0] != "ana@example.com" {
		t.Fatalf("addr %s to %v", gotAddr, gotTo)
	}
	if !strings.Contains(gotMsg, "To: Ana <ana@example.com>\r\n") || !strings.HasSuffix(gotMsg, "ABCD1234") {
		t.Fatalf("message = %q", gotMsg)
	}

	err = e.Send(context.Background(), Notification{Email: "x@example.com\r\nBcc: evil@example.com", Body: "b"})
	if err == nil {
		t.Fatal("header injection accepted")
	}

	gotMsg = ""
	if err := e.Send(context.Background(), Notification{Alert: "only for the team"}); err != nil || gotMsg != "" {
		t.Fatalf("notification without email should be skipped: %v %q", err, gotMsg)
	}
}

func TestTelegramNotifierRequiresConfig(t *testing.T) {
	if _, err := NewTelegramNotifier(config.TelegramConfig{}); err == nil {
		t.Fatal("expected an error without token and chat id")
	}
}
