package utils

import (
	"context"
	"fmt"
	"log"
	"time"

	"multiproduct/config"

	"github.com/go-resty/resty/v2"
)

// SMSSender delivers a text message to a phone number.
type SMSSender interface {
	Send(ctx context.Context, phone, message string) error
}

// NewSMSSender returns a gateway-backed sender, or a logging sender when
// no gateway is configured.
func NewSMSSender(cfg *config.Config) SMSSender {
	if cfg.SMSApiURL == "" {
		return LogSMSSender{}
	}
	return NewHTTPSMSSender(cfg.SMSApiURL, cfg.SMSApiKey, cfg.SMSSenderID)
}

type HTTPSMSSender struct {
	client   *resty.Client
	apiURL   string
	apiKey   string
	senderID string
}

func NewHTTPSMSSender(apiURL, apiKey, senderID string) *HTTPSMSSender {
	client := resty.New().
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond)
	return &HTTPSMSSender{client: client, apiURL: apiURL, apiKey: apiKey, senderID: senderID}
}

func (s *HTTPSMSSender) Send(ctx context.Context, phone, message string) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"authorization": s.apiKey,
			"sender_id":     s.senderID,
			"message":       message,
			"numbers":       phone,
		}).
		Get(s.apiURL)
	if err != nil {
		return fmt.Errorf("sms send to %s: %w", phone, err)
	}
	if resp.IsError() {
		return fmt.Errorf("sms send to %s: status %d", phone, resp.StatusCode())
	}
	log.Println("[SMS] sent to", phone)
	return nil
}

type LogSMSSender struct{}

func (LogSMSSender) Send(_ context.Context, phone, _ string) error {
	log.Printf("[SMS] no gateway configured, skipping message to %s", phone)
	return nil
}
