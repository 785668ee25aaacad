package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/segmentio/kafka-go"

	appconfig "github.com/AnthonyGillesRudolfo/group-checkout/internal/config"
	"github.com/AnthonyGillesRudolfo/group-checkout/internal/email"
	"github.com/AnthonyGillesRudolfo/group-checkout/internal/events"
)

func main() {
	_ = godotenv.Load()
	cfg, err := appconfig.Load()
	if err != nil {
		log.Fatalf("[email-worker] config: %v", err)
	}
	if !cfg.Kafka.Enabled() {
		log.Fatalf("[email-worker] KAFKA_BROKERS is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Println("Email worker starting...")
	if err := startConsumer(ctx, cfg); err != nil {
		log.Fatalf("[email-worker] %v", err)
	}
}

func startConsumer(ctx context.Context, cfg appconfig.Config) error {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Kafka.Brokers,
		Topic:    cfg.Kafka.CheckoutsTopic,
		GroupID:  cfg.Kafka.EmailGroup, // its own consumer group
		MinBytes: 1e3, MaxBytes: 10e6,
	})
	defer reader.Close()

	sender := pickSender(cfg)
	log.Printf("[email-worker] consuming %s (group=%s)", cfg.Kafka.CheckoutsTopic, cfg.Kafka.EmailGroup)
	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		if err := handleMessage(sender, msg.Value); err != nil {
			log.Printf("[email-worker] key=%s: %v", string(msg.Key), err)
		}
	}
}

// handleMessage emails the group lead about a checkout event. The recipient
// is never addressed.
func handleMessage(sender email.Sender, value []byte) error {
	evt, data, err := events.DecodeCheckout(value)
	if err != nil {
		return err
	}
	subject, body, ok := email.Render(evt.EventType, data)
	if !ok {
		return nil
	}
	if data.LeadEmail == "" {
		return fmt.Errorf("%s for group %s has no lead email", evt.EventType, data.GroupID)
	}
	if err := sender.Send(data.LeadEmail, subject, body); err != nil {
		return fmt.Errorf("send %s: %w", evt.EventType, err)
	}
	log.Printf("[email-worker] sent %s email to=%s checkout=%s", evt.EventType, data.LeadEmail, data.CheckoutID)
	return nil
}

func pickSender(cfg appconfig.Config) email.Sender {
	// Use SMTP if configured; else fallback to log
	if os.Getenv("SMTP_HOST") != "" || os.Getenv("SMTP_PORT") != "" {
		return email.NewSMTPSender(cfg.Email)
	}
	return email.LogSender{}
}
