// Worker consumes billing provider events from Kafka, applies them to
// subscription state, and periodically cancels subscriptions whose trial or
// grace window has lapsed. Set DATABASE_URL, KAFKA_BROKERS, and
// BILLING_KAFKA_TOPIC; OTLP_ENDPOINT is optional.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tenant-control-plane/core/internal/activity"
	activityrepo "tenant-control-plane/core/internal/activity/repository"
	"tenant-control-plane/core/internal/billing"
	"tenant-control-plane/core/internal/config"
	"tenant-control-plane/core/internal/db"
	subscriptionrepo "tenant-control-plane/core/internal/subscription/repository"
	subscriptionservice "tenant-control-plane/core/internal/subscription/service"
	"tenant-control-plane/core/internal/telemetry/otel"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	brokers := cfg.BillingKafkaBrokersList()
	if len(brokers) == 0 {
		log.Fatal("worker: KAFKA_BROKERS is required")
	}
	topic := cfg.BillingKafkaTopic
	if topic == "" {
		topic = "billing-events"
	}
	groupID := cfg.KafkaGroupID
	if groupID == "" {
		groupID = "billing-worker"
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	providers, err := otel.NewProviders(ctx, cfg.OTLPEndpoint, "tenant-billing-worker", cfg.OTLPInsecure)
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	providers.SetGlobal()
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = providers.Shutdown(shutdownCtx)
	}()
	meter := providers.MeterProvider.Meter("tenant-billing-worker")

	recorder := activity.NewLogger(activityrepo.NewPostgresRepository(conn))
	subStore := subscriptionrepo.NewPostgresRepository(conn)
	subs := subscriptionservice.NewService(subStore, recorder, cfg.MaxChargeRetries, cfg.TrialPeriod(), cfg.GraceWindow())

	consumer, err := billing.NewConsumer(brokers, topic, groupID, subs, meter)
	if err != nil {
		log.Fatalf("worker: consumer: %v", err)
	}
	defer consumer.Close()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Println("worker: shutting down...")
		cancel()
	}()

	go runExpirySweep(ctx, subs, cfg.ExpirySweepInterval())

	log.Printf("worker: consuming from %s (group %s)", topic, groupID)
	if err := consumer.Run(ctx); err != nil {
		log.Fatalf("worker: %v", err)
	}
	log.Println("worker: stopped")
}

// runExpirySweep cancels lapsed trial/grace subscriptions on a fixed interval.
func runExpirySweep(ctx context.Context, subs *subscriptionservice.Service, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			n, err := subs.ExpireOverdue(sweepCtx)
			cancel()
			if err != nil {
				log.Printf("worker: expiry sweep: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("worker: expired %d lapsed subscriptions", n)
			}
		}
	}
}
