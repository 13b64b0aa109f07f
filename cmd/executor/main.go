package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"quantcontrol/internal/broker"
	"quantcontrol/internal/executor"
	"quantcontrol/internal/models"
	"quantcontrol/internal/notify"
	"quantcontrol/internal/sched"
	"quantcontrol/internal/store"
	"quantcontrol/pkg/config"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	logrus "github.com/sirupsen/logrus"
)

const passiveInterval = time.Hour

func main() {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetLevel(logrus.InfoLevel)

	cfg, err := config.LoadApp()
	if err != nil {
		logrus.Fatal("Failed to load config: ", err)
	}

	config.InitDB()
	st := store.New(config.DB)
	clock := sched.NewClock(st)

	gateway := broker.NewAlpacaClient(cfg.BrokerBaseURL, cfg.BrokerKeyID, cfg.BrokerSecret, cfg.BrokerTimeout)
	breaker := broker.NewCircuitBreaker("alpaca", 3)

	var notifier executor.Notifier
	if os.Getenv("RABBITMQ_HOST") != "" {
		config.InitRabbitMQ()
		pub, err := config.NewPublisher()
		if err != nil {
			logrus.Fatal("Failed to create publisher: ", err)
		}
		defer pub.Close()
		notifier = notify.New(pub)
	}

	hostname, _ := os.Hostname()
	instance := uuid.NewString()[:8]
	execClaimant := fmt.Sprintf("executor-%s-%s", hostname, instance)
	reconClaimant := fmt.Sprintf("reconciler-%s-%s", hostname, instance)

	exec := executor.New(st, gateway, breaker, notifier, cfg.BrokerTimeout, execClaimant)
	recon := executor.NewReconciler(st, gateway, breaker, notifier, cfg.BrokerTimeout, reconClaimant)

	execRunner := sched.NewRunner("OrderExecutor", exec, st, cfg.ClaimLease, func() time.Duration {
		return clock.Interval(cfg.ExecutorInterval, passiveInterval)
	})
	// The reconciler keeps its active cadence while orders are in flight,
	// even after the close: a SUBMITTED row is an open question at the
	// broker and must not wait until the next session.
	reconRunner := sched.NewRunner("Reconciler", recon, st, cfg.ClaimLease, func() time.Duration {
		if pending, err := st.CountByStatus(models.StatusSubmitted); err == nil && pending > 0 {
			return cfg.ReconcileInterval
		}
		return clock.Interval(cfg.ReconcileInterval, passiveInterval)
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	housekeeping := cron.New()
	housekeeping.AddFunc("0 * * * *", func() {
		released, err := st.ReleaseStaleClaims(cfg.ClaimLease)
		if err != nil {
			logrus.Error("Hourly stale claim sweep failed: ", err)
			return
		}
		if released > 0 {
			st.LogEvent("Housekeeping", "WARNING", fmt.Sprintf("Hourly sweep released %d stale claims", released))
		}
	})
	housekeeping.AddFunc("5 16 * * 1-5", func() {
		for _, status := range []string{models.StatusExecuted, models.StatusRejected, models.StatusFailed} {
			count, err := st.CountByStatus(status)
			if err != nil {
				logrus.Error("Daily rollup count failed: ", err)
				return
			}
			st.LogEvent("Housekeeping", "INFO", fmt.Sprintf("Daily rollup: %d signals in %s", count, status))
		}
	})
	housekeeping.Start()
	defer housekeeping.Stop()

	logrus.WithFields(logrus.Fields{
		"executor_claimant":   execClaimant,
		"reconciler_claimant": reconClaimant,
	}).Info("Order executor started")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		execRunner.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		reconRunner.Run(ctx)
	}()
	wg.Wait()
}
