package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quantcontrol/internal/broker"
	"quantcontrol/internal/risk"
	"quantcontrol/internal/sched"
	"quantcontrol/internal/store"
	"quantcontrol/pkg/config"

	"github.com/google/uuid"
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

	hostname, _ := os.Hostname()
	claimantID := fmt.Sprintf("sizer-%s-%s", hostname, uuid.NewString()[:8])

	sizer := risk.NewSizer(st, gateway, risk.Config{
		Params: risk.Params{
			RiskFraction:          cfg.RiskFraction,
			StopLossFraction:      cfg.StopLossFraction,
			MaxAllocationFraction: cfg.MaxAllocationFraction,
			TakeProfitRatio:       cfg.TakeProfitRatio,
		},
		MaxSignalAge:  cfg.MaxSignalAge,
		BrokerTimeout: cfg.BrokerTimeout,
	}, claimantID)

	runner := sched.NewRunner("RiskSizer", sizer, st, cfg.ClaimLease, func() time.Duration {
		return clock.Interval(cfg.SizerInterval, passiveInterval)
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logrus.WithField("claimant_id", claimantID).Info("Risk sizer started")
	runner.Run(ctx)
}
