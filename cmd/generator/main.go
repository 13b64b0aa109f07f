package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"quantcontrol/internal/sched"
	"quantcontrol/internal/store"
	"quantcontrol/internal/strategy"
	"quantcontrol/pkg/config"

	logrus "github.com/sirupsen/logrus"
)

// Passive cadence outside market hours.
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

	generator := strategy.NewGenerator(st, strategy.Config{
		Symbols:         cfg.Symbols,
		KingsList:       cfg.KingsList,
		SentimentWindow: cfg.SentimentWindow,
	})

	runner := sched.NewRunner("SignalGenerator", generator, st, cfg.ClaimLease, func() time.Duration {
		return clock.Interval(cfg.GeneratorInterval, passiveInterval)
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logrus.Info("Signal generator started")
	runner.Run(ctx)
}
