package main

import (
	"encoding/json"
	"fmt"
	"log"

	"quantcontrol/internal/notify"
	"quantcontrol/internal/store"
	"quantcontrol/pkg/config"

	logrus "github.com/sirupsen/logrus"
)

func main() {
	// Initialize logger
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetLevel(logrus.InfoLevel)

	// Initialize database
	config.InitDB()
	st := store.New(config.DB)

	// Initialize RabbitMQ
	config.InitRabbitMQ()
	defer config.RabbitMQ.Close()

	msgConsumer, err := config.NewConsumer(notify.QueueSignalEvents)
	if err != nil {
		logrus.Fatal("Failed to create consumer: ", err)
	}
	defer msgConsumer.Close()

	logrus.Info("Signal event worker started, waiting for messages...")

	err = msgConsumer.Consume(func(msg []byte) error {
		var event notify.SignalEvent
		if err := json.Unmarshal(msg, &event); err != nil {
			logrus.Errorf("Failed to unmarshal signal event: %v", err)
			return err
		}

		logrus.WithFields(logrus.Fields{
			"signal_id": event.SignalID,
			"symbol":    event.Symbol,
			"side":      event.Side,
			"strategy":  event.Strategy,
			"status":    event.Status,
		}).Info("Signal transition received")

		message := fmt.Sprintf("Signal %d (%s %s, %s) reached %s",
			event.SignalID, event.Side, event.Symbol, event.Strategy, event.Status)
		if event.LastError != "" {
			message += ": " + event.LastError
		}

		level := "INFO"
		if event.Status == "FAILED" || event.Status == "EXECUTED_NO_STOP" {
			level = "WARNING"
		}
		st.LogEvent("SignalWorker", level, message)

		return nil
	})

	if err != nil {
		log.Fatal("Failed to start consumer: ", err)
	}
}
