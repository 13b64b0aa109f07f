package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// App holds the externally configurable knobs for all pipeline stages. Risk
// parameters, polling intervals and the claim lease are tuned per deployment,
// never hard-coded.
type App struct {
	Symbols []string `env:"SYMBOLS" envSeparator:"," envDefault:"NVDA,AAPL,MSFT,AMZN,GOOGL,META,TSLA"`
	// KingsList are the mega-cap symbols eligible for the deep value dip strategy.
	KingsList []string `env:"KINGS_LIST" envSeparator:"," envDefault:"AAPL,MSFT,GOOGL,AMZN,NVDA,TSLA,META"`

	RiskFraction          float64 `env:"RISK_FRACTION" envDefault:"0.01"`
	StopLossFraction      float64 `env:"STOP_LOSS_FRACTION" envDefault:"0.05"`
	MaxAllocationFraction float64 `env:"MAX_ALLOCATION_FRACTION" envDefault:"0.20"`
	TakeProfitRatio       float64 `env:"TAKE_PROFIT_RATIO" envDefault:"2.0"`
	MaxSignalAge          time.Duration `env:"MAX_SIGNAL_AGE" envDefault:"60m"`

	GeneratorInterval time.Duration `env:"GENERATOR_INTERVAL" envDefault:"60s"`
	SizerInterval     time.Duration `env:"SIZER_INTERVAL" envDefault:"15s"`
	ExecutorInterval  time.Duration `env:"EXECUTOR_INTERVAL" envDefault:"10s"`
	ReconcileInterval time.Duration `env:"RECONCILE_INTERVAL" envDefault:"5s"`

	// ClaimLease must exceed the worst-case stage round trip, broker call
	// included, or a live claim gets released under its owner.
	ClaimLease time.Duration `env:"CLAIM_LEASE" envDefault:"2m"`

	// SentimentWindow is how far back the generator averages headline scores.
	SentimentWindow time.Duration `env:"SENTIMENT_WINDOW" envDefault:"5h"`

	BrokerBaseURL string        `env:"BROKER_BASE_URL" envDefault:"https://paper-api.alpaca.markets"`
	BrokerKeyID   string        `env:"BROKER_KEY_ID"`
	BrokerSecret  string        `env:"BROKER_SECRET"`
	BrokerTimeout time.Duration `env:"BROKER_TIMEOUT" envDefault:"10s"`
}

// LoadApp parses the application config from environment variables.
func LoadApp() (App, error) {
	var cfg App
	if err := env.Parse(&cfg); err != nil {
		return App{}, err
	}
	return cfg, nil
}
