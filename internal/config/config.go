package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Config struct {
	HTTPAddr            string
	DBDSN               string
	JWTIssuer           string
	JWTSecret           string
	JWTTTL              time.Duration
	InternalToken       string
	WebSocketOrigin     string
	QuoteURL            string
	QuoteTimeout        time.Duration
	QuoteCacheTTL       time.Duration
	QuoteStreamInterval time.Duration
	StartingCash        decimal.Decimal
}

func Load() (Config, error) {
	var c Config
	var missing []string
	c.HTTPAddr = os.Getenv("HTTP_ADDR")
	if c.HTTPAddr == "" {
		missing = append(missing, "HTTP_ADDR")
	}
	c.DBDSN = os.Getenv("DB_DSN")
	if c.DBDSN == "" {
		missing = append(missing, "DB_DSN")
	}
	c.JWTIssuer = os.Getenv("JWT_ISSUER")
	if c.JWTIssuer == "" {
		missing = append(missing, "JWT_ISSUER")
	}
	c.JWTSecret = os.Getenv("JWT_SECRET")
	if c.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	jwtTTL := os.Getenv("JWT_TTL")
	if jwtTTL == "" {
		missing = append(missing, "JWT_TTL")
	} else {
		d, err := time.ParseDuration(jwtTTL)
		if err != nil {
			return c, err
		}
		c.JWTTTL = d
	}
	c.QuoteURL = strings.TrimRight(os.Getenv("QUOTE_URL"), "/")
	if c.QuoteURL == "" {
		missing = append(missing, "QUOTE_URL")
	}
	var err error
	c.QuoteTimeout, err = durationEnv("QUOTE_TIMEOUT", 5*time.Second)
	if err != nil {
		return c, err
	}
	c.QuoteCacheTTL, err = durationEnv("QUOTE_CACHE_TTL", time.Minute)
	if err != nil {
		return c, err
	}
	c.QuoteStreamInterval, err = durationEnv("QUOTE_STREAM_INTERVAL", 5*time.Second)
	if err != nil {
		return c, err
	}
	c.InternalToken = os.Getenv("INTERNAL_API_TOKEN")
	c.WebSocketOrigin = os.Getenv("WS_ORIGIN")
	if c.WebSocketOrigin == "" {
		c.WebSocketOrigin = "*"
	}
	cash := os.Getenv("STARTING_CASH")
	if cash == "" {
		cash = "10000.0000"
	}
	c.StartingCash, err = decimal.NewFromString(cash)
	if err != nil {
		return c, errors.New("invalid STARTING_CASH")
	}
	if c.StartingCash.IsNegative() {
		return c, errors.New("STARTING_CASH must not be negative")
	}
	if len(missing) > 0 {
		return c, errors.New("missing required env: " + strings.Join(missing, ","))
	}
	return c, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, errors.New("invalid " + key)
	}
	if d <= 0 {
		return 0, errors.New(key + " must be positive")
	}
	return d, nil
}
