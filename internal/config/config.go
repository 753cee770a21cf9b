package config

import (
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

type Config struct {
	AppToken            string `validate:"required"`
	ServiceURL          string `validate:"required,url"`
	UserID              string
	JWT                 string
	EmailCaptureEnabled bool
	SQLITEDsn           string        `validate:"required"`
	SubscribeTimeout    time.Duration `validate:"gt=0"`
	Addr                string        `validate:"required"`
	BridgeJWTSecret     string
	BridgeSendRPM       int    `validate:"gte=0"`
	LogLevel            string `validate:"oneof=debug info warn error"`
}

func getenv(key, def string) string {
	val := os.Getenv(key)
	if val != "" {
		return val
	}
	return def
}

// Load reads the configuration from the environment and validates it.
func Load() (Config, error) {
	subTimeout, err := strconv.Atoi(getenv("FAYE_SUBSCRIBE_TIMEOUT_SEC", "10"))
	if err != nil {
		return Config{}, errors.Wrap(err, "config: FAYE_SUBSCRIBE_TIMEOUT_SEC")
	}
	sendRPM, err := strconv.Atoi(getenv("BRIDGE_SEND_RPM", "60"))
	if err != nil {
		return Config{}, errors.Wrap(err, "config: BRIDGE_SEND_RPM")
	}
	emailCapture, err := strconv.ParseBool(getenv("WIDGET_EMAIL_CAPTURE", "false"))
	if err != nil {
		return Config{}, errors.Wrap(err, "config: WIDGET_EMAIL_CAPTURE")
	}

	cfg := Config{
		AppToken:            getenv("WIDGET_APP_TOKEN", ""),
		ServiceURL:          getenv("WIDGET_SERVICE_URL", "https://api.smooch.io"),
		UserID:              getenv("WIDGET_USER_ID", ""),
		JWT:                 getenv("WIDGET_JWT", ""),
		EmailCaptureEnabled: emailCapture,
		SQLITEDsn:           getenv("WIDGET_SQLITE_DSN", "file:widget.db"),
		SubscribeTimeout:    time.Duration(subTimeout) * time.Second,
		Addr:                getenv("HTTP_ADDR", "127.0.0.1:8089"),
		BridgeJWTSecret:     getenv("BRIDGE_JWT_SECRET", ""),
		BridgeSendRPM:       sendRPM,
		LogLevel:            getenv("LOG_LEVEL", "info"),
	}
	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
