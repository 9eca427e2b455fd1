package abb

import (
	"os"
	"strconv"
	"time"

	"github.com/iwtcode/abbAdapter/internal/hardware"
	"github.com/iwtcode/abbAdapter/internal/loop"
)

// Config хранит модель конфигурации адаптера
type Config struct {
	HardwareFile  string
	CyclePeriod   time.Duration
	Activation    hardware.ActivationPolicy
	RWSTimeout    time.Duration
	LogLevel      string
	LogsDir       string
	LogSavingDays int
}

// Load загружает конфигурацию из переменных окружения
func Load() *Config {
	hardwareFile := os.Getenv("ABB_HARDWARE_FILE")
	if hardwareFile == "" {
		hardwareFile = "configs/abb_irb1200.yaml"
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}

	return &Config{
		HardwareFile: hardwareFile,
		CyclePeriod:  envMillis("ABB_CYCLE_PERIOD_MS", loop.DefaultPeriod),
		Activation: hardware.ActivationPolicy{
			MaxAttempts:   envInt("ABB_CONNECT_ATTEMPTS", hardware.DefaultMaxConnectionAttempts),
			RetryInterval: envMillis("ABB_CONNECT_INTERVAL_MS", hardware.DefaultRetryInterval),
			WaitTimeout:   envMillis("ABB_WAIT_TIMEOUT_MS", hardware.DefaultWaitTimeout),
		},
		RWSTimeout:    envMillis("ABB_RWS_TIMEOUT_MS", 5*time.Second),
		LogLevel:      logLevel,
		LogsDir:       os.Getenv("LOGGER_LOGS_DIR"),
		LogSavingDays: envInt("LOGGER_SAVING_DAYS", 7),
	}
}

func envInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func envMillis(key string, fallback time.Duration) time.Duration {
	v, err := strconv.ParseInt(os.Getenv(key), 10, 64)
	if err != nil || v <= 0 {
		return fallback
	}
	return time.Duration(v) * time.Millisecond
}
