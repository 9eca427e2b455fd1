package hardware

import (
	"context"
	"time"

	"github.com/iwtcode/abbAdapter/internal/interfaces"
	"github.com/iwtcode/abbAdapter/internal/metrics"
	"github.com/iwtcode/abbAdapter/internal/middleware/logging"
	apperrors "github.com/iwtcode/abbAdapter/pkg/errors"
)

// Значения политики активации по умолчанию.
const (
	DefaultMaxConnectionAttempts = 100
	DefaultRetryInterval         = 500 * time.Millisecond
	DefaultWaitTimeout           = 500 * time.Millisecond
)

// ActivationPolicy задает ограниченный повтор ожидания первого сообщения от контроллера.
type ActivationPolicy struct {
	MaxAttempts   int
	RetryInterval time.Duration
	WaitTimeout   time.Duration
}

func DefaultActivationPolicy() ActivationPolicy {
	return ActivationPolicy{
		MaxAttempts:   DefaultMaxConnectionAttempts,
		RetryInterval: DefaultRetryInterval,
		WaitTimeout:   DefaultWaitTimeout,
	}
}

func (p ActivationPolicy) withDefaults() ActivationPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxConnectionAttempts
	}
	if p.RetryInterval < 0 {
		p.RetryInterval = 0
	}
	if p.WaitTimeout <= 0 {
		p.WaitTimeout = DefaultWaitTimeout
	}
	return p
}

type connectPhase int

const (
	phaseWaiting connectPhase = iota
	phaseSleeping
	phaseConnected
	phaseExhausted
	phaseCancelled
)

// connector - конечный автомат ожидания связи: счетчик попыток и проверка отмены на каждой итерации.
type connector struct {
	policy   ActivationPolicy
	channels interfaces.ChannelManager
	logger   *logging.Logger
	metrics  *metrics.Metrics

	phase   connectPhase
	attempt int
}

func newConnector(policy ActivationPolicy, channels interfaces.ChannelManager, logger *logging.Logger, m *metrics.Metrics) *connector {
	return &connector{
		policy:   policy.withDefaults(),
		channels: channels,
		logger:   logger,
		metrics:  m,
		phase:    phaseWaiting,
	}
}

// run выполняет попытки 1..MaxAttempts. Между попытками выдерживается RetryInterval,
// после последней попытки пауза не делается.
func (c *connector) run(ctx context.Context) error {
	c.logger.Info("Connecting to robot...", "max_attempts", c.policy.MaxAttempts, "retry_interval", c.policy.RetryInterval)

	for {
		switch c.phase {
		case phaseWaiting:
			if ctx.Err() != nil {
				c.phase = phaseCancelled
				continue
			}
			c.attempt++
			c.metrics.IncActivationAttempts()
			if c.channels.WaitForMessage(c.policy.WaitTimeout) {
				c.phase = phaseConnected
				continue
			}
			c.logger.Info("Not connected to robot...", "attempt", c.attempt)
			if c.attempt >= c.policy.MaxAttempts {
				c.phase = phaseExhausted
				continue
			}
			c.phase = phaseSleeping

		case phaseSleeping:
			if err := sleepContext(ctx, c.policy.RetryInterval); err != nil {
				c.phase = phaseCancelled
				continue
			}
			c.phase = phaseWaiting

		case phaseConnected:
			c.logger.Info("Connected to robot", "attempt", c.attempt)
			return nil

		case phaseExhausted:
			c.logger.Error("Failed to connect to robot", "attempts", c.attempt)
			return apperrors.Connectionf(StageActivation, "no message from robot controller after %d attempts", c.attempt)

		case phaseCancelled:
			c.logger.Warn("Connection to robot cancelled", "attempts", c.attempt)
			return apperrors.Connection(StageActivation, ctx.Err())
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
