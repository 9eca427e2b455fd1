package loop

import (
	"context"
	"fmt"
	"time"

	"github.com/iwtcode/abbAdapter/internal/hardware"
	"github.com/iwtcode/abbAdapter/internal/middleware/logging"
)

// DefaultPeriod - период цикла по умолчанию (250 Гц, как у EGM).
const DefaultPeriod = 4 * time.Millisecond

// Hardware - то, что цикл вызывает на каждом такте.
type Hardware interface {
	Read(now time.Time, period time.Duration) hardware.ReturnType
	Write(now time.Time, period time.Duration) hardware.ReturnType
}

// CycleFunc вызывается после каждого такта из горутины цикла.
type CycleFunc func(cycle uint64)

// Loop - цикл управления с фиксированным периодом: Read, затем Write.
// Все вызовы Hardware выполняются из одной горутины.
type Loop struct {
	hw      Hardware
	period  time.Duration
	logger  *logging.Logger
	onCycle CycleFunc
}

func New(hw Hardware, period time.Duration, logger *logging.Logger, onCycle CycleFunc) *Loop {
	if period <= 0 {
		period = DefaultPeriod
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Loop{hw: hw, period: period, logger: logger.WithPrefix("Loop"), onCycle: onCycle}
}

// Run выполняет такты до отмены ctx. Возвращает ошибку, если аппаратный интерфейс
// отказал в чтении или записи (например, вышел из состояния Active).
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.period)
	defer ticker.Stop()

	l.logger.Info("Control loop started", "period", l.period)
	last := time.Now()
	var cycle uint64

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("Control loop stopped", "cycles", cycle)
			return nil
		case now := <-ticker.C:
			period := now.Sub(last)
			last = now

			if rt := l.hw.Read(now, period); rt != hardware.ReturnOK {
				return fmt.Errorf("read failed at cycle %d: %s", cycle+1, rt)
			}
			if rt := l.hw.Write(now, period); rt != hardware.ReturnOK {
				return fmt.Errorf("write failed at cycle %d: %s", cycle+1, rt)
			}

			cycle++
			if l.onCycle != nil {
				l.onCycle(cycle)
			}
		}
	}
}
