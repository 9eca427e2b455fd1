package egm

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/iwtcode/abbAdapter/internal/interfaces"
	"github.com/iwtcode/abbAdapter/internal/metrics"
	"github.com/iwtcode/abbAdapter/internal/middleware/logging"
	"github.com/iwtcode/abbAdapter/models"
	"golang.org/x/sync/errgroup"
)

// Manager владеет каналами EGM всех групп. Порядок каналов совпадает с порядком групп
// в MotionData.
type Manager struct {
	channels []*Channel
	notify   chan struct{}
	logger   *logging.Logger
}

var _ interfaces.ChannelManager = (*Manager)(nil)

// NewManager открывает по одному каналу на каждую конфигурацию. Если хотя бы один канал
// не открылся, уже открытые закрываются.
func NewManager(configs []models.ChannelConfiguration, logger *logging.Logger, m *metrics.Metrics) (*Manager, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	if len(configs) == 0 {
		return nil, fmt.Errorf("no EGM channel configurations")
	}

	mgr := &Manager{
		channels: make([]*Channel, len(configs)),
		notify:   make(chan struct{}, 1),
		logger:   logger.WithPrefix("EGMManager"),
	}

	var g errgroup.Group
	for i, cfg := range configs {
		i, cfg := i, cfg
		g.Go(func() error {
			ch, err := openChannel(cfg, mgr.notify, mgr.logger, m)
			if err != nil {
				return err
			}
			mgr.channels[i] = ch
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		for _, ch := range mgr.channels {
			if ch != nil {
				_ = ch.Close()
			}
		}
		return nil, fmt.Errorf("failed to open EGM channels: %w", err)
	}

	mgr.logger.Info("EGM channels opened", "count", len(mgr.channels))
	return mgr, nil
}

// Addrs возвращает локальные адреса каналов.
func (m *Manager) Addrs() []*net.UDPAddr {
	addrs := make([]*net.UDPAddr, len(m.channels))
	for i, ch := range m.channels {
		addrs[i] = ch.Addr()
	}
	return addrs
}

func (m *Manager) anyFresh() bool {
	for _, ch := range m.channels {
		if ch.Fresh() {
			return true
		}
	}
	return false
}

// WaitForMessage ждет сообщение на любом из каналов не дольше timeout.
func (m *Manager) WaitForMessage(timeout time.Duration) bool {
	if m.anyFresh() {
		return true
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case <-m.notify:
			if m.anyFresh() {
				return true
			}
		case <-timer.C:
			return m.anyFresh()
		}
	}
}

// Read обновляет состояние суставов всех групп. Возвращает true, только если
// каждый канал дал свежее сообщение.
func (m *Manager) Read(data *models.MotionData) bool {
	all := true
	for i, ch := range m.channels {
		if i >= len(data.Groups) {
			break
		}
		if !ch.Read(&data.Groups[i]) {
			all = false
		}
	}
	return all
}

// Write отправляет команды по всем каналам и объединяет ошибки.
func (m *Manager) Write(data *models.MotionData) error {
	var errs []error
	for i, ch := range m.channels {
		if i >= len(data.Groups) {
			break
		}
		if err := ch.Write(&data.Groups[i]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close закрывает все каналы.
func (m *Manager) Close() error {
	var errs []error
	for _, ch := range m.channels {
		if err := ch.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	m.logger.Info("EGM channels closed", "count", len(m.channels))
	return errors.Join(errs...)
}

// Factory возвращает фабрику каналов для hardware.System.
func Factory(logger *logging.Logger, m *metrics.Metrics) interfaces.ChannelFactory {
	return func(configs []models.ChannelConfiguration) (interfaces.ChannelManager, error) {
		mgr, err := NewManager(configs, logger, m)
		if err != nil {
			return nil, err
		}
		return mgr, nil
	}
}
