package abb

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/iwtcode/abbAdapter/egm"
	"github.com/iwtcode/abbAdapter/internal/hardware"
	"github.com/iwtcode/abbAdapter/internal/interfaces"
	"github.com/iwtcode/abbAdapter/internal/loop"
	"github.com/iwtcode/abbAdapter/internal/metrics"
	"github.com/iwtcode/abbAdapter/internal/middleware/logging"
	"github.com/iwtcode/abbAdapter/models"
	"github.com/iwtcode/abbAdapter/rws"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
)

// Client является основной точкой входа для взаимодействия с библиотекой.
// Связывает аппаратный интерфейс, каналы EGM, запрос описания через RWS и цикл управления.
type Client struct {
	config    *Config
	logger    *logging.Logger
	sessionID string
	registry  *prometheus.Registry
	metrics   *metrics.Metrics
	system    *hardware.System

	description atomic.Pointer[models.RobotControllerDescription]
	snapshot    atomic.Pointer[models.AggregatedData]
}

// Option переопределяет внешние зависимости клиента.
type Option func(*clientOptions)

type clientOptions struct {
	channelFactory interfaces.ChannelFactory
	querier        interfaces.ControllerQuerier
	logger         *logging.Logger
}

// WithChannelFactory заменяет фабрику каналов EGM.
func WithChannelFactory(f interfaces.ChannelFactory) Option {
	return func(o *clientOptions) { o.channelFactory = f }
}

// WithQuerier заменяет клиента RWS.
func WithQuerier(q interfaces.ControllerQuerier) Option {
	return func(o *clientOptions) { o.querier = q }
}

// WithLogger задает готовый логгер.
func WithLogger(l *logging.Logger) Option {
	return func(o *clientOptions) { o.logger = l }
}

// New читает описание оборудования из cfg.HardwareFile и создает клиента.
func New(cfg *Config, opts ...Option) (*Client, error) {
	info, err := hardware.LoadHardwareInfo(cfg.HardwareFile)
	if err != nil {
		return nil, err
	}
	return NewWithInfo(cfg, info, opts...)
}

// NewWithInfo создает клиента по уже разобранному описанию оборудования.
func NewWithInfo(cfg *Config, info *models.HardwareInfo, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	o := clientOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	if logger == nil {
		level := strings.ToLower(cfg.LogLevel)
		logger = logging.NewLogger(&logging.Config{
			Enabled:    level != "off" && level != "none",
			Level:      cfg.LogLevel,
			LogsDir:    cfg.LogsDir,
			SavingDays: uint(cfg.LogSavingDays),
		}, "ABB")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(registry)

	if o.channelFactory == nil {
		o.channelFactory = egm.Factory(logger, m)
	}
	if o.querier == nil {
		o.querier = rws.NewQuerier(cfg.RWSTimeout, logger)
	}

	c := &Client{
		config:    cfg,
		logger:    logger,
		sessionID: uuid.NewString(),
		registry:  registry,
		metrics:   m,
		system: hardware.NewSystem(info, hardware.Options{
			Logger:         logger,
			Querier:        o.querier,
			ChannelFactory: o.channelFactory,
			Policy:         cfg.Activation,
			Metrics:        m,
		}),
	}
	c.publish(0)
	return c, nil
}

// Start выполняет OnInit и OnActivate. Блокируется до установления связи с контроллером
// или исчерпания попыток.
func (c *Client) Start(ctx context.Context) error {
	c.logger.Info("Starting ABB hardware interface", "session_id", c.sessionID)

	if err := c.system.OnInit(ctx); err != nil {
		c.publish(0)
		return fmt.Errorf("failed to configure hardware interface: %w", err)
	}
	c.description.Store(c.system.Description())

	if err := c.system.OnActivate(ctx); err != nil {
		c.description.Store(nil)
		c.publish(0)
		return fmt.Errorf("failed to activate hardware interface: %w", err)
	}
	c.publish(0)
	return nil
}

// Run крутит цикл управления до отмены ctx, затем деактивирует интерфейс.
func (c *Client) Run(ctx context.Context) error {
	l := loop.New(c.system, c.config.CyclePeriod, c.logger, c.publish)
	err := l.Run(ctx)

	if c.system.State() == hardware.StateActive {
		if derr := c.system.OnDeactivate(context.Background()); derr != nil {
			c.logger.Warn("Failed to deactivate hardware interface", "error", derr)
		}
	}
	c.publish(0)
	return err
}

// publish копирует состояние суставов для читателей из других горутин.
// Вызывается только из горутины, владеющей аппаратным интерфейсом.
func (c *Client) publish(cycle uint64) {
	prev := c.snapshot.Load()
	if cycle == 0 && prev != nil {
		cycle = prev.Cycles
	}
	c.snapshot.Store(&models.AggregatedData{
		SessionID: c.sessionID,
		Timestamp: time.Now(),
		State:     c.system.State().String(),
		Cycles:    cycle,
		Joints:    c.system.Snapshot(),
	})
}

// Close закрывает каналы EGM и файл логов.
func (c *Client) Close() error {
	err := c.system.Close()
	c.description.Store(nil)
	if lerr := c.logger.Close(); lerr != nil && err == nil {
		err = lerr
	}
	return err
}

// GetLogger возвращает используемый логгер.
func (c *Client) GetLogger() *logrus.Logger {
	return c.logger.Logrus()
}

// GetSessionID возвращает идентификатор текущего запуска адаптера.
func (c *Client) GetSessionID() string {
	return c.sessionID
}

// GetState возвращает состояние жизненного цикла.
func (c *Client) GetState() string {
	return c.system.State().String()
}

// GetDescription возвращает описание контроллера или nil до успешного OnInit.
func (c *Client) GetDescription() *models.RobotControllerDescription {
	return c.description.Load()
}

// GetCurrentData возвращает последнюю опубликованную сводку.
func (c *Client) GetCurrentData() *models.AggregatedData {
	return c.snapshot.Load()
}

// GetSystem возвращает аппаратный интерфейс для экспорта хендлов.
func (c *Client) GetSystem() *hardware.System {
	return c.system
}

// Registry возвращает реестр метрик адаптера.
func (c *Client) Registry() *prometheus.Registry {
	return c.registry
}
