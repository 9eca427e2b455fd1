package hardware

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/iwtcode/abbAdapter/internal/interfaces"
	"github.com/iwtcode/abbAdapter/internal/metrics"
	"github.com/iwtcode/abbAdapter/internal/middleware/logging"
	"github.com/iwtcode/abbAdapter/models"
	apperrors "github.com/iwtcode/abbAdapter/pkg/errors"
	"golang.org/x/time/rate"
)

// Стадии жизненного цикла, которые попадают в ошибки и логи.
const (
	StageValidateInterfaces   = "validate_interfaces"
	StageRobotDescription     = "robot_description"
	StageMotionData           = "motion_data"
	StageChannelConfiguration = "channel_configuration"
	StageChannelManager       = "channel_manager"
	StageActivation           = "activation"
)

// LifecycleState - состояние аппаратного интерфейса.
type LifecycleState int32

const (
	StateUnconfigured LifecycleState = iota
	StateInactive
	StateActive
	StateError
)

func (s LifecycleState) String() string {
	switch s {
	case StateUnconfigured:
		return "unconfigured"
	case StateInactive:
		return "inactive"
	case StateActive:
		return "active"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// ReturnType - результат одного цикла чтения или записи.
type ReturnType int

const (
	ReturnOK ReturnType = iota
	ReturnError
)

func (r ReturnType) String() string {
	if r == ReturnOK {
		return "ok"
	}
	return "error"
}

// Options содержит зависимости System.
type Options struct {
	Logger         *logging.Logger
	Querier        interfaces.ControllerQuerier
	ChannelFactory interfaces.ChannelFactory
	Policy         ActivationPolicy
	Metrics        *metrics.Metrics
}

// System - аппаратный интерфейс ABB: связывает модель команд/состояний суставов
// с циклическим каналом движения контроллера.
//
// Read и Write вызываются внешним циклом управления из одного потока, поэтому
// MotionData не защищена блокировками.
type System struct {
	info           *models.HardwareInfo
	logger         *logging.Logger
	querier        interfaces.ControllerQuerier
	channelFactory interfaces.ChannelFactory
	policy         ActivationPolicy
	metrics        *metrics.Metrics

	state       atomic.Int32
	description *models.RobotControllerDescription
	motion      *models.MotionData
	channels    interfaces.ChannelManager

	staleLog *rate.Limiter
	writeLog *rate.Limiter
}

// NewSystem создает аппаратный интерфейс в состоянии Unconfigured.
func NewSystem(info *models.HardwareInfo, opts Options) *System {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	if opts.Policy == (ActivationPolicy{}) {
		opts.Policy = DefaultActivationPolicy()
	}

	s := &System{
		info:           info,
		logger:         logger.WithPrefix("ABBSystemHardware"),
		querier:        opts.Querier,
		channelFactory: opts.ChannelFactory,
		policy:         opts.Policy.withDefaults(),
		metrics:        opts.Metrics,
		staleLog:       rate.NewLimiter(rate.Every(5*time.Second), 1),
		writeLog:       rate.NewLimiter(rate.Every(5*time.Second), 1),
	}
	s.setState(StateUnconfigured)
	return s
}

func (s *System) setState(state LifecycleState) {
	s.state.Store(int32(state))
	s.metrics.SetLifecycleState(int(state))
}

// State возвращает текущее состояние жизненного цикла.
func (s *System) State() LifecycleState {
	return LifecycleState(s.state.Load())
}

// Description возвращает описание контроллера, построенное в OnInit.
func (s *System) Description() *models.RobotControllerDescription {
	return s.description
}

// fail переводит экземпляр в ErrorState и сбрасывает частичную конфигурацию.
func (s *System) fail(err error) error {
	s.setState(StateError)
	s.description = nil
	s.motion = nil
	if s.channels != nil {
		if cerr := s.channels.Close(); cerr != nil {
			s.logger.Warn("Failed to close EGM channels", "error", cerr)
		}
		s.channels = nil
	}
	return err
}

func (s *System) requireState(op string, want LifecycleState) error {
	if got := s.State(); got != want {
		return fmt.Errorf("%s: %w: state is %s, %s expected", op, apperrors.ErrInvalidState, got, want)
	}
	return nil
}

// OnInit проверяет интерфейсы, строит описание контроллера, зеркало данных движения,
// конфигурации каналов и открывает каналы. При успехе переходит в Inactive.
func (s *System) OnInit(ctx context.Context) error {
	if err := s.requireState("on_init", StateUnconfigured); err != nil {
		return err
	}
	if s.info == nil {
		return s.fail(apperrors.Configurationf(StageValidateInterfaces, "hardware info is nil"))
	}

	if err := ValidateInterfaces(s.info.Joints, s.logger); err != nil {
		return s.fail(err)
	}

	builder := SelectDescriptionBuilder(s.info, s.querier, s.logger)
	description, err := builder.Build(ctx, s.info)
	if err != nil {
		s.logger.Error("Failed to build robot controller description", "mode", builder.Mode(), "error", err)
		return s.fail(err)
	}
	s.logger.Info("Robot controller description:\n" + description.Summary())

	s.logger.Info("Configuring EGM interface...")
	motion, err := InitializeMotionData(description)
	if err != nil {
		s.logger.Error("Failed to initialize motion data from robot controller description", "error", err)
		return s.fail(err)
	}

	configs, err := BuildChannelConfigurations(description, s.info.HardwareParameters, s.logger)
	if err != nil {
		return s.fail(err)
	}

	if s.channelFactory == nil {
		return s.fail(apperrors.Connectionf(StageChannelManager, "no channel factory configured"))
	}
	channels, err := s.channelFactory(configs)
	if err != nil {
		s.logger.Error("Failed to initialize EGM connection", "error", err)
		if apperrors.KindOf(err) == apperrors.KindUnknown {
			err = apperrors.Connection(StageChannelManager, err)
		}
		return s.fail(err)
	}

	s.description = description
	s.motion = motion
	s.channels = channels
	s.setState(StateInactive)
	s.logger.Info("Hardware interface initialized", "groups", len(motion.Groups), "joints", motion.JointCount())
	return nil
}

// ExportStateInterfaces возвращает хендлы позиции и скорости состояния для каждого сустава.
// Повторные вызовы возвращают хендлы на то же хранилище.
func (s *System) ExportStateInterfaces() ([]Handle, error) {
	if s.motion == nil {
		return nil, fmt.Errorf("export_state_interfaces: %w: hardware interface is not initialized", apperrors.ErrInvalidState)
	}
	return exportHandles(s.motion, pickState), nil
}

// ExportCommandInterfaces возвращает хендлы позиции и скорости команды для каждого сустава.
func (s *System) ExportCommandInterfaces() ([]Handle, error) {
	if s.motion == nil {
		return nil, fmt.Errorf("export_command_interfaces: %w: hardware interface is not initialized", apperrors.ErrInvalidState)
	}
	return exportHandles(s.motion, pickCommand), nil
}

// OnActivate ждет первое сообщение от контроллера с ограниченным числом попыток,
// затем засевает команды текущими позициями, чтобы первая запись удерживала робота на месте.
func (s *System) OnActivate(ctx context.Context) error {
	if err := s.requireState("on_activate", StateInactive); err != nil {
		return err
	}

	if err := newConnector(s.policy, s.channels, s.logger, s.metrics).run(ctx); err != nil {
		return s.fail(err)
	}

	s.channels.Read(s.motion)
	for g := range s.motion.Groups {
		group := &s.motion.Groups[g]
		for u := range group.Units {
			unit := &group.Units[u]
			for j := range unit.Joints {
				joint := &unit.Joints[j]
				joint.Command.Position = joint.State.Position
				joint.Command.Velocity = 0
			}
		}
	}

	s.setState(StateActive)
	s.logger.Info("Hardware interface was successfully started")
	return nil
}

// OnDeactivate останавливает циклический обмен, каналы остаются открытыми.
func (s *System) OnDeactivate(_ context.Context) error {
	if err := s.requireState("on_deactivate", StateActive); err != nil {
		return err
	}
	s.setState(StateInactive)
	s.logger.Info("Hardware interface deactivated")
	return nil
}

// Read обновляет состояние суставов из последнего сообщения контроллера.
// Если свежего сообщения нет, остаются последние известные значения.
func (s *System) Read(_ time.Time, _ time.Duration) ReturnType {
	if s.State() != StateActive {
		return ReturnError
	}
	s.metrics.IncCycle("read")
	if !s.channels.Read(s.motion) {
		s.metrics.IncStaleReads()
		if s.staleLog.Allow() {
			s.logger.Warn("No fresh EGM message, keeping last known state")
		}
	}
	return ReturnOK
}

// Write отправляет команды суставов по всем каналам.
func (s *System) Write(_ time.Time, _ time.Duration) ReturnType {
	if s.State() != StateActive {
		return ReturnError
	}
	s.metrics.IncCycle("write")
	if err := s.channels.Write(s.motion); err != nil {
		s.metrics.IncWriteFailures()
		if s.writeLog.Allow() {
			s.logger.Warn("Failed to send EGM command", "error", err)
		}
	}
	return ReturnOK
}

// Snapshot копирует текущие состояния и команды суставов. Вызывается из потока цикла управления.
func (s *System) Snapshot() []models.JointSnapshot {
	if s.motion == nil {
		return nil
	}
	out := make([]models.JointSnapshot, 0, s.motion.JointCount())
	for _, group := range s.motion.Groups {
		for _, unit := range group.Units {
			for _, joint := range unit.Joints {
				out = append(out, models.JointSnapshot{
					Group:   group.Name,
					Unit:    unit.Name,
					Name:    NormalizeJointName(joint.Name),
					State:   joint.State,
					Command: joint.Command,
				})
			}
		}
	}
	return out
}

// Close освобождает каналы. Экземпляр после Close не используется.
func (s *System) Close() error {
	if s.channels == nil {
		return nil
	}
	err := s.channels.Close()
	s.channels = nil
	if s.State() == StateActive || s.State() == StateInactive {
		s.setState(StateUnconfigured)
	}
	s.motion = nil
	if err != nil {
		return fmt.Errorf("failed to close EGM channels: %w", err)
	}
	return nil
}
