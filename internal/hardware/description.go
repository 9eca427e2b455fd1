package hardware

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/iwtcode/abbAdapter/internal/interfaces"
	"github.com/iwtcode/abbAdapter/internal/middleware/logging"
	"github.com/iwtcode/abbAdapter/models"
	apperrors "github.com/iwtcode/abbAdapter/pkg/errors"
)

// Параметры оборудования, которые читает построитель описания.
const (
	ParamConfigureViaRWS = "configure_via_rws"
	ParamRWSIP           = "rws_ip"
	ParamRWSPort         = "rws_port"
	ParamRWSUser         = "rws_user"
	ParamRWSPassword     = "rws_password"

	JointParamType = "type"
	JointRevolute  = "revolute"
)

// Значения по умолчанию для запроса описания через RWS.
const (
	DefaultRWSUser     = "Default User"
	DefaultRWSPassword = "robotics"
	DefaultRobotName   = "IRB1200"
)

// BaselineRobotWareVersion - минимальное поддерживаемое поколение контроллеров (OmniCore, RobotWare 7).
var BaselineRobotWareVersion = models.RobotWareVersion{Major: 7, Minor: 3, Patch: 2}

// DescriptionBuilder строит описание контроллера робота.
type DescriptionBuilder interface {
	Build(ctx context.Context, info *models.HardwareInfo) (*models.RobotControllerDescription, error)
	Mode() string
}

// SelectDescriptionBuilder выбирает построитель описания по параметру configure_via_rws.
func SelectDescriptionBuilder(info *models.HardwareInfo, querier interfaces.ControllerQuerier, logger *logging.Logger) DescriptionBuilder {
	if logger == nil {
		logger = logging.NewNop()
	}
	if configureViaRWS(info.HardwareParameters) {
		return &QueryBuilder{querier: querier, logger: logger}
	}
	return &SynthesisBuilder{logger: logger}
}

// configureViaRWS: отсутствие параметра и любое значение, кроме "false"/"False", означают true.
func configureViaRWS(params map[string]string) bool {
	value, ok := params[ParamConfigureViaRWS]
	if !ok {
		return true
	}
	return value != "false" && value != "False"
}

// QueryBuilder получает описание от контроллера через сервис метаданных.
type QueryBuilder struct {
	querier interfaces.ControllerQuerier
	logger  *logging.Logger
}

func (b *QueryBuilder) Mode() string { return "rws" }

func (b *QueryBuilder) Build(ctx context.Context, info *models.HardwareInfo) (*models.RobotControllerDescription, error) {
	params := info.HardwareParameters

	ip := strings.TrimSpace(params[ParamRWSIP])
	if ip == "" || ip == "None" {
		return nil, apperrors.Connectionf(StageRobotDescription, "RWS IP not specified (parameter %q)", ParamRWSIP)
	}

	rawPort, ok := params[ParamRWSPort]
	if !ok {
		return nil, apperrors.Configurationf(StageRobotDescription, "RWS port not specified (parameter %q)", ParamRWSPort)
	}
	port, err := strconv.Atoi(strings.TrimSpace(rawPort))
	if err != nil || port <= 0 || port > 65535 {
		return nil, apperrors.Configurationf(StageRobotDescription, "invalid RWS port %q", rawPort)
	}

	if b.querier == nil {
		return nil, apperrors.Connectionf(StageRobotDescription, "no controller querier configured")
	}

	req := models.RWSRequest{
		Host:      ip,
		Port:      port,
		Username:  paramOrDefault(params, ParamRWSUser, DefaultRWSUser),
		Password:  paramOrDefault(params, ParamRWSPassword, DefaultRWSPassword),
		RobotName: DefaultRobotName,
	}

	b.logger.Info("Generating robot controller description from RWS", "ip", ip, "port", port)
	desc, err := b.querier.QueryDescription(ctx, req)
	if err != nil {
		return nil, apperrors.Connection(StageRobotDescription, fmt.Errorf("failed to query RWS at %s:%d: %w", ip, port, err))
	}
	return desc, nil
}

// SynthesisBuilder строит описание из объявленной конфигурации суставов.
type SynthesisBuilder struct {
	logger *logging.Logger
}

func (b *SynthesisBuilder) Mode() string { return "hardware_info" }

func (b *SynthesisBuilder) Build(_ context.Context, info *models.HardwareInfo) (*models.RobotControllerDescription, error) {
	b.logger.Info("Generating robot controller description from hardware info", "joints", len(info.Joints))

	robot := &models.MechanicalUnit{
		Type:               models.MechanicalUnitTypeTCPRobot,
		Mode:               models.MechanicalUnitModeActivated,
		AxesTotal:          len(info.Joints),
		StandardizedJoints: make([]models.StandardizedJoint, 0, len(info.Joints)),
	}

	for _, joint := range info.Joints {
		// Сустав считается вращательным, если тип не указан явно (соглашение sdformat).
		revolute := true
		if t, ok := joint.Parameters[JointParamType]; ok && t != JointRevolute {
			revolute = false
		}

		position, ok := positionInterface(joint)
		if !ok {
			return nil, apperrors.Configurationf(StageRobotDescription, "joint %q has no %s command interface", joint.Name, models.InterfacePosition)
		}

		lower, err := parseBound(joint.Name, "min", position.Min)
		if err != nil {
			return nil, err
		}
		upper, err := parseBound(joint.Name, "max", position.Max)
		if err != nil {
			return nil, err
		}

		robot.StandardizedJoints = append(robot.StandardizedJoints, models.StandardizedJoint{
			StandardizedName: joint.Name,
			RotatingMove:     revolute,
			LowerJointBound:  lower,
			UpperJointBound:  upper,
		})

		b.logger.Info(fmt.Sprintf("Configured component %s of type %s with range [%.3f, %.3f]", joint.Name, joint.Type, lower, upper),
			"revolute", revolute)
	}

	return &models.RobotControllerDescription{
		Header: models.Header{RobotWareVersion: BaselineRobotWareVersion},
		SystemIndicators: models.SystemIndicators{
			Options: models.SystemOptions{EGM: true},
		},
		MechanicalUnitsGroups: []models.MechanicalUnitGroup{
			{Name: "", Robot: robot},
		},
	}, nil
}

func positionInterface(joint models.JointSpec) (models.InterfaceInfo, bool) {
	for _, iface := range joint.CommandInterfaces {
		if iface.Name == models.InterfacePosition {
			return iface, true
		}
	}
	return models.InterfaceInfo{}, false
}

func parseBound(joint, which, raw string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, apperrors.Configurationf(StageRobotDescription, "joint %q has unparsable %s bound %q", joint, which, raw)
	}
	return v, nil
}

func paramOrDefault(params map[string]string, key, fallback string) string {
	if v, ok := params[key]; ok && v != "" {
		return v
	}
	return fallback
}
