package models

import (
	"fmt"
	"strings"
	"time"
)

// Имена интерфейсов команд и состояний, которые поддерживает адаптер.
const (
	InterfacePosition = "position"
	InterfaceVelocity = "velocity"
)

// InterfaceInfo описывает один командный интерфейс или интерфейс состояния сустава.
type InterfaceInfo struct {
	Name         string `yaml:"name" json:"name"`
	Min          string `yaml:"min,omitempty" json:"min,omitempty"`
	Max          string `yaml:"max,omitempty" json:"max,omitempty"`
	InitialValue string `yaml:"initial_value,omitempty" json:"initial_value,omitempty"`
}

// JointSpec содержит объявленную конфигурацию одного сустава.
type JointSpec struct {
	Name              string            `yaml:"name" json:"name"`
	Type              string            `yaml:"type,omitempty" json:"type,omitempty"`
	CommandInterfaces []InterfaceInfo   `yaml:"command_interfaces" json:"command_interfaces"`
	StateInterfaces   []InterfaceInfo   `yaml:"state_interfaces" json:"state_interfaces"`
	Parameters        map[string]string `yaml:"parameters,omitempty" json:"parameters,omitempty"`
}

// HardwareInfo - статическое описание оборудования, читается один раз при инициализации.
type HardwareInfo struct {
	Name               string            `yaml:"name" json:"name"`
	Type               string            `yaml:"type" json:"type"`
	HardwareParameters map[string]string `yaml:"hardware_parameters" json:"hardware_parameters"`
	Joints             []JointSpec       `yaml:"joints" json:"joints"`
}

// RobotWareVersion - версия ПО контроллера.
type RobotWareVersion struct {
	Major int `json:"major"`
	Minor int `json:"minor"`
	Patch int `json:"patch"`
}

func (v RobotWareVersion) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Header содержит заголовок описания контроллера.
type Header struct {
	RobotWareVersion RobotWareVersion `json:"robot_ware_version"`
}

// SystemOptions - включенные опции контроллера.
type SystemOptions struct {
	EGM bool `json:"egm"`
}

// SystemIndicators содержит флаги возможностей контроллера.
type SystemIndicators struct {
	Options SystemOptions `json:"options"`
}

// MechanicalUnitType - механический тип юнита.
type MechanicalUnitType int

const (
	MechanicalUnitTypeUndefined MechanicalUnitType = iota
	MechanicalUnitTypeTCPRobot
	MechanicalUnitTypeRobot
	MechanicalUnitTypeSingle
)

func (t MechanicalUnitType) String() string {
	switch t {
	case MechanicalUnitTypeTCPRobot:
		return "TCP_ROBOT"
	case MechanicalUnitTypeRobot:
		return "ROBOT"
	case MechanicalUnitTypeSingle:
		return "SINGLE"
	default:
		return "UNDEFINED"
	}
}

// MechanicalUnitMode - режим активации юнита.
type MechanicalUnitMode int

const (
	MechanicalUnitModeUnknown MechanicalUnitMode = iota
	MechanicalUnitModeActivated
	MechanicalUnitModeDeactivated
)

func (m MechanicalUnitMode) String() string {
	switch m {
	case MechanicalUnitModeActivated:
		return "ACTIVATED"
	case MechanicalUnitModeDeactivated:
		return "DEACTIVATED"
	default:
		return "UNKNOWN"
	}
}

// StandardizedJoint - каноническая запись сустава, независимая от именования производителя.
type StandardizedJoint struct {
	StandardizedName string  `json:"standardized_name"`
	RotatingMove     bool    `json:"rotating_move"`
	LowerJointBound  float64 `json:"lower_joint_bound"`
	UpperJointBound  float64 `json:"upper_joint_bound"`
}

// MechanicalUnit описывает робота или внешнюю ось.
type MechanicalUnit struct {
	Name               string              `json:"name"`
	Type               MechanicalUnitType  `json:"type"`
	Mode               MechanicalUnitMode  `json:"mode"`
	AxesTotal          int                 `json:"axes_total"`
	StandardizedJoints []StandardizedJoint `json:"standardized_joints"`
}

// MechanicalUnitGroup - именованная группа юнитов с общим каналом движения.
// MechanicalUnits содержит внешние оси группы, если они есть.
type MechanicalUnitGroup struct {
	Name            string           `json:"name"`
	Robot           *MechanicalUnit  `json:"robot,omitempty"`
	MechanicalUnits []MechanicalUnit `json:"mechanical_units,omitempty"`
}

// Units возвращает все юниты группы: сначала робот, затем внешние оси.
func (g MechanicalUnitGroup) Units() []MechanicalUnit {
	units := make([]MechanicalUnit, 0, len(g.MechanicalUnits)+1)
	if g.Robot != nil {
		units = append(units, *g.Robot)
	}
	return append(units, g.MechanicalUnits...)
}

// RobotControllerDescription - структурированное описание контроллера робота.
type RobotControllerDescription struct {
	Header                Header                `json:"header"`
	SystemIndicators      SystemIndicators      `json:"system_indicators"`
	MechanicalUnitsGroups []MechanicalUnitGroup `json:"mechanical_units_groups"`
}

// Summary форматирует описание в читаемый многострочный текст для лога.
func (d *RobotControllerDescription) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "RobotWare version: %s\n", d.Header.RobotWareVersion)
	fmt.Fprintf(&b, "EGM option: %t\n", d.SystemIndicators.Options.EGM)
	for i, group := range d.MechanicalUnitsGroups {
		fmt.Fprintf(&b, "Mechanical units group %d: %q\n", i+1, group.Name)
		for _, unit := range group.Units() {
			fmt.Fprintf(&b, "  Unit %q type=%s mode=%s axes_total=%d\n", unit.Name, unit.Type, unit.Mode, unit.AxesTotal)
			for _, joint := range unit.StandardizedJoints {
				fmt.Fprintf(&b, "    Joint %q rotating=%t bounds=[%.3f, %.3f]\n",
					joint.StandardizedName, joint.RotatingMove, joint.LowerJointBound, joint.UpperJointBound)
			}
		}
	}
	return b.String()
}

// RWSRequest содержит параметры подключения к сервису метаданных контроллера.
type RWSRequest struct {
	Host      string
	Port      int
	Username  string
	Password  string
	RobotName string
}

// ChannelConfiguration связывает порт канала движения с описанием группы.
type ChannelConfiguration struct {
	Port  uint16
	Group MechanicalUnitGroup
}

// JointValues - физические значения сустава в СИ (рад, м, рад/с, м/с).
type JointValues struct {
	Position float64 `json:"position"`
	Velocity float64 `json:"velocity"`
}

// MotionJoint - зеркало одного сустава. State пишет только чтение из канала,
// Command пишет только запись в канал и начальная инициализация.
type MotionJoint struct {
	Name       string
	Rotational bool
	LowerBound float64
	UpperBound float64
	State      JointValues
	Command    JointValues
}

// MotionUnit - зеркало юнита.
type MotionUnit struct {
	Name   string
	Robot  bool
	Joints []MotionJoint
}

// MotionGroup - зеркало группы юнитов.
type MotionGroup struct {
	Name  string
	Units []MotionUnit
}

// MotionData - рабочее зеркало значений суставов в иерархии группа -> юнит -> сустав.
type MotionData struct {
	Groups []MotionGroup
}

// JointCount возвращает общее количество суставов.
func (m *MotionData) JointCount() int {
	n := 0
	for _, group := range m.Groups {
		for _, unit := range group.Units {
			n += len(unit.Joints)
		}
	}
	return n
}

// JointSnapshot - копия состояния одного сустава для внешних потребителей.
type JointSnapshot struct {
	Group   string      `json:"group"`
	Unit    string      `json:"unit"`
	Name    string      `json:"name"`
	State   JointValues `json:"state"`
	Command JointValues `json:"command"`
}

// AggregatedData содержит сводку состояния адаптера, публикуемую циклом управления.
type AggregatedData struct {
	SessionID string          `json:"session_id"`
	Timestamp time.Time       `json:"timestamp"`
	State     string          `json:"state"`
	Cycles    uint64          `json:"cycles"`
	Joints    []JointSnapshot `json:"joints"`
}
