package rws

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/iwtcode/abbAdapter/internal/interfaces"
	"github.com/iwtcode/abbAdapter/internal/middleware/logging"
	"github.com/iwtcode/abbAdapter/models"
)

// EGMOptionMarker - подстрока названия опции RobotWare, включающей EGM.
const EGMOptionMarker = "Externally Guided Motion"

// Атрибуты экземпляра MOC/ARM.
const (
	attrUpperBound = "upper_joint_bound"
	attrLowerBound = "lower_joint_bound"
)

// Querier собирает описание контроллера из ресурсов RWS.
type Querier struct {
	timeout time.Duration
	logger  *logging.Logger
}

var _ interfaces.ControllerQuerier = (*Querier)(nil)

func NewQuerier(timeout time.Duration, logger *logging.Logger) *Querier {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Querier{timeout: timeout, logger: logger.WithPrefix("RWS")}
}

// QueryDescription опрашивает систему, опции, механические юниты и конфигурацию осей.
func (q *Querier) QueryDescription(ctx context.Context, req models.RWSRequest) (*models.RobotControllerDescription, error) {
	client, err := NewClient(req, q.timeout, q.logger)
	if err != nil {
		return nil, err
	}
	q.logger.Info("Querying robot controller", "host", req.Host, "port", req.Port, "robot", req.RobotName)

	desc := &models.RobotControllerDescription{}

	system, err := client.GetState(ctx, PathSystem)
	if err != nil {
		return nil, fmt.Errorf("reading system info: %w", err)
	}
	for _, entry := range system {
		if entry.RWVersion != "" {
			desc.Header.RobotWareVersion = ParseRobotWareVersion(entry.RWVersion)
			break
		}
	}

	options, err := client.GetState(ctx, PathSystemOptions)
	if err != nil {
		return nil, fmt.Errorf("reading system options: %w", err)
	}
	for _, entry := range options {
		if strings.Contains(entry.Option, EGMOptionMarker) {
			desc.SystemIndicators.Options.EGM = true
			break
		}
	}

	bounds, err := q.readArmBounds(ctx, client)
	if err != nil {
		return nil, err
	}

	units, err := client.GetState(ctx, PathMechUnits)
	if err != nil {
		return nil, fmt.Errorf("reading mechanical units: %w", err)
	}

	groups := map[string]int{}
	for _, listed := range units {
		if listed.Title == "" {
			continue
		}
		detail, err := client.GetState(ctx, PathMechUnits+"/"+url.PathEscape(listed.Title))
		if err != nil {
			return nil, fmt.Errorf("reading mechanical unit %q: %w", listed.Title, err)
		}
		if len(detail) == 0 {
			continue
		}

		entry := detail[0]
		if entry.Task == "" {
			q.logger.Debug("Skipping mechanical unit without motion task", "unit", listed.Title)
			continue
		}
		unit := buildUnit(listed.Title, entry, bounds)

		idx, ok := groups[entry.Task]
		if !ok {
			idx = len(desc.MechanicalUnitsGroups)
			groups[entry.Task] = idx
			desc.MechanicalUnitsGroups = append(desc.MechanicalUnitsGroups, models.MechanicalUnitGroup{Name: entry.Task})
		}
		group := &desc.MechanicalUnitsGroups[idx]
		if group.Robot == nil && (unit.Type == models.MechanicalUnitTypeTCPRobot || unit.Type == models.MechanicalUnitTypeRobot) {
			group.Robot = &unit
		} else {
			group.MechanicalUnits = append(group.MechanicalUnits, unit)
		}
	}

	if len(desc.MechanicalUnitsGroups) == 0 {
		return nil, fmt.Errorf("controller reports no mechanical units bound to motion tasks")
	}
	return desc, nil
}

// readArmBounds возвращает пределы осей по имени экземпляра MOC/ARM ("rob1_1" и т.п.).
func (q *Querier) readArmBounds(ctx context.Context, client *Client) (map[string][2]float64, error) {
	arms, err := client.GetState(ctx, PathArmInstances)
	if err != nil {
		return nil, fmt.Errorf("reading arm configuration: %w", err)
	}

	bounds := make(map[string][2]float64, len(arms))
	for _, arm := range arms {
		lower, okL := arm.Attrib.Value(attrLowerBound)
		upper, okU := arm.Attrib.Value(attrUpperBound)
		if !okL || !okU {
			continue
		}
		lo, errL := strconv.ParseFloat(lower, 64)
		hi, errU := strconv.ParseFloat(upper, 64)
		if errL != nil || errU != nil {
			q.logger.Warn("Unparsable arm bounds", "arm", arm.Title, "lower", lower, "upper", upper)
			continue
		}
		bounds[arm.Title] = [2]float64{lo, hi}
	}
	return bounds, nil
}

func buildUnit(name string, entry Entry, bounds map[string][2]float64) models.MechanicalUnit {
	axes := atoi(entry.AxesTotal)
	if axes == 0 {
		axes = atoi(entry.Axes)
	}

	unit := models.MechanicalUnit{
		Name:               name,
		Type:               ParseUnitType(entry.UnitType),
		Mode:               ParseUnitMode(entry.Mode),
		AxesTotal:          axes,
		StandardizedJoints: make([]models.StandardizedJoint, 0, axes),
	}

	prefix := ArmPrefix(name)
	for i := 1; i <= axes; i++ {
		joint := models.StandardizedJoint{
			StandardizedName: fmt.Sprintf("joint_%d", i),
			RotatingMove:     true,
		}
		if b, ok := bounds[fmt.Sprintf("%s_%d", prefix, i)]; ok {
			joint.LowerJointBound, joint.UpperJointBound = b[0], b[1]
		}
		unit.StandardizedJoints = append(unit.StandardizedJoints, joint)
	}
	return unit
}

// ArmPrefix переводит имя юнита в префикс экземпляров MOC/ARM: "ROB_1" -> "rob1".
func ArmPrefix(unit string) string {
	return strings.ToLower(strings.ReplaceAll(unit, "_", ""))
}

// ParseRobotWareVersion разбирает строки вида "6.08.00.00" или "7.3.2".
func ParseRobotWareVersion(raw string) models.RobotWareVersion {
	parts := strings.SplitN(strings.TrimSpace(raw), ".", 4)
	var v models.RobotWareVersion
	if len(parts) > 0 {
		v.Major = atoi(parts[0])
	}
	if len(parts) > 1 {
		v.Minor = atoi(parts[1])
	}
	if len(parts) > 2 {
		v.Patch = atoi(parts[2])
	}
	return v
}

func ParseUnitType(raw string) models.MechanicalUnitType {
	switch strings.ToLower(raw) {
	case "tcprobot", "tcp_robot":
		return models.MechanicalUnitTypeTCPRobot
	case "robot":
		return models.MechanicalUnitTypeRobot
	case "single":
		return models.MechanicalUnitTypeSingle
	default:
		return models.MechanicalUnitTypeUndefined
	}
}

func ParseUnitMode(raw string) models.MechanicalUnitMode {
	switch strings.ToLower(raw) {
	case "activated":
		return models.MechanicalUnitModeActivated
	case "deactivated":
		return models.MechanicalUnitModeDeactivated
	default:
		return models.MechanicalUnitModeUnknown
	}
}
