package hardware

import (
	"github.com/iwtcode/abbAdapter/models"
	apperrors "github.com/iwtcode/abbAdapter/pkg/errors"
)

// InitializeMotionData строит зеркало данных движения по описанию контроллера.
// Порядок групп, юнитов и суставов совпадает с описанием, все значения нулевые.
func InitializeMotionData(desc *models.RobotControllerDescription) (*models.MotionData, error) {
	if desc == nil {
		return nil, apperrors.Initializationf(StageMotionData, "robot controller description is nil")
	}
	if len(desc.MechanicalUnitsGroups) == 0 {
		return nil, apperrors.Initializationf(StageMotionData, "robot controller description has no mechanical units groups")
	}

	data := &models.MotionData{
		Groups: make([]models.MotionGroup, 0, len(desc.MechanicalUnitsGroups)),
	}

	for _, group := range desc.MechanicalUnitsGroups {
		units := group.Units()
		if len(units) == 0 {
			return nil, apperrors.Initializationf(StageMotionData, "mechanical units group %q has no units", group.Name)
		}

		motionGroup := models.MotionGroup{
			Name:  group.Name,
			Units: make([]models.MotionUnit, 0, len(units)),
		}

		for i, unit := range units {
			if len(unit.StandardizedJoints) == 0 {
				return nil, apperrors.Initializationf(StageMotionData, "mechanical unit %q in group %q has no joints", unit.Name, group.Name)
			}

			motionUnit := models.MotionUnit{
				Name:   unit.Name,
				Robot:  i == 0 && group.Robot != nil,
				Joints: make([]models.MotionJoint, len(unit.StandardizedJoints)),
			}
			for j, joint := range unit.StandardizedJoints {
				motionUnit.Joints[j] = models.MotionJoint{
					Name:       motionJointName(unit.Name, joint.StandardizedName),
					Rotational: joint.RotatingMove,
					LowerBound: joint.LowerJointBound,
					UpperBound: joint.UpperJointBound,
				}
			}
			motionGroup.Units = append(motionGroup.Units, motionUnit)
		}

		data.Groups = append(data.Groups, motionGroup)
	}

	return data, nil
}

func motionJointName(unit, joint string) string {
	if unit == "" {
		return joint
	}
	return unit + "_" + joint
}
