package hardware

import (
	"strings"

	"github.com/iwtcode/abbAdapter/models"
)

// JointNameMarker - маркер, с которого начинается каноническое имя сустава.
const JointNameMarker = "joint"

// NormalizeJointName отбрасывает все, что стоит перед первым вхождением JointNameMarker:
// "ROB_1_joint_3" -> "joint_3". Имена без маркера возвращаются без изменений.
func NormalizeJointName(raw string) string {
	pos := strings.Index(raw, JointNameMarker)
	if pos < 0 {
		return raw
	}
	return raw[pos:]
}

// Handle - заимствованная ссылка на одно значение в MotionData.
// Хранилище принадлежит System и не перевыделяется после инициализации.
type Handle struct {
	JointName     string
	InterfaceName string
	value         *float64
}

// Name возвращает полное имя интерфейса "<сустав>/<интерфейс>".
func (h Handle) Name() string {
	return h.JointName + "/" + h.InterfaceName
}

func (h Handle) Value() float64 {
	return *h.value
}

func (h Handle) SetValue(v float64) {
	*h.value = v
}

// SameStorage сообщает, ссылаются ли два хендла на одно и то же значение.
func (h Handle) SameStorage(other Handle) bool {
	return h.value == other.value
}

// exportHandles обходит иерархию группа -> юнит -> сустав и выдает пару (position, velocity)
// на каждый сустав. pick выбирает State или Command.
func exportHandles(data *models.MotionData, pick func(*models.MotionJoint) *models.JointValues) []Handle {
	handles := make([]Handle, 0, 2*data.JointCount())
	for g := range data.Groups {
		group := &data.Groups[g]
		for u := range group.Units {
			unit := &group.Units[u]
			for j := range unit.Joints {
				joint := &unit.Joints[j]
				name := NormalizeJointName(joint.Name)
				values := pick(joint)
				handles = append(handles,
					Handle{JointName: name, InterfaceName: models.InterfacePosition, value: &values.Position},
					Handle{JointName: name, InterfaceName: models.InterfaceVelocity, value: &values.Velocity},
				)
			}
		}
	}
	return handles
}

func pickState(j *models.MotionJoint) *models.JointValues   { return &j.State }
func pickCommand(j *models.MotionJoint) *models.JointValues { return &j.Command }
