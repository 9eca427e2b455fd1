package hardware

import (
	"github.com/iwtcode/abbAdapter/internal/middleware/logging"
	"github.com/iwtcode/abbAdapter/models"
	apperrors "github.com/iwtcode/abbAdapter/pkg/errors"
)

// ValidateInterfaces проверяет, что каждый сустав объявляет ровно два командных интерфейса
// (position, velocity) и ровно два интерфейса состояния (position, velocity) в этом порядке.
// Останавливается на первом нарушении.
func ValidateInterfaces(joints []models.JointSpec, logger *logging.Logger) error {
	if logger == nil {
		logger = logging.NewNop()
	}
	for _, joint := range joints {
		if err := validateJoint(joint); err != nil {
			logger.Error("Joint interface validation failed", "joint", joint.Name, "error", err)
			return err
		}
	}
	return nil
}

func validateJoint(joint models.JointSpec) error {
	if err := validateShape(joint.Name, "command", joint.CommandInterfaces); err != nil {
		return err
	}
	return validateShape(joint.Name, "state", joint.StateInterfaces)
}

func validateShape(joint, kind string, ifaces []models.InterfaceInfo) error {
	if len(ifaces) != 2 {
		return apperrors.Configurationf(StageValidateInterfaces,
			"joint %q has %d %s interfaces %v, 2 expected [%s %s]",
			joint, len(ifaces), kind, interfaceNames(ifaces), models.InterfacePosition, models.InterfaceVelocity)
	}

	expected := [2]string{models.InterfacePosition, models.InterfaceVelocity}
	ordinal := [2]string{"first", "second"}
	for i, want := range expected {
		if ifaces[i].Name != want {
			return apperrors.Configurationf(StageValidateInterfaces,
				"joint %q has %q as %s %s interface, %q expected",
				joint, ifaces[i].Name, ordinal[i], kind, want)
		}
	}
	return nil
}

func interfaceNames(ifaces []models.InterfaceInfo) []string {
	names := make([]string, len(ifaces))
	for i, iface := range ifaces {
		names[i] = iface.Name
	}
	return names
}
