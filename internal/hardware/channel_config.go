package hardware

import (
	"strconv"
	"strings"

	"github.com/iwtcode/abbAdapter/internal/middleware/logging"
	"github.com/iwtcode/abbAdapter/models"
	apperrors "github.com/iwtcode/abbAdapter/pkg/errors"
)

// EGMPortSuffix - суффикс параметра порта канала: "<имя группы>egm_port".
const EGMPortSuffix = "egm_port"

// BuildChannelConfigurations создает по одной конфигурации канала на каждую группу юнитов
// в порядке групп описания.
func BuildChannelConfigurations(desc *models.RobotControllerDescription, params map[string]string, logger *logging.Logger) ([]models.ChannelConfiguration, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	configs := make([]models.ChannelConfiguration, 0, len(desc.MechanicalUnitsGroups))

	for _, group := range desc.MechanicalUnitsGroups {
		key := group.Name + EGMPortSuffix
		raw, ok := params[key]
		if !ok {
			logger.Error("EGM port for mechanical unit group not specified in hardware parameters", "group", group.Name, "parameter", key)
			return nil, apperrors.Configurationf(StageChannelConfiguration,
				"EGM port for mechanical unit group %q not specified (parameter %q)", group.Name, key)
		}

		port, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 16)
		if err != nil {
			logger.Error("Invalid EGM port for mechanical unit group", "group", group.Name, "parameter", key, "value", raw)
			return nil, apperrors.Configurationf(StageChannelConfiguration,
				"invalid EGM port %q for mechanical unit group %q (parameter %q)", raw, group.Name, key)
		}

		configs = append(configs, models.ChannelConfiguration{
			Port:  uint16(port),
			Group: group,
		})
		logger.Info("Configuring EGM for mechanical unit group", "group", group.Name, "port", port)
	}

	return configs, nil
}
