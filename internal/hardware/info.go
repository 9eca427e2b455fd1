package hardware

import (
	"fmt"
	"os"

	"github.com/iwtcode/abbAdapter/models"
	"gopkg.in/yaml.v3"
)

// LoadHardwareInfo читает описание оборудования из YAML-файла.
func LoadHardwareInfo(path string) (*models.HardwareInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read hardware description file: %w", err)
	}
	return ParseHardwareInfo(data)
}

// ParseHardwareInfo разбирает описание оборудования из YAML.
func ParseHardwareInfo(data []byte) (*models.HardwareInfo, error) {
	var info models.HardwareInfo
	if err := yaml.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("failed to parse hardware description YAML: %w", err)
	}

	if info.Name == "" {
		return nil, fmt.Errorf("hardware description must have a name")
	}
	if info.HardwareParameters == nil {
		info.HardwareParameters = map[string]string{}
	}
	return &info, nil
}
