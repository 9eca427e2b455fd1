package interfaces

import "github.com/iwtcode/abbAdapter/models"

// StatusSource отдает опубликованное состояние адаптера для API. Методы безопасны
// для вызова из любых горутин.
type StatusSource interface {
	GetSessionID() string
	GetState() string
	GetDescription() *models.RobotControllerDescription
	GetCurrentData() *models.AggregatedData
}
