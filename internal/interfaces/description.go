package interfaces

import (
	"context"

	"github.com/iwtcode/abbAdapter/models"
)

// ControllerQuerier определяет контракт для запроса описания контроллера по сети.
type ControllerQuerier interface {
	QueryDescription(ctx context.Context, req models.RWSRequest) (*models.RobotControllerDescription, error)
}
