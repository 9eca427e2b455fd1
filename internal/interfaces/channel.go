package interfaces

import (
	"time"

	"github.com/iwtcode/abbAdapter/models"
)

// ChannelManager определяет контракт для менеджера циклических каналов движения.
// Порядок групп в MotionData совпадает с порядком конфигураций, переданных фабрике.
type ChannelManager interface {
	// WaitForMessage ждет сообщение от контроллера по любому каналу не дольше timeout.
	WaitForMessage(timeout time.Duration) bool
	// Read обновляет состояние суставов из последних принятых сообщений.
	// Возвращает false, если хотя бы один канал не прислал свежих данных.
	Read(data *models.MotionData) bool
	// Write отправляет команды суставов по всем каналам.
	Write(data *models.MotionData) error
	Close() error
}

// ChannelFactory открывает по одному каналу на каждую конфигурацию.
type ChannelFactory func(configs []models.ChannelConfiguration) (ChannelManager, error)
