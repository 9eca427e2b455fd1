package errors

import (
	"errors"
	"fmt"
)

// NotFound - сообщение ответа API, когда данные еще не опубликованы.
const NotFound = "not_found"

// Kind классифицирует ошибку адаптера.
type Kind int

const (
	KindUnknown Kind = iota
	KindConfiguration
	KindConnection
	KindInitialization
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindConnection:
		return "connection"
	case KindInitialization:
		return "initialization"
	default:
		return "unknown"
	}
}

var (
	// ErrConfiguration - объявленная конфигурация отсутствует или некорректна. Не повторяется.
	ErrConfiguration = errors.New("configuration error")
	// ErrConnection - контроллер или канал недоступен.
	ErrConnection = errors.New("connection error")
	// ErrInitialization - внутреннее несоответствие описания и зеркала данных движения.
	ErrInitialization = errors.New("initialization error")
	// ErrInvalidState - операция вызвана в неподходящем состоянии жизненного цикла.
	ErrInvalidState = errors.New("invalid lifecycle state")
)

func (k Kind) sentinel() error {
	switch k {
	case KindConfiguration:
		return ErrConfiguration
	case KindConnection:
		return ErrConnection
	case KindInitialization:
		return ErrInitialization
	default:
		return nil
	}
}

// HardwareError - ошибка с указанием класса и стадии, на которой она возникла.
type HardwareError struct {
	Kind  Kind   `json:"kind"`
	Stage string `json:"stage"`
	Err   error  `json:"-"`
}

func (e *HardwareError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s error at stage %s: %v", e.Kind, e.Stage, e.Err)
	}
	return fmt.Sprintf("%s error at stage %s", e.Kind, e.Stage)
}

func (e *HardwareError) Unwrap() error {
	return e.Err
}

// Is позволяет сравнивать ошибку с ErrConfiguration, ErrConnection и ErrInitialization.
func (e *HardwareError) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// New создает новый экземпляр HardwareError.
func New(kind Kind, stage string, err error) *HardwareError {
	return &HardwareError{Kind: kind, Stage: stage, Err: err}
}

func Configuration(stage string, err error) error {
	return New(KindConfiguration, stage, err)
}

func Configurationf(stage, format string, args ...interface{}) error {
	return New(KindConfiguration, stage, fmt.Errorf(format, args...))
}

func Connection(stage string, err error) error {
	return New(KindConnection, stage, err)
}

func Connectionf(stage, format string, args ...interface{}) error {
	return New(KindConnection, stage, fmt.Errorf(format, args...))
}

func Initialization(stage string, err error) error {
	return New(KindInitialization, stage, err)
}

func Initializationf(stage, format string, args ...interface{}) error {
	return New(KindInitialization, stage, fmt.Errorf(format, args...))
}

// KindOf возвращает класс ошибки или KindUnknown.
func KindOf(err error) Kind {
	var he *HardwareError
	if errors.As(err, &he) {
		return he.Kind
	}
	return KindUnknown
}

// StageOf возвращает стадию, на которой возникла ошибка.
func StageOf(err error) string {
	var he *HardwareError
	if errors.As(err, &he) {
		return he.Stage
	}
	return ""
}
