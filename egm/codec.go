package egm

import (
	"errors"
	"fmt"
	"math"
	"time"

	"google.golang.org/protobuf/encoding/protowire"
)

// MessageType - тип сообщения в заголовке EGM.
type MessageType int32

const (
	MessageUndefined MessageType = iota
	MessageCommand
	MessageData
	MessageCorrection
	MessagePathCorrection
)

// MotorState - состояние моторов контроллера.
type MotorState int32

const (
	MotorUndefined MotorState = iota
	MotorOn
	MotorOff
)

// MCIState - состояние сессии EGM на контроллере.
type MCIState int32

const (
	MCIUndefined MCIState = iota
	MCIError
	MCIStopped
	MCIRunning
)

// RAPIDExecState - состояние выполнения RAPID-программы.
type RAPIDExecState int32

const (
	RAPIDUndefined RAPIDExecState = iota
	RAPIDStopped
	RAPIDRunning
)

// Номера полей egm.proto.
const (
	robotHeader    protowire.Number = 1
	robotFeedback  protowire.Number = 2
	robotMotor     protowire.Number = 4
	robotMCI       protowire.Number = 5
	robotRAPIDExec protowire.Number = 8

	headerSeqno protowire.Number = 1
	headerTm    protowire.Number = 2
	headerMtype protowire.Number = 3

	feedbackJoints   protowire.Number = 1
	feedbackExternal protowire.Number = 3
	feedbackTime     protowire.Number = 4

	jointsValues protowire.Number = 1

	clockSec  protowire.Number = 1
	clockUsec protowire.Number = 2

	stateValue protowire.Number = 1

	sensorHeader   protowire.Number = 1
	sensorPlanned  protowire.Number = 2
	sensorSpeedRef protowire.Number = 3

	plannedJoints   protowire.Number = 1
	plannedExternal protowire.Number = 3
)

var ErrMalformed = errors.New("malformed EGM message")

// Header - заголовок сообщения EGM.
type Header struct {
	Seqno uint32
	Tm    uint32
	Type  MessageType
}

// RobotMessage - сообщение EgmRobot от контроллера. Значения суставов в единицах протокола:
// градусы для вращательных осей, миллиметры для линейных.
type RobotMessage struct {
	Header         Header
	Joints         []float64
	ExternalJoints []float64
	TimeSec        uint64
	TimeUsec       uint64
	HasTime        bool
	MotorState     MotorState
	MCIState       MCIState
	RAPIDExecState RAPIDExecState
}

// Time возвращает время обратной связи контроллера.
func (m *RobotMessage) Time() time.Duration {
	return time.Duration(m.TimeSec)*time.Second + time.Duration(m.TimeUsec)*time.Microsecond
}

// SensorMessage - сообщение EgmSensor с заданием для контроллера.
type SensorMessage struct {
	Header          Header
	PlannedJoints   []float64
	PlannedExternal []float64
	SpeedJoints     []float64
	SpeedExternal   []float64
}

type field struct {
	num protowire.Number
	typ protowire.Type
	u64 uint64
	buf []byte
}

func parseFields(b []byte, fn func(f field) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]

		f := field{num: num, typ: typ}
		switch typ {
		case protowire.VarintType:
			f.u64, n = protowire.ConsumeVarint(b)
		case protowire.Fixed64Type:
			f.u64, n = protowire.ConsumeFixed64(b)
		case protowire.Fixed32Type:
			var v uint32
			v, n = protowire.ConsumeFixed32(b)
			f.u64 = uint64(v)
		case protowire.BytesType:
			f.buf, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return fmt.Errorf("%w: field %d: %v", ErrMalformed, num, protowire.ParseError(n))
		}
		b = b[n:]

		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}

// DecodeRobot разбирает EgmRobot. Неизвестные поля пропускаются.
func DecodeRobot(b []byte) (*RobotMessage, error) {
	msg := &RobotMessage{}
	err := parseFields(b, func(f field) error {
		switch {
		case f.num == robotHeader && f.typ == protowire.BytesType:
			return decodeHeader(f.buf, &msg.Header)
		case f.num == robotFeedback && f.typ == protowire.BytesType:
			return decodeFeedback(f.buf, msg)
		case f.num == robotMotor && f.typ == protowire.BytesType:
			v, err := decodeState(f.buf)
			msg.MotorState = MotorState(v)
			return err
		case f.num == robotMCI && f.typ == protowire.BytesType:
			v, err := decodeState(f.buf)
			msg.MCIState = MCIState(v)
			return err
		case f.num == robotRAPIDExec && f.typ == protowire.BytesType:
			v, err := decodeState(f.buf)
			msg.RAPIDExecState = RAPIDExecState(v)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

func decodeHeader(b []byte, h *Header) error {
	return parseFields(b, func(f field) error {
		if f.typ != protowire.VarintType {
			return nil
		}
		switch f.num {
		case headerSeqno:
			h.Seqno = uint32(f.u64)
		case headerTm:
			h.Tm = uint32(f.u64)
		case headerMtype:
			h.Type = MessageType(f.u64)
		}
		return nil
	})
}

func decodeFeedback(b []byte, msg *RobotMessage) error {
	return parseFields(b, func(f field) error {
		if f.typ != protowire.BytesType {
			return nil
		}
		var err error
		switch f.num {
		case feedbackJoints:
			msg.Joints, err = decodeJoints(f.buf)
		case feedbackExternal:
			msg.ExternalJoints, err = decodeJoints(f.buf)
		case feedbackTime:
			msg.HasTime = true
			err = parseFields(f.buf, func(c field) error {
				if c.typ != protowire.VarintType {
					return nil
				}
				switch c.num {
				case clockSec:
					msg.TimeSec = c.u64
				case clockUsec:
					msg.TimeUsec = c.u64
				}
				return nil
			})
		}
		return err
	})
}

// decodeJoints принимает как упакованное, так и неупакованное представление repeated double.
func decodeJoints(b []byte) ([]float64, error) {
	values := []float64{}
	err := parseFields(b, func(f field) error {
		if f.num != jointsValues {
			return nil
		}
		switch f.typ {
		case protowire.Fixed64Type:
			values = append(values, math.Float64frombits(f.u64))
		case protowire.BytesType:
			packed := f.buf
			for len(packed) > 0 {
				v, n := protowire.ConsumeFixed64(packed)
				if n < 0 {
					return fmt.Errorf("%w: packed joints: %v", ErrMalformed, protowire.ParseError(n))
				}
				values = append(values, math.Float64frombits(v))
				packed = packed[n:]
			}
		}
		return nil
	})
	return values, err
}

func decodeState(b []byte) (int32, error) {
	var state int32
	err := parseFields(b, func(f field) error {
		if f.num == stateValue && f.typ == protowire.VarintType {
			state = int32(f.u64)
		}
		return nil
	})
	return state, err
}

// AppendSensor кодирует EgmSensor в конец b.
func AppendSensor(b []byte, msg *SensorMessage) []byte {
	b = appendMessage(b, sensorHeader, appendHeader(nil, msg.Header))
	b = appendMessage(b, sensorPlanned, appendJointSet(nil, msg.PlannedJoints, msg.PlannedExternal))
	b = appendMessage(b, sensorSpeedRef, appendJointSet(nil, msg.SpeedJoints, msg.SpeedExternal))
	return b
}

// AppendRobot кодирует EgmRobot. Используется имитаторами контроллера.
func AppendRobot(b []byte, msg *RobotMessage) []byte {
	b = appendMessage(b, robotHeader, appendHeader(nil, msg.Header))

	var feedback []byte
	feedback = appendMessage(feedback, feedbackJoints, appendJoints(nil, msg.Joints))
	if len(msg.ExternalJoints) > 0 {
		feedback = appendMessage(feedback, feedbackExternal, appendJoints(nil, msg.ExternalJoints))
	}
	if msg.HasTime {
		var clock []byte
		clock = protowire.AppendTag(clock, clockSec, protowire.VarintType)
		clock = protowire.AppendVarint(clock, msg.TimeSec)
		clock = protowire.AppendTag(clock, clockUsec, protowire.VarintType)
		clock = protowire.AppendVarint(clock, msg.TimeUsec)
		feedback = appendMessage(feedback, feedbackTime, clock)
	}
	b = appendMessage(b, robotFeedback, feedback)

	b = appendMessage(b, robotMotor, appendState(nil, int32(msg.MotorState)))
	b = appendMessage(b, robotMCI, appendState(nil, int32(msg.MCIState)))
	b = appendMessage(b, robotRAPIDExec, appendState(nil, int32(msg.RAPIDExecState)))
	return b
}

// DecodeSensor разбирает EgmSensor.
func DecodeSensor(b []byte) (*SensorMessage, error) {
	msg := &SensorMessage{}
	err := parseFields(b, func(f field) error {
		if f.typ != protowire.BytesType {
			return nil
		}
		switch f.num {
		case sensorHeader:
			return decodeHeader(f.buf, &msg.Header)
		case sensorPlanned:
			return decodeJointSet(f.buf, &msg.PlannedJoints, &msg.PlannedExternal)
		case sensorSpeedRef:
			return decodeJointSet(f.buf, &msg.SpeedJoints, &msg.SpeedExternal)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

func decodeJointSet(b []byte, joints, external *[]float64) error {
	return parseFields(b, func(f field) error {
		if f.typ != protowire.BytesType {
			return nil
		}
		var err error
		switch f.num {
		case plannedJoints:
			*joints, err = decodeJoints(f.buf)
		case plannedExternal:
			*external, err = decodeJoints(f.buf)
		}
		return err
	})
}

func appendMessage(b []byte, num protowire.Number, inner []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, inner)
}

func appendHeader(b []byte, h Header) []byte {
	b = protowire.AppendTag(b, headerSeqno, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(h.Seqno))
	b = protowire.AppendTag(b, headerTm, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(h.Tm))
	b = protowire.AppendTag(b, headerMtype, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(h.Type))
}

// appendJoints пишет repeated double без упаковки, как в proto2.
func appendJoints(b []byte, values []float64) []byte {
	for _, v := range values {
		b = protowire.AppendTag(b, jointsValues, protowire.Fixed64Type)
		b = protowire.AppendFixed64(b, math.Float64bits(v))
	}
	return b
}

func appendJointSet(b []byte, joints, external []float64) []byte {
	b = appendMessage(b, plannedJoints, appendJoints(nil, joints))
	if len(external) > 0 {
		b = appendMessage(b, plannedExternal, appendJoints(nil, external))
	}
	return b
}

func appendState(b []byte, state int32) []byte {
	b = protowire.AppendTag(b, stateValue, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(state))
}
