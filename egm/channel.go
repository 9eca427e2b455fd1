package egm

import (
	"errors"
	"fmt"
	"math"
	"net"
	"sync"
	"time"

	"github.com/iwtcode/abbAdapter/internal/metrics"
	"github.com/iwtcode/abbAdapter/internal/middleware/logging"
	"github.com/iwtcode/abbAdapter/models"
	"golang.org/x/time/rate"
)

const (
	maxDatagramSize = 4096
	mmPerMeter      = 1000.0
)

// ErrNoPeer возвращается при записи до первого сообщения от контроллера.
var ErrNoPeer = errors.New("no EGM message received yet, controller address unknown")

// Channel - канал EGM одной группы механических юнитов.
// Принимает EgmRobot в собственной горутине и отвечает EgmSensor на адрес последнего отправителя.
type Channel struct {
	group   string
	conn    *net.UDPConn
	logger  *logging.Logger
	metrics *metrics.Metrics
	notify  chan<- struct{}
	errLog  *rate.Limiter
	started time.Time
	done    chan struct{}

	mu       sync.Mutex
	latest   *RobotMessage
	fresh    bool
	remote   *net.UDPAddr
	velocity []float64
	extVel   []float64
	prevTime time.Duration
	havePrev bool

	// Доступны только из потока записи.
	seqno   uint32
	sendBuf []byte
}

func openChannel(cfg models.ChannelConfiguration, notify chan<- struct{}, logger *logging.Logger, m *metrics.Metrics) (*Channel, error) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: int(cfg.Port)})
	if err != nil {
		return nil, fmt.Errorf("failed to listen on UDP port %d for group %q: %w", cfg.Port, cfg.Group.Name, err)
	}

	c := &Channel{
		group:   cfg.Group.Name,
		conn:    conn,
		logger:  logger.WithPrefix("EGM " + cfg.Group.Name),
		metrics: m,
		notify:  notify,
		errLog:  rate.NewLimiter(rate.Every(5*time.Second), 1),
		started: time.Now(),
		done:    make(chan struct{}),
		sendBuf: make([]byte, 0, 512),
	}
	go c.receiveLoop()

	c.logger.Info("EGM channel listening", "addr", conn.LocalAddr().String())
	return c, nil
}

// Addr возвращает локальный адрес сокета.
func (c *Channel) Addr() *net.UDPAddr {
	return c.conn.LocalAddr().(*net.UDPAddr)
}

func (c *Channel) receiveLoop() {
	defer close(c.done)
	buf := make([]byte, maxDatagramSize)

	for {
		n, addr, err := c.conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			if c.errLog.Allow() {
				c.logger.Warn("Failed to receive EGM datagram", "error", err)
			}
			continue
		}

		msg, err := DecodeRobot(buf[:n])
		if err != nil {
			c.metrics.IncDecodeErrors(c.group)
			if c.errLog.Allow() {
				c.logger.Warn("Failed to decode EgmRobot", "from", addr.String(), "bytes", n, "error", err)
			}
			continue
		}

		c.store(msg, addr, time.Since(c.started))
		c.metrics.IncReceived(c.group)

		select {
		case c.notify <- struct{}{}:
		default:
		}
	}
}

// store сохраняет последнее сообщение и оценивает скорости по разности позиций.
func (c *Channel) store(msg *RobotMessage, addr *net.UDPAddr, received time.Duration) {
	stamp := received
	if msg.HasTime {
		stamp = msg.Time()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.havePrev && c.latest != nil {
		if dt := (stamp - c.prevTime).Seconds(); dt > 0 {
			c.velocity = estimate(c.velocity, c.latest.Joints, msg.Joints, dt)
			c.extVel = estimate(c.extVel, c.latest.ExternalJoints, msg.ExternalJoints, dt)
		}
	}

	c.latest = msg
	c.prevTime = stamp
	c.havePrev = true
	c.fresh = true
	c.remote = addr
}

func estimate(dst, prev, cur []float64, dt float64) []float64 {
	dst = dst[:0]
	for i, v := range cur {
		var vel float64
		if i < len(prev) {
			vel = (v - prev[i]) / dt
		}
		dst = append(dst, vel)
	}
	return dst
}

// Fresh сообщает, есть ли непрочитанное сообщение.
func (c *Channel) Fresh() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fresh
}

// Read переносит последнее сообщение в состояние суставов группы.
// Возвращает false, если нового сообщения с прошлого чтения не было.
func (c *Channel) Read(group *models.MotionGroup) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.fresh || c.latest == nil {
		return false
	}
	c.fresh = false

	external := 0
	for u := range group.Units {
		unit := &group.Units[u]
		if unit.Robot {
			fillState(unit.Joints, c.latest.Joints, c.velocity, 0)
			continue
		}
		external = fillState(unit.Joints, c.latest.ExternalJoints, c.extVel, external)
	}
	return true
}

func fillState(joints []models.MotionJoint, positions, velocities []float64, offset int) int {
	for j := range joints {
		idx := offset + j
		if idx >= len(positions) {
			break
		}
		joint := &joints[j]
		joint.State.Position = fromWire(positions[idx], joint.Rotational)
		if idx < len(velocities) {
			joint.State.Velocity = fromWire(velocities[idx], joint.Rotational)
		}
	}
	return offset + len(joints)
}

// Write отправляет команды суставов группы контроллеру.
func (c *Channel) Write(group *models.MotionGroup) error {
	c.mu.Lock()
	remote := c.remote
	c.mu.Unlock()
	if remote == nil {
		return fmt.Errorf("group %q: %w", c.group, ErrNoPeer)
	}

	c.seqno++
	msg := SensorMessage{
		Header: Header{
			Seqno: c.seqno,
			Tm:    uint32(time.Since(c.started).Milliseconds()),
			Type:  MessageCorrection,
		},
	}
	for _, unit := range group.Units {
		for _, joint := range unit.Joints {
			position := toWire(joint.Command.Position, joint.Rotational)
			speed := toWire(joint.Command.Velocity, joint.Rotational)
			if unit.Robot {
				msg.PlannedJoints = append(msg.PlannedJoints, position)
				msg.SpeedJoints = append(msg.SpeedJoints, speed)
			} else {
				msg.PlannedExternal = append(msg.PlannedExternal, position)
				msg.SpeedExternal = append(msg.SpeedExternal, speed)
			}
		}
	}

	c.sendBuf = AppendSensor(c.sendBuf[:0], &msg)
	if _, err := c.conn.WriteToUDP(c.sendBuf, remote); err != nil {
		return fmt.Errorf("group %q: failed to send EgmSensor to %s: %w", c.group, remote, err)
	}
	c.metrics.IncSent(c.group)
	return nil
}

// Close закрывает сокет и дожидается завершения горутины приема.
func (c *Channel) Close() error {
	err := c.conn.Close()
	<-c.done
	return err
}

// fromWire переводит градусы в радианы или миллиметры в метры.
func fromWire(v float64, rotational bool) float64 {
	if rotational {
		return v * math.Pi / 180
	}
	return v / mmPerMeter
}

func toWire(v float64, rotational bool) float64 {
	if rotational {
		return v * 180 / math.Pi
	}
	return v * mmPerMeter
}
