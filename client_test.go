package abb

import (
	"context"
	"math"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/iwtcode/abbAdapter/egm"
	"github.com/iwtcode/abbAdapter/internal/hardware"
	"github.com/iwtcode/abbAdapter/internal/interfaces"
	"github.com/iwtcode/abbAdapter/internal/middleware/logging"
	"github.com/iwtcode/abbAdapter/models"
	apperrors "github.com/iwtcode/abbAdapter/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testInfo() *models.HardwareInfo {
	joint := func(name string) models.JointSpec {
		return models.JointSpec{
			Name: name,
			CommandInterfaces: []models.InterfaceInfo{
				{Name: models.InterfacePosition, Min: "-3.14", Max: "3.14"},
				{Name: models.InterfaceVelocity},
			},
			StateInterfaces: []models.InterfaceInfo{
				{Name: models.InterfacePosition},
				{Name: models.InterfaceVelocity},
			},
		}
	}
	return &models.HardwareInfo{
		Name: "abb_test",
		HardwareParameters: map[string]string{
			hardware.ParamConfigureViaRWS: "false",
			hardware.EGMPortSuffix:        "0",
		},
		Joints: []models.JointSpec{joint("joint_1"), joint("joint_2")},
	}
}

func testConfig() *Config {
	return &Config{
		CyclePeriod: 2 * time.Millisecond,
		Activation: hardware.ActivationPolicy{
			MaxAttempts:   100,
			RetryInterval: 5 * time.Millisecond,
			WaitTimeout:   20 * time.Millisecond,
		},
		LogLevel: "off",
	}
}

// simulatedController шлет EgmRobot с фиксированными позициями и запоминает последний ответ.
type simulatedController struct {
	conn  *net.UDPConn
	reply atomic.Pointer[egm.SensorMessage]
}

func startSimulatedController(t *testing.T, ctx context.Context, target *net.UDPAddr, degrees []float64) *simulatedController {
	t.Helper()
	conn, err := net.DialUDP("udp", nil, &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: target.Port})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	sc := &simulatedController{conn: conn}

	go func() {
		buf := make([]byte, 4096)
		for {
			_ = conn.SetReadDeadline(time.Now().Add(50 * time.Millisecond))
			n, err := conn.Read(buf)
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				continue
			}
			if msg, err := egm.DecodeSensor(buf[:n]); err == nil {
				sc.reply.Store(msg)
			}
		}
	}()

	go func() {
		ticker := time.NewTicker(4 * time.Millisecond)
		defer ticker.Stop()
		var seqno uint32
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				seqno++
				_, _ = conn.Write(egm.AppendRobot(nil, &egm.RobotMessage{
					Header:     egm.Header{Seqno: seqno, Type: egm.MessageData},
					Joints:     degrees,
					MotorState: egm.MotorOn,
					MCIState:   egm.MCIRunning,
				}))
			}
		}
	}()
	return sc
}

func TestClientEndToEnd(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	factory := func(configs []models.ChannelConfiguration) (interfaces.ChannelManager, error) {
		mgr, err := egm.NewManager(configs, logging.NewNop(), nil)
		if err != nil {
			return nil, err
		}
		startSimulatedController(t, ctx, mgr.Addrs()[0], []float64{30, -60})
		return mgr, nil
	}

	client, err := NewWithInfo(testConfig(), testInfo(), WithChannelFactory(factory), WithLogger(logging.NewNop()))
	require.NoError(t, err)
	defer client.Close()

	assert.Equal(t, "unconfigured", client.GetState())
	assert.NotEmpty(t, client.GetSessionID())

	require.NoError(t, client.Start(ctx))
	assert.Equal(t, "active", client.GetState())
	require.NotNil(t, client.GetDescription())
	assert.Equal(t, 2, client.GetDescription().MechanicalUnitsGroups[0].Robot.AxesTotal)

	data := client.GetCurrentData()
	require.Len(t, data.Joints, 2)
	assert.InDelta(t, math.Pi/6, data.Joints[0].State.Position, 1e-9)
	assert.InDelta(t, math.Pi/6, data.Joints[0].Command.Position, 1e-9, "commands are seeded from state")
	assert.InDelta(t, -math.Pi/3, data.Joints[1].Command.Position, 1e-9)

	runCtx, stop := context.WithCancel(ctx)
	runErr := make(chan error, 1)
	go func() { runErr <- client.Run(runCtx) }()

	assert.Eventually(t, func() bool {
		d := client.GetCurrentData()
		return d != nil && d.Cycles > 10
	}, 2*time.Second, 5*time.Millisecond)

	stop()
	require.NoError(t, <-runErr)
	assert.Equal(t, "inactive", client.GetState())
	assert.Equal(t, "inactive", client.GetCurrentData().State)
}

func TestClientHoldsPositionOnFirstWrite(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var controller atomic.Pointer[simulatedController]
	factory := func(configs []models.ChannelConfiguration) (interfaces.ChannelManager, error) {
		mgr, err := egm.NewManager(configs, logging.NewNop(), nil)
		if err != nil {
			return nil, err
		}
		controller.Store(startSimulatedController(t, ctx, mgr.Addrs()[0], []float64{45, 10}))
		return mgr, nil
	}

	client, err := NewWithInfo(testConfig(), testInfo(), WithChannelFactory(factory), WithLogger(logging.NewNop()))
	require.NoError(t, err)
	defer client.Close()
	require.NoError(t, client.Start(ctx))

	runCtx, stop := context.WithCancel(ctx)
	runErr := make(chan error, 1)
	go func() { runErr <- client.Run(runCtx) }()

	require.Eventually(t, func() bool {
		sc := controller.Load()
		return sc != nil && sc.reply.Load() != nil
	}, 2*time.Second, 5*time.Millisecond)

	reply := controller.Load().reply.Load()
	assert.Equal(t, egm.MessageCorrection, reply.Header.Type)
	require.Len(t, reply.PlannedJoints, 2)
	assert.InDelta(t, 45, reply.PlannedJoints[0], 1e-9)
	assert.InDelta(t, 10, reply.PlannedJoints[1], 1e-9)
	assert.InDelta(t, 0, reply.SpeedJoints[0], 1e-9)

	stop()
	require.NoError(t, <-runErr)
}

func TestClientStartFailsWithoutController(t *testing.T) {
	cfg := testConfig()
	cfg.Activation = hardware.ActivationPolicy{MaxAttempts: 3, RetryInterval: time.Millisecond, WaitTimeout: 5 * time.Millisecond}

	client, err := NewWithInfo(cfg, testInfo(), WithLogger(logging.NewNop()))
	require.NoError(t, err)
	defer client.Close()

	err = client.Start(context.Background())
	require.ErrorIs(t, err, apperrors.ErrConnection)
	assert.Equal(t, "error", client.GetState())
	assert.Nil(t, client.GetDescription())
	assert.Equal(t, "error", client.GetCurrentData().State)
}

func TestClientStartRejectsInvalidInterfaces(t *testing.T) {
	info := testInfo()
	info.Joints[1].CommandInterfaces = info.Joints[1].CommandInterfaces[:1]

	opened := false
	factory := func([]models.ChannelConfiguration) (interfaces.ChannelManager, error) {
		opened = true
		return nil, nil
	}

	client, err := NewWithInfo(testConfig(), info, WithChannelFactory(factory), WithLogger(logging.NewNop()))
	require.NoError(t, err)
	defer client.Close()

	err = client.Start(context.Background())
	require.ErrorIs(t, err, apperrors.ErrConfiguration)
	assert.Contains(t, err.Error(), "joint_2")
	assert.False(t, opened)
}

func TestNewReadsHardwareFile(t *testing.T) {
	cfg := testConfig()
	cfg.HardwareFile = "does/not/exist.yaml"

	_, err := New(cfg)
	require.Error(t, err)

	_, err = NewWithInfo(nil, testInfo())
	require.Error(t, err)
}

func TestRegistryExposesAdapterMetrics(t *testing.T) {
	client, err := NewWithInfo(testConfig(), testInfo(), WithLogger(logging.NewNop()))
	require.NoError(t, err)
	defer client.Close()

	families, err := client.Registry().Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["abb_adapter_lifecycle_state"])
}
