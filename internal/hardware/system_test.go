package hardware

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/iwtcode/abbAdapter/internal/metrics"
	"github.com/iwtcode/abbAdapter/internal/middleware/logging"
	"github.com/iwtcode/abbAdapter/models"
	apperrors "github.com/iwtcode/abbAdapter/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type systemFixture struct {
	system   *System
	channels *fakeChannels
	factory  *recordingFactory
	metrics  *metrics.Metrics
}

func newFixture(t *testing.T, info *models.HardwareInfo) *systemFixture {
	t.Helper()
	channels := &fakeChannels{}
	factory := &recordingFactory{channels: channels}
	m := metrics.NewMetrics(prometheus.NewRegistry())
	system := NewSystem(info, Options{
		Logger:         logging.NewNop(),
		ChannelFactory: factory.open,
		Policy:         fastPolicy(),
		Metrics:        m,
	})
	return &systemFixture{system: system, channels: channels, factory: factory, metrics: m}
}

func twoJointInfo() *models.HardwareInfo {
	return synthesizedInfo(nil,
		jointSpec("joint_1", "", "-1.0", "1.0"),
		jointSpec("joint_2", "prismatic", "0.0", "0.5"),
	)
}

func TestOnInitSynthesized(t *testing.T) {
	f := newFixture(t, twoJointInfo())
	assert.Equal(t, StateUnconfigured, f.system.State())

	require.NoError(t, f.system.OnInit(context.Background()))
	assert.Equal(t, StateInactive, f.system.State())
	assert.Equal(t, float64(StateInactive), testutil.ToFloat64(f.metrics.LifecycleState))

	require.Equal(t, 1, f.factory.calls)
	require.Len(t, f.factory.configs, 1)
	assert.Equal(t, uint16(6511), f.factory.configs[0].Port)
	assert.Equal(t, "", f.factory.configs[0].Group.Name)

	desc := f.system.Description()
	require.NotNil(t, desc)
	assert.Equal(t, 2, desc.MechanicalUnitsGroups[0].Robot.AxesTotal)
}

func TestOnInitValidationFailureDoesNoIO(t *testing.T) {
	bad := jointSpec("joint_1", "", "-1", "1")
	bad.StateInterfaces = bad.StateInterfaces[:1]
	f := newFixture(t, synthesizedInfo(nil, bad))

	err := f.system.OnInit(context.Background())
	require.ErrorIs(t, err, apperrors.ErrConfiguration)
	assert.Equal(t, apperrors.KindConfiguration, apperrors.KindOf(err))
	assert.Equal(t, StateError, f.system.State())
	assert.Zero(t, f.factory.calls)
	assert.Nil(t, f.system.Description())

	_, err = f.system.ExportStateInterfaces()
	require.ErrorIs(t, err, apperrors.ErrInvalidState)
}

func TestOnInitMissingPortIsConfigurationError(t *testing.T) {
	info := twoJointInfo()
	delete(info.HardwareParameters, "egm_port")
	f := newFixture(t, info)

	err := f.system.OnInit(context.Background())
	require.ErrorIs(t, err, apperrors.ErrConfiguration)
	assert.Equal(t, StageChannelConfiguration, apperrors.StageOf(err))
	assert.Equal(t, StateError, f.system.State())
	assert.Zero(t, f.factory.calls)
}

func TestOnInitChannelFactoryFailureIsConnectionError(t *testing.T) {
	f := newFixture(t, twoJointInfo())
	f.factory.err = errors.New("address already in use")

	err := f.system.OnInit(context.Background())
	require.ErrorIs(t, err, apperrors.ErrConnection)
	assert.Contains(t, err.Error(), "address already in use")
	assert.Equal(t, StateError, f.system.State())
}

func TestOnInitViaRWS(t *testing.T) {
	desc := &models.RobotControllerDescription{
		MechanicalUnitsGroups: []models.MechanicalUnitGroup{
			{
				Name: "rob1",
				Robot: &models.MechanicalUnit{
					Name: "ROB_1",
					StandardizedJoints: []models.StandardizedJoint{
						{StandardizedName: "joint_1", RotatingMove: true},
					},
				},
			},
		},
	}
	info := &models.HardwareInfo{
		Name: "abb",
		HardwareParameters: map[string]string{
			ParamRWSIP:     "192.168.125.1",
			ParamRWSPort:   "80",
			"rob1egm_port": "6511",
		},
		Joints: []models.JointSpec{jointSpec("joint_1", "", "-1", "1")},
	}

	channels := &fakeChannels{}
	factory := &recordingFactory{channels: channels}
	querier := &fakeQuerier{desc: desc}
	system := NewSystem(info, Options{Querier: querier, ChannelFactory: factory.open, Policy: fastPolicy()})

	require.NoError(t, system.OnInit(context.Background()))
	assert.Equal(t, 1, querier.calls)
	assert.Same(t, desc, system.Description())

	handles, err := system.ExportStateInterfaces()
	require.NoError(t, err)
	require.Len(t, handles, 2)
	assert.Equal(t, "joint_1/position", handles[0].Name())
}

func TestOnInitViaRWSUnreachable(t *testing.T) {
	info := &models.HardwareInfo{
		Name:               "abb",
		HardwareParameters: map[string]string{ParamRWSIP: "192.168.125.1", ParamRWSPort: "80"},
		Joints:             []models.JointSpec{jointSpec("joint_1", "", "-1", "1")},
	}
	factory := &recordingFactory{channels: &fakeChannels{}}
	system := NewSystem(info, Options{Querier: &fakeQuerier{err: errUnreachable}, ChannelFactory: factory.open})

	err := system.OnInit(context.Background())
	require.ErrorIs(t, err, apperrors.ErrConnection)
	assert.Equal(t, StateError, system.State())
	assert.Zero(t, factory.calls)
}

func TestOnInitTwiceIsRejected(t *testing.T) {
	f := newFixture(t, twoJointInfo())
	require.NoError(t, f.system.OnInit(context.Background()))

	err := f.system.OnInit(context.Background())
	require.ErrorIs(t, err, apperrors.ErrInvalidState)
	assert.Equal(t, StateInactive, f.system.State())
}

func TestExportInterfaces(t *testing.T) {
	f := newFixture(t, twoJointInfo())
	require.NoError(t, f.system.OnInit(context.Background()))

	state, err := f.system.ExportStateInterfaces()
	require.NoError(t, err)
	command, err := f.system.ExportCommandInterfaces()
	require.NoError(t, err)

	require.Len(t, state, 4)
	require.Len(t, command, 4)
	names := make([]string, len(state))
	for i, h := range state {
		names[i] = h.Name()
	}
	assert.Equal(t, []string{"joint_1/position", "joint_1/velocity", "joint_2/position", "joint_2/velocity"}, names)

	for i := range state {
		assert.False(t, state[i].SameStorage(command[i]), "state and command of %s share storage", state[i].Name())
	}

	again, err := f.system.ExportCommandInterfaces()
	require.NoError(t, err)
	for i := range command {
		assert.True(t, command[i].SameStorage(again[i]))
	}

	command[2].SetValue(0.25)
	assert.Equal(t, 0.25, again[2].Value())

	stateAgain, err := f.system.ExportStateInterfaces()
	require.NoError(t, err)
	require.Len(t, stateAgain, len(state))
	for i := range state {
		assert.True(t, state[i].SameStorage(stateAgain[i]), state[i].Name())
	}

	state[1].SetValue(-0.5)
	assert.Equal(t, -0.5, stateAgain[1].Value())
}

func TestOnActivateSucceedsOnLastAttempt(t *testing.T) {
	f := newFixture(t, twoJointInfo())
	require.NoError(t, f.system.OnInit(context.Background()))
	f.channels.messageOnAttempt = 100
	f.channels.fresh = true
	f.channels.position = 0.7
	f.channels.velocity = 0.1

	require.NoError(t, f.system.OnActivate(context.Background()))
	assert.Equal(t, StateActive, f.system.State())
	assert.Equal(t, 100, f.channels.waitCalls)
	assert.Equal(t, float64(100), testutil.ToFloat64(f.metrics.ActivationAttempts))

	command, err := f.system.ExportCommandInterfaces()
	require.NoError(t, err)
	for i := 0; i < len(command); i += 2 {
		assert.Equal(t, 0.7, command[i].Value(), command[i].Name())
		assert.Equal(t, 0.0, command[i+1].Value(), command[i+1].Name())
	}
}

func TestOnActivateSucceedsAfterFewMisses(t *testing.T) {
	f := newFixture(t, twoJointInfo())
	require.NoError(t, f.system.OnInit(context.Background()))
	f.channels.messageOnAttempt = 3

	require.NoError(t, f.system.OnActivate(context.Background()))
	assert.Equal(t, 3, f.channels.waitCalls)
}

func TestOnActivateExhaustsAttempts(t *testing.T) {
	f := newFixture(t, twoJointInfo())
	require.NoError(t, f.system.OnInit(context.Background()))

	err := f.system.OnActivate(context.Background())
	require.ErrorIs(t, err, apperrors.ErrConnection)
	assert.Equal(t, StageActivation, apperrors.StageOf(err))
	assert.Contains(t, err.Error(), "100 attempts")
	assert.Equal(t, 100, f.channels.waitCalls)
	assert.Equal(t, StateError, f.system.State())
	assert.True(t, f.channels.closed)

	err = f.system.OnActivate(context.Background())
	require.ErrorIs(t, err, apperrors.ErrInvalidState)
	assert.Equal(t, 100, f.channels.waitCalls)
}

func TestOnActivateHonoursCancellation(t *testing.T) {
	channels := &fakeChannels{}
	factory := &recordingFactory{channels: channels}
	system := NewSystem(twoJointInfo(), Options{
		ChannelFactory: factory.open,
		Policy:         ActivationPolicy{MaxAttempts: 100, RetryInterval: time.Hour, WaitTimeout: time.Millisecond},
	})
	require.NoError(t, system.OnInit(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := system.OnActivate(ctx)
	require.ErrorIs(t, err, apperrors.ErrConnection)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, channels.waitCalls)
	assert.Equal(t, StateError, system.State())
}

func TestOnActivateRequiresInactive(t *testing.T) {
	f := newFixture(t, twoJointInfo())
	err := f.system.OnActivate(context.Background())
	require.ErrorIs(t, err, apperrors.ErrInvalidState)
	assert.Zero(t, f.channels.waitCalls)
}

func TestReadWriteCycle(t *testing.T) {
	f := newFixture(t, twoJointInfo())
	now := time.Now()

	assert.Equal(t, ReturnError, f.system.Read(now, time.Millisecond))
	assert.Equal(t, ReturnError, f.system.Write(now, time.Millisecond))

	require.NoError(t, f.system.OnInit(context.Background()))
	assert.Equal(t, ReturnError, f.system.Read(now, time.Millisecond))

	f.channels.messageOnAttempt = 1
	f.channels.fresh = true
	f.channels.position = 0.1
	require.NoError(t, f.system.OnActivate(context.Background()))

	state, err := f.system.ExportStateInterfaces()
	require.NoError(t, err)
	command, err := f.system.ExportCommandInterfaces()
	require.NoError(t, err)

	f.channels.position = 0.2
	assert.Equal(t, ReturnOK, f.system.Read(now, time.Millisecond))
	assert.Equal(t, 0.2, state[0].Value())
	assert.Equal(t, 0.2, state[2].Value())

	command[0].SetValue(0.3)
	command[1].SetValue(0.05)
	assert.Equal(t, ReturnOK, f.system.Write(now, time.Millisecond))
	require.Len(t, f.channels.lastWritten, 2)
	assert.Equal(t, models.JointValues{Position: 0.3, Velocity: 0.05}, f.channels.lastWritten[0])
	assert.Equal(t, models.JointValues{Position: 0.1, Velocity: 0}, f.channels.lastWritten[1])

	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.Cycles.WithLabelValues("read")))
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.Cycles.WithLabelValues("write")))
}

func TestReadKeepsLastKnownStateWhenStale(t *testing.T) {
	f := newFixture(t, twoJointInfo())
	require.NoError(t, f.system.OnInit(context.Background()))
	f.channels.messageOnAttempt = 1
	f.channels.fresh = true
	f.channels.position = 0.4
	require.NoError(t, f.system.OnActivate(context.Background()))

	f.channels.fresh = false
	f.channels.position = 9
	assert.Equal(t, ReturnOK, f.system.Read(time.Now(), time.Millisecond))
	assert.Equal(t, ReturnOK, f.system.Read(time.Now(), time.Millisecond))

	state, err := f.system.ExportStateInterfaces()
	require.NoError(t, err)
	assert.Equal(t, 0.4, state[0].Value())
	assert.Equal(t, float64(2), testutil.ToFloat64(f.metrics.StaleReads))
}

func TestWriteFailureIsCounted(t *testing.T) {
	f := newFixture(t, twoJointInfo())
	require.NoError(t, f.system.OnInit(context.Background()))
	f.channels.messageOnAttempt = 1
	require.NoError(t, f.system.OnActivate(context.Background()))

	f.channels.writeErr = errors.New("network is unreachable")
	assert.Equal(t, ReturnOK, f.system.Write(time.Now(), time.Millisecond))
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.WriteFailures))
}

func TestDeactivateAndClose(t *testing.T) {
	f := newFixture(t, twoJointInfo())
	require.NoError(t, f.system.OnInit(context.Background()))
	f.channels.messageOnAttempt = 1
	require.NoError(t, f.system.OnActivate(context.Background()))

	require.NoError(t, f.system.OnDeactivate(context.Background()))
	assert.Equal(t, StateInactive, f.system.State())
	assert.Equal(t, ReturnError, f.system.Read(time.Now(), time.Millisecond))
	assert.False(t, f.channels.closed)

	require.NoError(t, f.system.Close())
	assert.True(t, f.channels.closed)
	assert.Equal(t, StateUnconfigured, f.system.State())
	require.NoError(t, f.system.Close())
}

func TestSnapshot(t *testing.T) {
	f := newFixture(t, twoJointInfo())
	assert.Nil(t, f.system.Snapshot())

	require.NoError(t, f.system.OnInit(context.Background()))
	f.channels.messageOnAttempt = 1
	f.channels.fresh = true
	f.channels.position = 0.5
	require.NoError(t, f.system.OnActivate(context.Background()))

	snapshot := f.system.Snapshot()
	require.Len(t, snapshot, 2)
	assert.Equal(t, "joint_1", snapshot[0].Name)
	assert.Equal(t, 0.5, snapshot[0].State.Position)
	assert.Equal(t, 0.5, snapshot[0].Command.Position)
}

func TestActivationPolicyDefaults(t *testing.T) {
	p := ActivationPolicy{}.withDefaults()
	assert.Equal(t, DefaultMaxConnectionAttempts, p.MaxAttempts)
	assert.Equal(t, DefaultWaitTimeout, p.WaitTimeout)

	system := NewSystem(twoJointInfo(), Options{})
	assert.Equal(t, DefaultActivationPolicy(), system.policy)
}
