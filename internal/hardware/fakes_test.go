package hardware

import (
	"context"
	"errors"
	"time"

	"github.com/iwtcode/abbAdapter/internal/interfaces"
	"github.com/iwtcode/abbAdapter/models"
)

// fakeChannels имитирует менеджер каналов EGM.
type fakeChannels struct {
	messageOnAttempt int // 0 - сообщения не будет никогда
	waitCalls        int

	readCalls  int
	writeCalls int
	fresh      bool
	position   float64
	velocity   float64
	writeErr   error

	lastWritten []models.JointValues
	closed      bool
}

var _ interfaces.ChannelManager = (*fakeChannels)(nil)

func (f *fakeChannels) WaitForMessage(time.Duration) bool {
	f.waitCalls++
	return f.messageOnAttempt > 0 && f.waitCalls >= f.messageOnAttempt
}

func (f *fakeChannels) Read(data *models.MotionData) bool {
	f.readCalls++
	if !f.fresh {
		return false
	}
	for g := range data.Groups {
		for u := range data.Groups[g].Units {
			for j := range data.Groups[g].Units[u].Joints {
				data.Groups[g].Units[u].Joints[j].State = models.JointValues{Position: f.position, Velocity: f.velocity}
			}
		}
	}
	return true
}

func (f *fakeChannels) Write(data *models.MotionData) error {
	f.writeCalls++
	f.lastWritten = f.lastWritten[:0]
	for _, group := range data.Groups {
		for _, unit := range group.Units {
			for _, joint := range unit.Joints {
				f.lastWritten = append(f.lastWritten, joint.Command)
			}
		}
	}
	return f.writeErr
}

func (f *fakeChannels) Close() error {
	f.closed = true
	return nil
}

// recordingFactory запоминает переданные конфигурации.
type recordingFactory struct {
	channels *fakeChannels
	err      error
	calls    int
	configs  []models.ChannelConfiguration
}

func (r *recordingFactory) open(configs []models.ChannelConfiguration) (interfaces.ChannelManager, error) {
	r.calls++
	r.configs = configs
	if r.err != nil {
		return nil, r.err
	}
	return r.channels, nil
}

type fakeQuerier struct {
	desc  *models.RobotControllerDescription
	err   error
	calls int
	req   models.RWSRequest
}

func (q *fakeQuerier) QueryDescription(_ context.Context, req models.RWSRequest) (*models.RobotControllerDescription, error) {
	q.calls++
	q.req = req
	if q.err != nil {
		return nil, q.err
	}
	return q.desc, nil
}

var errUnreachable = errors.New("connection refused")

func jointSpec(name, typ, min, max string) models.JointSpec {
	j := models.JointSpec{
		Name: name,
		Type: "joint",
		CommandInterfaces: []models.InterfaceInfo{
			{Name: models.InterfacePosition, Min: min, Max: max},
			{Name: models.InterfaceVelocity, Min: "-3.14", Max: "3.14"},
		},
		StateInterfaces: []models.InterfaceInfo{
			{Name: models.InterfacePosition},
			{Name: models.InterfaceVelocity},
		},
	}
	if typ != "" {
		j.Parameters = map[string]string{JointParamType: typ}
	}
	return j
}

func synthesizedInfo(params map[string]string, joints ...models.JointSpec) *models.HardwareInfo {
	hp := map[string]string{ParamConfigureViaRWS: "false", "egm_port": "6511"}
	for k, v := range params {
		hp[k] = v
	}
	return &models.HardwareInfo{
		Name:               "abb_irb1200",
		Type:               "system",
		HardwareParameters: hp,
		Joints:             joints,
	}
}

func fastPolicy() ActivationPolicy {
	return ActivationPolicy{MaxAttempts: 100, RetryInterval: time.Microsecond, WaitTimeout: time.Millisecond}
}
