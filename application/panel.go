package application

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultBrokerHost  = "157.230.214.127"
	DefaultBrokerPort  = 1883
	DefaultClientID    = "streamlit-pub"
	DefaultSwitchTopic = "cmqtt_s"
	DefaultAnalogTopic = "cmqtt_a"
)

// QoS and keepalive are fixed for every publish made from the panel.
const (
	PanelQoS       byte = 0
	PanelKeepAlive      = 60 * time.Second
)

const (
	SwitchKey = "Act1"
	SwitchOn  = "ON"
	SwitchOff = "OFF"
	AnalogKey = "Analog"

	AnalogMin     = 0.0
	AnalogMax     = 100.0
	AnalogStep    = 1.0
	AnalogDefault = 50.0
)

var ErrAnalogOutOfRange = fmt.Errorf("analog value out of range")

// PanelForm holds the operator-editable connection settings as submitted.
type PanelForm struct {
	Host        string
	Port        int
	ClientID    string
	SwitchTopic string
	AnalogTopic string
}

func DefaultPanelForm() PanelForm {
	return PanelForm{
		Host:        DefaultBrokerHost,
		Port:        DefaultBrokerPort,
		ClientID:    DefaultClientID,
		SwitchTopic: DefaultSwitchTopic,
		AnalogTopic: DefaultAnalogTopic,
	}
}

func (f PanelForm) Trimmed() PanelForm {
	return PanelForm{
		Host:        strings.TrimSpace(f.Host),
		Port:        f.Port,
		ClientID:    strings.TrimSpace(f.ClientID),
		SwitchTopic: strings.TrimSpace(f.SwitchTopic),
		AnalogTopic: strings.TrimSpace(f.AnalogTopic),
	}
}

func (f PanelForm) Connection() ConnectionParams {
	return ConnectionParams{Host: f.Host, Port: f.Port, ClientID: f.ClientID}
}

// State is what the panel shows between clicks. Result is nil before the
// first publish, LastPayload before the first analog send.
type State struct {
	Result      *PublishResult `json:"result"`
	LastPayload Payload        `json:"last_payload"`
}

type PanelParams struct {
	Publisher Publisher

	Log zerolog.Logger
}

// Panel turns operator actions into publishes. Handlers take the current
// State and return the next one; callers must not run two at once.
type Panel struct {
	params PanelParams

	log zerolog.Logger
}

func NewPanel(params PanelParams) (*Panel, error) {
	if params.Publisher == nil {
		return nil, fmt.Errorf("Publisher is nil")
	}
	return &Panel{params: params, log: params.Log}, nil
}

func (p *Panel) SwitchOn(ctx context.Context, st State, form PanelForm) State {
	return p.sendSwitch(ctx, st, form, SwitchOn)
}

func (p *Panel) SwitchOff(ctx context.Context, st State, form PanelForm) State {
	return p.sendSwitch(ctx, st, form, SwitchOff)
}

func (p *Panel) sendSwitch(ctx context.Context, st State, form PanelForm, value string) State {
	form = form.Trimmed()
	p.log.Debug().Str("value", value).Str("topic", form.SwitchTopic).Msg("switch requested")

	result := Publish(p.logContext(ctx), p.params.Publisher, form.Connection(), PublishRequest{
		Topic:     form.SwitchTopic,
		Payload:   Payload{SwitchKey: value},
		QoS:       PanelQoS,
		KeepAlive: PanelKeepAlive,
	})

	st.Result = &result
	return st
}

// SendAnalog publishes value on the analog topic and records it as the
// last payload. A value outside the slider domain is refused without
// touching the network or LastPayload.
func (p *Panel) SendAnalog(ctx context.Context, st State, form PanelForm, value float64) State {
	form = form.Trimmed()

	v, err := SnapAnalog(value)
	if err != nil {
		failure := &PublishFailure{Topic: form.AnalogTopic, Err: err}
		st.Result = &PublishResult{OK: false, Detail: failure.Error()}
		return st
	}
	p.log.Debug().Float64("value", v).Str("topic", form.AnalogTopic).Msg("analog send requested")

	payload := Payload{AnalogKey: v}
	result := Publish(p.logContext(ctx), p.params.Publisher, form.Connection(), PublishRequest{
		Topic:     form.AnalogTopic,
		Payload:   payload,
		QoS:       PanelQoS,
		KeepAlive: PanelKeepAlive,
	})

	st.Result = &result
	st.LastPayload = Payload{AnalogKey: v}
	return st
}

// SnapAnalog rounds v to the slider step and checks it lies in the slider domain.
func SnapAnalog(v float64) (float64, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < AnalogMin || v > AnalogMax {
		return 0, fmt.Errorf("%w: %v not in [%.1f, %.1f]", ErrAnalogOutOfRange, v, AnalogMin, AnalogMax)
	}
	return AnalogMin + math.Round((v-AnalogMin)/AnalogStep)*AnalogStep, nil
}

func (p *Panel) logContext(ctx context.Context) context.Context {
	if zerolog.Ctx(ctx).GetLevel() != zerolog.Disabled {
		return ctx
	}
	return p.log.WithContext(ctx)
}
