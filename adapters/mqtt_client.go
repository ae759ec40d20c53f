package adapters

import (
	"context"
	"fmt"
	"mqtt-light-panel/application"
	"net"
	"strconv"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

const (
	MQTTDefaultConnectTimeout    = 5 * time.Second
	MQTTDefaultPublishTimeout    = 2 * time.Second
	MQTTDefaultDisconnectQuiesce = 250
)

var (
	ErrMQTTConnectTimeout = fmt.Errorf("connect timeout")
	ErrMQTTPublishTimeout = fmt.Errorf("publish timeout")
)

type MQTTClientParams struct {
	ConnectTimeout time.Duration
	PublishTimeout time.Duration

	// DisconnectQuiesce is in milliseconds, as paho expects it.
	DisconnectQuiesce uint

	NewClientFunc func(options *mqtt.ClientOptions) mqtt.Client

	Log zerolog.Logger
}

func (m *MQTTClientParams) EnsureDefaults() {
	if m.ConnectTimeout == 0 {
		m.ConnectTimeout = MQTTDefaultConnectTimeout
	}

	if m.PublishTimeout == 0 {
		m.PublishTimeout = MQTTDefaultPublishTimeout
	}

	if m.DisconnectQuiesce == 0 {
		m.DisconnectQuiesce = MQTTDefaultDisconnectQuiesce
	}

	if m.NewClientFunc == nil {
		m.NewClientFunc = mqtt.NewClient
	}
}

// MQTTClient publishes over MQTT 3.1.1, one short-lived connection per message.
type MQTTClient struct {
	params MQTTClientParams

	msgCount           uint64
	msgCountUpdateTime atomic.Pointer[time.Time]

	log zerolog.Logger
}

func NewMQTTClient(params MQTTClientParams) *MQTTClient {
	params.EnsureDefaults()

	m := &MQTTClient{params: params, log: params.Log}

	t := time.Unix(0, 0)
	m.msgCountUpdateTime.Store(&t)

	return m
}

func (m *MQTTClient) Status() application.MQTTStatus {
	return application.MQTTStatus{
		MessageCount:      atomic.LoadUint64(&m.msgCount),
		LastTimePublished: *m.msgCountUpdateTime.Load(),
	}
}

func (m *MQTTClient) Publish(ctx context.Context, conn application.ConnectionParams, msg application.Message) error {
	log := loggerFrom(ctx, m.log)

	client := m.params.NewClientFunc(m.clientOptions(conn, msg.KeepAlive))

	err := waitToken(ctx, client.Connect(), m.params.ConnectTimeout, ErrMQTTConnectTimeout)
	if err != nil {
		return err
	}
	defer func() {
		client.Disconnect(m.params.DisconnectQuiesce)
		log.Debug().Msg("disconnected")
	}()

	err = waitToken(ctx, client.Publish(msg.Topic, msg.QoS, false, msg.Payload), m.params.PublishTimeout, ErrMQTTPublishTimeout)
	if err != nil {
		return err
	}

	t := time.Now()
	m.msgCountUpdateTime.Store(&t)
	atomic.AddUint64(&m.msgCount, 1)
	return nil
}

func (m *MQTTClient) OnConnect(client mqtt.Client) {
	m.log.Debug().Msg("connected")
}

func (m *MQTTClient) OnConnectionLost(client mqtt.Client, err error) {
	m.log.Info().Msgf("connect lost: %v", err)
}

func (m *MQTTClient) clientOptions(conn application.ConnectionParams, keepAlive time.Duration) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()

	opts.AddBroker(brokerURL("tcp", conn))
	opts.SetClientID(conn.ClientID)
	opts.SetCleanSession(true)
	opts.SetKeepAlive(keepAlive)
	opts.SetConnectTimeout(m.params.ConnectTimeout)
	opts.SetWriteTimeout(m.params.PublishTimeout)
	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)
	opts.SetOrderMatters(false)

	opts.OnConnect = m.OnConnect
	opts.OnConnectionLost = m.OnConnectionLost

	return opts
}

// waitToken blocks until token completes, timeout elapses or ctx is done.
func waitToken(ctx context.Context, token mqtt.Token, timeout time.Duration, timeoutErr error) error {
	tc := time.NewTimer(timeout)
	defer tc.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-tc.C:
		return timeoutErr
	case <-token.Done():
		return token.Error()
	}
}

func brokerAddress(conn application.ConnectionParams) string {
	return net.JoinHostPort(conn.Host, strconv.Itoa(conn.Port))
}

func brokerURL(scheme string, conn application.ConnectionParams) string {
	return scheme + "://" + brokerAddress(conn)
}

var _ application.Publisher = &MQTTClient{}
