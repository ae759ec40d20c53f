package adapters

import (
	"context"
	"errors"
	"fmt"
	"mqtt-light-panel/application"
	"net"
	"sync/atomic"
	"time"

	"github.com/eclipse/paho.golang/paho"
	"github.com/rs/zerolog"
)

type MQTT5ClientParams struct {
	ConnectTimeout time.Duration
	PublishTimeout time.Duration

	DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

	Log zerolog.Logger
}

func (m *MQTT5ClientParams) EnsureDefaults() {
	if m.ConnectTimeout == 0 {
		m.ConnectTimeout = MQTTDefaultConnectTimeout
	}

	if m.PublishTimeout == 0 {
		m.PublishTimeout = MQTTDefaultPublishTimeout
	}

	if m.DialFunc == nil {
		var d net.Dialer
		m.DialFunc = d.DialContext
	}
}

// MQTT5Client publishes over MQTT 5, one short-lived connection per message.
type MQTT5Client struct {
	params MQTT5ClientParams

	msgCount           uint64
	msgCountUpdateTime atomic.Pointer[time.Time]

	log zerolog.Logger
}

func NewMQTT5Client(params MQTT5ClientParams) *MQTT5Client {
	params.EnsureDefaults()

	m := &MQTT5Client{params: params, log: params.Log}

	t := time.Unix(0, 0)
	m.msgCountUpdateTime.Store(&t)

	return m
}

func (m *MQTT5Client) Status() application.MQTTStatus {
	return application.MQTTStatus{
		MessageCount:      atomic.LoadUint64(&m.msgCount),
		LastTimePublished: *m.msgCountUpdateTime.Load(),
	}
}

func (m *MQTT5Client) Publish(ctx context.Context, conn application.ConnectionParams, msg application.Message) error {
	log := loggerFrom(ctx, m.log)

	connCtx, connCancel := context.WithTimeout(ctx, m.params.ConnectTimeout)
	defer connCancel()

	nc, err := m.params.DialFunc(connCtx, "tcp", brokerAddress(conn))
	if err != nil {
		return timeoutOr(connCtx, ErrMQTTConnectTimeout, err)
	}

	client := paho.NewClient(paho.ClientConfig{
		ClientID: conn.ClientID,
		Conn:     nc,
		OnClientError: func(err error) {
			log.Debug().Err(err).Msg("client error")
		},
		OnServerDisconnect: func(d *paho.Disconnect) {
			log.Info().Uint8("reason_code", d.ReasonCode).Msg("server disconnected")
		},
	})

	ack, err := client.Connect(connCtx, &paho.Connect{
		ClientID:   conn.ClientID,
		KeepAlive:  uint16(msg.KeepAlive / time.Second),
		CleanStart: true,
	})
	if err != nil {
		_ = nc.Close()
		return timeoutOr(connCtx, ErrMQTTConnectTimeout, err)
	}
	if ack.ReasonCode >= 0x80 {
		_ = nc.Close()
		return fmt.Errorf("connection refused by broker: reason code %d", ack.ReasonCode)
	}
	log.Debug().Msg("connected")

	defer func() {
		if err := client.Disconnect(&paho.Disconnect{ReasonCode: 0}); err != nil {
			log.Debug().Err(err).Msg("disconnect")
		}
		log.Debug().Msg("disconnected")
	}()

	pubCtx, pubCancel := context.WithTimeout(ctx, m.params.PublishTimeout)
	defer pubCancel()

	_, err = client.Publish(pubCtx, &paho.Publish{
		Topic:   msg.Topic,
		QoS:     msg.QoS,
		Payload: msg.Payload,
	})
	if err != nil {
		return timeoutOr(pubCtx, ErrMQTTPublishTimeout, err)
	}

	t := time.Now()
	m.msgCountUpdateTime.Store(&t)
	atomic.AddUint64(&m.msgCount, 1)
	return nil
}

// timeoutOr reports timeoutErr when ctx ran out of time, err otherwise.
func timeoutOr(ctx context.Context, timeoutErr, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return timeoutErr
	}
	return err
}

var _ application.Publisher = &MQTT5Client{}
