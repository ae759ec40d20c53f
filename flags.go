package main

import (
	"mqtt-light-panel/adapters"
	"mqtt-light-panel/application"

	"github.com/urfave/cli/v2"
)

var FlagLogLevel = &cli.StringFlag{
	Name:     "log-level",
	EnvVars:  []string{"LOG_LEVEL"},
	Value:    "info",
	Required: false,
}

var FlagLogWriter = &cli.StringFlag{
	Name:     "log-writer",
	Usage:    "one of: [console, json]",
	EnvVars:  []string{"LOG_WRITER"},
	Value:    "console",
	Required: false,
}

var FlagConfig = &cli.StringFlag{
	Name:     "config",
	Usage:    "optional TOML file with panel defaults",
	EnvVars:  []string{"PANEL_CONFIG"},
	Required: false,
}

var FlagListenAddr = &cli.StringFlag{
	Name:     "listen-addr",
	Usage:    "host:port the panel is served on",
	EnvVars:  []string{"LISTEN_ADDR"},
	Value:    ":8501",
	Required: false,
}

var FlagMQTTProtocol = &cli.StringFlag{
	Name:     "mqtt-protocol",
	Usage:    "one of: [3.1.1, 5]",
	EnvVars:  []string{"MQTT_PROTOCOL"},
	Value:    protocolMQTT311,
	Required: false,
}

var FlagMQTTConnectTimeout = &cli.DurationFlag{
	Name:     "mqtt-connect-timeout",
	EnvVars:  []string{"MQTT_CONNECT_TIMEOUT"},
	Value:    adapters.MQTTDefaultConnectTimeout,
	Required: false,
}

var FlagMQTTBroker = &cli.StringFlag{
	Name:     "mqtt-broker",
	Usage:    "default broker host shown on the panel",
	EnvVars:  []string{"MQTT_BROKER"},
	Value:    application.DefaultBrokerHost,
	Required: false,
}

var FlagMQTTPort = &cli.IntFlag{
	Name:     "mqtt-port",
	Usage:    "default broker port shown on the panel",
	EnvVars:  []string{"MQTT_PORT"},
	Value:    application.DefaultBrokerPort,
	Required: false,
}

var FlagMQTTClientID = &cli.StringFlag{
	Name:     "mqtt-client-id",
	EnvVars:  []string{"MQTT_CLIENT_ID"},
	Value:    application.DefaultClientID,
	Required: false,
}

var FlagMQTTSwitchTopic = &cli.StringFlag{
	Name:     "mqtt-switch-topic",
	EnvVars:  []string{"MQTT_SWITCH_TOPIC"},
	Value:    application.DefaultSwitchTopic,
	Required: false,
}

var FlagMQTTAnalogTopic = &cli.StringFlag{
	Name:     "mqtt-analog-topic",
	EnvVars:  []string{"MQTT_ANALOG_TOPIC"},
	Value:    application.DefaultAnalogTopic,
	Required: false,
}
