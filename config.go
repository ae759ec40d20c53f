package main

import (
	"fmt"
	"mqtt-light-panel/application"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	protocolMQTT311 = "3.1.1"
	protocolMQTT5   = "5"
)

// settings is everything the panel process needs after flags, environment
// and the optional config file have been merged.
type settings struct {
	ListenAddr     string
	Protocol       string
	ConnectTimeout time.Duration
	Defaults       application.PanelForm
}

// fileConfig mirrors the TOML config file. Zero values mean "not set".
type fileConfig struct {
	ListenAddr string    `toml:"listen-addr"`
	MQTT       mqttConf  `toml:"mqtt"`
	Panel      panelConf `toml:"panel"`
}

type mqttConf struct {
	Protocol       string   `toml:"protocol"`
	ConnectTimeout duration `toml:"connect-timeout"`
}

type panelConf struct {
	Broker      string `toml:"broker"`
	Port        int    `toml:"port"`
	ClientID    string `toml:"client-id"`
	SwitchTopic string `toml:"switch-topic"`
	AnalogTopic string `toml:"analog-topic"`
}

type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func loadConfigFile(path string) (fileConfig, error) {
	var cfg fileConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	return cfg, nil
}

// merge fills every setting the operator did not pass explicitly as a flag
// or environment variable from the config file.
func (s settings) merge(file fileConfig, isSet func(name string) bool) settings {
	str := func(flag string, current *string, fromFile string) {
		if !isSet(flag) && fromFile != "" {
			*current = fromFile
		}
	}

	str(FlagListenAddr.Name, &s.ListenAddr, file.ListenAddr)
	str(FlagMQTTProtocol.Name, &s.Protocol, file.MQTT.Protocol)
	str(FlagMQTTBroker.Name, &s.Defaults.Host, file.Panel.Broker)
	str(FlagMQTTClientID.Name, &s.Defaults.ClientID, file.Panel.ClientID)
	str(FlagMQTTSwitchTopic.Name, &s.Defaults.SwitchTopic, file.Panel.SwitchTopic)
	str(FlagMQTTAnalogTopic.Name, &s.Defaults.AnalogTopic, file.Panel.AnalogTopic)

	if !isSet(FlagMQTTPort.Name) && file.Panel.Port != 0 {
		s.Defaults.Port = file.Panel.Port
	}
	if !isSet(FlagMQTTConnectTimeout.Name) && file.MQTT.ConnectTimeout.Duration != 0 {
		s.ConnectTimeout = file.MQTT.ConnectTimeout.Duration
	}

	return s
}

func (s settings) validate() error {
	switch s.Protocol {
	case protocolMQTT311, protocolMQTT5:
	default:
		return fmt.Errorf("invalid mqtt protocol %q", s.Protocol)
	}
	if s.ConnectTimeout <= 0 {
		return fmt.Errorf("mqtt connect timeout must be positive")
	}
	if s.ListenAddr == "" {
		return fmt.Errorf("listen address is empty")
	}
	return nil
}
