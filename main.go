package main

import (
	"context"
	"fmt"
	"io"
	"mqtt-light-panel/adapters"
	"mqtt-light-panel/application"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

var Flags = []cli.Flag{
	FlagLogLevel,
	FlagLogWriter,
	FlagConfig,
	FlagListenAddr,
	FlagMQTTProtocol,
	FlagMQTTConnectTimeout,
	FlagMQTTBroker,
	FlagMQTTPort,
	FlagMQTTClientID,
	FlagMQTTSwitchTopic,
	FlagMQTTAnalogTopic,
}

func main() {
	var logger zerolog.Logger

	app := cli.App{
		Name:    "mqtt-light-panel",
		Usage:   "web panel that switches a light and pushes an analog setpoint over MQTT",
		Version: "v0.1.0",
		Flags:   Flags,
		Before: func(ctx *cli.Context) error {
			var logWriter io.Writer
			switch ctx.String(FlagLogWriter.Name) {
			case "console":
				logWriter = zerolog.ConsoleWriter{
					Out:        os.Stderr,
					TimeFormat: time.RFC3339Nano,
				}
			case "json":
				logWriter = os.Stderr
			default:
				return fmt.Errorf("invalid log writer %q", ctx.String(FlagLogWriter.Name))
			}

			logger = zerolog.New(logWriter).With().Timestamp().
				Str("service", "mqtt-light-panel").
				Str("module", "main").
				Logger()

			level, err := zerolog.ParseLevel(ctx.String(FlagLogLevel.Name))
			if err != nil {
				return err
			}

			zerolog.SetGlobalLevel(level)

			return nil
		},
		Action: func(ctx *cli.Context) error {
			logger.Info().Msg("service starting...")

			cfg, err := loadSettings(ctx)
			if err != nil {
				return err
			}

			appCtx, cancel := context.WithCancel(logger.WithContext(context.Background()))
			defer cancel()

			adapters.RouteMQTTLogs(logger, zerolog.GlobalLevel() <= zerolog.TraceLevel)

			publisher := newPublisher(cfg, logger)
			logger.Info().Msgf("mqtt protocol: %s", cfg.Protocol)

			panel, err := application.NewPanel(application.PanelParams{
				Publisher: publisher,
				Log:       logger.With().Str("module", "panel").Logger(),
			})
			if err != nil {
				return err
			}

			panelServer, err := adapters.NewPanelServer(adapters.PanelServerParams{
				Addr:     cfg.ListenAddr,
				Panel:    panel,
				Defaults: cfg.Defaults,
				Status:   publisher.Status,
				Log:      logger.With().Str("module", "http").Logger(),
			})
			if err != nil {
				return err
			}

			g, gCtx := errgroup.WithContext(appCtx)

			g.Go(func() error {
				c := make(chan os.Signal, 1)
				signal.Notify(c, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
				defer signal.Stop(c)

				select {
				case <-c:
					logger.Warn().Msg("interrupt signal received")
					cancel()
				case <-gCtx.Done():
				}
				return nil
			})

			g.Go(func() error {
				return panelServer.Run(gCtx)
			})

			logger.Info().Msg("service started")
			if err := g.Wait(); err != nil {
				return err
			}

			logger.Info().Msg("service terminating...")
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Err(err).Msg("service terminated")
		os.Exit(1)
	}
}

func loadSettings(ctx *cli.Context) (settings, error) {
	cfg := settings{
		ListenAddr:     ctx.String(FlagListenAddr.Name),
		Protocol:       ctx.String(FlagMQTTProtocol.Name),
		ConnectTimeout: ctx.Duration(FlagMQTTConnectTimeout.Name),
		Defaults: application.PanelForm{
			Host:        ctx.String(FlagMQTTBroker.Name),
			Port:        ctx.Int(FlagMQTTPort.Name),
			ClientID:    ctx.String(FlagMQTTClientID.Name),
			SwitchTopic: ctx.String(FlagMQTTSwitchTopic.Name),
			AnalogTopic: ctx.String(FlagMQTTAnalogTopic.Name),
		},
	}

	if path := ctx.String(FlagConfig.Name); path != "" {
		file, err := loadConfigFile(path)
		if err != nil {
			return cfg, err
		}
		cfg = cfg.merge(file, ctx.IsSet)
	}

	return cfg, cfg.validate()
}

func newPublisher(cfg settings, logger zerolog.Logger) application.Publisher {
	if cfg.Protocol == protocolMQTT5 {
		return adapters.NewMQTT5Client(adapters.MQTT5ClientParams{
			ConnectTimeout: cfg.ConnectTimeout,
			PublishTimeout: adapters.MQTTDefaultPublishTimeout,
			Log:            logger.With().Str("module", "mqtt5-client").Logger(),
		})
	}
	return adapters.NewMQTTClient(adapters.MQTTClientParams{
		ConnectTimeout: cfg.ConnectTimeout,
		PublishTimeout: adapters.MQTTDefaultPublishTimeout,
		Log:            logger.With().Str("module", "mqtt-client").Logger(),
	})
}
