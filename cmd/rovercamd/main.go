// Command rovercamd runs the onboard camera-stream and motor-command
// server of the robot car.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/roverhub/rovercam"
	"github.com/roverhub/rovercam/capture"
	"github.com/roverhub/rovercam/config"
	"github.com/roverhub/rovercam/motor"
	"github.com/roverhub/rovercam/telemetry"
)

func main() {
	v := config.New()

	root := &cobra.Command{
		Use:   "rovercamd",
		Short: "Camera stream and motor command server for the rover",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(config.Load(v))
		},
		SilenceUsage: true,
	}

	flags := root.Flags()
	flags.String("addr", "", "HTTP listen address")
	flags.String("frames-dir", "", "directory of JPEG frames for the simulated sensor")
	flags.String("serial-device", "", "motor controller serial device")
	flags.String("mqtt-broker", "", "MQTT broker URL for weather telemetry")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	_ = v.BindPFlag("http.addr", flags.Lookup("addr"))
	_ = v.BindPFlag("capture.frames_dir", flags.Lookup("frames-dir"))
	_ = v.BindPFlag("serial.device", flags.Lookup("serial-device"))
	_ = v.BindPFlag("mqtt.broker", flags.Lookup("mqtt-broker"))
	_ = v.BindPFlag("log.level", flags.Lookup("log-level"))

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logrus.SetLevel(lvl)
	}

	src, err := buildSource(cfg)
	if err != nil {
		return err
	}

	link := buildLink(cfg)
	defer link.Close()

	opts := rovercam.DefaultOptions()
	opts.Addr = cfg.Addr
	opts.Boundary = cfg.Boundary
	opts.CaptureInterval = cfg.CaptureInterval
	opts.ClientBudget = cfg.ClientBudget

	srv, err := rovercam.New(opts, src, link)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.MQTTBroker != "" {
		startTelemetry(ctx, cfg)
	}

	if err := srv.Start(); err != nil {
		return err
	}

	<-ctx.Done()
	logrus.WithFields(logrus.Fields{
		"function": "run",
	}).Info("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Stop(shutdownCtx)
}

func buildSource(cfg config.Config) (capture.Source, error) {
	// The physical sensor driver is platform code; off the car the
	// daemon runs against a directory of canned frames.
	return capture.NewDirSource(cfg.FramesDir)
}

func buildLink(cfg config.Config) motor.Link {
	if cfg.SerialDevice == "" {
		logrus.WithFields(logrus.Fields{
			"function": "buildLink",
		}).Warn("No serial device configured, motor commands will be dropped")
		return motor.NopLink{}
	}
	link, err := motor.OpenSerial(cfg.SerialDevice, cfg.SerialBaud)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "buildLink",
			"device":   cfg.SerialDevice,
			"error":    err,
		}).Error("Serial open failed, motor commands will be dropped")
		return motor.NopLink{}
	}
	return link
}

func startTelemetry(ctx context.Context, cfg config.Config) {
	pub, err := telemetry.NewPublisher(cfg.MQTTBroker, "rovercamd", cfg.MQTTTopic)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "startTelemetry",
			"error":    err,
		}).Warn("Telemetry disabled")
		return
	}
	go func() {
		defer pub.Close()
		pub.Run(ctx, cfg.TelemetryInt, sampleWeather)
	}()
}

// sampleWeather is the stand-in weather sensor used off the car.
func sampleWeather() (telemetry.Reading, error) {
	return telemetry.Reading{
		TemperatureC: 21.0,
		Humidity:     40.0,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
	}, nil
}
