// Package config loads rovercam settings from defaults, environment
// variables and an optional yaml file.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the typed view of everything the daemon needs at start.
type Config struct {
	// Addr is the HTTP listen address.
	Addr string

	// FramesDir feeds the file simulation source when no camera
	// hardware is present.
	FramesDir string

	// CaptureInterval is the target time between captures.
	CaptureInterval time.Duration

	// Boundary is the multipart boundary token.
	Boundary string

	// ClientBudget is the per-client outbound byte budget.
	ClientBudget int64

	// SerialDevice is the motor controller UART ("" disables the link).
	SerialDevice string
	SerialBaud   int

	// MQTTBroker enables weather telemetry when non-empty.
	MQTTBroker   string
	MQTTTopic    string
	TelemetryInt time.Duration

	// LogLevel is a logrus level name.
	LogLevel string
}

// New builds a viper instance with rovercam defaults, ROVERCAM_* env
// bindings and an optional rovercam.yaml in the working directory or
// /etc/rovercam.
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("capture.frames_dir", "")
	v.SetDefault("capture.interval_ms", 50)
	v.SetDefault("stream.boundary", "rovercamframe")
	v.SetDefault("stream.client_budget", 512*1024)
	v.SetDefault("serial.device", "")
	v.SetDefault("serial.baud", 9600)
	v.SetDefault("mqtt.broker", "")
	v.SetDefault("mqtt.topic", "rovercam/weather")
	v.SetDefault("mqtt.interval_s", 30)
	v.SetDefault("log.level", "info")

	v.SetEnvPrefix("ROVERCAM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("rovercam")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/rovercam")

	// The file is optional; env and defaults carry a bare install.
	_ = v.ReadInConfig()

	return v
}

// Load materializes a Config from v.
func Load(v *viper.Viper) Config {
	return Config{
		Addr:            v.GetString("http.addr"),
		FramesDir:       v.GetString("capture.frames_dir"),
		CaptureInterval: time.Duration(v.GetInt("capture.interval_ms")) * time.Millisecond,
		Boundary:        v.GetString("stream.boundary"),
		ClientBudget:    v.GetInt64("stream.client_budget"),
		SerialDevice:    v.GetString("serial.device"),
		SerialBaud:      v.GetInt("serial.baud"),
		MQTTBroker:      v.GetString("mqtt.broker"),
		MQTTTopic:       v.GetString("mqtt.topic"),
		TelemetryInt:    time.Duration(v.GetInt("mqtt.interval_s")) * time.Second,
		LogLevel:        v.GetString("log.level"),
	}
}
