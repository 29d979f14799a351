// Package telemetry publishes periodic weather readings to an MQTT
// topic.
//
// It shares nothing with the streaming core: a broker outage degrades
// to dropped readings and log noise, never to a stalled camera.
package telemetry
