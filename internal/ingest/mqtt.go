// Package ingest provides an optional direct MQTT ingest source for field
// gateways that publish property reports straight to a local broker
// instead of going through the cloud platform's HTTP push.
package ingest

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/kipp7/Landslide-monitor/internal/config"
	"github.com/kipp7/Landslide-monitor/internal/pipeline"
)

// propertiesReport is the payload the station firmware publishes on
// $oc/devices/<device_id>/sys/properties/report.
type propertiesReport struct {
	Services []pipeline.ServiceReport `json:"services"`
}

// MQTTSource subscribes to firmware property reports and feeds them into
// the same pipeline as the HTTP webhook.
type MQTTSource struct {
	cfg      config.MQTTConfig
	pipeline *pipeline.Pipeline
	logger   *zap.Logger
	client   mqtt.Client
}

// NewMQTTSource creates the source; Start connects it.
func NewMQTTSource(cfg config.MQTTConfig, p *pipeline.Pipeline, logger *zap.Logger) *MQTTSource {
	return &MQTTSource{cfg: cfg, pipeline: p, logger: logger}
}

// Start connects to the broker and subscribes. The paho client reconnects
// and resubscribes on its own afterwards.
func (s *MQTTSource) Start(ctx context.Context) error {
	opts := mqtt.NewClientOptions().
		AddBroker(s.cfg.BrokerURL).
		SetClientID(s.cfg.ClientID).
		SetCleanSession(false).
		SetKeepAlive(30 * time.Second).
		SetPingTimeout(10 * time.Second).
		SetAutoReconnect(true).
		SetConnectTimeout(s.cfg.ConnectTimeout)

	if username := os.Getenv(s.cfg.UsernameEnv); username != "" {
		opts.SetUsername(username)
	}
	if password := os.Getenv(s.cfg.PasswordEnv); password != "" {
		opts.SetPassword(password)
	}

	opts.OnConnect = func(c mqtt.Client) {
		s.logger.Info("mqtt connected", zap.String("broker", s.cfg.BrokerURL))
		if token := c.Subscribe(s.cfg.Topic, s.cfg.QoS, s.handleMessage); token.Wait() && token.Error() != nil {
			s.logger.Error("mqtt subscribe failed",
				zap.String("topic", s.cfg.Topic), zap.Error(token.Error()))
		}
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		s.logger.Warn("mqtt connection lost", zap.Error(err))
	}

	s.client = mqtt.NewClient(opts)
	if token := s.client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	return nil
}

// Stop disconnects from the broker.
func (s *MQTTSource) Stop() {
	if s.client != nil && s.client.IsConnected() {
		s.client.Disconnect(250)
	}
}

// handleMessage translates one firmware report into the webhook envelope
// shape and runs it through the pipeline. Failures are logged; a bad
// message never takes the subscription down.
func (s *MQTTSource) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	deviceID := deviceIDFromTopic(msg.Topic())
	if deviceID == "" {
		s.logger.Warn("mqtt message on unexpected topic", zap.String("topic", msg.Topic()))
		return
	}

	var report propertiesReport
	if err := json.Unmarshal(msg.Payload(), &report); err != nil {
		s.logger.Warn("invalid mqtt payload",
			zap.String("device_id", deviceID), zap.Error(err))
		return
	}

	env := &pipeline.Envelope{
		Resource: "device.property",
		Event:    "report",
		NotifyData: &pipeline.NotifyData{
			Header: pipeline.Header{DeviceID: deviceID},
			Body:   &pipeline.Body{Services: report.Services},
		},
	}

	if _, verr := s.pipeline.Process(context.Background(), env); verr != nil {
		s.logger.Warn("mqtt report rejected",
			zap.String("device_id", deviceID),
			zap.String("error_code", verr.Code))
	}
}

// deviceIDFromTopic extracts the device id from a firmware report topic,
// e.g. "$oc/devices/6815a14f_rk2206/sys/properties/report".
func deviceIDFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	for i := 0; i < len(parts)-1; i++ {
		if parts[i] == "devices" {
			return parts[i+1]
		}
	}
	return ""
}
