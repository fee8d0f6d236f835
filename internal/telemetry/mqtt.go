// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package telemetry

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// ConnectMQTT connects to broker with automatic reconnection so a flaky
// uplink does not stall the pipeline.
func ConnectMQTT(broker, clientID string, log *zap.Logger) (mqtt.Client, error) {
	log = log.With(zap.String("broker", broker), zap.String("client_id", clientID))

	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second).
		SetOnConnectHandler(func(mqtt.Client) {
			log.Info("connected to MQTT broker")
		}).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.Warn("MQTT connection lost", zap.Error(err))
		})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", broker, token.Error())
	}
	return client, nil
}

// MQTTSink publishes events as JSON. Detections go to the detection topic,
// retained so late subscribers see the latest one; everything else goes to
// the phase topic.
type MQTTSink struct {
	client         mqtt.Client
	detectionTopic string
	phaseTopic     string
	timeout        time.Duration
	log            *zap.Logger
}

func NewMQTTSink(client mqtt.Client, detectionTopic, phaseTopic string, log *zap.Logger) *MQTTSink {
	return &MQTTSink{
		client:         client,
		detectionTopic: detectionTopic,
		phaseTopic:     phaseTopic,
		timeout:        2 * time.Second,
		log:            log.Named("mqtt"),
	}
}

func (s *MQTTSink) Report(ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		s.log.Warn("event marshal failed", zap.Error(err))
		return
	}

	topic, retained := s.phaseTopic, false
	if ev.Kind == KindDetection {
		topic, retained = s.detectionTopic, true
	}

	token := s.client.Publish(topic, 0, retained, payload)
	if !token.WaitTimeout(s.timeout) {
		s.log.Warn("publish timed out", zap.String("topic", topic))
		return
	}
	if err := token.Error(); err != nil {
		s.log.Warn("publish failed", zap.String("topic", topic), zap.Error(err))
	}
}
