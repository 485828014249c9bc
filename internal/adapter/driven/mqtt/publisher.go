// Package mqtt implements the TelemetryPublisher port over a plain TCP
// connection to an MQTT broker.
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	mqtt "github.com/soypat/natiu-mqtt"

	"github.com/brewlink/brewlink/internal/domain/model"
	"github.com/brewlink/brewlink/internal/domain/port/driven"
)

const (
	dialTimeout      = 5 * time.Second
	connectPollEvery = 100 * time.Millisecond
	connectPollMax   = 50
)

// Compile-time interface satisfaction check.
var _ driven.TelemetryPublisher = (*Publisher)(nil)

// readingPayload is the wire form of a published reading.
type readingPayload struct {
	Temperature float64 `json:"temperature"`
	Setpoint    float64 `json:"setpoint"`
	DutyCycle   int     `json:"duty_cycle"`
	State       string  `json:"state"`
	TakenAt     string  `json:"taken_at"`
}

// Publisher publishes readings to one broker topic with QoS0. The broker
// connection is dialed lazily on first publish and redialed after failures.
type Publisher struct {
	mu       sync.Mutex
	addr     string
	topic    []byte
	clientID []byte
	logger   *slog.Logger

	conn     net.Conn
	client   *mqtt.Client
	packetID uint16
}

// NewPublisher creates a Publisher for the given broker address and topic.
func NewPublisher(addr, topic, clientID string, logger *slog.Logger) *Publisher {
	return &Publisher{
		addr:     addr,
		topic:    []byte(topic),
		clientID: []byte(clientID),
		logger:   logger,
	}
}

// Publish sends one reading to the broker topic. A failed publish tears the
// session down so the next call redials.
func (p *Publisher) Publish(ctx context.Context, reading model.Reading) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ensureConnected(ctx); err != nil {
		return err
	}

	payload, err := json.Marshal(readingPayload{
		Temperature: reading.Temperature,
		Setpoint:    reading.Setpoint,
		DutyCycle:   reading.DutyCycle,
		State:       string(reading.State),
		TakenAt:     reading.TakenAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("encoding reading: %w", err)
	}

	pubFlags, err := mqtt.NewPublishFlags(mqtt.QoS0, false, false)
	if err != nil {
		return fmt.Errorf("building publish flags: %w", err)
	}
	p.packetID++
	pubVar := mqtt.VariablesPublish{
		TopicName:        p.topic,
		PacketIdentifier: p.packetID,
	}

	if deadline, ok := ctx.Deadline(); ok {
		p.conn.SetDeadline(deadline)
	} else {
		p.conn.SetDeadline(time.Now().Add(dialTimeout))
	}

	if err := p.client.PublishPayload(pubFlags, pubVar, payload); err != nil {
		p.teardown()
		return fmt.Errorf("publishing to %s: %w", string(p.topic), err)
	}

	p.logger.Debug("telemetry published", "topic", string(p.topic), "packet_id", p.packetID)
	return nil
}

// Close disconnects from the broker. Safe to call without a live session.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(errors.New("publisher closing"))
	}
	p.teardown()
	return nil
}

// ensureConnected dials the broker and completes the MQTT handshake if no
// live session exists. Callers must hold mu.
func (p *Publisher) ensureConnected(ctx context.Context) error {
	if p.client != nil && p.client.IsConnected() {
		return nil
	}
	p.teardown()

	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", p.addr)
	if err != nil {
		return fmt.Errorf("dialing broker %s: %w", p.addr, err)
	}

	client := mqtt.NewClient(mqtt.ClientConfig{
		Decoder: mqtt.DecoderNoAlloc{UserBuffer: make([]byte, 4096)},
		OnPub: func(_ mqtt.Header, _ mqtt.VariablesPublish, _ io.Reader) error {
			return nil
		},
	})

	var varconn mqtt.VariablesConnect
	varconn.SetDefaultMQTT(p.clientID)

	conn.SetDeadline(time.Now().Add(dialTimeout))
	if err := client.StartConnect(conn, &varconn); err != nil {
		conn.Close()
		return fmt.Errorf("starting mqtt connect to %s: %w", p.addr, err)
	}

	for range connectPollMax {
		if client.IsConnected() {
			break
		}
		select {
		case <-ctx.Done():
			conn.Close()
			return ctx.Err()
		case <-time.After(connectPollEvery):
		}
	}
	if !client.IsConnected() {
		conn.Close()
		return fmt.Errorf("mqtt connect to %s: %w", p.addr, client.Err())
	}

	p.conn = conn
	p.client = client
	p.logger.Info("mqtt session established", "broker", p.addr, "client_id", string(p.clientID))
	return nil
}

func (p *Publisher) teardown() {
	if p.conn != nil {
		p.conn.Close()
	}
	p.conn = nil
	p.client = nil
}
