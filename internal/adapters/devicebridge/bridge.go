package devicebridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultTopicPrefix = "dosemate"

	nextDoseSuffix = "next_dose"
	statusSuffix   = "status"

	heartbeatTimeout = 10 * time.Second
)

// HeartbeatRecorder recibe el estado que reporta el dispensador.
type HeartbeatRecorder interface {
	RecordHeartbeat(ctx context.Context, accountID string, connected bool) error
}

type nextDosePayload struct {
	Time string `json:"time"`
}

type statusPayload struct {
	Connected *bool `json:"connected"`
}

// Bridge espeja next_dose_time por MQTT (mensaje retenido) y consume los
// heartbeats de {prefix}/{account}/status.
type Bridge struct {
	broker   Broker
	prefix   string
	recorder HeartbeatRecorder
	log      *zap.Logger
}

func NewBridge(broker Broker, prefix string, recorder HeartbeatRecorder, log *zap.Logger) *Bridge {
	if log == nil {
		log = zap.NewNop()
	}
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return &Bridge{
		broker:   broker,
		prefix:   prefix,
		recorder: recorder,
		log:      log,
	}
}

func (b *Bridge) NextDoseTopic(accountID string) string {
	return b.prefix + "/" + accountID + "/" + nextDoseSuffix
}

func (b *Bridge) statusFilter() string {
	return b.prefix + "/+/" + statusSuffix
}

// MirrorNextDose implementa devicesync.Mirror. El mensaje queda retenido para
// que un dispensador que se reconecta lea el último valor.
func (b *Bridge) MirrorNextDose(ctx context.Context, accountID, nextDoseTime string) error {
	payload, err := json.Marshal(nextDosePayload{Time: nextDoseTime})
	if err != nil {
		return err
	}
	return b.broker.Publish(b.NextDoseTopic(accountID), 1, true, payload)
}

// Start se suscribe a los heartbeats. Sin recorder no hay nada que consumir.
func (b *Bridge) Start() error {
	if b.recorder == nil {
		return nil
	}
	if err := b.broker.Subscribe(b.statusFilter(), 1, b.handleStatus); err != nil {
		return err
	}
	b.log.Info("device bridge listening", zap.String("topic", b.statusFilter()))
	return nil
}

func (b *Bridge) Close() {
	b.broker.Disconnect()
}

func (b *Bridge) handleStatus(topic string, payload []byte) error {
	accountID, ok := b.accountFromStatusTopic(topic)
	if !ok {
		return fmt.Errorf("unexpected status topic %q", topic)
	}

	connected := true
	if len(bytes.TrimSpace(payload)) > 0 {
		var p statusPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("decode status payload: %w", err)
		}
		if p.Connected != nil {
			connected = *p.Connected
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), heartbeatTimeout)
	defer cancel()

	if err := b.recorder.RecordHeartbeat(ctx, accountID, connected); err != nil {
		return err
	}
	b.log.Debug("device heartbeat",
		zap.String("account_id", accountID),
		zap.Bool("connected", connected),
	)
	return nil
}

func (b *Bridge) accountFromStatusTopic(topic string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, b.prefix+"/")
	if !ok {
		return "", false
	}
	accountID, ok := strings.CutSuffix(rest, "/"+statusSuffix)
	if !ok || accountID == "" || strings.Contains(accountID, "/") {
		return "", false
	}
	return accountID, true
}
