package redisstore

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"dose-mate/internal/domain/devicesync"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const (
	defaultKeyPrefix = "dosemate:device:"
	changedSuffix    = ":changed"

	fieldAccountID    = "account_id"
	fieldConnected    = "connected"
	fieldLastSeenAt   = "last_seen_at"
	fieldNextDoseTime = "next_dose_time"
	fieldVersion      = "version"
)

// DeviceStore guarda el registro de cada cuenta en un hash y avisa los cambios
// por pub/sub. Cada upsert incrementa version dentro del mismo MULTI.
type DeviceStore struct {
	client *redis.Client
	prefix string
	log    *zap.Logger
}

func NewDeviceStore(client *redis.Client, log *zap.Logger) *DeviceStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &DeviceStore{
		client: client,
		prefix: defaultKeyPrefix,
		log:    log,
	}
}

// WithPrefix cambia el prefijo de las keys (varios entornos en un mismo Redis).
func (s *DeviceStore) WithPrefix(prefix string) *DeviceStore {
	if strings.TrimSpace(prefix) != "" {
		s.prefix = prefix
	}
	return s
}

func (s *DeviceStore) key(accountID string) string {
	return s.prefix + accountID
}

func (s *DeviceStore) channel(accountID string) string {
	return s.prefix + accountID + changedSuffix
}

func (s *DeviceStore) UpsertMerge(ctx context.Context, accountID string, p devicesync.Patch) error {
	if strings.TrimSpace(accountID) == "" {
		return errors.New("account id required")
	}

	fields := []interface{}{fieldAccountID, accountID}
	if p.Connected != nil {
		fields = append(fields, fieldConnected, formatBool(*p.Connected))
	}
	if p.LastSeenAt != nil {
		fields = append(fields, fieldLastSeenAt, p.LastSeenAt.UTC().Format(time.RFC3339Nano))
	}
	if p.NextDoseTime != nil {
		fields = append(fields, fieldNextDoseTime, *p.NextDoseTime)
	}

	key := s.key(accountID)
	var version *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, fields...)
		version = pipe.HIncrBy(ctx, key, fieldVersion, 1)
		return nil
	})
	if err != nil {
		return err
	}

	// El aviso va después del EXEC: quien lo reciba ya puede leer el hash.
	if err := s.client.Publish(ctx, s.channel(accountID), version.Val()).Err(); err != nil {
		s.log.Warn("device change notify failed",
			zap.String("account_id", accountID),
			zap.Error(err),
		)
	}
	return nil
}

func (s *DeviceStore) Get(ctx context.Context, accountID string) (devicesync.State, bool, error) {
	st, _, found, err := s.load(ctx, accountID)
	return st, found, err
}

func (s *DeviceStore) load(ctx context.Context, accountID string) (devicesync.State, int64, bool, error) {
	values, err := s.client.HGetAll(ctx, s.key(accountID)).Result()
	if err != nil {
		return devicesync.State{}, 0, false, err
	}
	if len(values) == 0 {
		return devicesync.State{}, 0, false, nil
	}
	st, version, err := decodeState(accountID, values)
	if err != nil {
		return devicesync.State{}, 0, false, err
	}
	return st, version, true, nil
}

// Subscribe confirma la suscripción al canal antes de leer el estado inicial,
// así ningún cambio posterior se pierde. Las notificaciones solo traen la
// versión: el estado se relee y se entrega si la versión avanzó, de modo que
// nunca se entrega un estado más viejo que uno ya entregado.
func (s *DeviceStore) Subscribe(ctx context.Context, accountID string, onChange func(devicesync.State), onError func(error)) (devicesync.Subscription, error) {
	if strings.TrimSpace(accountID) == "" {
		return nil, errors.New("account id required")
	}

	pubsub := s.client.Subscribe(ctx, s.channel(accountID))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	readCtx, stopReads := context.WithCancel(context.Background())
	feed := devicesync.NewFeed(ctx, accountID, onChange, onError, func() {
		stopReads()
		_ = pubsub.Close()
	})

	go s.pump(readCtx, accountID, pubsub, feed)
	return feed, nil
}

func (s *DeviceStore) pump(ctx context.Context, accountID string, pubsub *redis.PubSub, feed *devicesync.Feed) {
	var delivered int64

	refresh := func() {
		st, version, found, err := s.load(ctx, accountID)
		if err != nil {
			if ctx.Err() == nil {
				feed.Fail(err)
			}
			return
		}
		if !found || version <= delivered {
			return
		}
		delivered = version
		feed.Push(st)
	}

	refresh()

	ch := pubsub.Channel()
	for {
		select {
		case <-feed.Done():
			return
		case _, ok := <-ch:
			if !ok {
				return
			}
			refresh()
		}
	}
}

func decodeState(accountID string, values map[string]string) (devicesync.State, int64, error) {
	st := devicesync.State{
		AccountID:    accountID,
		Connected:    values[fieldConnected] == "1",
		NextDoseTime: values[fieldNextDoseTime],
	}

	if raw := values[fieldLastSeenAt]; raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return devicesync.State{}, 0, err
		}
		st.LastSeenAt = &t
	}

	var version int64
	if raw := values[fieldVersion]; raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return devicesync.State{}, 0, err
		}
		version = v
	}
	return st, version, nil
}

func formatBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
