package records

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/tariel-x/gopresence/internal/models"
)

const channelPrefix = "presence:"

// RedisRelay mirrors committed records between instances sharing one database.
// Each instance publishes its commits and replays the others' into its broker.
type RedisRelay struct {
	client *redis.Client
	origin string
	logger *slog.Logger
}

type relayEnvelope struct {
	Origin string                    `json:"origin"`
	Record models.AvailabilityRecord `json:"record"`
}

func NewRedisRelay(client *redis.Client, origin string, logger *slog.Logger) *RedisRelay {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisRelay{client: client, origin: origin, logger: logger}
}

// ConnectRedis parses a redis:// URL and checks the connection.
func ConnectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func ChannelName(sessionID, participantID string) string {
	return channelPrefix + sessionID + ":" + participantID
}

func (r *RedisRelay) Publish(ctx context.Context, rec models.AvailabilityRecord) error {
	payload, err := r.encode(rec)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, ChannelName(rec.SessionID, rec.ParticipantID), payload).Err()
}

// Run replays records published by other instances until ctx is done.
func (r *RedisRelay) Run(ctx context.Context, apply func(models.AvailabilityRecord)) error {
	pubsub := r.client.PSubscribe(ctx, channelPrefix+"*")
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe to relay: %w", err)
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			rec, foreign, err := r.decode(msg.Channel, []byte(msg.Payload))
			if err != nil {
				r.logger.Warn("dropping malformed relay message", "channel", msg.Channel, "error", err)
				continue
			}
			if foreign {
				apply(rec)
			}
		}
	}
}

func (r *RedisRelay) encode(rec models.AvailabilityRecord) ([]byte, error) {
	payload, err := json.Marshal(relayEnvelope{Origin: r.origin, Record: rec})
	if err != nil {
		return nil, fmt.Errorf("encode relay message: %w", err)
	}
	return payload, nil
}

// decode reports foreign=false for messages this relay published itself.
func (r *RedisRelay) decode(channel string, payload []byte) (models.AvailabilityRecord, bool, error) {
	var env relayEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return models.AvailabilityRecord{}, false, err
	}

	want := ChannelName(env.Record.SessionID, env.Record.ParticipantID)
	if channel != want {
		return models.AvailabilityRecord{}, false, fmt.Errorf("record %s/%s published on %s",
			env.Record.SessionID, env.Record.ParticipantID, channel)
	}
	return env.Record, env.Origin != r.origin, nil
}
