package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/vibecampus/vibehub/pkg/logging"
)

// PGListener turns Postgres NOTIFY payloads written by row triggers
// into changes
type PGListener struct {
	url     string
	channel string
	logger  *zap.Logger
}

// NewPGListener creates a listener for channel on the database at url
func NewPGListener(url, channel string) *PGListener {
	return &PGListener{
		url:     url,
		channel: channel,
		logger:  logging.GetLogger().With(zap.String("component", "realtime-pg"), zap.String("channel", channel)),
	}
}

// Listen blocks, publishing every notification to pub, until ctx is
// cancelled or the connection fails
func (l *PGListener) Listen(ctx context.Context, pub Publisher) error {
	conn, err := pgx.Connect(ctx, l.url)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{l.channel}.Sanitize()); err != nil {
		return fmt.Errorf("failed to listen on %s: %w", l.channel, err)
	}
	l.logger.Info("Listening for row changes")

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		ch, err := DecodeNotification(n.Payload)
		if err != nil {
			l.logger.Warn("Dropping malformed notification", zap.Error(err))
			continue
		}
		if err := pub.Publish(ctx, ch); err != nil {
			return fmt.Errorf("failed to republish change: %w", err)
		}
	}
}

// DecodeNotification parses a trigger payload of the form
// {"table":..., "type":"INSERT|UPDATE|DELETE", "new":{...}, "old":{...}, "at":...}
func DecodeNotification(payload string) (Change, error) {
	var ch Change
	if err := json.Unmarshal([]byte(payload), &ch); err != nil {
		return Change{}, fmt.Errorf("invalid change payload: %w", err)
	}
	if ch.Table == "" {
		return Change{}, fmt.Errorf("change payload has no table")
	}
	switch ch.Type {
	case EventInsert, EventUpdate, EventDelete:
	default:
		return Change{}, fmt.Errorf("unknown change type %q", ch.Type)
	}
	return ch, nil
}
