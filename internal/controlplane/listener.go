// Package controlplane is an out-of-band command channel, carried over a
// Redis pub/sub channel, used to refresh language images and restart the
// process without going through the HTTP edge.
package controlplane

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"syscall"

	"github.com/akshayaggarwal99/runengine/internal/dockerengine"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Channel is the pub/sub channel identifier for the process-wide command bus.
const Channel = "run-api"

// Opcode identifies a control-plane command.
type Opcode int

const (
	// OpUpdateRunners (0) triggers self-restart: the process is terminated
	// and is expected to be respawned by a supervisor.
	OpUpdateRunners Opcode = 0
	// OpUpdateLanguage (1) forces an image refresh for one language.
	OpUpdateLanguage Opcode = 1
)

// command is the wire shape of a control-plane message.
type command struct {
	Op       Opcode `json:"op"`
	Language string `json:"language,omitempty"`
}

// Listener consumes commands from the run-api channel.
type Listener struct {
	rdb    *redis.Client
	client *dockerengine.Client
	sub    *redis.PubSub
}

// New builds a Listener against a Redis instance at host:port.
func New(host string, port int, client *dockerengine.Client) *Listener {
	rdb := redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("%s:%d", host, port),
	})
	return &Listener{rdb: rdb, client: client}
}

// Start subscribes to the run-api channel and begins dispatching commands in
// a background goroutine. Start must be called after the HTTP server begins
// accepting.
func (l *Listener) Start(ctx context.Context) error {
	l.sub = l.rdb.Subscribe(ctx, Channel)
	if _, err := l.sub.Receive(ctx); err != nil {
		return fmt.Errorf("controlplane: subscribe to %s: %w", Channel, err)
	}

	go l.loop(ctx)
	return nil
}

func (l *Listener) loop(ctx context.Context) {
	ch := l.sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			l.dispatch(ctx, msg.Payload)
		}
	}
}

func (l *Listener) dispatch(ctx context.Context, payload string) {
	var cmd command
	if err := json.Unmarshal([]byte(payload), &cmd); err != nil {
		log.Warn().Err(err).Str("payload", payload).Msg("control-plane: malformed command")
		return
	}

	switch cmd.Op {
	case OpUpdateRunners:
		log.Info().Msg("control-plane: UPDATE_RUNNERS received, restarting")
		if err := syscall.Kill(os.Getpid(), syscall.SIGTERM); err != nil {
			log.Error().Err(err).Msg("control-plane: failed to signal self")
		}
	case OpUpdateLanguage:
		log.Info().Str("language", cmd.Language).Msg("control-plane: UPDATE_LANGUAGE received")
		// Fire-and-forget on its own goroutine so a slow pull never blocks
		// the dispatch loop.
		go func() {
			image := dockerengine.ImageName(cmd.Language)
			if err := l.client.PullImage(ctx, image); err != nil {
				log.Error().Err(err).Str("image", image).Msg("control-plane: image pull failed")
			}
		}()
	default:
		log.Warn().Int("op", int(cmd.Op)).Msg("control-plane: unrecognized opcode")
	}
}

// Close unsubscribes and releases the Redis connection. Call during shutdown.
func (l *Listener) Close() error {
	if l.sub != nil {
		_ = l.sub.Close()
	}
	return l.rdb.Close()
}
