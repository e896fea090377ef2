package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/totegamma/lostfound"
)

const channelPrefix = "lostfound:"

func Channel(office string) string {
	return channelPrefix + office
}

type SignalService struct {
	rdb *redis.Client
}

func NewSignalService(redisClient *redis.Client) *SignalService {
	return &SignalService{
		rdb: redisClient,
	}
}

func (s *SignalService) Publish(ctx context.Context, event lostfound.Event) error {

	jsonstr, err := json.Marshal(event)
	if err != nil {
		return err
	}

	err = s.rdb.Publish(ctx, Channel(event.Office), jsonstr).Err()
	if err != nil {
		return err
	}

	return nil
}

// Subscribe streams events of the given offices until ctx is done.
func (s *SignalService) Subscribe(ctx context.Context, offices []string) (<-chan lostfound.Event, error) {
	channels := make([]string, len(offices))
	for i, office := range offices {
		channels[i] = Channel(office)
	}

	pubsub := s.rdb.Subscribe(ctx, channels...)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, err
	}

	out := make(chan lostfound.Event)
	go func() {
		defer close(out)
		defer pubsub.Close()

		messages := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				event, err := decodeEvent(msg.Payload)
				if err != nil {
					slog.WarnContext(ctx, "dropping malformed event", slog.String("error", err.Error()), slog.String("module", "signal"))
					continue
				}
				select {
				case out <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

func decodeEvent(payload string) (lostfound.Event, error) {
	var event lostfound.Event
	err := json.Unmarshal([]byte(payload), &event)
	return event, err
}
