package probe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/scorebridge/internal/domain/model"
	"github.com/okian/scorebridge/pkg/logger"
)

var errSessionEnded = errors.New("session ended")

// session plays one game client over the websocket protocol.
type session struct {
	id   int
	cfg  *Config
	conn *websocket.Conn
	msgs chan model.Message
	done chan struct{}
	log  logger.Logger

	stats Stats
}

func dialSession(ctx context.Context, cfg *Config, id int) (*session, error) {
	wsURL, err := websocketURL(cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", wsURL, err)
	}
	s := &session{
		id:   id,
		cfg:  cfg,
		conn: conn,
		msgs: make(chan model.Message, 64),
		done: make(chan struct{}),
		log:  logger.Get().Named("probe").With(logger.Int("session", id)),
	}
	go s.read()
	return s, nil
}

func (s *session) read() {
	defer close(s.msgs)
	for {
		var msg model.Message
		if err := s.conn.ReadJSON(&msg); err != nil {
			return
		}
		select {
		case s.msgs <- msg:
		case <-s.done:
			return
		}
	}
}

func (s *session) close() {
	close(s.done)
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	_ = s.conn.Close()
}

// await returns the first message of type typ that satisfies match,
// counting leaderboard updates seen on the way.
func (s *session) await(ctx context.Context, match func(model.Message) bool, types ...model.MessageType) (model.Message, error) {
	timer := time.NewTimer(s.cfg.Timeout)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return model.Message{}, ctx.Err()
		case <-timer.C:
			return model.Message{}, fmt.Errorf("timed out waiting for %v", types)
		case msg, ok := <-s.msgs:
			if !ok {
				return model.Message{}, errSessionEnded
			}
			if msg.Type == model.MessageLeaderboard {
				s.stats.LeaderboardUpdates++
			}
			if s.cfg.Verbose {
				s.log.Debug(ctx, "message", logger.String("type", string(msg.Type)))
			}
			for _, t := range types {
				if msg.Type == t && (match == nil || match(msg)) {
					return msg, nil
				}
			}
		}
	}
}

// play submits cfg.Scores new scores, then updates each accepted one, and
// returns what the leaderboard should now hold.
func (s *session) play(ctx context.Context) ([]Submitted, error) {
	initMsg, err := s.await(ctx, nil, model.MessageInit)
	if err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}
	s.log.Info(ctx, "session started", logger.Uint32("first", initMsg.Flags.First))
	if _, err := s.await(ctx, nil, model.MessageLeaderboard); err != nil {
		return nil, fmt.Errorf("initial leaderboard: %w", err)
	}

	var accepted []Submitted
	for i := 0; i < s.cfg.Scores; i++ {
		name := fmt.Sprintf("probe-%d-%d", s.id, i)
		entry := model.ScoreEntry{"name": name, "score": float64(i)}
		if err := s.conn.WriteJSON(model.SubmitScoreMessage(model.SentinelKey, entry)); err != nil {
			return accepted, fmt.Errorf("submit: %w", err)
		}
		s.stats.ScoresSubmitted++

		msg, err := s.await(ctx, func(m model.Message) bool {
			return m.Entry.Entry["name"] == name
		}, model.MessageScoreAccepted, model.MessageScoreRejected)
		if err != nil {
			return accepted, fmt.Errorf("acknowledgement for %s: %w", name, err)
		}
		if msg.Type == model.MessageScoreRejected {
			s.stats.ScoresRejected++
			continue
		}
		s.stats.ScoresAccepted++
		accepted = append(accepted, Submitted{Key: msg.Entry.Key, Entry: entry})
	}

	// Updates to a key are applied after its creation, so they can follow
	// the acknowledgement directly.
	for i := range accepted {
		fields := model.ScoreEntry{"score": accepted[i].Entry["score"].(float64) + 100}
		if err := s.conn.WriteJSON(model.SubmitScoreMessage(accepted[i].Key, fields)); err != nil {
			return accepted, fmt.Errorf("update: %w", err)
		}
		accepted[i].Entry = accepted[i].Entry.Merge(fields)
		s.stats.ScoresUpdated++
	}
	return accepted, nil
}
