package service

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/yuilabs/minami/internal/domain"
	"github.com/yuilabs/minami/internal/line"
	"github.com/yuilabs/minami/internal/metrics"
)

// Pusher delivers messages outside a reply.
type Pusher interface {
	Push(ctx context.Context, userID string, msgs []domain.OutgoingMessage) error
}

// MessageGroup is a set of lines suitable for one time of day.
type MessageGroup struct {
	Name     string
	Messages []string
}

var (
	groupMorning = MessageGroup{Name: "A", Messages: []string{
		"おはよう！今日もがんばろ！",
		"朝ごはん食べた？",
		"連絡ください",
		"何してる？",
		"おは",
		"早起きできた？",
	}}
	groupNoon = MessageGroup{Name: "B", Messages: []string{
		"お昼ごはんちゃんと食べてる？",
		"お昼休みにLINEしたくなったよ〜",
		"一緒にランチしたいな〜",
		"何にしてる？",
		"ちょっとだけ話そ？",
		"たまには連絡してよ",
	}}
	groupAfternoon = MessageGroup{Name: "C", Messages: []string{
		"あー疲れた",
		"少し休憩しよ？",
		"今日夜何する？",
		"ひと息つこうよ〜",
		"ちょっとLINEしたくなっただけ♪",
		"お話しようよ",
	}}
	groupEvening = MessageGroup{Name: "D", Messages: []string{
		"おつかれさま〜",
		"帰り道、気をつけてね！",
		"夜ごはん何食べる？",
		"今日もよくがんばったね",
		"おっつー",
		"少しだけ話そっか？",
	}}
	groupNight = MessageGroup{Name: "E", Messages: []string{
		"寝てる？",
		"今日はどんな一日だった？",
		"何してた？",
		"寝る前にちょっとだけLINE♪",
		"眠い～",
		"おやすみ〜また明日ね！",
	}}
)

// GroupFor returns the message group for the hour of t, or false between
// 02:00 and 09:00 when nothing is sent.
func GroupFor(t time.Time) (MessageGroup, bool) {
	switch h := t.Hour(); {
	case h >= 9 && h < 11:
		return groupMorning, true
	case h >= 11 && h < 15:
		return groupNoon, true
	case h >= 15 && h < 18:
		return groupAfternoon, true
	case h >= 18 && h < 21:
		return groupEvening, true
	case h >= 21 || h < 2:
		return groupNight, true
	}
	return MessageGroup{}, false
}

// BroadcastReport summarizes one broadcast run.
type BroadcastReport struct {
	Group       string
	Message     string
	Targets     int
	Sent        int
	Failed      int
	Deactivated int64
}

// BroadcastService pushes a time-of-day message to every active user.
type BroadcastService interface {
	Run(ctx context.Context) (BroadcastReport, error)
}

type broadcastService struct {
	targets  TargetStore
	pusher   Pusher
	location *time.Location
	now      func() time.Time
	pick     func(n int) int
	logger   *slog.Logger
}

// NewBroadcastService creates a BroadcastService evaluating hours in loc.
func NewBroadcastService(targets TargetStore, pusher Pusher, loc *time.Location, logger *slog.Logger) BroadcastService {
	return &broadcastService{
		targets:  targets,
		pusher:   pusher,
		location: loc,
		now:      time.Now,
		pick:     rand.IntN,
		logger:   logger,
	}
}

func (s *broadcastService) Run(ctx context.Context) (BroadcastReport, error) {
	now := s.now().In(s.location)
	group, ok := GroupFor(now)
	if !ok {
		s.logger.Info("outside broadcast hours", "local_time", now.Format("15:04"))
		return BroadcastReport{}, nil
	}

	report := BroadcastReport{
		Group:   group.Name,
		Message: group.Messages[s.pick(len(group.Messages))],
	}

	users, err := s.targets.ListActiveTargets(ctx)
	if err != nil {
		return report, domain.Unavailable(err, "broadcast.run", "failed to list targets")
	}
	report.Targets = len(users)

	var unreachable []string
	msgs := []domain.OutgoingMessage{domain.TextMessage(report.Message)}
	for _, userID := range users {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}

		err := s.pusher.Push(ctx, userID, msgs)
		switch {
		case err == nil:
			report.Sent++
			metrics.BroadcastPushes.WithLabelValues("sent").Inc()
		case errors.Is(err, line.ErrUnreachable):
			report.Failed++
			unreachable = append(unreachable, userID)
			metrics.BroadcastPushes.WithLabelValues("unreachable").Inc()
			s.logger.Warn("broadcast target unreachable", "user_id", userID, "error", err)
		default:
			report.Failed++
			metrics.BroadcastPushes.WithLabelValues("error").Inc()
			s.logger.Error("broadcast push failed", "user_id", userID, "error", err)
		}
	}

	if len(unreachable) > 0 {
		n, err := s.targets.DeactivateTargets(ctx, unreachable)
		if err != nil {
			s.logger.Error("failed to deactivate unreachable targets", "count", len(unreachable), "error", err)
		}
		report.Deactivated = n
	}

	s.logger.Info("broadcast finished",
		"group", report.Group,
		"targets", report.Targets,
		"sent", report.Sent,
		"failed", report.Failed,
		"deactivated", report.Deactivated,
	)
	return report, nil
}
