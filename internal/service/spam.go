package service

import (
	"context"
	"log"
	"strings"
	"time"

	"voxpop/internal/cache"
	"voxpop/internal/config"
	"voxpop/internal/model"
)

// SpamDetector flags repeated-identical answers, bot-speed timing and
// per-origin volume abuse. Any single signal is sufficient; a positive result
// short-circuits the pipeline before any model call.
type SpamDetector struct {
	counters           cache.OriginCounterCache
	minAvgSeconds      float64
	originSessionLimit int
	originFlaggedLimit int
}

func NewSpamDetector(counters cache.OriginCounterCache, cfg *config.Config) *SpamDetector {
	return &SpamDetector{
		counters:           counters,
		minAvgSeconds:      cfg.Pipeline.MinAvgSecondsBetween,
		originSessionLimit: cfg.Pipeline.OriginSessionLimit,
		originFlaggedLimit: cfg.Pipeline.OriginFlaggedLimit,
	}
}

// Check evaluates one inbound message. Counter reads are best-effort: a redis
// hiccup drops the volume signals for this turn rather than blocking anyone.
func (d *SpamDetector) Check(ctx context.Context, origin string, conv *model.Conversation, newMessage string) model.SpamResult {
	if d.isRepeatedAnswer(conv, newMessage) {
		return model.SpamResult{IsSpam: true, Reason: "repeated identical answers"}
	}

	if d.isBotSpeed(conv, time.Now()) {
		return model.SpamResult{IsSpam: true, Reason: "inhuman response timing"}
	}

	sessions, err := d.counters.Sessions(ctx, origin)
	if err != nil {
		log.Printf("spam: session counter read failed for %s: %v", origin, err)
	} else if sessions > int64(d.originSessionLimit) {
		return model.SpamResult{IsSpam: true, Reason: "origin session volume", ShouldBan: true}
	}

	flagged, err := d.counters.Flagged(ctx, origin)
	if err != nil {
		log.Printf("spam: flagged counter read failed for %s: %v", origin, err)
	} else if flagged > int64(d.originFlaggedLimit) {
		return model.SpamResult{IsSpam: true, Reason: "origin flagged-session volume", ShouldBan: true}
	}

	return model.SpamResult{}
}

// isRepeatedAnswer reports whether the new message already appears at least
// twice among the user's turns, i.e. this would be the third occurrence.
func (d *SpamDetector) isRepeatedAnswer(conv *model.Conversation, newMessage string) bool {
	normalized := normalizeMessage(newMessage)
	if normalized == "" {
		return false
	}

	count := 0
	for _, ex := range conv.UserExchanges() {
		if normalizeMessage(ex.Content) == normalized {
			count++
		}
	}
	return count >= 2
}

// isBotSpeed checks the average gap between the user's turns, counting the
// inbound message as the latest turn. Needs at least two gaps to judge.
func (d *SpamDetector) isBotSpeed(conv *model.Conversation, now time.Time) bool {
	users := conv.UserExchanges()
	if len(users) < 2 {
		return false
	}

	timestamps := make([]time.Time, 0, len(users)+1)
	for _, ex := range users {
		timestamps = append(timestamps, ex.Timestamp)
	}
	timestamps = append(timestamps, now)

	var total time.Duration
	gaps := 0
	for i := 1; i < len(timestamps); i++ {
		total += timestamps[i].Sub(timestamps[i-1])
		gaps++
	}
	avg := total.Seconds() / float64(gaps)
	return avg < d.minAvgSeconds
}

func normalizeMessage(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
