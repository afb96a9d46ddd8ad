package influx

import (
	"context"
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/stratsim/engine/internal/timeline"
)

// WritePlaybackStats ships one snapshot of the timeline manager's
// playback counters.
func (m *Manager) WritePlaybackStats(ctx context.Context, timelineName string, stats timeline.Stats) error {
	point := influxdb2_write.NewPointWithMeasurement("playback_stats").
		AddTag("timeline", timelineName).
		AddField("seeks", int64(stats.Seeks)).
		AddField("clamped_seeks", int64(stats.ClampedSeeks)).
		AddField("last_seek_ms", float64(stats.LastSeekDuration)/float64(time.Millisecond)).
		AddField("last_replay_span_ms", float64(stats.LastReplaySpan)/float64(time.Millisecond)).
		AddField("last_spawns", stats.LastSpawns).
		AddField("last_despawns", stats.LastDespawns).
		AddField("catch_up_pending", stats.CatchUpPending).
		SetTime(time.Now())
	return m.WritePoint(ctx, "playback", point)
}

// WriteSceneSize ships the live entity count.
func (m *Manager) WriteSceneSize(ctx context.Context, timelineName string, live int) error {
	point := influxdb2_write.NewPointWithMeasurement("scene").
		AddTag("timeline", timelineName).
		AddField("live_entities", live).
		SetTime(time.Now())
	return m.WritePoint(ctx, "engine_performance", point)
}
