package store

import (
	"context"
	"time"
)

const insertLeaderboardSnapshot = `
INSERT INTO leaderboard_snapshots (time_window, generated_at, entries, source_hash)
VALUES ($1, $2, $3, $4)
RETURNING snapshot_id, time_window, generated_at, entries, source_hash
`

type InsertLeaderboardSnapshotParams struct {
	TimeWindow  string
	GeneratedAt time.Time
	Entries     []byte
	SourceHash  string
}

func (q *Queries) InsertLeaderboardSnapshot(ctx context.Context, arg InsertLeaderboardSnapshotParams) (LeaderboardSnapshot, error) {
	row := q.db.QueryRow(ctx, insertLeaderboardSnapshot, arg.TimeWindow, arg.GeneratedAt, arg.Entries, arg.SourceHash)
	var s LeaderboardSnapshot
	err := row.Scan(&s.SnapshotID, &s.TimeWindow, &s.GeneratedAt, &s.Entries, &s.SourceHash)
	return s, err
}

const getLatestLeaderboardSnapshot = `
SELECT snapshot_id, time_window, generated_at, entries, source_hash
FROM leaderboard_snapshots
WHERE time_window = $1
ORDER BY generated_at DESC, snapshot_id DESC
LIMIT 1
`

func (q *Queries) GetLatestLeaderboardSnapshot(ctx context.Context, timeWindow string) (LeaderboardSnapshot, error) {
	row := q.db.QueryRow(ctx, getLatestLeaderboardSnapshot, timeWindow)
	var s LeaderboardSnapshot
	err := row.Scan(&s.SnapshotID, &s.TimeWindow, &s.GeneratedAt, &s.Entries, &s.SourceHash)
	return s, err
}
