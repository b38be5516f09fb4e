package leaderboard

import "github.com/gokatarajesh/quiz-battle/pkg/http/ws"

func toWSEntries(entries []Entry) []ws.LeaderboardEntry {
	result := make([]ws.LeaderboardEntry, len(entries))
	for i, e := range entries {
		result[i] = ws.LeaderboardEntry{
			Rank:        i + 1,
			UserID:      e.UserID,
			DisplayName: e.DisplayName,
			Score:       e.Score,
			Wins:        e.Wins,
			Draws:       e.Draws,
			Games:       e.Games,
		}
	}
	return result
}
