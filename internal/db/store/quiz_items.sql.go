package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const listQuizItemsByLevel = `
SELECT item_id, level, prompt, options, correct_index, explanation
FROM quiz_items
WHERE level = $1
ORDER BY random()
LIMIT $2
`

type ListQuizItemsByLevelParams struct {
	Level int16
	Limit int32
}

func (q *Queries) ListQuizItemsByLevel(ctx context.Context, arg ListQuizItemsByLevelParams) ([]QuizItem, error) {
	rows, err := q.db.Query(ctx, listQuizItemsByLevel, arg.Level, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []QuizItem
	for rows.Next() {
		var i QuizItem
		if err := rows.Scan(&i.ItemID, &i.Level, &i.Prompt, &i.Options, &i.CorrectIndex, &i.Explanation); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const insertQuizItem = `
INSERT INTO quiz_items (level, prompt, options, correct_index, explanation)
VALUES ($1, $2, $3, $4, $5)
RETURNING item_id, level, prompt, options, correct_index, explanation
`

type InsertQuizItemParams struct {
	Level        int16
	Prompt       string
	Options      []string
	CorrectIndex int32
	Explanation  pgtype.Text
}

func (q *Queries) InsertQuizItem(ctx context.Context, arg InsertQuizItemParams) (QuizItem, error) {
	row := q.db.QueryRow(ctx, insertQuizItem, arg.Level, arg.Prompt, arg.Options, arg.CorrectIndex, arg.Explanation)
	var i QuizItem
	err := row.Scan(&i.ItemID, &i.Level, &i.Prompt, &i.Options, &i.CorrectIndex, &i.Explanation)
	return i, err
}
