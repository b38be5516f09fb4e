package store

import "context"

const getUserByID = `
SELECT user_id, display_name, email, created_at
FROM users
WHERE user_id = $1
`

func (q *Queries) GetUserByID(ctx context.Context, userID string) (User, error) {
	row := q.db.QueryRow(ctx, getUserByID, userID)
	var u User
	err := row.Scan(&u.UserID, &u.DisplayName, &u.Email, &u.CreatedAt)
	return u, err
}
