package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"recruitment-tracker-go/internal/apperr"
	"recruitment-tracker-go/internal/models"
)

// User methods

const userColumns = `id, username, password_hash, role, totp_secret, totp_enabled, created_at`

func scanUser(row scanner) (models.User, error) {
	var user models.User
	var totpSecret sql.NullString
	var createdAt int64
	if err := row.Scan(&user.ID, &user.Username, &user.PasswordHash, &user.Role, &totpSecret, &user.TOTPEnabled, &createdAt); err != nil {
		return models.User{}, err
	}
	user.TOTPSecret = totpSecret.String
	user.CreatedAt = fromMillis(createdAt)
	return user, nil
}

func (s *SQLStore) CreateUser(ctx context.Context, username, password, role string) (models.User, error) {
	if username == "" {
		return models.User{}, apperr.Validation("username is required")
	}
	if !models.ValidRole(role) {
		return models.User{}, apperr.Validation("unknown role " + role)
	}
	passwordHash, err := models.HashPassword(password)
	if err != nil {
		return models.User{}, err
	}

	user := models.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    time.Now().UTC().Truncate(time.Millisecond),
	}
	_, err = s.exec(ctx, "create user",
		`INSERT INTO users (id, username, password_hash, role, totp_enabled, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		user.ID, user.Username, user.PasswordHash, user.Role, false, toMillis(user.CreatedAt),
	)
	if err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (s *SQLStore) GetUser(ctx context.Context, id string) (models.User, error) {
	user, err := scanUser(s.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, notFound("user", id)
	}
	if err != nil {
		return models.User{}, classify("get user", err)
	}
	return user, nil
}

func (s *SQLStore) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	user, err := scanUser(s.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username))
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, notFound("user", username)
	}
	if err != nil {
		return models.User{}, classify("get user", err)
	}
	return user, nil
}

func (s *SQLStore) GetUsers(ctx context.Context) ([]models.User, error) {
	rows, err := s.query(ctx, "list users", `SELECT `+userColumns+` FROM users ORDER BY created_at DESC, username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, classify("scan user", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list users", err)
	}
	return users, nil
}

func (s *SQLStore) UpdateUser(ctx context.Context, id, username, role string) error {
	if !models.ValidRole(role) {
		return apperr.Validation("unknown role " + role)
	}
	res, err := s.exec(ctx, "update user",
		`UPDATE users SET username = ?, role = ? WHERE id = ?`,
		username, role, id,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("user", id)
	}
	return nil
}

func (s *SQLStore) UpdateUserPassword(ctx context.Context, id, passwordHash string) error {
	res, err := s.exec(ctx, "update password",
		`UPDATE users SET password_hash = ? WHERE id = ?`,
		passwordHash, id,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("user", id)
	}
	return nil
}

// DeleteUser removes the account together with its feature grants. Push
// subscriptions cascade.
func (s *SQLStore) DeleteUser(ctx context.Context, id string) error {
	return s.WithTx(ctx, func(tx Tx) error {
		t := tx.(*sqlTx)
		if _, err := t.exec(ctx, "delete user grants", `DELETE FROM access_grants WHERE user_id = ?`, id); err != nil {
			return err
		}
		res, err := t.exec(ctx, "delete user", `DELETE FROM users WHERE id = ?`, id)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return notFound("user", id)
		}
		return nil
	})
}

// 2FA methods

func (s *SQLStore) UpdateUser2FA(ctx context.Context, userID, totpSecret string, enabled bool) error {
	_, err := s.exec(ctx, "update 2fa",
		`UPDATE users SET totp_secret = ?, totp_enabled = ? WHERE id = ?`,
		nullString(totpSecret), enabled, userID,
	)
	return err
}

func (s *SQLStore) Disable2FA(ctx context.Context, userID string) error {
	_, err := s.exec(ctx, "disable 2fa",
		`UPDATE users SET totp_secret = NULL, totp_enabled = ? WHERE id = ?`,
		false, userID,
	)
	return err
}

// Push subscription methods

func (s *SQLStore) SavePushSubscription(ctx context.Context, userID, endpoint, p256dh, auth string) error {
	if endpoint == "" {
		return apperr.Validation("endpoint is required")
	}
	_, err := s.exec(ctx, "save push subscription",
		`INSERT INTO push_subscriptions (user_id, endpoint, p256dh, auth, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (endpoint) DO UPDATE SET user_id = excluded.user_id, p256dh = excluded.p256dh, auth = excluded.auth`,
		userID, endpoint, p256dh, auth, toMillis(time.Now()),
	)
	return err
}

func (s *SQLStore) GetPushSubscriptions(ctx context.Context, userID string) ([]models.PushSubscription, error) {
	rows, err := s.query(ctx, "list push subscriptions",
		`SELECT id, user_id, endpoint, p256dh, auth, created_at
		 FROM push_subscriptions WHERE user_id = ? ORDER BY id`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []models.PushSubscription
	for rows.Next() {
		var sub models.PushSubscription
		var createdAt int64
		if err := rows.Scan(&sub.ID, &sub.UserID, &sub.Endpoint, &sub.P256dh, &sub.Auth, &createdAt); err != nil {
			return nil, classify("scan push subscription", err)
		}
		sub.CreatedAt = fromMillis(createdAt)
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list push subscriptions", err)
	}
	return subs, nil
}

func (s *SQLStore) DeletePushSubscription(ctx context.Context, endpoint string) error {
	_, err := s.exec(ctx, "delete push subscription", `DELETE FROM push_subscriptions WHERE endpoint = ?`, endpoint)
	return err
}
