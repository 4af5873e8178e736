package store

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/postboard/apiserver/types"
)

// UserRepository handles persistence for users.
type UserRepository struct {
	db *DB
}

func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, email, password_hash, phone_number, created_at`

func (r *UserRepository) GetByID(ctx context.Context, id int) (types.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	var user types.User
	if err := sqlx.GetContext(ctx, r.db.ext(ctx), &user, query, id); err != nil {
		return types.User{}, translateError(err)
	}
	return user, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	var user types.User
	if err := sqlx.GetContext(ctx, r.db.ext(ctx), &user, query, email); err != nil {
		return types.User{}, translateError(err)
	}
	return user, nil
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	const query = `
		INSERT INTO users (email, password_hash, phone_number)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`
	row := r.db.ext(ctx).QueryRowxContext(ctx, query, user.Email, user.PasswordHash, user.PhoneNumber)
	if err := row.Scan(&user.ID, &user.CreatedAt); err != nil {
		return types.User{}, translateError(err)
	}
	return user, nil
}

// Delete removes the user; posts and likes referencing it cascade.
func (r *UserRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM users WHERE id = $1`
	result, err := r.db.ext(ctx).ExecContext(ctx, query, id)
	if err != nil {
		return translateError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
