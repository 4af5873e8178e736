package store

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/postboard/apiserver/types"
)

// PostRepository handles persistence for posts and the like-count views.
type PostRepository struct {
	db *DB
}

func NewPostRepository(db *DB) *PostRepository {
	return &PostRepository{db: db}
}

const postColumns = `id, title, content, published, user_id, created_at, updated_at`

const postViewSelect = `
	SELECT p.id, p.title, p.content, p.published, p.user_id, p.created_at, p.updated_at,
	       u.id AS owner_id, u.email AS owner_email, u.created_at AS owner_created_at,
	       COUNT(l.post_id) AS likes
	FROM posts p
	JOIN users u ON u.id = p.user_id
	LEFT JOIN likes l ON l.post_id = p.id`

type postViewRow struct {
	types.Post
	OwnerID        int       `db:"owner_id"`
	OwnerEmail     string    `db:"owner_email"`
	OwnerCreatedAt time.Time `db:"owner_created_at"`
	Likes          int       `db:"likes"`
}

func (row postViewRow) view() types.PostView {
	owner := types.Owner{ID: row.OwnerID, Email: row.OwnerEmail, CreatedAt: row.OwnerCreatedAt}
	return types.PostView{
		Post:  types.PostResponse{Post: row.Post, Owner: owner},
		Likes: row.Likes,
	}
}

func (r *PostRepository) Get(ctx context.Context, id int) (types.Post, error) {
	const query = `SELECT ` + postColumns + ` FROM posts WHERE id = $1`
	var post types.Post
	if err := sqlx.GetContext(ctx, r.db.ext(ctx), &post, query, id); err != nil {
		return types.Post{}, translateError(err)
	}
	return post, nil
}

// GetForUpdate reads the post and locks its row until the surrounding
// transaction ends.
func (r *PostRepository) GetForUpdate(ctx context.Context, id int) (types.Post, error) {
	const query = `SELECT ` + postColumns + ` FROM posts WHERE id = $1 FOR UPDATE`
	var post types.Post
	if err := sqlx.GetContext(ctx, r.db.ext(ctx), &post, query, id); err != nil {
		return types.Post{}, translateError(err)
	}
	return post, nil
}

// View returns the post with its owner and like count.
func (r *PostRepository) View(ctx context.Context, id int) (types.PostView, error) {
	const query = postViewSelect + `
		WHERE p.id = $1
		GROUP BY p.id, u.id`
	var row postViewRow
	if err := sqlx.GetContext(ctx, r.db.ext(ctx), &row, query, id); err != nil {
		return types.PostView{}, translateError(err)
	}
	return row.view(), nil
}

// List returns posts whose title contains params.Search (case-insensitive),
// ordered by id.
func (r *PostRepository) List(ctx context.Context, params types.PostListParams) ([]types.PostView, error) {
	const query = postViewSelect + `
		WHERE strpos(lower(p.title), lower($1)) > 0
		GROUP BY p.id, u.id
		ORDER BY p.id
		LIMIT $2 OFFSET $3`
	var rows []postViewRow
	if err := sqlx.SelectContext(ctx, r.db.ext(ctx), &rows, query, params.Search, params.Limit, params.Offset); err != nil {
		return nil, translateError(err)
	}

	views := make([]types.PostView, 0, len(rows))
	for _, row := range rows {
		views = append(views, row.view())
	}
	return views, nil
}

func (r *PostRepository) Create(ctx context.Context, post types.Post) (types.Post, error) {
	const query = `
		INSERT INTO posts (title, content, published, user_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`
	row := r.db.ext(ctx).QueryRowxContext(ctx, query, post.Title, post.Content, post.Published, post.UserID)
	if err := row.Scan(&post.ID, &post.CreatedAt, &post.UpdatedAt); err != nil {
		return types.Post{}, translateError(err)
	}
	return post, nil
}

// Update overwrites the editable fields and refreshes updated_at.
func (r *PostRepository) Update(ctx context.Context, post types.Post) (types.Post, error) {
	const query = `
		UPDATE posts
		SET title = $1,
			content = $2,
			published = $3,
			updated_at = NOW()
		WHERE id = $4
		RETURNING ` + postColumns
	var updated types.Post
	err := sqlx.GetContext(ctx, r.db.ext(ctx), &updated, query, post.Title, post.Content, post.Published, post.ID)
	if err != nil {
		return types.Post{}, translateError(err)
	}
	return updated, nil
}

// Delete removes the post; its likes cascade.
func (r *PostRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM posts WHERE id = $1`
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
