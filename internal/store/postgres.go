package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// --- users ---

func (s *PostgresStore) CreateUser(ctx context.Context, user User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, display_name, email, password_hash, avatar_url)
		VALUES ($1, $2, $3, $4, $5)
	`, user.ID, user.DisplayName, user.Email, user.PasswordHash, user.AvatarURL)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, email, password_hash, coalesce(avatar_url, '')
		FROM users WHERE lower(email) = lower($1)
	`, email).Scan(&user.ID, &user.DisplayName, &user.Email, &user.PasswordHash, &user.AvatarURL)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, email, coalesce(avatar_url, '')
		FROM users WHERE id = $1
	`, userID).Scan(&user.ID, &user.DisplayName, &user.Email, &user.AvatarURL)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

// --- PRDs ---

func (s *PostgresStore) InsertPRD(ctx context.Context, prd PRD) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO prds (id, team_id, title, summary, status, visibility, created_by)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7)
	`, prd.ID, prd.TeamID, prd.Title, prd.Summary, prd.Status, prd.Visibility, prd.CreatedBy)
	if err != nil {
		return fmt.Errorf("insert prd: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetPRD(ctx context.Context, prdID string) (PRD, error) {
	var prd PRD
	err := s.db.QueryRowContext(ctx, `
		SELECT id, coalesce(team_id, ''), title, coalesce(summary, ''), status, visibility, created_by, created_at, updated_at
		FROM prds WHERE id = $1
	`, prdID).Scan(&prd.ID, &prd.TeamID, &prd.Title, &prd.Summary, &prd.Status, &prd.Visibility, &prd.CreatedBy, &prd.CreatedAt, &prd.UpdatedAt)
	if err != nil {
		return PRD{}, err
	}
	return prd, nil
}

// ListPRDsForUser returns PRDs the user created or can reach through a team
// membership, most recently updated first.
func (s *PostgresStore) ListPRDsForUser(ctx context.Context, userID string) ([]PRD, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT p.id, coalesce(p.team_id, ''), p.title, coalesce(p.summary, ''), p.status, p.visibility, p.created_by, p.created_at, p.updated_at
		FROM prds p
		LEFT JOIN team_members m ON m.team_id = p.team_id
		WHERE p.created_by = $1 OR m.user_id = $1
		ORDER BY p.updated_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list prds: %w", err)
	}
	defer rows.Close()
	return scanPRDs(rows)
}

// ListPublicPRDs returns the public gallery, most recently updated first.
func (s *PostgresStore) ListPublicPRDs(ctx context.Context, limit int) ([]PRD, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, coalesce(team_id, ''), title, coalesce(summary, ''), status, visibility, created_by, created_at, updated_at
		FROM prds WHERE visibility = 'public'
		ORDER BY updated_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list public prds: %w", err)
	}
	defer rows.Close()
	return scanPRDs(rows)
}

func scanPRDs(rows *sql.Rows) ([]PRD, error) {
	var prds []PRD
	for rows.Next() {
		var prd PRD
		if err := rows.Scan(&prd.ID, &prd.TeamID, &prd.Title, &prd.Summary, &prd.Status, &prd.Visibility, &prd.CreatedBy, &prd.CreatedAt, &prd.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan prd: %w", err)
		}
		prds = append(prds, prd)
	}
	return prds, rows.Err()
}

func (s *PostgresStore) TouchPRD(ctx context.Context, prdID string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE prds SET updated_at = NOW() WHERE id = $1`, prdID)
	return err
}

// DeletePRD removes the PRD row; its comments go with it via cascade.
func (s *PostgresStore) DeletePRD(ctx context.Context, prdID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM prds WHERE id = $1`, prdID)
	if err != nil {
		return fmt.Errorf("delete prd: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// --- access control ---

// CanAccess reports whether the user may open the PRD: its creator, a member
// of its team, or anyone when the PRD is public.
func (s *PostgresStore) CanAccess(ctx context.Context, userID, prdID string) (bool, error) {
	var allowed bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM prds p
			LEFT JOIN team_members m ON m.team_id = p.team_id AND m.user_id = $1
			WHERE p.id = $2 AND (p.visibility = 'public' OR p.created_by = $1 OR m.user_id IS NOT NULL)
		)
	`, userID, prdID).Scan(&allowed)
	if err != nil {
		return false, fmt.Errorf("check access: %w", err)
	}
	return allowed, nil
}

// RoleFor resolves the user's role on a PRD: the creator is an owner, team
// members carry their membership role, and everyone else is a viewer on
// public PRDs. Returns sql.ErrNoRows when the user has no access at all.
func (s *PostgresStore) RoleFor(ctx context.Context, userID, prdID string) (string, error) {
	var createdBy, visibility string
	var memberRole sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT p.created_by, p.visibility, m.role
		FROM prds p
		LEFT JOIN team_members m ON m.team_id = p.team_id AND m.user_id = $1
		WHERE p.id = $2
	`, userID, prdID).Scan(&createdBy, &visibility, &memberRole)
	if err != nil {
		return "", err
	}
	switch {
	case createdBy == userID:
		return "owner", nil
	case memberRole.Valid:
		return memberRole.String, nil
	case visibility == "public":
		return "viewer", nil
	}
	return "", sql.ErrNoRows
}

// --- teams ---

func (s *PostgresStore) InsertTeam(ctx context.Context, team Team) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO teams (id, name, created_by) VALUES ($1, $2, $3)
	`, team.ID, team.Name, team.CreatedBy)
	if err != nil {
		return fmt.Errorf("insert team: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetTeam(ctx context.Context, teamID string) (Team, error) {
	var team Team
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, created_by, created_at FROM teams WHERE id = $1
	`, teamID).Scan(&team.ID, &team.Name, &team.CreatedBy, &team.CreatedAt)
	if err != nil {
		return Team{}, fmt.Errorf("get team %s: %w", teamID, err)
	}
	return team, nil
}

func (s *PostgresStore) UpsertMembership(ctx context.Context, m Membership) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO team_members (team_id, user_id, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (team_id, user_id) DO UPDATE SET role = EXCLUDED.role
	`, m.TeamID, m.UserID, m.Role)
	if err != nil {
		return fmt.Errorf("upsert membership: %w", err)
	}
	return nil
}

// --- comments (write-through sink for the collaboration core) ---

func (s *PostgresStore) SaveComment(ctx context.Context, c Comment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO prd_comments (id, prd_id, user_id, section, position, content, resolved, resolved_by, parent_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), NULLIF($9, ''), $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			content = EXCLUDED.content,
			resolved = EXCLUDED.resolved,
			resolved_by = EXCLUDED.resolved_by,
			updated_at = EXCLUDED.updated_at
	`, c.ID, c.PRDID, c.UserID, c.Section, c.Position, c.Content, c.Resolved, c.ResolvedBy, c.ParentID, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save comment: %w", err)
	}
	return nil
}

func (s *PostgresStore) MarkCommentResolved(ctx context.Context, commentID, resolvedBy string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE prd_comments
		SET resolved = TRUE, resolved_by = $2, updated_at = NOW()
		WHERE id = $1 AND resolved = FALSE
	`, commentID, resolvedBy)
	if err != nil {
		return fmt.Errorf("resolve comment: %w", err)
	}
	// Idempotent: resolving an already-resolved comment is not an error.
	_, _ = result.RowsAffected()
	return nil
}

func (s *PostgresStore) ListComments(ctx context.Context, prdID string) ([]Comment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, prd_id, user_id, section, position, content, resolved, coalesce(resolved_by, ''), coalesce(parent_id, ''), created_at, updated_at
		FROM prd_comments WHERE prd_id = $1
		ORDER BY created_at ASC
	`, prdID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	var comments []Comment
	for rows.Next() {
		var c Comment
		if err := rows.Scan(&c.ID, &c.PRDID, &c.UserID, &c.Section, &c.Position, &c.Content, &c.Resolved, &c.ResolvedBy, &c.ParentID, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

// IsNotFound reports whether err means the row does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
