package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"prdhub/api/internal/util"
)

// TestAccessControlAndCommentSink exercises the real access-control query and
// the comment write-through sink against a live Postgres. Skipped unless a
// test database is reachable.
func TestAccessControlAndCommentSink(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	databaseURL := getTestDatabaseURL(t)
	db, err := Open(ctx, databaseURL)
	if err != nil {
		t.Skipf("test database not reachable: %v", err)
	}
	defer db.Close()

	if err := ApplyMigrations(ctx, db, filepath.Join("..", "..", "db", "migrations")); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	s := NewPostgresStore(db)
	suffix := util.NewID("")

	owner := User{ID: "usr_owner_" + suffix, DisplayName: "Owner", Email: "owner-" + suffix + "@example.com", PasswordHash: "x"}
	member := User{ID: "usr_member_" + suffix, DisplayName: "Member", Email: "member-" + suffix + "@example.com", PasswordHash: "x"}
	outsider := User{ID: "usr_out_" + suffix, DisplayName: "Outsider", Email: "out-" + suffix + "@example.com", PasswordHash: "x"}
	for _, u := range []User{owner, member, outsider} {
		if err := s.CreateUser(ctx, u); err != nil {
			t.Fatalf("create user: %v", err)
		}
	}

	team := Team{ID: "team_" + suffix, Name: "Platform", CreatedBy: owner.ID}
	if err := s.InsertTeam(ctx, team); err != nil {
		t.Fatalf("insert team: %v", err)
	}
	if err := s.UpsertMembership(ctx, Membership{TeamID: team.ID, UserID: member.ID, Role: "editor"}); err != nil {
		t.Fatalf("upsert membership: %v", err)
	}

	prd := PRD{ID: "prd_" + suffix, TeamID: team.ID, Title: "Checkout v2", Status: "draft", Visibility: "private", CreatedBy: owner.ID}
	if err := s.InsertPRD(ctx, prd); err != nil {
		t.Fatalf("insert prd: %v", err)
	}

	cases := []struct {
		userID string
		want   bool
	}{
		{owner.ID, true},
		{member.ID, true},
		{outsider.ID, false},
	}
	for _, tc := range cases {
		got, err := s.CanAccess(ctx, tc.userID, prd.ID)
		if err != nil {
			t.Fatalf("CanAccess(%s) error = %v", tc.userID, err)
		}
		if got != tc.want {
			t.Fatalf("CanAccess(%s) = %v, want %v", tc.userID, got, tc.want)
		}
	}

	if _, err := s.RoleFor(ctx, outsider.ID, prd.ID); err == nil {
		t.Fatal("expected RoleFor to fail for outsider on private prd")
	}
	role, err := s.RoleFor(ctx, owner.ID, prd.ID)
	if err != nil || role != "owner" {
		t.Fatalf("RoleFor(owner) = %q, %v", role, err)
	}

	now := time.Now().UTC()
	comment := Comment{
		ID: "cmt_" + suffix, PRDID: prd.ID, UserID: member.ID,
		Section: "overview", Position: 12, Content: "clarify this",
		CreatedAt: now, UpdatedAt: now,
	}
	if err := s.SaveComment(ctx, comment); err != nil {
		t.Fatalf("save comment: %v", err)
	}
	if err := s.MarkCommentResolved(ctx, comment.ID, owner.ID); err != nil {
		t.Fatalf("resolve comment: %v", err)
	}
	// second resolve is a no-op, not an error
	if err := s.MarkCommentResolved(ctx, comment.ID, outsider.ID); err != nil {
		t.Fatalf("second resolve: %v", err)
	}

	comments, err := s.ListComments(ctx, prd.ID)
	if err != nil {
		t.Fatalf("list comments: %v", err)
	}
	if len(comments) != 1 {
		t.Fatalf("expected 1 comment, got %d", len(comments))
	}
	if !comments[0].Resolved || comments[0].ResolvedBy != owner.ID {
		t.Fatalf("unexpected resolution state: %+v", comments[0])
	}
}

func getTestDatabaseURL(t *testing.T) string {
	t.Helper()

	if url := os.Getenv("TEST_DATABASE_URL"); url != "" {
		return url
	}

	host := getenvDefault("POSTGRES_HOST", "localhost")
	port := getenvDefault("POSTGRES_PORT", "5432")
	user := getenvDefault("POSTGRES_USER", "prdhub")
	password := getenvDefault("POSTGRES_PASSWORD", "prdhub")
	dbname := getenvDefault("POSTGRES_DB", "prdhub_test")
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", user, password, host, port, dbname)
}

func getenvDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
