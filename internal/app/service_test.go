package app

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"prdhub/api/internal/authpw"
	"prdhub/api/internal/collab"
	"prdhub/api/internal/config"
	"prdhub/api/internal/export"
	"prdhub/api/internal/prdgit"
	"prdhub/api/internal/store"
)

type fakeStore struct {
	pingFn                func(context.Context) error
	getUserByIDFn         func(context.Context, string) (store.User, error)
	getUserByEmailFn      func(context.Context, string) (store.User, error)
	createUserFn          func(context.Context, store.User) error
	insertPRDFn           func(context.Context, store.PRD) error
	getPRDFn              func(context.Context, string) (store.PRD, error)
	listPRDsForUserFn     func(context.Context, string) ([]store.PRD, error)
	listPublicPRDsFn      func(context.Context, int) ([]store.PRD, error)
	touchPRDFn            func(context.Context, string) error
	deletePRDFn           func(context.Context, string) error
	canAccessFn           func(context.Context, string, string) (bool, error)
	roleForFn             func(context.Context, string, string) (string, error)
	insertTeamFn          func(context.Context, store.Team) error
	getTeamFn             func(context.Context, string) (store.Team, error)
	upsertMembershipFn    func(context.Context, store.Membership) error
	saveCommentFn         func(context.Context, store.Comment) error
	markCommentResolvedFn func(context.Context, string, string) error
	listCommentsFn        func(context.Context, string) ([]store.Comment, error)
}

func (f *fakeStore) Ping(ctx context.Context) error {
	if f.pingFn != nil {
		return f.pingFn(ctx)
	}
	return nil
}

func (f *fakeStore) GetUserByID(ctx context.Context, id string) (store.User, error) {
	if f.getUserByIDFn != nil {
		return f.getUserByIDFn(ctx, id)
	}
	return store.User{}, sql.ErrNoRows
}

func (f *fakeStore) GetUserByEmail(ctx context.Context, email string) (store.User, error) {
	if f.getUserByEmailFn != nil {
		return f.getUserByEmailFn(ctx, email)
	}
	return store.User{}, sql.ErrNoRows
}

func (f *fakeStore) CreateUser(ctx context.Context, u store.User) error {
	if f.createUserFn != nil {
		return f.createUserFn(ctx, u)
	}
	return nil
}

func (f *fakeStore) InsertPRD(ctx context.Context, p store.PRD) error {
	if f.insertPRDFn != nil {
		return f.insertPRDFn(ctx, p)
	}
	return nil
}

func (f *fakeStore) GetPRD(ctx context.Context, id string) (store.PRD, error) {
	if f.getPRDFn != nil {
		return f.getPRDFn(ctx, id)
	}
	return store.PRD{}, sql.ErrNoRows
}

func (f *fakeStore) ListPRDsForUser(ctx context.Context, userID string) ([]store.PRD, error) {
	if f.listPRDsForUserFn != nil {
		return f.listPRDsForUserFn(ctx, userID)
	}
	return nil, nil
}

func (f *fakeStore) ListPublicPRDs(ctx context.Context, limit int) ([]store.PRD, error) {
	if f.listPublicPRDsFn != nil {
		return f.listPublicPRDsFn(ctx, limit)
	}
	return nil, nil
}

func (f *fakeStore) TouchPRD(ctx context.Context, id string) error {
	if f.touchPRDFn != nil {
		return f.touchPRDFn(ctx, id)
	}
	return nil
}

func (f *fakeStore) DeletePRD(ctx context.Context, id string) error {
	if f.deletePRDFn != nil {
		return f.deletePRDFn(ctx, id)
	}
	return nil
}

func (f *fakeStore) CanAccess(ctx context.Context, userID, prdID string) (bool, error) {
	if f.canAccessFn != nil {
		return f.canAccessFn(ctx, userID, prdID)
	}
	return false, nil
}

func (f *fakeStore) RoleFor(ctx context.Context, userID, prdID string) (string, error) {
	if f.roleForFn != nil {
		return f.roleForFn(ctx, userID, prdID)
	}
	return "", sql.ErrNoRows
}

func (f *fakeStore) InsertTeam(ctx context.Context, t store.Team) error {
	if f.insertTeamFn != nil {
		return f.insertTeamFn(ctx, t)
	}
	return nil
}

func (f *fakeStore) GetTeam(ctx context.Context, id string) (store.Team, error) {
	if f.getTeamFn != nil {
		return f.getTeamFn(ctx, id)
	}
	return store.Team{}, sql.ErrNoRows
}

func (f *fakeStore) UpsertMembership(ctx context.Context, m store.Membership) error {
	if f.upsertMembershipFn != nil {
		return f.upsertMembershipFn(ctx, m)
	}
	return nil
}

func (f *fakeStore) SaveComment(ctx context.Context, c store.Comment) error {
	if f.saveCommentFn != nil {
		return f.saveCommentFn(ctx, c)
	}
	return nil
}

func (f *fakeStore) MarkCommentResolved(ctx context.Context, commentID, resolvedBy string) error {
	if f.markCommentResolvedFn != nil {
		return f.markCommentResolvedFn(ctx, commentID, resolvedBy)
	}
	return nil
}

func (f *fakeStore) ListComments(ctx context.Context, prdID string) ([]store.Comment, error) {
	if f.listCommentsFn != nil {
		return f.listCommentsFn(ctx, prdID)
	}
	return nil, nil
}

type fakeGit struct {
	ensureRepoFn func(string, prdgit.Content, string) error
	saveFn       func(string, prdgit.Content, string, string) (prdgit.CommitInfo, error)
	headFn       func(string) (prdgit.Content, prdgit.CommitInfo, error)
	contentAtFn  func(string, string) (prdgit.Content, error)
	historyFn    func(string, int) ([]prdgit.CommitInfo, error)
	removeFn     func(string) error
}

func (f *fakeGit) EnsureRepo(id string, initial prdgit.Content, author string) error {
	if f.ensureRepoFn != nil {
		return f.ensureRepoFn(id, initial, author)
	}
	return nil
}

func (f *fakeGit) Save(id string, content prdgit.Content, author, message string) (prdgit.CommitInfo, error) {
	if f.saveFn != nil {
		return f.saveFn(id, content, author, message)
	}
	return prdgit.CommitInfo{Hash: "abc1234"}, nil
}

func (f *fakeGit) Head(id string) (prdgit.Content, prdgit.CommitInfo, error) {
	if f.headFn != nil {
		return f.headFn(id)
	}
	return prdgit.Content{}, prdgit.CommitInfo{Hash: "abc1234"}, nil
}

func (f *fakeGit) ContentAt(id, hash string) (prdgit.Content, error) {
	if f.contentAtFn != nil {
		return f.contentAtFn(id, hash)
	}
	return prdgit.Content{}, nil
}

func (f *fakeGit) History(id string, limit int) ([]prdgit.CommitInfo, error) {
	if f.historyFn != nil {
		return f.historyFn(id, limit)
	}
	return nil, nil
}

func (f *fakeGit) Remove(id string) error {
	if f.removeFn != nil {
		return f.removeFn(id)
	}
	return nil
}

func newTestService(fs *fakeStore, fg *fakeGit) *Service {
	s := &Service{
		cfg: config.Config{
			JWTSecret: "test-secret",
			AccessTTL: time.Hour,
		},
		store: fs,
		git:   fg,
	}
	s.authpw = authpw.NewService(fs)
	s.export = export.NewService(&exportData{s: s})
	s.coord = collab.NewCoordinator(&collabAccess{s: s}, nil, &collabSink{s: s})
	return s
}

func testSession() Session {
	return Session{UserID: "usr_1", UserName: "Avery"}
}

func TestCreatePRDValidation(t *testing.T) {
	svc := newTestService(&fakeStore{}, &fakeGit{})

	_, err := svc.CreatePRD(context.Background(), testSession(), CreatePRDInput{TeamID: "team_1"})
	assertDomainCode(t, err, "VALIDATION_ERROR")

	_, err = svc.CreatePRD(context.Background(), testSession(), CreatePRDInput{Title: "x"})
	assertDomainCode(t, err, "VALIDATION_ERROR")

	// a team id that matches no team is a validation failure, not a 404
	_, err = svc.CreatePRD(context.Background(), testSession(), CreatePRDInput{Title: "x", TeamID: "team_missing"})
	assertDomainCode(t, err, "VALIDATION_ERROR")

	// unknown team is checked before visibility, so wire a team in
	fs := &fakeStore{getTeamFn: func(context.Context, string) (store.Team, error) {
		return store.Team{ID: "team_1"}, nil
	}}
	svc = newTestService(fs, &fakeGit{})
	_, err = svc.CreatePRD(context.Background(), testSession(), CreatePRDInput{
		Title: "x", TeamID: "team_1", Visibility: "secret",
	})
	assertDomainCode(t, err, "VALIDATION_ERROR")
}

func TestCreatePRDSeedsRepo(t *testing.T) {
	var inserted store.PRD
	var repoID string
	var initial prdgit.Content
	fs := &fakeStore{
		getTeamFn: func(context.Context, string) (store.Team, error) {
			return store.Team{ID: "team_1"}, nil
		},
		insertPRDFn: func(_ context.Context, p store.PRD) error {
			inserted = p
			return nil
		},
	}
	fg := &fakeGit{ensureRepoFn: func(id string, content prdgit.Content, _ string) error {
		repoID = id
		initial = content
		return nil
	}}
	svc := newTestService(fs, fg)

	prd, err := svc.CreatePRD(context.Background(), testSession(), CreatePRDInput{
		Title: "  Checkout revamp  ", TeamID: "team_1",
	})
	if err != nil {
		t.Fatalf("CreatePRD() error = %v", err)
	}
	if prd.Title != "Checkout revamp" || prd.Status != "draft" || prd.Visibility != "team" {
		t.Fatalf("prd = %+v", prd)
	}
	if inserted.ID != prd.ID || repoID != prd.ID {
		t.Fatalf("inserted id %s, repo id %s, want %s", inserted.ID, repoID, prd.ID)
	}
	if len(initial.Sections) != len(defaultSections) {
		t.Fatalf("initial sections = %+v", initial.Sections)
	}
}

func TestGetPRDDeniedWithoutAccess(t *testing.T) {
	svc := newTestService(&fakeStore{}, &fakeGit{})
	_, err := svc.GetPRD(context.Background(), testSession(), "prd_1")
	assertDomainCode(t, err, "FORBIDDEN")
}

func TestPutContentRequiresWriteRole(t *testing.T) {
	fs := &fakeStore{
		roleForFn: func(context.Context, string, string) (string, error) {
			return "viewer", nil
		},
	}
	svc := newTestService(fs, &fakeGit{})
	_, err := svc.PutContent(context.Background(), testSession(), "prd_1", prdgit.Content{Title: "x"}, "")
	assertDomainCode(t, err, "FORBIDDEN")
}

func TestPutContentSavesAndTouches(t *testing.T) {
	touched := false
	fs := &fakeStore{
		roleForFn: func(context.Context, string, string) (string, error) {
			return "editor", nil
		},
		touchPRDFn: func(context.Context, string) error {
			touched = true
			return nil
		},
		getPRDFn: func(_ context.Context, id string) (store.PRD, error) {
			return store.PRD{ID: id}, nil
		},
	}
	svc := newTestService(fs, &fakeGit{})

	commit, err := svc.PutContent(context.Background(), testSession(), "prd_1", prdgit.Content{Title: "x"}, "edit")
	if err != nil {
		t.Fatalf("PutContent() error = %v", err)
	}
	if commit.Hash == "" {
		t.Fatal("expected a commit")
	}
	if !touched {
		t.Fatal("updated_at not touched")
	}
}

func TestDeletePRDRequiresManageRole(t *testing.T) {
	fs := &fakeStore{
		roleForFn: func(context.Context, string, string) (string, error) {
			return "editor", nil
		},
	}
	svc := newTestService(fs, &fakeGit{})
	err := svc.DeletePRD(context.Background(), testSession(), "prd_1")
	assertDomainCode(t, err, "FORBIDDEN")
}

func TestDeletePRDRemovesRowAndRepo(t *testing.T) {
	var deleted, removed string
	fs := &fakeStore{
		roleForFn: func(context.Context, string, string) (string, error) {
			return "owner", nil
		},
		deletePRDFn: func(_ context.Context, id string) error {
			deleted = id
			return nil
		},
	}
	fg := &fakeGit{removeFn: func(id string) error {
		removed = id
		return nil
	}}
	svc := newTestService(fs, fg)

	if err := svc.DeletePRD(context.Background(), testSession(), "prd_1"); err != nil {
		t.Fatalf("DeletePRD() error = %v", err)
	}
	if deleted != "prd_1" || removed != "prd_1" {
		t.Fatalf("deleted = %q, removed = %q", deleted, removed)
	}
}

func TestSessionRoundTrip(t *testing.T) {
	fs := &fakeStore{
		getUserByIDFn: func(_ context.Context, id string) (store.User, error) {
			return store.User{ID: id, DisplayName: "Avery"}, nil
		},
	}
	svc := newTestService(fs, &fakeGit{})

	sess, err := svc.CreateSession(store.User{ID: "usr_1", DisplayName: "Avery"})
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	parsed, err := svc.SessionFromToken(context.Background(), sess.Token)
	if err != nil {
		t.Fatalf("SessionFromToken() error = %v", err)
	}
	if parsed.UserID != "usr_1" || parsed.UserName != "Avery" {
		t.Fatalf("parsed session = %+v", parsed)
	}
}

func TestCollabSinkPersistsComments(t *testing.T) {
	var saved store.Comment
	fs := &fakeStore{
		saveCommentFn: func(_ context.Context, c store.Comment) error {
			saved = c
			return nil
		},
	}
	svc := newTestService(fs, &fakeGit{})

	sink := &collabSink{s: svc}
	err := sink.SaveComment(context.Background(), collab.Comment{
		ID: "cmt_1", DocumentID: "prd_1", UserID: "usr_1",
		Section: "overview", Position: 3, Content: "hm",
	})
	if err != nil {
		t.Fatalf("SaveComment() error = %v", err)
	}
	if saved.ID != "cmt_1" || saved.PRDID != "prd_1" || saved.Position != 3 {
		t.Fatalf("saved = %+v", saved)
	}
}

func assertDomainCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	domainErr, ok := err.(*DomainError)
	if !ok {
		t.Fatalf("expected DomainError, got %T: %v", err, err)
	}
	if domainErr.Code != code {
		t.Fatalf("code = %s, want %s", domainErr.Code, code)
	}
}
