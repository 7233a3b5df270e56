package app

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"prdhub/api/internal/auth"
	"prdhub/api/internal/authpw"
	"prdhub/api/internal/collab"
	"prdhub/api/internal/config"
	"prdhub/api/internal/export"
	"prdhub/api/internal/prdgit"
	"prdhub/api/internal/rbac"
	"prdhub/api/internal/search"
	"prdhub/api/internal/store"
	"prdhub/api/internal/util"
)

type Session struct {
	Token     string
	UserID    string
	UserName  string
	Avatar    string
	JTI       string
	ExpiresAt time.Time
}

type dataStore interface {
	Ping(context.Context) error
	GetUserByID(context.Context, string) (store.User, error)
	GetUserByEmail(context.Context, string) (store.User, error)
	CreateUser(context.Context, store.User) error
	InsertPRD(context.Context, store.PRD) error
	GetPRD(context.Context, string) (store.PRD, error)
	ListPRDsForUser(context.Context, string) ([]store.PRD, error)
	ListPublicPRDs(context.Context, int) ([]store.PRD, error)
	TouchPRD(context.Context, string) error
	DeletePRD(context.Context, string) error
	CanAccess(ctx context.Context, userID, prdID string) (bool, error)
	RoleFor(ctx context.Context, userID, prdID string) (string, error)
	InsertTeam(context.Context, store.Team) error
	GetTeam(context.Context, string) (store.Team, error)
	UpsertMembership(context.Context, store.Membership) error
	SaveComment(context.Context, store.Comment) error
	MarkCommentResolved(ctx context.Context, commentID, resolvedBy string) error
	ListComments(context.Context, string) ([]store.Comment, error)
}

type gitService interface {
	EnsureRepo(documentID string, initial prdgit.Content, author string) error
	Save(documentID string, content prdgit.Content, author, message string) (prdgit.CommitInfo, error)
	Head(documentID string) (prdgit.Content, prdgit.CommitInfo, error)
	ContentAt(documentID, hash string) (prdgit.Content, error)
	History(documentID string, limit int) ([]prdgit.CommitInfo, error)
	Remove(documentID string) error
}

type ticketStore interface {
	Issue(ctx context.Context, userID string) (string, error)
	Redeem(ctx context.Context, ticket string) (string, error)
}

type Service struct {
	cfg     config.Config
	store   dataStore
	authpw  *authpw.Service
	git     gitService
	search  *search.Service
	export  *export.Service
	tickets ticketStore
	coord   *collab.Coordinator
}

// Deps carries the optional collaborators of a Service. Any of them may be
// nil; the corresponding feature degrades instead of failing.
type Deps struct {
	Search      *search.Service
	Tickets     ticketStore
	Suggestions collab.SuggestionGenerator
}

// NewService wires the application together.
func NewService(cfg config.Config, st *store.PostgresStore, git *prdgit.Service, deps Deps) *Service {
	s := &Service{
		cfg:     cfg,
		store:   st,
		git:     git,
		search:  deps.Search,
		tickets: deps.Tickets,
	}
	s.authpw = authpw.NewService(st)
	s.export = export.NewService(&exportData{s: s})
	s.coord = collab.NewCoordinator(&collabAccess{s: s}, deps.Suggestions, &collabSink{s: s})
	return s
}

// Coordinator exposes the collaboration core to the socket transport.
func (s *Service) Coordinator() *collab.Coordinator {
	return s.coord
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// --- sessions ---

func (s *Service) SignUp(ctx context.Context, email, password, displayName string) (Session, error) {
	user, err := s.authpw.SignUp(ctx, email, password, displayName)
	if err != nil {
		return Session{}, err
	}
	return s.CreateSession(user)
}

func (s *Service) SignIn(ctx context.Context, email, password string) (Session, error) {
	user, err := s.authpw.SignIn(ctx, email, password)
	if err != nil {
		return Session{}, err
	}
	return s.CreateSession(user)
}

// CreateSession issues an access token for a user.
func (s *Service) CreateSession(user store.User) (Session, error) {
	expiresAt := time.Now().Add(s.cfg.AccessTTL)
	claims := auth.Claims{
		Sub:    user.ID,
		Name:   user.DisplayName,
		Avatar: user.AvatarURL,
		JTI:    util.NewID("jti"),
		Exp:    expiresAt.Unix(),
	}
	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), claims)
	if err != nil {
		return Session{}, err
	}
	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.DisplayName,
		Avatar:    user.AvatarURL,
		JTI:       claims.JTI,
		ExpiresAt: expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	user, err := s.store.GetUserByID(ctx, claims.Sub)
	if err != nil {
		return Session{}, err
	}
	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.DisplayName,
		Avatar:    user.AvatarURL,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

// IssueTicket mints a single-use socket ticket for an authenticated user.
func (s *Service) IssueTicket(ctx context.Context, session Session) (string, error) {
	if s.tickets == nil {
		return "", domainError(http.StatusServiceUnavailable, "TICKETS_UNAVAILABLE", "Collaboration tickets not configured", nil)
	}
	return s.tickets.Issue(ctx, session.UserID)
}

// SocketUser resolves the user behind a websocket upgrade, preferring a
// single-use ticket in the query string and falling back to a bearer token.
func (s *Service) SocketUser(ctx context.Context, r *http.Request) (collab.User, error) {
	if ticket := strings.TrimSpace(r.URL.Query().Get("ticket")); ticket != "" && s.tickets != nil {
		userID, err := s.tickets.Redeem(ctx, ticket)
		if err != nil {
			return collab.User{}, err
		}
		user, err := s.store.GetUserByID(ctx, userID)
		if err != nil {
			return collab.User{}, err
		}
		return collab.User{ID: user.ID, Name: user.DisplayName, AvatarURL: user.AvatarURL}, nil
	}

	token := bearerToken(r)
	if token == "" {
		token = strings.TrimSpace(r.URL.Query().Get("token"))
	}
	if token == "" {
		return collab.User{}, auth.ErrInvalidToken
	}
	session, err := s.SessionFromToken(ctx, token)
	if err != nil {
		return collab.User{}, err
	}
	return collab.User{ID: session.UserID, Name: session.UserName, AvatarURL: session.Avatar}, nil
}

// --- teams ---

func (s *Service) CreateTeam(ctx context.Context, session Session, name string) (store.Team, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return store.Team{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required", nil)
	}
	team := store.Team{
		ID:        util.NewID("team"),
		Name:      name,
		CreatedBy: session.UserID,
	}
	if err := s.store.InsertTeam(ctx, team); err != nil {
		return store.Team{}, err
	}
	if err := s.store.UpsertMembership(ctx, store.Membership{
		TeamID: team.ID,
		UserID: session.UserID,
		Role:   string(rbac.RoleOwner),
	}); err != nil {
		return store.Team{}, err
	}
	return team, nil
}

func (s *Service) AddTeamMember(ctx context.Context, session Session, teamID, userID, role string) error {
	team, err := s.store.GetTeam(ctx, teamID)
	if err != nil {
		return err
	}
	if team.CreatedBy != session.UserID {
		return domainError(http.StatusForbidden, "FORBIDDEN", "Only the team owner can manage members", nil)
	}
	if _, err := s.store.GetUserByID(ctx, userID); err != nil {
		return err
	}
	normalized := rbac.Normalize(role)
	return s.store.UpsertMembership(ctx, store.Membership{
		TeamID: teamID,
		UserID: userID,
		Role:   string(normalized),
	})
}

// --- PRDs ---

// CreatePRDInput is the request body for creating a PRD. Missing sections
// get a default skeleton.
type CreatePRDInput struct {
	Title      string           `json:"title"`
	Summary    string           `json:"summary"`
	TeamID     string           `json:"teamId"`
	Visibility string           `json:"visibility"`
	Sections   []prdgit.Section `json:"sections"`
}

var defaultSections = []prdgit.Section{
	{Name: "overview"},
	{Name: "goals"},
	{Name: "requirements"},
	{Name: "success-metrics"},
}

func (s *Service) CreatePRD(ctx context.Context, session Session, input CreatePRDInput) (store.PRD, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return store.PRD{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title is required", nil)
	}
	if input.TeamID == "" {
		return store.PRD{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "teamId is required", nil)
	}
	if _, err := s.store.GetTeam(ctx, input.TeamID); err != nil {
		if store.IsNotFound(err) {
			return store.PRD{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "unknown team", nil)
		}
		return store.PRD{}, err
	}
	visibility := input.Visibility
	switch visibility {
	case "":
		visibility = "team"
	case "team", "public":
	default:
		return store.PRD{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "visibility must be team or public", nil)
	}

	prd := store.PRD{
		ID:         util.NewID("prd"),
		TeamID:     input.TeamID,
		Title:      title,
		Summary:    strings.TrimSpace(input.Summary),
		Status:     "draft",
		Visibility: visibility,
		CreatedBy:  session.UserID,
	}
	if err := s.store.InsertPRD(ctx, prd); err != nil {
		return store.PRD{}, err
	}

	sections := input.Sections
	if len(sections) == 0 {
		sections = defaultSections
	}
	if err := s.git.EnsureRepo(prd.ID, prdgit.Content{Title: title, Sections: sections}, session.UserName); err != nil {
		return store.PRD{}, err
	}

	s.indexPRD(prd)
	return prd, nil
}

func (s *Service) ListPRDs(ctx context.Context, session Session) ([]store.PRD, error) {
	return s.store.ListPRDsForUser(ctx, session.UserID)
}

// Gallery lists publicly visible PRDs; no session required.
func (s *Service) Gallery(ctx context.Context, limit int) ([]store.PRD, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.store.ListPublicPRDs(ctx, limit)
}

// GetPRD loads a PRD after checking the caller may see it.
func (s *Service) GetPRD(ctx context.Context, session Session, prdID string) (store.PRD, error) {
	if err := s.authorize(ctx, session, prdID); err != nil {
		return store.PRD{}, err
	}
	return s.store.GetPRD(ctx, prdID)
}

// ContentPayload is a PRD's editable content plus the commit it came from.
type ContentPayload struct {
	Content prdgit.Content    `json:"content"`
	Commit  prdgit.CommitInfo `json:"commit"`
}

func (s *Service) GetContent(ctx context.Context, session Session, prdID string) (ContentPayload, error) {
	if err := s.authorize(ctx, session, prdID); err != nil {
		return ContentPayload{}, err
	}
	content, commit, err := s.git.Head(prdID)
	if err != nil {
		return ContentPayload{}, err
	}
	return ContentPayload{Content: content, Commit: commit}, nil
}

func (s *Service) GetContentAt(ctx context.Context, session Session, prdID, hash string) (prdgit.Content, error) {
	if err := s.authorize(ctx, session, prdID); err != nil {
		return prdgit.Content{}, err
	}
	return s.git.ContentAt(prdID, hash)
}

func (s *Service) PutContent(ctx context.Context, session Session, prdID string, content prdgit.Content, message string) (prdgit.CommitInfo, error) {
	role, err := s.store.RoleFor(ctx, session.UserID, prdID)
	if err != nil {
		return prdgit.CommitInfo{}, err
	}
	if !rbac.Can(rbac.Normalize(role), rbac.ActionWrite) {
		return prdgit.CommitInfo{}, domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	}
	commit, err := s.git.Save(prdID, content, session.UserName, message)
	if err != nil {
		return prdgit.CommitInfo{}, err
	}
	if err := s.store.TouchPRD(ctx, prdID); err != nil {
		return prdgit.CommitInfo{}, err
	}
	if prd, err := s.store.GetPRD(ctx, prdID); err == nil {
		s.indexPRD(prd)
	}
	return commit, nil
}

// DeletePRD removes a PRD, its comments, its content repository and its
// search entries. Only a holder of the manage action may delete.
func (s *Service) DeletePRD(ctx context.Context, session Session, prdID string) error {
	role, err := s.store.RoleFor(ctx, session.UserID, prdID)
	if err != nil {
		return err
	}
	if !rbac.Can(rbac.Normalize(role), rbac.ActionManage) {
		return domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	}
	if err := s.store.DeletePRD(ctx, prdID); err != nil {
		return err
	}
	if err := s.git.Remove(prdID); err != nil {
		log.Printf("app: remove repo for %s: %v", prdID, err)
	}
	if s.search != nil {
		s.search.DeletePRD(prdID)
	}
	return nil
}

func (s *Service) History(ctx context.Context, session Session, prdID string, limit int) ([]prdgit.CommitInfo, error) {
	if err := s.authorize(ctx, session, prdID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.git.History(prdID, limit)
}

// CommentsFor returns the durable comment history of a PRD.
func (s *Service) CommentsFor(ctx context.Context, session Session, prdID string) ([]store.Comment, error) {
	if err := s.authorize(ctx, session, prdID); err != nil {
		return nil, err
	}
	return s.store.ListComments(ctx, prdID)
}

// Export renders a PRD to markdown or PDF.
func (s *Service) Export(ctx context.Context, session Session, prdID string, format export.Format, includeComments bool) (*export.Result, error) {
	if err := s.authorize(ctx, session, prdID); err != nil {
		return nil, err
	}
	return s.export.Export(ctx, export.Request{
		PRDID:           prdID,
		Format:          format,
		IncludeComments: includeComments,
	})
}

// --- search ---

func (s *Service) Search(ctx context.Context, session Session, q, filterType, teamID string, limit, offset int) search.Response {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: q}
	}
	return s.search.Search(search.Query{
		Text:         q,
		FilterType:   search.ResultType(filterType),
		FilterTeamID: teamID,
		Limit:        limit,
		Offset:       offset,
	})
}

// GallerySearch searches public PRDs only; no session required.
func (s *Service) GallerySearch(ctx context.Context, q string, limit, offset int) search.Response {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: q}
	}
	return s.search.Search(search.Query{
		Text:       q,
		Limit:      limit,
		Offset:     offset,
		PublicOnly: true,
	})
}

func (s *Service) indexPRD(prd store.PRD) {
	if s.search == nil {
		return
	}
	s.search.IndexPRD(search.PRDRecord{
		ID:         prd.ID,
		Title:      prd.Title,
		Summary:    prd.Summary,
		TeamID:     prd.TeamID,
		Status:     prd.Status,
		Visibility: prd.Visibility,
	})
}

// authorize returns a DomainError unless the session's user may see the PRD.
func (s *Service) authorize(ctx context.Context, session Session, prdID string) error {
	allowed, err := s.store.CanAccess(ctx, session.UserID, prdID)
	if err != nil {
		return err
	}
	if !allowed {
		return domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	}
	return nil
}

// --- collaboration adapters ---

type collabAccess struct{ s *Service }

func (a *collabAccess) CanAccess(ctx context.Context, userID, documentID string) (bool, error) {
	return a.s.store.CanAccess(ctx, userID, documentID)
}

// collabSink mirrors room comments to Postgres and the search index.
type collabSink struct{ s *Service }

func (k *collabSink) SaveComment(ctx context.Context, c collab.Comment) error {
	record := store.Comment{
		ID:         c.ID,
		PRDID:      c.DocumentID,
		UserID:     c.UserID,
		Section:    c.Section,
		Position:   c.Position,
		Content:    c.Content,
		Resolved:   c.Resolved,
		ResolvedBy: c.ResolvedBy,
		ParentID:   c.ParentID,
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	}
	if err := k.s.store.SaveComment(ctx, record); err != nil {
		return err
	}
	if k.s.search != nil {
		if prd, err := k.s.store.GetPRD(ctx, c.DocumentID); err == nil {
			k.s.search.IndexComment(search.CommentRecord{
				ID:         c.ID,
				Content:    c.Content,
				Section:    c.Section,
				PRDID:      c.DocumentID,
				TeamID:     prd.TeamID,
				Visibility: prd.Visibility,
			})
		}
	}
	return nil
}

func (k *collabSink) ResolveComment(ctx context.Context, documentID, commentID, resolvedBy string) error {
	return k.s.store.MarkCommentResolved(ctx, commentID, resolvedBy)
}

// exportData adapts the store and git layers to the exporter's view.
type exportData struct{ s *Service }

func (d *exportData) GetPRDInfo(ctx context.Context, id string) (export.PRDInfo, error) {
	prd, err := d.s.store.GetPRD(ctx, id)
	if err != nil {
		return export.PRDInfo{}, err
	}
	info := export.PRDInfo{
		ID:        prd.ID,
		Title:     prd.Title,
		Summary:   prd.Summary,
		Status:    prd.Status,
		TeamName:  prd.TeamID,
		UpdatedAt: prd.UpdatedAt,
	}
	if team, err := d.s.store.GetTeam(ctx, prd.TeamID); err == nil {
		info.TeamName = team.Name
	}
	if user, err := d.s.store.GetUserByID(ctx, prd.CreatedBy); err == nil {
		info.Author = user.DisplayName
	}
	return info, nil
}

func (d *exportData) GetSections(ctx context.Context, id string) ([]export.SectionInfo, error) {
	content, _, err := d.s.git.Head(id)
	if err != nil {
		return nil, err
	}
	sections := make([]export.SectionInfo, 0, len(content.Sections))
	for _, section := range content.Sections {
		sections = append(sections, export.SectionInfo{Name: section.Name, Body: section.Body})
	}
	return sections, nil
}

func (d *exportData) ListComments(ctx context.Context, prdID string) ([]export.CommentInfo, error) {
	comments, err := d.s.store.ListComments(ctx, prdID)
	if err != nil {
		return nil, err
	}
	names := map[string]string{}
	out := make([]export.CommentInfo, 0, len(comments))
	for _, c := range comments {
		author, ok := names[c.UserID]
		if !ok {
			author = c.UserID
			if user, err := d.s.store.GetUserByID(ctx, c.UserID); err == nil {
				author = user.DisplayName
			}
			names[c.UserID] = author
		}
		out = append(out, export.CommentInfo{
			Author:   author,
			Section:  c.Section,
			Content:  c.Content,
			Resolved: c.Resolved,
		})
	}
	return out, nil
}
