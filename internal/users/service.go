package users

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"github.com/praxis-platform/praxis/internal/audit"
	"github.com/praxis-platform/praxis/internal/auth"
	"github.com/praxis-platform/praxis/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListUsers(ctx context.Context, limit, offset int) ([]User, error)
	CountUsers(ctx context.Context) (int, error)
	GetUser(ctx context.Context, id int64) (User, error)
	CreateUser(ctx context.Context, username, email, passwordHash string) (User, error)
	UpdateUser(ctx context.Context, id int64, username, email string) (User, error)
	UpdateStatus(ctx context.Context, id int64, status shared.AccountStatus) error
	DeleteUser(ctx context.Context, id int64) error
}

// RoleDirectory exposes the role assignment operations user management
// needs.
type RoleDirectory interface {
	UserRoleNames(ctx context.Context, userID int64) ([]string, error)
	SetUserRoles(ctx context.Context, userID int64, roleIDs []int64) error
}

// SessionTerminator revokes every active session of a user.
type SessionTerminator interface {
	TerminateAll(ctx context.Context, userID int64) (int, error)
}

// Service handles user management business logic.
type Service struct {
	logger   *slog.Logger
	repo     RepositoryPort
	roles    RoleDirectory
	sessions SessionTerminator
	audit    audit.Recorder
}

// NewService builds Service instance.
func NewService(logger *slog.Logger, repo RepositoryPort, roles RoleDirectory, sessions SessionTerminator, recorder audit.Recorder) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if recorder == nil {
		recorder = audit.Nop{}
	}
	return &Service{logger: logger, repo: repo, roles: roles, sessions: sessions, audit: recorder}
}

// ListUsers returns a page of users with pagination metadata.
func (s *Service) ListUsers(ctx context.Context, page, perPage int) ([]User, shared.Pagination, error) {
	total, err := s.repo.CountUsers(ctx)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	p := shared.NewPagination(page, perPage, total)
	list, err := s.repo.ListUsers(ctx, p.PerPage, p.Offset())
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	if list == nil {
		list = []User{}
	}
	return list, p, nil
}

// GetUser fetches one user with their role names.
func (s *Service) GetUser(ctx context.Context, id int64) (User, error) {
	user, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return User{}, err
	}
	s.attachRoles(ctx, &user)
	return user, nil
}

// CreateUser registers a new account. Username and email are normalized the
// same way login identifiers are.
func (s *Service) CreateUser(ctx context.Context, username, email, password string, actorID int64) (User, error) {
	username = auth.NormalizeLogin(username)
	email = auth.NormalizeLogin(email)
	if username == "" || email == "" {
		return User{}, fmt.Errorf("%w: username and email required", shared.ErrValidation)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("users: hash password: %w", err)
	}
	user, err := s.repo.CreateUser(ctx, username, email, string(hash))
	if err != nil {
		return User{}, err
	}
	s.audit.Record(ctx, audit.Event{
		ActorID:  actorID,
		Action:   "user.created",
		Entity:   "user",
		EntityID: fmt.Sprintf("%d", user.ID),
	})
	return user, nil
}

// UpdateUser changes the profile fields of an account.
func (s *Service) UpdateUser(ctx context.Context, id int64, username, email string) (User, error) {
	username = auth.NormalizeLogin(username)
	email = auth.NormalizeLogin(email)
	if username == "" || email == "" {
		return User{}, fmt.Errorf("%w: username and email required", shared.ErrValidation)
	}
	user, err := s.repo.UpdateUser(ctx, id, username, email)
	if err != nil {
		return User{}, err
	}
	s.attachRoles(ctx, &user)
	return user, nil
}

// SetStatus transitions an account. Leaving ACTIVE revokes every live
// session so the change takes effect immediately.
func (s *Service) SetStatus(ctx context.Context, id int64, status shared.AccountStatus, actorID int64) error {
	switch status {
	case shared.StatusActive, shared.StatusInactive, shared.StatusSuspended:
	default:
		return fmt.Errorf("%w: unknown status %q", shared.ErrValidation, status)
	}
	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		return err
	}
	if status != shared.StatusActive && s.sessions != nil {
		n, err := s.sessions.TerminateAll(ctx, id)
		if err != nil {
			s.logger.Warn("revoke sessions on status change", slog.Int64("user_id", id), slog.Any("error", err))
		} else if n > 0 {
			s.audit.Record(ctx, audit.Event{
				ActorID:  actorID,
				Action:   audit.ActionForcedLogout,
				Entity:   "user",
				EntityID: fmt.Sprintf("%d", id),
				Meta:     map[string]any{"terminated": n, "status": string(status)},
			})
		}
	}
	s.audit.Record(ctx, audit.Event{
		ActorID:  actorID,
		Action:   "user.status_changed",
		Entity:   "user",
		EntityID: fmt.Sprintf("%d", id),
		Meta:     map[string]any{"status": string(status)},
	})
	return nil
}

// DeleteUser removes an account and revokes its sessions.
func (s *Service) DeleteUser(ctx context.Context, id int64, actorID int64) error {
	if err := s.repo.DeleteUser(ctx, id); err != nil {
		return err
	}
	if s.sessions != nil {
		if _, err := s.sessions.TerminateAll(ctx, id); err != nil {
			s.logger.Warn("revoke sessions on delete", slog.Int64("user_id", id), slog.Any("error", err))
		}
	}
	s.audit.Record(ctx, audit.Event{
		ActorID:  actorID,
		Action:   "user.deleted",
		Entity:   "user",
		EntityID: fmt.Sprintf("%d", id),
	})
	return nil
}

// SetRoles replaces the user's role assignments.
func (s *Service) SetRoles(ctx context.Context, id int64, roleIDs []int64, actorID int64) error {
	if _, err := s.repo.GetUser(ctx, id); err != nil {
		return err
	}
	if err := s.roles.SetUserRoles(ctx, id, roleIDs); err != nil {
		return err
	}
	s.audit.Record(ctx, audit.Event{
		ActorID:  actorID,
		Action:   "user.roles_changed",
		Entity:   "user",
		EntityID: fmt.Sprintf("%d", id),
		Meta:     map[string]any{"role_ids": roleIDs},
	})
	return nil
}

func (s *Service) attachRoles(ctx context.Context, user *User) {
	if s.roles == nil {
		return
	}
	names, err := s.roles.UserRoleNames(ctx, user.ID)
	if err != nil {
		s.logger.Warn("load user roles", slog.Int64("user_id", user.ID), slog.Any("error", err))
		return
	}
	if names == nil {
		names = []string{}
	}
	user.Roles = names
}
