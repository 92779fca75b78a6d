package rbac

import (
	"context"
	"fmt"
	"strings"

	"github.com/praxis-platform/praxis/internal/shared"
)

// Service orchestrates role administration and permission resolution.
// Role mutations take effect on the next request; already-decided requests
// are never revisited.
type Service struct {
	repo  Repository
	cache *PermissionCache
}

// NewService constructs a Service. The cache is optional; without it every
// resolution hits the database.
func NewService(repo Repository, cache *PermissionCache) *Service {
	return &Service{repo: repo, cache: cache}
}

// ListRoles returns all roles ordered by name.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.repo.ListRoles(ctx)
}

// GetRole fetches a role with its permission set.
func (s *Service) GetRole(ctx context.Context, id int64) (Role, error) {
	return s.repo.GetRole(ctx, id)
}

// CreateRole inserts a new role.
func (s *Service) CreateRole(ctx context.Context, name, description string) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, fmt.Errorf("%w: role name required", shared.ErrValidation)
	}
	return s.repo.CreateRole(ctx, name, strings.TrimSpace(description))
}

// UpdateRole updates an existing role.
func (s *Service) UpdateRole(ctx context.Context, id int64, name, description string) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, fmt.Errorf("%w: role name required", shared.ErrValidation)
	}
	return s.repo.UpdateRole(ctx, id, name, strings.TrimSpace(description))
}

// DeleteRole removes a role and invalidates cached decisions of its
// holders.
func (s *Service) DeleteRole(ctx context.Context, id int64) error {
	if err := s.repo.DeleteRole(ctx, id); err != nil {
		return err
	}
	s.bump(ctx)
	return nil
}

// SetRolePermissions replaces a role's permission set. Unknown codes are
// rejected; the permission catalog is fixed at build time.
func (s *Service) SetRolePermissions(ctx context.Context, roleID int64, codes []string) error {
	seen := make(map[string]struct{}, len(codes))
	cleaned := make([]string, 0, len(codes))
	for _, code := range codes {
		code = strings.TrimSpace(code)
		if code == "" {
			continue
		}
		if !shared.KnownPermission(code) {
			return fmt.Errorf("%w: unknown permission %q", shared.ErrValidation, code)
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		cleaned = append(cleaned, code)
	}
	if _, err := s.repo.GetRole(ctx, roleID); err != nil {
		return err
	}
	if err := s.repo.ReplaceRolePermissions(ctx, roleID, cleaned); err != nil {
		return err
	}
	s.bump(ctx)
	return nil
}

// AssignRole links a user to a role.
func (s *Service) AssignRole(ctx context.Context, userID, roleID int64) error {
	if err := s.repo.AssignRole(ctx, userID, roleID); err != nil {
		return err
	}
	s.invalidateUser(ctx, userID)
	return nil
}

// RemoveRole unlinks a user from a role.
func (s *Service) RemoveRole(ctx context.Context, userID, roleID int64) error {
	if err := s.repo.RemoveRole(ctx, userID, roleID); err != nil {
		return err
	}
	s.invalidateUser(ctx, userID)
	return nil
}

// SetUserRoles replaces a user's role assignments. Every role id must refer
// to an existing role.
func (s *Service) SetUserRoles(ctx context.Context, userID int64, roleIDs []int64) error {
	seen := make(map[int64]struct{}, len(roleIDs))
	cleaned := make([]int64, 0, len(roleIDs))
	for _, id := range roleIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		if _, err := s.repo.GetRole(ctx, id); err != nil {
			return fmt.Errorf("%w: role %d", shared.ErrValidation, id)
		}
		seen[id] = struct{}{}
		cleaned = append(cleaned, id)
	}
	if err := s.repo.ReplaceUserRoles(ctx, userID, cleaned); err != nil {
		return err
	}
	s.invalidateUser(ctx, userID)
	return nil
}

// UserRoleNames lists the role names held by a user.
func (s *Service) UserRoleNames(ctx context.Context, userID int64) ([]string, error) {
	return s.repo.UserRoleNames(ctx, userID)
}

// EffectivePermissions resolves the union of the user's role permissions.
// Unknown users yield ErrPrincipalNotFound so callers default-deny; a known
// user with no roles gets the empty set.
func (s *Service) EffectivePermissions(ctx context.Context, userID int64) ([]string, error) {
	var gen int64
	if s.cache != nil {
		g, err := s.cache.Generation(ctx)
		if err == nil {
			gen = g
			if perms, ok := s.cache.Get(ctx, gen, userID); ok {
				return perms, nil
			}
		}
	}

	exists, err := s.repo.UserExists(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, shared.ErrPrincipalNotFound
	}

	perms, err := s.repo.UserEffectivePermissions(ctx, userID)
	if err != nil {
		return nil, err
	}
	if perms == nil {
		perms = []string{}
	}
	if s.cache != nil {
		s.cache.Set(ctx, gen, userID, perms)
	}
	return perms, nil
}

func (s *Service) bump(ctx context.Context) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Bump(ctx)
}

func (s *Service) invalidateUser(ctx context.Context, userID int64) {
	if s.cache == nil {
		return
	}
	// Entry ages out via TTL if the targeted delete fails.
	_ = s.cache.InvalidateUser(ctx, userID)
}
