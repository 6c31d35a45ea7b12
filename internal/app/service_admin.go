package app

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/joshua0006/architect-hub-sub005/internal/rbac"
	"github.com/joshua0006/architect-hub-sub005/internal/store"
	"github.com/joshua0006/architect-hub-sub005/internal/util"
	"golang.org/x/crypto/bcrypt"
)

func userPayload(u store.User) map[string]any {
	return map[string]any{
		"id":          u.ID,
		"displayName": u.DisplayName,
		"email":       u.Email,
		"role":        u.Role,
		"verified":    u.IsEmailVerified,
		"deactivated": u.DeactivatedAt != nil,
		"createdAt":   u.CreatedAt.Format(time.RFC3339),
	}
}

func validAssignableRole(role string) bool {
	switch rbac.Role(role) {
	case rbac.RoleAdmin, rbac.RoleStaff, rbac.RoleContractor, rbac.RoleClient:
		return true
	}
	return false
}

func (s *Service) AdminListUsers(ctx context.Context) ([]map[string]any, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(users))
	for _, u := range users {
		items = append(items, userPayload(u))
	}
	return items, nil
}

// AdminCreateUser provisions an account directly, pre-verified. Self-service
// signup stays on the authpw path.
func (s *Service) AdminCreateUser(ctx context.Context, displayName, emailAddr, password, role string) (map[string]any, error) {
	displayName = strings.TrimSpace(displayName)
	emailAddr = strings.ToLower(strings.TrimSpace(emailAddr))
	if displayName == "" || emailAddr == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "displayName and email are required", nil)
	}
	if len(password) < 8 {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "password must be at least 8 characters", nil)
	}
	if !validAssignableRole(role) {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "invalid role", map[string]any{"role": role})
	}
	if _, err := s.store.GetUserByEmail(ctx, emailAddr); err == nil {
		return nil, domainError(http.StatusConflict, "EMAIL_TAKEN", "Email already registered", nil)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	user := store.User{
		ID:              util.NewID("usr"),
		DisplayName:     displayName,
		Email:           emailAddr,
		PasswordHash:    string(hash),
		Role:            role,
		IsEmailVerified: true,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return userPayload(user), nil
}

func (s *Service) AdminUpdateUserRole(ctx context.Context, session Session, userID, role string) error {
	if !validAssignableRole(role) {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "invalid role", map[string]any{"role": role})
	}
	if userID == session.UserID && role != string(rbac.RoleAdmin) {
		return domainError(http.StatusConflict, "SELF_DEMOTION", "Cannot remove your own admin role", nil)
	}
	if _, err := s.store.GetUserByID(ctx, userID); err != nil {
		return err
	}
	return s.store.UpdateUserRole(ctx, userID, role)
}

func (s *Service) AdminSetUserDeactivated(ctx context.Context, session Session, userID string, deactivated bool) error {
	if userID == session.UserID && deactivated {
		return domainError(http.StatusConflict, "SELF_DEACTIVATION", "Cannot deactivate your own account", nil)
	}
	if _, err := s.store.GetUserByID(ctx, userID); err != nil {
		return err
	}
	return s.store.SetUserDeactivated(ctx, userID, deactivated)
}

func (s *Service) ListProjectMembers(ctx context.Context, session Session, projectID string) ([]map[string]any, error) {
	if err := s.requireProjectAccess(ctx, session, projectID); err != nil {
		return nil, err
	}
	members, err := s.store.ListMemberships(ctx, projectID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(members))
	for _, m := range members {
		items = append(items, map[string]any{
			"userId":    m.UserID,
			"userName":  m.UserName,
			"userEmail": m.UserEmail,
			"role":      m.Role,
			"grantedBy": m.GrantedBy,
			"grantedAt": m.GrantedAt.Format(time.RFC3339),
		})
	}
	return items, nil
}

func (s *Service) GrantMembership(ctx context.Context, session Session, projectID, userID, role string) error {
	if _, err := s.store.GetProject(ctx, projectID); err != nil {
		return err
	}
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.DeactivatedAt != nil {
		return domainError(http.StatusConflict, "USER_DEACTIVATED", "Cannot grant membership to a deactivated user", nil)
	}
	if !validAssignableRole(role) {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "invalid role", map[string]any{"role": role})
	}
	return s.store.UpsertMembership(ctx, store.ProjectMembership{
		ProjectID: projectID,
		UserID:    userID,
		Role:      role,
		GrantedBy: session.UserID,
	})
}

func (s *Service) RevokeMembership(ctx context.Context, projectID, userID string) error {
	if _, err := s.store.GetProject(ctx, projectID); err != nil {
		return err
	}
	return s.store.DeleteMembership(ctx, projectID, userID)
}
