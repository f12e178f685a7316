package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/clinovia/clinic-api/internal/model"
	"github.com/clinovia/clinic-api/internal/repository"
	"github.com/clinovia/clinic-api/internal/service/audit"
	apperrors "github.com/clinovia/clinic-api/pkg/errors"
	"github.com/clinovia/clinic-api/pkg/logger"
	"github.com/clinovia/clinic-api/pkg/security"
)

// The doctor directory changes rarely and is read on every booking screen,
// so pages are cached briefly in process.
const (
	doctorCacheTTL     = 5 * time.Minute
	doctorCacheCleanup = 10 * time.Minute
)

const (
	msgDuplicateEmail    = "A user with this email already exists."
	msgBadSpecialization = "Select a valid specialization."
	msgSelfDeactivate    = "You cannot deactivate your own account."
	msgWeakPassword      = "Password must be at least 8 characters long."
)

// Service manages staff and doctor accounts. Patient self-registration goes
// through the auth service; this one is for the admin console.
type Service struct {
	repo    repository.UserRepository
	hasher  security.PasswordHasher
	auditor *audit.Service
	logger  *logger.Logger
	doctors *cache.Cache
}

func NewService(repo repository.UserRepository, hasher security.PasswordHasher, auditor *audit.Service, logger *logger.Logger) *Service {
	return &Service{
		repo:    repo,
		hasher:  hasher,
		auditor: auditor,
		logger:  logger,
		doctors: cache.New(doctorCacheTTL, doctorCacheCleanup),
	}
}

// Create provisions an account. The unique index on email backs up the
// pre-check for concurrent inserts.
func (s *Service) Create(ctx context.Context, actor *model.Actor, req *model.CreateUserRequest) (*model.User, error) {
	verrs := apperrors.NewValidationErrors()

	role, err := model.ParseRole(req.Role)
	if err != nil {
		verrs.Add("role", "Select a valid role.")
	}

	email := strings.TrimSpace(req.Email)
	exists, err := s.repo.EmailExists(ctx, email, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to check user email: %w", err)
	}
	if exists {
		verrs.Add("email", msgDuplicateEmail)
	}

	if req.Specialization != nil && !model.IsValidSpecialization(*req.Specialization) {
		verrs.Add("specialization", msgBadSpecialization)
	}

	hash, err := s.hasher.Hash(req.Password)
	if errors.Is(err, security.ErrPasswordTooShort) {
		verrs.Add("password", msgWeakPassword)
	} else if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	if err := verrs.ErrIfAny(); err != nil {
		return nil, err
	}

	user := &model.User{
		Email:              email,
		PasswordHash:       hash,
		FirstName:          strings.TrimSpace(req.FirstName),
		LastName:           strings.TrimSpace(req.LastName),
		Phone:              req.Phone,
		Address:            req.Address,
		Role:               role,
		Specialization:     req.Specialization,
		RegistrationNumber: req.RegistrationNumber,
		ExperienceYears:    req.ExperienceYears,
		Bio:                req.Bio,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			verrs.Add("email", msgDuplicateEmail)
			return nil, verrs
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.invalidateDirectory(role)
	s.logger.Info("user account created", "user_id", user.ID, "role", user.Role)
	s.auditor.Record(ctx, actor, model.AuditActionCreate, model.AuditEntityUser, user.ID, user)
	return user, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// Update edits profile fields. Email and role are fixed after creation;
// password changes go through the auth service.
func (s *Service) Update(ctx context.Context, actor *model.Actor, id uuid.UUID, req *model.UpdateUserRequest) (*model.User, error) {
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	verrs := apperrors.NewValidationErrors()
	if req.Specialization != nil && !model.IsValidSpecialization(*req.Specialization) {
		verrs.Add("specialization", msgBadSpecialization)
	}
	if req.IsActive != nil && !*req.IsActive && actor != nil && actor.ID == id {
		verrs.AddNonField(msgSelfDeactivate)
	}
	if err := verrs.ErrIfAny(); err != nil {
		return nil, err
	}

	if req.FirstName != nil {
		user.FirstName = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		user.LastName = strings.TrimSpace(*req.LastName)
	}
	if req.Phone != nil {
		user.Phone = req.Phone
	}
	if req.Address != nil {
		user.Address = req.Address
	}
	if req.Specialization != nil {
		user.Specialization = req.Specialization
	}
	if req.RegistrationNumber != nil {
		user.RegistrationNumber = req.RegistrationNumber
	}
	if req.ExperienceYears != nil {
		user.ExperienceYears = req.ExperienceYears
	}
	if req.Bio != nil {
		user.Bio = req.Bio
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	s.invalidateDirectory(user.Role)
	s.auditor.Record(ctx, actor, model.AuditActionUpdate, model.AuditEntityUser, user.ID, user)
	return user, nil
}

// Deactivate disables a login without deleting it; appointment and audit
// history keep their author.
func (s *Service) Deactivate(ctx context.Context, actor *model.Actor, id uuid.UUID) error {
	if actor != nil && actor.ID == id {
		verrs := apperrors.NewValidationErrors()
		verrs.AddNonField(msgSelfDeactivate)
		return verrs
	}

	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}
	if !user.IsActive {
		return fmt.Errorf("failed to get user: %w", repository.ErrNotFound)
	}

	if err := s.repo.Deactivate(ctx, id); err != nil {
		return fmt.Errorf("failed to deactivate user: %w", err)
	}

	s.invalidateDirectory(user.Role)
	s.logger.Info("user account deactivated", "user_id", id)
	s.auditor.Record(ctx, actor, model.AuditActionDeactivate, model.AuditEntityUser, id, nil)
	return nil
}

// List pages through active accounts, optionally narrowed to one role.
func (s *Service) List(ctx context.Context, roleFilter string, p model.Pagination) ([]*model.User, int, error) {
	var role model.Role
	if roleFilter != "" {
		parsed, err := model.ParseRole(roleFilter)
		if err != nil {
			verrs := apperrors.NewValidationErrors()
			verrs.Add("role", "Select a valid role.")
			return nil, 0, verrs
		}
		role = parsed
	}
	p.Normalize()

	users, total, err := s.repo.List(ctx, role, p)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	return users, total, nil
}

type directoryPage struct {
	doctors []*model.Doctor
	total   int
}

// ListDoctors serves the public doctor directory from a short-lived cache.
func (s *Service) ListDoctors(ctx context.Context, filters *model.DoctorFilters) ([]*model.Doctor, int, error) {
	if filters == nil {
		filters = &model.DoctorFilters{}
	}
	filters.Normalize()

	key := directoryKey(filters)
	if hit, ok := s.doctors.Get(key); ok {
		page := hit.(directoryPage)
		return page.doctors, page.total, nil
	}

	doctors, total, err := s.repo.ListDoctors(ctx, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list doctors: %w", err)
	}

	s.doctors.Set(key, directoryPage{doctors: doctors, total: total}, cache.DefaultExpiration)
	return doctors, total, nil
}

// invalidateDirectory drops every cached directory page after a doctor
// account changes.
func (s *Service) invalidateDirectory(role model.Role) {
	if role != model.RoleDoctor {
		return
	}
	s.doctors.Flush()
}

func directoryKey(filters *model.DoctorFilters) string {
	return fmt.Sprintf("%s|%s|%d|%d",
		strings.ToLower(filters.Specialization),
		strings.ToLower(strings.TrimSpace(filters.SearchTerm)),
		filters.Page, filters.PageSize)
}
