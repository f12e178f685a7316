package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/clinovia/clinic-api/internal/email"
	"github.com/clinovia/clinic-api/internal/model"
	"github.com/clinovia/clinic-api/internal/repository"
	"github.com/clinovia/clinic-api/internal/service/audit"
	"github.com/clinovia/clinic-api/pkg/auth"
	apperrors "github.com/clinovia/clinic-api/pkg/errors"
	"github.com/clinovia/clinic-api/pkg/logger"
	"github.com/clinovia/clinic-api/pkg/security"
)

const (
	maxLoginAttempts = 5
	lockoutDuration  = 15 * time.Minute
	// resendInterval throttles reset-code requests per email address.
	resendInterval = time.Minute
)

const (
	msgDuplicateEmail = "A user with this email already exists."
	msgWeakPassword   = "Password must be at least 8 characters long."
	msgWrongPassword  = "Current password is incorrect."
	msgInvalidReset   = "Invalid or expired reset code."
)

// Service authenticates users and manages credentials. Failed-login counters
// and reset-code throttles live in an in-process cache keyed by email; both
// expire on their own.
type Service struct {
	users    repository.UserRepository
	otps     repository.OTPRepository
	tokens   auth.JWTService
	hasher   security.PasswordHasher
	sender   email.Sender
	auditor  *audit.Service
	logger   *logger.Logger
	attempts *cache.Cache
}

func NewService(
	users repository.UserRepository,
	otps repository.OTPRepository,
	tokens auth.JWTService,
	hasher security.PasswordHasher,
	sender email.Sender,
	auditor *audit.Service,
	logger *logger.Logger,
) *Service {
	return &Service{
		users:    users,
		otps:     otps,
		tokens:   tokens,
		hasher:   hasher,
		sender:   sender,
		auditor:  auditor,
		logger:   logger,
		attempts: cache.New(lockoutDuration, 2*lockoutDuration),
	}
}

// Login verifies credentials and issues a token pair. A missing account and
// a wrong password fail identically; repeated failures lock the email for a
// while.
func (s *Service) Login(ctx context.Context, req *model.LoginRequest) (*model.TokenResponse, *model.User, error) {
	emailAddr := normalizeEmail(req.Email)
	if s.locked(emailAddr) {
		return nil, nil, model.ErrAccountLocked
	}

	user, err := s.users.GetByEmail(ctx, emailAddr)
	if errors.Is(err, repository.ErrNotFound) {
		s.recordFailure(emailAddr)
		return nil, nil, model.ErrInvalidCredentials
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if !user.IsActive {
		return nil, nil, model.ErrAccountInactive
	}

	if err := s.hasher.Compare(user.PasswordHash, req.Password); err != nil {
		s.recordFailure(emailAddr)
		return nil, nil, model.ErrInvalidCredentials
	}

	s.attempts.Delete(loginKey(emailAddr))

	if err := s.users.UpdateLastLogin(ctx, user.ID, time.Now()); err != nil {
		s.logger.Warn("failed to record last login", "user_id", user.ID, "error", err.Error())
	}

	tokens, err := s.issueTokens(user)
	if err != nil {
		return nil, nil, err
	}

	actor := &model.Actor{ID: user.ID, Email: user.Email, Role: user.Role}
	s.auditor.Record(ctx, actor, model.AuditActionLogin, model.AuditEntityUser, user.ID, nil)
	return tokens, user, nil
}

// Me returns the acting user's own account.
func (s *Service) Me(ctx context.Context, actor *model.Actor) (*model.User, error) {
	user, err := s.users.Get(ctx, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// Refresh rotates a refresh token into a fresh pair.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*model.TokenResponse, error) {
	claims, err := s.tokens.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, apperrors.Unauthorized(err)
	}

	user, err := s.users.Get(ctx, claims.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.Unauthorized(err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if !user.IsActive {
		return nil, model.ErrAccountInactive
	}

	return s.issueTokens(user)
}

// RegisterPatient self-registers a patient login. The clinical patient
// record is created by staff and linked by email.
func (s *Service) RegisterPatient(ctx context.Context, req *model.RegisterRequest) (*model.User, error) {
	verrs := apperrors.NewValidationErrors()

	emailAddr := normalizeEmail(req.Email)
	exists, err := s.users.EmailExists(ctx, emailAddr, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to check user email: %w", err)
	}
	if exists {
		verrs.Add("email", msgDuplicateEmail)
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
		Email:        emailAddr,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Phone:        req.Phone,
		Role:         model.RolePatient,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			verrs.Add("email", msgDuplicateEmail)
			return nil, verrs
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	if err := s.sender.SendWelcome(ctx, user.Email, user.FirstName); err != nil {
		s.logger.Warn("failed to send welcome email", "user_id", user.ID, "error", err.Error())
	}

	actor := &model.Actor{ID: user.ID, Email: user.Email, Role: user.Role}
	s.logger.Info("patient registered", "user_id", user.ID)
	s.auditor.Record(ctx, actor, model.AuditActionCreate, model.AuditEntityUser, user.ID, nil)
	return user, nil
}

// ChangePassword re-verifies the current password before storing a new one.
func (s *Service) ChangePassword(ctx context.Context, actor *model.Actor, req *model.ChangePasswordRequest) error {
	user, err := s.users.Get(ctx, actor.ID)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}

	verrs := apperrors.NewValidationErrors()
	if err := s.hasher.Compare(user.PasswordHash, req.CurrentPassword); err != nil {
		verrs.Add("current_password", msgWrongPassword)
	}

	hash, err := s.hasher.Hash(req.NewPassword)
	if errors.Is(err, security.ErrPasswordTooShort) {
		verrs.Add("new_password", msgWeakPassword)
	} else if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := verrs.ErrIfAny(); err != nil {
		return err
	}

	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	s.auditor.Record(ctx, actor, model.AuditActionUpdate, model.AuditEntityUser, user.ID, nil)
	return nil
}

// ForgotPassword issues a reset code. The response never reveals whether the
// email has an account; unknown addresses are dropped after logging.
func (s *Service) ForgotPassword(ctx context.Context, emailAddr string) error {
	emailAddr = normalizeEmail(emailAddr)

	if _, throttled := s.attempts.Get(resendKey(emailAddr)); throttled {
		s.logger.Info("reset code request throttled", "email", emailAddr)
		return nil
	}

	user, err := s.users.GetByEmail(ctx, emailAddr)
	if errors.Is(err, repository.ErrNotFound) {
		s.logger.Info("reset code requested for unknown email", "email", emailAddr)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to look up user: %w", err)
	}
	if !user.IsActive {
		return nil
	}

	code, err := security.GenerateOTP(model.OTPLength)
	if err != nil {
		return fmt.Errorf("failed to generate reset code: %w", err)
	}

	if err := s.otps.Create(ctx, &model.PasswordOTP{UserID: user.ID, Code: code}); err != nil {
		return fmt.Errorf("failed to store reset code: %w", err)
	}

	if err := s.sender.SendPasswordResetCode(ctx, user.Email, code); err != nil {
		return fmt.Errorf("failed to send reset code: %w", err)
	}

	s.attempts.Set(resendKey(emailAddr), true, resendInterval)
	s.logger.Info("password reset code issued", "user_id", user.ID)
	return nil
}

// ResetPassword redeems a code for a new password. Every failure path shows
// the same message; wrong guesses burn one of the code's attempts.
func (s *Service) ResetPassword(ctx context.Context, req *model.ResetPasswordRequest) error {
	emailAddr := normalizeEmail(req.Email)

	user, err := s.users.GetByEmail(ctx, emailAddr)
	if errors.Is(err, repository.ErrNotFound) {
		return resetRejection()
	}
	if err != nil {
		return fmt.Errorf("failed to look up user: %w", err)
	}

	otp, err := s.otps.GetLatest(ctx, user.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return resetRejection()
	}
	if err != nil {
		return fmt.Errorf("failed to load reset code: %w", err)
	}

	if !otp.Redeemable(time.Now()) {
		return resetRejection()
	}
	if otp.Code != strings.TrimSpace(req.Code) {
		if err := s.otps.IncrementAttempts(ctx, otp.ID); err != nil {
			s.logger.Warn("failed to count reset attempt", "otp_id", otp.ID, "error", err.Error())
		}
		return resetRejection()
	}

	hash, err := s.hasher.Hash(req.NewPassword)
	if errors.Is(err, security.ErrPasswordTooShort) {
		verrs := apperrors.NewValidationErrors()
		verrs.Add("new_password", msgWeakPassword)
		return verrs
	}
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.otps.MarkUsed(ctx, otp.ID); err != nil {
		return fmt.Errorf("failed to redeem reset code: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	// A successful reset also clears any login lockout.
	s.attempts.Delete(loginKey(emailAddr))

	actor := &model.Actor{ID: user.ID, Email: user.Email, Role: user.Role}
	s.logger.Info("password reset completed", "user_id", user.ID)
	s.auditor.Record(ctx, actor, model.AuditActionUpdate, model.AuditEntityUser, user.ID, nil)
	return nil
}

func (s *Service) issueTokens(user *model.User) (*model.TokenResponse, error) {
	access, err := s.tokens.GenerateAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}
	refresh, err := s.tokens.GenerateRefreshToken(user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}
	return &model.TokenResponse{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *Service) locked(emailAddr string) bool {
	n, ok := s.attempts.Get(loginKey(emailAddr))
	return ok && n.(int) >= maxLoginAttempts
}

func (s *Service) recordFailure(emailAddr string) {
	key := loginKey(emailAddr)
	n, err := s.attempts.IncrementInt(key, 1)
	if err != nil {
		s.attempts.Set(key, 1, lockoutDuration)
		return
	}
	if n >= maxLoginAttempts {
		s.logger.Warn("account locked after repeated failures", "email", emailAddr)
	}
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func loginKey(email string) string  { return "login:" + email }
func resendKey(email string) string { return "resend:" + email }

func resetRejection() *apperrors.ValidationErrors {
	verrs := apperrors.NewValidationErrors()
	verrs.AddNonField(msgInvalidReset)
	return verrs
}
