package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"mindcare/backend/internal/models"
	"mindcare/backend/internal/notify"
	"mindcare/backend/internal/repository"
	"mindcare/backend/pkg/jwt"
	"mindcare/backend/pkg/logger"
)

var (
	ErrUserAlreadyExists  = errors.New("user with this email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidRole        = errors.New("invalid role")
	ErrWrongPassword      = errors.New("current password is incorrect")
	ErrTokenInvalid       = errors.New("token is invalid")
	ErrTokenExpired       = errors.New("token has expired")
)

const (
	verificationTokenTTL = 24 * time.Hour
	resetTokenTTL        = time.Hour
)

// UserService handles accounts, credentials and the tokens mailed to users
type UserService struct {
	users       repository.UserRepository
	tokens      repository.TokenRepository
	jwt         *jwt.Service
	notifier    notify.Notifier
	frontendURL string
	log         *logger.Logger
	now         func() time.Time
}

// NewUserService creates a new user service
func NewUserService(
	users repository.UserRepository,
	tokens repository.TokenRepository,
	jwtService *jwt.Service,
	notifier notify.Notifier,
	frontendURL string,
	log *logger.Logger,
) *UserService {
	return &UserService{
		users:       users,
		tokens:      tokens,
		jwt:         jwtService,
		notifier:    notifier,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		log:         log.WithComponent("user_service"),
		now:         time.Now,
	}
}

// Signup creates a USER account, mails a verification link and returns a session token
func (s *UserService) Signup(ctx context.Context, req *models.SignupRequest) (*models.User, string, error) {
	email := models.NormalizeEmail(req.Email)

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, "", ErrUserAlreadyExists
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, "", err
	}

	user := models.User{
		Name:     strings.TrimSpace(req.Name),
		Email:    email,
		Password: req.Password,
		Role:     string(jwt.RoleUser),
	}
	if err := s.users.Create(ctx, &user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, "", ErrUserAlreadyExists
		}
		return nil, "", err
	}

	s.sendVerification(ctx, user.Email)

	token, err := s.issueSession(&user)
	if err != nil {
		return nil, "", err
	}
	return &user, token, nil
}

// Login authenticates a user and returns a JWT token
func (s *UserService) Login(ctx context.Context, req *models.LoginRequest) (*models.User, string, error) {
	user, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", err
	}

	if !models.CheckPasswordHash(req.Password, user.Password) {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.issueSession(user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// GetUserByID retrieves a user by ID
func (s *UserService) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	return user, err
}

// VerifyEmail consumes a verification token and marks the address verified
func (s *UserService) VerifyEmail(ctx context.Context, token string) error {
	t, err := s.tokens.TakeVerification(ctx, token)
	if err != nil {
		return tokenError(err)
	}
	if t.Expired(s.now()) {
		return ErrTokenExpired
	}

	err = s.users.MarkEmailVerified(ctx, t.Email, s.now())
	if errors.Is(err, repository.ErrNotFound) {
		return ErrTokenInvalid
	}
	return err
}

// ForgotPassword mails a reset link when the address belongs to a user.
// Unknown addresses are ignored so callers cannot probe for accounts.
func (s *UserService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		s.log.Debug("Password reset requested for unknown email")
		return nil
	}
	if err != nil {
		return err
	}

	token := newToken()
	if err := s.tokens.IssuePasswordReset(ctx, &models.PasswordResetToken{
		Email:     user.Email,
		Token:     token,
		ExpiresAt: s.now().Add(resetTokenTTL),
	}); err != nil {
		return err
	}

	if err := s.notifier.Notify(ctx, notify.PasswordResetEmail(s.frontendURL, user.Email, token)); err != nil {
		s.log.LogError(err, "Failed to enqueue password reset email", "user_id", user.ID)
	}
	return nil
}

// ResetPassword consumes a reset token and stores the new password
func (s *UserService) ResetPassword(ctx context.Context, token, password string) error {
	t, err := s.tokens.TakePasswordReset(ctx, token)
	if err != nil {
		return tokenError(err)
	}
	if t.Expired(s.now()) {
		return ErrTokenExpired
	}

	hash, err := models.HashPassword(password)
	if err != nil {
		return err
	}
	err = s.users.UpdatePassword(ctx, t.Email, hash)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrTokenInvalid
	}
	return err
}

// UpdateProfile changes the name and image of the user
func (s *UserService) UpdateProfile(ctx context.Context, id uint, req *models.UpdateProfileRequest) (*models.User, error) {
	user, err := s.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		user.Name = strings.TrimSpace(*req.Name)
	}
	if req.Image != nil {
		user.Image = strings.TrimSpace(*req.Image)
	}

	if err := s.users.Save(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// ChangePassword replaces the password after checking the current one
func (s *UserService) ChangePassword(ctx context.Context, id uint, req *models.ChangePasswordRequest) error {
	user, err := s.GetUserByID(ctx, id)
	if err != nil {
		return err
	}
	if !models.CheckPasswordHash(req.CurrentPassword, user.Password) {
		return ErrWrongPassword
	}

	hash, err := models.HashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	return s.users.UpdatePassword(ctx, user.Email, hash)
}

// UpdateUserRole sets the role of a user
func (s *UserService) UpdateUserRole(ctx context.Context, id uint, role jwt.Role) (*models.User, error) {
	if !role.Valid() {
		return nil, ErrInvalidRole
	}

	user, err := s.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}

	user.Role = string(role)
	if err := s.users.Save(ctx, user); err != nil {
		return nil, err
	}

	s.log.Info("User role updated", "user_id", user.ID, "role", user.Role)
	return user, nil
}

func (s *UserService) issueSession(user *models.User) (string, error) {
	return s.jwt.GenerateToken(user.ID, user.Email, jwt.Role(user.Role))
}

// sendVerification failures are logged only; the account stays usable.
func (s *UserService) sendVerification(ctx context.Context, email string) {
	token := newToken()
	if err := s.tokens.IssueVerification(ctx, &models.VerificationToken{
		Email:     email,
		Token:     token,
		ExpiresAt: s.now().Add(verificationTokenTTL),
	}); err != nil {
		s.log.LogError(err, "Failed to issue verification token")
		return
	}

	if err := s.notifier.Notify(ctx, notify.VerificationEmail(s.frontendURL, email, token)); err != nil {
		s.log.LogError(err, "Failed to enqueue verification email")
	}
}

func tokenError(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrTokenInvalid
	}
	return err
}

func newToken() string {
	return strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
}
