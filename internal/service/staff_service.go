package service

import (
	"context"
	"crypto/rand"
	"math/big"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/uzcoder03/maktab/internal/models"
	appErrors "github.com/uzcoder03/maktab/pkg/errors"
)

type staffUserRepository interface {
	ListStaff(ctx context.Context) ([]models.User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	Create(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id string) error
}

// CreateStaffRequest registers a teacher or academic supervisor account.
type CreateStaffRequest struct {
	FirstName      string          `json:"first_name" validate:"required"`
	LastName       string          `json:"last_name" validate:"required"`
	Role           models.UserRole `json:"role" validate:"required,oneof=TEACHER ACADEMIC"`
	Specialization *string         `json:"specialization"`
	Phone          *string         `json:"phone"`
	AssignedGrades []string        `json:"assigned_grades"`
}

// CreatedStaff returns the new account with its one-time password. The
// password is shown exactly once; the account must change it on first
// login.
type CreatedStaff struct {
	User            models.UserInfo `json:"user"`
	InitialPassword string          `json:"initial_password"`
}

// StaffService manages teacher and supervisor accounts.
type StaffService struct {
	repo      staffUserRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStaffService constructs a StaffService.
func NewStaffService(repo staffUserRepository, validate *validator.Validate, logger *zap.Logger) *StaffService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StaffService{repo: repo, validator: validate, logger: logger}
}

// List returns all non-admin staff accounts.
func (s *StaffService) List(ctx context.Context) ([]models.UserInfo, error) {
	users, err := s.repo.ListStaff(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list staff")
	}
	infos := make([]models.UserInfo, 0, len(users))
	for i := range users {
		infos = append(infos, userInfoOf(&users[i]))
	}
	return infos, nil
}

// Create registers a staff account with a generated username and a
// one-time password.
func (s *StaffService) Create(ctx context.Context, req CreateStaffRequest) (*CreatedStaff, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid staff payload")
	}

	username, err := s.uniqueUsername(ctx, req.FirstName, req.LastName)
	if err != nil {
		return nil, err
	}
	password, err := generatePassword(10)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate password")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		Username:           username,
		PasswordHash:       string(hash),
		FirstName:          req.FirstName,
		LastName:           req.LastName,
		Role:               req.Role,
		Specialization:     req.Specialization,
		Phone:              req.Phone,
		AssignedGrades:     pq.StringArray(req.AssignedGrades),
		MustChangePassword: true,
		Active:             true,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create staff account")
	}

	s.logger.Info("staff account created",
		zap.String("user_id", user.ID),
		zap.String("role", string(user.Role)))
	return &CreatedStaff{User: userInfoOf(user), InitialPassword: password}, nil
}

// Delete removes a staff account.
func (s *StaffService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete staff account")
	}
	return nil
}

func (s *StaffService) uniqueUsername(ctx context.Context, firstName, lastName string) (string, error) {
	base := strings.ToLower(sanitizeUsername(firstName) + "." + sanitizeUsername(lastName))
	candidate := base
	for attempt := 0; attempt < 20; attempt++ {
		exists, err := s.repo.ExistsByUsername(ctx, candidate)
		if err != nil {
			return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check username")
		}
		if !exists {
			return candidate, nil
		}
		n, err := rand.Int(rand.Reader, big.NewInt(1000))
		if err != nil {
			return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to derive username")
		}
		candidate = base + n.String()
	}
	return "", appErrors.Clone(appErrors.ErrConflict, "could not derive a free username")
}

func sanitizeUsername(part string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(part)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "user"
	}
	return b.String()
}

const passwordAlphabet = "abcdefghjkmnpqrstuvwxyzABCDEFGHJKMNPQRSTUVWXYZ23456789"

func generatePassword(length int) (string, error) {
	var b strings.Builder
	max := big.NewInt(int64(len(passwordAlphabet)))
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(passwordAlphabet[n.Int64()])
	}
	return b.String(), nil
}
