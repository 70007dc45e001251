package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/iliyamo/tire-storage-bonus/internal/model"
	"github.com/iliyamo/tire-storage-bonus/internal/repository"
)

// UserStore is the persistence behind UserService.
type UserStore interface {
	Create(ctx context.Context, u model.User, welcome decimal.Decimal) error
	GetByID(ctx context.Context, id string) (model.User, error)
	GetByPhone(ctx context.Context, phone string) (model.User, error)
	ChangeRole(ctx context.Context, adminID, userID string, role model.Role, at time.Time) (model.RoleHistory, error)
	SetVIP(ctx context.Context, userID string, vip bool) error
	IsVIP(ctx context.Context, userID string) (bool, error)
}

// UserLookup resolves a platform id to a user.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (model.User, error)
}

// NewUser is the registration payload collected by the gateway.
type NewUser struct {
	ID        string     `json:"user_id"`
	Name      string     `json:"name"`
	Phone     *string    `json:"phone"`
	BirthDate *time.Time `json:"birth_date"`
}

// UserService registers users and manages roles and VIP status.
type UserService struct {
	store  UserStore
	ledger *BonusLedger
	log    *zap.Logger
	now    func() time.Time
}

// NewUserService wires a UserService.  The ledger supplies the welcome
// bonus.
func NewUserService(store UserStore, ledger *BonusLedger, log *zap.Logger) *UserService {
	return &UserService{
		store:  store,
		ledger: ledger,
		log:    orNop(log),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Register creates a customer with a balance seeded with the welcome
// bonus.  A taken id or phone yields ErrConflict.
func (s *UserService) Register(ctx context.Context, in NewUser) (model.User, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.Name = strings.TrimSpace(in.Name)
	if in.ID == "" || in.Name == "" {
		return model.User{}, fmt.Errorf("%w: user_id and name are required", ErrInvalidInput)
	}
	if in.Phone != nil {
		p := strings.TrimSpace(*in.Phone)
		if p == "" {
			in.Phone = nil
		} else {
			in.Phone = &p
		}
	}
	settings, err := s.ledger.Settings(ctx)
	if err != nil {
		return model.User{}, err
	}
	u := model.User{
		ID:               in.ID,
		Name:             in.Name,
		RegistrationDate: s.now(),
		Phone:            in.Phone,
		BirthDate:        in.BirthDate,
		Role:             model.RoleCustomer,
	}
	if err := s.store.Create(ctx, u, decimal.NewFromInt(int64(settings.StartBonusBalance))); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return model.User{}, fmt.Errorf("%w: user %s or phone already registered", ErrConflict, in.ID)
		}
		return model.User{}, fmt.Errorf("create user: %w", err)
	}
	s.log.Info("user registered", zap.String("user_id", u.ID), zap.Int("welcome_bonus", settings.StartBonusBalance))
	return u, nil
}

// Get returns the user or nil when it does not exist.
func (s *UserService) Get(ctx context.Context, userID string) (*model.User, error) {
	u, err := s.store.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// FindByPhone returns the user owning phone or nil.
func (s *UserService) FindByPhone(ctx context.Context, phone string) (*model.User, error) {
	u, err := s.store.GetByPhone(ctx, strings.TrimSpace(phone))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// ChangeRole sets the role of userID on behalf of adminID and records
// the change in the role history.
func (s *UserService) ChangeRole(ctx context.Context, adminID, userID, role string) (model.RoleHistory, error) {
	r, ok := model.ParseRole(role)
	if !ok {
		return model.RoleHistory{}, fmt.Errorf("%w: role %q", ErrInvalidSetting, role)
	}
	h, err := s.store.ChangeRole(ctx, adminID, userID, r, s.now())
	if errors.Is(err, repository.ErrNotFound) {
		return h, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}
	if err != nil {
		return h, fmt.Errorf("change role: %w", err)
	}
	s.log.Info("role changed", zap.String("admin_id", adminID), zap.String("user_id", userID), zap.String("role", string(r)))
	return h, nil
}

// SetVIP grants or revokes the VIP cashback rate.
func (s *UserService) SetVIP(ctx context.Context, userID string, vip bool) error {
	err := s.store.SetVIP(ctx, userID, vip)
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}
	return err
}

// IsVIP reports the VIP flag of userID.
func (s *UserService) IsVIP(ctx context.Context, userID string) (bool, error) {
	return s.store.IsVIP(ctx, userID)
}
