package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/tire-storage-bonus/internal/model"
	"github.com/iliyamo/tire-storage-bonus/internal/repository"
	"github.com/iliyamo/tire-storage-bonus/internal/utils"
)

// DefaultQRTTL is how long a customer QR code stays valid.
const DefaultQRTTL = 30 * time.Minute

// QRStore keeps codes with an expiry.
type QRStore interface {
	Save(ctx context.Context, qr model.QRCode, ttl time.Duration) error
	Load(ctx context.Context, code string) (model.QRCode, error)
}

// QRService issues short-lived codes that identify a customer at the
// counter.  Without a store every call fails with ErrUnavailable.
type QRService struct {
	store QRStore
	users UserLookup
	ttl   time.Duration
	now   func() time.Time
}

// NewQRService wires a QRService.  store may be nil when Redis is not
// available.
func NewQRService(store QRStore, users UserLookup, ttl time.Duration) *QRService {
	if ttl <= 0 {
		ttl = DefaultQRTTL
	}
	return &QRService{store: store, users: users, ttl: ttl, now: func() time.Time { return time.Now().UTC() }}
}

// Issue creates a new code for userID.
func (s *QRService) Issue(ctx context.Context, userID string) (model.QRCode, error) {
	if s.store == nil {
		return model.QRCode{}, fmt.Errorf("qr codes: %w", ErrUnavailable)
	}
	u, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.QRCode{}, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}
	if err != nil {
		return model.QRCode{}, err
	}
	now := s.now()
	qr := model.QRCode{
		Code:      utils.NewKSUID(),
		UserID:    u.ID,
		Phone:     u.PhoneOrEmpty(),
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.store.Save(ctx, qr, s.ttl); err != nil {
		return model.QRCode{}, fmt.Errorf("save qr code: %w", err)
	}
	return qr, nil
}

// Resolve returns the customer behind code.  Expired and unknown codes
// are both NotFound.
func (s *QRService) Resolve(ctx context.Context, code string) (model.User, error) {
	if s.store == nil {
		return model.User{}, fmt.Errorf("qr codes: %w", ErrUnavailable)
	}
	qr, err := s.store.Load(ctx, code)
	if errors.Is(err, repository.ErrNotFound) {
		return model.User{}, fmt.Errorf("qr code %w", ErrNotFound)
	}
	if err != nil {
		return model.User{}, err
	}
	u, err := s.users.GetByID(ctx, qr.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.User{}, fmt.Errorf("%w: %s", ErrUserNotFound, qr.UserID)
	}
	return u, err
}
