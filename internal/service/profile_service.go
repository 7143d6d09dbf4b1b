package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/incaptta/crm-backend/internal/docstore"
	"github.com/incaptta/crm-backend/internal/domain/entity"
)

// ProfileService resolves actor identities from the userProfiles collection
type ProfileService struct {
	store  *docstore.Store
	logger *zap.Logger
}

// NewProfileService creates a profile service
func NewProfileService(store *docstore.Store, logger *zap.Logger) *ProfileService {
	return &ProfileService{store: store, logger: logger}
}

// Get loads a user profile by uid
func (s *ProfileService) Get(ctx context.Context, uid string) (*entity.UserProfile, error) {
	if uid == "" {
		return nil, ErrUnauthenticated
	}

	var profile entity.UserProfile
	if err := s.store.Get(ctx, entity.CollectionUserProfiles, uid, &profile); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, fmt.Errorf("%w: user profile %s", ErrNotFound, uid)
		}
		return nil, err
	}
	return &profile, nil
}
