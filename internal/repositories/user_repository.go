package repositories

import (
	"context"

	"github.com/snapreel/backend/internal/models"
)

// UserRepository defines the data access contract for identity accounts.
type UserRepository interface {
	Create(ctx context.Context, user models.User) error
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindByID(ctx context.Context, id string) (models.User, error)
	FindByGoogleSubject(ctx context.Context, subject string) (models.User, error)
	Update(ctx context.Context, user models.User) error
}
