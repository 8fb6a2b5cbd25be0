package service

import (
	"context"
	"time"

	"github.com/gameshub/uvlhub/config"
	"github.com/gameshub/uvlhub/web/cache"

	"gorm.io/gorm"
)

// Services holds every service of the hub, wired to one database.
type Services struct {
	Users           *UserService
	Auth            *AuthService
	TwoFactor       *TwoFactorService
	UserAdmin       *UserAdminService
	Profiles        *ProfileService
	Datasets        *DatasetService
	Comments        *CommentService
	Recommendations *RecommendationService
	Zenodo          *ZenodoService
	Audit           *AuditLogService
	Seeder          *Seeder
}

// NewServices wires the services with settings read from config. c may be
// nil, in which case query results are not cached.
func NewServices(db *gorm.DB, c *cache.Cache) *Services {
	return NewServicesWith(db, c, DefaultZenodoOptions())
}

func NewServicesWith(db *gorm.DB, c *cache.Cache, zenodoOpts ZenodoOptions) *Services {
	users := NewUserService(db)
	zenodo := NewZenodoService(zenodoOpts)
	datasets := NewDatasetService(db, c, zenodo)
	return &Services{
		Users:           users,
		Auth:            NewAuthService(users, config.GetPendingLoginTTL()),
		TwoFactor:       NewTwoFactorService(users, config.GetTotpIssuer()),
		UserAdmin:       NewUserAdminService(db),
		Profiles:        NewProfileService(db),
		Datasets:        datasets,
		Comments:        NewCommentService(db),
		Recommendations: NewRecommendationService(db, c),
		Zenodo:          zenodo,
		Audit:           NewAuditLogService(db),
		Seeder:          NewSeeder(db, users),
	}
}

// cached loads a query result through c, or straight from fn when c is nil.
func cached[T any](ctx context.Context, c *cache.Cache, key string, ttl time.Duration, fn func() (T, error)) (T, error) {
	if c == nil {
		return fn()
	}
	var out T
	err := c.GetOrSet(ctx, key, &out, ttl, func() (any, error) {
		return fn()
	})
	return out, err
}
