package service

import (
	"errors"
	"fmt"

	"github.com/gameshub/uvlhub/database/model"
	"github.com/gameshub/uvlhub/logger"
	"github.com/gameshub/uvlhub/util/crypto"

	"gorm.io/gorm"
)

// SeedAccount is one account created by Seeder.
type SeedAccount struct {
	Email       string
	Password    string
	Role        model.Role
	Name        string
	Surname     string
	Affiliation string
}

var DefaultSeedAccounts = []SeedAccount{
	{Email: "admin@example.com", Password: "1234", Role: model.RoleAdmin, Name: "System", Surname: "Administrator", Affiliation: "Platform Admin"},
	{Email: "curator@example.com", Password: "1234", Role: model.RoleCurator, Name: "Data", Surname: "Curator", Affiliation: "Research Group"},
	{Email: "user1@example.com", Password: "1234", Role: model.RoleStandard, Name: "John", Surname: "Doe", Affiliation: "University"},
	{Email: "user2@example.com", Password: "1234", Role: model.RoleStandard, Name: "Jane", Surname: "Doe", Affiliation: "University"},
}

// Seeder creates the demo accounts. Running it again resets their role,
// password and profile.
type Seeder struct {
	db    *gorm.DB
	users *UserService
}

func NewSeeder(db *gorm.DB, users *UserService) *Seeder {
	return &Seeder{db: db, users: users}
}

func (s *Seeder) Seed(accounts []SeedAccount) error {
	for _, a := range accounts {
		if err := s.seedOne(a); err != nil {
			return fmt.Errorf("seed %s: %w", a.Email, err)
		}
	}
	logger.Infof("seeded %d accounts", len(accounts))
	return nil
}

func (s *Seeder) seedOne(a SeedAccount) error {
	profile := model.UserProfile{Name: a.Name, Surname: a.Surname, Affiliation: a.Affiliation}
	user, err := s.users.GetByEmail(a.Email)
	if errors.Is(err, ErrNotFound) {
		_, err = s.users.CreateUser(a.Email, a.Password, a.Role, &profile)
		return err
	} else if err != nil {
		return err
	}

	hash, err := crypto.HashPasswordAsBcrypt(a.Password)
	if err != nil {
		return err
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&model.User{}).Where("id = ?", user.Id).
			Updates(map[string]any{"role": a.Role, "password": hash}).Error
		if err != nil {
			return err
		}
		if user.Profile != nil {
			profile.Id = user.Profile.Id
			profile.Orcid = user.Profile.Orcid
		}
		profile.UserId = user.Id
		return tx.Save(&profile).Error
	})
}
