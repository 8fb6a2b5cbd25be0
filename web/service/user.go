package service

import (
	"fmt"
	"strings"

	"github.com/gameshub/uvlhub/database"
	"github.com/gameshub/uvlhub/database/model"
	"github.com/gameshub/uvlhub/util/crypto"

	"gorm.io/gorm"
)

// UserService is the credential store.
type UserService struct {
	db *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

func (s *UserService) GetById(id int) (*model.User, error) {
	user := &model.User{}
	err := s.db.Preload("Profile").First(user, id).Error
	if database.IsNotFound(err) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("load user %d: %w", id, err)
	}
	return user, nil
}

// GetByEmail looks the account up by exact email.
func (s *UserService) GetByEmail(email string) (*model.User, error) {
	user := &model.User{}
	err := s.db.Preload("Profile").Where("email = ?", email).First(user).Error
	if database.IsNotFound(err) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("load user %q: %w", email, err)
	}
	return user, nil
}

func (s *UserService) IsEmailAvailable(email string) (bool, error) {
	var count int64
	if err := s.db.Model(&model.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, err
	}
	return count == 0, nil
}

// CreateUser stores a new account with a hashed password. An empty role
// means the default one.
func (s *UserService) CreateUser(email, password string, role model.Role, profile *model.UserProfile) (*model.User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, fmt.Errorf("%w: email can not be empty", ErrInvalidInput)
	} else if password == "" {
		return nil, fmt.Errorf("%w: password can not be empty", ErrInvalidInput)
	}
	if role == "" {
		role = model.DefaultRole
	} else if _, ok := model.ParseRole(string(role)); !ok {
		return nil, ErrInvalidRole
	}
	available, err := s.IsEmailAvailable(email)
	if err != nil {
		return nil, err
	}
	if !available {
		return nil, ErrEmailInUse
	}

	hashedPassword, err := crypto.HashPasswordAsBcrypt(password)
	if err != nil {
		return nil, err
	}
	user := &model.User{
		Email:    email,
		Password: hashedPassword,
		Role:     role,
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return err
		}
		if profile == nil {
			return nil
		}
		profile.UserId = user.Id
		if err := tx.Create(profile).Error; err != nil {
			return err
		}
		user.Profile = profile
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create user %q: %w", email, err)
	}
	return user, nil
}

func (s *UserService) UpdatePassword(id int, password string) error {
	if password == "" {
		return fmt.Errorf("%w: password can not be empty", ErrInvalidInput)
	}
	hashedPassword, err := crypto.HashPasswordAsBcrypt(password)
	if err != nil {
		return err
	}
	return s.update(id, map[string]any{"password": hashedPassword})
}

func (s *UserService) update(id int, fields map[string]any) error {
	result := s.db.Model(&model.User{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
