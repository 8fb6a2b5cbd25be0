package service

import (
	"fmt"

	"github.com/gameshub/uvlhub/database"
	"github.com/gameshub/uvlhub/database/model"

	"gorm.io/gorm"
)

type UserAdminService struct {
	db *gorm.DB
}

func NewUserAdminService(db *gorm.DB) *UserAdminService {
	return &UserAdminService{db: db}
}

type UserDTO struct {
	Id               int        `json:"id"`
	Email            string     `json:"email"`
	Role             model.Role `json:"role"`
	TwoFactorEnabled bool       `json:"twoFactorEnabled"`
	Name             string     `json:"name"`
}

func toDTO(u *model.User) UserDTO {
	dto := UserDTO{Id: u.Id, Email: u.Email, Role: u.Role, TwoFactorEnabled: u.TwoFactorEnabled}
	if u.Profile != nil {
		dto.Name = u.Profile.Name + " " + u.Profile.Surname
	}
	return dto
}

// ListUsers returns every account ordered by id.
func (s *UserAdminService) ListUsers() ([]UserDTO, error) {
	var users []model.User
	if err := s.db.Preload("Profile").Order("id ASC").Find(&users).Error; err != nil {
		return nil, err
	}
	out := make([]UserDTO, 0, len(users))
	for i := range users {
		out = append(out, toDTO(&users[i]))
	}
	return out, nil
}

// UpdateRole sets the role of account id. The stored role is left untouched
// when newRole is not a known role.
func (s *UserAdminService) UpdateRole(id int, newRole string) (UserDTO, error) {
	role, ok := model.ParseRole(newRole)
	if !ok {
		return UserDTO{}, ErrInvalidRole
	}
	var u model.User
	err := s.db.Preload("Profile").First(&u, id).Error
	if database.IsNotFound(err) {
		return UserDTO{}, ErrNotFound
	} else if err != nil {
		return UserDTO{}, fmt.Errorf("load user %d: %w", id, err)
	}
	if err := s.db.Model(&u).Update("role", role).Error; err != nil {
		return UserDTO{}, err
	}
	u.Role = role
	return toDTO(&u), nil
}
