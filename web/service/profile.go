package service

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/gameshub/uvlhub/database"
	"github.com/gameshub/uvlhub/database/model"

	"gorm.io/gorm"
)

var orcidPattern = regexp.MustCompile(`^\d{4}-\d{4}-\d{4}-\d{3}[\dX]$`)

type ProfileService struct {
	db *gorm.DB
}

func NewProfileService(db *gorm.DB) *ProfileService {
	return &ProfileService{db: db}
}

func (s *ProfileService) Get(userId int) (*model.UserProfile, error) {
	p := &model.UserProfile{}
	err := s.db.Where("user_id = ?", userId).First(p).Error
	if database.IsNotFound(err) {
		return nil, ErrNotFound
	}
	return p, err
}

// Update replaces the editable fields of the user's profile, creating the
// profile if the account has none.
func (s *ProfileService) Update(userId int, form model.UserProfile) (*model.UserProfile, error) {
	form.Name = strings.TrimSpace(form.Name)
	form.Surname = strings.TrimSpace(form.Surname)
	form.Affiliation = strings.TrimSpace(form.Affiliation)
	form.Orcid = strings.TrimSpace(form.Orcid)
	if form.Name == "" || form.Surname == "" {
		return nil, fmt.Errorf("%w: name and surname are required", ErrInvalidInput)
	}
	if form.Orcid != "" && !orcidPattern.MatchString(form.Orcid) {
		return nil, fmt.Errorf("%w: ORCID %q", ErrInvalidInput, form.Orcid)
	}

	p, err := s.Get(userId)
	if errors.Is(err, ErrNotFound) {
		p = &model.UserProfile{UserId: userId}
	} else if err != nil {
		return nil, err
	}
	p.Name = form.Name
	p.Surname = form.Surname
	p.Affiliation = form.Affiliation
	p.Orcid = form.Orcid
	if err := s.db.Save(p).Error; err != nil {
		return nil, err
	}
	return p, nil
}
