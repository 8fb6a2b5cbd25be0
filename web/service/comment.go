package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/gameshub/uvlhub/database"
	"github.com/gameshub/uvlhub/database/model"

	"gorm.io/gorm"
)

const maxCommentLength = 2000

// CommentService manages dataset comments. Comments are visible when
// created; moderators may hide, approve or delete them.
type CommentService struct {
	db *gorm.DB
}

func NewCommentService(db *gorm.DB) *CommentService {
	return &CommentService{db: db}
}

func (s *CommentService) Create(datasetId int, user *model.User, content string) (*model.DatasetComment, error) {
	if user == nil {
		return nil, ErrUnauthorized
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyComment
	}
	if len(content) > maxCommentLength {
		return nil, fmt.Errorf("%w: comment is too long", ErrInvalidInput)
	}
	var count int64
	if err := s.db.Model(&model.DataSet{}).Where("id = ?", datasetId).Count(&count).Error; err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, ErrNotFound
	}
	comment := &model.DatasetComment{
		DataSetId: datasetId,
		UserId:    user.Id,
		Content:   content,
		CreatedAt: time.Now().UTC(),
		IsVisible: true,
	}
	if err := s.db.Create(comment).Error; err != nil {
		return nil, err
	}
	comment.User = user
	return comment, nil
}

// List returns the comments of a dataset, oldest first. Hidden comments
// are included only for includeHidden.
func (s *CommentService) List(datasetId int, includeHidden bool) ([]model.DatasetComment, error) {
	q := s.db.Preload("User.Profile").Where("data_set_id = ?", datasetId)
	if !includeHidden {
		q = q.Where("is_visible = ?", true)
	}
	var comments []model.DatasetComment
	err := q.Order("created_at ASC").Order("id ASC").Find(&comments).Error
	return comments, err
}

func (s *CommentService) Get(id int) (*model.DatasetComment, error) {
	comment := &model.DatasetComment{}
	err := s.db.First(comment, id).Error
	if database.IsNotFound(err) {
		return nil, ErrNotFound
	}
	return comment, err
}

func (s *CommentService) moderate(moderator *model.User, id int) (*model.DatasetComment, error) {
	if moderator == nil {
		return nil, ErrUnauthorized
	}
	if !moderator.CanModerate() {
		return nil, ErrForbidden
	}
	return s.Get(id)
}

func (s *CommentService) setVisible(moderator *model.User, id int, visible bool) (*model.DatasetComment, error) {
	comment, err := s.moderate(moderator, id)
	if err != nil {
		return nil, err
	}
	if err := s.db.Model(comment).Update("is_visible", visible).Error; err != nil {
		return nil, err
	}
	comment.IsVisible = visible
	return comment, nil
}

func (s *CommentService) Approve(moderator *model.User, id int) (*model.DatasetComment, error) {
	return s.setVisible(moderator, id, true)
}

func (s *CommentService) Hide(moderator *model.User, id int) (*model.DatasetComment, error) {
	return s.setVisible(moderator, id, false)
}

// Delete removes the comment and returns the dataset it belonged to.
func (s *CommentService) Delete(moderator *model.User, id int) (int, error) {
	comment, err := s.moderate(moderator, id)
	if err != nil {
		return 0, err
	}
	if err := s.db.Delete(comment).Error; err != nil {
		return 0, err
	}
	return comment.DataSetId, nil
}
