package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/gameshub/uvlhub/database"
	"github.com/gameshub/uvlhub/database/model"
	"github.com/gameshub/uvlhub/web/cache"

	"gorm.io/gorm"
)

const maxRecommendations = 5

// RecommendationService suggests other datasets of the same owner, most
// downloaded first.
type RecommendationService struct {
	db    *gorm.DB
	cache *cache.Cache
}

func NewRecommendationService(db *gorm.DB, c *cache.Cache) *RecommendationService {
	return &RecommendationService{db: db, cache: c}
}

func (s *RecommendationService) Recommend(ctx context.Context, datasetId int) ([]DatasetSummary, error) {
	var ds model.DataSet
	err := s.db.First(&ds, datasetId).Error
	if database.IsNotFound(err) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("%s%d", cache.KeyRecommendationsPrefix, datasetId)
	return cached(ctx, s.cache, key, cache.TTLRecommendations, func() ([]DatasetSummary, error) {
		var ids []int
		err := s.db.Model(&model.DataSet{}).
			Where("user_id = ? AND id <> ?", ds.UserId, ds.Id).
			Pluck("id", &ids).Error
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			return []DatasetSummary{}, nil
		}

		var rows []downloadCount
		err = s.db.Model(&model.DSDownloadRecord{}).
			Select("data_set_id, COUNT(*) AS downloads").
			Where("data_set_id IN ?", ids).
			Group("data_set_id").
			Scan(&rows).Error
		if err != nil {
			return nil, err
		}
		downloads := make(map[int]int64, len(rows))
		for _, r := range rows {
			downloads[r.DataSetId] = r.Downloads
		}

		counts := make([]downloadCount, len(ids))
		for i, id := range ids {
			counts[i] = downloadCount{DataSetId: id, Downloads: downloads[id]}
		}
		sort.Slice(counts, func(i, j int) bool {
			if counts[i].Downloads != counts[j].Downloads {
				return counts[i].Downloads > counts[j].Downloads
			}
			return counts[i].DataSetId < counts[j].DataSetId
		})
		if len(counts) > maxRecommendations {
			counts = counts[:maxRecommendations]
		}
		return summaries(s.db, counts)
	})
}
