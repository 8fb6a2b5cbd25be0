package service

import (
	"archive/zip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/gameshub/uvlhub/config"
	"github.com/gameshub/uvlhub/database"
	"github.com/gameshub/uvlhub/database/model"
	"github.com/gameshub/uvlhub/logger"
	"github.com/gameshub/uvlhub/web/cache"

	"gorm.io/gorm"
)

type AuthorForm struct {
	Name        string `json:"name" form:"name"`
	Affiliation string `json:"affiliation" form:"affiliation"`
	Orcid       string `json:"orcid" form:"orcid"`
}

// DatasetForm is the upload form. Files name entries of the user's temp
// folder; when empty every staged file is used.
type DatasetForm struct {
	Title           string       `json:"title" form:"title"`
	Description     string       `json:"description" form:"desc"`
	PublicationType string       `json:"publicationType" form:"publication_type"`
	PublicationDoi  string       `json:"publicationDoi" form:"publication_doi"`
	Tags            string       `json:"tags" form:"tags"`
	Authors         []AuthorForm `json:"authors" form:"-"`
	Files           []string     `json:"files" form:"files"`
}

// DatasetSummary is the listing shape used by trending and recommendations.
type DatasetSummary struct {
	Id        int       `json:"id"`
	Title     string    `json:"title"`
	Doi       string    `json:"doi,omitempty"`
	Downloads int64     `json:"downloads"`
	CreatedAt time.Time `json:"createdAt"`
}

// DepositResult describes what happened when a dataset was sent to the
// deposition API.
type DepositResult struct {
	DepositionId DepositionId `json:"depositionId"`
	Doi          string       `json:"doi,omitempty"`
}

type DatasetService struct {
	db     *gorm.DB
	cache  *cache.Cache
	zenodo *ZenodoService
}

func NewDatasetService(db *gorm.DB, c *cache.Cache, zenodo *ZenodoService) *DatasetService {
	return &DatasetService{db: db, cache: c, zenodo: zenodo}
}

// SaveTempFile stages an uploaded CSV in the user's temp folder and returns
// the stored name. Files whose header does not match are removed again.
func (s *DatasetService) SaveTempFile(userId int, filename string, src io.Reader) (string, error) {
	filename = filepath.Base(filename)
	if !strings.HasSuffix(filename, ".csv") {
		return "", fmt.Errorf("%w: %q is not a .csv file", ErrInvalidCSV, filename)
	}
	dir := config.GetTempFolder(userId)
	if err := os.MkdirAll(dir, fs.ModePerm); err != nil {
		return "", err
	}
	name := uniqueName(dir, filename)
	path := filepath.Join(dir, name)

	dst, err := os.Create(path)
	if err != nil {
		return "", err
	}
	_, err = io.Copy(dst, src)
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = validateCSVFile(path)
	}
	if err != nil {
		_ = os.Remove(path)
		return "", err
	}
	return name, nil
}

// DeleteTempFile removes a staged file.
func (s *DatasetService) DeleteTempFile(userId int, filename string) error {
	path := filepath.Join(config.GetTempFolder(userId), filepath.Base(filename))
	err := os.Remove(path)
	if errors.Is(err, os.ErrNotExist) {
		return ErrNotFound
	}
	return err
}

func (s *DatasetService) ListTempFiles(userId int) ([]string, error) {
	entries, err := os.ReadDir(config.GetTempFolder(userId))
	if errors.Is(err, os.ErrNotExist) {
		return []string{}, nil
	} else if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Create stores the dataset and moves its files out of the temp folder.
// Repeated file names are stored once.
// The uploader becomes the first author.
func (s *DatasetService) Create(ctx context.Context, user *model.User, form DatasetForm) (*model.DataSet, error) {
	if user == nil {
		return nil, ErrUnauthorized
	}
	title := strings.TrimSpace(form.Title)
	description := strings.TrimSpace(form.Description)
	if title == "" || description == "" {
		return nil, fmt.Errorf("%w: title and description are required", ErrInvalidInput)
	}
	pubType, ok := model.ParsePublicationType(form.PublicationType)
	if !ok {
		return nil, fmt.Errorf("%w: publication type %q", ErrInvalidInput, form.PublicationType)
	}
	files := form.Files
	if len(files) == 0 {
		var err error
		if files, err = s.ListTempFiles(user.Id); err != nil {
			return nil, err
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: a dataset needs at least one file", ErrInvalidInput)
	}
	names := make([]string, 0, len(files))
	for _, f := range files {
		if name := filepath.Base(f); !slices.Contains(names, name) {
			names = append(names, name)
		}
	}
	tempDir := config.GetTempFolder(user.Id)
	for _, name := range names {
		if _, err := os.Stat(filepath.Join(tempDir, name)); err != nil {
			return nil, fmt.Errorf("staged file %q: %w", name, ErrNotFound)
		}
	}

	authors := []model.Author{}
	if p := user.Profile; p != nil {
		authors = append(authors, model.Author{
			Name:        p.Surname + ", " + p.Name,
			Affiliation: p.Affiliation,
			Orcid:       p.Orcid,
		})
	}
	for _, a := range form.Authors {
		if strings.TrimSpace(a.Name) == "" {
			continue
		}
		authors = append(authors, model.Author{Name: strings.TrimSpace(a.Name), Affiliation: a.Affiliation, Orcid: a.Orcid})
	}

	ds := &model.DataSet{
		UserId: user.Id,
		DSMetaData: model.DSMetaData{
			Title:           title,
			Description:     description,
			PublicationType: pubType,
			PublicationDoi:  strings.TrimSpace(form.PublicationDoi),
			Tags:            strings.TrimSpace(form.Tags),
			Authors:         authors,
		},
	}
	// Files are copied while the rows are written. Staged sources are only
	// removed after commit, so a rollback leaves them in place.
	var dir string
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(ds).Error; err != nil {
			return err
		}
		dir = config.GetDatasetFolder(user.Id, ds.Id)
		if err := os.MkdirAll(dir, fs.ModePerm); err != nil {
			return err
		}
		for _, name := range names {
			checksum, size, err := copyFile(filepath.Join(tempDir, name), filepath.Join(dir, name))
			if err != nil {
				return err
			}
			hf := model.Hubfile{DataSetId: ds.Id, Name: name, Checksum: checksum, Size: size}
			if err := tx.Create(&hf).Error; err != nil {
				return err
			}
			ds.Files = append(ds.Files, hf)
		}
		return nil
	})
	if err != nil {
		if dir != "" {
			if rmErr := os.RemoveAll(dir); rmErr != nil {
				logger.Warning("failed to remove dataset folder after rollback:", rmErr)
			}
		}
		ds.Files = nil
		return nil, fmt.Errorf("create dataset: %w", err)
	}
	for _, name := range names {
		if err := os.Remove(filepath.Join(tempDir, name)); err != nil {
			logger.Warning("failed to remove staged file:", err)
		}
	}
	// only succeeds once nothing else is staged
	_ = os.Remove(tempDir)
	s.invalidate(ctx)
	logger.Infof("dataset %d created by user %d with %d files", ds.Id, user.Id, len(ds.Files))
	return ds, nil
}

// copyFile copies src to dst and returns the sha256 and size of the content.
func copyFile(src, dst string) (string, int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", 0, err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return "", 0, err
	}
	h := sha256.New()
	size, err := io.Copy(io.MultiWriter(out, h), in)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), size, nil
}

// Deposit sends the dataset to the deposition API: create, upload every
// file, publish. The deposition id is stored as soon as it is known, so a
// failure part way leaves the dataset unsynchronized and SyncDoi can finish
// the work later.
func (s *DatasetService) Deposit(ctx context.Context, ds *model.DataSet) (*DepositResult, error) {
	dep, err := s.zenodo.CreateDeposition(ctx, ds)
	if err != nil {
		return nil, err
	}
	result := &DepositResult{DepositionId: dep.Id}
	if err := s.updateMetaData(ds, map[string]any{"deposition_id": string(dep.Id)}); err != nil {
		return result, err
	}
	ds.DSMetaData.DepositionId = string(dep.Id)

	result.Doi, err = s.completeDeposition(ctx, ds, dep)
	return result, err
}

// completeDeposition uploads the files dep does not list yet, publishes it
// and stores the DOI on ds.
func (s *DatasetService) completeDeposition(ctx context.Context, ds *model.DataSet, dep *Deposition) (string, error) {
	dir := config.GetDatasetFolder(ds.UserId, ds.Id)
	for _, f := range ds.Files {
		if slices.Contains(dep.Files, f.Name) {
			continue
		}
		if err := s.zenodo.UploadFile(ctx, dep.Id, filepath.Join(dir, f.Name)); err != nil {
			return "", err
		}
	}
	published, err := s.zenodo.PublishDeposition(ctx, dep.Id)
	if err != nil {
		return "", err
	}
	doi := published.Doi
	if doi == "" {
		if doi, err = s.zenodo.GetDOI(ctx, dep.Id); err != nil {
			return "", err
		}
	}
	if doi != "" {
		if err := s.SetDatasetDoi(ctx, ds, doi); err != nil {
			return "", err
		}
	}
	return doi, nil
}

func (s *DatasetService) updateMetaData(ds *model.DataSet, fields map[string]any) error {
	return s.db.Model(&model.DSMetaData{}).Where("id = ?", ds.DSMetaDataId).Updates(fields).Error
}

func (s *DatasetService) SetDatasetDoi(ctx context.Context, ds *model.DataSet, doi string) error {
	if err := s.updateMetaData(ds, map[string]any{"dataset_doi": doi}); err != nil {
		return err
	}
	ds.DSMetaData.DatasetDoi = doi
	s.invalidate(ctx)
	return nil
}

func (s *DatasetService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateDatasets(ctx); err != nil {
		logger.Warning("failed to invalidate dataset cache:", err)
	}
}

func (s *DatasetService) preload() *gorm.DB {
	return s.db.Preload("DSMetaData").Preload("DSMetaData.Authors").Preload("Files").Preload("User.Profile")
}

func (s *DatasetService) GetById(id int) (*model.DataSet, error) {
	ds := &model.DataSet{}
	err := s.preload().First(ds, id).Error
	if database.IsNotFound(err) {
		return nil, ErrNotFound
	}
	return ds, err
}

func (s *DatasetService) byUser(userId int, synchronized bool) ([]model.DataSet, error) {
	cond := "dataset_doi IS NULL OR dataset_doi = ''"
	if synchronized {
		cond = "dataset_doi IS NOT NULL AND dataset_doi <> ''"
	}
	metaIds := s.db.Model(&model.DSMetaData{}).Select("id").Where(cond)
	list := []model.DataSet{}
	err := s.preload().
		Where("user_id = ? AND ds_meta_data_id IN (?)", userId, metaIds).
		Order("created_at DESC").
		Find(&list).Error
	return list, err
}

func (s *DatasetService) GetSynchronized(userId int) ([]model.DataSet, error) {
	return s.byUser(userId, true)
}

func (s *DatasetService) GetUnsynchronized(userId int) ([]model.DataSet, error) {
	return s.byUser(userId, false)
}

// GetUnsynchronizedDataset returns the user's own dataset id if it has no DOI.
func (s *DatasetService) GetUnsynchronizedDataset(userId, id int) (*model.DataSet, error) {
	ds, err := s.GetById(id)
	if err != nil {
		return nil, err
	}
	if ds.UserId != userId || ds.IsSynchronized() {
		return nil, ErrNotFound
	}
	return ds, nil
}

// GetPendingDepositions lists datasets deposited but still without a DOI.
func (s *DatasetService) GetPendingDepositions() ([]model.DataSet, error) {
	metaIds := s.db.Model(&model.DSMetaData{}).Select("id").
		Where("deposition_id <> '' AND (dataset_doi IS NULL OR dataset_doi = '')")
	var list []model.DataSet
	err := s.preload().Where("ds_meta_data_id IN (?)", metaIds).Find(&list).Error
	return list, err
}

// SyncDoi stores the DOI of a pending dataset. A deposition that was never
// published, because an upload or the publish step failed, is completed
// first.
func (s *DatasetService) SyncDoi(ctx context.Context, ds *model.DataSet) (string, error) {
	dep, err := s.zenodo.GetDeposition(ctx, DepositionId(ds.DSMetaData.DepositionId))
	if err != nil {
		return "", err
	}
	if dep.Doi != "" {
		return dep.Doi, s.SetDatasetDoi(ctx, ds, dep.Doi)
	}
	logger.Infof("resuming deposition %s of dataset %d", dep.Id, ds.Id)
	return s.completeDeposition(ctx, ds, dep)
}

// ResolveDoi follows DOI mappings. moved is true when doi was retired in
// favour of the returned one.
func (s *DatasetService) ResolveDoi(doi string) (string, bool, error) {
	var m model.DOIMapping
	err := s.db.Where("dataset_doi_old = ?", doi).First(&m).Error
	if database.IsNotFound(err) {
		return doi, false, nil
	} else if err != nil {
		return "", false, err
	}
	return m.DatasetDoiNew, true, nil
}

func (s *DatasetService) AddDoiMapping(oldDoi, newDoi string) error {
	if oldDoi == "" || newDoi == "" || oldDoi == newDoi {
		return fmt.Errorf("%w: old and new doi must be set and differ", ErrInvalidInput)
	}
	return s.db.Create(&model.DOIMapping{DatasetDoiOld: oldDoi, DatasetDoiNew: newDoi}).Error
}

func (s *DatasetService) GetByDoi(doi string) (*model.DataSet, error) {
	var md model.DSMetaData
	err := s.db.Where("dataset_doi = ?", doi).First(&md).Error
	if database.IsNotFound(err) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}
	ds := &model.DataSet{}
	err = s.preload().Where("ds_meta_data_id = ?", md.Id).First(ds).Error
	if database.IsNotFound(err) {
		return nil, ErrNotFound
	}
	return ds, err
}

// WriteZip writes the dataset's files as a zip archive rooted at
// dataset_<id>/.
func (s *DatasetService) WriteZip(ds *model.DataSet, w io.Writer) error {
	root := config.GetDatasetFolder(ds.UserId, ds.Id)
	prefix := fmt.Sprintf("dataset_%d", ds.Id)
	zw := zip.NewWriter(w)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		entry, err := zw.Create(filepath.ToSlash(filepath.Join(prefix, rel)))
		if err != nil {
			return err
		}
		_, err = io.Copy(entry, f)
		return err
	})
	if errors.Is(err, fs.ErrNotExist) {
		err = ErrNotFound
	}
	if err != nil {
		return err
	}
	return zw.Close()
}

// RecordDownload stores at most one record per user, dataset and cookie.
func (s *DatasetService) RecordDownload(ctx context.Context, userId *int, datasetId int, cookie string, now time.Time) (bool, error) {
	q := s.db.Model(&model.DSDownloadRecord{}).Where("data_set_id = ? AND download_cookie = ?", datasetId, cookie)
	if userId == nil {
		q = q.Where("user_id IS NULL")
	} else {
		q = q.Where("user_id = ?", *userId)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}
	rec := &model.DSDownloadRecord{UserId: userId, DataSetId: datasetId, DownloadDate: now.UTC(), DownloadCookie: cookie}
	if err := s.db.Create(rec).Error; err != nil {
		return false, err
	}
	s.invalidate(ctx)
	return true, nil
}

// RecordView stores at most one record per user, dataset and cookie.
func (s *DatasetService) RecordView(userId *int, datasetId int, cookie string, now time.Time) error {
	q := s.db.Model(&model.DSViewRecord{}).Where("data_set_id = ? AND view_cookie = ?", datasetId, cookie)
	if userId == nil {
		q = q.Where("user_id IS NULL")
	} else {
		q = q.Where("user_id = ?", *userId)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil || count > 0 {
		return err
	}
	return s.db.Create(&model.DSViewRecord{UserId: userId, DataSetId: datasetId, ViewDate: now.UTC(), ViewCookie: cookie}).Error
}

func (s *DatasetService) CountDownloads(datasetId int) (int64, error) {
	var n int64
	err := s.db.Model(&model.DSDownloadRecord{}).Where("data_set_id = ?", datasetId).Count(&n).Error
	return n, err
}

func (s *DatasetService) CountViews(datasetId int) (int64, error) {
	var n int64
	err := s.db.Model(&model.DSViewRecord{}).Where("data_set_id = ?", datasetId).Count(&n).Error
	return n, err
}

type downloadCount struct {
	DataSetId int
	Downloads int64
}

// Trending ranks datasets by downloads recorded in the last days before now.
func (s *DatasetService) Trending(ctx context.Context, days, limit int, now time.Time) ([]DatasetSummary, error) {
	if days <= 0 {
		days = 7
	}
	if limit <= 0 {
		limit = 5
	}
	key := fmt.Sprintf("%s%d:%d", cache.KeyTrendingPrefix, days, limit)
	return cached(ctx, s.cache, key, cache.TTLTrending, func() ([]DatasetSummary, error) {
		var counts []downloadCount
		err := s.db.Model(&model.DSDownloadRecord{}).
			Select("data_set_id, COUNT(*) AS downloads").
			Where("download_date >= ?", now.UTC().AddDate(0, 0, -days)).
			Group("data_set_id").
			Order("downloads DESC, data_set_id ASC").
			Limit(limit).
			Scan(&counts).Error
		if err != nil {
			return nil, err
		}
		return summaries(s.db, counts)
	})
}

func summaries(db *gorm.DB, counts []downloadCount) ([]DatasetSummary, error) {
	out := make([]DatasetSummary, 0, len(counts))
	if len(counts) == 0 {
		return out, nil
	}
	ids := make([]int, len(counts))
	for i, c := range counts {
		ids[i] = c.DataSetId
	}
	var list []model.DataSet
	if err := db.Preload("DSMetaData").Find(&list, ids).Error; err != nil {
		return nil, err
	}
	byId := make(map[int]*model.DataSet, len(list))
	for i := range list {
		byId[list[i].Id] = &list[i]
	}
	for _, c := range counts {
		ds, ok := byId[c.DataSetId]
		if !ok {
			continue
		}
		out = append(out, DatasetSummary{
			Id:        ds.Id,
			Title:     ds.DSMetaData.Title,
			Doi:       ds.DSMetaData.DatasetDoi,
			Downloads: c.Downloads,
			CreatedAt: ds.CreatedAt,
		})
	}
	return out, nil
}
