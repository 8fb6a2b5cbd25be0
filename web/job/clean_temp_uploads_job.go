package job

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/gameshub/uvlhub/config"
	"github.com/gameshub/uvlhub/logger"
)

// tempUploadMaxAge is how long a staged upload may wait for its dataset.
const tempUploadMaxAge = 24 * time.Hour

// CleanTempUploadsJob deletes staged uploads that were never attached to a
// dataset, and the user folders they leave empty.
type CleanTempUploadsJob struct {
	maxAge time.Duration
	now    func() time.Time
}

func NewCleanTempUploadsJob() *CleanTempUploadsJob {
	return &CleanTempUploadsJob{
		maxAge: tempUploadMaxAge,
		now:    time.Now,
	}
}

func (j *CleanTempUploadsJob) Run() {
	root := config.GetTempRoot()
	cutoff := j.now().Add(-j.maxAge)

	users, err := os.ReadDir(root)
	if errors.Is(err, fs.ErrNotExist) {
		return
	} else if err != nil {
		logger.Warning("clean temp uploads job err:", err)
		return
	}

	removed := 0
	for _, u := range users {
		if !u.IsDir() {
			continue
		}
		dir := filepath.Join(root, u.Name())
		files, err := os.ReadDir(dir)
		if err != nil {
			logger.Warning("clean temp uploads job err:", err)
			continue
		}
		left := len(files)
		for _, f := range files {
			info, err := f.Info()
			if err != nil || info.ModTime().After(cutoff) {
				continue
			}
			if err := os.RemoveAll(filepath.Join(dir, f.Name())); err != nil {
				logger.Warning("clean temp uploads job err:", err)
				continue
			}
			left--
			removed++
		}
		if left == 0 {
			_ = os.Remove(dir)
		}
	}
	if removed > 0 {
		logger.Infof("removed %d stale temp uploads", removed)
	}
}
