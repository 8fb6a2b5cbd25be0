package job

import (
	"context"
	"time"

	"github.com/gameshub/uvlhub/logger"
	"github.com/gameshub/uvlhub/util/common"
	"github.com/gameshub/uvlhub/web/service"
)

const syncTimeout = 5 * time.Minute

// SyncDepositionsJob fetches the DOI of datasets that were deposited but
// whose publication did not report one.
type SyncDepositionsJob struct {
	datasets *service.DatasetService
}

func NewSyncDepositionsJob(datasets *service.DatasetService) *SyncDepositionsJob {
	return &SyncDepositionsJob{datasets: datasets}
}

func (j *SyncDepositionsJob) Run() {
	defer common.Recover("sync depositions job")
	pending, err := j.datasets.GetPendingDepositions()
	if err != nil {
		logger.Warning("sync depositions job err:", err)
		return
	}
	if len(pending) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
	defer cancel()
	synced := 0
	for i := range pending {
		ds := &pending[i]
		doi, err := j.datasets.SyncDoi(ctx, ds)
		if err != nil {
			logger.Warningf("sync deposition %s of dataset %d failed: %v", ds.DSMetaData.DepositionId, ds.Id, err)
			continue
		}
		if doi != "" {
			synced++
		}
	}
	logger.Infof("synchronized %d of %d pending depositions", synced, len(pending))
}
