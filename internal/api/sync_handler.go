package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/shaiso/ynab-portal/internal/domain"
	ynabsync "github.com/shaiso/ynab-portal/internal/sync"
	"github.com/shaiso/ynab-portal/internal/telemetry"
)

// syncNow выполняет задачу синхронно и записывает run.
// GET|POST /ynab/update-{job}?force=true
func (h *Handler) syncNow(job domain.Job) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		force, _ := strconv.ParseBool(r.URL.Query().Get("force"))
		ctx := r.Context()

		run := domain.NewSyncRun(job, domain.TriggerAPI)
		run.Force = force
		run.MarkRunning()
		if h.runs != nil {
			if err := h.runs.Create(ctx, run); HandleRepoError(w, h.logger, err, "") {
				return
			}
		}

		logger := telemetry.WithJob(telemetry.WithRunID(h.logger, run.ID.String()), job.String())
		result, syncErr := h.syncer.Run(telemetry.WithLogger(ctx, logger), job, ynabsync.Options{Force: force})
		if syncErr != nil {
			run.MarkFailed(syncErr.Error())
		} else {
			raw, err := json.Marshal(result)
			if err != nil {
				InternalError(w, h.logger, err)
				return
			}
			run.MarkSucceeded(raw)
		}
		h.finishRun(ctx, run)

		if HandleSyncError(w, h.logger, syncErr) {
			return
		}
		Raw(w, result)
	}
}

// finishRun сохраняет итог run, даже если клиент отключился.
func (h *Handler) finishRun(ctx context.Context, run *domain.SyncRun) {
	h.metrics.IncSyncRun(run.Job.String(), string(run.Status))
	if h.runs == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := h.runs.Update(ctx, run); err != nil {
		h.logger.Error("failed to save run", "run_id", run.ID, "error", err)
	}
}
