package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/google/uuid"

	"formflow/backend/internal/dom"
	"formflow/backend/internal/engine"
	"formflow/backend/internal/models"
	"formflow/backend/internal/player"
	"formflow/backend/pkg/chrome"
	"formflow/backend/pkg/database"
)

// Runner executes macros in headless Chrome sessions and tracks each
// run as a MacroRun row. Runs are asynchronous: StartRun returns a run
// id immediately and the caller polls status.
type Runner struct {
	mu          sync.Mutex
	engine      *engine.Engine
	headless    bool
	maxSessions int
	active      map[string]context.CancelFunc
	stopSweep   chan struct{}
}

var GlobalRunner *Runner

func InitRunner(eng *engine.Engine, headless bool, maxSessions int) {
	GlobalRunner = NewRunner(eng, headless, maxSessions)
	GlobalRunner.startSweep()
	log.Println("Run service initialized")
}

func NewRunner(eng *engine.Engine, headless bool, maxSessions int) *Runner {
	if maxSessions <= 0 {
		maxSessions = 10
	}
	return &Runner{
		engine:      eng,
		headless:    headless,
		maxSessions: maxSessions,
		active:      make(map[string]context.CancelFunc),
		stopSweep:   make(chan struct{}),
	}
}

// StartRun schedules a macro for execution and returns the run id.
func (r *Runner) StartRun(macroName string, userID uint) (string, error) {
	macro, ok := r.engine.Macro(macroName)
	if !ok {
		return "", engine.ErrMacroNotFound
	}

	r.mu.Lock()
	if len(r.active) >= r.maxSessions {
		r.mu.Unlock()
		return "", fmt.Errorf("too many concurrent runs (max %d)", r.maxSessions)
	}
	runID := uuid.New().String()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	r.active[runID] = cancel
	r.mu.Unlock()

	row := models.MacroRun{
		RunID:     runID,
		MacroName: macroName,
		Status:    models.RunStatusPending,
		StartTime: time.Now(),
		Total:     len(macro.Events),
		UserID:    userID,
	}
	if err := database.DB.Create(&row).Error; err != nil {
		r.finish(runID)
		return "", fmt.Errorf("failed to create run record: %w", err)
	}

	go r.execute(ctx, runID, macro)
	return runID, nil
}

// Stop cancels an in-flight run.
func (r *Runner) Stop(runID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	cancel, ok := r.active[runID]
	if ok {
		cancel()
	}
	return ok
}

// IsRunning reports whether a run is still in flight.
func (r *Runner) IsRunning(runID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.active[runID]
	return ok
}

func (r *Runner) finish(runID string) {
	r.mu.Lock()
	if cancel, ok := r.active[runID]; ok {
		cancel()
		delete(r.active, runID)
	}
	r.mu.Unlock()
}

func (r *Runner) execute(ctx context.Context, runID string, macro models.MacroData) {
	defer r.finish(runID)

	r.updateRun(runID, func(row *models.MacroRun) {
		row.Status = models.RunStatusRunning
	})

	stats, err := r.runInChrome(ctx, macro)
	now := time.Now()
	r.updateRun(runID, func(row *models.MacroRun) {
		row.EndTime = &now
		row.Duration = int(now.Sub(row.StartTime).Milliseconds())
		row.Replayed = stats.Replayed
		row.Skipped = stats.Skipped
		if err != nil {
			row.Status = models.RunStatusFailed
			row.Error = err.Error()
		} else {
			row.Status = models.RunStatusCompleted
		}
	})

	if err != nil {
		log.Printf("Run %s failed: %v", runID, err)
	} else {
		log.Printf("Run %s completed: %d/%d events replayed, %d skipped",
			runID, stats.Replayed, stats.Total, stats.Skipped)
	}
}

func (r *Runner) runInChrome(ctx context.Context, macro models.MacroData) (player.Stats, error) {
	var stats player.Stats

	chromePath := chrome.FindChrome()
	if chromePath == "" {
		return stats, fmt.Errorf("chrome browser not found")
	}
	if macro.StartURL == "" {
		return stats, fmt.Errorf("macro %q has no start URL", macro.Name)
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx,
		chrome.AllocatorOptions(chromePath, r.headless)...)
	defer allocCancel()
	tabCtx, tabCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(log.Printf))
	defer tabCancel()

	err := chromedp.Run(tabCtx,
		chromedp.Navigate(macro.StartURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return stats, fmt.Errorf("failed to open %s: %w", macro.StartURL, err)
	}

	page, err := dom.NewChromePage(tabCtx)
	if err != nil {
		return stats, err
	}

	run := player.NewRun(page, macro, r.engine.PlayerOptions(), r.engine.Debug())
	stats = player.Play(tabCtx, run)
	if ctx.Err() != nil {
		return stats, fmt.Errorf("run cancelled: %w", ctx.Err())
	}
	return stats, nil
}

func (r *Runner) updateRun(runID string, mutate func(*models.MacroRun)) {
	var row models.MacroRun
	if err := database.DB.Where("run_id = ?", runID).First(&row).Error; err != nil {
		log.Printf("Failed to load run %s: %v", runID, err)
		return
	}
	mutate(&row)
	if err := database.DB.Save(&row).Error; err != nil {
		log.Printf("Failed to update run %s: %v", runID, err)
	}
}

// startSweep repairs run rows left in a live state by a crash or a
// missed update: rows the runner no longer tracks are marked failed.
func (r *Runner) startSweep() {
	ticker := time.NewTicker(30 * time.Second)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-r.stopSweep:
				return
			case <-ticker.C:
				r.sweepStale()
			}
		}
	}()
}

func (r *Runner) sweepStale() {
	var rows []models.MacroRun
	err := database.DB.
		Where("status IN ?", []string{models.RunStatusPending, models.RunStatusRunning}).
		Find(&rows).Error
	if err != nil {
		log.Printf("Failed to query live runs: %v", err)
		return
	}

	for _, row := range rows {
		if r.IsRunning(row.RunID) {
			continue
		}
		if time.Since(row.StartTime) < time.Minute {
			continue
		}
		now := time.Now()
		row.Status = models.RunStatusFailed
		row.Error = "run ended without a status update"
		row.EndTime = &now
		row.Duration = int(now.Sub(row.StartTime).Milliseconds())
		if err := database.DB.Save(&row).Error; err != nil {
			log.Printf("Failed to repair stale run %s: %v", row.RunID, err)
		} else {
			log.Printf("Marked stale run %s as failed", row.RunID)
		}
	}
}

func (r *Runner) Shutdown() {
	close(r.stopSweep)
	r.mu.Lock()
	for id, cancel := range r.active {
		cancel()
		delete(r.active, id)
	}
	r.mu.Unlock()
}
