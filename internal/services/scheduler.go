package services

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"formflow/backend/internal/models"
	"formflow/backend/pkg/database"
)

// SchedulerService fires macro runs at configured times. One-shot
// schedules use a timer; recurring schedules are registered with cron.
type SchedulerService struct {
	cron    *cron.Cron
	mu      sync.Mutex
	entries map[uint]cron.EntryID
	timers  map[uint]*time.Timer
}

var GlobalScheduler *SchedulerService

func InitScheduler() error {
	GlobalScheduler = &SchedulerService{
		cron:    cron.New(),
		entries: make(map[uint]cron.EntryID),
		timers:  make(map[uint]*time.Timer),
	}

	if err := GlobalScheduler.loadSchedules(); err != nil {
		return err
	}

	GlobalScheduler.cron.Start()
	log.Println("Scheduler service initialized")
	return nil
}

func (s *SchedulerService) loadSchedules() error {
	var schedules []models.Schedule
	err := database.DB.Preload("Macro").Where("status = ?", 1).Find(&schedules).Error
	if err != nil {
		return err
	}

	for _, schedule := range schedules {
		if err := s.AddSchedule(schedule); err != nil {
			log.Printf("Failed to register schedule %d: %v", schedule.ID, err)
		}
	}
	log.Printf("Loaded %d schedules", len(schedules))
	return nil
}

// AddSchedule registers a schedule. An existing registration for the
// same id is replaced.
func (s *SchedulerService) AddSchedule(schedule models.Schedule) error {
	s.RemoveSchedule(schedule.ID)

	at, err := time.ParseInLocation("2006-01-02 15:04", schedule.Date+" "+schedule.Time, time.Local)
	if err != nil {
		return fmt.Errorf("invalid schedule date/time: %w", err)
	}

	if schedule.Recurrence == "" || schedule.Recurrence == "none" {
		until := time.Until(at)
		if until <= 0 {
			return fmt.Errorf("schedule %d is in the past", schedule.ID)
		}
		id := schedule.ID
		timer := time.AfterFunc(until, func() {
			s.fire(id)
			s.expire(id)
		})
		s.mu.Lock()
		s.timers[schedule.ID] = timer
		s.mu.Unlock()
		return nil
	}

	spec, err := cronSpec(at, schedule.Recurrence)
	if err != nil {
		return err
	}
	id := schedule.ID
	entryID, err := s.cron.AddFunc(spec, func() { s.fire(id) })
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.entries[schedule.ID] = entryID
	s.mu.Unlock()

	log.Printf("Registered schedule %d: %s", schedule.ID, spec)
	return nil
}

// cronSpec maps a recurrence onto a standard 5-field cron expression
// anchored at the schedule's time (and date, for weekly/monthly).
func cronSpec(at time.Time, recurrence string) (string, error) {
	switch recurrence {
	case "daily":
		return fmt.Sprintf("%d %d * * *", at.Minute(), at.Hour()), nil
	case "weekly":
		return fmt.Sprintf("%d %d * * %d", at.Minute(), at.Hour(), int(at.Weekday())), nil
	case "monthly":
		return fmt.Sprintf("%d %d %d * *", at.Minute(), at.Hour(), at.Day()), nil
	default:
		return "", fmt.Errorf("unknown recurrence %q", recurrence)
	}
}

// RemoveSchedule drops a registration. Safe to call for ids that were
// never registered.
func (s *SchedulerService) RemoveSchedule(scheduleID uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entryID, ok := s.entries[scheduleID]; ok {
		s.cron.Remove(entryID)
		delete(s.entries, scheduleID)
	}
	if timer, ok := s.timers[scheduleID]; ok {
		timer.Stop()
		delete(s.timers, scheduleID)
	}
}

func (s *SchedulerService) fire(scheduleID uint) {
	var schedule models.Schedule
	err := database.DB.Preload("Macro").Where("id = ? AND status = ?", scheduleID, 1).
		First(&schedule).Error
	if err != nil {
		log.Printf("Failed to load schedule %d: %v", scheduleID, err)
		return
	}

	if GlobalRunner == nil {
		log.Printf("Run service not available for schedule %d", scheduleID)
		return
	}

	runID, err := GlobalRunner.StartRun(schedule.Macro.Name, schedule.UserID)
	if err != nil {
		log.Printf("Scheduled run for %q failed to start: %v", schedule.Macro.Name, err)
		return
	}
	log.Printf("Schedule %d started run %s for macro %q", scheduleID, runID, schedule.Macro.Name)
}

// expire deactivates a one-shot schedule after it has fired.
func (s *SchedulerService) expire(scheduleID uint) {
	s.mu.Lock()
	delete(s.timers, scheduleID)
	s.mu.Unlock()

	err := database.DB.Model(&models.Schedule{}).
		Where("id = ?", scheduleID).Update("status", 0).Error
	if err != nil {
		log.Printf("Failed to deactivate schedule %d: %v", scheduleID, err)
	}
}

func (s *SchedulerService) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
	s.mu.Lock()
	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
	s.mu.Unlock()
	log.Println("Scheduler service stopped")
}
