// Package models defines the GORM-backed job store records.
package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// JobStatus is a migration job lifecycle state.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobStopped   JobStatus = "stopped"
)

// jobTransitions is the allowed state machine. Terminal states have no
// outgoing edges.
var jobTransitions = map[JobStatus][]JobStatus{
	JobPending: {JobRunning, JobFailed},
	JobRunning: {JobCompleted, JobFailed, JobStopped},
}

// CanTransition reports whether the status may move to next.
func (s JobStatus) CanTransition(next JobStatus) bool {
	for _, allowed := range jobTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether the status is an end state.
func (s JobStatus) Terminal() bool {
	return len(jobTransitions[s]) == 0
}

// MigrationStrategy selects how a job reads its source.
type MigrationStrategy string

const (
	StrategyFull        MigrationStrategy = "full"
	StrategyIncremental MigrationStrategy = "incremental"
	StrategyHybrid      MigrationStrategy = "hybrid"
)

// MigrationJob is one migration run.
type MigrationJob struct {
	// ID is the job's UUID, assigned on creation.
	ID string `gorm:"primaryKey;type:varchar(36)"`

	// ConfigName names the mapping configuration the job runs.
	ConfigName string `gorm:"index;not null"`

	// TargetIndex is the destination index.
	TargetIndex string `gorm:"not null"`

	// Strategy is full, incremental, or hybrid.
	Strategy MigrationStrategy `gorm:"not null"`

	// Status is the job's lifecycle state.
	Status JobStatus `gorm:"index;not null;default:pending"`

	// TotalRecords is the source row count measured at job start.
	TotalRecords int64

	// ProcessedRecords counts rows successfully loaded.
	ProcessedRecords int64

	// FailedRecords counts rows dead-lettered.
	FailedRecords int64

	// Watermark is the high-water mark consumed by incremental runs,
	// RFC3339.
	Watermark string

	// ErrorMessage holds the failure cause for failed jobs.
	ErrorMessage string

	// StartedAt is when the job entered running.
	StartedAt *time.Time

	// FinishedAt is when the job reached a terminal state.
	FinishedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// BeforeCreate assigns the job UUID.
func (j *MigrationJob) BeforeCreate(tx *gorm.DB) error {
	if j.ID == "" {
		j.ID = uuid.New().String()
	}
	return nil
}

// Create inserts the job record.
func (j *MigrationJob) Create(db *gorm.DB) error {
	if err := db.Create(j).Error; err != nil {
		return fmt.Errorf("failed to create migration job: %w", err)
	}
	return nil
}

// Get fetches the job by ID.
func (j *MigrationJob) Get(db *gorm.DB) error {
	if err := db.First(j, "id = ?", j.ID).Error; err != nil {
		return fmt.Errorf("failed to get migration job %s: %w", j.ID, err)
	}
	return nil
}

// Transition moves the job to next, enforcing the state machine and
// stamping started/finished times.
func (j *MigrationJob) Transition(db *gorm.DB, next JobStatus) error {
	if !j.Status.CanTransition(next) {
		return fmt.Errorf("invalid job transition %s -> %s", j.Status, next)
	}

	now := time.Now().UTC()
	updates := map[string]any{"status": next}
	switch next {
	case JobRunning:
		updates["started_at"] = &now
	case JobCompleted, JobFailed, JobStopped:
		updates["finished_at"] = &now
	}

	if err := db.Model(j).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to transition job %s to %s: %w", j.ID, next, err)
	}
	j.Status = next
	return nil
}

// Fail moves the job to failed and records the cause.
func (j *MigrationJob) Fail(db *gorm.DB, cause error) error {
	if err := j.Transition(db, JobFailed); err != nil {
		return err
	}
	if err := db.Model(j).Update("error_message", cause.Error()).Error; err != nil {
		return fmt.Errorf("failed to record job error: %w", err)
	}
	j.ErrorMessage = cause.Error()
	return nil
}

// AddProgress increments the processed and failed counters atomically
// so concurrent status reads never see torn counts.
func (j *MigrationJob) AddProgress(db *gorm.DB, processed, failed int64) error {
	err := db.Model(j).Updates(map[string]any{
		"processed_records": gorm.Expr("processed_records + ?", processed),
		"failed_records":    gorm.Expr("failed_records + ?", failed),
	}).Error
	if err != nil {
		return fmt.Errorf("failed to update job progress: %w", err)
	}
	j.ProcessedRecords += processed
	j.FailedRecords += failed
	return nil
}

// SetTotal records the measured source row count.
func (j *MigrationJob) SetTotal(db *gorm.DB, total int64) error {
	if err := db.Model(j).Update("total_records", total).Error; err != nil {
		return fmt.Errorf("failed to record job total: %w", err)
	}
	j.TotalRecords = total
	return nil
}

// SetWatermark persists the incremental high-water mark.
func (j *MigrationJob) SetWatermark(db *gorm.DB, watermark string) error {
	if err := db.Model(j).Update("watermark", watermark).Error; err != nil {
		return fmt.Errorf("failed to record job watermark: %w", err)
	}
	j.Watermark = watermark
	return nil
}

// LatestWatermark returns the most recent watermark recorded by a
// completed job for the named configuration, or empty when none exists.
func LatestWatermark(db *gorm.DB, configName string) (string, error) {
	var job MigrationJob
	err := db.Where("config_name = ? AND status = ? AND watermark <> ''", configName, JobCompleted).
		Order("finished_at DESC").
		First(&job).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return "", nil
		}
		return "", fmt.Errorf("failed to look up watermark: %w", err)
	}
	return job.Watermark, nil
}

// ListJobs returns jobs for a configuration, newest first. An empty
// configName lists all jobs.
func ListJobs(db *gorm.DB, configName string) ([]MigrationJob, error) {
	q := db.Order("created_at DESC")
	if configName != "" {
		q = q.Where("config_name = ?", configName)
	}
	var jobs []MigrationJob
	if err := q.Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("failed to list migration jobs: %w", err)
	}
	return jobs, nil
}

// ModelsToAutoMigrate returns the models the job store migrates at
// startup.
func ModelsToAutoMigrate() []interface{} {
	return []interface{}{
		&MigrationJob{},
	}
}
