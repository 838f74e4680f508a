package domain

import (
	"github.com/fundwit/go-commons/types"
)

type ReviewStatus string

const (
	ReviewInProgress ReviewStatus = "in_progress"
	ReviewCompleted  ReviewStatus = "completed"
)

type StageStatus string

const (
	StageNotStarted StageStatus = "not_started"
	StageInProgress StageStatus = "in_progress"
	StageCompleted  StageStatus = "completed"
)

// PrintPackageReview tracks one job's print-package review pipeline. Unlike
// the template-driven project workflow, the pipeline runs through a fixed
// 8-stage sequence.
type PrintPackageReview struct {
	ID        types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	JobNumber string   `json:"jobNumber" gorm:"unique_index"`

	Status          ReviewStatus    `json:"status"`
	CurrentStage    int             `json:"currentStage"`
	InitializedBy   string          `json:"initializedBy"`
	InitializedDate types.Timestamp `json:"initializedDate" sql:"type:DATETIME(6) NOT NULL"`
	CompletedDate   types.Timestamp `json:"completedDate" sql:"type:DATETIME(6)"`
}

func (r *PrintPackageReview) TableName() string {
	return "print_package_reviews"
}

// PrintPackageStage is the state of one fixed pipeline stage for one review.
// Transitions run strictly forward: not_started -> in_progress -> completed.
type PrintPackageStage struct {
	ID       types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	ReviewID types.ID `json:"reviewId" gorm:"unique_index:uni_review_stage" sql:"type:BIGINT UNSIGNED NOT NULL"`

	JobNumber  string `json:"jobNumber"`
	StageIndex int    `json:"stageIndex" gorm:"unique_index:uni_review_stage"`
	StageName  string `json:"stageName"`
	Department string `json:"department"`

	Status             StageStatus     `json:"status"`
	Reviewer           string          `json:"reviewer"`
	ReviewerDepartment string          `json:"reviewerDepartment"`
	StartedDate        types.Timestamp `json:"startedDate" sql:"type:DATETIME(6)"`
	CompletedDate      types.Timestamp `json:"completedDate" sql:"type:DATETIME(6)"`
	Notes              string          `json:"notes" sql:"type:TEXT"`
}

func (s *PrintPackageStage) TableName() string {
	return "print_package_stages"
}

// PrintPackageFile maps a registered file to the stage folder it currently
// resides in. Advancing a stage relocates the file and moves this pointer;
// a file whose relocation failed keeps the old pointer so the operator can
// retry.
type PrintPackageFile struct {
	ID       types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	ReviewID types.ID `json:"reviewId" sql:"type:BIGINT UNSIGNED NOT NULL"`

	JobNumber  string          `json:"jobNumber"`
	FileName   string          `json:"fileName"`
	Path       string          `json:"path"`
	StageIndex int             `json:"stageIndex"`
	CreateTime types.Timestamp `json:"createTime" sql:"type:DATETIME(6) NOT NULL"`
}

func (f *PrintPackageFile) TableName() string {
	return "print_package_files"
}
