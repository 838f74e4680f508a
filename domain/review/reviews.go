// Package review drives the staged print-package review of a job: a fixed
// pipeline of eight sign-off stages, each owned by a department, with the
// package files relocated between stage folders as the review advances.
package review

import (
	"context"
	"errors"
	"path/filepath"

	"draftflow/bizerror"
	"draftflow/domain"
	"draftflow/event"
	"draftflow/idgen"
	"draftflow/indices"
	"draftflow/persistence"
	"draftflow/relocation"

	"github.com/fundwit/go-commons/types"
	"github.com/go-playground/validator/v10"
	"github.com/jinzhu/gorm"
	"github.com/sirupsen/logrus"
	"github.com/sony/sonyflake"
)

type StageDefinition struct {
	Name       string
	Department string
}

// reviewStages is the fixed pipeline every print package goes through,
// in order. Stage folders on disk are named "<index>-<name>".
var reviewStages = []StageDefinition{
	{Name: "Drafting-Print Package", Department: "Drafting"},
	{Name: "Engineer Review", Department: "Engineering"},
	{Name: "Engineering QC Review", Department: "Engineering QC"},
	{Name: "Drafting Updates (ENG)", Department: "Drafting"},
	{Name: "Lead Designer Review", Department: "Lead Designer"},
	{Name: "Production OPS Review", Department: "Production OPS"},
	{Name: "Drafting Updates (OPS)", Department: "Drafting"},
	{Name: "FINAL Print Package (Approved)", Department: "Final Approval"},
}

var (
	idWorker  = sonyflake.NewSonyflake(sonyflake.Settings{})
	validates = validator.New()

	CreateReviewFunc   = CreateReview
	AdvanceStageFunc   = AdvanceStage
	AttachFileFunc     = AttachFile
	PendingReviewsFunc = PendingReviews
	ReviewSummaryFunc  = ReviewSummary
)

// Stages returns the pipeline definition in stage order.
func Stages() []StageDefinition {
	stages := make([]StageDefinition, len(reviewStages))
	copy(stages, reviewStages)
	return stages
}

func stageNames() []string {
	names := make([]string, len(reviewStages))
	for i, s := range reviewStages {
		names[i] = s.Name
	}
	return names
}

type ReviewCreation struct {
	JobNumber     string `json:"jobNumber" validate:"required"`
	InitializedBy string `json:"initializedBy" validate:"required"`
}

type StageAdvancement struct {
	StageIndex int    `json:"stageIndex" validate:"gte=0"`
	Reviewer   string `json:"reviewer" validate:"required"`
	Department string `json:"department"`
	Notes      string `json:"notes"`
}

type FileAttachment struct {
	Path string `json:"path" validate:"required"`
}

type ReviewDetail struct {
	domain.PrintPackageReview

	Stages          []domain.PrintPackageStage `json:"stages"`
	Files           []domain.PrintPackageFile  `json:"files"`
	CompletedStages int                        `json:"completedStages"`
	TotalStages     int                        `json:"totalStages"`
}

type RelocationFailure struct {
	FileName string `json:"fileName"`
	Path     string `json:"path"`
	Reason   string `json:"reason"`
}

type AdvanceResult struct {
	Review         domain.PrintPackageReview `json:"review"`
	CompletedStage domain.PrintPackageStage  `json:"completedStage"`
	Moved          []domain.PrintPackageFile `json:"moved"`
	Failures       []RelocationFailure       `json:"failures"`
}

// CreateReview opens the review pipeline for a job: one review row, the eight
// stage rows with stage 0 already in progress, and the stage folder tree under
// the job directory. A job carries at most one review.
func CreateReview(c *ReviewCreation) (*ReviewDetail, error) {
	if err := validates.Struct(c); err != nil {
		return nil, err
	}

	detail := ReviewDetail{TotalStages: len(reviewStages)}
	proj := domain.Project{}
	db := persistence.ActiveDataSourceManager.GormDB(context.Background())
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where(&domain.Project{JobNumber: c.JobNumber}).First(&proj).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return bizerror.ErrNotFound
			}
			return err
		}

		var count int
		if err := tx.Model(&domain.PrintPackageReview{}).
			Where(&domain.PrintPackageReview{JobNumber: c.JobNumber}).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return bizerror.ErrAlreadyExists
		}

		now := types.CurrentTimestamp()
		detail.PrintPackageReview = domain.PrintPackageReview{
			ID:              idgen.NextID(idWorker),
			JobNumber:       c.JobNumber,
			Status:          domain.ReviewInProgress,
			CurrentStage:    0,
			InitializedBy:   c.InitializedBy,
			InitializedDate: now,
		}
		if err := tx.Create(&detail.PrintPackageReview).Error; err != nil {
			return err
		}

		for i, def := range reviewStages {
			stage := domain.PrintPackageStage{
				ID:         idgen.NextID(idWorker),
				ReviewID:   detail.ID,
				JobNumber:  c.JobNumber,
				StageIndex: i,
				StageName:  def.Name,
				Department: def.Department,
				Status:     domain.StageNotStarted,
			}
			if i == 0 {
				stage.Status = domain.StageInProgress
				stage.StartedDate = now
			}
			if err := tx.Create(&stage).Error; err != nil {
				return err
			}
			detail.Stages = append(detail.Stages, stage)
		}

		return event.CreateEvent("print_package_review", detail.ID, c.JobNumber,
			event.EventCategoryCreated, nil, c.InitializedBy, tx)
	})
	if err != nil {
		return nil, err
	}

	if proj.JobDirectory != "" {
		if err := relocation.EnsureStageDirsFunc(proj.JobDirectory, stageNames()); err != nil {
			logrus.Warnf("failed to create stage folders for job %s under %s: %v",
				c.JobNumber, proj.JobDirectory, err)
		}
	}
	indices.IndexReviewFunc(&detail.PrintPackageReview, detail.Stages)
	return &detail, nil
}

// AdvanceStage completes the given stage and hands the review to the next
// one. The stage must currently be in progress; the in-transaction re-read
// makes a concurrent double advance fail instead of skipping a stage. File
// relocation happens after the transaction commits, and a file that cannot
// be moved keeps its old stage pointer and is reported in the result.
func AdvanceStage(jobNumber string, a *StageAdvancement) (*AdvanceResult, error) {
	if err := validates.Struct(a); err != nil {
		return nil, err
	}

	result := AdvanceResult{}
	proj := domain.Project{}
	var stages []domain.PrintPackageStage
	var pendingFiles []domain.PrintPackageFile
	finalStage := a.StageIndex == len(reviewStages)-1

	db := persistence.ActiveDataSourceManager.GormDB(context.Background())
	err := db.Transaction(func(tx *gorm.DB) error {
		review := domain.PrintPackageReview{}
		if err := tx.Where(&domain.PrintPackageReview{JobNumber: jobNumber}).First(&review).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return bizerror.ErrNotFound
			}
			return err
		}

		stage := domain.PrintPackageStage{}
		// plain condition: a struct query would drop stage_index = 0
		if err := tx.Where("review_id = ? AND stage_index = ?", review.ID, a.StageIndex).
			First(&stage).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return bizerror.ErrNotFound
			}
			return err
		}
		if stage.Status != domain.StageInProgress {
			return bizerror.ErrInvalidTransition
		}

		now := types.CurrentTimestamp()
		stageChanges := map[string]interface{}{
			"status": domain.StageCompleted, "completed_date": now,
			"reviewer": a.Reviewer, "reviewer_department": a.Department,
		}
		if a.Notes != "" {
			stageChanges["notes"] = a.Notes
		}
		if err := tx.Model(&domain.PrintPackageStage{}).Where("id = ?", stage.ID).
			Updates(stageChanges).Error; err != nil {
			return err
		}

		if finalStage {
			if err := tx.Model(&domain.PrintPackageReview{}).Where("id = ?", review.ID).
				Updates(map[string]interface{}{"status": domain.ReviewCompleted, "completed_date": now}).
				Error; err != nil {
				return err
			}
		} else {
			if err := tx.Model(&domain.PrintPackageStage{}).
				Where("review_id = ? AND stage_index = ?", review.ID, a.StageIndex+1).
				Updates(map[string]interface{}{"status": domain.StageInProgress, "started_date": now}).
				Error; err != nil {
				return err
			}
			if err := tx.Model(&domain.PrintPackageReview{}).Where("id = ?", review.ID).
				Update("current_stage", a.StageIndex+1).Error; err != nil {
				return err
			}

			if err := tx.Where("review_id = ? AND stage_index = ?", review.ID, a.StageIndex).
				Find(&pendingFiles).Error; err != nil {
				return err
			}
			if err := tx.Where(&domain.Project{JobNumber: jobNumber}).First(&proj).Error; err != nil {
				return err
			}
		}

		if err := tx.Where(&domain.PrintPackageReview{ID: review.ID}).First(&result.Review).Error; err != nil {
			return err
		}
		if err := tx.Where(&domain.PrintPackageStage{ID: stage.ID}).First(&result.CompletedStage).Error; err != nil {
			return err
		}
		if err := tx.Where(&domain.PrintPackageStage{ReviewID: review.ID}).
			Order("stage_index ASC").Find(&stages).Error; err != nil {
			return err
		}

		return event.CreateEvent("print_package_review", review.ID, jobNumber,
			event.EventCategoryStageAdvanced,
			[]event.UpdatedProperty{{PropertyName: "stage", OldValue: stage.StageName,
				NewValue: nextStageName(a.StageIndex)}}, a.Reviewer, tx)
	})
	if err != nil {
		return nil, err
	}

	if !finalStage && len(pendingFiles) > 0 {
		result.Moved, result.Failures = relocateFiles(db, proj.JobDirectory, a.StageIndex+1, pendingFiles)
	}
	indices.IndexReviewFunc(&result.Review, stages)
	return &result, nil
}

func nextStageName(completedIndex int) string {
	if completedIndex >= len(reviewStages)-1 {
		return "completed"
	}
	return reviewStages[completedIndex+1].Name
}

// relocateFiles moves the package files into the next stage's folder, one at
// a time. Every file is attempted; a failed move leaves that file's record
// untouched so a later advance (or manual fix) can pick it up.
func relocateFiles(db *gorm.DB, jobDirectory string, nextStage int,
	files []domain.PrintPackageFile) ([]domain.PrintPackageFile, []RelocationFailure) {

	destDir := relocation.StageDir(jobDirectory, nextStage, reviewStages[nextStage].Name)
	var moved []domain.PrintPackageFile
	var failures []RelocationFailure
	for _, file := range files {
		newPath, err := relocation.MoveFileFunc(file.Path, destDir)
		if err != nil {
			logrus.Warnf("failed to relocate %s of job %s: %v", file.Path, file.JobNumber, err)
			failures = append(failures, RelocationFailure{FileName: file.FileName, Path: file.Path, Reason: err.Error()})
			continue
		}
		err = db.Model(&domain.PrintPackageFile{}).Where("id = ?", file.ID).
			Updates(map[string]interface{}{"path": newPath, "stage_index": nextStage}).Error
		if err != nil {
			failures = append(failures, RelocationFailure{FileName: file.FileName, Path: file.Path, Reason: err.Error()})
			continue
		}
		file.Path = newPath
		file.StageIndex = nextStage
		moved = append(moved, file)
	}
	return moved, failures
}

// AttachFile registers a package file at the review's current stage.
func AttachFile(jobNumber string, f *FileAttachment) (*domain.PrintPackageFile, error) {
	if err := validates.Struct(f); err != nil {
		return nil, err
	}

	file := domain.PrintPackageFile{}
	db := persistence.ActiveDataSourceManager.GormDB(context.Background())
	err := db.Transaction(func(tx *gorm.DB) error {
		review := domain.PrintPackageReview{}
		if err := tx.Where(&domain.PrintPackageReview{JobNumber: jobNumber}).First(&review).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return bizerror.ErrNotFound
			}
			return err
		}
		file = domain.PrintPackageFile{
			ID:         idgen.NextID(idWorker),
			ReviewID:   review.ID,
			JobNumber:  jobNumber,
			FileName:   filepath.Base(f.Path),
			Path:       f.Path,
			StageIndex: review.CurrentStage,
			CreateTime: types.CurrentTimestamp(),
		}
		return tx.Create(&file).Error
	})
	if err != nil {
		return nil, err
	}
	return &file, nil
}

// PendingReviews lists the stages currently waiting on a sign-off, optionally
// narrowed to one department's queue.
func PendingReviews(department string) ([]domain.PrintPackageStage, error) {
	var stages []domain.PrintPackageStage
	db := persistence.ActiveDataSourceManager.GormDB(context.Background())
	q := db.Where(&domain.PrintPackageStage{Status: domain.StageInProgress}).Order("job_number ASC")
	if department != "" {
		q = q.Where("department = ?", department)
	}
	if err := q.Find(&stages).Error; err != nil {
		return nil, err
	}
	return stages, nil
}

// ReviewSummary loads the review with all stage states, registered files and
// a completed-stage count.
func ReviewSummary(jobNumber string) (*ReviewDetail, error) {
	detail := ReviewDetail{TotalStages: len(reviewStages)}
	db := persistence.ActiveDataSourceManager.GormDB(context.Background())
	if err := db.Where(&domain.PrintPackageReview{JobNumber: jobNumber}).
		First(&detail.PrintPackageReview).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, bizerror.ErrNotFound
		}
		return nil, err
	}
	if err := db.Where(&domain.PrintPackageStage{ReviewID: detail.ID}).
		Order("stage_index ASC").Find(&detail.Stages).Error; err != nil {
		return nil, err
	}
	if err := db.Where(&domain.PrintPackageFile{ReviewID: detail.ID}).
		Order("file_name ASC").Find(&detail.Files).Error; err != nil {
		return nil, err
	}
	for _, stage := range detail.Stages {
		if stage.Status == domain.StageCompleted {
			detail.CompletedStages++
		}
	}
	return &detail, nil
}
