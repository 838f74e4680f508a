package project

import (
	"context"
	"errors"
	"strings"
	"time"

	"draftflow/bizerror"
	"draftflow/domain"
	"draftflow/domain/schedule"
	"draftflow/domain/template"
	"draftflow/event"
	"draftflow/idgen"
	"draftflow/indices"
	"draftflow/persistence"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
)

const (
	StepEventStart    = "start"
	StepEventComplete = "complete"
	StepEventTransfer = "transfer"
	StepEventReceive  = "receive"
)

var (
	SeedProjectStepsFunc  = SeedProjectSteps
	QueryProjectStepsFunc = QueryProjectSteps
	FindStepFunc          = FindStep
	RecordStepEventFunc   = RecordStepEvent
	RecomputeScheduleFunc = RecomputeSchedule
	SyncTemplateTasksFunc = SyncTemplateTasks
	ToggleStepTaskFunc    = ToggleStepTask
)

type StepEventCreation struct {
	Kind string `json:"kind" validate:"required,oneof=start complete transfer receive"`
	// Flag is the desired start/complete state; omitted means true. Clearing
	// a flag keeps the timestamp stamped when it first went on.
	Flag *bool `json:"flag"`
	// Value is the hand-off name; transfer and receive refuse it empty.
	Value     string `json:"value"`
	ActorName string `json:"actorName" validate:"required"`
}

type TaskToggling struct {
	IsChecked bool   `json:"isChecked"`
	ActorName string `json:"actorName" validate:"required"`
}

// SeedProjectSteps instantiates workflow steps for a project that has none,
// from the active Standard template. An already-seeded project is left
// untouched and its existing steps are returned: projects in flight are never
// re-seeded, so template edits cannot silently alter them.
func SeedProjectSteps(projectID types.ID) ([]domain.ProjectStepDetail, error) {
	var details []domain.ProjectStepDetail
	db := persistence.ActiveDataSourceManager.GormDB(context.Background())
	err := db.Transaction(func(tx *gorm.DB) error {
		proj := domain.Project{}
		if err := tx.Where(&domain.Project{ID: projectID}).First(&proj).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return bizerror.ErrNotFound
			}
			return err
		}
		var count int
		if err := tx.Model(&domain.ProjectWorkflowStep{}).
			Where(&domain.ProjectWorkflowStep{ProjectID: projectID}).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			existing, err := loadStepDetails(tx, projectID)
			if err != nil {
				return err
			}
			details = existing
			return nil
		}
		seeded, err := seedStepsInTx(tx, &proj)
		if err != nil {
			return err
		}
		details = seeded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return details, nil
}

// seedStepsInTx snapshots the active Standard template into project steps:
// titles, departments, order and planned durations are copied so later
// template versions never disturb projects already in flight.
func seedStepsInTx(tx *gorm.DB, proj *domain.Project) ([]domain.ProjectStepDetail, error) {
	tmpl, err := template.ActiveTemplateFunc(domain.StandardTemplateName)
	if err != nil {
		return nil, err
	}

	var details []domain.ProjectStepDetail
	for _, tmplStep := range tmpl.Steps {
		step := domain.ProjectWorkflowStep{
			ID:                  idgen.NextID(idWorker),
			ProjectID:           proj.ID,
			TemplateID:          tmpl.ID,
			TemplateStepID:      tmplStep.ID,
			OrderIndex:          tmplStep.OrderIndex,
			Department:          tmplStep.Department,
			GroupName:           tmplStep.GroupName,
			Title:               tmplStep.Title,
			PlannedDurationDays: tmplStep.PlannedDurationDays,
		}
		if err := tx.Create(&step).Error; err != nil {
			return nil, err
		}
		detail := domain.ProjectStepDetail{ProjectWorkflowStep: step}
		for _, tmplTask := range tmplStep.Tasks {
			task := domain.ProjectStepTask{
				ID:             idgen.NextID(idWorker),
				ProjectStepID:  step.ID,
				TemplateTaskID: tmplTask.ID,
				OrderIndex:     tmplTask.OrderIndex,
				Title:          tmplTask.Title,
				IsChecked:      tmplTask.DefaultChecked,
			}
			if err := tx.Create(&task).Error; err != nil {
				return nil, err
			}
			detail.Tasks = append(detail.Tasks, task)
		}
		details = append(details, detail)
	}

	if _, err := recomputeScheduleInTx(tx, proj); err != nil {
		return nil, err
	}
	for i := range details {
		step := domain.ProjectWorkflowStep{}
		if err := tx.Where(&domain.ProjectWorkflowStep{ID: details[i].ID}).First(&step).Error; err != nil {
			return nil, err
		}
		details[i].ProjectWorkflowStep = step
	}
	return details, nil
}

// FindStep resolves a step by its position in the project's workflow.
func FindStep(projectID types.ID, orderIndex int) (*domain.ProjectWorkflowStep, error) {
	step := domain.ProjectWorkflowStep{}
	db := persistence.ActiveDataSourceManager.GormDB(context.Background())
	if err := db.Where("project_id = ? AND order_index = ?", projectID, orderIndex).
		First(&step).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, bizerror.ErrNotFound
		}
		return nil, err
	}
	return &step, nil
}

func QueryProjectSteps(projectID types.ID) ([]domain.ProjectStepDetail, error) {
	db := persistence.ActiveDataSourceManager.GormDB(context.Background())
	return loadStepDetails(db, projectID)
}

func loadStepDetails(db *gorm.DB, projectID types.ID) ([]domain.ProjectStepDetail, error) {
	var steps []domain.ProjectWorkflowStep
	if err := db.Where(&domain.ProjectWorkflowStep{ProjectID: projectID}).
		Order("order_index ASC").Find(&steps).Error; err != nil {
		return nil, err
	}
	details := make([]domain.ProjectStepDetail, 0, len(steps))
	for _, step := range steps {
		var tasks []domain.ProjectStepTask
		if err := db.Where(&domain.ProjectStepTask{ProjectStepID: step.ID}).
			Order("order_index ASC").Find(&tasks).Error; err != nil {
			return nil, err
		}
		details = append(details, domain.ProjectStepDetail{ProjectWorkflowStep: step, Tasks: tasks})
	}
	return details, nil
}

// RecordStepEvent applies a lifecycle event (start, complete, transfer,
// receive) to a step. First-seen timestamps are append-only: recording the
// same event again keeps the original time. Start and complete events feed
// back into the schedule, so the recompute runs in the same transaction.
func RecordStepEvent(stepID types.ID, c *StepEventCreation) (*domain.ProjectWorkflowStep, error) {
	if err := validates.Struct(c); err != nil {
		return nil, err
	}
	if (c.Kind == StepEventTransfer || c.Kind == StepEventReceive) && strings.TrimSpace(c.Value) == "" {
		return nil, bizerror.ErrEmptyActor
	}

	updated := domain.ProjectWorkflowStep{}
	proj := domain.Project{}
	var rescheduled []domain.ProjectWorkflowStep
	db := persistence.ActiveDataSourceManager.GormDB(context.Background())
	err := db.Transaction(func(tx *gorm.DB) error {
		step := domain.ProjectWorkflowStep{}
		if err := tx.Where(&domain.ProjectWorkflowStep{ID: stepID}).First(&step).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return bizerror.ErrNotFound
			}
			return err
		}
		if err := tx.Where(&domain.Project{ID: step.ProjectID}).First(&proj).Error; err != nil {
			return err
		}

		flag := true
		if c.Flag != nil {
			flag = *c.Flag
		}

		now := types.CurrentTimestamp()
		changes := map[string]interface{}{}
		switch c.Kind {
		case StepEventStart:
			changes["start_flag"] = flag
			if flag && step.StartTs.Time().IsZero() {
				changes["start_ts"] = now
			}
		case StepEventComplete:
			changes["completed_flag"] = flag
			if !flag {
				break
			}
			completedTs := step.CompletedTs
			if completedTs.Time().IsZero() {
				completedTs = now
				changes["completed_ts"] = now
			}
			completedDate := dateTimestamp(completedTs.Time())
			changes["actual_completed_date"] = completedDate

			prevCompleted := time.Time{}
			if step.OrderIndex > 1 {
				prev := domain.ProjectWorkflowStep{}
				err := tx.Where("project_id = ? AND order_index = ?", step.ProjectID, step.OrderIndex-1).
					First(&prev).Error
				if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
					return err
				}
				if err == nil && !prev.CompletedTs.Time().IsZero() {
					prevCompleted = prev.CompletedTs.Time()
				}
			}
			if days, ok := schedule.ActualDurationDays(step.StartTs.Time(), prevCompleted, completedTs.Time()); ok {
				changes["actual_duration_days"] = days
			}
		case StepEventTransfer:
			changes["transfer_to_name"] = c.Value
			if step.TransferToTs.Time().IsZero() {
				changes["transfer_to_ts"] = now
			}
		case StepEventReceive:
			changes["received_from_name"] = c.Value
			if step.ReceivedFromTs.Time().IsZero() {
				changes["received_from_ts"] = now
			}
		}

		if err := tx.Model(&domain.ProjectWorkflowStep{}).Where("id = ?", stepID).
			Updates(changes).Error; err != nil {
			return err
		}

		if c.Kind == StepEventStart || c.Kind == StepEventComplete {
			steps, err := recomputeScheduleInTx(tx, &proj)
			if err != nil {
				return err
			}
			rescheduled = steps
		}

		if err := tx.Where(&domain.ProjectWorkflowStep{ID: stepID}).First(&updated).Error; err != nil {
			return err
		}
		return event.CreateEvent("project_step", step.ID, step.Title, event.EventCategoryPropertyUpdated,
			[]event.UpdatedProperty{{PropertyName: c.Kind, OldValue: "", NewValue: c.Value}}, c.ActorName, tx)
	})
	if err != nil {
		return nil, err
	}
	if rescheduled != nil {
		indices.IndexProjectStepsFunc(&proj, rescheduled)
	}
	return &updated, nil
}

// RecomputeSchedule re-derives every step's planned due date from the
// project due date and recorded actual starts.
func RecomputeSchedule(projectID types.ID) ([]domain.ProjectWorkflowStep, error) {
	var steps []domain.ProjectWorkflowStep
	proj := domain.Project{}
	db := persistence.ActiveDataSourceManager.GormDB(context.Background())
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where(&domain.Project{ID: projectID}).First(&proj).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return bizerror.ErrNotFound
			}
			return err
		}
		recomputed, err := recomputeScheduleInTx(tx, &proj)
		if err != nil {
			return err
		}
		steps = recomputed
		return nil
	})
	if err != nil {
		return nil, err
	}
	indices.IndexProjectStepsFunc(&proj, steps)
	return steps, nil
}

// recomputeScheduleInTx back-schedules from the project due date. Steps
// already completed keep their planned due date as it stood at completion;
// only open steps are written back.
func recomputeScheduleInTx(tx *gorm.DB, proj *domain.Project) ([]domain.ProjectWorkflowStep, error) {
	var steps []domain.ProjectWorkflowStep
	if err := tx.Where(&domain.ProjectWorkflowStep{ProjectID: proj.ID}).
		Order("order_index ASC").Find(&steps).Error; err != nil {
		return nil, err
	}
	if len(steps) == 0 {
		return steps, nil
	}

	specs := make([]schedule.StepSchedule, len(steps))
	for i, step := range steps {
		specs[i] = schedule.StepSchedule{PlannedDurationDays: step.PlannedDurationDays}
		if !step.StartTs.Time().IsZero() {
			specs[i].ActualStart = step.StartTs.Time()
		}
	}
	dues := schedule.ComputeDueDates(proj.DueDate.Time(), specs)

	prevCompleted := time.Time{}
	for i := range steps {
		if steps[i].CompletedFlag {
			// a completed step keeps its due date, but a derivable actual
			// duration may have been missing until the predecessor finished
			if days, ok := schedule.ActualDurationDays(steps[i].StartTs.Time(), prevCompleted,
				steps[i].CompletedTs.Time()); ok {
				if steps[i].ActualDurationDays == nil || *steps[i].ActualDurationDays != days {
					if err := tx.Model(&domain.ProjectWorkflowStep{}).Where("id = ?", steps[i].ID).
						Update("actual_duration_days", days).Error; err != nil {
						return nil, err
					}
					steps[i].ActualDurationDays = &days
				}
			}
			prevCompleted = steps[i].CompletedTs.Time()
			continue
		}
		prevCompleted = time.Time{}
		due := dateTimestamp(dues[i])
		if err := tx.Model(&domain.ProjectWorkflowStep{}).Where("id = ?", steps[i].ID).
			Update("planned_due_date", due).Error; err != nil {
			return nil, err
		}
		steps[i].PlannedDueDate = due
	}
	return steps, nil
}

// SyncTemplateTasks pulls checklist items added by later template versions
// into a project's steps. Steps are matched to the active template by order
// index, tasks by title; existing project tasks and their checked state are
// left untouched.
func SyncTemplateTasks(projectID types.ID) ([]domain.ProjectStepDetail, error) {
	var details []domain.ProjectStepDetail
	db := persistence.ActiveDataSourceManager.GormDB(context.Background())
	err := db.Transaction(func(tx *gorm.DB) error {
		proj := domain.Project{}
		if err := tx.Where(&domain.Project{ID: projectID}).First(&proj).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return bizerror.ErrNotFound
			}
			return err
		}
		tmpl, err := template.ActiveTemplateFunc(domain.StandardTemplateName)
		if err != nil {
			return err
		}
		tmplSteps := map[int]domain.WorkflowTemplateStepDetail{}
		for _, s := range tmpl.Steps {
			tmplSteps[s.OrderIndex] = s
		}

		steps, err := loadStepDetails(tx, projectID)
		if err != nil {
			return err
		}
		for i := range steps {
			tmplStep, found := tmplSteps[steps[i].OrderIndex]
			if !found {
				continue
			}
			existing := map[string]bool{}
			maxOrder := 0
			for _, task := range steps[i].Tasks {
				existing[task.Title] = true
				if task.OrderIndex > maxOrder {
					maxOrder = task.OrderIndex
				}
			}
			for _, tmplTask := range tmplStep.Tasks {
				if existing[tmplTask.Title] {
					continue
				}
				maxOrder++
				task := domain.ProjectStepTask{
					ID:             idgen.NextID(idWorker),
					ProjectStepID:  steps[i].ID,
					TemplateTaskID: tmplTask.ID,
					OrderIndex:     maxOrder,
					Title:          tmplTask.Title,
					IsChecked:      tmplTask.DefaultChecked,
				}
				if err := tx.Create(&task).Error; err != nil {
					return err
				}
				steps[i].Tasks = append(steps[i].Tasks, task)
			}
		}
		details = steps
		return nil
	})
	if err != nil {
		return nil, err
	}
	return details, nil
}

// ToggleStepTask flips a checklist item. The first time a task is checked
// the moment is recorded and kept, even across later unchecks.
func ToggleStepTask(taskID types.ID, t *TaskToggling) (*domain.ProjectStepTask, error) {
	if err := validates.Struct(t); err != nil {
		return nil, err
	}

	updated := domain.ProjectStepTask{}
	db := persistence.ActiveDataSourceManager.GormDB(context.Background())
	err := db.Transaction(func(tx *gorm.DB) error {
		task := domain.ProjectStepTask{}
		if err := tx.Where(&domain.ProjectStepTask{ID: taskID}).First(&task).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return bizerror.ErrNotFound
			}
			return err
		}
		changes := map[string]interface{}{"is_checked": t.IsChecked}
		if t.IsChecked && task.CheckedTs.Time().IsZero() {
			changes["checked_ts"] = types.CurrentTimestamp()
		}
		if err := tx.Model(&domain.ProjectStepTask{}).Where("id = ?", taskID).
			Updates(changes).Error; err != nil {
			return err
		}
		return tx.Where(&domain.ProjectStepTask{ID: taskID}).First(&updated).Error
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func dateTimestamp(t time.Time) types.Timestamp {
	if t.IsZero() {
		return types.Timestamp{}
	}
	d := schedule.DateOf(t)
	return types.TimestampOfDate(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
}
