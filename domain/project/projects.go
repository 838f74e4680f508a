package project

import (
	"context"
	"errors"

	"draftflow/bizerror"
	"draftflow/domain"
	"draftflow/event"
	"draftflow/idgen"
	"draftflow/indices"
	"draftflow/persistence"

	"github.com/fundwit/go-commons/types"
	"github.com/go-playground/validator/v10"
	"github.com/jinzhu/gorm"
	"github.com/sony/sonyflake"
)

var (
	idWorker  = sonyflake.NewSonyflake(sonyflake.Settings{})
	validates = validator.New()

	CreateProjectFunc        = CreateProject
	DetailProjectFunc        = DetailProject
	QueryProjectsFunc        = QueryProjects
	UpdateProjectDueDateFunc = UpdateProjectDueDate
	DuplicateProjectFunc     = DuplicateProject
)

type ProjectCreation struct {
	JobNumber    string          `json:"jobNumber" validate:"required"`
	CustomerName string          `json:"customerName"`
	JobDirectory string          `json:"jobDirectory"`
	DueDate      types.Timestamp `json:"dueDate"`
}

type ProjectDetail struct {
	domain.Project

	Steps []domain.ProjectStepDetail `json:"steps"`
}

type DueDateUpdating struct {
	DueDate types.Timestamp `json:"dueDate"`
}

// CreateProject saves a new host project and seeds its workflow steps from
// the active Standard template in the same transaction. A project created
// before any Standard template was published simply starts without steps;
// SeedProjectSteps can catch it up later.
func CreateProject(c *ProjectCreation) (*ProjectDetail, error) {
	if err := validates.Struct(c); err != nil {
		return nil, err
	}

	detail := ProjectDetail{}
	db := persistence.ActiveDataSourceManager.GormDB(context.Background())
	err := db.Transaction(func(tx *gorm.DB) error {
		detail.Project = domain.Project{
			ID:           idgen.NextID(idWorker),
			JobNumber:    c.JobNumber,
			CustomerName: c.CustomerName,
			JobDirectory: c.JobDirectory,
			DueDate:      c.DueDate,
			CreateTime:   types.CurrentTimestamp(),
		}
		if err := tx.Create(&detail.Project).Error; err != nil {
			return err
		}

		steps, err := seedStepsInTx(tx, &detail.Project)
		if err != nil && !errors.Is(err, bizerror.ErrNotFound) {
			return err
		}
		detail.Steps = steps

		return event.CreateEvent("project", detail.ID, c.JobNumber, event.EventCategoryCreated, nil, "", tx)
	})
	if err != nil {
		return nil, err
	}
	return &detail, nil
}

func DetailProject(id types.ID) (*ProjectDetail, error) {
	detail := ProjectDetail{}
	db := persistence.ActiveDataSourceManager.GormDB(context.Background())
	if err := db.Where(&domain.Project{ID: id}).First(&detail.Project).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, bizerror.ErrNotFound
		}
		return nil, err
	}
	steps, err := loadStepDetails(db, id)
	if err != nil {
		return nil, err
	}
	detail.Steps = steps
	return &detail, nil
}

type ProjectQuery struct {
	JobNumber string `json:"jobNumber" form:"jobNumber"`
}

func QueryProjects(query *ProjectQuery) ([]domain.Project, error) {
	var records []domain.Project
	db := persistence.ActiveDataSourceManager.GormDB(context.Background())
	q := db.Order("job_number ASC")
	if query.JobNumber != "" {
		q = q.Where("job_number LIKE ?", "%"+query.JobNumber+"%")
	}
	if err := q.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// UpdateProjectDueDate changes the scheduling anchor and recomputes every
// step's planned due date in the same transaction, so readers never observe
// a new due date with stale step schedules.
func UpdateProjectDueDate(id types.ID, u *DueDateUpdating) ([]domain.ProjectWorkflowStep, error) {
	var steps []domain.ProjectWorkflowStep
	proj := domain.Project{}
	db := persistence.ActiveDataSourceManager.GormDB(context.Background())
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where(&domain.Project{ID: id}).First(&proj).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return bizerror.ErrNotFound
			}
			return err
		}
		old := proj.DueDate
		if err := tx.Model(&domain.Project{}).Where("id = ?", id).
			Update("due_date", u.DueDate).Error; err != nil {
			return err
		}
		proj.DueDate = u.DueDate

		recomputed, err := recomputeScheduleInTx(tx, &proj)
		if err != nil {
			return err
		}
		steps = recomputed

		return event.CreateEvent("project", proj.ID, proj.JobNumber, event.EventCategoryPropertyUpdated,
			[]event.UpdatedProperty{{PropertyName: "dueDate",
				OldValue: old.Time().Format("2006-01-02"), NewValue: u.DueDate.Time().Format("2006-01-02")}}, "", tx)
	})
	if err != nil {
		return nil, err
	}
	indices.IndexProjectStepsFunc(&proj, steps)
	return steps, nil
}

// DuplicateProject creates a new project from an existing one and clones the
// source's workflow step shape (titles, departments, order, checklists) with
// every flag, timestamp and actor reset: a duplicated project inherits only
// structure, never progress.
func DuplicateProject(sourceID types.ID, c *ProjectCreation) (*ProjectDetail, error) {
	if err := validates.Struct(c); err != nil {
		return nil, err
	}

	detail := ProjectDetail{}
	db := persistence.ActiveDataSourceManager.GormDB(context.Background())
	err := db.Transaction(func(tx *gorm.DB) error {
		source := domain.Project{}
		if err := tx.Where(&domain.Project{ID: sourceID}).First(&source).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return bizerror.ErrNotFound
			}
			return err
		}

		detail.Project = domain.Project{
			ID:           idgen.NextID(idWorker),
			JobNumber:    c.JobNumber,
			CustomerName: c.CustomerName,
			JobDirectory: c.JobDirectory,
			DueDate:      c.DueDate,
			CreateTime:   types.CurrentTimestamp(),
		}
		if err := tx.Create(&detail.Project).Error; err != nil {
			return err
		}

		sourceSteps, err := loadStepDetails(tx, sourceID)
		if err != nil {
			return err
		}
		for _, src := range sourceSteps {
			step := domain.ProjectWorkflowStep{
				ID:                  idgen.NextID(idWorker),
				ProjectID:           detail.ID,
				TemplateID:          src.TemplateID,
				TemplateStepID:      src.TemplateStepID,
				OrderIndex:          src.OrderIndex,
				Department:          src.Department,
				GroupName:           src.GroupName,
				Title:               src.Title,
				PlannedDurationDays: src.PlannedDurationDays,
			}
			if err := tx.Create(&step).Error; err != nil {
				return err
			}
			for _, srcTask := range src.Tasks {
				task := domain.ProjectStepTask{
					ID:             idgen.NextID(idWorker),
					ProjectStepID:  step.ID,
					TemplateTaskID: srcTask.TemplateTaskID,
					OrderIndex:     srcTask.OrderIndex,
					Title:          srcTask.Title,
				}
				if err := tx.Create(&task).Error; err != nil {
					return err
				}
			}
		}

		if _, err := recomputeScheduleInTx(tx, &detail.Project); err != nil {
			return err
		}
		steps, err := loadStepDetails(tx, detail.ID)
		if err != nil {
			return err
		}
		detail.Steps = steps

		return event.CreateEvent("project", detail.ID, c.JobNumber, event.EventCategoryCreated,
			[]event.UpdatedProperty{{PropertyName: "duplicatedFrom", OldValue: "", NewValue: source.JobNumber}}, "", tx)
	})
	if err != nil {
		return nil, err
	}
	return &detail, nil
}
