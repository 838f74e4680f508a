package template

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"draftflow/bizerror"
	"draftflow/domain"
	"draftflow/event"
	"draftflow/idgen"
	"draftflow/persistence"

	"github.com/fundwit/go-commons/types"
	"github.com/go-playground/validator/v10"
	"github.com/jinzhu/gorm"
	cache "github.com/patrickmn/go-cache"
	"github.com/sony/sonyflake"
)

var (
	idWorker  = sonyflake.NewSonyflake(sonyflake.Settings{})
	validates = validator.New()

	// activeCache fronts ActiveTemplate lookups; publishing purges the
	// entry, so a stale read window only exists for plain TTL expiry.
	activeCache = cache.New(5*time.Minute, 10*time.Minute)

	ActiveTemplateFunc   = ActiveTemplate
	PublishTemplateFunc  = PublishTemplate
	DetailTemplateFunc   = DetailTemplate
	TemplateVersionsFunc = TemplateVersions
)

type TaskCreation struct {
	Title          string `json:"title" validate:"required"`
	DefaultChecked bool   `json:"defaultChecked"`
}

type StepCreation struct {
	OrderIndex          int    `json:"orderIndex"`
	Department          string `json:"department" validate:"required"`
	GroupName           string `json:"groupName"`
	Title               string `json:"title" validate:"required"`
	PlannedDurationDays int    `json:"plannedDurationDays" validate:"gte=0"`

	Tasks []TaskCreation `json:"tasks" validate:"dive"`
}

type TemplateCreation struct {
	Name  string         `json:"name" validate:"required"`
	Steps []StepCreation `json:"steps" validate:"required,min=1,dive"`
}

// ActiveTemplate returns the currently active version of the named template
// with its ordered steps and task definitions.
func ActiveTemplate(name string) (*domain.WorkflowTemplateDetail, error) {
	if cached, found := activeCache.Get(name); found {
		return cached.(*domain.WorkflowTemplateDetail), nil
	}

	detail := domain.WorkflowTemplateDetail{}
	db := persistence.ActiveDataSourceManager.GormDB(context.Background())
	if err := db.Where(&domain.WorkflowTemplate{Name: name, IsActive: true}).
		First(&detail.WorkflowTemplate).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, bizerror.ErrNotFound
		}
		return nil, err
	}
	steps, err := loadSteps(db, detail.ID)
	if err != nil {
		return nil, err
	}
	detail.Steps = steps

	activeCache.Set(name, &detail, cache.DefaultExpiration)
	return &detail, nil
}

// DetailTemplate loads one specific published version, active or not.
func DetailTemplate(id types.ID) (*domain.WorkflowTemplateDetail, error) {
	detail := domain.WorkflowTemplateDetail{}
	db := persistence.ActiveDataSourceManager.GormDB(context.Background())
	if err := db.Where(&domain.WorkflowTemplate{ID: id}).First(&detail.WorkflowTemplate).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, bizerror.ErrNotFound
		}
		return nil, err
	}
	steps, err := loadSteps(db, detail.ID)
	if err != nil {
		return nil, err
	}
	detail.Steps = steps
	return &detail, nil
}

// TemplateVersions lists every published version of a name, newest first.
// Versions are append-only: nothing here is ever updated or deleted.
func TemplateVersions(name string) ([]domain.WorkflowTemplate, error) {
	var records []domain.WorkflowTemplate
	db := persistence.ActiveDataSourceManager.GormDB(context.Background())
	if err := db.Where(&domain.WorkflowTemplate{Name: name}).Order("version DESC").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// PublishTemplate persists a new immutable version of the named template and
// atomically swaps the active pointer to it. Task definitions of steps that
// do not declare their own are carried forward from the previous active
// version by matching order index.
func PublishTemplate(c *TemplateCreation) (*domain.WorkflowTemplateDetail, error) {
	if err := validateCreation(c); err != nil {
		return nil, err
	}

	detail := domain.WorkflowTemplateDetail{}
	db := persistence.ActiveDataSourceManager.GormDB(context.Background())
	err := db.Transaction(func(tx *gorm.DB) error {
		var prior domain.WorkflowTemplateDetail
		havePrior := false
		if err := tx.Where(&domain.WorkflowTemplate{Name: c.Name, IsActive: true}).
			First(&prior.WorkflowTemplate).Error; err == nil {
			steps, err := loadSteps(tx, prior.ID)
			if err != nil {
				return err
			}
			prior.Steps = steps
			havePrior = true
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		maxVersion := struct{ V int }{}
		if err := tx.Raw("SELECT COALESCE(MAX(version), 0) AS v FROM workflow_templates WHERE name = ?", c.Name).
			Scan(&maxVersion).Error; err != nil {
			return err
		}

		detail.WorkflowTemplate = domain.WorkflowTemplate{
			ID:         idgen.NextID(idWorker),
			Name:       c.Name,
			Version:    maxVersion.V + 1,
			IsActive:   true,
			CreateTime: types.CurrentTimestamp(),
		}
		if err := tx.Create(&detail.WorkflowTemplate).Error; err != nil {
			return err
		}
		if err := tx.Model(&domain.WorkflowTemplate{}).
			Where("name = ? AND id <> ?", c.Name, detail.ID).
			Update("is_active", false).Error; err != nil {
			return err
		}

		for _, sc := range c.Steps {
			stepDetail := domain.WorkflowTemplateStepDetail{
				WorkflowTemplateStep: domain.WorkflowTemplateStep{
					ID:                  idgen.NextID(idWorker),
					TemplateID:          detail.ID,
					OrderIndex:          sc.OrderIndex,
					Department:          sc.Department,
					GroupName:           sc.GroupName,
					Title:               sc.Title,
					PlannedDurationDays: sc.PlannedDurationDays,
				},
			}
			if err := tx.Create(&stepDetail.WorkflowTemplateStep).Error; err != nil {
				return err
			}

			taskDefs := taskDefinitions(sc, havePrior, &prior)
			for i, td := range taskDefs {
				task := domain.WorkflowStepTask{
					ID:             idgen.NextID(idWorker),
					TemplateStepID: stepDetail.ID,
					OrderIndex:     i + 1,
					Title:          td.Title,
					DefaultChecked: td.DefaultChecked,
				}
				if err := tx.Create(&task).Error; err != nil {
					return err
				}
				stepDetail.Tasks = append(stepDetail.Tasks, task)
			}
			detail.Steps = append(detail.Steps, stepDetail)
		}

		return event.CreateEvent("workflow_template", detail.ID, c.Name, event.EventCategoryCreated,
			[]event.UpdatedProperty{{PropertyName: "version", NewValue: strconv.Itoa(detail.Version)}}, "", tx)
	})
	if err != nil {
		return nil, err
	}

	activeCache.Delete(c.Name)
	return &detail, nil
}

func taskDefinitions(sc StepCreation, havePrior bool, prior *domain.WorkflowTemplateDetail) []TaskCreation {
	if len(sc.Tasks) > 0 || !havePrior {
		return sc.Tasks
	}
	for _, priorStep := range prior.Steps {
		if priorStep.OrderIndex != sc.OrderIndex {
			continue
		}
		carried := make([]TaskCreation, 0, len(priorStep.Tasks))
		for _, t := range priorStep.Tasks {
			carried = append(carried, TaskCreation{Title: t.Title, DefaultChecked: t.DefaultChecked})
		}
		return carried
	}
	return nil
}

func validateCreation(c *TemplateCreation) error {
	if err := validates.Struct(c); err != nil {
		return err
	}

	problems := []string{}
	seen := map[int]bool{}
	for _, sc := range c.Steps {
		if seen[sc.OrderIndex] {
			problems = append(problems, fmt.Sprintf("duplicate order index %d", sc.OrderIndex))
		}
		seen[sc.OrderIndex] = true
	}
	for want := 1; want <= len(c.Steps); want++ {
		if !seen[want] {
			problems = append(problems, fmt.Sprintf("order index %d is missing, steps must be contiguous from 1", want))
		}
	}
	if len(problems) > 0 {
		return &bizerror.ErrInvalidTemplate{Problems: problems}
	}
	return nil
}

func loadSteps(db *gorm.DB, templateID types.ID) ([]domain.WorkflowTemplateStepDetail, error) {
	var stepRecords []domain.WorkflowTemplateStep
	if err := db.Where(domain.WorkflowTemplateStep{TemplateID: templateID}).
		Order("order_index ASC").Find(&stepRecords).Error; err != nil {
		return nil, err
	}
	details := make([]domain.WorkflowTemplateStepDetail, 0, len(stepRecords))
	for _, record := range stepRecords {
		var tasks []domain.WorkflowStepTask
		if err := db.Where(domain.WorkflowStepTask{TemplateStepID: record.ID}).
			Order("order_index ASC").Find(&tasks).Error; err != nil {
			return nil, err
		}
		details = append(details, domain.WorkflowTemplateStepDetail{WorkflowTemplateStep: record, Tasks: tasks})
	}
	return details, nil
}

// PurgeActiveCache drops every cached active template. Tests use it to keep
// per-test databases isolated from each other.
func PurgeActiveCache() {
	activeCache.Flush()
}
