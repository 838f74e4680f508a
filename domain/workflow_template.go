package domain

import (
	"github.com/fundwit/go-commons/types"
)

// StandardTemplateName is the template every project workflow is seeded from.
const StandardTemplateName = "Standard"

// WorkflowTemplate is one immutable published version of a named template.
// Editing a template always produces a new row with a higher version; at most
// one row per name is active at a time.
type WorkflowTemplate struct {
	ID      types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	Name    string   `json:"name" gorm:"unique_index:uni_template_name_version"`
	Version int      `json:"version" gorm:"unique_index:uni_template_name_version"`

	IsActive   bool            `json:"isActive"`
	CreateTime types.Timestamp `json:"createTime" sql:"type:DATETIME(6) NOT NULL"`
}

func (t *WorkflowTemplate) TableName() string {
	return "workflow_templates"
}

// WorkflowTemplateStep is owned by exactly one template version. OrderIndex
// values within one template are contiguous from 1 and define the sequence.
type WorkflowTemplateStep struct {
	ID         types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	TemplateID types.ID `json:"templateId" sql:"type:BIGINT UNSIGNED NOT NULL"`

	OrderIndex          int    `json:"orderIndex"`
	Department          string `json:"department"`
	GroupName           string `json:"groupName"`
	Title               string `json:"title"`
	PlannedDurationDays int    `json:"plannedDurationDays"`
}

func (s *WorkflowTemplateStep) TableName() string {
	return "workflow_template_steps"
}

// WorkflowStepTask is a checklist item definition attached to a template step.
type WorkflowStepTask struct {
	ID             types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	TemplateStepID types.ID `json:"templateStepId" sql:"type:BIGINT UNSIGNED NOT NULL"`

	OrderIndex     int    `json:"orderIndex"`
	Title          string `json:"title"`
	DefaultChecked bool   `json:"defaultChecked"`
}

func (t *WorkflowStepTask) TableName() string {
	return "workflow_step_tasks"
}

type WorkflowTemplateStepDetail struct {
	WorkflowTemplateStep

	Tasks []WorkflowStepTask `json:"tasks"`
}

type WorkflowTemplateDetail struct {
	WorkflowTemplate

	Steps []WorkflowTemplateStepDetail `json:"steps"`
}
