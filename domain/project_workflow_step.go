package domain

import (
	"github.com/fundwit/go-commons/types"
)

// ProjectWorkflowStep is the per-project state of one workflow stage. The
// descriptive fields are copied from the template step at seed time: a
// snapshot, not a live reference, so later template versions never alter
// projects already in flight. TemplateID/TemplateStepID record provenance
// only.
//
// Timestamps are append-only audit markers: toggling a flag off never clears
// the timestamp that was stamped when the flag first went on.
type ProjectWorkflowStep struct {
	ID        types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	ProjectID types.ID `json:"projectId" gorm:"unique_index:uni_project_step_order" sql:"type:BIGINT UNSIGNED NOT NULL"`

	TemplateID     types.ID `json:"templateId" sql:"type:BIGINT UNSIGNED NOT NULL"`
	TemplateStepID types.ID `json:"templateStepId" sql:"type:BIGINT UNSIGNED NOT NULL"`

	OrderIndex          int    `json:"orderIndex" gorm:"unique_index:uni_project_step_order"`
	Department          string `json:"department"`
	GroupName           string `json:"groupName"`
	Title               string `json:"title"`
	PlannedDurationDays int    `json:"plannedDurationDays"`

	StartFlag     bool            `json:"startFlag"`
	StartTs       types.Timestamp `json:"startTs" sql:"type:DATETIME(6)"`
	CompletedFlag bool            `json:"completedFlag"`
	CompletedTs   types.Timestamp `json:"completedTs" sql:"type:DATETIME(6)"`

	TransferToName   string          `json:"transferToName"`
	TransferToTs     types.Timestamp `json:"transferToTs" sql:"type:DATETIME(6)"`
	ReceivedFromName string          `json:"receivedFromName"`
	ReceivedFromTs   types.Timestamp `json:"receivedFromTs" sql:"type:DATETIME(6)"`

	PlannedDueDate      types.Timestamp `json:"plannedDueDate" sql:"type:DATETIME(6)"`
	ActualCompletedDate types.Timestamp `json:"actualCompletedDate" sql:"type:DATETIME(6)"`
	ActualDurationDays  *int            `json:"actualDurationDays"`
}

func (s *ProjectWorkflowStep) TableName() string {
	return "project_workflow_steps"
}

// ProjectStepTask is the per-project checklist state seeded from a template
// step's task definitions. CheckedTs follows the same append-only rule as the
// step timestamps.
type ProjectStepTask struct {
	ID             types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	ProjectStepID  types.ID `json:"projectStepId" sql:"type:BIGINT UNSIGNED NOT NULL"`
	TemplateTaskID types.ID `json:"templateTaskId" sql:"type:BIGINT UNSIGNED"`

	OrderIndex int             `json:"orderIndex"`
	Title      string          `json:"title"`
	IsChecked  bool            `json:"isChecked"`
	CheckedTs  types.Timestamp `json:"checkedTs" sql:"type:DATETIME(6)"`
}

func (t *ProjectStepTask) TableName() string {
	return "project_step_tasks"
}

type ProjectStepDetail struct {
	ProjectWorkflowStep

	Tasks []ProjectStepTask `json:"tasks"`
}
