package domain

import (
	"github.com/fundwit/go-commons/types"
)

// Project is the hosting record: it provides the overall due date the
// backward scheduler anchors on, and the job directory the print-package
// review pipeline lays its stage folders out under.
type Project struct {
	ID        types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	JobNumber string   `json:"jobNumber" gorm:"unique_index"`

	CustomerName string          `json:"customerName"`
	JobDirectory string          `json:"jobDirectory"`
	DueDate      types.Timestamp `json:"dueDate" sql:"type:DATETIME(6)"`
	CreateTime   types.Timestamp `json:"createTime" sql:"type:DATETIME(6) NOT NULL"`
}

func (p *Project) TableName() string {
	return "projects"
}
