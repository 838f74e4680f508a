package domain

import (
	"github.com/fundwit/go-commons/types"
)

type Designer struct {
	ID   types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	Name string   `json:"name"`
}

func (d *Designer) TableName() string {
	return "designers"
}

type Engineer struct {
	ID   types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	Name string   `json:"name"`
}

func (e *Engineer) TableName() string {
	return "engineers"
}
