// Package people serves the person directory used to fill reviewer and
// hand-off name fields: the designer and engineer rosters plus the shared
// Production queue.
package people

import (
	"context"
	"sort"

	"draftflow/domain"
	"draftflow/idgen"
	"draftflow/persistence"

	"github.com/go-playground/validator/v10"
	"github.com/jinzhu/gorm"
	"github.com/sony/sonyflake"
)

// ProductionQueueName is a fixed directory entry: hand-offs to production go
// to the shared queue, not to a person.
const ProductionQueueName = "Production"

const (
	RoleDesigner = "designer"
	RoleEngineer = "engineer"
	RoleQueue    = "queue"
)

var (
	idWorker  = sonyflake.NewSonyflake(sonyflake.Settings{})
	validates = validator.New()

	QueryPeopleFunc  = QueryPeople
	CreatePersonFunc = CreatePerson
)

type Person struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

type PersonCreation struct {
	Name string `json:"name" validate:"required"`
	Role string `json:"role" validate:"required,oneof=designer engineer"`
}

// QueryPeople returns the union of both rosters and the Production queue,
// deduplicated by name and sorted.
func QueryPeople() ([]Person, error) {
	db := persistence.ActiveDataSourceManager.GormDB(context.Background())

	var designers []domain.Designer
	if err := db.Find(&designers).Error; err != nil {
		return nil, err
	}
	var engineers []domain.Engineer
	if err := db.Find(&engineers).Error; err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	people := make([]Person, 0, len(designers)+len(engineers)+1)
	for _, d := range designers {
		if !seen[d.Name] {
			seen[d.Name] = true
			people = append(people, Person{Name: d.Name, Role: RoleDesigner})
		}
	}
	for _, e := range engineers {
		if !seen[e.Name] {
			seen[e.Name] = true
			people = append(people, Person{Name: e.Name, Role: RoleEngineer})
		}
	}
	if !seen[ProductionQueueName] {
		people = append(people, Person{Name: ProductionQueueName, Role: RoleQueue})
	}

	sort.Slice(people, func(i, j int) bool { return people[i].Name < people[j].Name })
	return people, nil
}

// CreatePerson adds a name to the designer or engineer roster.
func CreatePerson(c *PersonCreation) (*Person, error) {
	if err := validates.Struct(c); err != nil {
		return nil, err
	}

	db := persistence.ActiveDataSourceManager.GormDB(context.Background())
	err := db.Transaction(func(tx *gorm.DB) error {
		if c.Role == RoleDesigner {
			return tx.Create(&domain.Designer{ID: idgen.NextID(idWorker), Name: c.Name}).Error
		}
		return tx.Create(&domain.Engineer{ID: idgen.NextID(idWorker), Name: c.Name}).Error
	})
	if err != nil {
		return nil, err
	}
	return &Person{Name: c.Name, Role: c.Role}, nil
}
