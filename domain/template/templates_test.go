package template_test

import (
	"context"
	"testing"

	"draftflow/bizerror"
	"draftflow/domain"
	"draftflow/domain/template"
	"draftflow/event"
	"draftflow/persistence"
	"draftflow/testinfra"

	"github.com/jinzhu/gorm"
	. "github.com/onsi/gomega"
)

func templatesTestSetup(t *testing.T, testDatabase **testinfra.TestDatabase) *[]event.EventRecord {
	db := testinfra.StartMysqlTestDatabase("draftflow")
	*testDatabase = db
	Expect(db.DS.GormDB(context.Background()).AutoMigrate(
		&domain.WorkflowTemplate{}, &domain.WorkflowTemplateStep{}, &domain.WorkflowStepTask{}).Error).To(BeNil())

	persistence.ActiveDataSourceManager = db.DS
	template.PurgeActiveCache()

	persistedEvents := []event.EventRecord{}
	event.EventPersistCreateFunc = func(record *event.EventRecord, db *gorm.DB) error {
		persistedEvents = append(persistedEvents, *record)
		return nil
	}
	return &persistedEvents
}

func templatesTestTeardown(t *testing.T, testDatabase *testinfra.TestDatabase) {
	if testDatabase != nil {
		testinfra.StopMysqlTestDatabase(testDatabase)
	}
}

func buildStandardCreation() *template.TemplateCreation {
	return &template.TemplateCreation{
		Name: domain.StandardTemplateName,
		Steps: []template.StepCreation{
			{OrderIndex: 1, Department: "Drafting", GroupName: "Design", Title: "Initial Drafting", PlannedDurationDays: 3,
				Tasks: []template.TaskCreation{{Title: "Verify dimensions"}, {Title: "Apply title block", DefaultChecked: true}}},
			{OrderIndex: 2, Department: "Engineering", GroupName: "Review", Title: "Engineer Review", PlannedDurationDays: 2},
			{OrderIndex: 3, Department: "Drafting", GroupName: "Release", Title: "Final Release", PlannedDurationDays: 1},
		},
	}
}

func TestPublishTemplate(t *testing.T) {
	RegisterTestingT(t)
	var testDatabase *testinfra.TestDatabase

	t.Run("should publish first version as active", func(t *testing.T) {
		defer templatesTestTeardown(t, testDatabase)
		persistedEvents := templatesTestSetup(t, &testDatabase)

		detail, err := template.PublishTemplate(buildStandardCreation())
		Expect(err).To(BeNil())
		Expect(detail.ID).ToNot(BeZero())
		Expect(detail.Name).To(Equal("Standard"))
		Expect(detail.Version).To(Equal(1))
		Expect(detail.IsActive).To(BeTrue())
		Expect(detail.Steps).To(HaveLen(3))
		Expect(detail.Steps[0].Title).To(Equal("Initial Drafting"))
		Expect(detail.Steps[0].Tasks).To(HaveLen(2))
		Expect(detail.Steps[0].Tasks[0].OrderIndex).To(Equal(1))
		Expect(detail.Steps[0].Tasks[1].DefaultChecked).To(BeTrue())
		Expect(detail.Steps[1].Tasks).To(BeEmpty())

		Expect(*persistedEvents).To(HaveLen(1))
		Expect((*persistedEvents)[0].EventCategory).To(BeEquivalentTo(event.EventCategoryCreated))
		Expect((*persistedEvents)[0].SourceType).To(Equal("workflow_template"))
	})

	t.Run("should bump version and swap active pointer on republish", func(t *testing.T) {
		defer templatesTestTeardown(t, testDatabase)
		templatesTestSetup(t, &testDatabase)

		v1, err := template.PublishTemplate(buildStandardCreation())
		Expect(err).To(BeNil())

		creation := buildStandardCreation()
		creation.Steps[1].PlannedDurationDays = 5
		v2, err := template.PublishTemplate(creation)
		Expect(err).To(BeNil())
		Expect(v2.Version).To(Equal(2))
		Expect(v2.IsActive).To(BeTrue())

		versions, err := template.TemplateVersions("Standard")
		Expect(err).To(BeNil())
		Expect(versions).To(HaveLen(2))
		Expect(versions[0].Version).To(Equal(2))
		Expect(versions[0].IsActive).To(BeTrue())
		Expect(versions[1].Version).To(Equal(1))
		Expect(versions[1].IsActive).To(BeFalse())

		// the old version stays readable, untouched
		old, err := template.DetailTemplate(v1.ID)
		Expect(err).To(BeNil())
		Expect(old.Steps[1].PlannedDurationDays).To(Equal(2))
	})

	t.Run("should carry forward prior tasks for steps that declare none", func(t *testing.T) {
		defer templatesTestTeardown(t, testDatabase)
		templatesTestSetup(t, &testDatabase)

		_, err := template.PublishTemplate(buildStandardCreation())
		Expect(err).To(BeNil())

		creation := buildStandardCreation()
		creation.Steps[0].Tasks = nil
		v2, err := template.PublishTemplate(creation)
		Expect(err).To(BeNil())
		Expect(v2.Steps[0].Tasks).To(HaveLen(2))
		Expect(v2.Steps[0].Tasks[0].Title).To(Equal("Verify dimensions"))
		Expect(v2.Steps[0].Tasks[1].Title).To(Equal("Apply title block"))
		Expect(v2.Steps[0].Tasks[1].DefaultChecked).To(BeTrue())
	})

	t.Run("should reject creation without steps", func(t *testing.T) {
		defer templatesTestTeardown(t, testDatabase)
		templatesTestSetup(t, &testDatabase)

		_, err := template.PublishTemplate(&template.TemplateCreation{Name: "Standard"})
		Expect(err).ToNot(BeNil())
	})

	t.Run("should reject duplicate or gapped order indexes", func(t *testing.T) {
		defer templatesTestTeardown(t, testDatabase)
		templatesTestSetup(t, &testDatabase)

		creation := buildStandardCreation()
		creation.Steps[2].OrderIndex = 2
		_, err := template.PublishTemplate(creation)
		invalid, ok := err.(*bizerror.ErrInvalidTemplate)
		Expect(ok).To(BeTrue())
		Expect(invalid.Problems).To(ContainElement("duplicate order index 2"))

		creation = buildStandardCreation()
		creation.Steps[2].OrderIndex = 9
		_, err = template.PublishTemplate(creation)
		invalid, ok = err.(*bizerror.ErrInvalidTemplate)
		Expect(ok).To(BeTrue())
		Expect(invalid.Problems).To(ContainElement("order index 3 is missing, steps must be contiguous from 1"))
	})
}

func TestActiveTemplate(t *testing.T) {
	RegisterTestingT(t)
	var testDatabase *testinfra.TestDatabase

	t.Run("should raise not found when no active version exists", func(t *testing.T) {
		defer templatesTestTeardown(t, testDatabase)
		templatesTestSetup(t, &testDatabase)

		_, err := template.ActiveTemplate("Standard")
		Expect(err).To(Equal(bizerror.ErrNotFound))
	})

	t.Run("should return active version with ordered steps and tasks", func(t *testing.T) {
		defer templatesTestTeardown(t, testDatabase)
		templatesTestSetup(t, &testDatabase)

		_, err := template.PublishTemplate(buildStandardCreation())
		Expect(err).To(BeNil())

		detail, err := template.ActiveTemplate("Standard")
		Expect(err).To(BeNil())
		Expect(detail.Version).To(Equal(1))
		Expect(detail.Steps).To(HaveLen(3))
		Expect(detail.Steps[0].OrderIndex).To(Equal(1))
		Expect(detail.Steps[2].OrderIndex).To(Equal(3))
	})

	t.Run("should see the new version immediately after republish", func(t *testing.T) {
		defer templatesTestTeardown(t, testDatabase)
		templatesTestSetup(t, &testDatabase)

		_, err := template.PublishTemplate(buildStandardCreation())
		Expect(err).To(BeNil())

		// warm the cache
		detail, err := template.ActiveTemplate("Standard")
		Expect(err).To(BeNil())
		Expect(detail.Version).To(Equal(1))

		creation := buildStandardCreation()
		_, err = template.PublishTemplate(creation)
		Expect(err).To(BeNil())

		detail, err = template.ActiveTemplate("Standard")
		Expect(err).To(BeNil())
		Expect(detail.Version).To(Equal(2))
	})
}

func TestDetailTemplate(t *testing.T) {
	RegisterTestingT(t)
	var testDatabase *testinfra.TestDatabase

	t.Run("should raise not found for unknown id", func(t *testing.T) {
		defer templatesTestTeardown(t, testDatabase)
		templatesTestSetup(t, &testDatabase)

		_, err := template.DetailTemplate(404)
		Expect(err).To(Equal(bizerror.ErrNotFound))
	})
}
