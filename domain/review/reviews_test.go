package review_test

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"draftflow/bizerror"
	"draftflow/domain"
	"draftflow/domain/review"
	"draftflow/event"
	"draftflow/persistence"
	"draftflow/testinfra"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	. "github.com/onsi/gomega"
)

func reviewsTestSetup(t *testing.T, testDatabase **testinfra.TestDatabase) *[]event.EventRecord {
	db := testinfra.StartMysqlTestDatabase("draftflow")
	*testDatabase = db
	Expect(db.DS.GormDB(context.Background()).AutoMigrate(
		&domain.Project{}, &domain.PrintPackageReview{}, &domain.PrintPackageStage{},
		&domain.PrintPackageFile{}).Error).To(BeNil())

	persistence.ActiveDataSourceManager = db.DS

	persistedEvents := []event.EventRecord{}
	event.EventPersistCreateFunc = func(record *event.EventRecord, db *gorm.DB) error {
		persistedEvents = append(persistedEvents, *record)
		return nil
	}
	return &persistedEvents
}

func reviewsTestTeardown(t *testing.T, testDatabase *testinfra.TestDatabase) {
	if testDatabase != nil {
		testinfra.StopMysqlTestDatabase(testDatabase)
	}
}

var nextJobID types.ID = 1000

func createJob(t *testing.T, jobNumber, jobDirectory string) types.ID {
	nextJobID++
	db := persistence.ActiveDataSourceManager.GormDB(context.Background())
	proj := domain.Project{ID: nextJobID, JobNumber: jobNumber,
		JobDirectory: jobDirectory, CreateTime: types.CurrentTimestamp()}
	Expect(db.Create(&proj).Error).To(BeNil())
	return proj.ID
}

func TestCreateReview(t *testing.T) {
	RegisterTestingT(t)
	var testDatabase *testinfra.TestDatabase

	t.Run("should open the pipeline with eight stages and stage folders", func(t *testing.T) {
		defer reviewsTestTeardown(t, testDatabase)
		persistedEvents := reviewsTestSetup(t, &testDatabase)
		jobDir := t.TempDir()
		createJob(t, "J-1001", jobDir)

		detail, err := review.CreateReview(&review.ReviewCreation{JobNumber: "J-1001", InitializedBy: "Ann Drafter"})
		Expect(err).To(BeNil())
		Expect(detail.Status).To(Equal(domain.ReviewInProgress))
		Expect(detail.CurrentStage).To(Equal(0))
		Expect(detail.InitializedBy).To(Equal("Ann Drafter"))
		Expect(detail.Stages).To(HaveLen(8))
		Expect(detail.TotalStages).To(Equal(8))

		Expect(detail.Stages[0].StageName).To(Equal("Drafting-Print Package"))
		Expect(detail.Stages[0].Status).To(Equal(domain.StageInProgress))
		Expect(detail.Stages[0].StartedDate.Time().IsZero()).To(BeFalse())
		Expect(detail.Stages[1].StageName).To(Equal("Engineer Review"))
		Expect(detail.Stages[1].Department).To(Equal("Engineering"))
		Expect(detail.Stages[1].Status).To(Equal(domain.StageNotStarted))
		Expect(detail.Stages[7].StageName).To(Equal("FINAL Print Package (Approved)"))
		Expect(detail.Stages[7].Department).To(Equal("Final Approval"))

		info, err := os.Stat(filepath.Join(jobDir, "4. Drafting", "PP-Print Packages", "0-Drafting-Print Package"))
		Expect(err).To(BeNil())
		Expect(info.IsDir()).To(BeTrue())
		_, err = os.Stat(filepath.Join(jobDir, "4. Drafting", "PP-Print Packages", "7-FINAL Print Package (Approved)"))
		Expect(err).To(BeNil())

		Expect(*persistedEvents).To(HaveLen(1))
		Expect((*persistedEvents)[0].SourceType).To(Equal("print_package_review"))
		Expect((*persistedEvents)[0].ActorName).To(Equal("Ann Drafter"))
	})

	t.Run("should allow only one review per job", func(t *testing.T) {
		defer reviewsTestTeardown(t, testDatabase)
		reviewsTestSetup(t, &testDatabase)
		createJob(t, "J-1002", "")

		_, err := review.CreateReview(&review.ReviewCreation{JobNumber: "J-1002", InitializedBy: "Ann Drafter"})
		Expect(err).To(BeNil())
		_, err = review.CreateReview(&review.ReviewCreation{JobNumber: "J-1002", InitializedBy: "Bob Drafter"})
		Expect(err).To(Equal(bizerror.ErrAlreadyExists))
	})

	t.Run("should require an existing job", func(t *testing.T) {
		defer reviewsTestTeardown(t, testDatabase)
		reviewsTestSetup(t, &testDatabase)

		_, err := review.CreateReview(&review.ReviewCreation{JobNumber: "J-404", InitializedBy: "Ann Drafter"})
		Expect(err).To(Equal(bizerror.ErrNotFound))
	})

	t.Run("should require an initializing actor", func(t *testing.T) {
		defer reviewsTestTeardown(t, testDatabase)
		reviewsTestSetup(t, &testDatabase)

		_, err := review.CreateReview(&review.ReviewCreation{JobNumber: "J-1003"})
		Expect(err).ToNot(BeNil())
	})
}

func TestAdvanceStage(t *testing.T) {
	RegisterTestingT(t)
	var testDatabase *testinfra.TestDatabase

	t.Run("should complete the stage and hand over to the next", func(t *testing.T) {
		defer reviewsTestTeardown(t, testDatabase)
		persistedEvents := reviewsTestSetup(t, &testDatabase)
		createJob(t, "J-2001", "")
		_, err := review.CreateReview(&review.ReviewCreation{JobNumber: "J-2001", InitializedBy: "Ann Drafter"})
		Expect(err).To(BeNil())

		result, err := review.AdvanceStage("J-2001", &review.StageAdvancement{
			StageIndex: 0, Reviewer: "Ann Drafter", Department: "Drafting", Notes: "package assembled"})
		Expect(err).To(BeNil())
		Expect(result.CompletedStage.Status).To(Equal(domain.StageCompleted))
		Expect(result.CompletedStage.Reviewer).To(Equal("Ann Drafter"))
		Expect(result.CompletedStage.ReviewerDepartment).To(Equal("Drafting"))
		Expect(result.CompletedStage.Notes).To(Equal("package assembled"))
		Expect(result.CompletedStage.CompletedDate.Time().IsZero()).To(BeFalse())
		Expect(result.Review.CurrentStage).To(Equal(1))
		Expect(result.Review.Status).To(Equal(domain.ReviewInProgress))

		summary, err := review.ReviewSummary("J-2001")
		Expect(err).To(BeNil())
		Expect(summary.Stages[1].Status).To(Equal(domain.StageInProgress))
		Expect(summary.Stages[1].StartedDate.Time().IsZero()).To(BeFalse())
		Expect(summary.CompletedStages).To(Equal(1))

		last := (*persistedEvents)[len(*persistedEvents)-1]
		Expect(last.EventCategory).To(BeEquivalentTo(event.EventCategoryStageAdvanced))
		Expect(last.ActorName).To(Equal("Ann Drafter"))
	})

	t.Run("should refuse to advance a stage that is not in progress", func(t *testing.T) {
		defer reviewsTestTeardown(t, testDatabase)
		reviewsTestSetup(t, &testDatabase)
		createJob(t, "J-2002", "")
		_, err := review.CreateReview(&review.ReviewCreation{JobNumber: "J-2002", InitializedBy: "Ann Drafter"})
		Expect(err).To(BeNil())

		// not started yet
		_, err = review.AdvanceStage("J-2002", &review.StageAdvancement{StageIndex: 2, Reviewer: "Eve Engineer"})
		Expect(err).To(Equal(bizerror.ErrInvalidTransition))

		_, err = review.AdvanceStage("J-2002", &review.StageAdvancement{StageIndex: 0, Reviewer: "Ann Drafter"})
		Expect(err).To(BeNil())

		// already completed: a concurrent double advance lands here
		_, err = review.AdvanceStage("J-2002", &review.StageAdvancement{StageIndex: 0, Reviewer: "Bob Drafter"})
		Expect(err).To(Equal(bizerror.ErrInvalidTransition))
	})

	t.Run("should relocate package files into the next stage folder", func(t *testing.T) {
		defer reviewsTestTeardown(t, testDatabase)
		reviewsTestSetup(t, &testDatabase)
		jobDir := t.TempDir()
		createJob(t, "J-2003", jobDir)
		_, err := review.CreateReview(&review.ReviewCreation{JobNumber: "J-2003", InitializedBy: "Ann Drafter"})
		Expect(err).To(BeNil())

		stage0Dir := filepath.Join(jobDir, "4. Drafting", "PP-Print Packages", "0-Drafting-Print Package")
		filePath := filepath.Join(stage0Dir, "J-2003-sheet1.pdf")
		Expect(ioutil.WriteFile(filePath, []byte("drawing"), 0644)).To(BeNil())
		attached, err := review.AttachFile("J-2003", &review.FileAttachment{Path: filePath})
		Expect(err).To(BeNil())
		Expect(attached.StageIndex).To(Equal(0))
		Expect(attached.FileName).To(Equal("J-2003-sheet1.pdf"))

		result, err := review.AdvanceStage("J-2003", &review.StageAdvancement{StageIndex: 0, Reviewer: "Ann Drafter"})
		Expect(err).To(BeNil())
		Expect(result.Failures).To(BeEmpty())
		Expect(result.Moved).To(HaveLen(1))
		Expect(result.Moved[0].StageIndex).To(Equal(1))
		Expect(result.Moved[0].Path).To(Equal(
			filepath.Join(jobDir, "4. Drafting", "PP-Print Packages", "1-Engineer Review", "J-2003-sheet1.pdf")))

		_, err = os.Stat(result.Moved[0].Path)
		Expect(err).To(BeNil())
		_, err = os.Stat(filePath)
		Expect(os.IsNotExist(err)).To(BeTrue())

		summary, err := review.ReviewSummary("J-2003")
		Expect(err).To(BeNil())
		Expect(summary.Files).To(HaveLen(1))
		Expect(summary.Files[0].StageIndex).To(Equal(1))
	})

	t.Run("should report unmovable files and keep their old stage pointer", func(t *testing.T) {
		defer reviewsTestTeardown(t, testDatabase)
		reviewsTestSetup(t, &testDatabase)
		jobDir := t.TempDir()
		createJob(t, "J-2004", jobDir)
		_, err := review.CreateReview(&review.ReviewCreation{JobNumber: "J-2004", InitializedBy: "Ann Drafter"})
		Expect(err).To(BeNil())

		stage0Dir := filepath.Join(jobDir, "4. Drafting", "PP-Print Packages", "0-Drafting-Print Package")
		for _, name := range []string{"cover.pdf", "plans.pdf"} {
			path := filepath.Join(stage0Dir, name)
			Expect(ioutil.WriteFile(path, []byte("drawing"), 0644)).To(BeNil())
			_, err = review.AttachFile("J-2004", &review.FileAttachment{Path: path})
			Expect(err).To(BeNil())
		}
		_, err = review.AttachFile("J-2004", &review.FileAttachment{Path: filepath.Join(stage0Dir, "missing.pdf")})
		Expect(err).To(BeNil())

		result, err := review.AdvanceStage("J-2004", &review.StageAdvancement{StageIndex: 0, Reviewer: "Ann Drafter"})
		Expect(err).To(BeNil())
		Expect(result.Review.CurrentStage).To(Equal(1))
		Expect(result.Moved).To(HaveLen(2))
		Expect(result.Failures).To(HaveLen(1))
		Expect(result.Failures[0].FileName).To(Equal("missing.pdf"))

		summary, err := review.ReviewSummary("J-2004")
		Expect(err).To(BeNil())
		for _, f := range summary.Files {
			if f.FileName == "missing.pdf" {
				Expect(f.StageIndex).To(Equal(0))
			} else {
				Expect(f.StageIndex).To(Equal(1))
			}
		}
	})

	t.Run("should complete the review at the final stage", func(t *testing.T) {
		defer reviewsTestTeardown(t, testDatabase)
		reviewsTestSetup(t, &testDatabase)
		createJob(t, "J-2005", "")
		_, err := review.CreateReview(&review.ReviewCreation{JobNumber: "J-2005", InitializedBy: "Ann Drafter"})
		Expect(err).To(BeNil())

		var result *review.AdvanceResult
		for i := 0; i < 8; i++ {
			result, err = review.AdvanceStage("J-2005", &review.StageAdvancement{StageIndex: i, Reviewer: "Ann Drafter"})
			Expect(err).To(BeNil())
		}
		Expect(result.Review.Status).To(Equal(domain.ReviewCompleted))
		Expect(result.Review.CompletedDate.Time().IsZero()).To(BeFalse())
		Expect(result.Review.CurrentStage).To(Equal(7))

		summary, err := review.ReviewSummary("J-2005")
		Expect(err).To(BeNil())
		Expect(summary.CompletedStages).To(Equal(8))

		// a completed review cannot advance again
		_, err = review.AdvanceStage("J-2005", &review.StageAdvancement{StageIndex: 7, Reviewer: "Ann Drafter"})
		Expect(err).To(Equal(bizerror.ErrInvalidTransition))
	})

	t.Run("should raise not found for a job without review", func(t *testing.T) {
		defer reviewsTestTeardown(t, testDatabase)
		reviewsTestSetup(t, &testDatabase)

		_, err := review.AdvanceStage("J-404", &review.StageAdvancement{StageIndex: 0, Reviewer: "Ann Drafter"})
		Expect(err).To(Equal(bizerror.ErrNotFound))
	})
}

func TestAttachFile(t *testing.T) {
	RegisterTestingT(t)
	var testDatabase *testinfra.TestDatabase

	t.Run("should register the file at the review's current stage", func(t *testing.T) {
		defer reviewsTestTeardown(t, testDatabase)
		reviewsTestSetup(t, &testDatabase)
		createJob(t, "J-3001", "")
		_, err := review.CreateReview(&review.ReviewCreation{JobNumber: "J-3001", InitializedBy: "Ann Drafter"})
		Expect(err).To(BeNil())
		_, err = review.AdvanceStage("J-3001", &review.StageAdvancement{StageIndex: 0, Reviewer: "Ann Drafter"})
		Expect(err).To(BeNil())

		file, err := review.AttachFile("J-3001", &review.FileAttachment{Path: "/jobs/J-3001/marked-up.pdf"})
		Expect(err).To(BeNil())
		Expect(file.StageIndex).To(Equal(1))
		Expect(file.FileName).To(Equal("marked-up.pdf"))
		Expect(file.JobNumber).To(Equal("J-3001"))
	})

	t.Run("should raise not found without a review", func(t *testing.T) {
		defer reviewsTestTeardown(t, testDatabase)
		reviewsTestSetup(t, &testDatabase)

		_, err := review.AttachFile("J-404", &review.FileAttachment{Path: "/tmp/a.pdf"})
		Expect(err).To(Equal(bizerror.ErrNotFound))
	})
}

func TestPendingReviews(t *testing.T) {
	RegisterTestingT(t)
	var testDatabase *testinfra.TestDatabase

	t.Run("should list in-progress stages with optional department filter", func(t *testing.T) {
		defer reviewsTestTeardown(t, testDatabase)
		reviewsTestSetup(t, &testDatabase)
		createJob(t, "J-4001", "")
		createJob(t, "J-40002", "")
		_, err := review.CreateReview(&review.ReviewCreation{JobNumber: "J-4001", InitializedBy: "Ann Drafter"})
		Expect(err).To(BeNil())
		_, err = review.CreateReview(&review.ReviewCreation{JobNumber: "J-40002", InitializedBy: "Ann Drafter"})
		Expect(err).To(BeNil())
		_, err = review.AdvanceStage("J-4001", &review.StageAdvancement{StageIndex: 0, Reviewer: "Ann Drafter"})
		Expect(err).To(BeNil())

		pending, err := review.PendingReviews("")
		Expect(err).To(BeNil())
		Expect(pending).To(HaveLen(2))
		Expect(pending[0].JobNumber).To(Equal("J-4001"))
		Expect(pending[0].StageName).To(Equal("Engineer Review"))
		Expect(pending[1].JobNumber).To(Equal("J-40002"))
		Expect(pending[1].StageName).To(Equal("Drafting-Print Package"))

		pending, err = review.PendingReviews("Engineering")
		Expect(err).To(BeNil())
		Expect(pending).To(HaveLen(1))
		Expect(pending[0].JobNumber).To(Equal("J-4001"))
	})
}
