// Package indices keeps search documents for projects and print-package
// reviews in elasticsearch. Indexing runs after a successful database
// mutation and is best-effort: the database is the source of truth and a
// failed save only produces a warning.
package indices

import (
	"draftflow/client/es"
	"draftflow/domain"

	"github.com/fundwit/go-commons/types"
	"github.com/sirupsen/logrus"
)

const (
	ReviewIndexName       = "print_package_reviews"
	ProjectStepsIndexName = "project_steps"
)

var (
	IndexReviewFunc       = IndexReview
	IndexProjectStepsFunc = IndexProjectSteps
)

type ReviewDocument struct {
	ID               types.ID            `json:"id"`
	JobNumber        string              `json:"jobNumber"`
	Status           domain.ReviewStatus `json:"status"`
	CurrentStage     int                 `json:"currentStage"`
	CurrentStageName string              `json:"currentStageName"`
	CurrentDept      string              `json:"currentDepartment"`
	InitializedBy    string              `json:"initializedBy"`
	InitializedDate  types.Timestamp     `json:"initializedDate"`
	CompletedDate    types.Timestamp     `json:"completedDate"`
}

type StepDocument struct {
	OrderIndex     int             `json:"orderIndex"`
	Title          string          `json:"title"`
	Department     string          `json:"department"`
	StartFlag      bool            `json:"startFlag"`
	CompletedFlag  bool            `json:"completedFlag"`
	PlannedDueDate types.Timestamp `json:"plannedDueDate"`
}

type ProjectStepsDocument struct {
	ID           types.ID        `json:"id"`
	JobNumber    string          `json:"jobNumber"`
	CustomerName string          `json:"customerName"`
	DueDate      types.Timestamp `json:"dueDate"`
	Steps        []StepDocument  `json:"steps"`
}

func IndexReview(review *domain.PrintPackageReview, stages []domain.PrintPackageStage) {
	doc := ReviewDocument{
		ID:              review.ID,
		JobNumber:       review.JobNumber,
		Status:          review.Status,
		CurrentStage:    review.CurrentStage,
		InitializedBy:   review.InitializedBy,
		InitializedDate: review.InitializedDate,
		CompletedDate:   review.CompletedDate,
	}
	for _, stage := range stages {
		if stage.StageIndex == review.CurrentStage {
			doc.CurrentStageName = stage.StageName
			doc.CurrentDept = stage.Department
		}
	}
	if err := es.IndexFunc(ReviewIndexName, review.ID, doc); err != nil {
		logrus.Warnf("failed to index review %s of job %s: %v", review.ID, review.JobNumber, err)
	}
}

func IndexProjectSteps(project *domain.Project, steps []domain.ProjectWorkflowStep) {
	doc := ProjectStepsDocument{
		ID:           project.ID,
		JobNumber:    project.JobNumber,
		CustomerName: project.CustomerName,
		DueDate:      project.DueDate,
	}
	for _, step := range steps {
		doc.Steps = append(doc.Steps, StepDocument{
			OrderIndex:     step.OrderIndex,
			Title:          step.Title,
			Department:     step.Department,
			StartFlag:      step.StartFlag,
			CompletedFlag:  step.CompletedFlag,
			PlannedDueDate: step.PlannedDueDate,
		})
	}
	if err := es.IndexFunc(ProjectStepsIndexName, project.ID, doc); err != nil {
		logrus.Warnf("failed to index steps of project %s (%s): %v", project.ID, project.JobNumber, err)
	}
}
