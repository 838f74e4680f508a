package servehttp

import (
	"net/http"
	"strconv"

	"draftflow/common"
	"draftflow/domain/project"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

const PathProjects = "/v1/projects"

func RegisterProjectHandler(r *gin.Engine, middleWares ...gin.HandlerFunc) {
	g := r.Group(PathProjects, middleWares...)
	g.POST("", handleCreateProject)
	g.GET("", handleQueryProjects)
	g.GET("/:projectId", handleDetailProject)
	g.POST("/:projectId/duplicates", handleDuplicateProject)
	g.PUT("/:projectId/due-date", handleUpdateDueDate)
	g.GET("/:projectId/steps", handleQueryProjectSteps)
	g.POST("/:projectId/steps", handleSeedProjectSteps)
	g.PUT("/:projectId/steps/:orderIndex/events", handleStepEvent)
	g.POST("/:projectId/task-sync", handleSyncTemplateTasks)
	g.PUT("/:projectId/steps/:orderIndex/tasks/:taskId", handleToggleStepTask)
}

func parseID(c *gin.Context, param string) types.ID {
	id, err := types.ParseID(c.Param(param))
	if err != nil {
		panic(&common.ErrBadParam{Cause: err})
	}
	return id
}

func parseOrderIndex(c *gin.Context) int {
	orderIndex, err := strconv.Atoi(c.Param("orderIndex"))
	if err != nil {
		panic(&common.ErrBadParam{Cause: err})
	}
	return orderIndex
}

func handleCreateProject(c *gin.Context) {
	creation := project.ProjectCreation{}
	if err := c.ShouldBindBodyWith(&creation, binding.JSON); err != nil {
		panic(&common.ErrBadParam{Cause: err})
	}
	detail, err := project.CreateProjectFunc(&creation)
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusCreated, detail)
}

func handleQueryProjects(c *gin.Context) {
	query := project.ProjectQuery{}
	if err := c.ShouldBindQuery(&query); err != nil {
		panic(&common.ErrBadParam{Cause: err})
	}
	records, err := project.QueryProjectsFunc(&query)
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, records)
}

func handleDetailProject(c *gin.Context) {
	detail, err := project.DetailProjectFunc(parseID(c, "projectId"))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, detail)
}

func handleDuplicateProject(c *gin.Context) {
	creation := project.ProjectCreation{}
	if err := c.ShouldBindBodyWith(&creation, binding.JSON); err != nil {
		panic(&common.ErrBadParam{Cause: err})
	}
	detail, err := project.DuplicateProjectFunc(parseID(c, "projectId"), &creation)
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusCreated, detail)
}

func handleUpdateDueDate(c *gin.Context) {
	updating := project.DueDateUpdating{}
	if err := c.ShouldBindBodyWith(&updating, binding.JSON); err != nil {
		panic(&common.ErrBadParam{Cause: err})
	}
	steps, err := project.UpdateProjectDueDateFunc(parseID(c, "projectId"), &updating)
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, steps)
}

func handleQueryProjectSteps(c *gin.Context) {
	steps, err := project.QueryProjectStepsFunc(parseID(c, "projectId"))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, steps)
}

func handleSeedProjectSteps(c *gin.Context) {
	steps, err := project.SeedProjectStepsFunc(parseID(c, "projectId"))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusCreated, steps)
}

func handleStepEvent(c *gin.Context) {
	creation := project.StepEventCreation{}
	if err := c.ShouldBindBodyWith(&creation, binding.JSON); err != nil {
		panic(&common.ErrBadParam{Cause: err})
	}
	orderIndex := parseOrderIndex(c)
	step, err := project.FindStepFunc(parseID(c, "projectId"), orderIndex)
	if err != nil {
		panic(err)
	}
	updated, err := project.RecordStepEventFunc(step.ID, &creation)
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, updated)
}

func handleSyncTemplateTasks(c *gin.Context) {
	steps, err := project.SyncTemplateTasksFunc(parseID(c, "projectId"))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, steps)
}

func handleToggleStepTask(c *gin.Context) {
	toggling := project.TaskToggling{}
	if err := c.ShouldBindBodyWith(&toggling, binding.JSON); err != nil {
		panic(&common.ErrBadParam{Cause: err})
	}
	task, err := project.ToggleStepTaskFunc(parseID(c, "taskId"), &toggling)
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, task)
}
