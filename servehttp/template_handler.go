package servehttp

import (
	"net/http"

	"draftflow/common"
	"draftflow/domain"
	"draftflow/domain/template"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

const PathWorkflowTemplates = "/v1/workflow-templates"

func RegisterWorkflowTemplateHandler(r *gin.Engine, middleWares ...gin.HandlerFunc) {
	g := r.Group(PathWorkflowTemplates, middleWares...)
	g.POST("", handlePublishTemplate)
	g.GET("", handleQueryTemplates)
	g.GET("/:id", handleDetailTemplate)
}

func handlePublishTemplate(c *gin.Context) {
	creation := template.TemplateCreation{}
	if err := c.ShouldBindBodyWith(&creation, binding.JSON); err != nil {
		panic(&common.ErrBadParam{Cause: err})
	}
	detail, err := template.PublishTemplateFunc(&creation)
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusCreated, detail)
}

// handleQueryTemplates lists versions of a template name, or with active=true
// returns the active version with full step detail.
func handleQueryTemplates(c *gin.Context) {
	name := c.Query("name")
	if name == "" {
		name = domain.StandardTemplateName
	}
	if c.Query("active") == "true" {
		detail, err := template.ActiveTemplateFunc(name)
		if err != nil {
			panic(err)
		}
		c.JSON(http.StatusOK, detail)
		return
	}
	versions, err := template.TemplateVersionsFunc(name)
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, versions)
}

func handleDetailTemplate(c *gin.Context) {
	detail, err := template.DetailTemplateFunc(parseID(c, "id"))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, detail)
}
