package servehttp

import (
	"net/http"

	"draftflow/common"
	"draftflow/domain/review"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

const PathPrintPackageReviews = "/v1/print-package-reviews"

func RegisterPrintPackageReviewHandler(r *gin.Engine, middleWares ...gin.HandlerFunc) {
	g := r.Group(PathPrintPackageReviews, middleWares...)
	g.POST("", handleCreateReview)
	g.GET("", handlePendingReviews)
	g.GET("/:jobNumber", handleReviewSummary)
	g.POST("/:jobNumber/advancements", handleAdvanceStage)
	g.POST("/:jobNumber/files", handleAttachFile)
}

func handleCreateReview(c *gin.Context) {
	creation := review.ReviewCreation{}
	if err := c.ShouldBindBodyWith(&creation, binding.JSON); err != nil {
		panic(&common.ErrBadParam{Cause: err})
	}
	detail, err := review.CreateReviewFunc(&creation)
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusCreated, detail)
}

func handlePendingReviews(c *gin.Context) {
	stages, err := review.PendingReviewsFunc(c.Query("department"))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, stages)
}

func handleReviewSummary(c *gin.Context) {
	detail, err := review.ReviewSummaryFunc(c.Param("jobNumber"))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, detail)
}

func handleAdvanceStage(c *gin.Context) {
	advancement := review.StageAdvancement{}
	if err := c.ShouldBindBodyWith(&advancement, binding.JSON); err != nil {
		panic(&common.ErrBadParam{Cause: err})
	}
	result, err := review.AdvanceStageFunc(c.Param("jobNumber"), &advancement)
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, result)
}

func handleAttachFile(c *gin.Context) {
	attachment := review.FileAttachment{}
	if err := c.ShouldBindBodyWith(&attachment, binding.JSON); err != nil {
		panic(&common.ErrBadParam{Cause: err})
	}
	file, err := review.AttachFileFunc(c.Param("jobNumber"), &attachment)
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusCreated, file)
}
