package servehttp

import (
	"net/http"

	"draftflow/common"
	"draftflow/domain/people"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

const PathPeople = "/v1/people"

func RegisterPeopleHandler(r *gin.Engine, middleWares ...gin.HandlerFunc) {
	g := r.Group(PathPeople, middleWares...)
	g.GET("", handleQueryPeople)
	g.POST("", handleCreatePerson)
}

func handleQueryPeople(c *gin.Context) {
	persons, err := people.QueryPeopleFunc()
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, persons)
}

func handleCreatePerson(c *gin.Context) {
	creation := people.PersonCreation{}
	if err := c.ShouldBindBodyWith(&creation, binding.JSON); err != nil {
		panic(&common.ErrBadParam{Cause: err})
	}
	person, err := people.CreatePersonFunc(&creation)
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusCreated, person)
}
