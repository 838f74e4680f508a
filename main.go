package main

import (
	"context"
	"net/http"

	"draftflow/bizerror"
	"draftflow/client/es"
	"draftflow/common"
	"draftflow/domain"
	"draftflow/event"
	"draftflow/infra/tracing"
	"draftflow/persistence"
	"draftflow/servehttp"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"
	"github.com/sirupsen/logrus"
	jaegercfg "github.com/uber/jaeger-client-go/config"
)

func main() {
	logrus.Infoln("service start")

	dbConfig, err := persistence.ParseDatabaseConfigFromEnv()
	if err != nil {
		logrus.Fatalf("parse database config failed %v\n", err)
	}

	// create database (no conflict)
	if dbConfig.DriverType == "mysql" {
		if err := persistence.PrepareMysqlDatabase(dbConfig.DriverArgs); err != nil {
			logrus.Fatalf("failed to prepare database %v\n", err)
		}
	}

	// connect database
	ds := &persistence.DataSourceManager{DatabaseConfig: dbConfig}
	if err := ds.Start(); err != nil {
		logrus.Fatalf("database connection failed %v\n", err)
	}
	defer ds.Stop()
	persistence.ActiveDataSourceManager = ds

	// database migration (race condition)
	err = ds.GormDB(context.Background()).AutoMigrate(
		&domain.WorkflowTemplate{}, &domain.WorkflowTemplateStep{}, &domain.WorkflowStepTask{},
		&domain.Project{}, &domain.ProjectWorkflowStep{}, &domain.ProjectStepTask{},
		&domain.PrintPackageReview{}, &domain.PrintPackageStage{}, &domain.PrintPackageFile{},
		&domain.Designer{}, &domain.Engineer{},
		&event.EventRecord{}).Error
	if err != nil {
		logrus.Fatalf("database migration failed %v\n", err)
	}

	if err := es.StartESClient(); err != nil {
		logrus.Warnf("elasticsearch client start failed, search indexing disabled: %v\n", err)
	}

	// JAEGER_* env config
	tracingCfg, err := jaegercfg.FromEnv()
	if err != nil {
		logrus.Fatalf("parse tracing config failed %v\n", err)
	}
	tracingCfg.ServiceName = common.ServiceName
	tracer, tracerCloser, err := tracingCfg.NewTracer()
	if err != nil {
		logrus.Fatalf("tracer start failed %v\n", err)
	}
	defer tracerCloser.Close()
	opentracing.SetGlobalTracer(tracer)

	engine := gin.Default()
	engine.Use(bizerror.ErrorHandling(), tracing.TracingIngress())
	engine.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, common.ServiceName)
	})

	servehttp.RegisterWorkflowTemplateHandler(engine)
	servehttp.RegisterProjectHandler(engine)
	servehttp.RegisterPrintPackageReviewHandler(engine)
	servehttp.RegisterPeopleHandler(engine)

	if err := engine.Run(":80"); err != nil {
		panic(err)
	}
}
