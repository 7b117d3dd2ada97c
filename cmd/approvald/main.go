package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/opsline/trainyard/cmd/approvald/handlers"
	kca "github.com/opsline/trainyard/pkg/configs/approvald"
	apppg "github.com/opsline/trainyard/pkg/domain/approval/postgres"
	"github.com/opsline/trainyard/pkg/utils/echoutil"
	"github.com/opsline/trainyard/pkg/utils/filewatch"
)

func main() {
	configPath := flag.String("config-path", "", "approvald config path")
	loglevel := flag.String("loglevel", "info", "log level. debug|info|warn|error|off")
	issueToken := flag.String(
		"issue-token", "",
		"issue a decision token for the named approver and exit",
	)
	tokenTTL := flag.Duration("token-ttl", 30*24*time.Hour, "lifetime of issued tokens")
	flag.Parse()

	conf, err := kca.LoadApprovaldConfig(*configPath)
	if err != nil {
		log.Fatalf("can not read configuration: %s", err)
	}

	if *issueToken != "" {
		token, err := handlers.IssueToken([]byte(conf.SignKey()), *issueToken, *tokenTTL)
		if err != nil {
			log.Fatalf("can not issue token: %s", err)
		}
		fmt.Println(token)
		return
	}

	e := echo.New()
	e.Pre(middleware.AddTrailingSlash())

	echoutil.SetLevel(e, *loglevel)
	e.HTTPErrorHandler = func(err error, ctx echo.Context) {
		e.DefaultHTTPErrorHandler(err, ctx)
		e.Logger.Error(err)
	}
	e.Use(echoutil.LogHandlerFunc)

	// restart-to-reload: quit when the config file changes and let the
	// supervisor bring the server back with the new config
	wctx, cancel, err := filewatch.UntilModifyContext(context.Background(), *configPath)
	if err != nil {
		log.Fatalf("can not watch configuration: %s", err)
	}
	defer cancel()
	context.AfterFunc(wctx, func() {
		log.Println("config file is updated. quit to restart server.")
		graceful, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := e.Shutdown(graceful); err != nil {
			log.Printf("error on shutdown by config update: %s", err)
		}
	})

	approvals, err := apppg.New(context.Background(), conf.Database())
	if err != nil {
		log.Fatalf("can not connect to the approval store: %s", err)
	}

	{
		id := "id"
		e.GET("/api/approvals/", handlers.ListPendingHandler(approvals))
		e.GET("/api/approvals/:id/", handlers.GetApprovalHandler(approvals, id))
		e.POST(
			"/api/approvals/:id/decision/",
			handlers.DecideHandler(approvals, id),
			handlers.RequireToken([]byte(conf.SignKey())),
		)
	}

	if err := e.Start(fmt.Sprintf(":%d", conf.Port())); err != nil {
		log.Fatal(err)
	}
}
