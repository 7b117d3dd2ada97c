package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/opsline/trainyard/pkg/coordinator"
	kconf "github.com/opsline/trainyard/pkg/configs/coordinator"
	"github.com/opsline/trainyard/pkg/domain"
	apppg "github.com/opsline/trainyard/pkg/domain/approval/postgres"
	k8sexec "github.com/opsline/trainyard/pkg/domain/exec/k8s"
	prompg "github.com/opsline/trainyard/pkg/domain/promotion/postgres"
	regpg "github.com/opsline/trainyard/pkg/domain/registry/postgres"
	"github.com/opsline/trainyard/pkg/kubeutil"
	"github.com/opsline/trainyard/pkg/utils/args"
)

func main() {
	logger := log.Default()

	configPath := flag.String("config-path", "", "coordinator config path")
	masterList := flag.String("master-list", "", "master configuration list path")
	mode := args.Parser(domain.AsRunMode)
	flag.Var(mode, "mode", "run mode. auto|manual (default: auto)")
	unitsFlag := flag.String(
		"units", "",
		"comma-separated unit ids to train. required in manual mode",
	)
	kubeconfig := flag.String(
		"kubeconfig", "",
		"kubeconfig path. when omitted, in-cluster config or ~/.kube/config is used",
	)
	flag.Parse()

	ctx, cancel := signal.NotifyContext(
		context.Background(), os.Interrupt, syscall.SIGTERM,
	)
	defer cancel()

	conf, err := kconf.LoadCoordinatorConfig(*configPath)
	if err != nil {
		logger.Fatalf("can not read configuration: %s", err)
	}

	units, err := coordinator.LoadMasterList(*masterList)
	if err != nil {
		logger.Fatalf("can not read master list: %s", err)
	}

	runMode := domain.RunModeAuto
	if mode.IsSet() {
		runMode = mode.Value()
	}
	manualUnitIDs := []string{}
	if *unitsFlag != "" {
		for _, id := range strings.Split(*unitsFlag, ",") {
			manualUnitIDs = append(manualUnitIDs, strings.TrimSpace(id))
		}
	}
	if runMode == domain.RunModeManual && len(manualUnitIDs) == 0 {
		logger.Fatal("-units is required in manual mode")
	}

	clientset := kubeutil.ConnectToK8s(*kubeconfig)
	executor, err := k8sexec.New(k8sexec.WrapK8sClient(clientset), k8sexec.Config{
		Namespace:      conf.Cluster().Namespace(),
		Image:          conf.Cluster().Image(),
		ServiceAccount: conf.Cluster().ServiceAccount(),
	})
	if err != nil {
		logger.Fatalf("can not build execution service: %s", err)
	}

	workspace, err := regpg.New(ctx, conf.Database().Workspace())
	if err != nil {
		logger.Fatalf("can not connect to the workspace registry: %s", err)
	}
	shared, err := regpg.New(ctx, conf.Database().Registry())
	if err != nil {
		logger.Fatalf("can not connect to the shared registry: %s", err)
	}
	approvals, err := apppg.New(ctx, conf.Database().Workspace())
	if err != nil {
		logger.Fatalf("can not connect to the approval store: %s", err)
	}
	requests, err := prompg.New(ctx, conf.Database().Workspace())
	if err != nil {
		logger.Fatalf("can not connect to the promotion store: %s", err)
	}

	events := domain.EventSinkFunc(func(ev domain.ProgressEvent) {
		logger.Printf("progress: unit=%s stage=%s state=%s", ev.UnitID, ev.Stage, ev.State)
	})

	coord := coordinator.New(
		conf, executor, workspace, shared, approvals, requests, logger, events,
	)
	summary, err := coord.Run(ctx, units, runMode, manualUnitIDs)

	fmt.Printf(
		"submitted=%d completed=%d failed=%d retried=%d registered=%d promoted=%d\n",
		summary.Submitted, summary.Completed, summary.Failed,
		summary.Retried, summary.Registered, summary.Promoted,
	)
	for _, msg := range summary.Errors {
		fmt.Printf("error: %s\n", msg)
	}
	if err != nil {
		logger.Printf("run failed: %s", err)
		os.Exit(1)
	}
}
