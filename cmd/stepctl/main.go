package main

import (
	"flag"
	"os"

	"github.com/golang/glog"

	"github.com/robotalks/stepresp/pkg/cli/sh"
	"github.com/robotalks/stepresp/pkg/config"
	fx "github.com/robotalks/stepresp/pkg/framework"

	_ "github.com/robotalks/stepresp/pkg/cli/cmds/experiment"
)

//go-build: CGO_ENABLED=0

func init() {
	config.SetupFlags()
}

func main() {
	flag.Set("logtostderr", "true")
	err := fx.NewRunner().
		HandleSignals().
		Go(fx.NamedRun("shell", fx.RunFunc(sh.Main))).
		Wait()
	glog.Flush()
	os.Exit(fx.ExitCode(err))
}
