package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/golang/glog"

	"github.com/robotalks/katwalk/pkg/framework"
	"github.com/robotalks/katwalk/pkg/katwalk"
	"github.com/robotalks/katwalk/pkg/l1"
	cfgenv "github.com/robotalks/katwalk/pkg/l1/env"
	env "github.com/robotalks/katwalk/pkg/l1/env/controller"
)

func init() {
	env.SetControllerType("katwalk", l1.ControllerMeta{Description: "KAT Walk C2 Gateway"})
	env.SetupFlags()
	katwalk.SetupFlags()
}

func main() {
	if err := cfgenv.ParseFlags(); err != nil {
		glog.Exit(err)
	}
	defer glog.Flush()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	env := env.NewConfig().MustNewEnv()
	gw := katwalk.NewConfig().MustNewGateway(env)
	glog.Infof("gateway %s registered at %v", env.Config.Info.Ref.Name(), env.RegistryURLs)
	err := framework.NewLoop().Add(env, gw).Run(ctx)
	if cerr := gw.Close(); cerr != nil {
		glog.Warningf("close store: %v", cerr)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		glog.Exit(err)
	}
}
