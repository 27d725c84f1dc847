package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"reflect"
	"strings"
	"syscall"

	"github.com/golang/glog"

	fx "github.com/robotalks/katwalk/pkg/framework"
	"github.com/robotalks/katwalk/pkg/katwalk/see"
	"github.com/robotalks/katwalk/pkg/l1/comm/mqtt"
	cfgenv "github.com/robotalks/katwalk/pkg/l1/env"
	"github.com/robotalks/katwalk/pkg/l1/msgs"

	_ "github.com/robotalks/katwalk/pkg/katwalk/msgs"
)

var (
	mqttURL  = "mqtt://localhost:1883/katwalk/"
	seeMode  bool
	seeTopic string
)

func init() {
	if val := os.Getenv("KATWALK_MQTT_URL"); val != "" {
		mqttURL = val
	}
	cfgenv.SetupFlags()
	see.SetupFlags()
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
	flag.BoolVar(&seeMode, "see", seeMode, "Write visualization messages to stdout instead of logging.")
	flag.StringVar(&seeTopic, "see-topic", seeTopic, "Only visualize topics with this prefix, e.g. katwalk/ID/")
}

func main() {
	if err := cfgenv.ParseFlags(); err != nil {
		glog.Exit(err)
	}
	defer glog.Flush()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	q, err := mqtt.NewQueueFromURL(mqttURL)
	if err != nil {
		glog.Exit(err)
	}
	if err := q.ConnectAndWait(); err != nil {
		glog.Exit(err)
	}
	defer q.Close()

	var loop *fx.Loop
	if seeMode {
		loop = fx.NewLoop().Add(see.NewConfig().NewAdapter())
	}

	sub := q.Sub("#", mqtt.Handler(func(topic string, payload []byte) {
		if strings.HasSuffix(topic, "/meta") {
			if !seeMode {
				glog.Infof("%s: %s", topic, string(payload))
			}
			return
		}
		typed, err := msgs.DecodeTyped(payload)
		if err != nil {
			glog.Warningf("%s: bad message: %v", topic, err)
			return
		}
		msg, err := typed.Decode()
		if err != nil {
			glog.Warningf("%s: decode error: (type_id=%x) %v", topic, typed.TypeId, err)
			return
		}
		if loop != nil {
			if typed.IsEvent() && strings.HasPrefix(topic, seeTopic) {
				loop.Notify(msg)
			}
			return
		}
		glog.Infof("%s: [%s] %s", topic,
			reflect.Indirect(reflect.ValueOf(msg)).Type().Name(),
			msg.(msgs.SerializableMessage).Serializable().String())
	}))
	defer sub.Close()

	if loop != nil {
		loop.RunOrFail(ctx)
		return
	}
	<-ctx.Done()
}
