package main

import (
	"context"
	"encoding/base64"
	"errors"
	"flag"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	easy "git.fiblab.net/utils/logrus-easy-formatter"
	"github.com/sirupsen/logrus"
	"github.com/tsinghua-fib-lab/gridtraffic-sim/api"
	"github.com/tsinghua-fib-lab/gridtraffic-sim/entity/car"
	"github.com/tsinghua-fib-lab/gridtraffic-sim/task"
	"github.com/tsinghua-fib-lab/gridtraffic-sim/utils/config"
)

var (
	// 运行模式：serve-HTTP服务，headless-无界面运行至结束，train-Q-learning多轮训练
	mode = flag.String("mode", "serve", "run mode (serve | headless | train)")
	// HTTP监听地址，为空则使用配置中的server.listen
	listen = flag.String("listen", "", "HTTP listening address (overrides server.listen)")
	// 配置文件路径
	configPath = flag.String("config", "", "config file path")
	// 配置文件Base64编码后的数据
	configData = flag.String("config-data", "", "config file base64 encoded data")
	// 数据加载input的缓存地址，设置为空则禁用缓存功能
	// 缓存：将MongoDB中的地图文档序列化到本地文件系统，并总是先试图从文件系统中加载
	cacheDir = flag.String("cache", "data/", "input cache dir path (empty means disable cache)")
	// 无界面与训练模式下的初始车辆数，<0时使用配置中的control.spawn.agents
	agents = flag.Int("agents", -1, "initial number of cars in headless/train mode (<0 means control.spawn.agents)")
	// 训练轮数与每轮最大步数
	episodes     = flag.Int("episodes", 10, "training episodes")
	episodeSteps = flag.Int("episode-steps", 500, "max steps per training episode")
	// Q表文件：train模式结束后写入；存在时各模式在生成车辆前读入
	qtable = flag.String("qtable", "", "q-table file (loaded if present, written after training; empty means disabled)")

	// log
	logLevels = map[string]logrus.Level{
		"trace":    logrus.TraceLevel,
		"debug":    logrus.DebugLevel,
		"info":     logrus.InfoLevel,
		"warn":     logrus.WarnLevel,
		"error":    logrus.ErrorLevel,
		"critical": logrus.FatalLevel,
		"off":      logrus.PanicLevel,
	}
	logLevel = flag.String("log.level", "info", "日志级别（可选项：trace debug info warn error critical off）")

	log = logrus.WithField("module", "gridtraffic")
)

func loadConfig() config.Config {
	var file []byte
	var err error
	if *configPath != "" {
		file, err = os.ReadFile(*configPath)
		if err != nil {
			log.Fatalf("config file load err: %v", err)
		}
	} else if *configData != "" {
		file, err = base64.StdEncoding.DecodeString(*configData)
		if err != nil {
			log.Fatalf("config data load err: %v", err)
		}
	} else {
		log.Fatal("config file or config data must be specified")
	}
	c, err := config.Parse(file)
	if err != nil {
		log.Fatalf("config file load err: %v", err)
	}
	return c
}

// loadStore 读取Q表文件，未设置或文件不存在时返回nil
func loadStore() *car.QStore {
	if *qtable == "" {
		return nil
	}
	store, err := car.LoadQStore(*qtable)
	if errors.Is(err, fs.ErrNotExist) {
		log.Infof("q-table file %s not found, start from empty policies", *qtable)
		return nil
	}
	if err != nil {
		log.Fatalf("q-table load err: %v", err)
	}
	return store
}

func newTask(c config.Config, store *car.QStore) *task.Context {
	t, err := task.NewContext(c, *cacheDir, *agents, store)
	if err != nil {
		log.Fatalf("init: %v", err)
	}
	return t
}

func main() {
	flag.Parse()
	logrus.SetFormatter(&easy.Formatter{
		TimestampFormat: "2006-01-02 15:04:05.0000",
		LogFormat:       "[%module%] [%time%] [%lvl%] %msg%\n",
	})
	// log: 运行时才修改
	if level, ok := logLevels[*logLevel]; ok {
		logrus.SetLevel(level)
	} else {
		log.Panicf("log.level must be one of %v", logLevels)
	}
	c := loadConfig()
	log.Infof("%+v", c)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch *mode {
	case "serve":
		address := *listen
		if address == "" {
			address = config.NewRuntimeConfig(c).All.Server.Listen
		}
		server := api.NewServer(c, *cacheDir)
		if store := loadStore(); store != nil {
			server.UseStore(store)
		}
		if err := api.RunServer(ctx, server, address); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	case "headless":
		t := newTask(c, loadStore())
		if err := t.Run(); err != nil {
			log.Fatalf("run: %v", err)
		}
	case "train":
		if c.Control.Car.Agent != config.AgentLearned {
			log.Warnf("control.car.agent is %q, training has no learned cars to update", c.Control.Car.Agent)
		}
		t := newTask(c, loadStore())
		stats, err := t.Train(*episodes, int32(*episodeSteps))
		if err != nil {
			log.Fatalf("train: %v", err)
		}
		if n := len(stats); n > 0 {
			last := stats[n-1]
			log.Infof("training done: %d episodes, last completion rate %.2f, avg reward %.3f", n, last.CompletionRate, last.AverageReward)
		}
		if *qtable != "" {
			if err := t.Store().Save(*qtable); err != nil {
				log.Fatalf("q-table save err: %v", err)
			}
		}
	default:
		log.Fatalf("unknown mode %q", *mode)
	}
}
