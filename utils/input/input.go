package input

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tsinghua-fib-lab/gridtraffic-sim/entity"
	"github.com/tsinghua-fib-lab/gridtraffic-sim/utils/config"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"gopkg.in/yaml.v2"
)

// ErrMapLoad 地图或符号字典缺失、不可读或格式错误
var ErrMapLoad = errors.New("map load error")

const mongoTimeout = 30 * time.Second

// Document 地图文档
// 功能：MongoDB中存储的地图格式，同时也是本地缓存文件的格式
type Document struct {
	Name       string                 `bson:"name" yaml:"name"`
	Lines      []string               `bson:"lines" yaml:"lines"`           // 地图文本，每个元素一行
	Dictionary map[string]interface{} `bson:"dictionary" yaml:"dictionary"` // 符号字典
}

// Input 输入数据
// 功能：存储仿真所需的地图物化数据
type Input struct {
	Map *entity.MapData
}

// Init 加载地图
// 功能：根据配置从文件或MongoDB加载地图文本与符号字典，并解析为物化数据
// 参数：cfg-配置对象，cacheDir-缓存目录（为空则不使用缓存）
// 返回：加载完成的输入数据；任何来源失败都返回ErrMapLoad
// 算法说明：
// 1. 文件加载：map.file优先，字典从map.dictionary读取（JSON是YAML的子集，统一用YAML解析）
// 2. 数据库加载：先查缓存，缓存缺失且非only_cache时从MongoDB下载并写入缓存
// 3. 解析：调用Parse得到道路、障碍物、信号灯、目的地
func Init(cfg config.Config, cacheDir string) (*Input, error) {
	path := cfg.Input.Map
	var doc *Document
	var err error
	if path.File != "" {
		doc, err = loadFromFile(path)
	} else {
		if !preCheckCache(cacheDir) {
			cacheDir = ""
		}
		doc, err = loadWithCache(cfg.Input.URI, path, cacheDir)
	}
	if err != nil {
		return nil, err
	}
	m, err := Parse(doc.Lines, normalizeDictionary(doc.Dictionary))
	if err != nil {
		return nil, err
	}
	log.Infof("map loaded: %dx%d, %d roads, %d obstacles, %d lights, %d destinations",
		m.Width, m.Height, len(m.Roads), len(m.Obstacles), len(m.Lights), len(m.Destinations))
	return &Input{Map: m}, nil
}

func readDictionary(file string) (map[string]interface{}, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("%w: read dictionary: %v", ErrMapLoad, err)
	}
	raw := make(map[string]interface{})
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: parse dictionary %s: %v", ErrMapLoad, file, err)
	}
	return raw, nil
}

func loadFromFile(path config.InputPath) (*Document, error) {
	if path.Dictionary == "" {
		return nil, fmt.Errorf("%w: input.map.dictionary is required with input.map.file", ErrMapLoad)
	}
	data, err := os.ReadFile(path.File)
	if err != nil {
		return nil, fmt.Errorf("%w: read map: %v", ErrMapLoad, err)
	}
	dict, err := readDictionary(path.Dictionary)
	if err != nil {
		return nil, err
	}
	return &Document{Name: filepath.Base(path.File), Lines: splitLines(string(data)), Dictionary: dict}, nil
}

// loadWithCache 带缓存的数据库加载
// 算法说明：
// 1. 缓存目录有效且缓存文件存在：直接读取缓存
// 2. only_cache：缓存缺失即失败
// 3. 否则从MongoDB下载，成功后写入缓存（写入失败只记录日志）
func loadWithCache(uri string, path config.InputPath, cacheDir string) (*Document, error) {
	var cacheFile string
	if cacheDir != "" {
		cacheFile = filepath.Join(cacheDir, path.GetCachePath())
		if data, err := os.ReadFile(cacheFile); err == nil {
			var doc Document
			if err := yaml.Unmarshal(data, &doc); err != nil {
				return nil, fmt.Errorf("%w: parse cache %s: %v", ErrMapLoad, cacheFile, err)
			}
			log.Infof("load map from cache %s", cacheFile)
			return &doc, nil
		}
	}
	if path.OnlyCache {
		return nil, fmt.Errorf("%w: cache %q not found and only_cache is set", ErrMapLoad, cacheFile)
	}
	if uri == "" || path.GetDb() == "" || path.GetColl() == "" {
		return nil, fmt.Errorf("%w: no map source configured", ErrMapLoad)
	}
	log.Infof("start fetching from %s.%s", path.GetDb(), path.GetColl())
	doc, err := download(uri, path)
	if err != nil {
		return nil, err
	}
	log.Infof("finish fetching from %s.%s", path.GetDb(), path.GetColl())
	if cacheFile != "" {
		if data, err := yaml.Marshal(doc); err != nil {
			log.Errorf("failed to encode cache: %v", err)
		} else if err := os.WriteFile(cacheFile, data, 0o644); err != nil {
			log.Errorf("failed to write cache %s: %v", cacheFile, err)
		}
	}
	return doc, nil
}

func download(uri string, path config.InputPath) (*Document, error) {
	ctx, cancel := context.WithTimeout(context.Background(), mongoTimeout)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("%w: connect mongo: %v", ErrMapLoad, err)
	}
	defer client.Disconnect(context.Background())
	coll := client.Database(path.GetDb()).Collection(path.GetColl())
	var doc Document
	if err := coll.FindOne(ctx, bson.M{"name": path.Name}).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: find map %q in %s.%s: %v", ErrMapLoad, path.Name, path.GetDb(), path.GetColl(), err)
	}
	return &doc, nil
}
