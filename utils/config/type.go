package config

// InputPath 指定地图数据来源的配置（文件系统、MongoDB）
// 功能：定义地图输入路径的配置结构，支持多种数据源
// 说明：文件优先级高于MongoDB；MongoDB模式下支持本地缓存
type InputPath struct {
	File       string `yaml:"file,omitempty"`       // 地图文本文件路径（优先级高于MongoDB）
	Dictionary string `yaml:"dictionary,omitempty"` // 符号字典文件路径（JSON或YAML）
	DB         string `yaml:"db,omitempty"`         // 数据库名
	Col        string `yaml:"col,omitempty"`        // 集合名
	Name       string `yaml:"name,omitempty"`       // 地图文档名
	Cache      string `yaml:"cache,omitempty"`      // 缓存文件名，为空则采用默认路径{db}.{col}.{name}.yaml
	OnlyCache  bool   `yaml:"only_cache,omitempty"` // 只从缓存中获取
}

// GetDb 获取数据库名
func (p InputPath) GetDb() string {
	return p.DB
}

// GetColl 获取集合名
func (p InputPath) GetColl() string {
	return p.Col
}

// GetCachePath 获取缓存文件路径
// 功能：返回缓存文件的文件名
// 返回：缓存文件名字符串
// 说明：未指定时使用默认命名规则：{数据库名}.{集合名}.{地图名}.yaml
func (p InputPath) GetCachePath() string {
	if p.Cache != "" {
		return p.Cache
	}
	return p.DB + "." + p.Col + "." + p.Name + ".yaml"
}

// Input 指定模拟器所有输入数据的配置项
type Input struct {
	URI string    `yaml:"uri,omitempty"` // MongoDB连接字符串
	Map InputPath `yaml:"map"`           // 地图
}

// ControlStep 指定模拟器模拟步数范围的配置项
type ControlStep struct {
	Start int32 `yaml:"start"` // 开始步数
	Total int32 `yaml:"total"` // 总步数，0表示直到所有车辆完成
}

// Spawn 车辆生成配置
// 功能：定义初始车辆数、周期性生成、入口点与死锁判定
type Spawn struct {
	Agents        int      `yaml:"agents,omitempty"`         // 初始车辆数（/init请求中的NAgents会覆盖）
	Interval      int32    `yaml:"interval,omitempty"`       // 周期性生成间隔（步），0表示只生成初始车辆
	Count         int      `yaml:"count,omitempty"`          // 每次周期性生成的车辆数
	Points        [][2]int `yaml:"points,omitempty"`         // 入口点坐标，为空则使用地图四角
	GridlockTicks int32    `yaml:"gridlock_ticks,omitempty"` // 入口点持续全部被占据多少步后判定死锁，0取缺省值100，负数表示不判定
}

// Route 导航配置
type Route struct {
	Algorithm           string `yaml:"algorithm,omitempty"`            // 格点搜索算法：astar | bfs
	Direct              bool   `yaml:"direct,omitempty"`               // 只做直接的格点级搜索，关闭基于路口图的分层导航
	MinDistance         int    `yaml:"min_distance,omitempty"`         // 起终点曼哈顿距离不小于该值时才使用分层导航
	NodeRadius          int    `yaml:"node_radius,omitempty"`          // 查找最近路口节点的曼哈顿半径
	IncludeDestinations bool   `yaml:"include_destinations,omitempty"` // 路口图是否把目的地也作为节点
}

// Car 车辆行为配置
type Car struct {
	Agent              string `yaml:"agent,omitempty"`                // 车辆类型：planner | learned
	StuckThreshold     int    `yaml:"stuck_threshold,omitempty"`      // 连续导航失败多少次后输出卡死诊断
	LaneChangePatience int    `yaml:"lane_change_patience,omitempty"` // 被前车阻挡多少步后尝试变道，0表示不因前车变道
}

// Learning Q-learning参数
type Learning struct {
	Alpha        float64 `yaml:"alpha,omitempty"`         // 学习率
	Gamma        float64 `yaml:"gamma,omitempty"`         // 折扣因子
	Epsilon      float64 `yaml:"epsilon,omitempty"`       // 初始探索率
	EpsilonDecay float64 `yaml:"epsilon_decay,omitempty"` // 每步探索率衰减系数
	EpsilonMin   float64 `yaml:"epsilon_min,omitempty"`   // 探索率下限
}

// Control 模拟器控制配置
// 功能：定义仿真系统的核心控制参数
type Control struct {
	Step     ControlStep `yaml:"step"`
	Seed     uint64      `yaml:"seed,omitempty"` // 随机数种子
	Spawn    Spawn       `yaml:"spawn,omitempty"`
	Route    Route       `yaml:"route,omitempty"`
	Car      Car         `yaml:"car,omitempty"`
	Learning Learning    `yaml:"learning,omitempty"`
}

// Server HTTP服务配置
type Server struct {
	Listen         string   `yaml:"listen,omitempty"`          // 监听地址
	AllowedOrigins []string `yaml:"allowed_origins,omitempty"` // CORS允许的来源
}

// Config YAML配置文件的根结构
type Config struct {
	Input   Input   `yaml:"input"`            // 输入
	Control Control `yaml:"control"`          // 模拟过程控制
	Server  Server  `yaml:"server,omitempty"` // HTTP服务
}
