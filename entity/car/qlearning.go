package car

import (
	"fmt"
	"os"

	"github.com/tsinghua-fib-lab/gridtraffic-sim/entity"
	"github.com/tsinghua-fib-lab/gridtraffic-sim/entity/car/route"
	"github.com/tsinghua-fib-lab/gridtraffic-sim/utils/config"
	"github.com/tsinghua-fib-lab/gridtraffic-sim/utils/randengine"
	"gopkg.in/yaml.v2"
)

const (
	numBuckets = 5
	NumStates  = numBuckets * numBuckets * 16 // 坐标差桶 × 阻塞位掩码
	NumActions = len(entity.MoveDirections)

	bucketRange = 10 // 坐标差分桶的边界

	RewardArrive     = 100.
	RewardInvalid    = -5.
	RewardIllegal    = -3.
	RewardStay       = -1.
	RewardCloser     = 2.
	RewardFarther    = -1.
	RewardNoProgress = 0.
)

// bucket 坐标差分桶：{<-10, [-10,0), 0, (0,10], >10}
func bucket(d int) int {
	switch {
	case d < -bucketRange:
		return 0
	case d < 0:
		return 1
	case d == 0:
		return 2
	case d <= bucketRange:
		return 3
	}
	return 4
}

// BlockedMask 四邻域阻塞位掩码
// 功能：第i位对应MoveDirections[i]，邻格有其他车辆、障碍物或红灯时置位
// 说明：越界的邻格不置位
func BlockedMask(network entity.IRoadNetwork, pos entity.Position, self int32) int {
	mask := 0
	for i, d := range entity.MoveDirections {
		p := pos.Step(d)
		if !network.InBounds(p) {
			continue
		}
		blocked := network.IsObstacle(p)
		if id, ok := network.CarAt(p); ok && id != self {
			blocked = true
		}
		if l, ok := network.LightAt(p); ok && !l.IsGreen() {
			blocked = true
		}
		if blocked {
			mask |= 1 << i
		}
	}
	return mask
}

// EncodeState 状态编号 = x桶*80 + y桶*16 + 阻塞位掩码
func EncodeState(dx, dy, mask int) int {
	return bucket(dx)*80 + bucket(dy)*16 + mask
}

// Reward 一次转移的奖励
// 参数：valid-目标格点是否有效（界内、无障碍物、无其他车辆），legal-是否满足交通规则，
// from-移动前位置，to-移动后位置，dest-终点
// 说明：纯函数，按 无效 -> 违规 -> 到达 -> 未移动 -> 距离变化 的顺序判定
func Reward(valid, legal bool, from, to, dest entity.Position) float64 {
	switch {
	case !valid:
		return RewardInvalid
	case !legal:
		return RewardIllegal
	case to == dest:
		return RewardArrive
	case to == from:
		return RewardStay
	}
	before, after := from.Manhattan(dest), to.Manhattan(dest)
	switch {
	case after < before:
		return RewardCloser
	case after > before:
		return RewardFarther
	}
	return RewardNoProgress
}

// UpdateQ Q值更新：(1-α)·q + α·(r + γ·maxNext)
func UpdateQ(q, reward, maxNext, alpha, gamma float64) float64 {
	return (1-alpha)*q + alpha*(reward+gamma*maxNext)
}

// QTable 表格型Q函数
type QTable [NumStates][NumActions]float64

// Best 状态s下价值最大的动作（相同时取编号最小者）及其价值
func (t *QTable) Best(s int) (int, float64) {
	best := 0
	for a := 1; a < NumActions; a++ {
		if t[s][a] > t[s][best] {
			best = a
		}
	}
	return best, t[s][best]
}

// Policy 一辆Q-learning车辆的策略：Q表与当前探索率
type Policy struct {
	Q       QTable
	Epsilon float64
}

// QStore 按车辆ID保存策略，训练的多轮之间保留
type QStore struct {
	policies map[int32]*Policy
}

// NewQStore 创建空的策略仓库
func NewQStore() *QStore {
	return &QStore{policies: make(map[int32]*Policy)}
}

// Get 获取车辆的策略，不存在时以初始探索率创建
func (s *QStore) Get(id int32, epsilon float64) *Policy {
	p, ok := s.policies[id]
	if !ok {
		p = &Policy{Epsilon: epsilon}
		s.policies[id] = p
	}
	return p
}

// Len 策略数量
func (s *QStore) Len() int {
	return len(s.policies)
}

// policyDoc 策略的持久化格式，只保存非零行
type policyDoc struct {
	Epsilon float64           `yaml:"epsilon"`
	Q       map[int][]float64 `yaml:"q,omitempty"`
}

// Save 将所有策略以yaml格式写入文件
func (s *QStore) Save(file string) error {
	doc := make(map[int32]policyDoc, len(s.policies))
	for id, p := range s.policies {
		d := policyDoc{Epsilon: p.Epsilon, Q: make(map[int][]float64)}
		for state, row := range p.Q {
			if row != [NumActions]float64{} {
				d.Q[state] = append([]float64(nil), row[:]...)
			}
		}
		doc[id] = d
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal q-tables: %w", err)
	}
	if err := os.WriteFile(file, data, 0o644); err != nil {
		return fmt.Errorf("write q-tables: %w", err)
	}
	log.Infof("saved %d q-tables to %s", len(s.policies), file)
	return nil
}

// LoadQStore 从Save写出的文件恢复策略仓库
// 返回：文件不存在时返回的错误满足errors.Is(err, fs.ErrNotExist)
func LoadQStore(file string) (*QStore, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read q-tables: %w", err)
	}
	var doc map[int32]policyDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse q-tables %s: %w", file, err)
	}
	s := NewQStore()
	for id, d := range doc {
		p := &Policy{Epsilon: d.Epsilon}
		for state, row := range d.Q {
			if state < 0 || state >= NumStates || len(row) != NumActions {
				return nil, fmt.Errorf("q-tables %s: car %d has bad row %d (len %d)", file, id, state, len(row))
			}
			copy(p.Q[state][:], row)
		}
		s.policies[id] = p
	}
	log.Infof("loaded %d q-tables from %s", len(s.policies), file)
	return s, nil
}

// learner Q-learning车辆的运行时
type learner struct {
	policy      *Policy
	cfg         config.Learning
	totalReward float64
	lastReward  float64
}

// outcome 车辆在pos处执行动作a的预判结果
type outcome struct {
	target entity.Position
	valid  bool
	legal  bool
}

func (c *Car) evaluate(a int) outcome {
	network := c.m.ctx.Network()
	target := c.pos.Step(entity.MoveDirections[a])
	o := outcome{target: target}
	if !network.InBounds(target) || network.IsObstacle(target) {
		return o
	}
	if id, ok := network.CarAt(target); ok && id != c.id {
		return o
	}
	// 没有道路的空格点可以进入但违反交通规则
	o.valid = true
	o.legal = route.CheckMove(network, c.pos, target, false) == route.MoveOK
	return o
}

func (c *Car) state(pos entity.Position) int {
	return EncodeState(c.dest.X-pos.X, c.dest.Y-pos.Y, BlockedMask(c.m.ctx.Network(), pos, c.id))
}

// updateLearned Q-learning车辆的一次激活
// 算法说明：
// 1. 编码当前状态，ε-greedy选择动作：探索时在合法动作中等概率选择（没有合法动作则在全部动作中选择），否则取Q值最大的动作
// 2. 只提交有效且合法的移动，否则原地不动
// 3. 计算奖励，按新状态更新Q值，探索率乘性衰减至下限
func (c *Car) updateLearned(generator *randengine.Engine) {
	l := c.learner
	s := c.state(c.pos)
	outcomes := make([]outcome, NumActions)
	legal := make([]int, 0, NumActions)
	for a := range outcomes {
		outcomes[a] = c.evaluate(a)
		if outcomes[a].valid && outcomes[a].legal {
			legal = append(legal, a)
		}
	}
	var a int
	if generator.PTrue(l.policy.Epsilon) {
		if len(legal) > 0 {
			a = legal[generator.Choice(len(legal))]
		} else {
			a = generator.Choice(NumActions)
		}
	} else {
		a, _ = l.policy.Q.Best(s)
	}

	from := c.pos
	o := outcomes[a]
	if o.valid && o.legal {
		if err := c.moveTo(o.target); err != nil {
			log.Debugf("car %d: learned move %v -> %v skipped: %v", c.id, from, o.target, err)
			o.valid = false
		}
	} else {
		c.waitCounter++
	}
	r := Reward(o.valid, o.legal, from, c.pos, c.dest)
	_, maxNext := l.policy.Q.Best(c.state(c.pos))
	l.policy.Q[s][a] = UpdateQ(l.policy.Q[s][a], r, maxNext, l.cfg.Alpha, l.cfg.Gamma)
	l.policy.Epsilon = max(l.cfg.EpsilonMin, l.policy.Epsilon*l.cfg.EpsilonDecay)
	l.lastReward = r
	l.totalReward += r
	c.m.recordReward(r)
	if !c.removed {
		c.status = entity.CarFollowing
		if c.pos == from {
			c.status = entity.CarWaiting
		}
	}
}

// LastReward 最近一次转移的奖励（只对Q-learning车辆有意义）
func (c *Car) LastReward() float64 {
	if c.learner == nil {
		return 0
	}
	return c.learner.lastReward
}
