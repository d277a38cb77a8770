package car_test

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/gridtraffic-sim/entity"
	"github.com/tsinghua-fib-lab/gridtraffic-sim/entity/car"
	"github.com/tsinghua-fib-lab/gridtraffic-sim/utils/config"
)

func TestReward(t *testing.T) {
	from := entity.Position{X: 0, Y: 0}
	dest := entity.Position{X: 3, Y: 0}
	assert.Equal(t, car.RewardInvalid, car.Reward(false, false, from, from, dest))
	assert.Equal(t, car.RewardIllegal, car.Reward(true, false, from, from, dest))
	assert.Equal(t, car.RewardArrive, car.Reward(true, true, entity.Position{X: 2, Y: 0}, dest, dest))
	assert.Equal(t, car.RewardStay, car.Reward(true, true, from, from, dest))
	assert.Equal(t, car.RewardCloser, car.Reward(true, true, from, entity.Position{X: 1, Y: 0}, dest))
	assert.Equal(t, car.RewardFarther, car.Reward(true, true, from, entity.Position{X: -1, Y: 0}, dest))
}

func TestUpdateQ(t *testing.T) {
	assert.InDelta(t, 10., car.UpdateQ(0, 100, 0, 0.1, 0.9), 1e-9)
	assert.InDelta(t, 0.5*4+0.5*(2+0.5*8), car.UpdateQ(4, 2, 8, 0.5, 0.5), 1e-9)
	// 奖励与后继价值都高于当前值时Q值上升，反之下降
	assert.Greater(t, car.UpdateQ(1, 5, 1, 0.1, 0.9), 1.)
	assert.Less(t, car.UpdateQ(1, -5, 0, 0.1, 0.9), 1.)
}

func TestEncodeState(t *testing.T) {
	assert.Equal(t, 0, car.EncodeState(-11, -11, 0))
	assert.Equal(t, 2*80+2*16, car.EncodeState(0, 0, 0))
	assert.Equal(t, 3*80+1*16+5, car.EncodeState(10, -1, 5))
	assert.Equal(t, car.NumStates-1, car.EncodeState(11, 11, 15))
	seen := map[int]bool{}
	for _, d := range []int{-20, -5, 0, 5, 20} {
		for _, e := range []int{-20, -5, 0, 5, 20} {
			s := car.EncodeState(d, e, 0)
			assert.False(t, seen[s])
			seen[s] = true
		}
	}
}

func TestBlockedMask(t *testing.T) {
	ctx := newSim(t, config.Config{},
		".#.",
		">>r",
		".>.",
	)
	network := ctx.Network()
	require.NoError(t, network.PlaceCar(7, entity.Position{X: 1, Y: 0}))
	center := entity.Position{X: 1, Y: 1}
	// Up: 障碍物，Down: 车辆，Right: 红灯
	assert.Equal(t, 0b0111, car.BlockedMask(network, center, 5))
	assert.Equal(t, 0b0101, car.BlockedMask(network, center, 7))
	// 越界的邻格不置位
	assert.Equal(t, 0, car.BlockedMask(network, entity.Position{X: 0, Y: 1}, 5))
}

func TestLearnedCarArrives(t *testing.T) {
	ctx := newSim(t, config.Config{}, ">D")
	c := addCar(t, ctx, entity.Position{X: 0, Y: 0}, entity.Position{X: 1, Y: 0}, true)
	assert.True(t, c.Learned())

	step(t, ctx, 1)
	assert.True(t, c.Removed())
	assert.Equal(t, car.RewardArrive, c.LastReward())
	rt := ctx.CarManager().(*car.Manager).Runtime()
	assert.Equal(t, int64(1), rt.Transitions)
	assert.Equal(t, car.RewardArrive, rt.Reward)

	policy := ctx.CarManager().(*car.Manager).Store().Get(c.ID(), 1)
	s := car.EncodeState(1, 0, 0)
	assert.InDelta(t, 10., policy.Q[s][2], 1e-9) // Right
	assert.InDelta(t, 0.995, policy.Epsilon, 1e-9)
}

func TestLearnedCarNeverOverlaps(t *testing.T) {
	c := config.Config{}
	c.Control.Car.Agent = config.AgentLearned
	c.Control.Seed = 11
	ctx := newSim(t, c,
		">>>>v",
		"^D.Dv",
		"^...v",
		"^D.Dv",
		"^<<<<",
	)
	ctx.Spawner().Request(4)
	for i := 0; i < 50; i++ {
		step(t, ctx, 1)
		seen := map[entity.Position]bool{}
		for _, v := range ctx.CarManager().Cars() {
			assert.False(t, seen[v.Position()], "two cars at %v", v.Position())
			seen[v.Position()] = true
			assert.True(t, ctx.Network().IsTraversable(v.Position()))
		}
	}
}

func TestLearnedCarPenalizedForRoadlessCell(t *testing.T) {
	ctx := newSim(t, config.Config{},
		"..",
		">D",
	)
	m := ctx.CarManager().(*car.Manager)
	// 贪心策略，全零Q表下选择编号最小的动作Up，进入没有道路的空格点
	m.Store().Get(0, 0)
	c := addCar(t, ctx, entity.Position{X: 0, Y: 0}, entity.Position{X: 1, Y: 0}, true)
	require.Equal(t, int32(0), c.ID())

	step(t, ctx, 1)
	assert.Equal(t, entity.Position{X: 0, Y: 0}, c.Position())
	assert.Equal(t, car.RewardIllegal, c.LastReward())
	assert.Equal(t, entity.CarWaiting, c.Status())
	assert.Equal(t, 1, c.WaitCounter())
}

func TestLearnedCarPenalizedForObstacle(t *testing.T) {
	ctx := newSim(t, config.Config{},
		"#.",
		">D",
	)
	m := ctx.CarManager().(*car.Manager)
	m.Store().Get(0, 0)
	c := addCar(t, ctx, entity.Position{X: 0, Y: 0}, entity.Position{X: 1, Y: 0}, true)

	step(t, ctx, 1)
	assert.Equal(t, entity.Position{X: 0, Y: 0}, c.Position())
	assert.Equal(t, car.RewardInvalid, c.LastReward())
}

func TestQStoreSaveLoad(t *testing.T) {
	store := car.NewQStore()
	p := store.Get(0, 0.5)
	p.Q[7][2] = 1.5
	p.Q[car.NumStates-1][0] = -3
	store.Get(4, 0.05)

	file := filepath.Join(t.TempDir(), "q.yaml")
	require.NoError(t, store.Save(file))
	loaded, err := car.LoadQStore(file)
	require.NoError(t, err)
	require.Equal(t, 2, loaded.Len())
	assert.Equal(t, *store.Get(0, 1), *loaded.Get(0, 1))
	assert.Equal(t, *store.Get(4, 1), *loaded.Get(4, 1))
	assert.Equal(t, 2, loaded.Len())

	_, err = car.LoadQStore(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, errors.Is(err, fs.ErrNotExist))

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("0:\n  epsilon: 0.1\n  q:\n    3: [1, 2]\n"), 0o644))
	_, err = car.LoadQStore(bad)
	assert.Error(t, err)
}
