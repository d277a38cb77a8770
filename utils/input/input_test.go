package input

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/gridtraffic-sim/entity"
	"github.com/tsinghua-fib-lab/gridtraffic-sim/utils/config"
	"gopkg.in/yaml.v2"
)

var testDict = map[string]string{
	">": "Right",
	"<": "Left",
	"^": "Up",
	"v": "Down",
	"s": "7",
	"S": "15",
	"#": "Obstacle",
	"D": "Destination",
}

func TestParseCoordinatesAndKinds(t *testing.T) {
	lines := []string{
		"v#D",
		"s>>",
		"v..",
	}
	m, err := Parse(lines, testDict)
	require.NoError(t, err)
	assert.Equal(t, 3, m.Width)
	assert.Equal(t, 3, m.Height)

	assert.Equal(t, []entity.Position{{X: 1, Y: 2}}, m.Obstacles)
	require.Len(t, m.Destinations, 1)
	assert.Equal(t, entity.Position{X: 2, Y: 2}, m.Destinations[0].Pos)
	assert.NotEmpty(t, m.Destinations[0].Color)

	require.Len(t, m.Lights, 1)
	assert.Equal(t, entity.LightSpec{Pos: entity.Position{X: 0, Y: 1}, Initial: entity.LightRed, Period: 7}, m.Lights[0])

	roads := make(map[entity.Position]entity.Direction)
	for _, r := range m.Roads {
		roads[r.Pos] = r.Direction
	}
	// 信号灯下的道路取相邻竖直道路方向
	assert.Equal(t, entity.DirectionDown, roads[entity.Position{X: 0, Y: 1}])
	assert.Equal(t, entity.DirectionNone, roads[entity.Position{X: 2, Y: 2}])
	assert.Equal(t, entity.DirectionRight, roads[entity.Position{X: 1, Y: 1}])
	assert.Equal(t, entity.DirectionDown, roads[entity.Position{X: 0, Y: 0}])
	_, ok := roads[entity.Position{X: 1, Y: 0}]
	assert.False(t, ok)
}

func TestParseLightInference(t *testing.T) {
	m, err := Parse([]string{"<S<"}, testDict)
	require.NoError(t, err)
	require.Len(t, m.Lights, 1)
	assert.Equal(t, entity.LightGreen, m.Lights[0].Initial)
	assert.Equal(t, int32(15), m.Lights[0].Period)
	for _, r := range m.Roads {
		if r.Pos == m.Lights[0].Pos {
			assert.Equal(t, entity.DirectionLeft, r.Direction)
		}
	}

	m, err = Parse([]string{"S"}, testDict)
	require.NoError(t, err)
	assert.Equal(t, []entity.RoadSpec{{Pos: entity.Position{}, Direction: entity.DirectionNone}}, m.Roads)
}

func TestParseErrors(t *testing.T) {
	_, err := Parse([]string{">>", ">"}, testDict)
	assert.ErrorIs(t, err, ErrMapLoad)

	_, err = Parse(nil, testDict)
	assert.ErrorIs(t, err, ErrMapLoad)

	_, err = Parse([]string{"x"}, map[string]string{"x": "Sideways"})
	assert.ErrorIs(t, err, ErrMapLoad)

	_, err = Parse([]string{"a"}, map[string]string{"a": "0"})
	assert.ErrorIs(t, err, ErrMapLoad)
}

func TestInitFromFile(t *testing.T) {
	dir := t.TempDir()
	mapFile := filepath.Join(dir, "map.txt")
	dictFile := filepath.Join(dir, "dict.json")
	require.NoError(t, os.WriteFile(mapFile, []byte(">>D\r\n^#v\r\n^<<\n"), 0o644))
	require.NoError(t, os.WriteFile(dictFile, []byte(`{">": "Right", "<": "Left", "^": "Up", "v": "Down", "s": 7, "#": "Obstacle", "D": "Destination"}`), 0o644))

	var cfg config.Config
	cfg.Input.Map = config.InputPath{File: mapFile, Dictionary: dictFile}
	in, err := Init(cfg, "")
	require.NoError(t, err)
	assert.Equal(t, 3, in.Map.Width)
	assert.Equal(t, 3, in.Map.Height)
	assert.Len(t, in.Map.Obstacles, 1)
	assert.Len(t, in.Map.Destinations, 1)
	assert.Len(t, in.Map.Roads, 8)

	raw, err := readDictionary(dictFile)
	require.NoError(t, err)
	assert.Equal(t, "7", normalizeDictionary(raw)["s"])

	cfg.Input.Map.File = filepath.Join(dir, "missing.txt")
	_, err = Init(cfg, "")
	assert.ErrorIs(t, err, ErrMapLoad)
}

func TestInitOnlyCache(t *testing.T) {
	dir := t.TempDir()
	path := config.InputPath{DB: "sim", Col: "maps", Name: "small", OnlyCache: true}
	var cfg config.Config
	cfg.Input.Map = path

	_, err := Init(cfg, dir)
	assert.ErrorIs(t, err, ErrMapLoad)

	doc := Document{
		Name:       "small",
		Lines:      []string{">>", "^D"},
		Dictionary: map[string]interface{}{">": "Right", "^": "Up", "D": "Destination"},
	}
	data, err := yaml.Marshal(doc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, path.GetCachePath()), data, 0o644))

	in, err := Init(cfg, dir)
	require.NoError(t, err)
	assert.Equal(t, 2, in.Map.Width)
	assert.Len(t, in.Map.Destinations, 1)
}
