package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/gridtraffic-sim/api"
	"github.com/tsinghua-fib-lab/gridtraffic-sim/entity"
	"github.com/tsinghua-fib-lab/gridtraffic-sim/entity/car"
	"github.com/tsinghua-fib-lab/gridtraffic-sim/utils/config"
)

const testMap = `>>>G>v
^D..Dv
^.#..v
^....v
^D..Dv
^<r<<<
`

const testDict = `">": Right
"<": Left
"^": Up
"v": Down
"r": 4
"G": 4
`

func newTestServer(t *testing.T, mutate func(*config.Config)) *httptest.Server {
	t.Helper()
	ts, _ := newTestServerWith(t, mutate)
	return ts
}

func newTestServerWith(t *testing.T, mutate func(*config.Config)) (*httptest.Server, *api.Server) {
	t.Helper()
	dir := t.TempDir()
	mapFile := filepath.Join(dir, "map.txt")
	dictFile := filepath.Join(dir, "dict.yaml")
	require.NoError(t, os.WriteFile(mapFile, []byte(testMap), 0o644))
	require.NoError(t, os.WriteFile(dictFile, []byte(testDict), 0o644))

	c := config.Config{}
	c.Input.Map = config.InputPath{File: mapFile, Dictionary: dictFile}
	c.Control.Seed = 5
	if mutate != nil {
		mutate(&c)
	}
	s := api.NewServer(c, "")
	ctx, cancel := context.WithCancel(context.Background())
	go s.Hub().Run(ctx)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		cancel()
	})
	return ts, s
}

func doJSON(t *testing.T, method, url, body string, out any) int {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestUninitialized(t *testing.T) {
	ts := newTestServer(t, nil)
	for _, path := range []string{"/getAgents", "/getTrafficLights", "/getObstacles", "/getDestinations", "/getRoads", "/getCell?x=0&y=0", "/getStats", "/update"} {
		var msg api.Message
		assert.Equal(t, http.StatusBadRequest, doJSON(t, http.MethodGet, ts.URL+path, "", &msg), path)
		assert.NotEmpty(t, msg.Message)
	}
}

func TestInitAndQuery(t *testing.T) {
	ts := newTestServer(t, nil)

	var initResp api.InitResponse
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, ts.URL+"/init", `{"NAgents": 3}`, &initResp))
	assert.Equal(t, "Traffic simulation model initiated successfully.", initResp.Message)
	assert.NotEmpty(t, initResp.RunID)

	var agents api.Positions[api.AgentPosition]
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, ts.URL+"/getAgents", "", &agents))
	assert.Len(t, agents.Positions, 3)
	for _, a := range agents.Positions {
		assert.True(t, strings.HasPrefix(a.ID, "car_"))
	}

	var lights api.Positions[api.LightPosition]
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, ts.URL+"/getTrafficLights", "", &lights))
	require.Len(t, lights.Positions, 2)
	states := map[[2]int]bool{}
	for _, l := range lights.Positions {
		states[[2]int{l.X, l.Y}] = l.State
	}
	assert.Equal(t, map[[2]int]bool{{3, 5}: true, {2, 0}: false}, states)

	var obstacles api.Positions[api.ObstaclePosition]
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, ts.URL+"/getObstacles", "", &obstacles))
	assert.Equal(t, []api.ObstaclePosition{{ID: "ob_0", X: 2, Y: 3}}, obstacles.Positions)

	var destinations api.Positions[api.DestinationPosition]
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, ts.URL+"/getDestinations", "", &destinations))
	assert.Len(t, destinations.Positions, 4)

	for i := 1; i <= 3; i++ {
		var upd api.UpdateResponse
		require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, ts.URL+"/update", "", &upd))
		assert.Equal(t, int32(i), upd.CurrentStep)
	}

	var stats api.StatsResponse
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, ts.URL+"/getStats", "", &stats))
	assert.Equal(t, int32(3), stats.Step)
	assert.Equal(t, initResp.RunID, stats.RunID)
	assert.Equal(t, int32(3), stats.Spawned)

	// 重新初始化：步数归零，新的运行ID
	var again api.InitResponse
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, ts.URL+"/init", `{}`, &again))
	assert.NotEqual(t, initResp.RunID, again.RunID)
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, ts.URL+"/getStats", "", &stats))
	assert.Equal(t, int32(0), stats.Step)
	assert.Equal(t, 1, stats.Live)
}

func TestInitErrors(t *testing.T) {
	ts := newTestServer(t, nil)
	var msg api.Message
	assert.Equal(t, http.StatusBadRequest, doJSON(t, http.MethodPost, ts.URL+"/init", `{"NAgents": -1}`, &msg))
	assert.Equal(t, http.StatusBadRequest, doJSON(t, http.MethodPost, ts.URL+"/init", `{"NAgents": `, &msg))
	assert.Equal(t, http.StatusMethodNotAllowed, doJSON(t, http.MethodGet, ts.URL+"/init", "", nil))

	broken := newTestServer(t, func(c *config.Config) {
		c.Input.Map.File = filepath.Join(t.TempDir(), "missing.txt")
	})
	assert.Equal(t, http.StatusInternalServerError, doJSON(t, http.MethodPost, broken.URL+"/init", `{"NAgents": 1}`, &msg))
	assert.Contains(t, msg.Message, "Error initializing model")
	assert.Equal(t, http.StatusBadRequest, doJSON(t, http.MethodGet, broken.URL+"/getAgents", "", &msg))
}

func TestGridlockConflict(t *testing.T) {
	ts := newTestServer(t, func(c *config.Config) {
		c.Control.Spawn = config.Spawn{Interval: 1, Count: 4, GridlockTicks: 1}
	})
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, ts.URL+"/init", `{"NAgents": 0}`, nil))
	code := http.StatusOK
	for i := 0; i < 200 && code == http.StatusOK; i++ {
		code = doJSON(t, http.MethodGet, ts.URL+"/update", "", nil)
	}
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, http.StatusConflict, doJSON(t, http.MethodGet, ts.URL+"/update", "", nil))

	var stats api.StatsResponse
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, ts.URL+"/getStats", "", &stats))
	assert.True(t, stats.Halted)
}

func TestCORS(t *testing.T) {
	ts := newTestServer(t, nil)
	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/init", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "http://localhost", resp.Header.Get("Access-Control-Allow-Origin"))

	req, err = http.NewRequest(http.MethodGet, ts.URL+"/getAgents", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://evil.example")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestWebsocketFrames(t *testing.T) {
	ts := newTestServer(t, nil)
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, ts.URL+"/init", `{"NAgents": 2}`, nil))

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	frames := make(chan api.Frame, 1)
	go func() {
		var f api.Frame
		if conn.ReadJSON(&f) == nil {
			frames <- f
		}
	}()
	var frame api.Frame
	require.Eventually(t, func() bool {
		if resp, err := http.Get(ts.URL + "/update"); err == nil {
			resp.Body.Close()
		}
		select {
		case frame = <-frames:
			return true
		default:
			return false
		}
	}, 5*time.Second, 20*time.Millisecond)
	assert.Positive(t, frame.CurrentStep)
	assert.NotEmpty(t, frame.RunID)
}

func TestRoadsAndCells(t *testing.T) {
	ts := newTestServer(t, nil)
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, ts.URL+"/init", `{"NAgents": 0}`, nil))

	var roads api.Positions[api.RoadPosition]
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, ts.URL+"/getRoads", "", &roads))
	assert.NotEmpty(t, roads.Positions)
	directions := map[[2]int]entity.Direction{}
	for _, r := range roads.Positions {
		assert.True(t, strings.HasPrefix(r.ID, "road_"))
		directions[[2]int{r.X, r.Y}] = r.Direction
	}
	assert.Equal(t, entity.DirectionUp, directions[[2]int{0, 0}])
	assert.Equal(t, entity.DirectionRight, directions[[2]int{0, 5}])

	var cell api.CellResponse
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, ts.URL+"/getCell?x=2&y=3", "", &cell))
	assert.Equal(t, api.CellResponse{X: 2, Y: 3, Occupants: []api.CellOccupant{{ID: 0, Kind: "Obstacle"}}}, cell)

	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, ts.URL+"/getCell?x=2&y=0", "", &cell))
	kinds := make([]string, 0, len(cell.Occupants))
	for _, o := range cell.Occupants {
		kinds = append(kinds, o.Kind)
	}
	assert.Contains(t, kinds, "TrafficLight")

	var msg api.Message
	assert.Equal(t, http.StatusBadRequest, doJSON(t, http.MethodGet, ts.URL+"/getCell?x=9&y=9", "", &msg))
	assert.Equal(t, http.StatusBadRequest, doJSON(t, http.MethodGet, ts.URL+"/getCell?x=a", "", &msg))
}

func TestInitUsesSharedStore(t *testing.T) {
	ts, s := newTestServerWith(t, func(c *config.Config) {
		c.Control.Car.Agent = config.AgentLearned
	})
	store := car.NewQStore()
	s.UseStore(store)

	require.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, ts.URL+"/init", `{"NAgents": 2}`, nil))
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, ts.URL+"/update", "", nil))
	assert.Equal(t, 2, store.Len())
}
