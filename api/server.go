package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"github.com/tsinghua-fib-lab/gridtraffic-sim/entity"
	"github.com/tsinghua-fib-lab/gridtraffic-sim/entity/car"
	"github.com/tsinghua-fib-lab/gridtraffic-sim/task"
	"github.com/tsinghua-fib-lab/gridtraffic-sim/utils/config"
	"github.com/tsinghua-fib-lab/gridtraffic-sim/utils/input"
)

// 未指定NAgents时的初始车辆数
const defaultAgents = 1

// ErrNotInitialized 尚未调用/init
var ErrNotInitialized = errors.New("model is not initialized, call /init first")

// Server 仿真HTTP服务
// 功能：把单个仿真实例的查询与推进暴露为JSON接口，并通过websocket推送每一步的车辆帧
// 说明：所有请求经互斥锁串行化，仿真核心本身保持单线程；地图在第一次/init时加载并缓存
type Server struct {
	mu sync.Mutex

	cfg      config.Config
	cacheDir string
	initRes  *input.Input
	sim      *task.Context
	runID    string
	store    *car.QStore

	hub      *Hub
	upgrader websocket.Upgrader
	handler  http.Handler
}

// NewServer 创建HTTP服务
// 参数：c-配置对象，cacheDir-地图缓存目录
// 说明：CORS允许的来源取server.allowed_origins（缺省为http://localhost）
func NewServer(c config.Config, cacheDir string) *Server {
	rc := config.NewRuntimeConfig(c)
	s := &Server{
		cfg:      c,
		cacheDir: cacheDir,
		hub:      newHub(),
	}
	origins := rc.All.Server.AllowedOrigins
	corsHandler := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	})
	s.upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || corsHandler.OriginAllowed(r)
	}}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /init", s.handleInit)
	mux.HandleFunc("GET /getAgents", s.handleAgents)
	mux.HandleFunc("GET /getTrafficLights", s.handleTrafficLights)
	mux.HandleFunc("GET /getObstacles", s.handleObstacles)
	mux.HandleFunc("GET /getDestinations", s.handleDestinations)
	mux.HandleFunc("GET /getRoads", s.handleRoads)
	mux.HandleFunc("GET /getCell", s.handleCell)
	mux.HandleFunc("GET /getStats", s.handleStats)
	mux.HandleFunc("GET /update", s.handleUpdate)
	mux.HandleFunc("GET /ws", s.handleWS)
	s.handler = corsHandler.Handler(mux)
	return s
}

// Handler HTTP处理器（含CORS）
func (s *Server) Handler() http.Handler {
	return s.handler
}

// UseStore 之后的/init使用给定的Q表仓库，学习车辆沿用其中已训练的策略
func (s *Server) UseStore(store *car.QStore) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store = store
}

// Hub websocket订阅者集合
func (s *Server) Hub() *Hub {
	return s.hub
}

// RunServer 启动HTTP服务，ctx结束时优雅关闭
func RunServer(ctx context.Context, s *Server, address string) error {
	go s.hub.Run(ctx)
	srv := &http.Server{Addr: address, Handler: s.Handler()}
	errCh := make(chan error, 1)
	go func() {
		log.Infof("server listening at %v", address)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		log.Info("server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("write response: %v", err)
	}
}

func writeMessage(w http.ResponseWriter, code int, format string, args ...any) {
	writeJSON(w, code, Message{Message: fmt.Sprintf(format, args...)})
}

// current 已初始化的仿真，调用方需持有锁
func (s *Server) current(w http.ResponseWriter) (*task.Context, bool) {
	if s.sim == nil {
		writeMessage(w, http.StatusBadRequest, "%v", ErrNotInitialized)
		return nil, false
	}
	return s.sim, true
}

// handleInit 初始化仿真
// 说明：NAgents缺省为1；负数返回400；地图加载或初始化失败返回500且保留原有仿真
func (s *Server) handleInit(w http.ResponseWriter, r *http.Request) {
	var req InitRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeMessage(w, http.StatusBadRequest, "malformed init request: %v", err)
			return
		}
	}
	n := defaultAgents
	if req.NAgents != nil {
		n = *req.NAgents
	}
	if n < 0 {
		writeMessage(w, http.StatusBadRequest, "NAgents must not be negative, got %d", n)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initRes == nil {
		initRes, err := input.Init(s.cfg, s.cacheDir)
		if err != nil {
			log.Errorf("init: %v", err)
			writeMessage(w, http.StatusInternalServerError, "Error initializing model: %v", err)
			return
		}
		s.initRes = initRes
	}
	sim, err := task.NewContextFromInput(s.cfg, s.initRes, n, s.store)
	if err != nil {
		log.Errorf("init: %v", err)
		writeMessage(w, http.StatusInternalServerError, "Error initializing model: %v", err)
		return
	}
	s.sim = sim
	s.runID = uuid.NewString()
	log.Infof("run %s initialized with %d agents", s.runID, n)
	writeJSON(w, http.StatusOK, InitResponse{
		Message: "Traffic simulation model initiated successfully.",
		RunID:   s.runID,
	})
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sim, ok := s.current(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, Positions[AgentPosition]{Positions: agentPositions(sim.CarManager().Cars())})
}

func (s *Server) handleTrafficLights(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sim, ok := s.current(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, Positions[LightPosition]{Positions: lightPositions(sim.TrafficLightManager().All())})
}

func (s *Server) handleObstacles(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sim, ok := s.current(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, Positions[ObstaclePosition]{Positions: obstaclePositions(sim.Network().Obstacles())})
}

func (s *Server) handleDestinations(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sim, ok := s.current(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, Positions[DestinationPosition]{Positions: destinationPositions(sim.DestinationManager().All())})
}

func (s *Server) handleRoads(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sim, ok := s.current(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, Positions[RoadPosition]{Positions: roadPositions(sim.Network().Roads())})
}

// handleCell 查询格点上的全部占用者
// 说明：x、y缺失、非整数或越界返回400
func (s *Server) handleCell(w http.ResponseWriter, r *http.Request) {
	x, errX := strconv.Atoi(r.URL.Query().Get("x"))
	y, errY := strconv.Atoi(r.URL.Query().Get("y"))
	if errX != nil || errY != nil {
		writeMessage(w, http.StatusBadRequest, "x and y must be integers")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sim, ok := s.current(w)
	if !ok {
		return
	}
	p := entity.Position{X: x, Y: y}
	if !sim.Network().InBounds(p) {
		writeMessage(w, http.StatusBadRequest, "cell %v is out of bounds", p)
		return
	}
	writeJSON(w, http.StatusOK, CellResponse{X: x, Y: y, Occupants: cellOccupants(sim.Network().Occupants(p))})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sim, ok := s.current(w)
	if !ok {
		return
	}
	st := sim.Stats()
	resp := StatsResponse{
		RunID:     s.runID,
		Step:      st.Step,
		Live:      st.Live,
		Pending:   st.Pending,
		Spawned:   st.Runtime.Spawned,
		Completed: st.Completed,
		Halted:    st.Halted,
	}
	if st.Completed > 0 {
		resp.AverageTrip = float64(st.Runtime.TravelSteps) / float64(st.Completed)
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleUpdate 推进一步
// 说明：死锁或已停止返回409；成功后向websocket订阅者推送车辆帧
func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sim, ok := s.current(w)
	if !ok {
		return
	}
	if err := sim.Step(); err != nil {
		if errors.Is(err, task.ErrGridlock) || errors.Is(err, task.ErrHalted) {
			writeMessage(w, http.StatusConflict, "Simulation halted: %v", err)
			return
		}
		log.Errorf("update: %v", err)
		writeMessage(w, http.StatusInternalServerError, "Error updating model: %v", err)
		return
	}
	step := sim.Stats().Step
	frame, err := json.Marshal(Frame{RunID: s.runID, CurrentStep: step, Positions: agentPositions(sim.CarManager().Cars())})
	if err == nil {
		s.hub.Publish(frame)
	}
	writeJSON(w, http.StatusOK, UpdateResponse{
		Message:     fmt.Sprintf("Model updated to step %d.", step),
		CurrentStep: step,
	})
}

// handleWS 订阅每一步之后的车辆帧
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debugf("ws upgrade: %v", err)
		return
	}
	c := newClient(conn)
	if !s.hub.add(c) {
		conn.Close()
		return
	}
	go c.writer()
	go c.reader(s.hub)
}
