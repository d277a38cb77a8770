package api

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	sendBuffer = 64
	writeWait  = 5 * time.Second
)

// client 一个websocket订阅者
type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// Hub websocket订阅者集合
// 功能：把每一步之后的车辆帧广播给所有订阅者
// 说明：所有订阅者的增删与广播都在Run所在的协程内完成；发送队列满的订阅者被断开
type Hub struct {
	clients    map[*client]bool
	register   chan *client
	unregister chan *client
	broadcast  chan []byte
	done       chan struct{}
}

func newHub() *Hub {
	return &Hub{
		clients:    make(map[*client]bool),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, sendBuffer),
		done:       make(chan struct{}),
	}
}

// Run 处理订阅者的增删与广播，直到ctx结束
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			return
		case c := <-h.register:
			h.clients[c] = true
			log.Debugf("ws client %s connected, %d total", c.id, len(h.clients))
		case c := <-h.unregister:
			if h.clients[c] {
				delete(h.clients, c)
				close(c.send)
				log.Debugf("ws client %s disconnected", c.id)
			}
		case msg := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					log.Warnf("ws client %s is too slow, dropped", c.id)
					delete(h.clients, c)
					close(c.send)
				}
			}
		}
	}
}

// add 注册订阅者，Hub已停止时返回false
func (h *Hub) add(c *client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// Publish 广播一帧，广播队列满时丢弃
func (h *Hub) Publish(msg []byte) {
	select {
	case h.broadcast <- msg:
	default:
		log.Warn("ws broadcast queue full, frame dropped")
	}
}

func newClient(conn *websocket.Conn) *client {
	return &client{id: uuid.NewString(), conn: conn, send: make(chan []byte, sendBuffer)}
}

// reader 丢弃客户端发来的消息，连接断开时注销
func (c *client) reader(h *Hub) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writer() {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			log.Debugf("ws client %s write failed: %v", c.id, err)
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
