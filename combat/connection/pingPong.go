package connection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8 * 1024
)

var (
	errConnClosed   = errors.New("connection closed")
	errSlowConsumer = errors.New("client could not keep up with pending attacks")
)

// readLoop はクライアントからのメッセージを処理する。パニックはこの接続だけに閉じ込める
func (c *clientConn) readLoop(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Panic in websocket read loop", zap.Any("panic", r))
			err = fmt.Errorf("read loop panic: %v", r)
		}
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	// Pongを受け取るたびに読み取りデッドラインを延長
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("WebSocket closed unexpectedly", zap.Error(err))
			}
			return errConnClosed
		}
		c.dispatch(ctx, data)
	}
}

// writeLoop は送信チャネルの内容と定期的なPingを書き込む。WebSocketへの書き込みはここだけ
func (c *clientConn) writeLoop(ctx context.Context) error {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return nil
		case <-c.sub.Kicked():
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "too slow"), time.Now().Add(writeWait))
			return errSlowConsumer
		case msg, ok := <-c.sub.Send():
			if !ok {
				return errConnClosed
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
				return err
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Error("Error sending ping", zap.Error(err))
				return err
			}
		}
	}
}
