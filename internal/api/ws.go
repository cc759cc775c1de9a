package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"globe-api/internal/dataset"
	"globe-api/internal/labels"
	"globe-api/internal/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 16384,
	// 与 HTTP 接口一致，不做来源限制
	CheckOrigin: func(r *http.Request) bool { return true },
}

const wsIdleTimeout = 60 * time.Second

// 文档注释：GET /labels/ws
// 背景：逐帧交互时 HTTP 往返开销明显；websocket 连接即一个场景，连接内独占一个引擎，断开即释放。
// 约束：每收到一帧回复一帧，不主动推送；空闲超过 60 秒断开；无法解析的帧回复 error 后继续。
func (s *Server) handleLabelsWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.L().Debug("ws_upgrade_error", "err", err)
		return
	}
	defer conn.Close()
	sess := &session{eng: labels.NewEngine(s.d.Labels, s.records[dataset.TierMore]), tier: dataset.TierMore}
	frames := 0
	for {
		_ = conn.SetReadDeadline(time.Now().Add(wsIdleTimeout))
		var fr frameRequest
		if err := conn.ReadJSON(&fr); err != nil {
			if !isDecodeError(err) {
				break
			}
			// 帧内容非法，连接仍可用
			if werr := conn.WriteJSON(map[string]string{"error": "invalid frame"}); werr != nil {
				break
			}
			continue
		}
		frames++
		if err := conn.WriteJSON(labelsResponse{Labels: sess.update(&fr, s.records)}); err != nil {
			break
		}
	}
	logger.L().Debug("ws_closed", "frames", frames, "ip", r.RemoteAddr)
}

func isDecodeError(err error) bool {
	var se *json.SyntaxError
	var ue *json.UnmarshalTypeError
	return errors.As(err, &se) || errors.As(err, &ue) || errors.Is(err, io.ErrUnexpectedEOF)
}
