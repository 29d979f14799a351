package rovercam

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/roverhub/rovercam/capture"
	"github.com/roverhub/rovercam/client"
	"github.com/roverhub/rovercam/frame"
	"github.com/roverhub/rovercam/gateway"
)

const indexPage = `<html><body><h3>Rovercam</h3>
<p><a href='/mjpeg'>/mjpeg</a> (video stream)</p>
<p><a href='/jpg'>/jpg</a> (single snapshot)</p>
<p><a href='/status'>/status</a> (last command JSON)</p>
<p>POST control to <code>/cmd</code>, e.g. <code>{"M":"Left","v":90}</code></p>
</body></html>`

func (s *Server) buildRouter() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/", s.handleIndex)
	r.GET("/mjpeg", s.handleStream)
	r.GET("/jpg", s.handleSnapshot)
	r.GET("/ws", s.handleWS)
	r.GET("/status", s.handleStatus)
	r.POST("/cmd", s.handleCommand)
	r.GET("/cmd", s.handleCommandHint)
	return r
}

func (s *Server) handleIndex(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(indexPage))
}

// handleStream is the connection lifecycle handler for the MJPEG
// endpoint: it takes the raw TCP connection over from the HTTP stack,
// favors latency over throughput for the small frequent writes ahead,
// and hands the connection to the broadcaster. The HTTP handler
// returns immediately; from here on the client is fed by broadcast
// passes and watched for disconnects.
func (s *Server) handleStream(c *gin.Context) {
	conn, rw, err := c.Writer.Hijack()
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "handleStream",
			"error":    err,
		}).Error("Connection hijack failed")
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	_ = conn.SetDeadline(time.Time{})
	if tcp, ok := conn.(*net.TCPConn); ok {
		_ = tcp.SetNoDelay(true)
	}

	sc := newStreamConn(conn)
	cl := client.New(sc, s.opts.ClientBudget)
	if err := s.broadcaster.Attach(cl); err != nil {
		cl.Release()
		return
	}

	go s.watchDisconnect(sc, cl, rw.Reader)
}

// watchDisconnect is the disconnect callback: it blocks on the
// connection's read side and reacts to the peer going away. Removal
// races benignly with the broadcast liveness check; whichever path
// runs second finds nothing left to do.
func (s *Server) watchDisconnect(sc *streamConn, cl *client.Client, r *bufio.Reader) {
	buf := make([]byte, 256)
	for {
		if _, err := r.Read(buf); err != nil {
			break
		}
	}
	sc.markClosed()
	s.registry.Remove(cl)
	logrus.WithFields(logrus.Fields{
		"function": "watchDisconnect",
		"client":   cl.ID,
	}).Debug("Stream peer disconnected")
}

// handleSnapshot serves the cached frame, or captures one on the spot
// when the cache is still empty.
func (s *Server) handleSnapshot(c *gin.Context) {
	if jpg, err := s.cache.Snapshot(); err == nil {
		c.Data(http.StatusOK, "image/jpeg", jpg)
		return
	}

	buf, err := s.src.Acquire(c.Request.Context())
	if err != nil {
		c.String(http.StatusServiceUnavailable, "camera busy")
		return
	}
	defer buf.Release()
	if buf.Format != capture.FormatJPEG || !frame.IsJPEG(buf.Data) {
		c.String(http.StatusServiceUnavailable, "camera busy")
		return
	}
	jpg := make([]byte, len(buf.Data))
	copy(jpg, buf.Data)
	c.Data(http.StatusOK, "image/jpeg", jpg)
}

// handleWS feeds cached frames over a WebSocket, one binary message
// per frame. The sequence counter keeps idle ticks from re-sending the
// same frame; a slow peer just sees fewer frames.
func (s *Server) handleWS(c *gin.Context) {
	ws, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer ws.Close()

	logrus.WithFields(logrus.Fields{
		"function": "handleWS",
		"remote":   ws.RemoteAddr().String(),
	}).Info("WebSocket frame feed attached")

	ticker := time.NewTicker(s.opts.CaptureInterval)
	defer ticker.Stop()

	var last uint64
	for {
		select {
		case <-s.done:
			return
		case <-c.Request.Context().Done():
			return
		case <-ticker.C:
			seq := s.cache.Seq()
			if seq == last {
				continue
			}
			jpg, err := s.cache.Snapshot()
			if err != nil {
				continue
			}
			last = seq
			_ = ws.SetWriteDeadline(time.Now().Add(2 * time.Second))
			if err := ws.WriteMessage(websocket.BinaryMessage, jpg); err != nil {
				return
			}
		}
	}
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.gateway.State().Snapshot())
}

func (s *Server) handleCommand(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "err": "bad body"})
		return
	}
	if _, err := s.gateway.HandleBody(body); err != nil {
		if errors.Is(err, gateway.ErrBadJSON) {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "err": "bad json"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "err": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handleCommandHint(c *gin.Context) {
	c.String(http.StatusOK, `POST JSON here, e.g. {"M":"Left","v":90}`)
}
