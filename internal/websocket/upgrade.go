package websocket

import (
	"bufio"
	"fmt"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
)

// upgradeWriter hands websocket.Accept a writer it can hijack behind gin.
// Accept flushes the 101 through gin before hijacking, and gin refuses to
// hijack once its headers are flushed. Here the status is only recorded and
// the 101 is written on the raw connection after the hijack succeeds.
type upgradeWriter struct {
	gw     gin.ResponseWriter
	status int
}

func newUpgradeWriter(gw gin.ResponseWriter) *upgradeWriter {
	return &upgradeWriter{gw: gw, status: http.StatusOK}
}

func (w *upgradeWriter) Header() http.Header {
	return w.gw.Header()
}

// Write is only reached when Accept rejects the request with an error body.
func (w *upgradeWriter) Write(b []byte) (int, error) {
	return w.gw.Write(b)
}

func (w *upgradeWriter) WriteHeader(code int) {
	w.status = code
	w.gw.WriteHeader(code)
}

func (w *upgradeWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if w.status != http.StatusSwitchingProtocols {
		return nil, nil, fmt.Errorf("hijack before switching protocols (status %d)", w.status)
	}
	conn, brw, err := w.gw.Hijack()
	if err != nil {
		return nil, nil, err
	}
	if err := writeSwitchingProtocols(brw.Writer, w.gw.Header()); err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("write upgrade response: %w", err)
	}
	return conn, brw, nil
}

func writeSwitchingProtocols(bw *bufio.Writer, header http.Header) error {
	if _, err := fmt.Fprintf(bw, "HTTP/1.1 %d %s\r\n", http.StatusSwitchingProtocols, http.StatusText(http.StatusSwitchingProtocols)); err != nil {
		return err
	}
	if err := header.Write(bw); err != nil {
		return err
	}
	if _, err := bw.WriteString("\r\n"); err != nil {
		return err
	}
	return bw.Flush()
}
