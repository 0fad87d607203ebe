package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/subc0der/resonate/internal/library"
	"github.com/subc0der/resonate/internal/scanner"
)

const recentScanLimit = 5

var progressUpgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

type scanStatusResponse struct {
	Progress scanner.Progress     `json:"progress"`
	Recent   []library.ScanRecord `json:"recent"`
}

type startScanRequest struct {
	Mode string `json:"mode"`
}

type startScanResponse struct {
	ScanID string `json:"scanId"`
	Mode   string `json:"mode"`
}

func (s *Server) handleGetScan(w http.ResponseWriter, r *http.Request) {
	recent, err := s.scans.Recent(r.Context(), recentScanLimit)
	if err != nil {
		s.log.Error("list recent scans failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, scanStatusResponse{
		Progress: s.tracker.Latest(),
		Recent:   recent,
	})
}

func (s *Server) handleStartScan(w http.ResponseWriter, r *http.Request) {
	request := startScanRequest{Mode: scanner.ModeFull}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	var scanID string
	var err error
	mode := strings.ToLower(strings.TrimSpace(request.Mode))
	switch mode {
	case "", scanner.ModeFull:
		mode = scanner.ModeFull
		scanID, err = s.scanner.StartFullScan()
	case scanner.ModeQuick:
		scanID, err = s.scanner.StartQuickScan()
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unsupported scan mode %q", request.Mode))
		return
	}
	if err != nil {
		if errors.Is(err, scanner.ErrScanInProgress) {
			writeError(w, http.StatusConflict, "a scan is already in progress")
			return
		}
		s.log.Error("start scan failed", "mode", mode, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to start scan")
		return
	}

	writeJSON(w, http.StatusAccepted, startScanResponse{ScanID: scanID, Mode: mode})
}

func (s *Server) handleStopScan(w http.ResponseWriter, _ *http.Request) {
	stopping := s.scanner.StopScan()
	writeJSON(w, http.StatusOK, map[string]bool{"stopping": stopping})
}

// handleScanSocket streams progress snapshots over a WebSocket until
// the scan reaches a terminal state or the client hangs up.
func (s *Server) handleScanSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := progressUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	updates, cancel := s.tracker.Subscribe()
	defer cancel()

	// The read pump only notices the peer closing; inbound frames are
	// ignored.
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			if _, _, readErr := conn.ReadMessage(); readErr != nil {
				return
			}
		}
	}()

	for {
		select {
		case progress, ok := <-updates:
			if !ok {
				return
			}
			if writeErr := conn.WriteJSON(progress); writeErr != nil {
				return
			}
			if progress.IsComplete {
				closeFrame := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
				_ = conn.WriteMessage(websocket.CloseMessage, closeFrame)
				return
			}
		case <-clientGone:
			return
		case <-r.Context().Done():
			return
		}
	}
}
