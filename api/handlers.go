package api

import (
	"io"
	"net/http"
	"strconv"
)

func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	buf, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 4*1024*1024))
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read body")
		return
	}
	if err := s.core.Load(buf); err != nil {
		debugLog("load: %v", err)
		writeServiceErr(w, err)
		return
	}
	debugLog("load: %d bytes installed", len(buf))
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

func (s *Server) handleLoadRaw(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req LoadRawRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.core.LoadRaw(req.Bytecode); err != nil {
		writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := s.core.Reset(); err != nil {
		writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
	s.broadcastStateChange()
}

func (s *Server) handleStep(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	status, err := s.core.Step()
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{Status: status.String()})
	s.broadcastStateChange()
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req RunRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	executed, status, err := s.core.Run(req.Budget)
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, RunResponse{Executed: executed, Status: status.String()})
	s.broadcastStateChange()
}

func (s *Server) handleRunCycle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	status, err := s.core.RunCycle()
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{Status: status.String()})
	s.broadcastStateChange()
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := s.core.Pause(); err != nil {
		writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := s.core.Resume(); err != nil {
		writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

func (s *Server) handleSchedulerStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := s.core.StartScheduler(r.Context()); err != nil {
		writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

func (s *Server) handleSchedulerStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := s.core.StopScheduler(); err != nil {
		writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	snap, err := s.core.GetState()
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleGetSP(w http.ResponseWriter, r *http.Request) {
	sp, err := s.core.GetSP()
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"sp": sp})
}

func (s *Server) handleGetStack(w http.ResponseWriter, r *http.Request) {
	index, err := intQuery(r, "index", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid index")
		return
	}
	val, err := s.core.GetStack(index)
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint32{"value": val})
}

func (s *Server) handleGetError(w http.ResponseWriter, r *http.Request) {
	errStr, err := s.core.GetError()
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"error": errStr})
}

func (s *Server) handleIsHalted(w http.ResponseWriter, r *http.Request) {
	halted, err := s.core.IsHalted()
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"halted": halted})
}

func (s *Server) handleGetOPI(w http.ResponseWriter, r *http.Request) {
	offset, err := intQuery(r, "offset", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid offset")
		return
	}
	length, err := intQuery(r, "length", 0)
	if err != nil || length <= 0 {
		writeError(w, http.StatusBadRequest, "invalid length")
		return
	}
	win, err := s.core.GetOPI(offset, length)
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, win)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id, err := intQuery(r, "id", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	task, err := s.core.GetTask(uint16(id))
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleGetSchedStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.core.GetSchedStats()
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleMemoryDump(w http.ResponseWriter, r *http.Request) {
	start, err := intQuery(r, "start", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start")
		return
	}
	length, err := intQuery(r, "length", 0)
	if err != nil || length <= 0 {
		writeError(w, http.StatusBadRequest, "invalid length")
		return
	}
	win, err := s.core.MemoryDump(uint16(start), length)
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, win)
}

func (s *Server) handleSetIPI(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req IPIRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.core.SetIPI(req.Offset, req.Value); err != nil {
		writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

func (s *Server) handleSetIPI16(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req IPI16Request
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.core.SetIPI16(req.Offset, req.Value); err != nil {
		writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

func (s *Server) handleBreakpoint(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req BreakpointRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		bp, err := s.core.AddBreakpoint(req.PC, req.Condition, req.Temporary)
		if err != nil {
			writeServiceErr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, bp)
	case http.MethodGet:
		list, err := s.core.ListBreakpoints()
		if err != nil {
			writeServiceErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleBreakpointByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, err := idFromPath(r.URL.Path, "/api/v1/breakpoint/")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid breakpoint id")
		return
	}
	if err := s.core.RemoveBreakpoint(id); err != nil {
		writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req WatchRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		wp, err := s.core.Watch(req.Type, req.Addr, req.Pseudo)
		if err != nil {
			writeServiceErr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, wp)
	case http.MethodGet:
		list, err := s.core.ListWatches()
		if err != nil {
			writeServiceErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleWatchByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, err := idFromPath(r.URL.Path, "/api/v1/watch/")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid watch id")
		return
	}
	if err := s.core.RemoveWatch(id); err != nil {
		writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

func (s *Server) handleDebugCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req DebugCommandRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	output, err := s.core.DebugCommand(req.Command)
	resp := DebugCommandResponse{Output: output}
	if err != nil {
		resp.Error = err.Error()
	}
	_, _ = s.debugOut.Write([]byte(output))
	writeJSON(w, http.StatusOK, resp)
}

// broadcastStateChange publishes the VM's current state to every
// subscribed WebSocket client after an operation that can change it. A
// snapshot failure (no program loaded yet) is simply skipped.
func (s *Server) broadcastStateChange() {
	snap, err := s.core.GetState()
	if err != nil {
		return
	}
	s.broadcaster.BroadcastState("core", map[string]interface{}{
		"pc":     snap.PC,
		"status": snap.Status,
		"halted": snap.Halted,
		"paused": snap.Paused,
	})
}

func intQuery(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}
