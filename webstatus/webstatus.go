/*
Copyright © 2013 the InMAP authors.
This file is part of InMAP.

InMAP is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

InMAP is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with InMAP.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package webstatus serves a live view of a running ppgrid.Driver: an
// HTML page at /status and a streaming websocket at /ws, both fed by
// a ppgrid.Progress event per (file pair, variable) completion. The
// core ppgrid package has zero import-time dependency on net/http or
// gorilla/websocket; a Server is wired in front of a Driver by the
// caller (see ppgridutil), mirroring the injected-handler style of
// the teacher's own map/legend/vertical-profile HTTP handlers.
package webstatus

import (
	"html/template"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/metno/ppgrid"
)

// Server tracks every Progress event reported since it was created
// and fans each one out to connected websocket clients.
type Server struct {
	mu      sync.Mutex
	history []ppgrid.Progress
	clients map[*websocket.Conn]chan ppgrid.Progress

	upgrader websocket.Upgrader
}

// NewServer returns an empty Server. Attach it to a Driver by setting
// drv.OnProgress = server.Report.
func NewServer() *Server {
	return &Server{clients: make(map[*websocket.Conn]chan ppgrid.Progress)}
}

// Report records p and forwards it to every connected websocket
// client. It is safe to use directly as a ppgrid.ProgressFunc.
func (s *Server) Report(p ppgrid.Progress) {
	s.mu.Lock()
	s.history = append(s.history, p)
	for _, ch := range s.clients {
		select {
		case ch <- p:
		default: // a slow client drops events rather than blocking the run
		}
	}
	s.mu.Unlock()
}

// RegisterHandlers attaches /status and /ws to mux.
func (s *Server) RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/status", s.statusHandler)
	mux.HandleFunc("/ws", s.wsHandler)
}

var statusTemplate = template.Must(template.New("status").Parse(`<!DOCTYPE html>
<html><head><title>ppgrid status</title></head><body>
<h1>ppgrid run status</h1>
<table border="1">
<tr><th>Input</th><th>Output</th><th>Variable</th><th>Error</th></tr>
{{range .}}<tr><td>{{.InputFile}}</td><td>{{.OutputFile}}</td><td>{{.Variable}}</td><td>{{if .Err}}{{.Err}}{{end}}</td></tr>
{{end}}
</table>
<script>
var ws = new WebSocket("ws://" + location.host + "/ws");
ws.onmessage = function(e) { location.reload(); };
</script>
</body></html>`))

func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	history := append([]ppgrid.Progress(nil), s.history...)
	s.mu.Unlock()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := statusTemplate.Execute(w, history); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) wsHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	defer conn.Close()

	ch := make(chan ppgrid.Progress, 16)
	s.mu.Lock()
	s.clients[conn] = ch
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
	}()

	for p := range ch {
		if err := conn.WriteJSON(newProgressMessage(p)); err != nil {
			return
		}
	}
}

// progressMessage is the JSON shape written to websocket clients;
// ppgrid.Progress.Err is an error interface and does not marshal on
// its own.
type progressMessage struct {
	InputFile, OutputFile string
	Variable              string
	Err                   string `json:"Err,omitempty"`
}

func newProgressMessage(p ppgrid.Progress) progressMessage {
	m := progressMessage{InputFile: p.InputFile, OutputFile: p.OutputFile, Variable: p.Variable}
	if p.Err != nil {
		m.Err = p.Err.Error()
	}
	return m
}
