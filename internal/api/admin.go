package api

import (
	"net/http"

	"tailscale.com/tsweb"
)

// AttachAdminRoutes mounts the debug index on mux: the run database console
// and backup when a store is configured, and the latest-objects chart.
func (s *Server) AttachAdminRoutes(mux *http.ServeMux) error {
	var debug *tsweb.DebugHandler
	if s.db != nil {
		d, err := s.db.AttachAdminRoutes(mux)
		if err != nil {
			return err
		}
		debug = d
	} else {
		debug = tsweb.Debugger(mux)
	}
	debug.Handle("objects", "Chart of the latest segmented objects", http.HandlerFunc(s.handleObjectsChart))
	return nil
}
