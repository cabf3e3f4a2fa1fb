package httpapi

import "net/http"

// health answers GET /health.
func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// getPath answers GET /path: the working directory this process operates
// under (spec §6; the teacher's broader instance-info payload — project
// root, worktree, VCS remote — is dropped, see DESIGN.md "Dropped route
// groups").
func (s *Server) getPath(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"directory": s.config.Directory,
		"worktree":  s.config.WorktreePath,
	})
}

// listAgents answers GET /agent with the agent catalog.
func (s *Server) listAgents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.agents.List())
}
