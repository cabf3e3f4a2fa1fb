package httpapi

import "github.com/go-chi/chi/v5"

// setupRoutes configures exactly the route table of spec §6. Every group
// the teacher's routes.go has beyond this table — MCP, LSP, formatter,
// command, instance/experimental, file/find, provider-oauth/auth,
// config-mutation, TUI-control, client-tools, OpenAPI — is dropped (see
// DESIGN.md, "Dropped route groups"); `GET /path` is the only survivor of
// the teacher's instance-management group.
func (s *Server) setupRoutes() {
	r := s.router

	r.Get("/health", s.health)
	r.Get("/path", s.getPath)
	r.Get("/agent", s.listAgents)

	r.Route("/session", func(r chi.Router) {
		r.Get("/", s.listSessions)
		r.Post("/", s.createSession)

		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", s.getSession)
			r.Patch("/", s.updateSession)
			r.Delete("/", s.deleteSession)
			r.Get("/children", s.getChildren)
			r.Post("/abort", s.abortSession)

			r.Get("/message", s.listMessages)
			r.Get("/message/{messageID}", s.getMessage)
			r.Post("/message", s.sendMessage)
			r.Post("/prompt_async", s.promptAsync)

			r.Route("/message/{messageID}/part/{partID}", func(r chi.Router) {
				r.Delete("/", s.deletePart)
				r.Patch("/", s.updatePart)
			})
		})
	})

	r.Get("/permission", s.listPermissions)
	r.Post("/permission/{id}/reply", s.replyPermission)

	r.Post("/question/{id}/reply", s.replyQuestion)
	r.Post("/question/{id}/reject", s.rejectQuestion)

	r.Get("/event", s.streamEvents)
}
