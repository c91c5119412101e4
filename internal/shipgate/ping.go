package shipgate

// handlePing implements spec.md §4.5's ping rule: requests receive a
// reply; responses are silently consumed to update last_message (the
// latter handled by the caller's Touch on every frame, so there is
// nothing further to do here beyond the reply itself).
func (s *Server) handlePing(origin *Ship) {
	s.reply(origin, opPong, nil)
}
