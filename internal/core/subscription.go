package core

// Subscribe registers fn to be invoked with the current combined buildup
// list whenever the processed-result set changes and no processing is in
// flight. When the system is idle at registration time, fn receives an
// immediate snapshot. The returned func unregisters the subscriber; it is
// safe to call more than once.
func (s *Service) Subscribe(fn func([]CombinedBuildup)) func() {
	if fn == nil {
		return func() {}
	}
	s.subMu.Lock()
	id := s.subSeq
	s.subSeq++
	s.subs[id] = fn
	s.subMu.Unlock()

	s.mu.Lock()
	idle := s.processing == 0
	s.mu.Unlock()
	if idle {
		fn(s.GetAllCombinedBuildups())
	}

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

// publish pushes the current combined snapshot to every subscriber.
// Callers only invoke it after a settled change, so subscribers observe
// post-write state exclusively.
func (s *Service) publish() {
	s.subMu.Lock()
	subscribers := make([]func([]CombinedBuildup), 0, len(s.subs))
	for _, fn := range s.subs {
		subscribers = append(subscribers, fn)
	}
	s.subMu.Unlock()
	if len(subscribers) == 0 {
		return
	}
	snapshot := s.GetAllCombinedBuildups()
	for _, fn := range subscribers {
		fn(snapshot)
	}
}
