package valuation

// Phase is the refresh state of a source.
type Phase int

const (
	Idle       Phase = iota
	Requesting       // at least one request is in flight
	Applying         // a response is being applied
	Discarding       // a stale response is being dropped
)

func (p Phase) String() string {
	switch p {
	case Requesting:
		return "requesting"
	case Applying:
		return "applying"
	case Discarding:
		return "discarding"
	}
	return "idle"
}

// Ticket identifies one refresh request.
type Ticket struct {
	Source    SourceID
	RequestID uint64 // strictly increasing over all tickets of a Guard
	IssuedAt  uint64 // logical clock when the ticket was issued
}

// Guard orders asynchronous refresh responses: for a given source, a response
// is applied only if its request is more recent than every response applied
// before. Late responses to superseded requests are dropped instead of being
// cancelled.
//
// Guard is not safe for concurrent use; the Editor serializes calls.
type Guard struct {
	lastID    uint64
	clock     uint64
	sources   map[SourceID]*sourceState
	delivered map[SourceID]uint64 // last request that delivered a value, per value source
}

type sourceState struct {
	phase     Phase
	issued    map[uint64]bool // requests in flight
	highWater uint64          // greatest RequestID admitted so far
}

// NewGuard returns a guard with every source idle.
func NewGuard() *Guard {
	return &Guard{
		sources:   make(map[SourceID]*sourceState),
		delivered: make(map[SourceID]uint64),
	}
}

func (g *Guard) state(source SourceID) *sourceState {
	s, ok := g.sources[source]
	if !ok {
		s = &sourceState{issued: make(map[uint64]bool)}
		g.sources[source] = s
	}
	return s
}

// Issue returns a fresh ticket for a new request on source.
func (g *Guard) Issue(source SourceID) Ticket {
	g.lastID++
	g.clock++
	s := g.state(source)
	s.issued[g.lastID] = true
	s.phase = Requesting
	return Ticket{Source: source, RequestID: g.lastID, IssuedAt: g.clock}
}

// Admit is called when the response to t arrives. It returns true if the
// response must be applied (the source moves to Applying), false if it must
// be discarded (Discarding): t was superseded by a more recent response, or
// was never issued by this guard.
//
// Complete must be called once the response has been handled.
func (g *Guard) Admit(t Ticket) bool {
	g.clock++
	s := g.state(t.Source)
	if !s.issued[t.RequestID] || t.RequestID <= s.highWater {
		s.phase = Discarding
		return false
	}
	s.highWater = t.RequestID
	s.phase = Applying
	return true
}

// Accept reports whether the value of source carried by the admitted
// response t may be applied, and records it. A feed response carries the
// values of several sources, each of them possibly refreshed on its own by a
// more recent request: such a value is refused.
func (g *Guard) Accept(t Ticket, source SourceID) bool {
	if g.delivered[source] > t.RequestID {
		return false
	}
	g.delivered[source] = t.RequestID
	return true
}

// Complete ends the handling of t. The source goes back to Requesting if other
// requests are in flight, Idle otherwise.
func (g *Guard) Complete(t Ticket) {
	s := g.state(t.Source)
	delete(s.issued, t.RequestID)
	s.settle()
}

// Fail records that the request t failed: nothing is applied and the high
// water mark does not move.
func (g *Guard) Fail(t Ticket) {
	g.clock++
	g.Complete(t)
}

// Superseded reports whether a response more recent than t was already
// applied.
func (g *Guard) Superseded(t Ticket) bool {
	return g.state(t.Source).highWater > t.RequestID
}

// Phase returns the current phase of source.
func (g *Guard) Phase(source SourceID) Phase {
	if s, ok := g.sources[source]; ok {
		return s.phase
	}
	return Idle
}

// Pending returns the number of requests in flight for source.
func (g *Guard) Pending(source SourceID) int {
	if s, ok := g.sources[source]; ok {
		return len(s.issued)
	}
	return 0
}

func (s *sourceState) settle() {
	if len(s.issued) > 0 {
		s.phase = Requesting
	} else {
		s.phase = Idle
	}
}
