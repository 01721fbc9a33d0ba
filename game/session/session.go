package session

import (
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/prajjwaltripathi07/chess/game/engine"
)

// Phase is the lifecycle stage of a session
type Phase string

const (
	PhaseWaiting    Phase = "waiting"
	PhaseActive     Phase = "active"
	PhaseTerminated Phase = "terminated"
)

// DisconnectPolicy decides what happens to the game when a seat-holder leaves
type DisconnectPolicy string

const (
	// PolicyForfeit ends an active game in favour of the remaining player
	PolicyForfeit DisconnectPolicy = "forfeit"
	// PolicyReset returns the board to the starting position
	PolicyReset DisconnectPolicy = "reset"
	// PolicyRelease frees the seat and keeps the position for the next arrival
	PolicyRelease DisconnectPolicy = "release"
)

// ObserverLabel attributes chat sent by observers
const ObserverLabel = "Observer"

// ParseDisconnectPolicy validates a policy name
func ParseDisconnectPolicy(s string) (DisconnectPolicy, error) {
	switch p := DisconnectPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case PolicyForfeit, PolicyReset, PolicyRelease:
		return p, nil
	default:
		return "", fmt.Errorf("unknown disconnect policy %q (want forfeit, reset or release)", s)
	}
}

// Placement records where a connection sits. It is fixed for the
// connection's lifetime.
type Placement struct {
	SessionID string      `json:"session_id"`
	Seat      engine.Seat `json:"seat"`
	Observer  bool        `json:"observer"`
}

// Label returns the display name used for the placement
func (p Placement) Label() string {
	if p.Observer {
		return ObserverLabel
	}
	return p.Seat.Label()
}

// MoveOutcome is the result of an accepted move
type MoveOutcome struct {
	Seat       engine.Seat    `json:"seat"`
	Move       engine.Move    `json:"move"`
	Board      string         `json:"board"`
	SideToMove engine.Seat    `json:"side_to_move"`
	Ply        int            `json:"ply"`
	Result     *engine.Result `json:"result,omitempty"`
}

// GameOver reports whether the move ended the game
func (o *MoveOutcome) GameOver() bool {
	return o.Result != nil
}

// ChatLine is a relayed chat message
type ChatLine struct {
	Sender string    `json:"sender"`
	Text   string    `json:"text"`
	SentAt time.Time `json:"sent_at"`
}

// LeaveOutcome describes the effect of a connection leaving a session
type LeaveOutcome struct {
	Found    bool
	Observer bool
	Seat     engine.Seat

	// Opponent is the connection still seated opposite, if any
	Opponent string

	// Forfeit is the result the opponent should note locally. It is set
	// whenever a game in progress loses a player.
	Forfeit *engine.Result

	// Terminated is true when the session itself ended the game
	Terminated bool
}

// SeatsInfo reports seat occupancy without exposing connection handles
type SeatsInfo struct {
	First  bool `json:"first"`
	Second bool `json:"second"`
}

// Snapshot is a point-in-time copy of a session for read-only callers
type Snapshot struct {
	ID         string         `json:"id"`
	Phase      Phase          `json:"phase"`
	Board      string         `json:"board"`
	SideToMove engine.Seat    `json:"side_to_move"`
	Seats      SeatsInfo      `json:"seats"`
	Observers  int            `json:"observers"`
	Moves      []string       `json:"moves"`
	Result     *engine.Result `json:"result,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	StartedAt  time.Time      `json:"started_at,omitzero"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// Session is one two-seat game. All methods are safe for concurrent use.
type Session struct {
	ID        string
	CreatedAt time.Time

	engine engine.Engine
	now    func() time.Time

	mu        sync.Mutex
	seats     [2]string
	observers map[string]struct{}
	state     engine.State
	phase     Phase
	result    *engine.Result
	moves     []engine.Move
	startedAt time.Time
	updatedAt time.Time
}

func newSession(id string, eng engine.Engine, now func() time.Time) *Session {
	created := now()
	return &Session{
		ID:        id,
		CreatedAt: created,
		engine:    eng,
		now:       now,
		observers: make(map[string]struct{}),
		state:     eng.InitialState(),
		phase:     PhaseWaiting,
		updatedAt: created,
	}
}

// SubmitMove plays move for the connection if it is seated on the side to move
func (s *Session) SubmitMove(connID string, move engine.Move) (*MoveOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseActive {
		return nil, ErrNotActive
	}

	seat, seated := s.seatOf(connID)
	if !seated || seat != s.engine.SideToMove(s.state) {
		return nil, ErrNotYourTurn
	}

	next, err := s.engine.ApplyMove(s.state, move)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIllegalMove, err)
	}

	s.state = next
	s.moves = append(s.moves, move)
	s.updatedAt = s.now()

	outcome := &MoveOutcome{
		Seat:       seat,
		Move:       move,
		Board:      s.engine.Serialize(next),
		SideToMove: s.engine.SideToMove(next),
		Ply:        len(s.moves),
	}

	if result, over := s.engine.IsTerminal(next); over {
		s.phase = PhaseTerminated
		s.result = result
		outcome.Result = result
	}

	return outcome, nil
}

// Restart resets the board regardless of phase
func (s *Session) Restart() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.resetGame()
	return s.snapshot()
}

// Chat validates text and attributes it to the sender
func (s *Session) Chat(connID, text string, maxLen int) (*ChatLine, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty chat message", ErrMalformedEvent)
	}
	if maxLen > 0 && utf8.RuneCountInString(trimmed) > maxLen {
		return nil, fmt.Errorf("%w: chat message longer than %d characters", ErrMalformedEvent, maxLen)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sender := ObserverLabel
	if seat, seated := s.seatOf(connID); seated {
		sender = seat.Label()
	} else if _, watching := s.observers[connID]; !watching {
		return nil, fmt.Errorf("%w: connection %s is not in session %s", ErrUnknownSession, connID, s.ID)
	}

	return &ChatLine{Sender: sender, Text: trimmed, SentAt: s.now()}, nil
}

// Leave removes the connection from its seat or from the observers and
// applies policy to the game.
func (s *Session) Leave(connID string, policy DisconnectPolicy) LeaveOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, watching := s.observers[connID]; watching {
		delete(s.observers, connID)
		return LeaveOutcome{Found: true, Observer: true}
	}

	seat, seated := s.seatOf(connID)
	if !seated {
		return LeaveOutcome{}
	}

	s.seats[seat] = ""
	s.updatedAt = s.now()

	out := LeaveOutcome{
		Found:    true,
		Seat:     seat,
		Opponent: s.seats[seat.Opponent()],
	}

	inProgress := s.phase == PhaseActive
	if inProgress && out.Opponent != "" {
		out.Forfeit = engine.WinFor(seat.Opponent(), engine.ReasonForfeit)
	}

	switch policy {
	case PolicyReset:
		s.resetGame()
	case PolicyRelease:
		if s.phase == PhaseActive {
			s.phase = PhaseWaiting
		}
	default:
		if out.Forfeit != nil {
			s.phase = PhaseTerminated
			s.result = out.Forfeit
			out.Terminated = true
		} else if s.phase == PhaseActive {
			s.phase = PhaseWaiting
		}
	}

	return out
}

// Snapshot returns a copy of the session's current state
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// Phase returns the current lifecycle phase
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Occupant returns the connection seated at seat, or "" when it is empty
func (s *Session) Occupant(seat engine.Seat) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seats[seat]
}

// Members returns every connection that should receive session broadcasts
func (s *Session) Members() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	members := make([]string, 0, 2+len(s.observers))
	for _, id := range s.seats {
		if id != "" {
			members = append(members, id)
		}
	}
	for id := range s.observers {
		members = append(members, id)
	}
	return members
}

// occupy seats connID at the first empty seat, first before second
func (s *Session) occupy(connID string) (engine.Seat, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, seat := range []engine.Seat{engine.First, engine.Second} {
		if s.seats[seat] != "" {
			continue
		}

		s.seats[seat] = connID
		s.updatedAt = s.now()

		// A new pairing on a finished board starts a new game
		if s.phase == PhaseTerminated {
			s.resetGame()
		} else {
			s.recomputePhase()
		}
		return seat, true
	}
	return 0, false
}

func (s *Session) observe(connID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers[connID] = struct{}{}
}

// vacate empties seat and reports whether both seats are now empty.
// Vacating an empty seat is a no-op.
func (s *Session) vacate(seat engine.Seat) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.seats[seat] != "" {
		s.seats[seat] = ""
		s.updatedAt = s.now()
		if s.phase == PhaseActive {
			s.phase = PhaseWaiting
		}
	}
	return s.seats[engine.First] == "" && s.seats[engine.Second] == ""
}

func (s *Session) seatOf(connID string) (engine.Seat, bool) {
	if connID == "" {
		return 0, false
	}
	for _, seat := range []engine.Seat{engine.First, engine.Second} {
		if s.seats[seat] == connID {
			return seat, true
		}
	}
	return 0, false
}

func (s *Session) resetGame() {
	s.state = s.engine.InitialState()
	s.moves = nil
	s.result = nil
	s.phase = ""
	s.startedAt = time.Time{}
	s.updatedAt = s.now()
	s.recomputePhase()
}

func (s *Session) recomputePhase() {
	if s.phase == PhaseTerminated {
		return
	}
	if s.seats[engine.First] != "" && s.seats[engine.Second] != "" {
		if s.phase != PhaseActive && s.startedAt.IsZero() {
			s.startedAt = s.now()
		}
		s.phase = PhaseActive
		return
	}
	s.phase = PhaseWaiting
}

func (s *Session) snapshot() Snapshot {
	moves := make([]string, len(s.moves))
	for i, m := range s.moves {
		moves[i] = m.String()
	}

	return Snapshot{
		ID:         s.ID,
		Phase:      s.phase,
		Board:      s.engine.Serialize(s.state),
		SideToMove: s.engine.SideToMove(s.state),
		Seats: SeatsInfo{
			First:  s.seats[engine.First] != "",
			Second: s.seats[engine.Second] != "",
		},
		Observers: len(s.observers),
		Moves:     moves,
		Result:    s.result,
		CreatedAt: s.CreatedAt,
		StartedAt: s.startedAt,
		UpdatedAt: s.updatedAt,
	}
}
