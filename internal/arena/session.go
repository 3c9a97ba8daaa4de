package arena

import (
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/park285/cheese-arena/internal/ai"
	"github.com/park285/cheese-arena/internal/rules"
	"github.com/park285/cheese-arena/pkg/chessdto"
)

const maxChatRunes = 500

// Session is one match. All mutation goes through the registry and is
// serialized by mu; at most one move application is in flight at a time.
type Session struct {
	id         string
	mode       string
	difficulty int
	createdAt  time.Time
	reg        *Registry

	mu         sync.Mutex
	engine     *rules.Engine
	host       string
	seats      [2]string
	status     Status
	result     *Result
	version    int64
	aiPending  bool
	startedAt  time.Time
	endedAt    time.Time
	lastActive time.Time
	reported   bool
	conns      map[string]int
	forfeits   map[string]*time.Timer
}

func newSession(reg *Registry, id, mode string, now time.Time) *Session {
	return &Session{
		id:         id,
		mode:       mode,
		createdAt:  now,
		reg:        reg,
		engine:     rules.New(),
		status:     StatusWaiting,
		lastActive: now,
		conns:      make(map[string]int),
		forfeits:   make(map[string]*time.Timer),
	}
}

func (s *Session) ID() string   { return s.id }
func (s *Session) Mode() string { return s.mode }

// Status returns the current lifecycle state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Result returns the terminal result once finished.
func (s *Session) Result() (Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return Result{}, false
	}
	return *s.result, true
}

// Seat returns the identity playing side.
func (s *Session) Seat(side rules.Side) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seats[side]
}

// FEN returns the current position.
func (s *Session) FEN() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.FEN()
}

// Board returns a copy of the current position for rendering.
func (s *Session) Board() rules.Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Position()
}

// Snapshot returns the authoritative pull state.
func (s *Session) Snapshot() chessdto.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

// Version is the number of committed changes so far.
func (s *Session) Version() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

func (s *Session) sideOfLocked(identity string) (rules.Side, bool) {
	if identity == "" {
		return rules.White, false
	}
	switch identity {
	case s.seats[rules.White]:
		return rules.White, true
	case s.seats[rules.Black]:
		return rules.Black, true
	}
	return rules.White, false
}

func (s *Session) isParticipantLocked(identity string) bool {
	if _, ok := s.sideOfLocked(identity); ok {
		return true
	}
	return s.status == StatusWaiting && identity != "" && identity == s.host
}

func (s *Session) isAISide(side rules.Side) bool {
	return s.mode == chessdto.ModeAI && s.seats[side] == chessdto.AIIdentity
}

func (s *Session) stateLocked() chessdto.SessionState {
	pos := s.engine.Position()
	w, b := ai.Material(pos)
	st := chessdto.SessionState{
		SessionID:  s.id,
		Mode:       s.mode,
		Status:     string(s.status),
		White:      s.seats[rules.White],
		Black:      s.seats[rules.Black],
		Difficulty: s.difficulty,
		FEN:        s.engine.FEN(),
		Turn:       pos.Turn.String(),
		InCheck:    pos.InCheck(pos.Turn),
		GameOver:   s.status == StatusFinished,
		MovesUCI:   uciList(s.engine.Moves()),
		MovesSAN:   s.engine.SANMoves(),
		Material:   chessdto.MaterialScore{White: w, Black: b},
		Version:    s.version,
		StartedAt:  s.startedAt,
		UpdatedAt:  s.lastActive,
	}
	if s.status == StatusWaiting {
		st.White = ""
		st.Black = ""
	}
	if s.result != nil {
		st.Reason = s.result.Reason()
		st.Detail = s.result.Detail
		st.Winner = s.result.WinnerName()
		if s.result.Decisive {
			st.WinnerID = s.seats[s.result.Winner]
		}
	}
	return st
}

func uciList(moves []rules.Move) []string {
	out := make([]string, len(moves))
	for i, m := range moves {
		out[i] = m.UCI()
	}
	return out
}

// emitLocked commits one change: bumps the version, publishes the event in
// order and queues the snapshot for post-commit hooks.
func (s *Session) emitLocked(typ string, payload any, jobs *[]job) chessdto.Event {
	s.version++
	s.lastActive = s.reg.now()
	ev, err := chessdto.NewEvent(typ, s.id, s.version, payload)
	if err != nil {
		s.reg.log.Error("event_encode_failed", zap.String("session_id", s.id), zap.String("type", typ), zap.Error(err))
	}
	s.reg.pub.Publish(ev)
	*jobs = append(*jobs, committedJob(s.stateLocked()))
	return ev
}

// startLocked seats both sides and moves the session in progress.
func (s *Session) startLocked(white, black string, jobs *[]job) chessdto.Event {
	s.seats[rules.White] = white
	s.seats[rules.Black] = black
	s.status = StatusInProgress
	s.startedAt = s.reg.now()
	*jobs = append(*jobs, startedJob(StartedEvent{
		SessionID: s.id, Mode: s.mode, White: white, Black: black, At: s.startedAt,
	}))
	st := s.stateLocked()
	st.Version = s.version + 1
	return s.emitLocked(chessdto.EventStarted, st, jobs)
}

// applyLocked plays m for side and emits the move, plus game_over when the
// position is terminal.
func (s *Session) applyLocked(side rules.Side, from, to rules.Square, promo rules.Kind, out *MoveOutcome, jobs *[]job) (chessdto.MovePayload, error) {
	prior := s.engine.Position()
	m, err := s.engine.ApplyMove(from, to, promo)
	if err != nil {
		return chessdto.MovePayload{}, err
	}
	mover := s.seats[side]
	pos := s.engine.Position()
	status := s.engine.Status()
	payload := chessdto.MovePayload{
		By:   mover,
		Side: side.String(),
		Move: chessdto.AppliedMove{
			From:  m.From.String(),
			To:    m.To.String(),
			Piece: m.Piece.String(),
			UCI:   m.UCI(),
			SAN:   rules.SAN(prior, m),
		},
		FEN:      pos.FEN(),
		Turn:     pos.Turn.String(),
		InCheck:  pos.InCheck(pos.Turn),
		GameOver: status != rules.Ongoing,
	}
	if m.Promotion != rules.NoKind {
		payload.Move.Promotion = m.Promotion.String()
	}
	if m.IsCapture() {
		payload.Move.Captured = m.Captured.String()
	}
	if m.Flag != rules.FlagNone && m.Flag != rules.FlagDoublePush {
		payload.Move.Flag = m.Flag.String()
	}
	if status == rules.Checkmate {
		payload.Winner = side.String()
	}

	out.Events = append(out.Events, s.emitLocked(chessdto.EventMove, payload, jobs))
	if m.IsCapture() {
		*jobs = append(*jobs, capturedJob(PieceEvent{
			SessionID: s.id, PlayerID: mover, Side: side.String(), Move: m.UCI(), Piece: m.Captured.String(),
		}))
	}
	if m.Promotion != rules.NoKind {
		*jobs = append(*jobs, promotedJob(PieceEvent{
			SessionID: s.id, PlayerID: mover, Side: side.String(), Move: m.UCI(), Piece: m.Promotion.String(),
		}))
	}
	if status != rules.Ongoing {
		over := s.finishLocked(resultFromStatus(status, side), out, jobs)
		out.Over = &over
	}
	s.reg.log.Debug("session_move",
		zap.String("session_id", s.id),
		zap.String("by", mover),
		zap.String("move", m.UCI()),
		zap.Int64("version", s.version),
	)
	return payload, nil
}

// finishLocked records res and emits game_over. Abandoned sessions skip the
// collaborator report.
func (s *Session) finishLocked(res Result, out *MoveOutcome, jobs *[]job) chessdto.GameOverPayload {
	s.status = StatusFinished
	s.result = &res
	s.endedAt = s.reg.now()
	s.stopForfeitsLocked()
	over := chessdto.GameOverPayload{
		Winner: res.WinnerName(),
		Reason: res.Reason(),
		Detail: res.Detail,
	}
	if res.Decisive {
		over.WinnerID = s.seats[res.Winner]
	}
	ev := s.emitLocked(chessdto.EventGameOver, over, jobs)
	if out != nil {
		out.Events = append(out.Events, ev)
	}

	s.reg.log.Info("session_finish",
		zap.String("session_id", s.id),
		zap.String("mode", s.mode),
		zap.String("outcome", string(res.Outcome)),
		zap.String("winner", over.WinnerID),
		zap.Int("plies", s.engine.Ply()),
	)

	if res.Outcome == OutcomeAbandoned {
		s.reported = true
		return over
	}
	ended := FinishedEvent{
		SessionID:  s.id,
		Mode:       s.mode,
		Difficulty: s.difficulty,
		White:      s.seats[rules.White],
		Black:      s.seats[rules.Black],
		WinnerID:   over.WinnerID,
		Winner:     over.Winner,
		Reason:     over.Reason,
		Detail:     over.Detail,
		StartFEN:   s.engine.StartFEN(),
		FinalFEN:   s.engine.FEN(),
		MovesUCI:   uciList(s.engine.Moves()),
		MovesSAN:   s.engine.SANMoves(),
		StartedAt:  s.startedAt,
		EndedAt:    s.endedAt,
	}
	*jobs = append(*jobs, finishedJob(ended, func() { s.reg.reportDone(s) }))
	return over
}

// aiTurn is the state an off-lock AI search starts from.
type aiTurn struct {
	pos rules.Position
	ply int
}

func (s *Session) submit(identity string, from, to rules.Square, promo rules.Kind) (MoveOutcome, *aiTurn, []job, error) {
	var (
		out  MoveOutcome
		jobs []job
	)
	s.mu.Lock()
	defer s.mu.Unlock()

	side, ok := s.sideOfLocked(identity)
	if !ok {
		if s.isParticipantLocked(identity) {
			// host of a lobby nobody joined yet
			return out, nil, nil, fmt.Errorf("waiting for opponent: %w", chessdto.ErrNotYourTurn)
		}
		return out, nil, nil, fmt.Errorf("session %s: %w", s.id, chessdto.ErrNotAParticipant)
	}
	if s.status == StatusFinished {
		return out, nil, nil, fmt.Errorf("session %s: %w", s.id, chessdto.ErrGameAlreadyFinished)
	}
	if s.engine.Turn() != side || s.aiPending {
		return out, nil, nil, fmt.Errorf("%s to move: %w", s.engine.Turn(), chessdto.ErrNotYourTurn)
	}

	payload, err := s.applyLocked(side, from, to, promo, &out, &jobs)
	if err != nil {
		return MoveOutcome{}, nil, nil, err
	}
	out.Human = payload

	if s.status == StatusInProgress && s.isAISide(s.engine.Turn()) {
		s.aiPending = true
		return out, &aiTurn{pos: s.engine.Position(), ply: s.engine.Ply()}, jobs, nil
	}
	return out, nil, jobs, nil
}

// applyAI commits the AI reply computed from turn. It is dropped when the
// session moved on meanwhile (resignation, forfeit, sweep).
func (s *Session) applyAI(turn *aiTurn, m rules.Move, out *MoveOutcome) []job {
	var jobs []job
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aiPending = false
	if s.status != StatusInProgress || s.engine.Ply() != turn.ply {
		return nil
	}
	side := s.engine.Turn()
	payload, err := s.applyLocked(side, m.From, m.To, m.Promotion, out, &jobs)
	if err != nil {
		// the search only returns legal moves; keep the session moving regardless
		s.reg.log.Error("ai_move_rejected", zap.String("session_id", s.id), zap.String("move", m.UCI()), zap.Error(err))
		moves := s.engine.LegalMoves()
		if len(moves) == 0 {
			return jobs
		}
		fb := moves[0]
		if payload, err = s.applyLocked(side, fb.From, fb.To, fb.Promotion, out, &jobs); err != nil {
			return jobs
		}
	}
	out.AI = &payload
	return jobs
}

func (s *Session) clearPending() {
	s.mu.Lock()
	s.aiPending = false
	s.mu.Unlock()
}

func (s *Session) resign(identity string) (chessdto.GameOverPayload, []job, error) {
	var jobs []job
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isParticipantLocked(identity) {
		return chessdto.GameOverPayload{}, nil, fmt.Errorf("session %s: %w", s.id, chessdto.ErrNotAParticipant)
	}
	if s.status == StatusFinished {
		return chessdto.GameOverPayload{}, nil, fmt.Errorf("session %s: %w", s.id, chessdto.ErrGameAlreadyFinished)
	}
	if s.status == StatusWaiting {
		over := s.finishLocked(Result{Outcome: OutcomeAbandoned}, nil, &jobs)
		return over, jobs, nil
	}
	side, _ := s.sideOfLocked(identity)
	over := s.finishLocked(Result{Outcome: OutcomeResignation, Detail: "resignation", Decisive: true, Winner: side.Other()}, nil, &jobs)
	return over, jobs, nil
}

func (s *Session) undo(identity string) (chessdto.UndoPayload, []job, error) {
	var jobs []job
	s.mu.Lock()
	defer s.mu.Unlock()
	side, ok := s.sideOfLocked(identity)
	if !ok {
		return chessdto.UndoPayload{}, nil, fmt.Errorf("session %s: %w", s.id, chessdto.ErrNotAParticipant)
	}
	if s.mode != chessdto.ModeAI {
		return chessdto.UndoPayload{}, nil, fmt.Errorf("undo is only offered against the computer: %w", chessdto.ErrBadRequest)
	}
	if s.status == StatusFinished {
		return chessdto.UndoPayload{}, nil, fmt.Errorf("session %s: %w", s.id, chessdto.ErrGameAlreadyFinished)
	}
	if s.aiPending {
		return chessdto.UndoPayload{}, nil, fmt.Errorf("computer is thinking: %w", chessdto.ErrNotYourTurn)
	}
	if s.engine.Ply() == 0 {
		return chessdto.UndoPayload{}, nil, fmt.Errorf("session %s: %w", s.id, chessdto.ErrNoHistory)
	}
	var undone []string
	for s.engine.Ply() > 0 {
		m, err := s.engine.UndoLastMove()
		if err != nil {
			break
		}
		undone = append(undone, m.UCI())
		if s.engine.Turn() == side {
			break
		}
	}
	pos := s.engine.Position()
	payload := chessdto.UndoPayload{Undone: undone, FEN: pos.FEN(), Turn: pos.Turn.String()}
	s.emitLocked(chessdto.EventUndo, payload, &jobs)
	return payload, jobs, nil
}

func (s *Session) chat(identity, text string) (chessdto.Event, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return chessdto.Event{}, fmt.Errorf("empty message: %w", chessdto.ErrBadRequest)
	}
	if utf8.RuneCountInString(text) > maxChatRunes {
		return chessdto.Event{}, fmt.Errorf("message too long: %w", chessdto.ErrBadRequest)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isParticipantLocked(identity) {
		return chessdto.Event{}, fmt.Errorf("session %s: %w", s.id, chessdto.ErrNotAParticipant)
	}
	ev, err := chessdto.NewEvent(chessdto.EventChat, s.id, s.version, chessdto.ChatPayload{From: identity, Text: text})
	if err != nil {
		return chessdto.Event{}, err
	}
	s.reg.pub.Publish(ev)
	return ev, nil
}

// attach counts a live push connection of identity and cancels a pending
// forfeit. Spectators are not counted.
func (s *Session) attach(identity string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isParticipantLocked(identity) {
		return false
	}
	s.conns[identity]++
	if t, ok := s.forfeits[identity]; ok {
		t.Stop()
		delete(s.forfeits, identity)
	}
	return true
}

func (s *Session) detach(identity string, grace time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conns[identity] > 0 {
		s.conns[identity]--
	}
	if s.conns[identity] > 0 || grace <= 0 || s.status != StatusInProgress {
		return
	}
	if _, ok := s.forfeits[identity]; ok {
		return
	}
	s.forfeits[identity] = time.AfterFunc(grace, func() { s.reg.forfeit(s, identity) })
}

// forfeit ends the game against identity if it is still disconnected.
func (s *Session) forfeit(identity string) []job {
	var jobs []job
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.forfeits, identity)
	if s.conns[identity] > 0 || s.status != StatusInProgress {
		return nil
	}
	side, ok := s.sideOfLocked(identity)
	if !ok {
		return nil
	}
	s.finishLocked(Result{Outcome: OutcomeDisconnect, Detail: "disconnect", Decisive: true, Winner: side.Other()}, nil, &jobs)
	return jobs
}

func (s *Session) stopForfeitsLocked() {
	for id, t := range s.forfeits {
		t.Stop()
		delete(s.forfeits, id)
	}
}

// sweepable reports whether an idle session should be aborted or a
// finished one destroyed at now.
func (s *Session) sweepable(now time.Time, idleTTL, retention time.Duration) (abandon, destroy bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.status {
	case StatusFinished:
		return false, s.reported && !now.Before(s.endedAt.Add(retention))
	default:
		return idleTTL > 0 && !s.aiPending && now.Sub(s.lastActive) > idleTTL, false
	}
}

func (s *Session) abandon() []job {
	var jobs []job
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusFinished {
		return nil
	}
	s.finishLocked(Result{Outcome: OutcomeAbandoned, Detail: "idle"}, nil, &jobs)
	return jobs
}
