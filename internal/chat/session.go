// Package chat runs the realtime messaging session: one connection per
// panel, an explicit connect/join/leave/teardown lifecycle, and an
// append-only visible message list reconciled against server echoes.
package chat

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"renomarket.org/internal/audit"
	"renomarket.org/internal/gateway"
	"renomarket.org/internal/obs"
	"renomarket.org/internal/session"
)

// ErrNoRoom is returned when sending without a selected conversation.
var ErrNoRoom = errors.New("no conversation selected")

// Uploader stores an attachment and returns its public URL. The gateway
// client implements it.
type Uploader interface {
	Upload(ctx context.Context, filename string, r io.Reader) (gateway.UploadResult, error)
}

// Attachment is a pending upload for an outgoing message.
type Attachment struct {
	Filename string
	Content  io.Reader
}

// Session is the messaging lifecycle for one chat panel. It holds at most
// one live connection, joined to at most one room.
type Session struct {
	transport Transport
	uploader  Uploader
	self      session.Session
	now       func() time.Time

	mu        sync.Mutex
	state     State
	conn      Conn
	listening bool
	room      string
	messages  []gateway.Message
	pending   map[string]struct{} // local message ids awaiting server echo
}

// NewSession builds a session for the decoded user identity. Nothing
// connects until the first conversation is selected.
func NewSession(t Transport, up Uploader, self session.Session) *Session {
	return &Session{
		transport: t,
		uploader:  up,
		self:      self,
		now:       time.Now,
		state:     Disconnected,
		pending:   make(map[string]struct{}),
	}
}

// State returns the current lifecycle position.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Room returns the currently joined conversation id, empty when none.
func (s *Session) Room() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.room
}

// Messages returns a copy of the visible message list. Ordering is
// insertion order; the list is never re-sorted.
func (s *Session) Messages() []gateway.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]gateway.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// SelectConversation joins the room, leaving the previous one first, and
// installs the REST-fetched history as the visible list. The connection is
// established lazily on first need and reused afterwards.
func (s *Session) SelectConversation(ctx context.Context, roomID string, history []gateway.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if roomID == "" || roomID == s.room {
		return nil
	}
	if err := s.ensureConnLocked(ctx); err != nil {
		return err
	}
	if s.room != "" {
		// Without this the server keeps delivering events for a room the
		// panel no longer shows.
		s.conn.Send(Frame{Event: EventLeave, RoomID: s.room, UserID: s.self.UserID})
	}
	if err := s.conn.Send(Frame{Event: EventJoin, RoomID: roomID, UserID: s.self.UserID}); err != nil {
		return err
	}
	s.advanceLocked(InputJoin)
	s.room = roomID
	s.messages = make([]gateway.Message, len(history))
	copy(s.messages, history)
	s.pending = make(map[string]struct{})
	return nil
}

// Send uploads attachments, emits the message, and appends it optimistically.
// Uploads come first: a failed upload means nothing is emitted. With a dead
// connection the session reconnects once and retries the single send; a
// second consecutive failure is returned to the caller.
func (s *Session) Send(ctx context.Context, text string, attachments []Attachment) (gateway.Message, error) {
	var urls []string
	for _, a := range attachments {
		res, err := s.uploader.Upload(ctx, a.Filename, a.Content)
		if err != nil {
			return gateway.Message{}, err
		}
		urls = append(urls, res.URL)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.room == "" {
		return gateway.Message{}, ErrNoRoom
	}

	f := Frame{
		Event:       EventMessage,
		RoomID:      s.room,
		SenderID:    s.self.UserID,
		SenderName:  s.self.Name,
		MessageID:   uuid.NewString(),
		Message:     text,
		MessageType: messageType(urls),
		Attachments: urls,
		Timestamp:   s.now().UTC(),
	}
	if err := s.emitLocked(ctx, f); err != nil {
		return gateway.Message{}, err
	}

	msg := messageFromFrame(f)
	s.messages = append(s.messages, msg)
	s.pending[f.MessageID] = struct{}{}
	audit.LogEvent(ctx, "chat.send", map[string]any{"roomId": f.RoomID, "messageId": f.MessageID})
	return msg, nil
}

// Close tears the session down. Ordering matters: leave the room, stop
// listening, close the connection, clear the reference. No inbound handler
// fires after the reference is cleared.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		s.setStateLocked(Disconnected)
		return nil
	}
	if s.room != "" {
		s.conn.Send(Frame{Event: EventLeave, RoomID: s.room, UserID: s.self.UserID})
		s.advanceLocked(InputLeave)
		s.room = ""
	}
	s.listening = false
	err := s.conn.Close()
	s.conn = nil
	s.setStateLocked(Disconnected)
	return err
}

// ensureConnLocked establishes the connection on first need. The held
// reference is the guard: at most one live connection per session.
func (s *Session) ensureConnLocked(ctx context.Context) error {
	if s.conn != nil {
		return nil
	}
	conn, err := s.transport.Connect(ctx)
	if err != nil {
		return err
	}
	s.conn = conn
	s.listening = true
	s.advanceLocked(InputConnect)
	go s.readLoop(conn)
	return nil
}

// emitLocked sends the frame, reconnecting once on a dead connection.
func (s *Session) emitLocked(ctx context.Context, f Frame) error {
	if s.conn == nil {
		if err := s.reconnectLocked(ctx); err != nil {
			return err
		}
		return s.conn.Send(f)
	}
	if err := s.conn.Send(f); err != nil {
		s.listening = false
		s.conn.Close()
		s.conn = nil
		s.setStateLocked(Disconnected)
		if rerr := s.reconnectLocked(ctx); rerr != nil {
			return rerr
		}
		return s.conn.Send(f)
	}
	return nil
}

// reconnectLocked re-establishes the connection and rejoins the selected
// room so inbound delivery resumes. s.room is left untouched on every
// path: the selection changes only via SelectConversation or Close, so a
// failed rejoin is retried by the next send rather than wedging the
// session roomless.
func (s *Session) reconnectLocked(ctx context.Context) error {
	if err := s.ensureConnLocked(ctx); err != nil {
		return err
	}
	if s.room != "" {
		if err := s.conn.Send(Frame{Event: EventJoin, RoomID: s.room, UserID: s.self.UserID}); err != nil {
			return err
		}
		s.advanceLocked(InputJoin)
	}
	return nil
}

func (s *Session) readLoop(c Conn) {
	for {
		f, err := c.Receive()
		if err != nil {
			s.mu.Lock()
			if s.conn == c {
				// The server dropped us; the next send reconnects lazily.
				s.listening = false
				s.conn = nil
				s.setStateLocked(Disconnected)
			}
			s.mu.Unlock()
			return
		}
		s.dispatch(c, f)
	}
}

func (s *Session) dispatch(c Conn, f Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.listening || s.conn != c {
		return
	}
	if f.Event != EventMessage {
		return
	}
	if f.RoomID != s.room {
		// Not the visible conversation: dropped, not buffered. History for
		// that room comes back from the REST layer when it is reopened.
		return
	}
	if _, ok := s.pending[f.MessageID]; ok {
		// Server echo of our optimistic entry: replace it in place so ids
		// converge on the server's copy instead of duplicating.
		delete(s.pending, f.MessageID)
		for i := range s.messages {
			if s.messages[i].ID == f.MessageID {
				s.messages[i] = messageFromFrame(f)
				return
			}
		}
		return
	}
	s.messages = append(s.messages, messageFromFrame(f))
}

func (s *Session) advanceLocked(in Input) {
	next, err := Transition(s.state, in)
	if err != nil {
		obs.Error("chat transition", err, nil)
		return
	}
	s.setStateLocked(next)
}

func (s *Session) setStateLocked(to State) {
	if to == s.state {
		return
	}
	obs.ObserveChatTransition(s.state.String(), to.String())
	s.state = to
}

func messageType(urls []string) string {
	if len(urls) > 0 {
		return "attachment"
	}
	return "text"
}

func messageFromFrame(f Frame) gateway.Message {
	return gateway.Message{
		ID:          f.MessageID,
		Content:     f.Message,
		SenderID:    f.SenderID,
		SenderName:  f.SenderName,
		Timestamp:   f.Timestamp,
		Attachments: f.Attachments,
	}
}
