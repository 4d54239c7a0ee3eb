package chat

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"renomarket.org/internal/gateway"
	"renomarket.org/internal/session"
)

type fakeUploader struct {
	url string
	err error
}

func (u *fakeUploader) Upload(ctx context.Context, filename string, r io.Reader) (gateway.UploadResult, error) {
	if u.err != nil {
		return gateway.UploadResult{}, u.err
	}
	io.Copy(io.Discard, r)
	return gateway.UploadResult{URL: u.url}, nil
}

// countingTransport wraps the hub to count Connect calls.
type countingTransport struct {
	hub      *Hub
	connects atomic.Int64
}

func (t *countingTransport) Connect(ctx context.Context) (Conn, error) {
	t.connects.Add(1)
	return t.hub.Connect(ctx)
}

func identity(id, name string) session.Session {
	return session.Session{UserID: id, Name: name, Role: "user", ExpiresAt: time.Now().Add(time.Hour)}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition never satisfied")
}

func TestConnectionEstablishedOnceAndReused(t *testing.T) {
	tr := &countingTransport{hub: NewHub()}
	s := NewSession(tr, &fakeUploader{}, identity("u1", "Ada"))
	defer s.Close()
	ctx := context.Background()

	if s.State() != Disconnected {
		t.Fatal("session must start disconnected")
	}
	if err := s.SelectConversation(ctx, "r1", nil); err != nil {
		t.Fatal(err)
	}
	if err := s.SelectConversation(ctx, "r2", nil); err != nil {
		t.Fatal(err)
	}
	if got := tr.connects.Load(); got != 1 {
		t.Fatalf("expected one connection for the panel lifetime, got %d", got)
	}
	if s.State() != Joined || s.Room() != "r2" {
		t.Fatalf("unexpected state %s room %s", s.State(), s.Room())
	}
}

func TestSwitchLeavesPreviousRoom(t *testing.T) {
	hub := NewHub()
	s := NewSession(&countingTransport{hub: hub}, &fakeUploader{}, identity("u1", "Ada"))
	defer s.Close()
	ctx := context.Background()

	if err := s.SelectConversation(ctx, "rA", nil); err != nil {
		t.Fatal(err)
	}
	if hub.Members("rA") != 1 {
		t.Fatal("expected membership in rA")
	}
	if err := s.SelectConversation(ctx, "rB", nil); err != nil {
		t.Fatal(err)
	}
	if hub.Members("rA") != 0 {
		t.Fatal("previous room not left on switch")
	}
	if hub.Members("rB") != 1 {
		t.Fatal("new room not joined")
	}
}

func TestInboundForOtherRoomDropped(t *testing.T) {
	hub := NewHub()
	s := NewSession(&countingTransport{hub: hub}, &fakeUploader{}, identity("u1", "Ada"))
	defer s.Close()
	ctx := context.Background()

	if err := s.SelectConversation(ctx, "rA", nil); err != nil {
		t.Fatal(err)
	}
	if err := s.SelectConversation(ctx, "rB", nil); err != nil {
		t.Fatal(err)
	}

	// A peer still in rA sends after we switched to rB.
	peer, err := hub.Connect(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer peer.Close()
	peer.Send(Frame{Event: EventJoin, RoomID: "rA", UserID: "u2"})
	peer.Send(Frame{Event: EventMessage, RoomID: "rA", SenderID: "u2", MessageID: "m-late", Message: "late"})

	peer.Send(Frame{Event: EventJoin, RoomID: "rB", UserID: "u2"})
	peer.Send(Frame{Event: EventMessage, RoomID: "rB", SenderID: "u2", MessageID: "m-b", Message: "for b"})

	waitFor(t, func() bool { return len(s.Messages()) == 1 })
	got := s.Messages()
	if got[0].ID != "m-b" {
		t.Fatalf("unexpected visible message: %+v", got[0])
	}
}

func TestOptimisticSendReconciledWithEcho(t *testing.T) {
	hub := NewHub()
	s := NewSession(&countingTransport{hub: hub}, &fakeUploader{}, identity("u1", "Ada"))
	defer s.Close()
	ctx := context.Background()

	if err := s.SelectConversation(ctx, "r1", nil); err != nil {
		t.Fatal(err)
	}
	msg, err := s.Send(ctx, "hello", nil)
	if err != nil {
		t.Fatal(err)
	}
	if msg.Content != "hello" || msg.ID == "" {
		t.Fatalf("optimistic message malformed: %+v", msg)
	}
	// The optimistic entry is visible immediately.
	if got := s.Messages(); len(got) != 1 {
		t.Fatalf("expected 1 visible message, got %d", len(got))
	}

	// The hub echoes the sender's own frame; the echo must replace the
	// optimistic entry, not duplicate it.
	time.Sleep(50 * time.Millisecond)
	if got := s.Messages(); len(got) != 1 {
		t.Fatalf("server echo duplicated the message: %d entries", len(got))
	}
}

func TestPeerMessageAppends(t *testing.T) {
	hub := NewHub()
	alice := NewSession(&countingTransport{hub: hub}, &fakeUploader{}, identity("u1", "Ada"))
	defer alice.Close()
	bob := NewSession(&countingTransport{hub: hub}, &fakeUploader{}, identity("u2", "Bob"))
	defer bob.Close()
	ctx := context.Background()

	history := []gateway.Message{{ID: "m0", Content: "earlier", SenderID: "u2"}}
	if err := alice.SelectConversation(ctx, "r1", history); err != nil {
		t.Fatal(err)
	}
	if err := bob.SelectConversation(ctx, "r1", history); err != nil {
		t.Fatal(err)
	}

	if _, err := bob.Send(ctx, "hi ada", nil); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return len(alice.Messages()) == 2 })
	got := alice.Messages()
	if got[0].ID != "m0" || got[1].Content != "hi ada" {
		t.Fatalf("insertion order broken: %+v", got)
	}
}

func TestUploadFailureSuppressesEmit(t *testing.T) {
	hub := NewHub()
	alice := NewSession(&countingTransport{hub: hub}, &fakeUploader{err: errors.New("storage down")}, identity("u1", "Ada"))
	defer alice.Close()
	bob := NewSession(&countingTransport{hub: hub}, &fakeUploader{}, identity("u2", "Bob"))
	defer bob.Close()
	ctx := context.Background()

	alice.SelectConversation(ctx, "r1", nil)
	bob.SelectConversation(ctx, "r1", nil)

	_, err := alice.Send(ctx, "photo", []Attachment{{Filename: "p.jpg", Content: strings.NewReader("x")}})
	if err == nil {
		t.Fatal("expected upload error")
	}
	if len(alice.Messages()) != 0 {
		t.Fatal("failed upload must not append optimistically")
	}
	time.Sleep(50 * time.Millisecond)
	if len(bob.Messages()) != 0 {
		t.Fatal("failed upload must not emit")
	}
}

func TestAttachmentCarriesUploadedURL(t *testing.T) {
	hub := NewHub()
	s := NewSession(&countingTransport{hub: hub},
		&fakeUploader{url: "https://cdn.example.org/p.jpg"}, identity("u1", "Ada"))
	defer s.Close()
	ctx := context.Background()

	s.SelectConversation(ctx, "r42", nil)
	msg, err := s.Send(ctx, "see photo", []Attachment{{Filename: "p.jpg", Content: strings.NewReader("x")}})
	if err != nil {
		t.Fatal(err)
	}
	if len(msg.Attachments) != 1 || msg.Attachments[0] != "https://cdn.example.org/p.jpg" {
		t.Fatalf("optimistic message must carry the uploaded URL: %+v", msg.Attachments)
	}
}

func TestSendReconnectsOnceAfterDrop(t *testing.T) {
	hub := NewHub()
	tr := &countingTransport{hub: hub}
	s := NewSession(tr, &fakeUploader{}, identity("u1", "Ada"))
	defer s.Close()
	ctx := context.Background()

	if err := s.SelectConversation(ctx, "r1", nil); err != nil {
		t.Fatal(err)
	}

	// Kill the live connection out from under the session.
	s.mu.Lock()
	dead := s.conn
	s.mu.Unlock()
	dead.Close()
	waitFor(t, func() bool { return s.State() == Disconnected })

	if _, err := s.Send(ctx, "still there?", nil); err != nil {
		t.Fatalf("lazy reconnect should carry the send: %v", err)
	}
	if got := tr.connects.Load(); got != 2 {
		t.Fatalf("expected exactly one reconnect, got %d connects", got)
	}
	if s.State() != Joined || hub.Members("r1") != 1 {
		t.Fatal("room not rejoined after reconnect")
	}
}

// brokenSendConn dials fine but every write fails, like a socket whose
// far side went away right after the handshake.
type brokenSendConn struct {
	closed chan struct{}
}

func (c *brokenSendConn) Send(Frame) error { return errors.New("write failed") }

func (c *brokenSendConn) Receive() (Frame, error) {
	<-c.closed
	return Frame{}, ErrClosed
}

func (c *brokenSendConn) Close() error {
	select {
	case <-c.closed:
	default:
		close(c.closed)
	}
	return nil
}

type brokenSendTransport struct{}

func (brokenSendTransport) Connect(ctx context.Context) (Conn, error) {
	return &brokenSendConn{closed: make(chan struct{})}, nil
}

func TestFailedRejoinKeepsSelection(t *testing.T) {
	hub := NewHub()
	s := NewSession(&countingTransport{hub: hub}, &fakeUploader{}, identity("u1", "Ada"))
	defer s.Close()
	ctx := context.Background()

	if err := s.SelectConversation(ctx, "r1", nil); err != nil {
		t.Fatal(err)
	}
	s.mu.Lock()
	dead := s.conn
	s.mu.Unlock()
	dead.Close()
	waitFor(t, func() bool { return s.State() == Disconnected })
	s.mu.Lock()
	s.transport = brokenSendTransport{}
	s.mu.Unlock()

	if _, err := s.Send(ctx, "hello?", nil); err == nil {
		t.Fatal("expected send failure when the rejoin cannot be delivered")
	}
	if got := s.Room(); got != "r1" {
		t.Fatalf("room selection must survive a failed rejoin: Room() = %q, want %q", got, "r1")
	}
	// The selection is intact, so a later send must attempt delivery
	// again instead of reporting a missing room.
	if _, err := s.Send(ctx, "still here", nil); errors.Is(err, ErrNoRoom) {
		t.Fatal("send reports no room while a conversation is selected")
	}
	if len(s.Messages()) != 0 {
		t.Fatal("failed sends must not append optimistically")
	}
}

type deadTransport struct{}

func (deadTransport) Connect(ctx context.Context) (Conn, error) {
	return nil, errors.New("realtime endpoint unreachable")
}

func TestSendFailsWhenReconnectFails(t *testing.T) {
	hub := NewHub()
	s := NewSession(&countingTransport{hub: hub}, &fakeUploader{}, identity("u1", "Ada"))
	ctx := context.Background()

	if err := s.SelectConversation(ctx, "r1", nil); err != nil {
		t.Fatal(err)
	}
	s.mu.Lock()
	dead := s.conn
	s.mu.Unlock()
	dead.Close()
	waitFor(t, func() bool { return s.State() == Disconnected })
	s.mu.Lock()
	s.transport = deadTransport{}
	s.mu.Unlock()

	if _, err := s.Send(ctx, "anyone?", nil); err == nil {
		t.Fatal("expected send failure with no reachable transport")
	}
	if len(s.Messages()) != 0 {
		t.Fatal("failed send must not append optimistically")
	}
}

func TestCloseTeardownOrdering(t *testing.T) {
	hub := NewHub()
	s := NewSession(&countingTransport{hub: hub}, &fakeUploader{}, identity("u1", "Ada"))
	ctx := context.Background()

	if err := s.SelectConversation(ctx, "r1", nil); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if s.State() != Disconnected {
		t.Fatalf("expected disconnected, got %s", s.State())
	}
	if hub.Members("r1") != 0 {
		t.Fatal("room membership survived teardown")
	}
	if s.Room() != "" {
		t.Fatal("room reference survived teardown")
	}
	// Close again is a no-op.
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
}
