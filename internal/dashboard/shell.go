// Package dashboard wires the guard, the stores, and the messaging session
// into one dashboard instance. Panels are not rendered here; the shell only
// owns the data lifecycle their visibility toggles drive.
package dashboard

import (
	"context"
	"sync"

	"renomarket.org/internal/chat"
	"renomarket.org/internal/config"
	"renomarket.org/internal/gateway"
	"renomarket.org/internal/localstore"
	"renomarket.org/internal/obs"
	"renomarket.org/internal/product"
	"renomarket.org/internal/project"
	"renomarket.org/internal/quote"
	"renomarket.org/internal/session"
	"renomarket.org/internal/task"
)

// Panels whose visibility toggles trigger a refetch.
const (
	PanelOverview = "overview"
	PanelTasks    = "tasks"
	PanelProducts = "products"
	PanelQuote    = "quote"
	PanelAlerts   = "alerts"
	PanelSettings = "settings"
)

// Shell is one signed-in dashboard instance. Construct with New, open with
// Open, tear down with Close.
type Shell struct {
	cfg   config.Config
	state *localstore.Store
	api   *gateway.Client
	guard *session.Guard

	Projects *project.Store
	Tasks    *task.Store
	Products *product.Store
	Quotes   *quote.Store

	chatTransport chat.Transport
	gatewayOpts   []gateway.Option

	mu          sync.Mutex
	self        session.Session
	chatSession *chat.Session
}

// Option customizes the shell.
type Option func(*Shell)

// WithChatTransport replaces the websocket transport; tests run on the
// in-process hub.
func WithChatTransport(t chat.Transport) Option {
	return func(s *Shell) { s.chatTransport = t }
}

// WithGatewayOptions forwards options to the gateway client.
func WithGatewayOptions(opts ...gateway.Option) Option {
	return func(s *Shell) { s.gatewayOpts = opts }
}

// New builds a dashboard shell from config. The stores are per-instance,
// not ambient singletons; two shells never share state.
func New(cfg config.Config, opts ...Option) (*Shell, error) {
	state, err := localstore.Open(cfg.StatePath)
	if err != nil {
		return nil, err
	}

	s := &Shell{cfg: cfg, state: state}
	for _, opt := range opts {
		opt(s)
	}

	tokens := gateway.TokenFunc(func() string {
		token, err := state.Get(localstore.KeyAuthToken)
		if err != nil {
			return ""
		}
		return token
	})
	api, err := gateway.New(cfg, tokens, s.gatewayOpts...)
	if err != nil {
		state.Close()
		return nil, err
	}
	s.api = api
	s.guard = session.NewGuard(state)
	s.Projects = project.New(api, state)
	s.Tasks = task.New(api)
	s.Products = product.New(api)
	s.Quotes = quote.New(api)
	if s.chatTransport == nil {
		s.chatTransport = chat.NewWebsocketTransport(cfg.RealtimeURL, tokens)
	}

	// Every product toggle produces a distinct counter value; the quote
	// store refetches once per value, under the toggling caller's context.
	s.Products.OnChange(func(ctx context.Context, seq uint64) {
		s.Quotes.Sync(ctx, s.Projects.ProjectID(), seq)
	})
	return s, nil
}

// API exposes the gateway for panels the shell does not model (vendor CRUD,
// notifications); they are plain consumers of it.
func (s *Shell) API() *gateway.Client { return s.api }

// State exposes the persisted client state.
func (s *Shell) State() *localstore.Store { return s.state }

// Open gates on the required role and, when allowed, resolves the project
// and fires the initial fetch of every store: exactly one each.
func (s *Shell) Open(ctx context.Context, requiredRole, currentPath, explicitProjectID string) session.Outcome {
	out := s.guard.Check(requiredRole, currentPath)
	if !out.Allowed() {
		return out
	}
	s.mu.Lock()
	s.self = out.Session
	s.mu.Unlock()

	ctx = session.ContextWithSession(ctx, out.Session)
	s.Projects.Resolve(ctx, explicitProjectID)
	if s.Projects.Missing() {
		// No project yet: the consumer renders an empty state.
		return out
	}
	id := s.Projects.ProjectID()
	s.Tasks.Load(ctx, id)
	s.Products.Load(ctx, "")
	s.Quotes.Sync(ctx, id, s.Products.ChangeCount())
	return out
}

// ShowPanel refetches the data behind a panel when it becomes visible.
func (s *Shell) ShowPanel(ctx context.Context, panel string) {
	ctx = s.sessionContext(ctx)
	id := s.Projects.ProjectID()
	switch panel {
	case PanelOverview:
		s.Projects.Refresh(ctx)
	case PanelTasks:
		s.Tasks.Load(ctx, id)
	case PanelProducts:
		s.Products.Load(ctx, "")
	case PanelQuote:
		s.Quotes.Sync(ctx, id, s.Products.ChangeCount())
	}
}

// ToggleProduct flips catalog selection under the session identity. The
// registered change callback takes care of the quote refetch.
func (s *Shell) ToggleProduct(ctx context.Context, productID string) uint64 {
	return s.Products.Toggle(s.sessionContext(ctx), productID)
}

// OpenConversation fetches the room's history over REST and joins the room
// on the realtime channel. The chat session is created lazily and reused
// for the lifetime of the shell.
func (s *Shell) OpenConversation(ctx context.Context, roomID string) error {
	history, err := s.api.Messages(ctx, roomID)
	if err != nil {
		// The realtime channel is a live-append supplement; an empty
		// history still lets the conversation proceed.
		obs.Error("conversation history fetch failed", err, map[string]any{"room_id": roomID})
		history = nil
	}

	s.mu.Lock()
	if s.chatSession == nil {
		s.chatSession = chat.NewSession(s.chatTransport, s.api, s.self)
	}
	cs := s.chatSession
	s.mu.Unlock()

	if err := s.state.Set(localstore.KeyConversationID, roomID); err != nil {
		obs.Error("conversation id cache failed", err, nil)
	}
	return cs.SelectConversation(s.sessionContext(ctx), roomID, history)
}

// Chat returns the live messaging session, nil before the first
// conversation is opened.
func (s *Shell) Chat() *chat.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chatSession
}

// Logout tears down the messaging session and clears all persisted keys.
func (s *Shell) Logout() error {
	s.mu.Lock()
	cs := s.chatSession
	s.chatSession = nil
	s.self = session.Session{}
	s.mu.Unlock()
	if cs != nil {
		cs.Close()
	}
	return s.guard.Logout()
}

// Close releases the shell's resources.
func (s *Shell) Close() error {
	s.mu.Lock()
	cs := s.chatSession
	s.chatSession = nil
	s.mu.Unlock()
	if cs != nil {
		cs.Close()
	}
	return s.state.Close()
}

func (s *Shell) sessionContext(ctx context.Context) context.Context {
	s.mu.Lock()
	self := s.self
	s.mu.Unlock()
	if self.UserID == "" {
		return ctx
	}
	return session.ContextWithSession(ctx, self)
}
