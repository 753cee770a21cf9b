package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ageniuscoder/mmchat/widget/internal/models"
	"github.com/ageniuscoder/mmchat/widget/internal/vent"
	"go.uber.org/zap"
)

var (
	ErrDestroyed      = errors.New("chat: controller destroyed")
	ErrNoConversation = errors.New("chat: no conversation")
)

// Store is the remote conversation store.
type Store interface {
	FetchConversations(ctx context.Context, appUserID string) ([]models.ConversationDTO, error)
	CreateConversation(ctx context.Context, dto models.ConversationDTO) (models.ConversationDTO, error)
	CreateMessage(ctx context.Context, conversationID string, draft models.MessageDraft) (models.Message, error)
	UpdateAppUser(ctx context.Context, appUserID string, attrs map[string]any) (models.AppUserDTO, error)
}

// Subscription is a live real-time channel.
type Subscription interface {
	Disconnect()
}

// Subscriber opens the real-time channel of a persisted conversation.
type Subscriber interface {
	Subscribe(ctx context.Context, conversationID string) (Subscription, error)
}

// MarkerStore persists the last-read marker outside of process memory.
type MarkerStore interface {
	LatestReadTs(ctx context.Context) (int64, error)
	SetLatestReadTs(ctx context.Context, ts int64) error
}

// EmailPrompter shows the email-capture prompt.
type EmailPrompter interface {
	ShowEmailCapture()
}

type PrompterFunc func()

func (f PrompterFunc) ShowEmailCapture() { f() }

type Options struct {
	EmailCaptureEnabled bool
	ReadOnlyEmail       bool
	// SubscribeTimeout bounds the real-time subscribe handshake so a slow
	// transport never stalls a send. Zero means no bound.
	SubscribeTimeout time.Duration
}

type Deps struct {
	User     *models.AppUser
	Store    Store
	Realtime Subscriber
	Markers  MarkerStore
	Prompter EmailPrompter
	// Bus is the process-wide bus the real-time transport publishes to.
	Bus *vent.Bus
	// Events receives the outward message:received and message:sent events.
	Events *vent.Bus
	Logger *zap.Logger
}

// Controller owns the conversation of one widget session: it bootstraps it,
// keeps it subscribed, sends and receives messages and tracks unread state.
type Controller struct {
	user     *models.AppUser
	store    Store
	realtime Subscriber
	markers  MarkerStore
	prompter EmailPrompter
	bus      *vent.Bus
	events   *vent.Bus
	opts     Options
	log      *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	// serializes bootstrap runs
	bootMu sync.Mutex

	mu                    sync.Mutex
	conversation          *models.Conversation
	conversationInitiated bool
	sub                   Subscription
	subConversationID     string
	startedHandle         vent.Handle
	unread                *Unread
	started               bool
	isOpened              bool
	destroyed             bool

	teardown vent.Teardown
}

func New(d Deps, opts Options) *Controller {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if d.Bus == nil {
		d.Bus = vent.New()
	}
	if d.Events == nil {
		d.Events = vent.New()
	}
	if d.Prompter == nil {
		d.Prompter = PrompterFunc(func() {})
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		user:     d.User,
		store:    d.Store,
		realtime: d.Realtime,
		markers:  d.Markers,
		prompter: d.Prompter,
		bus:      d.Bus,
		events:   d.Events,
		opts:     opts,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start bootstraps the conversation, listens to the real-time bus and
// attaches unread accounting. Calling it again returns the same conversation.
func (c *Controller) Start(ctx context.Context) (*models.Conversation, error) {
	conv, err := c.InitConversation(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return nil, ErrDestroyed
	}
	if c.started {
		c.mu.Unlock()
		return conv, nil
	}
	c.started = true
	c.unread = NewUnread(conv, c.markers, c.log)
	unread := c.unread
	c.mu.Unlock()

	c.teardown.Add(c.bus.Subscribe(vent.ReceiveMessage, c.receiveMessage))
	unread.Attach(c.ctx)
	c.teardown.Add(unread)
	return conv, nil
}

// Conversation returns the canonical conversation, nil before bootstrap.
func (c *Controller) Conversation() *models.Conversation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conversation
}

func (c *Controller) Unread() int {
	conv := c.Conversation()
	if conv == nil {
		return 0
	}
	return conv.Unread()
}

// Subscribed reports whether a real-time channel is currently open.
func (c *Controller) Subscribed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sub != nil
}

func (c *Controller) alive() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return ErrDestroyed
	}
	return nil
}

// ResetUnread marks every message as read. It is a no-op before Start.
func (c *Controller) ResetUnread(ctx context.Context) error {
	c.mu.Lock()
	u := c.unread
	c.mu.Unlock()
	if u == nil {
		return nil
	}
	return u.MarkAllRead(ctx)
}

// OnFocus handles the widget gaining focus.
func (c *Controller) OnFocus(ctx context.Context) {
	c.logResetErr(c.ResetUnread(ctx))
}

// OnInputRead handles the input signalling the user has read the thread.
func (c *Controller) OnInputRead(ctx context.Context) {
	c.logResetErr(c.ResetUnread(ctx))
}

func (c *Controller) logResetErr(err error) {
	if err != nil {
		c.log.Warn("reset unread", zap.Error(err))
	}
}

func (c *Controller) IsOpened() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isOpened
}

func (c *Controller) Open() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.destroyed {
		c.isOpened = true
	}
}

// Close hides the widget and marks everything read.
func (c *Controller) Close(ctx context.Context) {
	c.mu.Lock()
	wasOpen := c.isOpened && !c.destroyed
	c.isOpened = false
	c.mu.Unlock()

	if wasOpen {
		c.logResetErr(c.ResetUnread(ctx))
	}
}

func (c *Controller) Toggle(ctx context.Context) {
	if c.IsOpened() {
		c.Close(ctx)
	} else {
		c.Open()
	}
}

// Destroy ends the session: the real-time channel is disconnected, every
// listener is detached and late network results are ignored.
func (c *Controller) Destroy() {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return
	}
	c.destroyed = true
	c.isOpened = false
	sub := c.sub
	c.sub = nil
	c.subConversationID = ""
	c.mu.Unlock()

	c.cancel()
	c.teardown.Run()
	if sub != nil {
		sub.Disconnect()
	}
}
