package widget

import (
	"context"
	"errors"
	"net/http"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/ageniuscoder/mmchat/widget/internal/api"
	"github.com/ageniuscoder/mmchat/widget/internal/auth"
	"github.com/ageniuscoder/mmchat/widget/internal/chat"
	"github.com/ageniuscoder/mmchat/widget/internal/models"
	"github.com/ageniuscoder/mmchat/widget/internal/storage"
	"github.com/ageniuscoder/mmchat/widget/internal/vent"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	Version           = "1.0.0"
	DefaultServiceURL = "https://api.smooch.io"
	platform          = "go"
)

var ErrNotReady = errors.New("widget: not ready")

var validate = validator.New()

type InitOptions struct {
	AppToken            string `validate:"required"`
	ServiceURL          string `validate:"omitempty,url"`
	UserID              string
	JWT                 string
	EmailCaptureEnabled bool
	// Attributes are initial user attributes; only editable keys are saved.
	// An email given here cannot be changed by the end user.
	Attributes map[string]any
}

type Deps struct {
	Device *storage.DeviceStore
	HTTP   *http.Client
	// Realtime defaults to a FayeSubscriber on the configured service.
	Realtime         chat.Subscriber
	Dialer           *websocket.Dialer
	Prompter         chat.EmailPrompter
	SubscribeTimeout time.Duration
	Logger           *zap.Logger
}

// Widget is the host-facing surface of one embedded chat widget. A login
// starts a session (user, controller, subscriptions); logging in again or
// destroying the widget tears that session down first.
type Widget struct {
	ep       *api.Endpoint
	client   *api.Client
	device   *storage.DeviceStore
	realtime chat.Subscriber
	prompter chat.EmailPrompter
	bus      *vent.Bus
	events   *vent.Bus
	log      *zap.Logger
	subTO    time.Duration
	now      func() time.Time

	// serializes login, logout and destroy
	loginMu sync.Mutex

	mu            sync.RWMutex
	emailCapture  bool
	readOnlyEmail bool
	user          *models.AppUser
	ctrl          *chat.Controller
	session       *vent.Teardown
	ready         bool
}

func New(d Deps) *Widget {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if d.Device == nil {
		d.Device = storage.NewDeviceStore(storage.NewMemoryStorage())
	}

	ep := api.NewEndpoint(DefaultServiceURL, "", Version)
	bus := vent.New()
	w := &Widget{
		ep:       ep,
		client:   api.New(ep, d.HTTP, log.Named("api")),
		device:   d.Device,
		realtime: d.Realtime,
		prompter: d.Prompter,
		bus:      bus,
		events:   vent.New(),
		log:      log,
		subTO:    d.SubscribeTimeout,
		now:      time.Now,
	}
	if w.realtime == nil {
		w.realtime = &FayeSubscriber{Endpoint: ep, Bus: bus, Dialer: d.Dialer, Logger: log.Named("faye")}
	}
	return w
}

// Init configures credentials and logs in. It is a no-op once ready.
func (w *Widget) Init(ctx context.Context, opts InitOptions) error {
	if w.Ready() {
		return nil
	}
	if err := validate.Struct(opts); err != nil {
		return err
	}

	w.ep.SetAppToken(opts.AppToken)
	if opts.ServiceURL != "" {
		w.ep.SetRootURL(opts.ServiceURL)
	}
	w.mu.Lock()
	w.emailCapture = opts.EmailCaptureEnabled
	w.mu.Unlock()

	return w.Login(ctx, opts.UserID, opts.JWT, opts.Attributes)
}

// Login resets the session and starts a new one for userID (anonymous when
// empty).
func (w *Widget) Login(ctx context.Context, userID, jwt string, attrs map[string]any) error {
	w.loginMu.Lock()
	defer w.loginMu.Unlock()

	if jwt != "" {
		if _, err := auth.InspectUserToken(jwt, userID, w.now()); err != nil {
			return err
		}
	}

	w.cleanState()

	deviceID, err := w.device.DeviceID(ctx)
	if err != nil {
		return err
	}
	req := api.InitRequest{Device: api.Device{
		ID:       deviceID,
		Platform: platform,
		Info:     w.deviceInfo(),
	}}
	if userID != "" {
		req.UserID = userID
		w.ep.SetUserID(userID)
	}
	if jwt != "" {
		w.ep.SetJWT(jwt)
	}

	email, _ := attrs["email"].(string)
	readOnlyEmail := email != ""
	w.mu.Lock()
	w.readOnlyEmail = readOnlyEmail
	emailCapture := w.emailCapture
	w.mu.Unlock()

	dto, err := w.client.Init(ctx, req)
	if err != nil {
		w.log.Error("init error", zap.Error(err))
		return err
	}
	user := models.NewAppUser()
	user.Apply(dto)
	w.ep.SetAppUserID(user.ID())

	if editable := models.PickEditable(attrs); len(editable) > 0 {
		saved, err := w.client.UpdateAppUser(ctx, user.ID(), editable)
		if err != nil {
			w.log.Error("init error", zap.Error(err))
			return err
		}
		user.Apply(saved)
	}

	ctrl := chat.New(chat.Deps{
		User:     user,
		Store:    w.client,
		Realtime: w.realtime,
		Markers:  w.device,
		Prompter: w.prompter,
		Bus:      w.bus,
		Events:   w.events,
		Logger:   w.log.With(zap.String("app_user_id", user.ID())),
	}, chat.Options{
		EmailCaptureEnabled: emailCapture,
		ReadOnlyEmail:       readOnlyEmail,
		SubscribeTimeout:    w.subTO,
	})

	conv, err := ctrl.Start(ctx)
	if err != nil {
		ctrl.Destroy()
		w.log.Error("init error", zap.Error(err))
		return err
	}

	w.mu.Lock()
	w.user = user
	w.ctrl = ctrl
	w.session = &vent.Teardown{}
	w.session.Add(conv.On(models.TopicChangeUnread, func(p any) {
		w.events.Publish(vent.UnreadChanged, p)
	}))
	w.ready = true
	w.mu.Unlock()

	// the first count was computed before anyone listened
	w.events.Publish(vent.UnreadChanged, conv.Unread())
	w.log.Info("widget ready", zap.String("app_user_id", user.ID()), zap.Bool("conversation_new", conv.IsNew()))
	return nil
}

// Logout starts a fresh anonymous session.
func (w *Widget) Logout(ctx context.Context) error {
	if !w.Ready() {
		return nil
	}
	return w.Login(ctx, "", "", nil)
}

// Destroy tears down the session and forgets the app token.
func (w *Widget) Destroy() {
	w.loginMu.Lock()
	defer w.loginMu.Unlock()

	w.cleanState()
	w.ep.SetAppToken("")
}

func (w *Widget) cleanState() {
	w.mu.Lock()
	ctrl := w.ctrl
	session := w.session
	w.ctrl = nil
	w.user = nil
	w.session = nil
	w.ready = false
	w.mu.Unlock()

	if session != nil {
		session.Run()
	}
	if ctrl != nil {
		ctrl.Destroy()
	}
	w.ep.Reset()
}

func (w *Widget) deviceInfo() map[string]string {
	info := map[string]string{
		"sdkVersion": w.ep.SDKVersion(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
	}
	if host, err := os.Hostname(); err == nil {
		info["hostname"] = host
	}
	return info
}

func (w *Widget) Ready() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.ready
}

func (w *Widget) current() (*chat.Controller, *models.AppUser, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if !w.ready {
		return nil, nil, ErrNotReady
	}
	return w.ctrl, w.user, nil
}

func (w *Widget) SendMessage(ctx context.Context, text string) (*models.Message, error) {
	ctrl, _, err := w.current()
	if err != nil {
		return nil, err
	}
	return ctrl.SendMessage(ctx, text)
}

func (w *Widget) ResetUnread(ctx context.Context) error {
	ctrl, _, err := w.current()
	if err != nil {
		return err
	}
	return ctrl.ResetUnread(ctx)
}

// OnFocus tells the widget it gained focus; everything shown is read.
func (w *Widget) OnFocus(ctx context.Context) error {
	ctrl, _, err := w.current()
	if err != nil {
		return err
	}
	ctrl.OnFocus(ctx)
	return nil
}

// OnInputRead tells the widget the user read the thread from the input.
func (w *Widget) OnInputRead(ctx context.Context) error {
	ctrl, _, err := w.current()
	if err != nil {
		return err
	}
	ctrl.OnInputRead(ctx)
	return nil
}

func (w *Widget) Open() error {
	ctrl, _, err := w.current()
	if err != nil {
		return err
	}
	ctrl.Open()
	return nil
}

// Close hides the widget and marks the conversation read.
func (w *Widget) Close(ctx context.Context) error {
	ctrl, _, err := w.current()
	if err != nil {
		return err
	}
	ctrl.Close(ctx)
	return nil
}

func (w *Widget) Toggle(ctx context.Context) error {
	ctrl, _, err := w.current()
	if err != nil {
		return err
	}
	ctrl.Toggle(ctx)
	return nil
}

func (w *Widget) IsOpened() bool {
	ctrl, _, err := w.current()
	if err != nil {
		return false
	}
	return ctrl.IsOpened()
}

// UpdateUser saves the editable subset of attrs and returns the confirmed
// user.
func (w *Widget) UpdateUser(ctx context.Context, attrs map[string]any) (models.AppUserDTO, error) {
	_, user, err := w.current()
	if err != nil {
		return models.AppUserDTO{}, err
	}

	editable := models.PickEditable(attrs)
	if email, ok := editable["email"]; ok {
		if err := validate.Var(email, "omitempty,email"); err != nil {
			return models.AppUserDTO{}, err
		}
	}

	dto, err := w.client.UpdateAppUser(ctx, user.ID(), editable)
	if err != nil {
		return models.AppUserDTO{}, err
	}
	user.Apply(dto)
	return dto, nil
}

// Track records a named event. When the server reports that it started or
// changed the conversation, the user is refreshed and an unsaved
// conversation is bootstrapped again.
func (w *Widget) Track(ctx context.Context, name string, props map[string]any) (api.TrackResponse, error) {
	ctrl, user, err := w.current()
	if err != nil {
		return api.TrackResponse{}, err
	}

	res, err := w.client.TrackEvent(ctx, user.ID(), name, props)
	if err != nil {
		w.log.Error("track error", zap.String("event", name), zap.Error(err))
		return api.TrackResponse{}, err
	}
	if !res.ConversationUpdated {
		return res, nil
	}

	if res.AppUser != nil {
		user.Apply(*res.AppUser)
	} else if dto, err := w.client.GetAppUser(ctx, user.ID()); err != nil {
		w.log.Warn("user refresh failed", zap.String("event", name), zap.Error(err))
	} else {
		user.Apply(dto)
	}
	if conv := ctrl.Conversation(); conv == nil || conv.IsNew() {
		if _, err := ctrl.InitConversation(ctx); err != nil && !errors.Is(err, chat.ErrDestroyed) {
			return res, err
		}
	}
	return res, nil
}

func (w *Widget) DeviceID(ctx context.Context) (string, error) {
	return w.device.DeviceID(ctx)
}

func (w *Widget) Unread() int {
	ctrl, _, err := w.current()
	if err != nil {
		return 0
	}
	return ctrl.Unread()
}

// Conversation returns the live conversation, nil when not ready.
func (w *Widget) Conversation() *models.Conversation {
	ctrl, _, err := w.current()
	if err != nil {
		return nil
	}
	return ctrl.Conversation()
}

// User returns a snapshot of the current app user.
func (w *Widget) User() (models.AppUserDTO, error) {
	_, user, err := w.current()
	if err != nil {
		return models.AppUserDTO{}, err
	}
	return user.Snapshot(), nil
}

func (w *Widget) ReadOnlyEmail() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.readOnlyEmail
}

// On listens to the outward events: vent.MessageReceived, vent.MessageSent
// and vent.UnreadChanged. Handlers survive logins.
func (w *Widget) On(event string, fn vent.Handler) vent.Handle {
	return w.events.Subscribe(event, fn)
}
