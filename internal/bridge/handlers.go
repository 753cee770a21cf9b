package bridge

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ageniuscoder/mmchat/widget/internal/api"
	"github.com/ageniuscoder/mmchat/widget/internal/chat"
	"github.com/ageniuscoder/mmchat/widget/internal/httpx"
	"github.com/ageniuscoder/mmchat/widget/internal/models"
	"github.com/ageniuscoder/mmchat/widget/internal/utils"
	"github.com/ageniuscoder/mmchat/widget/internal/vent"
	"github.com/ageniuscoder/mmchat/widget/internal/widget"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Widget is the part of the widget the bridge exposes.
type Widget interface {
	SendMessage(ctx context.Context, text string) (*models.Message, error)
	ResetUnread(ctx context.Context) error
	OnFocus(ctx context.Context) error
	OnInputRead(ctx context.Context) error
	Unread() int
	Conversation() *models.Conversation
	Open() error
	Close(ctx context.Context) error
	UpdateUser(ctx context.Context, attrs map[string]any) (models.AppUserDTO, error)
	Track(ctx context.Context, name string, props map[string]any) (api.TrackResponse, error)
	On(event string, fn vent.Handler) vent.Handle
}

type Service struct {
	W       Widget
	Limiter *rate.Limiter
	log     *zap.Logger
}

type sendReq struct {
	Text string `json:"text" binding:"required,max=4096"`
}

type trackReq struct {
	Name  string         `json:"name" binding:"required"`
	Props map[string]any `json:"props"`
}

// NewLimiter allows perMinute sends with a burst of the same size. Zero
// disables the limit.
func NewLimiter(perMinute int) *rate.Limiter {
	if perMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute)
}

func Register(rg *gin.RouterGroup, w Widget, limiter *rate.Limiter, log *zap.Logger) {
	if log == nil {
		log = zap.NewNop()
	}
	if limiter == nil {
		limiter = NewLimiter(0)
	}
	s := Service{
		W:       w,
		Limiter: limiter,
		log:     log,
	}
	rg.POST("/messages", s.send)
	rg.POST("/read", s.read)
	rg.GET("/unread", s.unread)
	rg.GET("/conversation", s.conversation)
	rg.POST("/open", s.open)
	rg.POST("/close", s.close)
	rg.PUT("/user", s.updateUser)
	rg.POST("/track", s.track)
}

func (s Service) send(c *gin.Context) {
	if !s.Limiter.Allow() {
		httpx.Err(c, http.StatusTooManyRequests, "too many messages")
		return
	}
	var req sendReq
	if !bind(c, &req) {
		return
	}

	msg, err := s.W.SendMessage(c.Request.Context(), req.Text)
	if err != nil {
		s.fail(c, "send message", err)
		return
	}
	httpx.OK(c, gin.H{"message": msg})
}

func (s Service) read(c *gin.Context) {
	if err := s.W.ResetUnread(c.Request.Context()); err != nil {
		s.fail(c, "reset unread", err)
		return
	}
	httpx.OK(c, gin.H{"unread": s.W.Unread()})
}

func (s Service) unread(c *gin.Context) {
	httpx.OK(c, gin.H{"unread": s.W.Unread()})
}

func (s Service) conversation(c *gin.Context) {
	conv := s.W.Conversation()
	if conv == nil {
		httpx.Err(c, http.StatusServiceUnavailable, widget.ErrNotReady.Error())
		return
	}
	httpx.OK(c, gin.H{"conversation": conv.DTO(), "appMakers": conv.AppMakers()})
}

func (s Service) open(c *gin.Context) {
	if err := s.W.Open(); err != nil {
		s.fail(c, "open", err)
		return
	}
	httpx.OK(c, gin.H{"opened": true})
}

func (s Service) close(c *gin.Context) {
	if err := s.W.Close(c.Request.Context()); err != nil {
		s.fail(c, "close", err)
		return
	}
	httpx.OK(c, gin.H{"opened": false})
}

func (s Service) updateUser(c *gin.Context) {
	var attrs map[string]any
	if err := c.ShouldBindJSON(&attrs); err != nil {
		httpx.Err(c, http.StatusBadRequest, err.Error())
		return
	}
	user, err := s.W.UpdateUser(c.Request.Context(), attrs)
	if err != nil {
		s.fail(c, "update user", err)
		return
	}
	httpx.OK(c, gin.H{"appUser": user})
}

func (s Service) track(c *gin.Context) {
	var req trackReq
	if !bind(c, &req) {
		return
	}
	res, err := s.W.Track(c.Request.Context(), req.Name, req.Props)
	if err != nil {
		s.fail(c, "track", err)
		return
	}
	httpx.OK(c, res)
}

func bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			httpx.Err(c, http.StatusBadRequest, utils.ValidationErr(validationErrors))
			return false
		}
		httpx.Err(c, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func (s Service) fail(c *gin.Context, op string, err error) {
	var status *api.StatusError
	var invalid validator.ValidationErrors
	switch {
	case errors.Is(err, widget.ErrNotReady), errors.Is(err, chat.ErrDestroyed), errors.Is(err, chat.ErrNoConversation):
		httpx.Err(c, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &invalid):
		httpx.Err(c, http.StatusBadRequest, utils.ValidationErr(invalid))
	case errors.As(err, &status):
		s.log.Warn(op+" rejected", zap.Int("status", status.Code), zap.Error(err))
		httpx.Err(c, http.StatusBadGateway, status.Message)
	default:
		s.log.Error(op+" failed", zap.Error(err))
		httpx.Err(c, http.StatusBadGateway, err.Error())
	}
}
