package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/ageniuscoder/mmchat/widget/internal/models"
)

type Device struct {
	ID       string            `json:"id"`
	Platform string            `json:"platform"`
	Info     map[string]string `json:"info,omitempty"`
}

type InitRequest struct {
	Device Device `json:"device"`
	UserID string `json:"userId,omitempty"`
}

// Init registers the device and returns the app user bound to it.
func (c *Client) Init(ctx context.Context, req InitRequest) (models.AppUserDTO, error) {
	var out struct {
		AppUser models.AppUserDTO `json:"appUser"`
	}
	if err := c.call(ctx, http.MethodPost, "v1/init", req, &out); err != nil {
		return models.AppUserDTO{}, err
	}
	return out.AppUser, nil
}

// UpdateAppUser persists attrs and returns the confirmed user.
func (c *Client) UpdateAppUser(ctx context.Context, appUserID string, attrs map[string]any) (models.AppUserDTO, error) {
	var out struct {
		AppUser models.AppUserDTO `json:"appUser"`
	}
	path := "v1/appusers/" + url.PathEscape(appUserID)
	if err := c.call(ctx, http.MethodPut, path, attrs, &out); err != nil {
		return models.AppUserDTO{}, err
	}
	return out.AppUser, nil
}

type TrackResponse struct {
	ConversationUpdated bool               `json:"conversationUpdated"`
	AppUser             *models.AppUserDTO `json:"appUser,omitempty"`
}

// TrackEvent records a named event for the app user. The server may start a
// conversation in response, reported through ConversationUpdated.
func (c *Client) TrackEvent(ctx context.Context, appUserID, name string, props map[string]any) (TrackResponse, error) {
	req := struct {
		Name    string         `json:"name"`
		AppUser map[string]any `json:"appUser,omitempty"`
	}{Name: name, AppUser: props}

	var out TrackResponse
	path := "v1/appusers/" + url.PathEscape(appUserID) + "/events"
	if err := c.call(ctx, http.MethodPost, path, req, &out); err != nil {
		return TrackResponse{}, err
	}
	return out, nil
}

// GetAppUser refreshes the app user from the server.
func (c *Client) GetAppUser(ctx context.Context, appUserID string) (models.AppUserDTO, error) {
	var out struct {
		AppUser models.AppUserDTO `json:"appUser"`
	}
	if err := c.call(ctx, http.MethodGet, "v1/appusers/"+url.PathEscape(appUserID), nil, &out); err != nil {
		return models.AppUserDTO{}, err
	}
	return out.AppUser, nil
}
