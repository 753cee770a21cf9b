package api

import "sync"

// Endpoint holds the credentials and addresses shared by the REST client and
// the real-time transport for one widget instance.
type Endpoint struct {
	mu         sync.RWMutex
	rootURL    string
	appToken   string
	appUserID  string
	userID     string
	jwt        string
	sdkVersion string
}

func NewEndpoint(rootURL, appToken, sdkVersion string) *Endpoint {
	return &Endpoint{rootURL: rootURL, appToken: appToken, sdkVersion: sdkVersion}
}

func (e *Endpoint) RootURL() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.rootURL
}

func (e *Endpoint) SetRootURL(u string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rootURL = u
}

func (e *Endpoint) AppToken() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.appToken
}

func (e *Endpoint) SetAppToken(tok string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.appToken = tok
}

func (e *Endpoint) AppUserID() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.appUserID
}

func (e *Endpoint) SetAppUserID(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.appUserID = id
}

func (e *Endpoint) UserID() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.userID
}

func (e *Endpoint) SetUserID(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.userID = id
}

func (e *Endpoint) JWT() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.jwt
}

func (e *Endpoint) SetJWT(tok string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.jwt = tok
}

func (e *Endpoint) SDKVersion() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.sdkVersion
}

// Reset forgets the session identity. The app token and root URL survive.
func (e *Endpoint) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.appUserID = ""
	e.userID = ""
	e.jwt = ""
}
