package storage

import (
	"context"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Keys persisted per device. They are not scoped to a user or conversation.
const (
	KeyDeviceID     = "sk_deviceid"
	KeyLatestReadTs = "sk_latestts"
)

var ErrNotFound = errors.New("storage: key not found")

// Storage is a small string key/value store that survives restarts.
type Storage interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// DeviceStore exposes the typed device values on top of a Storage.
type DeviceStore struct {
	s Storage
}

func NewDeviceStore(s Storage) *DeviceStore {
	return &DeviceStore{s: s}
}

// DeviceID returns the stored device id, generating and storing a new one on
// first use.
func (d *DeviceStore) DeviceID(ctx context.Context) (string, error) {
	id, err := d.s.Get(ctx, KeyDeviceID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return "", err
	}
	if id == "" {
		id = strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	if err := d.s.Set(ctx, KeyDeviceID, id); err != nil {
		return "", err
	}
	return id, nil
}

// LatestReadTs returns the last-read marker in epoch seconds, 0 when unset.
func (d *DeviceStore) LatestReadTs(ctx context.Context) (int64, error) {
	v, err := d.s.Get(ctx, KeyLatestReadTs)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	ts, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "storage: bad %s value %q", KeyLatestReadTs, v)
	}
	return ts, nil
}

func (d *DeviceStore) SetLatestReadTs(ctx context.Context, ts int64) error {
	return d.s.Set(ctx, KeyLatestReadTs, strconv.FormatInt(ts, 10))
}
