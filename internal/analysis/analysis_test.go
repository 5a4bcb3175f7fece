package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/fallwatch/internal/batch"
	"github.com/tphakala/fallwatch/internal/conf"
	"github.com/tphakala/fallwatch/internal/errors"
	"github.com/tphakala/fallwatch/internal/settings"
)

func testSettings(t *testing.T) *conf.Settings {
	t.Helper()
	dir := t.TempDir()
	s := &conf.Settings{}
	s.Main.Name = "test-node"
	s.Database.Type = conf.DatabaseSQLite
	s.Database.SQLite.Path = filepath.Join(dir, "fallwatch.db")
	s.Storage.UploadDir = filepath.Join(dir, "uploads")
	s.Storage.OutputDir = filepath.Join(dir, "outputs")
	s.Security.AdminUsername = "admin"
	s.Security.AdminPassword = "admin123"
	return s
}

func TestOpenServicesSeeds(t *testing.T) {
	s := testSettings(t)
	ctx := context.Background()

	svc, err := OpenServices(ctx, s)
	require.NoError(t, err)
	defer func() { _ = svc.Close() }()

	cfg := svc.Settings.Snapshot(ctx)
	assert.Equal(t, settings.DefaultCooldown, cfg.Cooldown)

	user, err := svc.Auth.Login(ctx, "admin", "admin123")
	require.NoError(t, err)
	assert.Equal(t, "admin", user.Role)

	assert.DirExists(t, s.Storage.UploadDir)
	assert.DirExists(t, s.Storage.OutputDir)
}

func TestNewAlertDispatcherSinks(t *testing.T) {
	s := testSettings(t)

	d, client := NewAlertDispatcher(s, nil)
	assert.Zero(t, d.Sinks())
	assert.Nil(t, client)

	s.Alerts.MQTT.Enabled = true
	s.Alerts.MQTT.Broker = "tcp://127.0.0.1:1883"
	s.Alerts.MQTT.Topic = "fallwatch/events"
	s.Alerts.Shoutrrr.Enabled = true // no URLs, skipped with an error log

	d, client = NewAlertDispatcher(s, nil)
	assert.Equal(t, 1, d.Sinks())
	require.NotNil(t, client)
	assert.False(t, client.IsConnected())
}

type fakeProcessor struct {
	name string
	body string
	err  error
}

func (f *fakeProcessor) Process(_ context.Context, req batch.Request) (*batch.Result, error) {
	f.name = req.Filename
	data, _ := io.ReadAll(req.Reader)
	f.body = string(data)
	if f.err != nil {
		return nil, f.err
	}
	return &batch.Result{Success: true, FileID: "abcd1234", FallEvents: 3}, nil
}

func TestProcessFile(t *testing.T) {
	input := filepath.Join(t.TempDir(), "hall.mp4")
	require.NoError(t, os.WriteFile(input, []byte("video"), 0o600))

	proc := &fakeProcessor{}
	var out bytes.Buffer
	require.NoError(t, ProcessFile(context.Background(), proc, input, &out))

	assert.Equal(t, "hall.mp4", proc.name)
	assert.Equal(t, "video", proc.body)

	var result map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &result))
	assert.Equal(t, "abcd1234", result["file_id"])
	assert.InDelta(t, 3, result["fall_events"], 0)
}

func TestProcessFileErrors(t *testing.T) {
	err := ProcessFile(context.Background(), &fakeProcessor{}, filepath.Join(t.TempDir(), "missing.mp4"), io.Discard)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryFileIO))

	input := filepath.Join(t.TempDir(), "hall.mp4")
	require.NoError(t, os.WriteFile(input, []byte("video"), 0o600))
	err = ProcessFile(context.Background(), &fakeProcessor{err: errors.NewStd("decode failed")}, input, io.Discard)
	assert.EqualError(t, err, "decode failed")
}
