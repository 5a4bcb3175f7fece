package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/tphakala/fallwatch/internal/auth"
	"github.com/tphakala/fallwatch/internal/batch"
	"github.com/tphakala/fallwatch/internal/capture"
	"github.com/tphakala/fallwatch/internal/datastore"
	"github.com/tphakala/fallwatch/internal/datastore/repository"
	"github.com/tphakala/fallwatch/internal/errors"
	"github.com/tphakala/fallwatch/internal/eventlog"
	"github.com/tphakala/fallwatch/internal/inference"
	"github.com/tphakala/fallwatch/internal/securefs"
	"github.com/tphakala/fallwatch/internal/settings"
)

const (
	adminUser = "admin"
	adminPass = "admin-secret"
)

type detectorForTest struct{}

func (detectorForTest) Detect(image.Image, float64) []inference.Detection { return nil }
func (detectorForTest) Classes() map[int]string                         { return map[int]string{0: "fall", 1: "person"} }
func (detectorForTest) Backend() string                                 { return inference.BackendONNX }
func (detectorForTest) Close() error                                    { return nil }

type fakeLive struct {
	mu       sync.Mutex
	running  bool
	cooldown bool
	frame    *capture.Frame
	pollErr  error
	startRes capture.StartResult
}

func (f *fakeLive) Start(context.Context) capture.StartResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.running {
		return capture.StartResult{Status: capture.StatusAlreadyRunning}
	}
	if f.startRes.Status == capture.StatusSuccess {
		f.running = true
	}
	return f.startRes
}

func (f *fakeLive) Stop() capture.StopResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.running {
		return capture.StopResult{Status: capture.StatusNotRunning}
	}
	f.running = false
	return capture.StopResult{Status: capture.StatusStopped}
}

func (f *fakeLive) Running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

func (f *fakeLive) CooldownActive() bool { return f.cooldown }

func (f *fakeLive) Poll(ctx context.Context) (*capture.Frame, error) {
	if f.pollErr != nil {
		return nil, f.pollErr
	}
	return f.frame, ctx.Err()
}

type fakeVideos struct {
	outputs *securefs.SecureFS
	result  *batch.Result
	err     error
	gotName string
	gotBody string
}

func (f *fakeVideos) Process(_ context.Context, req batch.Request) (*batch.Result, error) {
	if _, err := batch.ValidateFilename(req.Filename); err != nil {
		return nil, err
	}
	f.gotName = req.Filename
	data, _ := io.ReadAll(req.Reader)
	f.gotBody = string(data)
	return f.result, f.err
}

func (f *fakeVideos) OutputPath(fileID, filename string) (string, error) {
	exists, err := f.outputs.Exists(filepath.Join(fileID, filename))
	if err != nil {
		return "", err
	}
	if !exists {
		return "", errors.New(batch.ErrOutputNotFound).Category(errors.CategoryNotFound).Build()
	}
	return f.outputs.AbsPath(filepath.Join(fileID, filename))
}

func (f *fakeVideos) Outputs() *securefs.SecureFS { return f.outputs }

type testEnv struct {
	e        *echo.Echo
	ctrl     *Controller
	live     *fakeLive
	videos   *fakeVideos
	events   *eventlog.Log
	auth     *auth.Service
	settings *settings.Store
}

func newTestEnv(t *testing.T, requireAuth bool) *testEnv {
	t.Helper()

	mgr, err := datastore.NewInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mgr.Close() })

	ctx := context.Background()
	store := settings.NewStore(repository.NewSettingRepository(mgr.DB()))
	require.NoError(t, store.Seed(ctx))

	authSvc := auth.NewService(repository.NewUserRepository(mgr.DB()), auth.WithCost(bcrypt.MinCost))
	require.NoError(t, authSvc.SeedAdmin(ctx, adminUser, adminPass))

	events := eventlog.New(repository.NewEventRepository(mgr.DB()))

	outputs, err := securefs.New(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = outputs.Close() })

	env := &testEnv{
		e:        echo.New(),
		live:     &fakeLive{startRes: capture.StartResult{Status: capture.StatusSuccess, Message: "Live detection started"}},
		videos:   &fakeVideos{outputs: outputs},
		events:   events,
		auth:     authSvc,
		settings: store,
	}
	env.ctrl = New(env.e, detectorForTest{}, env.live, env.videos, events, authSvc, store, Options{
		ModelPath:    "models/fall.onnx",
		InputSize:    640,
		RequireAuth:  requireAuth,
		FrameTimeout: time.Second,
	})
	return env
}

func (env *testEnv) do(t *testing.T, method, target string, body io.Reader, setup ...func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if body != nil && body != http.NoBody {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for _, fn := range setup {
		fn(req)
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func jsonBody(t *testing.T, v any) io.Reader {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(data)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func asAdmin(req *http.Request) { req.SetBasicAuth(adminUser, adminPass) }

func writeOutput(t *testing.T, outputs *securefs.SecureFS, fileID, name, content string) {
	t.Helper()
	require.NoError(t, outputs.MkdirAll(fileID, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(outputs.BaseDir(), fileID, name), []byte(content), 0o600))
}

func eventFixture() eventlog.Event {
	return eventlog.Event{DetectionType: "fall", Confidence: 0.9, CameraSource: eventlog.SourceManual}
}
