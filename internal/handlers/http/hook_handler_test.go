package http

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/blaketylerfullerton/aerialintelligence/internal/core/domain"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

// fakeSessionManager records start/stop calls.
type fakeSessionManager struct {
	mu      sync.Mutex
	started []domain.StreamKey
	stopped []domain.StreamKey
}

func (f *fakeSessionManager) OnStreamStart(key domain.StreamKey) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, key)
}

func (f *fakeSessionManager) OnStreamStop(key domain.StreamKey) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = append(f.stopped, key)
}

func (f *fakeSessionManager) ActiveSessions() []domain.StreamKey {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.StreamKey(nil), f.started...)
}

func (f *fakeSessionManager) StopAll() {}

func newHookRouter(sessions *fakeSessionManager) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewHookHandler(sessions, zap.NewNop().Sugar()).SetupRoutes(router)
	return router
}

func postForm(router *gin.Engine, path string, form url.Values) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	router.ServeHTTP(w, req)
	return w
}

func TestOnPublish_StartsSession(t *testing.T) {
	sessions := &fakeSessionManager{}
	router := newHookRouter(sessions)

	w := postForm(router, "/hooks/publish", url.Values{"name": {"cam1"}, "app": {"live"}})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []domain.StreamKey{"cam1"}, sessions.started)
}

func TestOnPublish_MissingNameRejected(t *testing.T) {
	sessions := &fakeSessionManager{}
	router := newHookRouter(sessions)

	w := postForm(router, "/hooks/publish", url.Values{"app": {"live"}})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, sessions.started)
}

func TestOnPublishDone_StopsSession(t *testing.T) {
	sessions := &fakeSessionManager{}
	router := newHookRouter(sessions)

	w := postForm(router, "/hooks/publish_done", url.Values{"name": {"cam1"}})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []domain.StreamKey{"cam1"}, sessions.stopped)
}
