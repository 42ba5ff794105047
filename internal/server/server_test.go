package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/cubelab/maple-proxy/internal/testutil"
	"github.com/cubelab/maple-proxy/pkg/pipeline"
	"github.com/cubelab/maple-proxy/pkg/ratelimit"
	"github.com/cubelab/maple-proxy/pkg/schema"
	"github.com/cubelab/maple-proxy/pkg/store"
	"github.com/cubelab/maple-proxy/pkg/timeutil"
	"github.com/cubelab/maple-proxy/pkg/upstream"
)

const basicBody = `{
	"date": "2024-05-01T00:00:00+09:00",
	"character_name": "Foo",
	"world_name": "스카니아",
	"character_gender": "남",
	"character_class": "히어로",
	"character_class_level": "6",
	"character_level": 275,
	"character_exp": 123456789,
	"character_exp_rate": "42.195",
	"character_guild_name": null,
	"character_image": "https://open.api.nexon.com/static/maplestory/character/look/abc",
	"character_date_create": "2015-03-14T00:00:00+09:00",
	"access_flag": "true",
	"liberation_quest_clear_flag": "false"
}`

type testEnv struct {
	server *Server
	store  *store.Store
	mock   *testutil.MockUpstream
}

func newTestEnv(t *testing.T, capacity int) *testEnv {
	t.Helper()

	mock := testutil.NewMockUpstream()
	t.Cleanup(mock.Close)

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	st, err := store.New(db)
	require.NoError(t, err)

	client, err := upstream.New(upstream.DefaultConfig(mock.URL(), "test-api-key"))
	require.NoError(t, err)

	norm, err := timeutil.New("Asia/Seoul", zerolog.Nop())
	require.NoError(t, err)

	pipe := pipeline.New(st, client, ratelimit.NewBucket(capacity, time.Minute), norm,
		pipeline.Config{DefaultWindow: time.Hour})

	return &testEnv{server: New(pipe), store: st, mock: mock}
}

func (e *testEnv) get(t *testing.T, path string) (*httptest.ResponseRecorder, map[string]json.RawMessage) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	e.server.Router().ServeHTTP(rec, req)

	body := make(map[string]json.RawMessage)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), "body: %s", rec.Body.String())
	return rec, body
}

func jsonString(t *testing.T, raw json.RawMessage) string {
	t.Helper()
	var s string
	require.NoError(t, json.Unmarshal(raw, &s))
	return s
}

func TestCacheHitServedWithoutUpstream(t *testing.T) {
	env := newTestEnv(t, 10)

	require.NoError(t, env.store.PutIdentity(context.Background(), &store.CharacterIdentity{
		OCID: "ABC", CharacterName: "Foo",
	}))
	_, err := env.store.Put(context.Background(), "ABC", schema.KindBasic, nil,
		json.RawMessage(basicBody), time.Now().Add(-10*time.Minute))
	require.NoError(t, err)

	rec, body := env.get(t, "/ABC/basic/")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "cached", jsonString(t, body["message"]))

	var data struct {
		CharacterName string `json:"character_name"`
	}
	require.NoError(t, json.Unmarshal(body["data"], &data))
	require.Equal(t, "Foo", data.CharacterName)
	require.Equal(t, 0, env.mock.GetRequestCount())
}

func TestCacheMissFetchesAndPersists(t *testing.T) {
	env := newTestEnv(t, 10)
	env.mock.SetResponse("/maplestory/v1/character/basic", testutil.NewJSONResponse(basicBody))

	rec, body := env.get(t, "/ABC/basic/")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "fetched basic", jsonString(t, body["message"]))

	var data struct {
		CharacterLevel int `json:"character_level"`
	}
	require.NoError(t, json.Unmarshal(body["data"], &data))
	require.Equal(t, 275, data.CharacterLevel)

	record, err := env.store.GetAny(context.Background(), "ABC", schema.KindBasic, nil)
	require.NoError(t, err)
	require.NotNil(t, record)
}

func TestResolveUnknownNameIsKoreanNotFound(t *testing.T) {
	env := newTestEnv(t, 10)
	env.mock.SetResponse("/maplestory/v1/id", testutil.NewNotFoundResponse())

	rec, body := env.get(t, "/id/?character_name=Ghost")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "'Ghost' 캐릭터를 찾을 수 없습니다.", jsonString(t, body["error"]))

	var status int
	require.NoError(t, json.Unmarshal(body["status_code"], &status))
	require.Equal(t, http.StatusNotFound, status)
}

func TestResolveSuccess(t *testing.T) {
	env := newTestEnv(t, 10)
	env.mock.SetResponse("/maplestory/v1/id", testutil.NewJSONResponse(`{"ocid": "ABC"}`))

	rec, body := env.get(t, "/id/?character_name=Foo")
	require.Equal(t, http.StatusOK, rec.Code)

	var data struct {
		OCID string `json:"ocid"`
	}
	require.NoError(t, json.Unmarshal(body["data"], &data))
	require.Equal(t, "ABC", data.OCID)
}

func TestRateLimitExhaustionOnSecondMiss(t *testing.T) {
	env := newTestEnv(t, 1)
	env.mock.SetResponse("/maplestory/v1/character/basic", testutil.NewJSONResponse(basicBody))

	rec, _ := env.get(t, "/ABC/basic/")
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body := env.get(t, "/DEF/basic/")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Contains(t, string(body["error"]), "too many requests")
	require.Equal(t, 1, env.mock.GetRequestCount())
}

func TestShortNameRejected(t *testing.T) {
	env := newTestEnv(t, 10)

	rec, body := env.get(t, "/id/?character_name=A")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, jsonString(t, body["detail"]), "2-12")
	require.Equal(t, 0, env.mock.GetRequestCount())
}

func TestSchemaDriftIs422WithFieldDetail(t *testing.T) {
	env := newTestEnv(t, 10)
	env.mock.SetResponse("/maplestory/v1/character/basic", testutil.NewJSONResponse(`{
		"date": null, "character_name": "Foo", "world_name": "스카니아", "character_level": 275
	}`))

	rec, body := env.get(t, "/ABC/basic/")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Contains(t, jsonString(t, body["detail"]), "character_class")
}

func TestForceRefreshBypassesCache(t *testing.T) {
	env := newTestEnv(t, 10)
	env.mock.SetResponse("/maplestory/v1/character/basic", testutil.NewJSONResponse(basicBody))

	rec, _ := env.get(t, "/ABC/basic/")
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = env.get(t, "/ABC/basic/?force_refresh=true")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 2, env.mock.GetPathCount("/maplestory/v1/character/basic"))

	rec, _ = env.get(t, "/ABC/basic/?force_refresh=banana")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	// Only the literals true and false are accepted.
	rec, _ = env.get(t, "/ABC/basic/?force_refresh=1")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = env.get(t, "/ABC/basic/?force_refresh=0")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBadDateRejected(t *testing.T) {
	env := newTestEnv(t, 10)

	rec, body := env.get(t, "/ABC/basic/?date=yesterday")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, jsonString(t, body["detail"]), "YYYY-MM-DD")
}

func TestUnknownKindIs404(t *testing.T) {
	env := newTestEnv(t, 10)

	rec, _ := env.get(t, "/ABC/pets/")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUnknownSingleSegmentIs404(t *testing.T) {
	env := newTestEnv(t, 10)

	rec, _ := env.get(t, "/whatever/")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEnvelopeExclusivity(t *testing.T) {
	env := newTestEnv(t, 10)
	env.mock.SetResponse("/maplestory/v1/character/basic", testutil.NewJSONResponse(basicBody))

	_, success := env.get(t, "/ABC/basic/")
	require.Contains(t, success, "data")
	require.NotContains(t, success, "error")

	env.mock.SetResponse("/maplestory/v1/character/stat", testutil.NewServerErrorResponse())
	rec, failure := env.get(t, "/ABC/stat/")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Contains(t, failure, "error")
	require.Contains(t, failure, "status_code")
	require.NotContains(t, failure, "data")
}

func TestRequestIDHeader(t *testing.T) {
	env := newTestEnv(t, 10)

	rec, _ := env.get(t, "/health")
	require.NotEmpty(t, rec.Header().Get(HeaderRequestID))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(HeaderRequestID, "fixed-id")
	rec = httptest.NewRecorder()
	env.server.Router().ServeHTTP(rec, req)
	require.Equal(t, "fixed-id", rec.Header().Get(HeaderRequestID))
}

func TestHealthAndMetricsRoutes(t *testing.T) {
	env := newTestEnv(t, 10)

	rec, body := env.get(t, "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", jsonString(t, body["status"]))

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	raw := httptest.NewRecorder()
	env.server.Router().ServeHTTP(raw, req)
	require.Equal(t, http.StatusOK, raw.Code)
	require.Contains(t, raw.Body.String(), "maple_")
}
