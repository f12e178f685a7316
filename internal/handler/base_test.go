package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinovia/clinic-api/internal/model"
	apperrors "github.com/clinovia/clinic-api/pkg/errors"
)

// bindProbe sends one request through a throwaway route and returns whatever
// the bind helper pushed onto the context.
func bindProbe(t *testing.T, handle gin.HandlerFunc, req *http.Request) error {
	t.Helper()
	gin.SetMode(gin.TestMode)

	var pushed error
	engine := gin.New()
	engine.Handle(req.Method, "/probe", handle, func(c *gin.Context) {
		if len(c.Errors) > 0 {
			pushed = c.Errors.Last().Err
		}
	})

	engine.ServeHTTP(httptest.NewRecorder(), req)
	return pushed
}

func postJSON(t *testing.T, body string, out interface{}) error {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/probe", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return bindProbe(t, func(c *gin.Context) {
		BindJSON(c, out)
	}, req)
}

func TestBindJSONReportsMissingFieldsByWireName(t *testing.T) {
	var form model.CreateAppointmentRequest
	err := postJSON(t, `{}`, &form)
	require.Error(t, err)

	var verrs *apperrors.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	for _, field := range []string{"doctor_id", "patient_id", "date", "time"} {
		assert.Equal(t, []string{"This field is required."}, verrs.Fields[field], field)
	}
}

func TestBindJSONTranslatesTagFailures(t *testing.T) {
	var form model.LoginRequest
	err := postJSON(t, `{"email":"not-an-address","password":"short"}`, &form)
	require.Error(t, err)

	var verrs *apperrors.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, []string{"Enter a valid email address."}, verrs.Fields["email"])
	assert.Equal(t, []string{"Must be at least 8 characters long."}, verrs.Fields["password"])
}

func TestBindJSONRejectsMalformedBody(t *testing.T) {
	var form model.LoginRequest
	err := postJSON(t, `{"email":`, &form)
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrBadRequest, appErr.Code)
	assert.Equal(t, "Invalid request body.", appErr.Message)
}

func TestBindQueryBindsFormNames(t *testing.T) {
	var filters model.AppointmentFilters
	req := httptest.NewRequest(http.MethodGet, "/probe?q=smith&year=2026&month=3&page=2&page_size=10", nil)
	err := bindProbe(t, func(c *gin.Context) {
		BindQuery(c, &filters)
	}, req)

	require.NoError(t, err)
	assert.Equal(t, "smith", filters.SearchTerm)
	assert.Equal(t, 2026, filters.Year)
	assert.Equal(t, 3, filters.Month)
	assert.Equal(t, 2, filters.Page)
	assert.Equal(t, 10, filters.PageSize)
}

func TestBindQueryRejectsTypeMismatch(t *testing.T) {
	var filters model.AppointmentFilters
	req := httptest.NewRequest(http.MethodGet, "/probe?year=next", nil)
	err := bindProbe(t, func(c *gin.Context) {
		BindQuery(c, &filters)
	}, req)
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrBadRequest, appErr.Code)
	assert.Equal(t, "Invalid query parameters.", appErr.Message)
}

func TestIDParam(t *testing.T) {
	id := uuid.New()

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Params = gin.Params{{Key: "id", Value: id.String()}}
	got, ok := IDParam(c, "id")
	require.True(t, ok)
	assert.Equal(t, id, got)

	c, _ = gin.CreateTestContext(httptest.NewRecorder())
	c.Params = gin.Params{{Key: "id", Value: "forty-two"}}
	_, ok = IDParam(c, "id")
	require.False(t, ok)

	var appErr *apperrors.AppError
	require.ErrorAs(t, c.Errors.Last().Err, &appErr)
	assert.Equal(t, "Invalid identifier.", appErr.Message)
}

func TestActorRoundTrip(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Nil(t, Actor(c))

	actor := &model.Actor{ID: uuid.New(), Role: model.RoleDoctor}
	c.Set(ActorKey, actor)
	assert.Same(t, actor, Actor(c))
}

func TestResponseEnvelopeOmitsEmptySections(t *testing.T) {
	raw, err := json.Marshal(NewSuccessResponse(map[string]string{"id": "1"}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"success","data":{"id":"1"}}`, string(raw))

	raw, err = json.Marshal(NewErrorResponse("Resource not found."))
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"error","message":"Resource not found."}`, string(raw))

	raw, err = json.Marshal(NewListResponse([]string{}, model.Pagination{Page: 2, PageSize: 25}, 51))
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"success","data":[],"meta":{"page":2,"page_size":25,"total":51}}`, string(raw))
}
