package prescriptions

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"treatment-plans/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(svc *Service) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.AuthContext(nil))
	RegisterRoutes(r, svc)
	return r
}

func do(t *testing.T, h http.Handler, req *http.Request, user string) *httptest.ResponseRecorder {
	t.Helper()
	if user != "" {
		req.Header.Set(middleware.DebugUserHeader, user)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHandlers_MultipartUpload(t *testing.T) {
	f := newFixture(t)
	h := newTestRouter(f.svc)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "receta.png")
	require.NoError(t, err)
	_, err = fw.Write(pngHeader)
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("notes", "después de comer"))
	require.NoError(t, mw.Close())
	data := body.Bytes()

	req := httptest.NewRequest(http.MethodPost, "/prescriptions/uploads", bytes.NewReader(data))
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rr := do(t, h, req, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	req = httptest.NewRequest(http.MethodPost, "/prescriptions/uploads", bytes.NewReader(data))
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr = do(t, h, req, "u1")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var got uploadResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, "pending", got.Status)
	assert.Equal(t, "receta.png", got.OriginalName)
	assert.Equal(t, "después de comer", got.Notes)
	assert.Len(t, f.queue.jobs, 1)
}

func TestHandlers_Base64UploadValidation(t *testing.T) {
	f := newFixture(t)
	h := newTestRouter(f.svc)

	payload, _ := json.Marshal(map[string]string{"image_base64": base64.StdEncoding.EncodeToString([]byte("texto"))})
	req := httptest.NewRequest(http.MethodPost, "/prescriptions/uploads", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	rr := do(t, h, req, "u1")
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	req = httptest.NewRequest(http.MethodPost, "/prescriptions/uploads", bytes.NewReader([]byte("{")))
	rr = do(t, h, req, "u1")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandlers_QueueUnavailable(t *testing.T) {
	f := newFixture(t)
	f.queue.err = assert.AnError
	h := newTestRouter(f.svc)

	payload, _ := json.Marshal(map[string]string{"image_base64": base64.StdEncoding.EncodeToString(pngHeader)})
	req := httptest.NewRequest(http.MethodPost, "/prescriptions/uploads", bytes.NewReader(payload))
	rr := do(t, h, req, "u1")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestHandlers_GetListDelete(t *testing.T) {
	f := newFixture(t)
	h := newTestRouter(f.svc)
	u := f.upload(t)

	rr := do(t, h, httptest.NewRequest(http.MethodGet, "/prescriptions/uploads", nil), "u1")
	require.Equal(t, http.StatusOK, rr.Code)
	var list []uploadResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	rr = do(t, h, httptest.NewRequest(http.MethodGet, "/prescriptions/uploads/"+u.ID, nil), "u2")
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = do(t, h, httptest.NewRequest(http.MethodGet, "/prescriptions/uploads/nope", nil), "u1")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, h, httptest.NewRequest(http.MethodDelete, "/prescriptions/uploads/"+u.ID, nil), "u1")
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestHandlers_CreatePlan(t *testing.T) {
	f := newFixture(t)
	h := newTestRouter(f.svc)
	u := f.upload(t)
	path := "/prescriptions/uploads/" + u.ID + "/plan"
	body := []byte(`{"start_at":"2025-03-08T08:00:00Z"}`)

	rr := do(t, h, httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body)), "u1")
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code, "pending upload")

	f.ext.text = "Amoxicilina 500mg"
	require.NoError(t, f.svc.Process(context.Background(), u.ID, 1))

	rr = do(t, h, httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body)), "u1")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var out map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	assert.Equal(t, "plan-1", out["id"])
	assert.Equal(t, "ocr", out["source"])
}
