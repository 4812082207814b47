package handlers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veralens/veralensbackend/upstream"
)

func newUploadRouter(t *testing.T) (http.Handler, *upstream.Client) {
	t.Helper()
	client := newMockedUpstream(t)
	fetchClient := &http.Client{}
	httpmock.ActivateNonDefault(fetchClient)

	uh := &UploadHandler{Upstream: client, FetchClient: fetchClient}
	r := chi.NewRouter()
	r.Post("/upload", uh.Upload)
	r.Post("/upload-url", uh.UploadURL)
	return r, client
}

func multipartBody(t *testing.T, field, filename, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreatePart(map[string][]string{
		"Content-Disposition": {`form-data; name="` + field + `"; filename="` + filename + `"`},
		"Content-Type":        {contentType},
	})
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func postUploadURL(t *testing.T, router http.Handler, rawURL string) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(map[string]string{"url": rawURL})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/upload-url", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestUploadForwardsFile(t *testing.T) {
	router, _ := newUploadRouter(t)

	httpmock.RegisterResponder(http.MethodPost, testUpstreamURL+"/upload",
		httpmock.NewStringResponder(200, `{"uuid":"`+testSessionID+`"}`))

	body, contentType := multipartBody(t, "file", "selfie.jpg", "image/jpeg", []byte("jpegbytes"))
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, testSessionID, resp["uuid"])
}

func TestUploadMissingFileField(t *testing.T) {
	router, _ := newUploadRouter(t)

	body, contentType := multipartBody(t, "wrongfield", "selfie.jpg", "image/jpeg", []byte("jpegbytes"))
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, httpmock.GetTotalCallCount())
}

func TestUploadEmptyFile(t *testing.T) {
	router, _ := newUploadRouter(t)

	body, contentType := multipartBody(t, "file", "empty.jpg", "image/jpeg", nil)
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Uploaded file is empty", decodeErrorBody(t, rec)["error"])
	assert.Equal(t, 0, httpmock.GetTotalCallCount())
}

func TestUploadUpstreamFailure(t *testing.T) {
	router, _ := newUploadRouter(t)

	httpmock.RegisterResponder(http.MethodPost, testUpstreamURL+"/upload",
		httpmock.NewStringResponder(503, "detector down"))

	body, contentType := multipartBody(t, "file", "selfie.jpg", "image/jpeg", []byte("jpegbytes"))
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Upload failed", decodeErrorBody(t, rec)["error"])
}

func TestUploadURLFetchesAndForwards(t *testing.T) {
	router, _ := newUploadRouter(t)

	remote := httpmock.NewStringResponse(200, "remotejpegbytes")
	remote.Header.Set("Content-Type", "image/jpeg")
	httpmock.RegisterResponder(http.MethodGet, "http://8.8.8.8/photos/holiday.jpg",
		httpmock.ResponderFromResponse(remote))

	var uploadedFilename string
	httpmock.RegisterResponder(http.MethodPost, testUpstreamURL+"/upload",
		func(req *http.Request) (*http.Response, error) {
			require.NoError(t, req.ParseMultipartForm(1<<20))
			_, header, err := req.FormFile("file")
			require.NoError(t, err)
			uploadedFilename = header.Filename
			return httpmock.NewStringResponse(200, `{"uuid":"`+testSessionID+`"}`), nil
		})

	rec := postUploadURL(t, router, "http://8.8.8.8/photos/holiday.jpg")
	assert.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, testSessionID, resp["uuid"])
	assert.Equal(t, "holiday.jpg", uploadedFilename, "filename should come from the URL's last segment")
}

func TestUploadURLRejectsInternalTargets(t *testing.T) {
	router, _ := newUploadRouter(t)

	blocked := []string{
		"http://127.0.0.1/image.jpg",
		"http://127.0.0.1:6379/image.jpg",
		"http://[::1]/image.jpg",
		"http://10.0.0.5/image.jpg",
		"http://192.168.1.1/admin.jpg",
		"http://169.254.169.254/latest/meta-data",
		"ftp://example.com/image.jpg",
		"file:///etc/passwd",
	}
	for _, u := range blocked {
		rec := postUploadURL(t, router, u)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "url %q", u)
		assert.Equal(t, "invalid request", decodeErrorBody(t, rec)["error"], "url %q", u)
		assert.NotContains(t, rec.Body.String(), u, "the rejected URL must not be echoed back")
	}
	assert.Equal(t, 0, httpmock.GetTotalCallCount(),
		"blocked URLs must never be fetched")
}

func TestUploadURLRejectsOverlongURL(t *testing.T) {
	router, _ := newUploadRouter(t)

	long := "http://8.8.8.8/" + strings.Repeat("a", 520)
	rec := postUploadURL(t, router, long)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, httpmock.GetTotalCallCount())
}

func TestUploadURLRejectsNonImageContent(t *testing.T) {
	router, _ := newUploadRouter(t)

	remote := httpmock.NewStringResponse(200, "<html>not an image</html>")
	remote.Header.Set("Content-Type", "text/html")
	httpmock.RegisterResponder(http.MethodGet, "http://8.8.8.8/page.html",
		httpmock.ResponderFromResponse(remote))

	rec := postUploadURL(t, router, "http://8.8.8.8/page.html")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "URL does not point to an image", decodeErrorBody(t, rec)["error"])

	info := httpmock.GetCallCountInfo()
	assert.Zero(t, info["POST "+testUpstreamURL+"/upload"], "nothing may be forwarded upstream")
}

func TestUploadURLRemoteFetchFailure(t *testing.T) {
	router, _ := newUploadRouter(t)

	httpmock.RegisterResponder(http.MethodGet, "http://8.8.8.8/gone.jpg",
		httpmock.NewStringResponder(404, "not here"))

	rec := postUploadURL(t, router, "http://8.8.8.8/gone.jpg")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Failed to fetch image from URL", decodeErrorBody(t, rec)["error"])
}

func TestUploadURLMissingField(t *testing.T) {
	router, _ := newUploadRouter(t)

	rec := postUploadURL(t, router, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing required field: url", decodeErrorBody(t, rec)["error"])
}

func TestRemoteFilename(t *testing.T) {
	assert.Equal(t, "holiday.jpg", remoteFilename("http://example.com/photos/holiday.jpg"))
	assert.Equal(t, "image.jpg", remoteFilename("http://example.com/"))
	assert.Equal(t, "image.jpg", remoteFilename("http://example.com"))
	assert.Equal(t, "pic.png", remoteFilename("https://example.com/a/b/pic.png?size=large"))
}
