// SPDX-FileCopyrightText: 2025 The weighbridge authors
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/sapcc/go-bits/assert"
	"github.com/sapcc/go-bits/easypg"
	"github.com/xuri/excelize/v2"

	"github.com/weighops/weighbridge/internal/test"
	"github.com/weighops/weighbridge/internal/weightclient"
)

func TestMain(m *testing.M) {
	easypg.WithTestDB(m, func() int { return m.Run() })
}

// weightServiceStub fakes the Weigh engine for bill and truck tests.
func weightServiceStub(t *testing.T, handlers map[string]string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, exists := handlers[r.URL.Path]
		switch {
		case !exists:
			w.WriteHeader(http.StatusNotFound)
		case body == "FAIL":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.Write([]byte(body)) //nolint:errcheck
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func setupTest(t *testing.T, stub *httptest.Server) test.Setup {
	t.Helper()
	opts := []test.SetupOption{
		test.WithDBFixtureFile("fixtures/start-data.sql"),
		test.WithBillingAPIHandler(NewV1API),
	}
	if stub != nil {
		opts = append(opts, test.WithWeightClient(weightclient.NewClient(stub.URL, nil)))
	}
	return test.NewBillingSetup(t, opts...)
}

func TestProviders(t *testing.T) {
	s := setupTest(t, nil)

	assert.HTTPRequest{
		Method:       http.MethodPost,
		Path:         "/provider",
		Body:         assert.JSONObject{"name": "Valley Produce"},
		ExpectStatus: http.StatusCreated,
		ExpectBody:   assert.JSONObject{"id": 3, "name": "Valley Produce"},
	}.Check(t, s.Handler)

	assert.HTTPRequest{
		Method:       http.MethodPost,
		Path:         "/provider",
		Body:         assert.JSONObject{"name": "Valley Produce"},
		ExpectStatus: http.StatusConflict,
		ExpectBody:   assert.JSONObject{"error": `provider "Valley Produce" already exists`},
	}.Check(t, s.Handler)

	assert.HTTPRequest{
		Method:       http.MethodPost,
		Path:         "/provider",
		Body:         assert.JSONObject{"name": "  "},
		ExpectStatus: http.StatusBadRequest,
		ExpectBody:   assert.JSONObject{"error": "provider name is required"},
	}.Check(t, s.Handler)

	assert.HTTPRequest{
		Method:       http.MethodPut,
		Path:         "/provider/3",
		Body:         assert.JSONObject{"name": "Valley Produce Ltd"},
		ExpectStatus: http.StatusOK,
		ExpectBody:   assert.JSONObject{"id": 3, "name": "Valley Produce Ltd"},
	}.Check(t, s.Handler)

	// renaming onto an existing name is refused
	assert.HTTPRequest{
		Method:       http.MethodPut,
		Path:         "/provider/3",
		Body:         assert.JSONObject{"name": "Orchard Co"},
		ExpectStatus: http.StatusBadRequest,
		ExpectBody:   assert.JSONObject{"error": `provider "Orchard Co" already exists`},
	}.Check(t, s.Handler)

	assert.HTTPRequest{
		Method:       http.MethodPut,
		Path:         "/provider/42",
		Body:         assert.JSONObject{"name": "Ghost Farms"},
		ExpectStatus: http.StatusNotFound,
		ExpectBody:   assert.JSONObject{"error": "no such provider"},
	}.Check(t, s.Handler)
}

func TestTrucks(t *testing.T) {
	stub := weightServiceStub(t, map[string]string{
		"/item/T-5": `{"id": "T-5", "tara": 4500, "sessions": [7]}`,
	})
	s := setupTest(t, stub)

	assert.HTTPRequest{
		Method:       http.MethodPost,
		Path:         "/truck",
		Body:         assert.JSONObject{"id": "T-5", "provider_id": 1},
		ExpectStatus: http.StatusCreated,
		ExpectBody:   assert.JSONObject{"id": "T-5", "provider_id": 1},
	}.Check(t, s.Handler)

	assert.HTTPRequest{
		Method:       http.MethodPost,
		Path:         "/truck",
		Body:         assert.JSONObject{"id": "T-5", "provider_id": 2},
		ExpectStatus: http.StatusBadRequest,
		ExpectBody:   assert.JSONObject{"error": `truck "T-5" is already registered`},
	}.Check(t, s.Handler)

	assert.HTTPRequest{
		Method:       http.MethodPost,
		Path:         "/truck",
		Body:         assert.JSONObject{"id": "T-6", "provider_id": 42},
		ExpectStatus: http.StatusNotFound,
		ExpectBody:   assert.JSONObject{"error": "no such provider"},
	}.Check(t, s.Handler)

	assert.HTTPRequest{
		Method:       http.MethodPut,
		Path:         "/truck/T-5",
		Body:         assert.JSONObject{"provider_id": 2},
		ExpectStatus: http.StatusOK,
		ExpectBody:   assert.JSONObject{"id": "T-5", "provider_id": 2},
	}.Check(t, s.Handler)

	// tara and sessions are proxied from the Weigh engine
	assert.HTTPRequest{
		Method:       http.MethodGet,
		Path:         "/truck/T-5",
		ExpectStatus: http.StatusOK,
		ExpectBody:   assert.JSONObject{"id": "T-5", "provider_id": 2, "tara": 4500, "sessions": []int{7}},
	}.Check(t, s.Handler)

	// registered here, but unknown to the Weigh engine
	assert.HTTPRequest{
		Method:       http.MethodGet,
		Path:         "/truck/T-9",
		ExpectStatus: http.StatusOK,
		ExpectBody:   assert.JSONObject{"id": "T-9", "provider_id": 2, "tara": "na", "sessions": []int{}},
	}.Check(t, s.Handler)

	assert.HTTPRequest{
		Method:       http.MethodGet,
		Path:         "/truck/T-404",
		ExpectStatus: http.StatusNotFound,
		ExpectBody:   assert.JSONObject{"error": "no such truck"},
	}.Check(t, s.Handler)
}

func TestTruckUpstreamFailure(t *testing.T) {
	stub := weightServiceStub(t, map[string]string{
		"/item/T-1": "FAIL",
	})
	s := setupTest(t, stub)

	assert.HTTPRequest{
		Method:       http.MethodGet,
		Path:         "/truck/T-1",
		ExpectStatus: http.StatusBadGateway,
	}.Check(t, s.Handler)
}

func buildRatesWorkbook(t *testing.T, rows [][]string) []byte {
	t.Helper()
	file := excelize.NewFile()
	sheetName := file.GetSheetName(0)
	for idx, cells := range rows {
		cellName, err := excelize.CoordinatesToCellName(1, idx+1)
		if err != nil {
			t.Fatal(err)
		}
		err = file.SetSheetRow(sheetName, cellName, &cells)
		if err != nil {
			t.Fatal(err)
		}
	}
	var buf bytes.Buffer
	err := file.Write(&buf)
	if err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func uploadRates(t *testing.T, handler http.Handler, workbook []byte) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "rates.xlsx")
	if err != nil {
		t.Fatal(err)
	}
	_, err = part.Write(workbook)
	if err != nil {
		t.Fatal(err)
	}
	err = writer.Close()
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, "/rates", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestRatesUploadAndDownload(t *testing.T) {
	s := setupTest(t, nil)
	t.Setenv("BILLING_RATES_PATH", t.TempDir()+"/rates.xlsx")

	// nothing uploaded yet
	assert.HTTPRequest{
		Method:       http.MethodGet,
		Path:         "/rates",
		ExpectStatus: http.StatusNotFound,
		ExpectBody:   assert.JSONObject{"error": "no rates have been uploaded yet"},
	}.Check(t, s.Handler)

	workbook := buildRatesWorkbook(t, [][]string{
		{"Product", "Rate", "Scope"},
		{"tomato", "6", "ALL"},
		{"apple", "4", "1"},
	})
	rec := uploadRates(t, s.Handler, workbook)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d (body %q)", rec.Code, rec.Body.String())
	}

	// the upload replaced the fixture rates wholesale
	var count int
	err := s.DB.SelectOne(&count, `SELECT COUNT(*) FROM rates`)
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("expected 2 rates after upload, got %d", count)
	}

	// the download returns the workbook byte-for-byte
	req := httptest.NewRequest(http.MethodGet, "/rates", nil)
	downloadRec := httptest.NewRecorder()
	s.Handler.ServeHTTP(downloadRec, req)
	if downloadRec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", downloadRec.Code)
	}
	if !bytes.Equal(downloadRec.Body.Bytes(), workbook) {
		t.Error("downloaded workbook differs from the uploaded one")
	}
}

func TestRatesUploadKeepsArtifactOnFailure(t *testing.T) {
	s := setupTest(t, nil)
	artifactPath := t.TempDir() + "/rates.xlsx"
	t.Setenv("BILLING_RATES_PATH", artifactPath)

	first := buildRatesWorkbook(t, [][]string{
		{"Product", "Rate", "Scope"},
		{"tomato", "6", "ALL"},
	})
	rec := uploadRates(t, s.Handler, first)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d (body %q)", rec.Code, rec.Body.String())
	}

	// a directory squatting on the staging path makes the artifact write fail
	err := os.Mkdir(artifactPath+".tmp", 0o777)
	if err != nil {
		t.Fatal(err)
	}
	second := buildRatesWorkbook(t, [][]string{
		{"Product", "Rate", "Scope"},
		{"orange", "9", "ALL"},
	})
	rec = uploadRates(t, s.Handler, second)
	if rec.Code == http.StatusCreated {
		t.Fatal("expected the upload to fail, but it succeeded")
	}

	// neither the rate table nor the download may reflect the failed upload
	var count int
	err = s.DB.SelectOne(&count, `SELECT COUNT(*) FROM rates WHERE product_id = 'tomato' AND rate = 6`)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("expected the rates from the first upload to survive, got %d matching rows", count)
	}
	req := httptest.NewRequest(http.MethodGet, "/rates", nil)
	downloadRec := httptest.NewRecorder()
	s.Handler.ServeHTTP(downloadRec, req)
	if downloadRec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", downloadRec.Code)
	}
	if !bytes.Equal(downloadRec.Body.Bytes(), first) {
		t.Error("download does not match the last successful upload")
	}
}

func TestRatesUploadErrors(t *testing.T) {
	s := setupTest(t, nil)
	t.Setenv("BILLING_RATES_PATH", t.TempDir()+"/rates.xlsx")

	// no multipart body at all
	assert.HTTPRequest{
		Method:       http.MethodPost,
		Path:         "/rates",
		ExpectStatus: http.StatusBadRequest,
		ExpectBody:   assert.JSONObject{"error": `multipart field "file" is required`},
	}.Check(t, s.Handler)

	// scope referencing a provider that does not exist
	rec := uploadRates(t, s.Handler, buildRatesWorkbook(t, [][]string{
		{"Product", "Rate", "Scope"},
		{"tomato", "6", "42"},
	}))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d (body %q)", rec.Code, rec.Body.String())
	}

	// a broken sheet leaves the existing rates untouched
	rec = uploadRates(t, s.Handler, []byte("not an xlsx file"))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d (body %q)", rec.Code, rec.Body.String())
	}
	var count int
	err := s.DB.SelectOne(&count, `SELECT COUNT(*) FROM rates`)
	if err != nil {
		t.Fatal(err)
	}
	if count != 3 {
		t.Errorf("expected the 3 fixture rates to survive, got %d", count)
	}
}
