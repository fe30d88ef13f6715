package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/aidjobs/harvester/internal/common"
	"github.com/aidjobs/harvester/internal/models"
)

type secretStore map[string]string

func (s secretStore) Get(ctx context.Context, key string) (string, error) {
	if v, ok := s[key]; ok {
		return v, nil
	}
	return "", fmt.Errorf("key not found: %s", key)
}

func (s secretStore) Set(ctx context.Context, key, value string) error {
	s[key] = value
	return nil
}

func (s secretStore) Delete(ctx context.Context, key string) error {
	delete(s, key)
	return nil
}

func newTestAPIFetcher(t *testing.T, secrets secretStore) *APIFetcher {
	t.Helper()
	logger := arbor.NewLogger()
	client := NewClient(common.FetchConfig{
		UserAgent:         "harvester-test",
		RequestTimeout:    5 * time.Second,
		MaxBodyKB:         1024,
		MaxRedirects:      3,
		RequestsPerMinute: 6000,
		Burst:             100,
	}, logger)
	return NewAPIFetcher(client, secrets, logger)
}

func TestAPIFetchOffsetPagination(t *testing.T) {
	var requests []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r.URL.String())
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("offset") {
		case "0":
			fmt.Fprint(w, `{"data":{"items":[
				{"title":"  WASH Officer ","org":{"name":"Example Relief"},"published":1767225600},
				{"title":"Logistics Assistant","org":{"name":"Example Relief"},"published":1767312000}]}}`)
		case "2":
			fmt.Fprint(w, `{"data":{"items":[
				{"title":"Nutrition Specialist","org":{"name":"Example Relief"},"published":1767398400}]}}`)
		default:
			fmt.Fprint(w, `{"data":{"items":[]}}`)
		}
	}))
	defer srv.Close()

	cfg := &models.APIConfig{
		V:        1,
		BaseURL:  srv.URL,
		Path:     "/v1/jobs",
		Method:   "GET",
		DataPath: "data.items",
		Map: map[string]string{
			"title":     "title",
			"employer":  "org.name",
			"posted_on": "published",
		},
		Transforms: map[string][]models.TransformSpec{
			"title":     {{Op: "strip"}},
			"posted_on": {{Op: "date_parse", Format: models.SinceUnix}},
		},
		Pagination: models.PaginationConfig{
			Mode:       models.PaginationOffset,
			Param:      "offset",
			SizeParam:  "limit",
			PageSize:   2,
			MaxPages:   5,
			UntilEmpty: true,
		},
	}

	f := newTestAPIFetcher(t, secretStore{})
	result, records, err := f.Fetch(context.Background(), cfg, time.Time{})
	require.NoError(t, err)
	require.Equal(t, ErrorKindNone, result.Kind, result.Message)

	require.Len(t, records, 3)
	assert.Equal(t, "WASH Officer", records[0]["title"], "strip transform applied")
	assert.Equal(t, "Example Relief", records[0]["employer"], "nested path mapped")
	assert.Equal(t, "2026-01-01", records[0]["posted_on"], "unix timestamp normalized")
	assert.Equal(t, "Nutrition Specialist", records[2]["title"])

	// A short page ends pagination, so the empty third page is never asked for.
	require.Len(t, requests, 2)
	assert.Contains(t, requests[0], "offset=0")
	assert.Contains(t, requests[0], "limit=2")
	assert.Contains(t, requests[1], "offset=2")
}

func TestAPIFetchCursorPagination(t *testing.T) {
	var requests []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r.URL.String())
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("cursor") == "abc" {
			fmt.Fprint(w, `{"items":[{"title":"Field Coordinator"}],"meta":{"next":""}}`)
			return
		}
		fmt.Fprint(w, `{"items":[{"title":"Programme Officer"},{"title":"Driver CDE"}],"meta":{"next":"abc"}}`)
	}))
	defer srv.Close()

	cfg := &models.APIConfig{
		V:        1,
		BaseURL:  srv.URL,
		Method:   "GET",
		DataPath: "items",
		Map:      map[string]string{"title": "title"},
		Pagination: models.PaginationConfig{
			Mode:       models.PaginationCursor,
			Param:      "cursor",
			CursorPath: "meta.next",
			MaxPages:   5,
		},
	}

	f := newTestAPIFetcher(t, secretStore{})
	result, records, err := f.Fetch(context.Background(), cfg, time.Time{})
	require.NoError(t, err)
	require.Equal(t, ErrorKindNone, result.Kind, result.Message)

	require.Len(t, records, 3)
	require.Len(t, requests, 2)
	assert.Contains(t, requests[1], "cursor=abc")
}

func TestAPIFetchBearerSecret(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `{"items":[{"title":"Protection Officer"}]}`)
	}))
	defer srv.Close()

	cfg := &models.APIConfig{
		V:        1,
		BaseURL:  srv.URL,
		Method:   "GET",
		DataPath: "items",
		Map:      map[string]string{"title": "title"},
		Auth: models.AuthConfig{
			Type:  models.AuthBearer,
			Token: "{{SECRET:API_TOKEN}}",
		},
	}

	f := newTestAPIFetcher(t, secretStore{"secret:API_TOKEN": "tok-123"})
	result, records, err := f.Fetch(context.Background(), cfg, time.Time{})
	require.NoError(t, err)
	require.Equal(t, ErrorKindNone, result.Kind, result.Message)
	require.Len(t, records, 1)
	assert.Equal(t, "Protection Officer", records[0]["title"])
}

func TestAPIFetchMissingSecretIsPolicyFailure(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer srv.Close()

	cfg := &models.APIConfig{
		V:        1,
		BaseURL:  srv.URL,
		Method:   "GET",
		DataPath: "items",
		Map:      map[string]string{"title": "title"},
		Auth: models.AuthConfig{
			Type:  models.AuthBearer,
			Token: "{{SECRET:NEVER_STORED}}",
		},
	}

	f := newTestAPIFetcher(t, secretStore{})
	result, records, err := f.Fetch(context.Background(), cfg, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, ErrorKindPolicy, result.Kind)
	assert.Contains(t, result.Message, "NEVER_STORED")
	assert.Empty(t, records)
	assert.Zero(t, calls, "no request may leave the process before secrets resolve")
}

func TestAPIFetchDataPathMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"items":{"count":0}}`)
	}))
	defer srv.Close()

	cfg := &models.APIConfig{
		V:        1,
		BaseURL:  srv.URL,
		Method:   "GET",
		DataPath: "items",
		Map:      map[string]string{"title": "title"},
	}

	f := newTestAPIFetcher(t, secretStore{})
	result, records, err := f.Fetch(context.Background(), cfg, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, ErrorKindPolicy, result.Kind)
	assert.Contains(t, result.Message, "data_path")
	assert.Empty(t, records)
}

func TestAPIFetchServerErrorOnFirstPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := &models.APIConfig{
		V:        1,
		BaseURL:  srv.URL,
		Method:   "GET",
		DataPath: "items",
		Map:      map[string]string{"title": "title"},
		Retry:    models.RetryConfig{MaxRetries: 1, BackoffMS: 1},
	}

	f := newTestAPIFetcher(t, secretStore{})
	result, records, err := f.Fetch(context.Background(), cfg, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, ErrorKindServerError, result.Kind)
	assert.Equal(t, http.StatusInternalServerError, result.Status)
	assert.Empty(t, records)
}

func TestApplyTransformChain(t *testing.T) {
	tests := []struct {
		name       string
		value      string
		transforms []models.TransformSpec
		want       string
	}{
		{
			name:       "lower then map_table",
			value:      "FULL-TIME",
			transforms: []models.TransformSpec{{Op: "lower"}, {Op: "map_table", Table: map[string]string{"full-time": "full_time"}}},
			want:       "full_time",
		},
		{
			name:       "default fills blanks only",
			value:      "   ",
			transforms: []models.TransformSpec{{Op: "default", Value: "remote"}},
			want:       "remote",
		},
		{
			name:       "first takes the leading segment",
			value:      "Nairobi, Kenya; Mombasa",
			transforms: []models.TransformSpec{{Op: "first"}},
			want:       "Nairobi",
		},
		{
			name:       "join collapses whitespace",
			value:      "Senior   Programme\tOfficer",
			transforms: []models.TransformSpec{{Op: "join", Sep: " "}},
			want:       "Senior Programme Officer",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, applyTransforms(tt.value, tt.transforms))
		})
	}
}
