// Package testutil provides a mock Placemark API for tests.
package testutil

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Record is one collection item as served by the mock API.
type Record map[string]any

// ID returns the record's "id" field.
func (r Record) ID() int64 {
	switch v := r["id"].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return 0
	}
}

func (r Record) str(key string) string {
	s, _ := r[key].(string)
	return s
}

// PlaceRecord builds a valid place record.
func PlaceRecord(id int64, name, category, address string) Record {
	return Record{
		"id":        id,
		"name":      name,
		"category":  category,
		"address":   address,
		"latitude":  37.5665,
		"longitude": 126.978,
		"saved":     true,
		"createdAt": time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC).Format(time.RFC3339),
	}
}

// FolderRecord builds a valid folder record.
func FolderRecord(id int64, name string, placeCount int) Record {
	return Record{
		"id":         id,
		"name":       name,
		"placeCount": placeCount,
		"createdAt":  time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC).Format(time.RFC3339),
	}
}

// LinkRecord builds a valid collection link record.
func LinkRecord(id int64, title, link string) Record {
	return Record{
		"id":        id,
		"title":     title,
		"url":       link,
		"createdAt": time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC).Format(time.RFC3339),
	}
}

// Request is one request received by the mock API.
type Request struct {
	Path   string
	Query  url.Values
	Header http.Header
}

// MockAPI is a configurable mock Placemark API for testing. It serves the
// registered collections with cursor pagination: cursorId is the ID of the last
// item already received and pages are ordered by ID.
type MockAPI struct {
	server *httptest.Server

	mu          sync.Mutex
	collections map[string][]Record
	failures    map[string][]int
	stalled     map[string]bool
	token       string
	delay       time.Duration
	requests    []Request

	conditionalCount int
	notModifiedCount int
}

// NewMockAPI creates and starts a mock API.
func NewMockAPI() *MockAPI {
	mock := &MockAPI{
		collections: make(map[string][]Record),
		failures:    make(map[string][]int),
		stalled:     make(map[string]bool),
	}
	mock.server = httptest.NewServer(http.HandlerFunc(mock.handle))
	return mock
}

// URL returns the mock server URL.
func (m *MockAPI) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockAPI) Close() {
	m.server.Close()
}

// SetCollection serves records at path.
func (m *MockAPI) SetCollection(path string, records ...Record) {
	sorted := slices.Clone(records)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID() < sorted[j].ID() })

	m.mu.Lock()
	defer m.mu.Unlock()
	m.collections[path] = sorted
}

// FailNext makes the next requests to path fail with the given status codes, in order.
func (m *MockAPI) FailNext(path string, statuses ...int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[path] = append(m.failures[path], statuses...)
}

// StallCursor makes path report hasNextPage=true without advancing the cursor.
func (m *MockAPI) StallCursor(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stalled[path] = true
}

// RequireToken rejects requests without "Authorization: Bearer <token>".
func (m *MockAPI) RequireToken(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
}

// SetDelay delays every response.
func (m *MockAPI) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// Requests returns the requests received so far.
func (m *MockAPI) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.requests)
}

// RequestCount returns the number of requests received.
func (m *MockAPI) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// ConditionalCount returns the number of requests carrying If-None-Match.
func (m *MockAPI) ConditionalCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conditionalCount
}

// NotModifiedCount returns the number of 304 responses sent.
func (m *MockAPI) NotModifiedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.notModifiedCount
}

func (m *MockAPI) handle(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.requests = append(m.requests, Request{
		Path:   r.URL.Path,
		Query:  r.URL.Query(),
		Header: r.Header.Clone(),
	})
	if r.Header.Get("If-None-Match") != "" {
		m.conditionalCount++
	}
	delay := m.delay
	token := m.token
	records, found := m.collections[r.URL.Path]
	stalled := m.stalled[r.URL.Path]
	failStatus := 0
	if queue := m.failures[r.URL.Path]; len(queue) > 0 {
		failStatus = queue[0]
		m.failures[r.URL.Path] = queue[1:]
	}
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-RateLimit-Remaining", "100")
	w.Header().Set("X-RateLimit-Reset", "60")

	if token != "" && r.Header.Get("Authorization") != "Bearer "+token {
		writeError(w, http.StatusUnauthorized, "invalid or expired token")
		return
	}
	if failStatus != 0 {
		writeError(w, failStatus, "injected failure")
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "collection not found")
		return
	}

	page, err := paginate(records, r.URL.Query(), stalled)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	body, err := json.Marshal(page)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	sum := sha256.Sum256(body)
	etag := `"` + hex.EncodeToString(sum[:8]) + `"`
	w.Header().Set("ETag", etag)
	w.Header().Set("Expires", time.Now().Add(5*time.Minute).UTC().Format(http.TimeFormat))

	if r.Header.Get("If-None-Match") == etag {
		m.mu.Lock()
		m.notModifiedCount++
		m.mu.Unlock()
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

type pageMeta struct {
	HasNextPage  bool  `json:"hasNextPage"`
	NextCursorID int64 `json:"nextCursorId"`
}

type pageBody struct {
	Items []Record `json:"items"`
	Meta  pageMeta `json:"meta"`
}

// paginate selects the page after cursorId among the records matching the filters.
func paginate(records []Record, query url.Values, stalled bool) (pageBody, error) {
	take := 10
	if v := query.Get("take"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return pageBody{}, fmt.Errorf("invalid take %q", v)
		}
		take = n
	}

	var cursor int64
	if v := query.Get("cursorId"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			return pageBody{}, fmt.Errorf("invalid cursorId %q", v)
		}
		cursor = n
	}

	categories := query["categoryList"]
	regions := query["addressList"]

	matching := make([]Record, 0, len(records))
	for _, rec := range records {
		if len(categories) > 0 && !slices.Contains(categories, rec.str("category")) {
			continue
		}
		if len(regions) > 0 && !matchesRegion(rec.str("address"), regions) {
			continue
		}
		matching = append(matching, rec)
	}

	start := sort.Search(len(matching), func(i int) bool { return matching[i].ID() > cursor })
	end := min(start+take, len(matching))

	page := pageBody{Items: matching[start:end]}
	if end < len(matching) {
		page.Meta.HasNextPage = true
		page.Meta.NextCursorID = matching[end-1].ID()
	}
	if stalled {
		page.Meta.HasNextPage = true
		page.Meta.NextCursorID = cursor
	}
	return page, nil
}

func matchesRegion(address string, regions []string) bool {
	address = strings.ToLower(address)
	for _, region := range regions {
		if strings.Contains(address, strings.ToLower(region)) {
			return true
		}
	}
	return false
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"message": message})
}
