// Package testutil provides an in-process WordPress site for tests. It speaks
// enough of the wp/v2 REST API, sitemaps and /wp-content files for discovery,
// media, taxonomy and the migration driver to be exercised end to end.
package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"sync"
)

// FakePost is a post stored on a FakeSite. Title, Content and Excerpt are the
// rendered HTML values WordPress would return.
type FakePost struct {
	ID               int
	Slug             string
	Title            string
	Content          string
	Excerpt          string
	Date             string
	Status           string
	Categories       []int
	Tags             []int
	Meta             map[string]any
	FeaturedImageURL string
}

type FakeTerm struct {
	ID       int
	Name     string
	Taxonomy string
}

type FakeFile struct {
	ContentType string
	Body        []byte
}

// UploadedMedia records one POST /wp/v2/media call.
type UploadedMedia struct {
	ID          int
	Filename    string
	ContentType string
	Body        []byte
}

// RecordedRequest is one request the site received.
type RecordedRequest struct {
	Method        string
	Path          string
	Query         string
	Authenticated bool
}

type FakeSite struct {
	Server *httptest.Server

	mu sync.Mutex

	username string
	password string

	posts    []FakePost
	terms    map[string][]FakeTerm
	sitemaps map[string]string
	files    map[string]FakeFile
	uploads  []UploadedMedia
	created  []FakePost
	requests []RecordedRequest
	failures map[string][]int

	rejectedMeta  map[string]bool
	ignoredMeta   map[string]bool
	omitTermEmbed bool

	nextID int
}

// NewFakeSite starts a site. When username is non-empty, writes and
// /users/me require matching basic auth credentials.
func NewFakeSite(username, password string) *FakeSite {
	site := &FakeSite{
		username:     username,
		password:     password,
		terms:        map[string][]FakeTerm{"categories": nil, "tags": nil},
		sitemaps:     make(map[string]string),
		files:        make(map[string]FakeFile),
		failures:     make(map[string][]int),
		rejectedMeta: make(map[string]bool),
		ignoredMeta:  make(map[string]bool),
		nextID:       100,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /wp-json/{$}", site.handleIndex)
	mux.HandleFunc("GET /wp-json/wp/v2/users/me", site.handleUsersMe)
	mux.HandleFunc("GET /wp-json/wp/v2/posts", site.handleListPosts)
	mux.HandleFunc("GET /wp-json/wp/v2/posts/{id}", site.handleGetPost)
	mux.HandleFunc("POST /wp-json/wp/v2/posts", site.handleCreatePost)
	mux.HandleFunc("GET /wp-json/wp/v2/{taxonomy}", site.handleListTerms)
	mux.HandleFunc("POST /wp-json/wp/v2/{taxonomy}", site.handleCreateTerm)
	mux.HandleFunc("POST /wp-json/wp/v2/media", site.handleUploadMedia)
	mux.HandleFunc("GET /", site.handleStatic)

	site.Server = httptest.NewServer(site.middleware(mux))
	return site
}

func (s *FakeSite) Close() {
	s.Server.Close()
}

// URL returns an absolute URL for path on this site.
func (s *FakeSite) URL(path string) string {
	return s.Server.URL + path
}

func (s *FakeSite) AddPost(post FakePost) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if post.ID == 0 {
		post.ID = s.allocID()
	}
	if post.Status == "" {
		post.Status = "publish"
	}
	s.posts = append(s.posts, post)
	return post.ID
}

// AddTerm stores a term under "categories" or "tags" and returns its ID.
func (s *FakeSite) AddTerm(taxonomy, name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.allocID()
	s.terms[taxonomy] = append(s.terms[taxonomy], FakeTerm{ID: id, Name: name, Taxonomy: taxonomy})
	return id
}

func (s *FakeSite) SetSitemap(path, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sitemaps[path] = body
}

func (s *FakeSite) AddFile(path, contentType string, body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[path] = FakeFile{ContentType: contentType, Body: body}
}

// RejectMeta makes post creation fail with rest_invalid_param while any of
// keys is present in the submitted meta.
func (s *FakeSite) RejectMeta(keys ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		s.rejectedMeta[key] = true
	}
}

// IgnoreMeta makes post creation accept but silently discard keys, like
// unregistered meta on a real install.
func (s *FakeSite) IgnoreMeta(keys ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		s.ignoredMeta[key] = true
	}
}

// OmitTermEmbed drops wp:term from embedded responses.
func (s *FakeSite) OmitTermEmbed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.omitTermEmbed = true
}

// FailNext queues status codes returned, in order, by the next requests for
// method and path before normal handling resumes.
func (s *FakeSite) FailNext(method, path string, statuses ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := method + " " + path
	s.failures[key] = append(s.failures[key], statuses...)
}

// Hits counts requests received for method and path.
func (s *FakeSite) Hits(method, path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, req := range s.requests {
		if req.Method == method && req.Path == path {
			n++
		}
	}
	return n
}

func (s *FakeSite) Requests() []RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.requests)
}

// CreatedPosts returns posts created through the API, in creation order.
func (s *FakeSite) CreatedPosts() []FakePost {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.created)
}

func (s *FakeSite) Uploads() []UploadedMedia {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.uploads)
}

func (s *FakeSite) Terms(taxonomy string) []FakeTerm {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.terms[taxonomy])
}

func (s *FakeSite) allocID() int {
	s.nextID++
	return s.nextID
}

func (s *FakeSite) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, hasAuth := r.BasicAuth()

		s.mu.Lock()
		s.requests = append(s.requests, RecordedRequest{
			Method:        r.Method,
			Path:          r.URL.Path,
			Query:         r.URL.RawQuery,
			Authenticated: hasAuth,
		})
		key := r.Method + " " + r.URL.Path
		var status int
		if queued := s.failures[key]; len(queued) > 0 {
			status = queued[0]
			s.failures[key] = queued[1:]
		}
		username, password := s.username, s.password
		s.mu.Unlock()

		if status != 0 {
			writeError(w, status, "fake_failure", http.StatusText(status), nil)
			return
		}

		if username != "" && strings.HasPrefix(r.URL.Path, "/wp-json/") {
			if hasAuth && (user != username || pass != password) {
				writeError(w, http.StatusUnauthorized, "incorrect_password",
					"The provided password is an invalid application password.", nil)
				return
			}
			needsAuth := r.Method != http.MethodGet || r.URL.Path == "/wp-json/wp/v2/users/me"
			if needsAuth && !hasAuth {
				writeError(w, http.StatusUnauthorized, "rest_not_logged_in",
					"You are not currently logged in.", nil)
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

func (s *FakeSite) handleIndex(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":       "Fake Site",
		"url":        s.Server.URL,
		"namespaces": []string{"wp/v2"},
	})
}

func (s *FakeSite) handleUsersMe(w http.ResponseWriter, r *http.Request) {
	user, _, _ := r.BasicAuth()
	writeJSON(w, http.StatusOK, map[string]any{"id": 1, "name": user, "slug": user})
}

func (s *FakeSite) handleListPosts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	s.mu.Lock()
	var matched []FakePost
	for _, post := range s.posts {
		if post.Status != "publish" {
			continue
		}
		if slug := q.Get("slug"); slug != "" && post.Slug != slug {
			continue
		}
		if search := strings.ToLower(q.Get("search")); search != "" {
			inTitle := strings.Contains(strings.ToLower(post.Title), search)
			inContent := q.Get("search_columns") != "post_title" &&
				strings.Contains(strings.ToLower(post.Content), search)
			if !inTitle && !inContent {
				continue
			}
		}
		matched = append(matched, post)
	}
	s.mu.Unlock()

	perPage := intParam(q.Get("per_page"), 10)
	page := intParam(q.Get("page"), 1)
	totalPages := (len(matched) + perPage - 1) / perPage
	if page > 1 && page > totalPages {
		writeError(w, http.StatusBadRequest, "rest_post_invalid_page_number",
			"The page number requested is larger than the number of pages available.", nil)
		return
	}

	start := min((page-1)*perPage, len(matched))
	end := min(start+perPage, len(matched))

	out := make([]map[string]any, 0, end-start)
	for _, post := range matched[start:end] {
		out = append(out, s.renderPost(post, false))
	}

	w.Header().Set("X-WP-Total", strconv.Itoa(len(matched)))
	w.Header().Set("X-WP-TotalPages", strconv.Itoa(totalPages))
	writeJSON(w, http.StatusOK, out)
}

func (s *FakeSite) handleGetPost(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "rest_no_route", "No route was found.", nil)
		return
	}

	s.mu.Lock()
	idx := slices.IndexFunc(s.posts, func(p FakePost) bool { return p.ID == id })
	var post FakePost
	if idx >= 0 {
		post = s.posts[idx]
	}
	s.mu.Unlock()

	if idx < 0 {
		writeError(w, http.StatusNotFound, "rest_post_invalid_id", "Invalid post ID.", nil)
		return
	}
	writeJSON(w, http.StatusOK, s.renderPost(post, r.URL.Query().Has("_embed")))
}

type createPostBody struct {
	Title         string         `json:"title"`
	Content       string         `json:"content"`
	Excerpt       string         `json:"excerpt"`
	Slug          string         `json:"slug"`
	Status        string         `json:"status"`
	Date          string         `json:"date"`
	Categories    []int          `json:"categories"`
	Tags          []int          `json:"tags"`
	Meta          map[string]any `json:"meta"`
	FeaturedMedia int            `json:"featured_media"`
}

func (s *FakeSite) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	var body createPostBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "rest_invalid_json", err.Error(), nil)
		return
	}

	s.mu.Lock()
	for key := range body.Meta {
		if s.rejectedMeta[key] {
			s.mu.Unlock()
			writeError(w, http.StatusBadRequest, "rest_invalid_param", "Invalid parameter(s): meta", map[string]any{
				"params": map[string]string{"meta": fmt.Sprintf("meta.%s is not of type integer.", key)},
			})
			return
		}
	}

	stored := make(map[string]any, len(body.Meta))
	for key, value := range body.Meta {
		if !s.ignoredMeta[key] {
			stored[key] = value
		}
	}

	status := body.Status
	if status == "" {
		status = "draft"
	}
	post := FakePost{
		ID:         s.allocID(),
		Slug:       body.Slug,
		Title:      body.Title,
		Content:    body.Content,
		Excerpt:    body.Excerpt,
		Date:       body.Date,
		Status:     status,
		Categories: body.Categories,
		Tags:       body.Tags,
		Meta:       stored,
	}
	if body.FeaturedMedia != 0 {
		post.FeaturedImageURL = s.mediaURL(body.FeaturedMedia)
	}
	s.posts = append(s.posts, post)
	s.created = append(s.created, post)
	s.mu.Unlock()

	rendered := s.renderPost(post, false)
	rendered["featured_media"] = body.FeaturedMedia
	writeJSON(w, http.StatusCreated, rendered)
}

func (s *FakeSite) handleListTerms(w http.ResponseWriter, r *http.Request) {
	taxonomy := r.PathValue("taxonomy")
	q := r.URL.Query()

	s.mu.Lock()
	terms, ok := s.terms[taxonomy]
	if !ok {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, "rest_no_route", "No route was found.", nil)
		return
	}

	var include []int
	for _, raw := range strings.Split(q.Get("include"), ",") {
		if id, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil {
			include = append(include, id)
		}
	}
	search := strings.ToLower(q.Get("search"))

	out := make([]map[string]any, 0)
	for _, term := range terms {
		if len(include) > 0 && !slices.Contains(include, term.ID) {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(term.Name), search) {
			continue
		}
		out = append(out, renderTerm(term))
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, out)
}

func (s *FakeSite) handleCreateTerm(w http.ResponseWriter, r *http.Request) {
	taxonomy := r.PathValue("taxonomy")

	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Name == "" {
		writeError(w, http.StatusBadRequest, "rest_missing_callback_param", "Missing parameter(s): name", nil)
		return
	}

	s.mu.Lock()
	if _, ok := s.terms[taxonomy]; !ok {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, "rest_no_route", "No route was found.", nil)
		return
	}
	for _, term := range s.terms[taxonomy] {
		if strings.EqualFold(term.Name, body.Name) {
			s.mu.Unlock()
			writeError(w, http.StatusBadRequest, "term_exists",
				"A term with the name provided already exists in this taxonomy.",
				map[string]any{"term_id": term.ID})
			return
		}
	}
	term := FakeTerm{ID: s.allocID(), Name: body.Name, Taxonomy: taxonomy}
	s.terms[taxonomy] = append(s.terms[taxonomy], term)
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, renderTerm(term))
}

func (s *FakeSite) handleUploadMedia(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil || len(body) == 0 {
		writeError(w, http.StatusBadRequest, "rest_upload_no_data", "No data supplied.", nil)
		return
	}

	filename := ""
	if _, params, err := mime.ParseMediaType(r.Header.Get("Content-Disposition")); err == nil {
		filename = params["filename"]
	}
	if filename == "" {
		writeError(w, http.StatusBadRequest, "rest_upload_no_content_disposition",
			"No Content-Disposition supplied.", nil)
		return
	}

	s.mu.Lock()
	upload := UploadedMedia{
		ID:          s.allocID(),
		Filename:    filename,
		ContentType: r.Header.Get("Content-Type"),
		Body:        body,
	}
	s.uploads = append(s.uploads, upload)
	s.files["/wp-content/uploads/"+filename] = FakeFile{ContentType: upload.ContentType, Body: body}
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, map[string]any{
		"id":         upload.ID,
		"source_url": s.URL("/wp-content/uploads/" + filename),
		"mime_type":  upload.ContentType,
	})
}

func (s *FakeSite) handleStatic(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	sitemap, isSitemap := s.sitemaps[r.URL.Path]
	file, isFile := s.files[r.URL.Path]
	s.mu.Unlock()

	switch {
	case isSitemap:
		w.Header().Set("Content-Type", "application/xml; charset=UTF-8")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, sitemap)
	case isFile:
		if file.ContentType != "" {
			w.Header().Set("Content-Type", file.ContentType)
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(file.Body)
	default:
		w.Header().Set("Content-Type", "text/html; charset=UTF-8")
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, "<html><body>Page not found</body></html>")
	}
}

// renderPost must be called without s.mu held.
func (s *FakeSite) renderPost(post FakePost, embed bool) map[string]any {
	var meta any = []any{}
	if len(post.Meta) > 0 {
		meta = post.Meta
	}

	out := map[string]any{
		"id":             post.ID,
		"date":           post.Date,
		"date_gmt":       post.Date,
		"slug":           post.Slug,
		"status":         post.Status,
		"link":           s.URL("/" + post.Slug + "/"),
		"title":          map[string]string{"rendered": post.Title},
		"content":        map[string]string{"rendered": post.Content},
		"excerpt":        map[string]string{"rendered": post.Excerpt},
		"featured_media": 0,
		"categories":     nonNil(post.Categories),
		"tags":           nonNil(post.Tags),
		"meta":           meta,
	}
	if !embed {
		return out
	}

	embedded := map[string]any{}
	if post.FeaturedImageURL != "" {
		out["featured_media"] = 1
		embedded["wp:featuredmedia"] = []map[string]any{{"id": 1, "source_url": post.FeaturedImageURL}}
	}

	s.mu.Lock()
	omitTerms := s.omitTermEmbed
	var groups [][]map[string]any
	if !omitTerms {
		groups = [][]map[string]any{
			s.lookupTerms("categories", post.Categories),
			s.lookupTerms("tags", post.Tags),
		}
	}
	s.mu.Unlock()

	if !omitTerms {
		embedded["wp:term"] = groups
	}
	if len(embedded) > 0 {
		out["_embedded"] = embedded
	}
	return out
}

func (s *FakeSite) lookupTerms(taxonomy string, ids []int) []map[string]any {
	out := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		for _, term := range s.terms[taxonomy] {
			if term.ID == id {
				out = append(out, renderTerm(term))
			}
		}
	}
	return out
}

func (s *FakeSite) mediaURL(id int) string {
	for _, upload := range s.uploads {
		if upload.ID == id {
			return s.URL("/wp-content/uploads/" + upload.Filename)
		}
	}
	return ""
}

func renderTerm(term FakeTerm) map[string]any {
	wpTaxonomy := "category"
	if term.Taxonomy == "tags" {
		wpTaxonomy = "post_tag"
	}
	return map[string]any{
		"id":       term.ID,
		"name":     term.Name,
		"slug":     strings.ToLower(strings.ReplaceAll(term.Name, " ", "-")),
		"taxonomy": wpTaxonomy,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string, data map[string]any) {
	payload := map[string]any{"status": status}
	for k, v := range data {
		payload[k] = v
	}
	writeJSON(w, status, map[string]any{"code": code, "message": message, "data": payload})
}

func intParam(raw string, fallback int) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func nonNil(ids []int) []int {
	if ids == nil {
		return []int{}
	}
	return ids
}
