package wordpress

import (
	"bytes"
	"encoding/json"
	"html"
	"strconv"
)

// Taxonomy names a wp/v2 term collection.
type Taxonomy string

const (
	Categories Taxonomy = "categories"
	Tags       Taxonomy = "tags"
)

// Rendered is the {"rendered": "..."} envelope WordPress wraps text fields in.
type Rendered struct {
	Rendered string `json:"rendered"`
}

// Post is the subset of a wp/v2 post resource the migration reads.
type Post struct {
	ID            int             `json:"id"`
	Date          string          `json:"date"`
	DateGMT       string          `json:"date_gmt"`
	Slug          string          `json:"slug"`
	Status        string          `json:"status"`
	Link          string          `json:"link"`
	Title         Rendered        `json:"title"`
	Content       Rendered        `json:"content"`
	Excerpt       Rendered        `json:"excerpt"`
	FeaturedMedia int             `json:"featured_media"`
	Categories    []int           `json:"categories"`
	Tags          []int           `json:"tags"`
	Meta          json.RawMessage `json:"meta,omitempty"`
	Embedded      *Embedded       `json:"_embedded,omitempty"`
}

// Embedded carries the linked resources returned with ?_embed=1.
type Embedded struct {
	FeaturedMedia []Media  `json:"wp:featuredmedia,omitempty"`
	Terms         [][]Term `json:"wp:term,omitempty"`
}

type Media struct {
	ID        int    `json:"id"`
	SourceURL string `json:"source_url"`
	MimeType  string `json:"mime_type"`
}

type Term struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Slug     string `json:"slug"`
	Taxonomy string `json:"taxonomy"`
}

// DecodedName returns the term name without HTML entities.
func (t Term) DecodedName() string {
	return html.UnescapeString(t.Name)
}

type User struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// PostsPage is one page of a post collection plus the pagination headers.
type PostsPage struct {
	Posts      []Post
	Total      int
	TotalPages int
}

// CreatePostRequest is the body of POST /wp/v2/posts.
type CreatePostRequest struct {
	Title         string            `json:"title"`
	Content       string            `json:"content"`
	Excerpt       string            `json:"excerpt,omitempty"`
	Slug          string            `json:"slug,omitempty"`
	Status        string            `json:"status"`
	Date          string            `json:"date,omitempty"`
	Categories    []int             `json:"categories,omitempty"`
	Tags          []int             `json:"tags,omitempty"`
	Meta          map[string]string `json:"meta,omitempty"`
	FeaturedMedia int               `json:"featured_media,omitempty"`
}

// MediaUpload is a file to be sent to POST /wp/v2/media.
type MediaUpload struct {
	Filename    string
	ContentType string
	Body        []byte
}

// Download is a fetched remote file.
type Download struct {
	URL         string
	ContentType string
	Body        []byte
}

// PostDetail is a source post flattened into the fields the destination needs.
// Term names replace the source's numeric IDs, which do not carry across sites.
type PostDetail struct {
	ID               int
	Link             string
	Title            string
	Content          string
	Excerpt          string
	Slug             string
	Date             string
	CategoryNames    []string
	TagNames         []string
	Meta             map[string]string
	FeaturedImageURL string
}

// DecodedTitle returns the rendered title without HTML entities.
func (p Post) DecodedTitle() string {
	return html.UnescapeString(p.Title.Rendered)
}

// MetaValues flattens the post's meta object into string values. WordPress
// returns [] instead of {} when nothing is registered; non-scalar values are
// left out.
func (p Post) MetaValues() map[string]string {
	raw := bytes.TrimSpace(p.Meta)
	if len(raw) == 0 || raw[0] != '{' {
		return nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil
	}

	values := make(map[string]string, len(fields))
	for key, value := range fields {
		if s, ok := scalarString(value); ok {
			values[key] = s
		}
	}
	if len(values) == 0 {
		return nil
	}
	return values
}

// MetaKeys returns the set of keys present in the post's meta object,
// including those whose values MetaValues leaves out.
func (p Post) MetaKeys() map[string]bool {
	raw := bytes.TrimSpace(p.Meta)
	if len(raw) == 0 || raw[0] != '{' {
		return nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil
	}

	keys := make(map[string]bool, len(fields))
	for key := range fields {
		keys[key] = true
	}
	return keys
}

func scalarString(raw json.RawMessage) (string, bool) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return "", false
	}
}

// FeaturedImageURL returns the embedded featured media URL, if any.
func (p Post) FeaturedImageURL() string {
	if p.Embedded == nil {
		return ""
	}
	for _, media := range p.Embedded.FeaturedMedia {
		if media.SourceURL != "" {
			return media.SourceURL
		}
	}
	return ""
}

// EmbeddedTermNames splits the embedded wp:term groups into category and tag
// names. ok is false when the response carried no term embed at all.
func (p Post) EmbeddedTermNames() (categories, tags []string, ok bool) {
	if p.Embedded == nil || p.Embedded.Terms == nil {
		return nil, nil, false
	}
	for _, group := range p.Embedded.Terms {
		for _, term := range group {
			switch term.Taxonomy {
			case "category":
				categories = append(categories, term.DecodedName())
			case "post_tag":
				tags = append(tags, term.DecodedName())
			}
		}
	}
	return categories, tags, true
}
