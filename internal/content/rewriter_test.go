package content

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinkRewriter(t *testing.T) {
	rewriter, err := NewLinkRewriter("https://old.example.com/", "https://new.example.org")
	require.NoError(t, err)

	tests := []struct {
		name     string
		input    string
		expected string
		changed  int
	}{
		{
			name:     "post link",
			input:    `<a href="https://old.example.com/2024/01/hello/">Hello</a>`,
			expected: `<a href="https://new.example.org/2024/01/hello/">Hello</a>`,
			changed:  1,
		},
		{
			name:     "http and www variants",
			input:    `<a href="http://www.old.example.com/about">About</a>`,
			expected: `<a href="https://new.example.org/about">About</a>`,
			changed:  1,
		},
		{
			name:     "case insensitive host",
			input:    `<a href="https://OLD.example.com/x">x</a>`,
			expected: `<a href="https://new.example.org/x">x</a>`,
			changed:  1,
		},
		{
			name:     "protocol relative",
			input:    `<a href="//old.example.com/x">x</a>`,
			expected: `<a href="https://new.example.org/x">x</a>`,
			changed:  1,
		},
		{
			name:     "media kept on source",
			input:    `<img src="https://old.example.com/wp-content/uploads/a.png">`,
			expected: `<img src="https://old.example.com/wp-content/uploads/a.png">`,
			changed:  0,
		},
		{
			name:     "lookalike host untouched",
			input:    `<a href="https://old.example.com.evil.net/x">x</a> <a href="https://old.example.community/">y</a>`,
			expected: `<a href="https://old.example.com.evil.net/x">x</a> <a href="https://old.example.community/">y</a>`,
			changed:  0,
		},
		{
			name:     "bare host",
			input:    `Visit https://old.example.com today`,
			expected: `Visit https://new.example.org today`,
			changed:  1,
		},
		{
			name:     "mixed",
			input:    `<a href="https://old.example.com/a">a</a><img src="https://old.example.com/wp-content/b.jpg"><a href="https://old.example.com/c">c</a>`,
			expected: `<a href="https://new.example.org/a">a</a><img src="https://old.example.com/wp-content/b.jpg"><a href="https://new.example.org/c">c</a>`,
			changed:  2,
		},
		{
			name:     "empty",
			input:    "",
			expected: "",
			changed:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, changed := rewriter.Rewrite(tt.input)
			assert.Equal(t, tt.expected, result)
			assert.Equal(t, tt.changed, changed)
		})
	}
}

func TestLinkRewriter_Subdirectory(t *testing.T) {
	rewriter, err := NewLinkRewriter("https://example.com/blog", "https://blog.example.net/")
	require.NoError(t, err)

	result, changed := rewriter.Rewrite(`<a href="https://example.com/blog/post/">p</a> <a href="https://example.com/shop/">s</a> <a href="https://example.com/blogroll">r</a>`)
	assert.Equal(t, `<a href="https://blog.example.net/post/">p</a> <a href="https://example.com/shop/">s</a> <a href="https://example.com/blogroll">r</a>`, result)
	assert.Equal(t, 1, changed)
}

func TestNewLinkRewriter_InvalidURL(t *testing.T) {
	_, err := NewLinkRewriter("not a url", "https://new.example.org")
	assert.Error(t, err)

	_, err = NewLinkRewriter("https://old.example.com", "")
	assert.Error(t, err)
}
