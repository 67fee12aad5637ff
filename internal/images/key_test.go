package images

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		prompt string
		want   string
	}{
		{"A cyberpunk city at night", "a-cyberpunk-city"},
		{"sunset", "sunset"},
		{"  Foggy   Mountain    Pass at dawn ", "foggy-mountain-pass"},
		{"café über naïve", "caf-ber-nave"},
		{"!!!", "image"},
		{"", "image"},
		{"   ", "image"},
		{"42 red balloons", "42-red-balloons"},
		{"---hyphens---everywhere---", "hyphens-everywhere"},
		{"emoji 🎨 prompt", "emoji-prompt"},
	}
	for _, tt := range tests {
		t.Run(tt.prompt, func(t *testing.T) {
			assert.Equal(t, tt.want, slugify(tt.prompt))
		})
	}
}

func TestSlugifyIdempotent(t *testing.T) {
	prompts := []string{
		"A cyberpunk city at night",
		"one",
		"supercalifragilisticexpialidocious whale watching",
	}
	for _, p := range prompts {
		once := slugify(p)
		assert.Equal(t, once, slugify(once))
	}
}

func TestSlugifyShape(t *testing.T) {
	shape := regexp.MustCompile(`^[a-z0-9-]{1,30}$`)
	prompts := []string{
		"A cyberpunk city at night",
		"verylongsinglewordthatkeepsongoingandgoingandgoing",
		"words-with-trailing-punctuation!!! and more",
		"...leading dots... here",
		"!!!",
		"日本語のプロンプト",
	}
	for _, p := range prompts {
		slug := slugify(p)
		assert.Regexp(t, shape, slug, "prompt %q", p)
		assert.NotEqual(t, byte('-'), slug[0], "prompt %q", p)
		assert.NotEqual(t, byte('-'), slug[len(slug)-1], "prompt %q", p)
	}
}

func TestDeriveKey(t *testing.T) {
	svc := &Service{newID: func() string { return "deadbeef-0000-0000-0000-000000000000" }}
	assert.Equal(t, "images/a-cyberpunk-city-deadbeef.png",
		svc.deriveKey("A cyberpunk city at night", "png"))
	assert.Equal(t, "images/image-deadbeef.jpg", svc.deriveKey("!!!", "jpg"))
}
