package cmd

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/hy3d/pkg/hunyuan"
)

func TestParseViews(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		views, err := parseViews([]string{"left=l.png", " Back = b.png "})
		require.NoError(t, err)
		assert.Equal(t, []viewRef{{View: "left", Path: "l.png"}, {View: "back", Path: "b.png"}}, views)
	})

	t.Run("none", func(t *testing.T) {
		views, err := parseViews(nil)
		require.NoError(t, err)
		assert.Empty(t, views)
	})

	for _, bad := range []string{"left", "=l.png", "left="} {
		t.Run("invalid "+bad, func(t *testing.T) {
			_, err := parseViews([]string{bad})
			require.Error(t, err)
			assert.Contains(t, err.Error(), "expected <view>=<path>")
		})
	}
}

func TestSplitImageRef(t *testing.T) {
	tests := []struct {
		name             string
		image, imageURL  string
		wantImage, wantU string
	}{
		{"local file", "chair.png", "", "chair.png", ""},
		{"url in image", "https://example.com/c.png", "", "", "https://example.com/c.png"},
		{"explicit url kept", "https://example.com/a.png", "https://example.com/b.png", "https://example.com/a.png", "https://example.com/b.png"},
		{"empty", "", "", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, u := splitImageRef(tt.image, tt.imageURL)
			assert.Equal(t, tt.wantImage, img)
			assert.Equal(t, tt.wantU, u)
		})
	}
}

func TestBuildProRequest(t *testing.T) {
	dir := t.TempDir()
	front := filepath.Join(dir, "front.png")
	left := filepath.Join(dir, "left.png")
	require.NoError(t, os.WriteFile(front, []byte("front"), 0644))
	require.NoError(t, os.WriteFile(left, []byte("left"), 0644))

	t.Run("image with views", func(t *testing.T) {
		req, err := buildProRequest(proInput{
			Image: front,
			Faces: 200000,
			Views: []viewRef{{View: "left", Path: left}},
		})
		require.NoError(t, err)
		assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("front")), req.ImageBase64)
		require.Len(t, req.MultiViewImages, 1)
		assert.Equal(t, "left", req.MultiViewImages[0].ViewType)
		assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("left")), req.MultiViewImages[0].ImageBase64)
	})

	t.Run("prompt only", func(t *testing.T) {
		req, err := buildProRequest(proInput{Prompt: "a chair", PBR: true})
		require.NoError(t, err)
		assert.Equal(t, "a chair", req.Prompt)
		assert.True(t, req.EnablePBR)
	})

	t.Run("no input", func(t *testing.T) {
		_, err := buildProRequest(proInput{})
		require.Error(t, err)
		assert.ErrorIs(t, err, hunyuan.ErrInvalidRequest)
	})

	t.Run("missing image file", func(t *testing.T) {
		_, err := buildProRequest(proInput{Image: filepath.Join(dir, "nope.png")})
		var pe *os.PathError
		assert.ErrorAs(t, err, &pe)
	})
}

func TestGenerateOptions(t *testing.T) {
	assert.Nil(t, generateOptions("", 0, false, "", 0))
	assert.Equal(t, map[string]string{
		"generate_type": "LowPoly",
		"faces":         "40000",
		"pbr":           "true",
		"polygon_type":  "quadrilateral",
		"views":         "2",
	}, generateOptions("LowPoly", 40000, true, "quadrilateral", 2))
}

func TestBuildRapidRequest(t *testing.T) {
	req, err := buildRapidRequest("a lamp", "", "", "GLB", true, false)
	require.NoError(t, err)
	rr, ok := req.(*hunyuan.RapidRequest)
	require.True(t, ok)
	assert.Equal(t, "a lamp", rr.Prompt)

	_, err = buildRapidRequest("", "", "", "", false, false)
	assert.ErrorIs(t, err, hunyuan.ErrInvalidRequest)
}
