package imagediff

import (
	"image"
	"image/color"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/franzenzenhofer/automated-seo-tests/pkg/browser/browsertest"
	"github.com/franzenzenhofer/automated-seo-tests/pkg/types"
)

func store(t *testing.T, fs afero.Fs, path string, data []byte) types.ScreenshotArtifact {
	t.Helper()
	require.NoError(t, afero.WriteFile(fs, path, data, 0o644))
	return types.ScreenshotArtifact{Path: path}
}

// block returns a white w x h image with a black square of side n in the
// top left corner.
func block(w, h, n int) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBA{R: 255, G: 255, B: 255, A: 255}
			if x < n && y < n {
				c = color.NRGBA{A: 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return browsertest.EncodePNG(img)
}

func TestCompare(t *testing.T) {
	tests := []struct {
		name            string
		a, b            []byte
		threshold       int
		wantDelta       int
		wantSignificant bool
		wantMismatch    bool
		wantArtifact    bool
	}{
		{
			name:      "identical images",
			a:         block(40, 40, 0),
			b:         block(40, 40, 0),
			threshold: 50,
		},
		{
			name:      "small change under threshold",
			a:         block(40, 40, 0),
			b:         block(40, 40, 5),
			threshold: 50,
			wantDelta: 25,
		},
		{
			name:            "large change over threshold",
			a:               block(40, 40, 0),
			b:               block(40, 40, 20),
			threshold:       50,
			wantDelta:       400,
			wantSignificant: true,
			wantArtifact:    true,
		},
		{
			name:            "dimension mismatch",
			a:               block(40, 40, 0),
			b:               block(40, 41, 0),
			threshold:       50,
			wantSignificant: true,
			wantMismatch:    true,
		},
		{
			name:      "faint colour shift within tolerance",
			a:         browsertest.SolidPNG(20, 20, color.White),
			b:         browsertest.SolidPNG(20, 20, color.NRGBA{R: 252, G: 252, B: 252, A: 255}),
			threshold: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			a := store(t, fs, "/shots/a.png", tt.a)
			b := store(t, fs, "/shots/b.png", tt.b)

			result, err := New(fs).Compare(a, b, Options{Threshold: tt.threshold, DiffPath: "/shots/diff.png"})
			require.NoError(t, err)

			assert.Equal(t, tt.wantDelta, result.PixelDelta)
			assert.Equal(t, tt.threshold, result.Threshold)
			assert.Equal(t, tt.wantSignificant, result.Significant)
			assert.Equal(t, tt.wantMismatch, result.DimensionMismatch)

			exists, err := afero.Exists(fs, "/shots/diff.png")
			require.NoError(t, err)
			assert.Equal(t, tt.wantArtifact, exists)
			if tt.wantArtifact {
				assert.Equal(t, "/shots/diff.png", result.DiffArtifactPath)
			} else {
				assert.Empty(t, result.DiffArtifactPath)
			}
		})
	}
}

func TestCompare_Symmetric(t *testing.T) {
	fs := afero.NewMemMapFs()
	a := store(t, fs, "/a.png", block(30, 30, 3))
	b := store(t, fs, "/b.png", block(30, 30, 12))
	engine := New(fs)

	ab, err := engine.Compare(a, b, Options{Threshold: 10})
	require.NoError(t, err)
	ba, err := engine.Compare(b, a, Options{Threshold: 10})
	require.NoError(t, err)

	assert.Equal(t, ab.PixelDelta, ba.PixelDelta)
	assert.Equal(t, ab.Significant, ba.Significant)
}

func TestCompare_NoDiffPath(t *testing.T) {
	fs := afero.NewMemMapFs()
	a := store(t, fs, "/a.png", block(30, 30, 0))
	b := store(t, fs, "/b.png", block(30, 30, 20))

	result, err := New(fs).Compare(a, b, Options{Threshold: 1})
	require.NoError(t, err)
	assert.True(t, result.Significant)
	assert.Empty(t, result.DiffArtifactPath)
}

func TestCompare_UnreadableArtifact(t *testing.T) {
	fs := afero.NewMemMapFs()
	a := store(t, fs, "/a.png", block(10, 10, 0))
	garbage := store(t, fs, "/b.png", []byte("not a png"))

	_, err := New(fs).Compare(a, types.ScreenshotArtifact{Path: "/missing.png"}, Options{})
	assert.Error(t, err)

	_, err = New(fs).Compare(a, garbage, Options{})
	assert.Error(t, err)
}

func TestPixels_PaintsDifferencesRed(t *testing.T) {
	a := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	b := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for i := range a.Pix {
		a.Pix[i] = 255
		b.Pix[i] = 255
	}
	// a 4x4 black square has no anti-aliased edge
	for y := 2; y < 6; y++ {
		for x := 2; x < 6; x++ {
			b.SetNRGBA(x, y, color.NRGBA{A: 255})
		}
	}

	out := image.NewNRGBA(a.Rect)
	assert.Equal(t, 16, Pixels(a, b, out, Options{}))
	assert.Equal(t, color.NRGBA{R: 255, A: 255}, out.NRGBAAt(3, 3))
	assert.Equal(t, uint8(255), out.NRGBAAt(0, 0).A)
	assert.NotEqual(t, color.NRGBA{R: 255, A: 255}, out.NRGBAAt(0, 0))
}
