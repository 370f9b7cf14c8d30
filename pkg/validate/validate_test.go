package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/guregu/null.v3"

	"github.com/franzenzenhofer/automated-seo-tests/pkg/types"
)

func TestPerformance(t *testing.T) {
	tests := []struct {
		name  string
		score null.Float
		want  types.Verdict
	}{
		{name: "good score passes", score: null.FloatFrom(85), want: types.VerdictPassed},
		{name: "poor score fails", score: null.FloatFrom(45), want: types.VerdictFailed},
		{name: "boundary passes", score: null.FloatFrom(80), want: types.VerdictPassed},
		{name: "just below fails", score: null.FloatFrom(79.9), want: types.VerdictFailed},
		{name: "zero fails", score: null.FloatFrom(0), want: types.VerdictFailed},
		{name: "absent fails", score: null.Float{}, want: types.VerdictFailed},
	}

	v := Performance(DefaultPassScore)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := types.Findings{Score: tt.score}
			assert.Equal(t, tt.want, v.Validate(f))
			// same stored score, same verdict
			assert.Equal(t, v.Validate(f), v.Validate(f))
		})
	}
}

func TestMobileFriendly(t *testing.T) {
	usable := null.StringFrom("Page is usable on mobile")
	tests := []struct {
		name     string
		findings types.Findings
		want     types.Verdict
	}{
		{
			name: "usable, no difference, resources fine",
			findings: types.Findings{
				MobileFriendly:   usable,
				VisualDifference: null.BoolFrom(false),
				ResourcesStatus:  null.StringFrom("All page resources loaded"),
			},
			want: types.VerdictPassed,
		},
		{
			name: "not usable fails regardless of other fields",
			findings: types.Findings{
				MobileFriendly:   null.StringFrom("Page isn't usable on mobile"),
				VisualDifference: null.BoolFrom(false),
				ResourcesStatus:  null.StringFrom("All page resources loaded"),
			},
			want: types.VerdictFailed,
		},
		{
			name:     "typographic apostrophe",
			findings: types.Findings{MobileFriendly: null.StringFrom("Page isn’t usable on mobile")},
			want:     types.VerdictFailed,
		},
		{
			name: "visual difference warns",
			findings: types.Findings{
				MobileFriendly:   usable,
				VisualDifference: null.BoolFrom(true),
			},
			want: types.VerdictWarning,
		},
		{
			name: "resource problem warns",
			findings: types.Findings{
				MobileFriendly:   usable,
				VisualDifference: null.BoolFrom(false),
				ResourcesStatus:  null.StringFrom("3/12 resources couldn't be loaded"),
			},
			want: types.VerdictWarning,
		},
		{
			name:     "unknown difference warns",
			findings: types.Findings{MobileFriendly: usable},
			want:     types.VerdictWarning,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MobileFriendly().Validate(tt.findings))
		})
	}
}

func TestJsOnOff(t *testing.T) {
	assert.Equal(t, types.VerdictPassed, JsOnOff().Validate(types.Findings{Diff: &types.DiffResult{Threshold: 250}}))
	assert.Equal(t, types.VerdictFailed, JsOnOff().Validate(types.Findings{Diff: &types.DiffResult{PixelDelta: 50000, Threshold: 250, Significant: true}}))
	assert.Equal(t, types.VerdictFailed, JsOnOff().Validate(types.Findings{Diff: &types.DiffResult{Significant: true, DimensionMismatch: true}}))
}

func TestURLInspection(t *testing.T) {
	tests := []struct {
		name     string
		findings types.Findings
		want     types.Verdict
	}{
		{
			name: "clean",
			findings: types.Findings{
				VisualDifference: null.BoolFrom(false),
				ResourcesStatus:  null.StringFrom("All resources loaded"),
			},
			want: types.VerdictPassed,
		},
		{
			name: "visual difference",
			findings: types.Findings{
				VisualDifference: null.BoolFrom(true),
				ResourcesStatus:  null.StringFrom("All resources loaded"),
			},
			want: types.VerdictFailed,
		},
		{
			name: "resources failed",
			findings: types.Findings{
				VisualDifference: null.BoolFrom(false),
				ResourcesStatus:  null.StringFrom("1 resource couldn't be loaded"),
			},
			want: types.VerdictFailed,
		},
		{
			name:     "resources unknown",
			findings: types.Findings{VisualDifference: null.BoolFrom(false)},
			want:     types.VerdictFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, URLInspection().Validate(tt.findings))
		})
	}
}

func TestValidatorsAreTotal(t *testing.T) {
	for _, kind := range types.AllKinds {
		t.Run(string(kind), func(t *testing.T) {
			v, err := For(kind, Options{})
			require.NoError(t, err)

			var got types.Verdict
			assert.NotPanics(t, func() { got = v.Validate(types.Findings{}) })
			assert.NotEqual(t, types.VerdictPassed, got)
		})
	}
}

func TestFor(t *testing.T) {
	v, err := For(types.KindPerformance, Options{PassScore: 90})
	require.NoError(t, err)
	assert.Equal(t, types.VerdictFailed, v.Validate(types.Findings{Score: null.FloatFrom(85)}))

	v, err = For(types.KindPerformance, Options{})
	require.NoError(t, err)
	assert.Equal(t, types.VerdictPassed, v.Validate(types.Findings{Score: null.FloatFrom(3)}), "zero pass score")

	_, err = For("lighthouse", Options{})
	assert.Error(t, err)
}
