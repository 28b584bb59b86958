package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestFormatSize(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 Bytes"},
		{512, "512 Bytes"},
		{1024, "1 KB"},
		{1536, "1.5 KB"},
		{50 * 1024 * 1024, "50 MB"},
		{3 * 1024 * 1024 * 1024 * 1024, "3072 GB"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatSize(tt.in), "FormatSize(%d)", tt.in)
	}
}

func TestAsset_SummaryHidesInternalFields(t *testing.T) {
	a := Asset{
		ID:          "id-1",
		Name:        "Chair",
		StorageKey:  "chair_x.glb",
		StoragePath: "/data/chair_x.glb",
		UploaderIP:  "10.0.0.1",
		Size:        2048,
	}
	s := a.Summary()
	assert.Equal(t, "id-1", s.ID)
	assert.Equal(t, "2 KB", s.SizeText)
	assert.Equal(t, []string{}, s.Tags)

	a.Tags = datatypes.NewJSONType([]string{"chair"})
	assert.Equal(t, []string{"chair"}, a.SearchDocument().Tags)
}

func TestViewerProfile_Snapshot(t *testing.T) {
	p := BaselineProfile()
	p.ID = "p1"
	p.SessionID = "s1"
	p.ShareableLink = "/view/abc"

	snap := p.Snapshot()
	assert.Equal(t, "#f8fafc", snap.BackgroundColor)
	assert.Equal(t, Vec3{X: 5, Y: 5, Z: 5}, snap.CameraPosition)
	assert.Equal(t, 0.5, snap.Lights.AmbientIntensity)
	assert.Empty(t, snap.Annotations)
	assert.NotNil(t, snap.CustomSettings)
}

func TestJoinTags(t *testing.T) {
	assert.Equal(t, "", JoinTags(nil))
	assert.Equal(t, "|r&d|lab|chair|", JoinTags([]string{"R&D", "lab", "chair"}))
	assert.Equal(t, "|a b|", JoinTags([]string{"a|b"}))

	a := Asset{Tags: datatypes.NewJSONType([]string{"<b>", "x"})}
	require.NoError(t, a.BeforeSave(nil))
	assert.Equal(t, "|<b>|x|", a.TagsText)
}

func TestAnnotation_UnmarshalDefaults(t *testing.T) {
	var got []Annotation
	require.NoError(t, json.Unmarshal([]byte(`[
		{"title":"Seat","position":{"x":1,"y":0,"z":0}},
		{"title":"Leg","color":"#000","visible":false}
	]`), &got))
	require.Len(t, got, 2)
	assert.Equal(t, DefaultAnnotationColor, got[0].Color)
	assert.True(t, got[0].Visible)
	assert.Equal(t, Vec3{X: 1}, got[0].Position)
	assert.Equal(t, "#000", got[1].Color)
	assert.False(t, got[1].Visible)
}
