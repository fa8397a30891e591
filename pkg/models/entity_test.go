package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/discograph/pkg/apperrors"
)

func TestParseEntityKind(t *testing.T) {
	tests := []struct {
		in      string
		want    EntityKind
		wantErr bool
	}{
		{"artist", EntityKindArtist, false},
		{"Label", EntityKindLabel, false},
		{" ARTIST ", EntityKindArtist, false},
		{"release", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseEntityKind(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, apperrors.ErrInvalidEntityKind)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEntityKindFromCode(t *testing.T) {
	k, err := EntityKindFromCode(2)
	require.NoError(t, err)
	assert.Equal(t, EntityKindLabel, k)

	_, err = EntityKindFromCode(3)
	assert.ErrorIs(t, err, apperrors.ErrInvalidEntityKind)
}

func TestEntity_KeyRoundTrip(t *testing.T) {
	for _, e := range []Entity{NewArtist(12), NewLabel(1)} {
		parsed, err := ParseEntityKey(e.Key())
		require.NoError(t, err)
		assert.Equal(t, e, parsed)
	}
	assert.Equal(t, "artist-12", NewArtist(12).Key())
}

func TestParseEntityKey_Invalid(t *testing.T) {
	for _, key := range []string{"artist", "band-3", "label-x"} {
		_, err := ParseEntityKey(key)
		assert.Error(t, err, key)
	}
}

func TestEntity_EqualityAndOrder(t *testing.T) {
	assert.Equal(t, NewArtist(5), Entity{Kind: EntityKindArtist, ID: 5})
	assert.NotEqual(t, NewArtist(5), NewLabel(5))

	assert.True(t, NewArtist(9).Less(NewLabel(1)))
	assert.True(t, NewLabel(1).Less(NewLabel(2)))
	assert.False(t, NewLabel(2).Less(NewLabel(2)))
}

func TestEntity_JSONUsesKindName(t *testing.T) {
	raw, err := json.Marshal(NewLabel(7))
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"label","id":7}`, string(raw))

	var decoded Entity
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, NewLabel(7), decoded)

	err = json.Unmarshal([]byte(`{"kind":"band","id":1}`), &decoded)
	assert.ErrorIs(t, err, apperrors.ErrInvalidEntityKind)

	_, err = json.Marshal(Entity{ID: 1})
	assert.Error(t, err)
}
