package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstancePathKey(t *testing.T) {
	p := InstancePath{{Segment: "root"}, {Segment: "beast", Repeat: 1}}
	assert.Equal(t, "root/beast#1", p.Key())

	assert.Equal(t, "root", InstancePath{{Segment: "root"}}.Key())
	assert.Equal(t, "", InstancePath{}.Key())
}

func TestParseInstancePath(t *testing.T) {
	p, err := ParseInstancePath("root/beast#1/comet")
	require.NoError(t, err)
	assert.Equal(t, InstancePath{
		{Segment: "root"},
		{Segment: "beast", Repeat: 1},
		{Segment: "comet"},
	}, p)

	// Key and ParseInstancePath are inverses
	assert.Equal(t, "root/beast#1/comet", p.Key())
}

func TestParseInstancePathErrors(t *testing.T) {
	for _, key := range []string{"", "root//beast", "root/#1", "root/beast#x"} {
		_, err := ParseInstancePath(key)
		assert.Error(t, err, "key %q", key)
	}
}

func TestInstancePathPrefixEqual(t *testing.T) {
	p := InstancePath{{Segment: "root"}, {Segment: "beast", Repeat: 1}}

	assert.True(t, p.Prefix(2).Equal(p))
	assert.False(t, p.Prefix(1).Equal(p))
	assert.Equal(t, "root", p.Prefix(1).Key())
	assert.Equal(t, PathStep{Segment: "beast", Repeat: 1}, p.Leaf())
	assert.Equal(t, PathStep{}, InstancePath{}.Leaf())

	// prefixes are independent copies
	pre := p.Prefix(1)
	pre[0].Segment = "other"
	assert.Equal(t, SegmentID("root"), p[0].Segment)
}

func TestKeyframeEnd(t *testing.T) {
	s := &Segment{Keyframes: []Keyframe{{At: 5}, {At: 15}, {At: 10}}}
	assert.Equal(t, int64(15), int64(s.KeyframeEnd()))
	assert.Equal(t, int64(0), int64((&Segment{}).KeyframeEnd()))
}

func TestParseEntityKind(t *testing.T) {
	for name, want := range map[string]EntityKind{
		"boss":      KindBoss,
		"add":       KindAdd,
		"player":    KindPlayer,
		"marker":    KindMarker,
		"telegraph": KindTelegraph,
	} {
		got, ok := ParseEntityKind(name)
		require.True(t, ok, name)
		assert.Equal(t, want, got)
		assert.Equal(t, name, got.String())
	}

	_, ok := ParseEntityKind("ghost")
	assert.False(t, ok)
	assert.Equal(t, "unknown", EntityKind(99).String())
}

func TestJobValid(t *testing.T) {
	assert.True(t, JobWarrior.Valid())
	assert.True(t, JobNone.Valid())
	assert.False(t, Job("XXX").Valid())

	assert.Equal(t, "Warrior", JobWarrior.DisplayName())
	assert.Equal(t, "XXX", Job("XXX").DisplayName())
}

func TestRoleAndVisibilityStrings(t *testing.T) {
	assert.Equal(t, "animation", RoleAnimation.String())
	assert.Equal(t, "strat", RoleStrat.String())
	assert.Equal(t, "snapshot", RoleSnapshot.String())
	assert.Equal(t, "major", VisibilityMajor.String())
	assert.Equal(t, "minor", VisibilityMinor.String())
}
