package pool

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestEmptyStringIsPreInterned(t *testing.T) {
	p := New()
	assert.Equal(t, 1, p.Len())
	assert.Equal(t, "", p.Resolve(ID(0)))
	assert.Equal(t, ID(0), p.Intern(""))
}

func TestInternIsIdempotent(t *testing.T) {
	p := New()
	first := p.Intern("repeated_string")
	for i := 1; i < 50000; i++ {
		assert.Equal(t, first, p.Intern("repeated_string"))
	}
	assert.Equal(t, 2, p.Len())
	assert.Equal(t, "repeated_string", p.Resolve(first))
}

func TestDistinctStringsGetDistinctIDs(t *testing.T) {
	p := New()
	a := p.Intern("alpha")
	b := p.Intern("beta")
	c := p.Intern("gamma")

	assert.NotEqual(t, a, b)
	assert.NotEqual(t, b, c)
	assert.NotEqual(t, a, c)

	assert.Equal(t, "alpha", p.Resolve(a))
	assert.Equal(t, "beta", p.Resolve(b))
	assert.Equal(t, "gamma", p.Resolve(c))
}

func TestResolveRoundTrips(t *testing.T) {
	cases := []string{
		"hello",
		"world",
		"with spaces",
		"with\nnewline",
		"unicode: 日本語",
		"",
	}

	p := New()
	for _, s := range cases {
		id := p.Intern(s)
		assert.Equal(t, s, p.Resolve(id))
	}
}

func TestStringsContainsEverythingInterned(t *testing.T) {
	p := New()
	p.Intern("first")
	p.Intern("second")
	p.Intern("third")

	assert.Equal(t, []string{"", "first", "second", "third"}, p.Strings())
}

func TestLookupDoesNotIntern(t *testing.T) {
	p := New()
	_, ok := p.Lookup("missing")
	assert.False(t, ok)
	assert.Equal(t, 1, p.Len())

	id := p.Intern("present")
	got, ok := p.Lookup("present")
	assert.True(t, ok)
	assert.Equal(t, id, got)
}

func TestInternPropertyIdempotent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		p := New()
		seen := map[string]ID{}
		for i := 0; i < 200; i++ {
			s := rapid.StringN(0, 12, 24).Draw(t, fmt.Sprintf("s%d", i))
			id := p.Intern(s)
			if prev, ok := seen[s]; ok && prev != id {
				t.Fatalf("intern(%q) returned %d then %d", s, prev, id)
			}
			seen[s] = id
			if p.Resolve(id) != s {
				t.Fatalf("resolve(intern(%q)) = %q", s, p.Resolve(id))
			}
		}
	})
}
