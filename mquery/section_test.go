package mquery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sectionSingle = `
	section Section1;

	shared Foo = 1;
`

const sectionMulti = `
	section Section1;

	shared Foo = 1;
	shared Bar = 2;
	Baz = 3;
`

const sectionNoisy = `

// Leading comment

section Section1;

// Comment before Foo
shared Foo = 1;

/* block
   comment */

	shared   Bar   =    2    ;

`

func TestParseSingleMemberSection(t *testing.T) {
	members, err := ParseSectionMembers(sectionSingle)
	require.NoError(t, err)
	require.Len(t, members, 1)

	foo := members[0]
	assert.Equal(t, "Section1", foo.SectionName)
	assert.Equal(t, "Foo", foo.MemberName)
	assert.Equal(t, "1", foo.Expression)
	assert.True(t, foo.IsShared)
}

func TestParseMultipleMembers(t *testing.T) {
	members, err := ParseSectionMembers(sectionMulti)
	require.NoError(t, err)
	require.Len(t, members, 3)

	assert.Equal(t, "Foo", members[0].MemberName)
	assert.True(t, members[0].IsShared)
	assert.Equal(t, "Bar", members[1].MemberName)
	assert.True(t, members[1].IsShared)
	assert.Equal(t, "Baz", members[2].MemberName)
	assert.False(t, members[2].IsShared)
	assert.Equal(t, "3", members[2].Expression)
}

func TestSectionToleratesWhitespaceAndComments(t *testing.T) {
	members, err := ParseSectionMembers(sectionNoisy)
	require.NoError(t, err)
	require.Len(t, members, 2)

	assert.Equal(t, "Foo", members[0].MemberName)
	assert.Equal(t, "1", members[0].Expression)
	assert.Equal(t, "Bar", members[1].MemberName)
	assert.Equal(t, "2", members[1].Expression)
}

func TestMissingSectionHeaderIsHardError(t *testing.T) {
	_, err := ParseSectionMembers("shared Foo = 1;")
	assert.ErrorIs(t, err, ErrMissingSectionHeader)
}

func TestSectionToleratesBOM(t *testing.T) {
	members, err := ParseSectionMembers("\uFEFFsection Section1;\nshared Foo = 1;")
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "Foo", members[0].MemberName)
	assert.Equal(t, "Section1", members[0].SectionName)
}

func TestMemberExpressionKeepsNestedBrackets(t *testing.T) {
	src := `section S;
shared Q = let a = [x = 1], b = {1, 2} in b;
`
	members, err := ParseSectionMembers(src)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "let a = [x = 1], b = {1, 2} in b", members[0].Expression)
}

func TestQuotedMemberNames(t *testing.T) {
	src := `section Section1;
shared #"Query with space & #" = 1;
`
	members, err := ParseSectionMembers(src)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "Query with space & #", members[0].MemberName)
}
