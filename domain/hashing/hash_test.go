package hashing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loom-backend/domain/core/valueobjects"
)

func mustContent(t *testing.T, text string) valueobjects.NodeContent {
	t.Helper()
	content, err := valueobjects.NewTextContent(text)
	require.NoError(t, err)
	return content
}

func TestCanonicalJSONSortsKeysRecursively(t *testing.T) {
	a, err := CanonicalJSON(map[string]interface{}{
		"zebra": 1,
		"alpha": map[string]interface{}{"y": true, "x": "hello"},
	})
	require.NoError(t, err)

	b, err := CanonicalJSON(map[string]interface{}{
		"alpha": map[string]interface{}{"x": "hello", "y": true},
		"zebra": 1,
	})
	require.NoError(t, err)

	assert.Equal(t, string(a), string(b))
	assert.Equal(t, `{"alpha":{"x":"hello","y":true},"zebra":1}`, string(a))
}

func TestCanonicalJSONPreservesArrayOrder(t *testing.T) {
	a, err := CanonicalJSON([]interface{}{"first", "second"})
	require.NoError(t, err)
	b, err := CanonicalJSON([]interface{}{"second", "first"})
	require.NoError(t, err)

	assert.NotEqual(t, string(a), string(b))
}

func TestCanonicalJSONRejectsUnsupportedTypes(t *testing.T) {
	_, err := CanonicalJSON(struct{ A int }{A: 1})
	assert.Error(t, err)
}

func TestHumanContentHashDeterminism(t *testing.T) {
	content := mustContent(t, "Hello")
	createdAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	agentID := valueobjects.NewAgentID()
	parents := []string{"b" + repeat63(t), "a" + repeat63(t)}

	first, err := ComputeHumanContentHash(content, parents, createdAt, agentID)
	require.NoError(t, err)
	second, err := ComputeHumanContentHash(content, parents, createdAt, agentID)
	require.NoError(t, err)

	assert.True(t, first.Equals(second))
	assert.Len(t, first.String(), 64)
}

func TestParentHashOrderDoesNotMatter(t *testing.T) {
	content := mustContent(t, "Hello")
	createdAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	agentID := valueobjects.NewAgentID()

	h1 := "a" + repeat63(t)
	h2 := "b" + repeat63(t)

	forward, err := ComputeHumanContentHash(content, []string{h1, h2}, createdAt, agentID)
	require.NoError(t, err)
	reversed, err := ComputeHumanContentHash(content, []string{h2, h1}, createdAt, agentID)
	require.NoError(t, err)

	assert.True(t, forward.Equals(reversed))
}

func TestHumanContentHashSensitivity(t *testing.T) {
	baseContent := mustContent(t, "Hello")
	baseCreatedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	baseAgent := valueobjects.NewAgentID()
	baseParents := []string{"a" + repeat63(t)}

	base, err := ComputeHumanContentHash(baseContent, baseParents, baseCreatedAt, baseAgent)
	require.NoError(t, err)

	tests := []struct {
		name      string
		content   valueobjects.NodeContent
		parents   []string
		createdAt time.Time
		agentID   valueobjects.AgentID
	}{
		{"changed content", mustContent(t, "Hello!"), baseParents, baseCreatedAt, baseAgent},
		{"changed parent hash", baseContent, []string{"b" + repeat63(t)}, baseCreatedAt, baseAgent},
		{"added parent hash", baseContent, append([]string{"b" + repeat63(t)}, baseParents...), baseCreatedAt, baseAgent},
		{"changed timestamp", baseContent, baseParents, baseCreatedAt.Add(time.Nanosecond), baseAgent},
		{"changed author", baseContent, baseParents, baseCreatedAt, valueobjects.NewAgentID()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ComputeHumanContentHash(tt.content, tt.parents, tt.createdAt, tt.agentID)
			require.NoError(t, err)
			assert.False(t, base.Equals(got))
		})
	}
}

func TestModelContentHashBindsRawResponse(t *testing.T) {
	content := mustContent(t, "Hi there")
	createdAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	agentID := valueobjects.NewAgentID()
	parents := []string{"a" + repeat63(t)}

	rawA := HashRawResponse([]byte("HTTP/1.1 200 OK\r\n"), []byte(`{"id":"cmpl-1"}`))
	rawB := HashRawResponse([]byte("HTTP/1.1 200 OK\r\n"), []byte(`{"id":"cmpl-2"}`))
	require.NotEqual(t, rawA, rawB)

	withA, err := ComputeModelContentHash(content, parents, createdAt, agentID, rawA)
	require.NoError(t, err)
	withB, err := ComputeModelContentHash(content, parents, createdAt, agentID, rawB)
	require.NoError(t, err)

	assert.False(t, withA.Equals(withB))

	// A human hash over the same fields must not collide with the model hash
	human, err := ComputeHumanContentHash(content, parents, createdAt, agentID)
	require.NoError(t, err)
	assert.False(t, human.Equals(withA))
}

func TestModelContentHashRequiresRawResponseHash(t *testing.T) {
	content := mustContent(t, "Hi there")
	_, err := ComputeModelContentHash(content, nil, time.Now(), valueobjects.NewAgentID(), "")
	assert.Error(t, err)
}

func TestHashRawResponseCoversHeadersAndBody(t *testing.T) {
	base := HashRawResponse([]byte("h"), []byte("b"))

	assert.NotEqual(t, base, HashRawResponse([]byte("h2"), []byte("b")))
	assert.NotEqual(t, base, HashRawResponse([]byte("h"), []byte("b2")))
	assert.Equal(t, base, HashRawResponse([]byte("h"), []byte("b")))
}

func repeat63(t *testing.T) string {
	t.Helper()
	s := ""
	for i := 0; i < 63; i++ {
		s += "0"
	}
	return s
}
