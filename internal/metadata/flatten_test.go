package metadata_test

import (
	"testing"

	"github.com/smallbiznis/paybridge/internal/metadata"
	"github.com/stretchr/testify/assert"
)

func TestFlattenNested(t *testing.T) {
	in := map[string]any{
		"payment_uuid": "abc-123",
		"order": map[string]any{
			"id":       int64(42),
			"shipping": map[string]any{"city": "Berlin", "zip": "10115"},
		},
		"tags": []any{"first", "second"},
	}

	out := metadata.Flatten(in)

	assert.Equal(t, "abc-123", out["payment_uuid"])
	assert.Equal(t, int64(42), out["order.id"])
	assert.Equal(t, "Berlin", out["order.shipping.city"])
	assert.Equal(t, "10115", out["order.shipping.zip"])
	assert.Equal(t, "first", out["tags.0"])
	assert.Equal(t, "second", out["tags.1"])
	assert.Len(t, out, 6)
}

func TestFlattenMixedNesting(t *testing.T) {
	in := map[string]any{
		"items": []any{
			map[string]any{"name": "widget", "qty": 2},
			map[string]any{"name": "gadget", "opts": []any{"a", "b"}},
		},
	}

	out := metadata.Flatten(in)

	assert.Equal(t, "widget", out["items.0.name"])
	assert.Equal(t, 2, out["items.0.qty"])
	assert.Equal(t, "gadget", out["items.1.name"])
	assert.Equal(t, "a", out["items.1.opts.0"])
	assert.Equal(t, "b", out["items.1.opts.1"])
}

func TestFlattenIdempotent(t *testing.T) {
	in := map[string]any{
		"a": map[string]any{"b": map[string]any{"c": 1}},
		"d": "plain",
	}

	once := metadata.Flatten(in)
	twice := metadata.Flatten(once)

	assert.Equal(t, once, twice)
}

func TestFlattenDeepNesting(t *testing.T) {
	leaf := map[string]any{"leaf": "value"}
	nested := any(leaf)
	for i := 0; i < 11; i++ {
		nested = map[string]any{"n": nested}
	}

	out := metadata.Flatten(map[string]any{"root": nested})

	assert.Equal(t, "value", out["root.n.n.n.n.n.n.n.n.n.n.n.leaf"])
	assert.Len(t, out, 1)
}

func TestFlattenEmpty(t *testing.T) {
	assert.Empty(t, metadata.Flatten(map[string]any{}))
	assert.Empty(t, metadata.Flatten(nil))
}

func TestStringify(t *testing.T) {
	out := metadata.Stringify(map[string]any{
		"s": "text",
		"i": int64(7),
		"f": 1.5,
		"b": true,
		"n": nil,
	})

	assert.Equal(t, map[string]string{
		"s": "text",
		"i": "7",
		"f": "1.5",
		"b": "true",
		"n": "",
	}, out)
}
