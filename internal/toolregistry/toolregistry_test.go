package toolregistry

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type addArgs struct {
	A int `json:"a" jsonschema:"required,description=first addend"`
	B int `json:"b" jsonschema:"required,description=second addend"`
}

func addFunc(_ context.Context, args json.RawMessage) (any, error) {
	var a addArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return a.A + a.B, nil
}

func TestDispatchUnknownToolReturnsErrorString(t *testing.T) {
	r := New(nil)
	result, isError := r.Dispatch(context.Background(), "nonexistent", json.RawMessage(`{}`))
	assert.True(t, isError)
	assert.Contains(t, result, "unknown tool")
}

func TestDispatchSuccess(t *testing.T) {
	r := New(nil)
	schema, err := GenerateSchema[addArgs]()
	require.NoError(t, err)
	require.NoError(t, r.Register(ToolInfo{
		Name:       "add",
		Parameters: schema,
		Func:       addFunc,
		Strict:     true,
	}))

	result, isError := r.Dispatch(context.Background(), "add", json.RawMessage(`{"a":2,"b":3}`))
	require.False(t, isError)
	assert.Equal(t, "5", result)
}

func TestDispatchStrictRejectsMissingRequired(t *testing.T) {
	r := New(nil)
	schema, err := GenerateSchema[addArgs]()
	require.NoError(t, err)
	require.NoError(t, r.Register(ToolInfo{
		Name:       "add",
		Parameters: schema,
		Func:       addFunc,
		Strict:     true,
	}))

	result, isError := r.Dispatch(context.Background(), "add", json.RawMessage(`{"a":2}`))
	assert.True(t, isError)
	assert.Contains(t, result, "validation")
}

func TestDispatchRecoversPanic(t *testing.T) {
	r := New(nil)
	require.NoError(t, r.Register(ToolInfo{
		Name: "boom",
		Func: func(context.Context, json.RawMessage) (any, error) {
			panic("kaboom")
		},
	}))

	result, isError := r.Dispatch(context.Background(), "boom", json.RawMessage(`{}`))
	assert.True(t, isError)
	assert.Contains(t, result, "panicked")
	assert.Contains(t, result, "kaboom")
}

func TestDispatchToolError(t *testing.T) {
	r := New(nil)
	require.NoError(t, r.Register(ToolInfo{
		Name: "fails",
		Func: func(context.Context, json.RawMessage) (any, error) {
			return nil, assertError{"boom"}
		},
	}))

	result, isError := r.Dispatch(context.Background(), "fails", json.RawMessage(`{}`))
	assert.True(t, isError)
	assert.Contains(t, result, "boom")
}

type assertError struct{ msg string }

func (e assertError) Error() string { return e.msg }

func TestNormalizeArgumentsEmptyBecomesEmptyObject(t *testing.T) {
	assert.Equal(t, json.RawMessage(`{}`), NormalizeArguments(nil))
	assert.Equal(t, json.RawMessage(`{}`), NormalizeArguments([]byte("   ")))
}

func TestNormalizeArgumentsWrapsInvalidJSON(t *testing.T) {
	out := NormalizeArguments([]byte("not json"))
	var decoded map[string]string
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.Equal(t, "not json", decoded["_raw"])
}

func TestToolSpecsFiltersByAllowedList(t *testing.T) {
	r := New(nil)
	require.NoError(t, r.Register(ToolInfo{Name: "a", Func: addFunc}))
	require.NoError(t, r.Register(ToolInfo{Name: "b", Func: addFunc}))

	specs := r.ToolSpecs([]string{"a", "missing"})
	require.Len(t, specs, 1)
	assert.Equal(t, "a", specs[0].Name)
}
