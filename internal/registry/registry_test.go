package registry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trevorWieland/rentl-sub001/internal/model"
	"github.com/trevorWieland/rentl-sub001/internal/registry"
)

func echoTool(name string) registry.Tool {
	return registry.Tool{
		Name:        name,
		Description: "echoes its arguments",
		Invoke: func(ctx context.Context, args map[string]any) (any, error) {
			return args, nil
		},
	}
}

func TestToolsRegisterGetUnregister(t *testing.T) {
	tools := registry.NewTools()

	require.NoError(t, tools.Register(echoTool("glossary_lookup")))

	got, err := tools.Get("glossary_lookup")
	require.NoError(t, err)
	assert.Equal(t, "glossary_lookup", got.Name)

	require.NoError(t, tools.Unregister("glossary_lookup"))
	_, err = tools.Get("glossary_lookup")
	assert.ErrorIs(t, err, registry.ErrNotFound)
	assert.ErrorIs(t, tools.Unregister("glossary_lookup"), registry.ErrNotFound)
}

func TestToolsDuplicateRejected(t *testing.T) {
	tools := registry.NewTools()
	require.NoError(t, tools.Register(echoTool("tm_lookup")))
	err := tools.Register(echoTool("tm_lookup"))
	assert.ErrorIs(t, err, registry.ErrDuplicate)

	// The original registration is untouched.
	got, err := tools.Get("tm_lookup")
	require.NoError(t, err)
	assert.Equal(t, "echoes its arguments", got.Description)
}

func TestToolsInvalidNames(t *testing.T) {
	tools := registry.NewTools()
	for _, name := range []string{"", "3tool", "Tool", "tool-name", "tool name"} {
		err := tools.Register(echoTool(name))
		assert.ErrorIs(t, err, registry.ErrInvalidName, "name %q", name)
	}
	err := tools.Register(registry.Tool{Name: "broken"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no invoke function")
}

func TestToolsResolve(t *testing.T) {
	tools := registry.NewTools()
	require.NoError(t, tools.Register(echoTool("glossary_lookup")))
	require.NoError(t, tools.Register(echoTool("tm_lookup")))

	resolved, err := tools.Resolve([]string{"tm_lookup", "glossary_lookup"})
	require.NoError(t, err)
	require.Len(t, resolved, 2)
	assert.Equal(t, "tm_lookup", resolved[0].Name)

	_, err = tools.Resolve([]string{"tm_lookup", "web_search"})
	assert.ErrorIs(t, err, registry.ErrNotFound)

	assert.Equal(t, []string{"glossary_lookup", "tm_lookup"}, tools.Names())
}

func TestSchemasDecodeAndValidate(t *testing.T) {
	schemas, err := registry.DefaultSchemas()
	require.NoError(t, err)

	schema, err := schemas.Get(registry.SchemaTranslationResult)
	require.NoError(t, err)

	v, err := schema.Decode([]byte(`{"lines":[{"id":"s01:0001","translation":"Hello"}]}`))
	require.NoError(t, err)
	result, ok := v.(model.TranslationResult)
	require.True(t, ok)
	require.Len(t, result.Lines, 1)
	assert.Equal(t, "Hello", result.Lines[0].Translation)

	_, err = schema.Decode([]byte(`{"lines":`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "translation_result")
}

func TestSchemasDuplicateRejected(t *testing.T) {
	schemas, err := registry.DefaultSchemas()
	require.NoError(t, err)
	err = schemas.Register(registry.JSONSchema[model.QAFindings](registry.SchemaQAFindings, nil))
	assert.ErrorIs(t, err, registry.ErrDuplicate)

	assert.Equal(t,
		[]string{registry.SchemaContextNotes, registry.SchemaQAFindings, registry.SchemaTranslationResult},
		schemas.Names())
}
