package whisper

import (
	"context"
	"testing"

	"github.com/fmueller/voxserve/internal/transcript"
	"github.com/stretchr/testify/require"
)

type stubEngine struct{ name string }

func (s stubEngine) Generate(context.Context, Request) (transcript.Result, error) {
	return transcript.Result{Text: s.name}, nil
}

func TestRegistryLookupIsCaseInsensitive(t *testing.T) {
	t.Parallel()

	registry, err := NewRegistry(map[string]Engine{"Whisper-1": stubEngine{name: "w1"}, "large": stubEngine{name: "l"}})
	require.NoError(t, err)

	engine, ok := registry.Lookup("WHISPER-1")
	require.True(t, ok)
	require.Equal(t, stubEngine{name: "w1"}, engine)

	_, ok = registry.Lookup("whisper-2")
	require.False(t, ok)

	require.Equal(t, []string{"large", "whisper-1"}, registry.Names())
}

func TestRegistryRejectsInvalidEntries(t *testing.T) {
	t.Parallel()

	_, err := NewRegistry(nil)
	require.Error(t, err)

	_, err = NewRegistry(map[string]Engine{" ": stubEngine{}})
	require.Error(t, err)

	_, err = NewRegistry(map[string]Engine{"a": nil})
	require.Error(t, err)

	_, err = NewRegistry(map[string]Engine{"A": stubEngine{}, "a": stubEngine{}})
	require.Error(t, err)
	require.Contains(t, err.Error(), "more than once")
}

func TestLanguages(t *testing.T) {
	t.Parallel()

	name, ok := LanguageName("EN")
	require.True(t, ok)
	require.Equal(t, "english", name)

	_, ok = LanguageName("xx")
	require.False(t, ok)

	require.Equal(t, AutoLanguage, NormalizeLanguage("  "))
	require.Equal(t, "de", NormalizeLanguage("DE"))
	require.Len(t, LanguageCodes(), 57)
	require.Equal(t, "af", LanguageCodes()[0])
}
