package rewrite

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

var errNotFound = errors.New("not found")

// mapperFor resolves identifiers from a fixed table.
func mapperFor(table map[string][2]string) URLMapper {
	return func(identifier string) (string, string, error) {
		if entry, ok := table[identifier]; ok {
			return entry[0], entry[1], nil
		}
		return "", "", fmt.Errorf("%w: %q", errNotFound, identifier)
	}
}

func TestFixRefs_ResolvedInternal(t *testing.T) {
	mapper := mapperFor(map[string][2]string{"x": {"other/#x", ""}})

	out, unmapped := FixRefs(`<p><autoref identifier="x">Target</autoref></p>`, mapper, Options{})
	require.Empty(t, unmapped)
	require.Equal(t, `<p><a class="autorefs autorefs-internal" href="other/#x">Target</a></p>`, out)
}

func TestFixRefs_ResolvedExternal(t *testing.T) {
	mapper := mapperFor(map[string][2]string{"x": {"https://example.com/#x", ""}})

	out, unmapped := FixRefs(`<autoref identifier="x">Target</autoref>`, mapper, Options{})
	require.Empty(t, unmapped)
	require.Equal(t, `<a class="autorefs autorefs-external" href="https://example.com/#x">Target</a>`, out)
}

func TestFixRefs_SlugFallback(t *testing.T) {
	mapper := mapperFor(map[string][2]string{"foo": {"foo/#foo", ""}})

	out, unmapped := FixRefs(`<autoref identifier="Foo" slug="foo">Foo</autoref>`, mapper, Options{})
	require.Empty(t, unmapped)
	require.Contains(t, out, `href="foo/#foo"`)
}

func TestFixRefs_OptionalUnresolvedBecomesSpan(t *testing.T) {
	mapper := mapperFor(nil)

	out, unmapped := FixRefs(`<autoref identifier="missing" optional>Label</autoref>`, mapper, Options{})
	require.Empty(t, unmapped, "optional references never count as unmapped")
	require.Equal(t, `<span title="missing">Label</span>`, out)
}

func TestFixRefs_UnresolvedShapes(t *testing.T) {
	mapper := mapperFor(nil)

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain label equals identifier", `<autoref identifier="missing">missing</autoref>`, `[missing][]`},
		{"code label equals identifier", `<autoref identifier="missing"><code>missing</code></autoref>`, `[<code>missing</code>][]`},
		{"distinct label", `<autoref identifier="missing">Label</autoref>`, `[Label][missing]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, unmapped := FixRefs(tt.in, mapper, Options{})
			require.Equal(t, tt.want, out)
			require.Len(t, unmapped, 1)
			require.Equal(t, "missing", unmapped[0].Identifier)
		})
	}
}

func TestFixRefs_Idempotent(t *testing.T) {
	mapper := mapperFor(map[string][2]string{"x": {"other/#x", ""}})
	in := `<autoref identifier="x">x</autoref> and <autoref identifier="gone">gone</autoref>`

	once, _ := FixRefs(in, mapper, Options{})
	twice, unmapped := FixRefs(once, mapper, Options{})
	require.Equal(t, once, twice)
	require.Empty(t, unmapped)
}

func TestFixRefs_MarkerWithoutIdentifierUntouched(t *testing.T) {
	in := `<autoref foo="bar">x</autoref>`
	out, unmapped := FixRefs(in, mapperFor(nil), Options{})
	require.Equal(t, in, out)
	require.Empty(t, unmapped)
}

func TestFixRefs_TitleAlways(t *testing.T) {
	mapper := mapperFor(map[string][2]string{"x": {"other/#x", "Other Title"}})

	out, _ := FixRefs(`<autoref identifier="x">Target</autoref>`, mapper, Options{LinkTitles: TitlesAlways})
	require.Equal(t, `<a class="autorefs autorefs-internal" title="Other Title" href="other/#x">Target</a>`, out)
}

func TestFixRefs_TitleSuppressedWhenLabelShowsIt(t *testing.T) {
	mapper := mapperFor(map[string][2]string{"x": {"other/#x", "Other Title"}})

	out, _ := FixRefs(`<autoref identifier="x">Other Title</autoref>`, mapper, Options{LinkTitles: TitlesAlways})
	require.NotContains(t, out, "title=")
}

func TestFixRefs_TitleExternalOnly(t *testing.T) {
	mapper := mapperFor(map[string][2]string{
		"in":  {"other/#in", "Internal"},
		"out": {"https://example.com/#out", "External"},
	})
	opts := Options{LinkTitles: TitlesExternal}

	internal, _ := FixRefs(`<autoref identifier="in">A</autoref>`, mapper, opts)
	require.NotContains(t, internal, "title=")

	external, _ := FixRefs(`<autoref identifier="out">B</autoref>`, mapper, opts)
	require.Contains(t, external, `title="External"`)
}

func TestFixRefs_TitleNever(t *testing.T) {
	mapper := mapperFor(map[string][2]string{"x": {"other/#x", "Other Title"}})

	out, _ := FixRefs(`<autoref identifier="x">Target</autoref>`, mapper, Options{LinkTitles: TitlesNever})
	require.NotContains(t, out, "title=")
}

func TestFixRefs_OptionalTooltipCarriesIdentifier(t *testing.T) {
	mapper := mapperFor(map[string][2]string{"pkg.Func": {"api/#pkg.Func", ""}})

	out, _ := FixRefs(`<autoref identifier="pkg.Func" optional>Func</autoref>`, mapper,
		Options{LinkTitles: TitlesAlways, StripTitleTags: true})
	require.Contains(t, out, `title="pkg.Func"`)
}

func TestFixRefs_StripTitleTags(t *testing.T) {
	mapper := mapperFor(map[string][2]string{"x": {"other/#x", "<em>Fancy</em>"}})

	out, _ := FixRefs(`<autoref identifier="x">Target</autoref>`, mapper,
		Options{LinkTitles: TitlesAlways, StripTitleTags: true})
	require.Contains(t, out, `title="Fancy"`)
}

func TestFixRefs_ClassAndPassthroughAttrs(t *testing.T) {
	mapper := mapperFor(map[string][2]string{"x": {"other/#x", ""}})

	out, _ := FixRefs(`<autoref identifier="x" class="custom" data-extra="1">T</autoref>`, mapper, Options{})
	require.Equal(t, `<a class="autorefs autorefs-internal custom" href="other/#x" data-extra="1">T</a>`, out)
}

func TestFixRefs_RecordsBacklinks(t *testing.T) {
	type call struct{ identifier, kind, anchor string }
	var calls []call
	opts := Options{RecordBacklink: func(identifier, kind, anchor string) {
		calls = append(calls, call{identifier, kind, anchor})
	}}

	// Recording happens regardless of whether the reference resolves.
	in := `<autoref identifier="x" backlink-type="referenced-by" backlink-anchor="sec">x</autoref>` +
		`<autoref identifier="gone" backlink-type="referenced-by" backlink-anchor="sec">gone</autoref>` +
		`<autoref identifier="plain">plain</autoref>`
	mapper := mapperFor(map[string][2]string{"x": {"other/#x", ""}})
	_, _ = FixRefs(in, mapper, opts)

	require.Equal(t, []call{
		{"x", "referenced-by", "sec"},
		{"gone", "referenced-by", "sec"},
	}, calls)
}

func TestFixRefs_UnmappedContext(t *testing.T) {
	in := `<autoref identifier="gone" domain="py" role="class" origin="pkg.Gone" filepath="src/pkg.py" lineno="42">gone</autoref>`
	_, unmapped := FixRefs(in, mapperFor(nil), Options{})
	require.Len(t, unmapped, 1)
	require.NotNil(t, unmapped[0].Context)
	require.Equal(t, "py", unmapped[0].Context.Domain)
	require.Equal(t, "class", unmapped[0].Context.Role)
	require.Equal(t, "src/pkg.py", unmapped[0].Context.Filepath)
	require.Equal(t, 42, unmapped[0].Context.Lineno)
}

type prefixHook struct {
	prefix string
	ctx    Context
}

func (h prefixHook) ExpandIdentifier(identifier string) string { return h.prefix + identifier }
func (h prefixHook) Context() Context                          { return h.ctx }

func TestFixRefs_HookExpandsIdentifiers(t *testing.T) {
	mapper := mapperFor(map[string][2]string{"pkg.Thing": {"api/#pkg.Thing", ""}})
	opts := Options{Hook: prefixHook{prefix: "pkg."}}

	out, unmapped := FixRefs(`<autoref identifier="Thing">Thing</autoref>`, mapper, opts)
	require.Empty(t, unmapped)
	require.Contains(t, out, `href="api/#pkg.Thing"`)
}

func TestFixRefs_HookContextOnUnmapped(t *testing.T) {
	hook := prefixHook{ctx: Context{Domain: "py", Role: "func", Origin: "pkg.gone", Filepath: "src/pkg.py", Lineno: 7}}

	_, unmapped := FixRefs(`<autoref identifier="gone">gone</autoref>`, mapperFor(nil), Options{Hook: hook})
	require.Len(t, unmapped, 1)
	require.NotNil(t, unmapped[0].Context)
	require.Equal(t, "src/pkg.py", unmapped[0].Context.Filepath)
	require.Equal(t, 7, unmapped[0].Context.Lineno)
}

func TestStripTags(t *testing.T) {
	require.Equal(t, "Hi there", StripTags("<em>Hi</em> there"))
	require.Equal(t, "plain", StripTags("plain"))
}
