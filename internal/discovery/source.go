package discovery

import (
	"errors"
	"fmt"
	"os"
	"plugin"
	"strings"
	"unicode"
	"unicode/utf8"

	"gocut/internal/binfmt"
)

// ErrSymbolNotFound is returned by Lookup for names a source does not
// export.
var ErrSymbolNotFound = errors.New("symbol not found")

// SymbolSource enumerates and resolves the exported symbols of a module.
type SymbolSource interface {
	Symbols() ([]string, error)
	Lookup(name string) (any, error)
}

// StaticSource is an in-memory symbol table. Exported entries are listed
// and resolvable in export order; static entries model symbols that exist
// in the module but are not exported, so they are neither.
type StaticSource struct {
	order   []string
	symbols map[string]any
	static  map[string]any
}

func NewStaticSource() *StaticSource {
	return &StaticSource{symbols: make(map[string]any), static: make(map[string]any)}
}

// Export adds an exported symbol.
func (s *StaticSource) Export(name string, v any) *StaticSource {
	if _, ok := s.symbols[name]; !ok {
		s.order = append(s.order, name)
	}
	s.symbols[name] = v
	return s
}

// Static adds a symbol with internal linkage.
func (s *StaticSource) Static(name string, v any) *StaticSource {
	s.static[name] = v
	return s
}

func (s *StaticSource) Symbols() ([]string, error) {
	return append([]string(nil), s.order...), nil
}

func (s *StaticSource) Lookup(name string) (any, error) {
	v, ok := s.symbols[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSymbolNotFound, name)
	}
	return v, nil
}

// PluginSource exposes the package-level functions of a Go plugin under
// their conventional lower-case names: Go only exports capitalised
// identifiers, so Test_add is reported as test_add.
type PluginSource struct {
	plugin *plugin.Plugin
	order  []string
	names  map[string]string
}

// OpenPlugin opens a Go plugin. Its symbol names are read from the
// object's export table since the plugin package cannot enumerate them.
func OpenPlugin(path string) (*PluginSource, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	exports, err := binfmt.Exports(f)
	if err != nil {
		return nil, err
	}

	src := &PluginSource{plugin: p, names: make(map[string]string)}
	for _, sym := range exports {
		ident, ok := packageIdent(sym)
		if !ok {
			continue
		}
		name := foldFirst(ident)
		if _, seen := src.names[name]; seen {
			continue
		}
		if _, err := p.Lookup(ident); err != nil {
			continue
		}
		src.names[name] = ident
		src.order = append(src.order, name)
	}
	return src, nil
}

// packageIdent extracts Ident from a linker symbol "path/to/pkg.Ident".
// Methods, closures and unexported names are rejected.
func packageIdent(sym string) (string, bool) {
	base := sym
	if i := strings.LastIndexByte(base, '/'); i >= 0 {
		base = base[i+1:]
	}
	dot := strings.IndexByte(base, '.')
	if dot < 0 {
		return "", false
	}
	ident := base[dot+1:]
	if ident == "" || strings.ContainsAny(ident, ".()*[]-") {
		return "", false
	}
	r, _ := utf8.DecodeRuneInString(ident)
	if !unicode.IsUpper(r) {
		return "", false
	}
	return ident, true
}

func foldFirst(s string) string {
	r, n := utf8.DecodeRuneInString(s)
	return string(unicode.ToLower(r)) + s[n:]
}

func (s *PluginSource) Symbols() ([]string, error) {
	return append([]string(nil), s.order...), nil
}

func (s *PluginSource) Lookup(name string) (any, error) {
	ident, ok := s.names[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSymbolNotFound, name)
	}
	return s.plugin.Lookup(ident)
}

// ImageSource lists the exports of a native image that Go cannot load,
// such as a PE DLL. Its symbols can be listed but never called.
type ImageSource struct {
	path  string
	names []string
}

// OpenImage reads the export table of the object at path.
func OpenImage(path string) (*ImageSource, error) {
	names, _, err := binfmt.ExportsFile(path)
	if err != nil {
		return nil, err
	}
	return &ImageSource{path: path, names: names}, nil
}

func (s *ImageSource) Symbols() ([]string, error) {
	return append([]string(nil), s.names...), nil
}

func (s *ImageSource) Lookup(name string) (any, error) {
	return nil, fmt.Errorf("%w: %s: %s is a native image", ErrSymbolNotFound, name, s.path)
}

// OpenModule opens the module at path by its object format: ELF objects
// are loaded as Go plugins, PE images are listed through ImageSource.
func OpenModule(path string) (SymbolSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	format := binfmt.Detect(f)
	f.Close()

	switch format {
	case binfmt.FormatELF:
		src, err := OpenPlugin(path)
		if err != nil {
			return nil, err
		}
		return src, nil
	case binfmt.FormatPE:
		src, err := OpenImage(path)
		if err != nil {
			return nil, err
		}
		return src, nil
	}
	return nil, fmt.Errorf("%s: %w", path, binfmt.ErrUnknownFormat)
}
