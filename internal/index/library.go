package index

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/aidanlsb/crate/internal/record"
)

// Library is a flattened media library ready to be indexed.
type Library struct {
	Records []*record.Record
	Sets    []NamedSet
}

// NamedSet is a named, ordered list of record keys (a playlist).
type NamedSet struct {
	Name string
	Keys []string
}

// Source returns an in-memory source over the library.
func (l *Library) Source() *record.MemorySource {
	src := record.NewMemorySource(l.Records...)
	for _, set := range l.Sets {
		src.AddNamedSet(set.Name, set.Keys...)
	}
	return src
}

type node = map[string]any

// libraryFile is the on-disk YAML layout. Artists nest albums and tracks;
// shows nest seasons and episodes.
type libraryFile struct {
	Artists   []node `yaml:"artists"`
	Shows     []node `yaml:"shows"`
	Movies    []node `yaml:"movies"`
	Playlists []node `yaml:"playlists"`
}

// Keys in a library node that carry structure rather than attributes.
const (
	fieldAlbums   = "albums"
	fieldTracks   = "tracks"
	fieldSeasons  = "seasons"
	fieldEpisodes = "episodes"
	fieldFile     = "file"
	fieldItems    = "items"
)

// inherited lists the attributes a child copies from its parent and
// grandparent when it does not set them itself.
var inherited = []struct {
	attr       string
	from       string
	generation int
}{
	{"parentKey", "key", 1},
	{"parentTitle", "title", 1},
	{"parentYear", "year", 1},
	{"parentOriginallyAvailableAt", "originallyAvailableAt", 1},
	{"parentIndex", "index", 1},
	{"grandparentKey", "key", 2},
	{"grandparentTitle", "title", 2},
}

// ParseLibrary parses one YAML library document.
func ParseLibrary(data []byte) (*Library, error) {
	var file libraryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse library: %w", err)
	}

	b := &builder{}
	b.walk("artists", file.Artists, []record.Kind{record.KindArtist, record.KindAlbum, record.KindTrack}, []string{fieldAlbums, fieldTracks}, nil)
	b.walk("shows", file.Shows, []record.Kind{record.KindShow, record.KindSeason, record.KindEpisode}, []string{fieldSeasons, fieldEpisodes}, nil)
	b.walk("movies", file.Movies, []record.Kind{record.KindMovie}, nil, nil)
	b.playlists(file.Playlists)

	if err := b.errs.ErrorOrNil(); err != nil {
		return nil, err
	}
	return &Library{Records: b.records, Sets: b.sets}, nil
}

// LoadFiles reads and parses library files concurrently and merges them in
// argument order.
func LoadFiles(ctx context.Context, paths []string) (*Library, error) {
	parts := make([]*Library, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			lib, err := ParseLibrary(data)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			parts[i] = lib
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return Merge(parts...)
}

// Merge concatenates libraries. Record keys must be unique across all of them;
// a playlist name seen again replaces the earlier playlist.
func Merge(parts ...*Library) (*Library, error) {
	out := &Library{}
	seen := make(map[string]bool)
	setIndex := make(map[string]int)
	var errs *multierror.Error

	for _, part := range parts {
		for _, r := range part.Records {
			if seen[r.Key()] {
				errs = multierror.Append(errs, fmt.Errorf("duplicate key %q (%s)", r.Key(), r.Title()))
				continue
			}
			seen[r.Key()] = true
			out.Records = append(out.Records, r)
		}
		for _, set := range part.Sets {
			if i, ok := setIndex[set.Name]; ok {
				out.Sets[i] = set
				continue
			}
			setIndex[set.Name] = len(out.Sets)
			out.Sets = append(out.Sets, set)
		}
	}
	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}
	return out, nil
}

type builder struct {
	records []*record.Record
	sets    []NamedSet
	keys    map[string]string
	errs    *multierror.Error
}

func (b *builder) fail(path string, format string, args ...any) {
	b.errs = multierror.Append(b.errs, fmt.Errorf("%s: %s", path, fmt.Sprintf(format, args...)))
}

// walk flattens nodes of kinds[0], descending through childFields for the
// remaining kinds. ancestors holds the attribute bags of the enclosing nodes,
// nearest first.
func (b *builder) walk(path string, nodes []node, kinds []record.Kind, childFields []string, ancestors []map[string][]string) {
	for i, n := range nodes {
		at := fmt.Sprintf("%s[%d]", path, i)
		attrs, children := b.attributes(at, n)
		if attrs == nil {
			continue
		}
		for _, inh := range inherited {
			if inh.generation > len(ancestors) {
				continue
			}
			if _, set := attrs[inh.attr]; set {
				continue
			}
			if v := ancestors[inh.generation-1][inh.from]; len(v) > 0 {
				attrs[inh.attr] = v
			}
		}

		b.add(at, record.New(kinds[0], record.NewAttrs(attrs), mediaChildren(n)...))

		if len(childFields) == 0 {
			continue
		}
		nested, err := nodeList(children[childFields[0]])
		if err != nil {
			b.fail(at, "%s: %v", childFields[0], err)
			continue
		}
		b.walk(at+"."+childFields[0], nested, kinds[1:], childFields[1:], append([]map[string][]string{attrs}, ancestors...))
	}
}

func (b *builder) add(path string, r *record.Record) {
	if b.keys == nil {
		b.keys = make(map[string]string)
	}
	if prev, dup := b.keys[r.Key()]; dup {
		b.fail(path, "duplicate key %q (first used at %s)", r.Key(), prev)
		return
	}
	b.keys[r.Key()] = path
	b.records = append(b.records, r)
}

func (b *builder) playlists(nodes []node) {
	for i, n := range nodes {
		at := fmt.Sprintf("playlists[%d]", i)
		attrs, children := b.attributes(at, n)
		if attrs == nil {
			continue
		}
		name := strings.Join(attrs[record.AttrTitle], "")
		if name == "" {
			b.fail(at, "playlist has no title")
			continue
		}
		items, err := scalarList(children[fieldItems])
		if err != nil {
			b.fail(at, "items: %v", err)
			continue
		}
		if _, set := attrs["playlistType"]; !set {
			attrs["playlistType"] = []string{"audio"}
		}
		attrs["leafCount"] = []string{strconv.Itoa(len(items))}

		b.add(at, record.New(record.KindPlaylist, record.NewAttrs(attrs)))
		b.sets = append(b.sets, NamedSet{Name: name, Keys: items})
	}
}

// attributes splits a node into its attribute values and its structural
// fields. It returns nil attributes when the node is unusable.
func (b *builder) attributes(path string, n node) (map[string][]string, map[string]any) {
	attrs := make(map[string][]string, len(n))
	children := make(map[string]any)
	for name, raw := range n {
		switch name {
		case fieldAlbums, fieldTracks, fieldSeasons, fieldEpisodes, fieldItems:
			children[name] = raw
			continue
		case fieldFile:
			continue
		}
		values, err := scalarList(raw)
		if err != nil {
			b.fail(path, "%s: %v", name, err)
			return nil, nil
		}
		if len(values) > 0 {
			attrs[name] = values
		}
	}
	if len(attrs[record.AttrKey]) != 1 {
		b.fail(path, "missing key")
		return nil, nil
	}
	return attrs, children
}

// mediaChildren turns the node's file (a path or a list of paths) into
// Media/Part children.
func mediaChildren(n node) []*record.Record {
	files, err := scalarList(n[fieldFile])
	if err != nil || len(files) == 0 {
		return nil
	}
	parts := make([]*record.Record, len(files))
	for i, f := range files {
		parts[i] = record.NewTagged("Part", record.NewAttrs(map[string][]string{"file": {f}}))
	}
	return []*record.Record{record.NewTagged("Media", record.Attrs{}, parts...)}
}

func nodeList(raw any) ([]node, error) {
	if raw == nil {
		return nil, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("expected a list, got %T", raw)
	}
	out := make([]node, 0, len(list))
	for _, item := range list {
		n, ok := item.(node)
		if !ok {
			return nil, fmt.Errorf("expected a mapping, got %T", item)
		}
		out = append(out, n)
	}
	return out, nil
}

// scalarList flattens a scalar or a list of scalars into strings.
func scalarList(raw any) ([]string, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, err := scalarString(item)
			if err != nil {
				return nil, err
			}
			out = append(out, s)
		}
		return out, nil
	default:
		s, err := scalarString(v)
		if err != nil {
			return nil, err
		}
		return []string{s}, nil
	}
}

func scalarString(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case int:
		return strconv.Itoa(val), nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	case bool:
		if val {
			return "1", nil
		}
		return "0", nil
	case time.Time:
		if val.Hour() == 0 && val.Minute() == 0 && val.Second() == 0 {
			return val.Format("2006-01-02"), nil
		}
		return val.Format(time.RFC3339), nil
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return "", fmt.Errorf("unexpected mapping with keys %s", strings.Join(keys, ", "))
	default:
		return "", fmt.Errorf("unsupported value %v (%T)", v, v)
	}
}
