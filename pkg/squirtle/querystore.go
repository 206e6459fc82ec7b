package squirtle

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

type QueryConfig struct {
	Table          string   `yaml:"table"`
	QueryFilePaths []string `yaml:"query_file"`
}

// QueryConfigStore lists, per table, the .sql files holding its named
// queries. File paths resolve against the filesystem the store was loaded
// from.
type QueryConfigStore struct {
	fsys    fs.FS
	Configs []QueryConfig
}

type QueryMapper map[string]string

const DefaultQueryStoreConfigLocation = "config/querystore.yaml"

var (
	ErrTableNotFound = errors.New("config for table not found")
	ErrNoQueryFiles  = errors.New("missing query file")
)

// queryNamePattern matches the `sql:Name` line that opens every query.
var queryNamePattern = regexp.MustCompile(`(?m)sql:(\w+)$`)

// LoadAll reads the store config from the working directory.
func LoadAll(configFilePath ...string) (QueryConfigStore, error) {
	if len(configFilePath) == 0 {
		configFilePath = append(configFilePath, DefaultQueryStoreConfigLocation)
	}

	return LoadFS(os.DirFS("."), configFilePath[0])
}

// LoadFS reads the store config at path inside fsys, e.g. an embed.FS.
func LoadFS(fsys fs.FS, path string) (QueryConfigStore, error) {
	store := QueryConfigStore{fsys: fsys}

	byt, err := fs.ReadFile(fsys, path)
	if err != nil {
		return store, fmt.Errorf("failed to read query config file: %w", err)
	}

	if err := yaml.Unmarshal(byt, &store.Configs); err != nil {
		return store, fmt.Errorf("invalid query config structure: %w", err)
	}

	return store, nil
}

func (qs QueryConfigStore) HydrateQueryStore(tableName string) (QueryMapper, error) {
	var config *QueryConfig
	var store = make(QueryMapper)

	for i := range qs.Configs {
		if qs.Configs[i].Table == tableName {
			config = &qs.Configs[i]
			break
		}
	}

	if config == nil {
		return store, ErrTableNotFound
	}

	if len(config.QueryFilePaths) == 0 {
		return store, ErrNoQueryFiles
	}

	fsys := qs.fsys
	if fsys == nil {
		fsys = os.DirFS(".")
	}

	for _, path := range config.QueryFilePaths {
		byt, err := fs.ReadFile(fsys, path)
		if err != nil {
			return store, err
		}

		for name, query := range ParseQueries(string(byt)) {
			store[name] = query
		}
	}

	return store, nil
}

// ParseQueries splits a .sql file on "--" comment markers and keys every
// block by its `sql:Name` tag. Blocks without a tag are skipped.
func ParseQueries(queries string) QueryMapper {
	store := make(QueryMapper)

	for _, block := range strings.Split(queries, "--") {
		res := queryNamePattern.FindStringSubmatch(block)
		if len(res) < 2 {
			continue
		}

		store[res[1]] = strings.TrimSpace(queryNamePattern.ReplaceAllString(block, ""))
	}

	return store
}

func (qmap QueryMapper) Keys() []string {
	keys := []string{}

	for k := range qmap {
		keys = append(keys, k)
	}

	return keys
}

func (qmap QueryMapper) GetQuery(queryName string) (string, bool) {
	v, ok := qmap[queryName]
	return v, ok
}

// MustGetQuery is for queries the caller cannot run without.
func (qmap QueryMapper) MustGetQuery(queryName string) string {
	v, ok := qmap[queryName]
	if !ok {
		panic("squirtle: missing query " + queryName)
	}

	return v
}
