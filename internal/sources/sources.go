// Package sources loads the source-to-table configuration and holds the
// snapshot currently in effect.
package sources

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"lake-loader/internal/domain"
	"lake-loader/internal/storage/objectstore"
)

// File is the YAML configuration file layout.
//
//	sources:
//	  - bucket: my-bucket
//	    prefix: ^somepath/
//	    partitions: [date]
//	    tablepath: s3://lake/events
type File struct {
	Sources []Entry `yaml:"sources"`
}

// Entry is one source in the configuration file.
type Entry struct {
	Bucket     string   `yaml:"bucket"`
	Prefix     string   `yaml:"prefix"`
	Partitions []string `yaml:"partitions"`
	TablePath  string   `yaml:"tablepath"`
}

// Parse decodes a YAML configuration into a snapshot. Every failure is a
// *domain.ConfigError.
func Parse(data []byte) (*domain.Snapshot, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, domain.ErrConfig(nil, "configuration is empty")
		}
		return nil, domain.ErrConfig(err, "parse configuration")
	}
	if len(f.Sources) == 0 {
		return nil, domain.ErrConfig(nil, "no sources configured")
	}

	out := make([]*domain.SourceConfig, 0, len(f.Sources))
	for i, e := range f.Sources {
		src, err := e.compile()
		if err != nil {
			return nil, domain.ErrConfig(err, "source %d", i)
		}
		out = append(out, src)
	}
	return domain.NewSnapshot(out...), nil
}

// LoadFile reads and parses the configuration file at path.
func LoadFile(path string) (*domain.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.ErrConfig(err, "read configuration %s", path)
	}
	return Parse(data)
}

// Single builds a one-source snapshot from command-line settings.
// partitions is a comma-separated list of names.
func Single(bucket, prefix, tablePath, partitions string) (*domain.Snapshot, error) {
	e := Entry{Bucket: bucket, Prefix: prefix, TablePath: tablePath}
	for _, p := range strings.Split(partitions, ",") {
		if p = strings.TrimSpace(p); p != "" {
			e.Partitions = append(e.Partitions, p)
		}
	}
	src, err := e.compile()
	if err != nil {
		return nil, domain.ErrConfig(err, "source")
	}
	return domain.NewSnapshot(src), nil
}

func (e Entry) compile() (*domain.SourceConfig, error) {
	if e.Bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}
	if e.TablePath == "" {
		return nil, fmt.Errorf("tablepath is required")
	}
	if _, err := objectstore.ParseLocation(e.TablePath); err != nil {
		return nil, fmt.Errorf("tablepath: %w", err)
	}
	prefix, err := regexp.Compile(e.Prefix)
	if err != nil {
		return nil, fmt.Errorf("prefix: %w", err)
	}
	return &domain.SourceConfig{
		Bucket:     e.Bucket,
		Prefix:     prefix,
		Partitions: append([]string(nil), e.Partitions...),
		TablePath:  e.TablePath,
	}, nil
}
