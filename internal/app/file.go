package app

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/rancher/gh-pages-action/internal/identity"
	"github.com/rancher/gh-pages-action/internal/publish"
)

// FileConfig is the YAML configuration file accepted by the CLI. Unset keys
// leave the corresponding option untouched.
type FileConfig struct {
	Dist     string     `yaml:"dist"`
	Src      StringList `yaml:"src"`
	Branch   string     `yaml:"branch"`
	Dest     string     `yaml:"dest"`
	Add      *bool      `yaml:"add"`
	Remove   string     `yaml:"remove"`
	Only     string     `yaml:"only"`
	Message  string     `yaml:"message"`
	Tag      string     `yaml:"tag"`
	Dotfiles *bool      `yaml:"dotfiles"`
	Repo     string     `yaml:"repo"`
	Depth    int        `yaml:"depth"`
	Remote   string     `yaml:"remote"`
	User     string     `yaml:"user"`
	Push     *bool      `yaml:"push"`
	History  *bool      `yaml:"history"`
	Silent   *bool      `yaml:"silent"`
	NoJekyll *bool      `yaml:"nojekyll"`
	CNAME    string     `yaml:"cname"`
	Git      string     `yaml:"git"`
}

// StringList decodes either a single YAML scalar or a sequence of scalars.
type StringList []string

func (l *StringList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		*l = StringList{value.Value}
		return nil
	case yaml.SequenceNode:
		items := make(StringList, 0, len(value.Content))
		for _, item := range value.Content {
			if item.Kind != yaml.ScalarNode {
				return fmt.Errorf("line %d: src entries must be strings", item.Line)
			}
			items = append(items, item.Value)
		}
		*l = items
		return nil
	default:
		return fmt.Errorf("line %d: src must be a string or a list of strings", value.Line)
	}
}

// LoadFile reads and decodes the YAML configuration file at path. Unknown keys
// are rejected.
func LoadFile(path string) (FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return FileConfig{}, fmt.Errorf("read config file: %w", err)
	}

	var fc FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil && !errors.Is(err, io.EOF) {
		return FileConfig{}, fmt.Errorf("decode config file %s: %w", path, err)
	}
	return fc, nil
}

// Apply copies every key set in the file onto opts.
func (f FileConfig) Apply(opts *publish.Options) error {
	setString(&opts.Branch, f.Branch)
	setString(&opts.Dest, f.Dest)
	setString(&opts.Remove, f.Remove)
	setString(&opts.Only, f.Only)
	setString(&opts.Message, f.Message)
	setString(&opts.Tag, f.Tag)
	setString(&opts.Repo, f.Repo)
	setString(&opts.Remote, f.Remote)
	setString(&opts.CNAME, f.CNAME)
	setString(&opts.Git, f.Git)

	setBool(&opts.Add, f.Add)
	setBool(&opts.Dotfiles, f.Dotfiles)
	setBool(&opts.Push, f.Push)
	setBool(&opts.History, f.History)
	setBool(&opts.Silent, f.Silent)
	setBool(&opts.NoJekyll, f.NoJekyll)

	if len(f.Src) > 0 {
		opts.Src = append([]string(nil), f.Src...)
	}
	if f.Depth < 0 {
		return fmt.Errorf("depth must be positive, got %d", f.Depth)
	}
	if f.Depth > 0 {
		opts.Depth = f.Depth
	}
	if f.User != "" {
		user, err := identity.Parse(f.User)
		if err != nil {
			return fmt.Errorf("parse user: %w", err)
		}
		opts.User = user
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}
