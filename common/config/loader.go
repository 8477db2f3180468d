package config

import (
	"context"
	"errors"
	"fmt"
	"github.com/forbiddencoding/ruddit/common/errs"
	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strings"
)

const EnvPrefix = "RUDDIT_"

const defaultTemplate = `# ruddit settings
[api_keys]
REDDIT_API_ID = "CHANGE_ME"
REDDIT_API_SECRET = "CHANGE_ME"
GEMINI_API_KEY = "CHANGE_ME"
SUBREDDIT = "supplychain"
RELEVANCE = "hot"
LEAD_KEYWORDS = []
BRANDED_KEYWORDS = []
SENTIMENT = ["neutral"]
MATCH = "OR"

[reddit]
limit = 100

[persistence]
driver = "sqlite"

[export]
format = "xlsx"
`

// listKeys are settings holding string lists; the setter splits their value on commas.
var listKeys = []string{"api_keys.LEAD_KEYWORDS", "api_keys.BRANDED_KEYWORDS", "api_keys.SENTIMENT"}

func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(tagName)
	return v
}

func tagName(field reflect.StructField) string {
	for _, tag := range []string{"koanf", "json"} {
		if name, _, _ := strings.Cut(field.Tag.Get(tag), ","); name != "" && name != "-" {
			return name
		}
	}
	return field.Name
}

// LoadConfig reads the settings file at filepath, creating it from the default template when
// absent, and applies RUDDIT_ environment overrides on top of it.
func LoadConfig(ctx context.Context, filepath string, validate *validator.Validate) (*Config, error) {
	if filepath == "" {
		filepath = DefaultConfigPath()
	}

	created, err := CreateDefault(filepath)
	if err != nil {
		return nil, err
	}
	if created {
		slog.Info("created default settings file, fill in your API credentials", slog.String("path", filepath))
	}

	k, _, err := loadFile(filepath)
	if err != nil {
		return nil, err
	}

	if err = k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, errs.E(errs.KindConfigParse, "config.Load", err)
	}

	return decode(ctx, k, filepath, validate)
}

// envKey maps RUDDIT_SUBREDDIT to api_keys.SUBREDDIT and RUDDIT_PERSISTENCE__DSN to persistence.dsn.
func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	if section, key, ok := strings.Cut(s, "__"); ok {
		return strings.ToLower(section) + "." + strings.ToLower(key)
	}
	return "api_keys." + s
}

// CreateDefault writes the default template to path unless a file already exists there.
func CreateDefault(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return false, errs.E(errs.KindIO, "config.CreateDefault", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, errs.E(errs.KindIO, "config.CreateDefault", err)
	}

	content := []byte(defaultTemplate)
	if ext := strings.ToLower(filepath.Ext(path)); ext == ".yml" || ext == ".yaml" {
		raw, err := toml.Parser().Unmarshal(content)
		if err != nil {
			return false, errs.E(errs.KindConfigParse, "config.CreateDefault", err)
		}
		if content, err = yaml.Parser().Marshal(raw); err != nil {
			return false, errs.E(errs.KindIO, "config.CreateDefault", err)
		}
	}

	if err := os.WriteFile(path, content, 0o600); err != nil {
		return false, errs.E(errs.KindIO, "config.CreateDefault", err)
	}
	return true, nil
}

func parserFor(path string) (koanf.Parser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml", "":
		return toml.Parser(), nil
	case ".yml", ".yaml":
		return yaml.Parser(), nil
	default:
		return nil, errs.Errorf(errs.KindConfigParse, "config.Load", "unsupported settings file extension %q", filepath.Ext(path))
	}
}

func loadFile(path string) (*koanf.Koanf, koanf.Parser, error) {
	parser, err := parserFor(path)
	if err != nil {
		return nil, nil, err
	}

	k := koanf.New(".")
	if err = k.Load(file.Provider(path), parser); err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
			return nil, nil, errs.E(errs.KindIO, "config.Load", err)
		}
		return nil, nil, errs.Errorf(errs.KindConfigParse, "config.Load", "parse %s: %w", path, err)
	}
	return k, parser, nil
}

func decode(ctx context.Context, k *koanf.Koanf, path string, validate *validator.Validate) (*Config, error) {
	var conf Config

	if err := k.Unmarshal("", &conf); err != nil {
		return nil, errs.Errorf(errs.KindConfigParse, "config.Load", "decode %s: %w", path, err)
	}

	applyDefaults(&conf)

	if err := validate.StructCtx(ctx, &conf); err != nil {
		return nil, errs.Errorf(errs.KindConfigParse, "config.Load", "%s: %w", path, fieldError(err))
	}

	return &conf, nil
}

// fieldError rewrites validator errors to name the offending settings key.
func fieldError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		key := fe.Namespace()
		if _, rest, ok := strings.Cut(key, "."); ok {
			key = rest
		}
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("field %s is required", key))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("field %s: %q is not one of [%s]", key, fe.Value(), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("field %s: failed %q check (value %v)", key, fe.Tag(), fe.Value()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}

// Keys lists every settings key, e.g. api_keys.SUBREDDIT or persistence.dsn.
func Keys() []string {
	var keys []string
	root := reflect.TypeOf(Config{})
	for i := range root.NumField() {
		section := root.Field(i)
		for j := range section.Type.NumField() {
			keys = append(keys, tagName(section)+"."+tagName(section.Type.Field(j)))
		}
	}
	return keys
}

// ResolveKey accepts either a full key or a bare api_keys entry such as SUBREDDIT.
func ResolveKey(key string) (string, error) {
	if !strings.Contains(key, ".") {
		key = "api_keys." + strings.ToUpper(key)
	}
	if !slices.Contains(Keys(), key) {
		return "", errs.Errorf(errs.KindInvalidArgument, "config.Set", "unknown setting %q", key)
	}
	return key, nil
}

// Set updates a single key in the settings file at path and rewrites it.
func Set(ctx context.Context, path, key, value string, validate *validator.Validate) error {
	if path == "" {
		path = DefaultConfigPath()
	}

	key, err := ResolveKey(key)
	if err != nil {
		return err
	}

	if _, err = CreateDefault(path); err != nil {
		return err
	}

	k, parser, err := loadFile(path)
	if err != nil {
		return err
	}

	var v any = value
	if slices.Contains(listKeys, key) {
		items := []string{}
		for item := range strings.SplitSeq(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		v = items
	}

	if err = k.Set(key, v); err != nil {
		return errs.E(errs.KindInvalidArgument, "config.Set", err)
	}

	if _, err = decode(ctx, k, path, validate); err != nil {
		return errs.E(errs.KindInvalidArgument, "config.Set", errors.Unwrap(err))
	}

	b, err := k.Marshal(parser)
	if err != nil {
		return errs.E(errs.KindIO, "config.Set", err)
	}

	if err = os.WriteFile(path, b, 0o600); err != nil {
		return errs.E(errs.KindIO, "config.Set", err)
	}
	return nil
}
