package util

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Bind registers a flag for every leaf field of cfg and binds it to the
// matching viper key. Flag names are the dash joined flag tags, keys the dot
// joined field names. A flag tag of "-" contributes no name segment.
func Bind(cfg any, flags *pflag.FlagSet, vip *viper.Viper) {
	bind(reflect.ValueOf(cfg).Elem(), flags, vip, "", "")
}

// Hooks are the decode hooks config structs bound with Bind are
// unmarshaled with.
func Hooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		mapstructure.TextUnmarshallerHookFunc(),
	)
}

// ReadConfig loads the file named by the config flag, or plotwatch.yaml
// from the working or home directory when present, and enables
// PLOTWATCH_ prefixed environment overrides.
func ReadConfig(cmd *cobra.Command, vip *viper.Viper) error {
	if file, _ := cmd.Flags().GetString("config"); file != "" {
		vip.SetConfigFile(file)
	} else {
		vip.SetConfigName("plotwatch")
		vip.AddConfigPath(".")
		vip.AddConfigPath("$HOME")
	}

	vip.SetEnvPrefix("PLOTWATCH")
	vip.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	vip.AutomaticEnv()

	if err := vip.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return err
		}
	}

	return nil
}

// Decode unmarshals the merged flag, file and environment settings into cfg.
func Decode(cfg any, vip *viper.Viper) error {
	return vip.Unmarshal(cfg, viper.DecodeHook(Hooks()))
}

func bind(v reflect.Value, flags *pflag.FlagSet, vip *viper.Viper, fPrefix string, kPrefix string) {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		flag := field.Tag.Get("flag")
		desc := field.Tag.Get("desc")
		value := field.Tag.Get("default")

		var n string
		switch {
		case flag == "-":
			n = fPrefix
		case fPrefix == "":
			n = flag
		default:
			n = fmt.Sprintf("%s-%s", fPrefix, flag)
		}

		k := field.Name
		if kPrefix != "" {
			k = fmt.Sprintf("%s.%s", kPrefix, field.Name)
		}

		if field.Type.Kind() == reflect.Struct {
			bind(v.Field(i), flags, vip, n, k)
			continue
		}

		if n == "" {
			panic(fmt.Sprintf("field %s has no flag name", k))
		}

		switch field.Type.Kind() {
		case reflect.String:
			flags.String(n, value, desc)
		case reflect.Bool:
			flags.Bool(n, value == "true", desc)
		case reflect.Int:
			i, _ := strconv.Atoi(value)
			flags.Int(n, i, desc)
		case reflect.Int64:
			if field.Type == reflect.TypeOf(time.Duration(0)) {
				d, _ := time.ParseDuration(value)
				flags.Duration(n, d, desc)
			} else {
				i, _ := strconv.ParseInt(value, 10, 64)
				flags.Int64(n, i, desc)
			}
		case reflect.Float64:
			f, _ := strconv.ParseFloat(value, 64)
			flags.Float64(n, f, desc)
		case reflect.Slice:
			if field.Type.Elem().Kind() != reflect.String {
				panic(fmt.Sprintf("unsupported slice type: %s", field.Type))
			}
			var s []string
			if value != "" {
				s = []string{value}
			}
			flags.StringSlice(n, s, desc)
		case reflect.Map:
			if field.Type != reflect.TypeOf(map[string]string{}) {
				panic(fmt.Sprintf("unsupported map type: %s", field.Type))
			}
			if value == "" {
				value = "{}"
			}
			var m map[string]string
			if err := json.Unmarshal([]byte(value), &m); err != nil {
				panic(fmt.Sprintf("invalid default for %s: %v", k, err))
			}
			flags.StringToString(n, m, desc)
		default:
			panic(fmt.Sprintf("unsupported type %s", field.Type.Kind()))
		}

		_ = vip.BindPFlag(k, flags.Lookup(n))
	}
}
