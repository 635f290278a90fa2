/*
Copyright 2025 The goARRG Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package rendergraph

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"goarrg.com/debug"
	"goarrg.com/gmath"
	"gopkg.in/yaml.v3"
)

const (
	DefaultMaxFramesInFlight       = 3
	DefaultPipelineRetentionFrames = 120
	DefaultDescriptorPoolBankSize  = 64
	MinBindlessTextures            = 4096
)

type Config struct {
	MaxFramesInFlight       int    `toml:"max_frames_in_flight" yaml:"max_frames_in_flight"`
	ShaderDirectory         string `toml:"shader_directory" yaml:"shader_directory"`
	PipelineRetentionFrames uint64 `toml:"pipeline_retention_frames" yaml:"pipeline_retention_frames"`
	DescriptorPoolBankSize  int32  `toml:"descriptor_pool_bank_size" yaml:"descriptor_pool_bank_size"`
	MaxBindlessTextures     int32  `toml:"max_bindless_textures" yaml:"max_bindless_textures"`
	EnableTimestamps        bool   `toml:"enable_timestamps" yaml:"enable_timestamps"`
	WatchShaders            bool   `toml:"watch_shaders" yaml:"watch_shaders"`

	RenderPath string `toml:"render_path" yaml:"render_path"`
	Width      int32  `toml:"width" yaml:"width"`
	Height     int32  `toml:"height" yaml:"height"`
	// Features toggles optional parts of a render path such as "taa" or "bloom".
	Features map[string]bool `toml:"features" yaml:"features"`
}

func (c *Config) MarshalJSON() ([]byte, error) {
	buff := bytes.Buffer{}
	buff.WriteString("{")

	buff.WriteString(fmt.Sprintf("\"MaxFramesInFlight\": %d,", c.MaxFramesInFlight))
	buff.WriteString(fmt.Sprintf("\"ShaderDirectory\": %q,", c.ShaderDirectory))
	buff.WriteString(fmt.Sprintf("\"PipelineRetentionFrames\": %d,", c.PipelineRetentionFrames))
	buff.WriteString(fmt.Sprintf("\"DescriptorPoolBankSize\": %d,", c.DescriptorPoolBankSize))
	buff.WriteString(fmt.Sprintf("\"MaxBindlessTextures\": %d,", c.MaxBindlessTextures))
	buff.WriteString(fmt.Sprintf("\"EnableTimestamps\": %t,", c.EnableTimestamps))
	buff.WriteString(fmt.Sprintf("\"WatchShaders\": %t,", c.WatchShaders))
	buff.WriteString(fmt.Sprintf("\"RenderPath\": %q,", c.RenderPath))
	buff.WriteString(fmt.Sprintf("\"Extent\": \"%dx%d\",", c.Width, c.Height))

	{
		buff.WriteString("\"Features\": {")
		err := mapRunFuncSorted(c.Features, func(k string, v bool) error {
			buff.WriteString(fmt.Sprintf("%q: %t,", k, v))
			return nil
		})
		if err == nil {
			buff.Truncate(buff.Len() - 1)
		}
		buff.WriteString("}")
	}

	buff.WriteString("}")
	return buff.Bytes(), nil
}

// Feature reports whether feature is enabled, features not present in the config use def.
func (c *Config) Feature(feature string, def bool) bool {
	if v, ok := c.Features[feature]; ok {
		return v
	}
	return def
}

// Validate fills unset fields with their defaults and rejects invalid values.
func (c *Config) Validate() error {
	if c.MaxFramesInFlight == 0 {
		c.MaxFramesInFlight = DefaultMaxFramesInFlight
	} else if !gmath.InRange(c.MaxFramesInFlight, 1, 8) {
		return configErrorf("Config.MaxFramesInFlight must be in [1, 8], got %d", c.MaxFramesInFlight)
	}
	if c.PipelineRetentionFrames == 0 {
		c.PipelineRetentionFrames = DefaultPipelineRetentionFrames
	}
	if c.DescriptorPoolBankSize == 0 {
		c.DescriptorPoolBankSize = DefaultDescriptorPoolBankSize
	} else if c.DescriptorPoolBankSize < 0 {
		return configErrorf("Config.DescriptorPoolBankSize must be >= 1, got %d", c.DescriptorPoolBankSize)
	}
	if c.MaxBindlessTextures == 0 {
		c.MaxBindlessTextures = MinBindlessTextures
	} else if c.MaxBindlessTextures < MinBindlessTextures {
		return configErrorf("Config.MaxBindlessTextures must be >= %d, got %d", MinBindlessTextures, c.MaxBindlessTextures)
	}
	if c.ShaderDirectory == "" {
		c.ShaderDirectory = "shaders"
	}
	if c.Width < 0 || c.Height < 0 {
		return configErrorf("Config extent must not be negative, got %dx%d", c.Width, c.Height)
	}
	return nil
}

// LoadConfigFile decodes a .toml, .yaml or .yml file and validates it.
func LoadConfigFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, debug.ErrorWrapf(err, "Failed to read config")
	}

	var c Config
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		err = toml.Unmarshal(data, &c)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &c)
	default:
		return Config{}, configErrorf("Unknown config format %q", ext)
	}
	if err != nil {
		return Config{}, debug.ErrorWrapf(ErrorConfiguration{}, "Failed to decode %q: %v", path, err)
	}

	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}
