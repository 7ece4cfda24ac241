// Copyright 2024 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cfg

import (
	"testing"

	"github.com/mitchellh/mapstructure"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeHook_DecodesNestedConfig(t *testing.T) {
	raw := map[string]interface{}{
		"file-system": map[string]interface{}{
			"file-mode": "644",
		},
		"logging": map[string]interface{}{
			"severity": "debug",
		},
	}

	var config Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: DecodeHook(),
		Result:     &config,
	})
	require.NoError(t, err)
	require.NoError(t, decoder.Decode(raw))

	assert.Equal(t, Octal(0o644), config.FileSystem.FileMode)
	assert.Equal(t, DebugLogSeverity, config.Logging.Severity)
}

func TestDecodeHook_RejectsInvalidSeverity(t *testing.T) {
	raw := map[string]interface{}{
		"logging": map[string]interface{}{
			"severity": "VERBOSE",
		},
	}

	var config Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: DecodeHook(),
		Result:     &config,
	})
	require.NoError(t, err)
	assert.Error(t, decoder.Decode(raw))
}
